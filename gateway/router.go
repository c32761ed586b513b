package gateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"chat-relay/domain"
	"chat-relay/observability"
)

// RecordStore persists message records and assigns them id and timestamp.
type RecordStore interface {
	CreateMessage(sender, recipient, text, fileRef string) (domain.Message, error)
}

// BlobStore persists attachment bytes and returns a stable reference.
type BlobStore interface {
	Store(data []byte, extHint string) (string, error)
}

// Router validates inbound message events, persists them and fans them out
// to the recipient identity's connections plus an echo to the sender.
type Router struct {
	log      *slog.Logger
	records  RecordStore
	blobs    BlobStore
	registry *Registry
}

func NewRouter(log *slog.Logger, records RecordStore, blobs BlobStore, registry *Registry) *Router {
	return &Router{log: log, records: records, blobs: blobs, registry: registry}
}

// Handle processes one inbound frame. Validation failures are silently
// dropped: no error channel exists at this protocol layer. Persistence
// failures notify the sender only; nothing is fanned out.
func (r *Router) Handle(c *Conn, payload []byte) {
	var frame domain.InboundFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		observability.FramesDropped.WithLabelValues("malformed").Inc()
		r.log.Warn("Malformed inbound frame", "conn", c.ID(), "error", err)
		return
	}

	sender := c.Identity()
	if sender == nil {
		observability.FramesDropped.WithLabelValues("anonymous").Inc()
		r.log.Debug("Frame from anonymous connection dropped", "conn", c.ID())
		return
	}
	if frame.Kind() == domain.FrameInvalid {
		observability.FramesDropped.WithLabelValues("invalid").Inc()
		return
	}

	// The blob is persisted before the record so the record never points at
	// a reference that does not exist yet.
	var fileRef string
	if frame.HasFile() {
		data, err := decodeDataURL(frame.File.Data)
		if err != nil {
			observability.FramesDropped.WithLabelValues("malformed").Inc()
			r.log.Warn("Undecodable attachment payload", "conn", c.ID(), "error", err)
			return
		}
		ref, err := r.blobs.Store(data, extensionOf(frame.File.Name))
		if err != nil {
			observability.FramesDropped.WithLabelValues("blob").Inc()
			r.log.Error("Blob store failure", "conn", c.ID(), "error", err)
			r.notifyError(c, "could not store attachment")
			return
		}
		fileRef = ref
	}

	message, err := r.records.CreateMessage(sender.UserID, frame.Recipient, frame.Text, fileRef)
	if err != nil {
		observability.FramesDropped.WithLabelValues("record").Inc()
		r.log.Error("Record store failure", "conn", c.ID(), "error", err)
		r.notifyError(c, "could not persist message")
		return
	}
	observability.MessagesPersisted.Inc()

	out, err := json.Marshal(domain.OutboundMessage{
		Text:      message.Text,
		Sender:    message.Sender,
		Recipient: message.Recipient,
		File:      message.FileRef,
		ID:        message.ID.String(),
	})
	if err != nil {
		return
	}

	// One frame per recipient connection, plus the echo to the originating
	// connection. Fire-and-forget: no acknowledgment exists.
	for _, target := range r.registry.ConnectionsForIdentity(frame.Recipient) {
		target.Send(out)
	}
	c.Send(out)
}

func (r *Router) notifyError(c *Conn, message string) {
	payload, err := json.Marshal(domain.ErrorFrame{Error: message})
	if err != nil {
		return
	}
	c.Send(payload)
}

// decodeDataURL extracts and decodes the base64 payload of a data URL
// ("data:<mime>;base64,<payload>").
func decodeDataURL(s string) ([]byte, error) {
	_, b64, found := strings.Cut(s, ",")
	if !found {
		return nil, fmt.Errorf("not a data URL")
	}
	return base64.StdEncoding.DecodeString(b64)
}

func extensionOf(name string) string {
	return strings.TrimPrefix(path.Ext(name), ".")
}
