package gateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubRecords struct {
	fail    bool
	created []domain.Message
}

func (s *stubRecords) CreateMessage(sender, recipient, text, fileRef string) (domain.Message, error) {
	if s.fail {
		return domain.Message{}, fmt.Errorf("record store down")
	}
	m := domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
		FileRef:   fileRef,
		CreatedAt: time.Now().UTC(),
	}
	s.created = append(s.created, m)
	return m, nil
}

type stubBlobs struct {
	fail   bool
	stored [][]byte
	hints  []string
}

func (s *stubBlobs) Store(data []byte, extHint string) (string, error) {
	if s.fail {
		return "", fmt.Errorf("blob store down")
	}
	s.stored = append(s.stored, data)
	s.hints = append(s.hints, extHint)
	return fmt.Sprintf("blob-%d.%s", len(s.stored), extHint), nil
}

func drainFrames(c *Conn) [][]byte {
	var frames [][]byte
	for {
		select {
		case payload := <-c.send:
			frames = append(frames, payload)
		default:
			return frames
		}
	}
}

func routerFixture(t *testing.T) (*Router, *stubRecords, *stubBlobs, *Registry) {
	t.Helper()
	records := &stubRecords{}
	blobs := &stubBlobs{}
	registry := NewRegistry()
	return NewRouter(slog.Default(), records, blobs, registry), records, blobs, registry
}

func inbound(t *testing.T, frame domain.InboundFrame) []byte {
	t.Helper()
	payload, err := json.Marshal(frame)
	require.NoError(t, err)
	return payload
}

func TestRouter_FanOutToRecipientPlusEcho(t *testing.T) {
	req := require.New(t)
	router, records, _, registry := routerFixture(t)

	sender, alice := identified("s", "u1", "alice")
	registry.Add(sender)
	registry.SetIdentity(sender, alice)

	// Recipient holds two live connections; both must get the frame.
	bob := &domain.Identity{UserID: "u2", Username: "bob"}
	r1, r2 := testConn("r1"), testConn("r2")
	registry.Add(r1)
	registry.SetIdentity(r1, bob)
	registry.Add(r2)
	registry.SetIdentity(r2, bob)

	router.Handle(sender, inbound(t, domain.InboundFrame{Recipient: "u2", Text: "hi"}))

	req.Len(records.created, 1)
	wantID := records.created[0].ID.String()

	for _, c := range []*Conn{r1, r2, sender} {
		frames := drainFrames(c)
		req.Len(frames, 1, "conn %s", c.ID())
		var out domain.OutboundMessage
		req.NoError(json.Unmarshal(frames[0], &out))
		req.Equal("hi", out.Text)
		req.Equal("u1", out.Sender)
		req.Equal("u2", out.Recipient)
		req.Equal(wantID, out.ID)
	}
}

func TestRouter_FanOutWithZeroRecipientConnections(t *testing.T) {
	req := require.New(t)
	router, records, _, registry := routerFixture(t)

	sender, alice := identified("s", "u1", "alice")
	registry.Add(sender)
	registry.SetIdentity(sender, alice)

	router.Handle(sender, inbound(t, domain.InboundFrame{Recipient: "offline", Text: "hi"}))

	// Persisted, and exactly one frame: the echo.
	req.Len(records.created, 1)
	req.Len(drainFrames(sender), 1)
}

func TestRouter_DropConditions(t *testing.T) {
	tests := []struct {
		name  string
		frame domain.InboundFrame
		anon  bool
	}{
		{"anonymous sender", domain.InboundFrame{Recipient: "u2", Text: "hi"}, true},
		{"missing recipient", domain.InboundFrame{Text: "hi"}, false},
		{"neither text nor file", domain.InboundFrame{Recipient: "u2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			router, records, blobs, registry := routerFixture(t)

			sender := testConn("s")
			registry.Add(sender)
			if !tt.anon {
				registry.SetIdentity(sender, &domain.Identity{UserID: "u1", Username: "alice"})
			}

			router.Handle(sender, inbound(t, tt.frame))

			req.Empty(records.created)
			req.Empty(blobs.stored)
			req.Empty(drainFrames(sender))
		})
	}
}

func TestRouter_MalformedJSONDropped(t *testing.T) {
	req := require.New(t)
	router, records, _, registry := routerFixture(t)

	sender, alice := identified("s", "u1", "alice")
	registry.Add(sender)
	registry.SetIdentity(sender, alice)

	router.Handle(sender, []byte("{not json"))

	req.Empty(records.created)
	req.Empty(drainFrames(sender))
}

func TestRouter_FilePersistedBeforeRecord(t *testing.T) {
	req := require.New(t)
	router, records, blobs, registry := routerFixture(t)

	sender, alice := identified("s", "u1", "alice")
	registry.Add(sender)
	registry.SetIdentity(sender, alice)

	raw := []byte("attachment bytes")
	frame := domain.InboundFrame{
		Recipient: "u2",
		File: &domain.FilePayload{
			Name: "photo.png",
			Data: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw),
		},
	}
	router.Handle(sender, inbound(t, frame))

	req.Equal([][]byte{raw}, blobs.stored)
	req.Equal([]string{"png"}, blobs.hints)
	req.Len(records.created, 1)
	req.Equal("blob-1.png", records.created[0].FileRef)

	var out domain.OutboundMessage
	frames := drainFrames(sender)
	req.Len(frames, 1)
	req.NoError(json.Unmarshal(frames[0], &out))
	req.Equal("blob-1.png", out.File)
}

func TestRouter_BlobFailureNotifiesSenderOnly(t *testing.T) {
	req := require.New(t)
	router, records, blobs, registry := routerFixture(t)
	blobs.fail = true

	sender, alice := identified("s", "u1", "alice")
	recipient, bob := identified("r", "u2", "bob")
	registry.Add(sender)
	registry.SetIdentity(sender, alice)
	registry.Add(recipient)
	registry.SetIdentity(recipient, bob)

	frame := domain.InboundFrame{
		Recipient: "u2",
		File:      &domain.FilePayload{Name: "x.bin", Data: "data:application/octet-stream;base64,AAAA"},
	}
	router.Handle(sender, inbound(t, frame))

	req.Empty(records.created)
	req.Empty(drainFrames(recipient))

	frames := drainFrames(sender)
	req.Len(frames, 1)
	var errFrame domain.ErrorFrame
	req.NoError(json.Unmarshal(frames[0], &errFrame))
	req.NotEmpty(errFrame.Error)
}

func TestRouter_RecordFailureNotifiesSenderOnly(t *testing.T) {
	req := require.New(t)
	router, records, _, registry := routerFixture(t)
	records.fail = true

	sender, alice := identified("s", "u1", "alice")
	recipient, bob := identified("r", "u2", "bob")
	registry.Add(sender)
	registry.SetIdentity(sender, alice)
	registry.Add(recipient)
	registry.SetIdentity(recipient, bob)

	router.Handle(sender, inbound(t, domain.InboundFrame{Recipient: "u2", Text: "hi"}))

	req.Empty(drainFrames(recipient))

	frames := drainFrames(sender)
	req.Len(frames, 1)
	var errFrame domain.ErrorFrame
	req.NoError(json.Unmarshal(frames[0], &errFrame))
	req.NotEmpty(errFrame.Error)
}

func TestRouter_SelfMessageGetsDeliveryAndEcho(t *testing.T) {
	req := require.New(t)
	router, _, _, registry := routerFixture(t)

	sender, alice := identified("s", "u1", "alice")
	registry.Add(sender)
	registry.SetIdentity(sender, alice)

	router.Handle(sender, inbound(t, domain.InboundFrame{Recipient: "u1", Text: "note to self"}))

	// One frame as the recipient's connection, one as the echo.
	req.Len(drainFrames(sender), 2)
}
