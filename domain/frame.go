package domain

// FilePayload is an inline attachment on an inbound frame. Data carries the
// bytes as a data URL ("data:<mime>;base64,<payload>").
type FilePayload struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// InboundFrame is the client-to-server message event.
type InboundFrame struct {
	Recipient string       `json:"recipient"`
	Text      string       `json:"text,omitempty"`
	File      *FilePayload `json:"file,omitempty"`
}

// FrameKind tags the shape of an inbound frame so validation dispatches on
// an explicit variant instead of field truthiness.
type FrameKind int

const (
	FrameInvalid FrameKind = iota
	FrameTextOnly
	FrameFileOnly
	FrameTextAndFile
)

// Kind classifies the frame. A frame is Invalid when the recipient is
// missing or when it carries neither text nor a file.
func (f InboundFrame) Kind() FrameKind {
	if f.Recipient == "" {
		return FrameInvalid
	}
	switch {
	case f.Text != "" && f.File != nil:
		return FrameTextAndFile
	case f.Text != "":
		return FrameTextOnly
	case f.File != nil:
		return FrameFileOnly
	default:
		return FrameInvalid
	}
}

// HasFile reports whether the frame carries an attachment.
func (f InboundFrame) HasFile() bool {
	k := f.Kind()
	return k == FrameFileOnly || k == FrameTextAndFile
}

// OutboundMessage is the server-to-client frame delivered to the recipient's
// connections and echoed to the sender after a record has been persisted.
type OutboundMessage struct {
	Text      string `json:"text,omitempty"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	File      string `json:"file,omitempty"`
	ID        string `json:"id"`
}

// PresenceFrame is the full online-identity snapshot pushed to every
// connection on each membership change. Always a complete replacement,
// never a diff.
type PresenceFrame struct {
	Online []Identity `json:"online"`
}

// ErrorFrame notifies the originating connection that its message could not
// be persisted. Validation failures are dropped silently and never produce
// an ErrorFrame.
type ErrorFrame struct {
	Error string `json:"error"`
}
