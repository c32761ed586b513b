package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a persisted direct message. ID and CreatedAt are assigned at
// creation time; the record is immutable afterwards. At least one of Text
// and FileRef is non-empty.
type Message struct {
	ID        uuid.UUID
	Sender    string
	Recipient string
	Text      string
	FileRef   string
	CreatedAt time.Time
}
