package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chat-relay/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	CreateMessage(sender, recipient, text, fileRef string) (domain.Message, error)
	GetConversation(userA, userB string) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the stored form of a message record.
type diskMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text,omitempty"`
	FileRef   string    `json:"file,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// conversationKey returns the order-independent key segment shared by both
// directions of a user pair, so one prefix scan yields the whole exchange.
func conversationKey(userA, userB string) string {
	userA, userB = sanitizeID(userA), sanitizeID(userB)
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

// CreateMessage assigns the record an id and a creation time and persists it.
// The key is formatted as "msg:{pair}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) CreateMessage(sender, recipient, text, fileRef string) (domain.Message, error) {
	message := domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
		FileRef:   fileRef,
		CreatedAt: time.Now().UTC(),
	}

	key := fmt.Sprintf("msg:%s:%019d:%s",
		conversationKey(sender, recipient),
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// GetConversation retrieves all messages exchanged between two users, in
// chronological order thanks to the padded timestamp in the key. It stops
// collecting once the configured limitMessages is reached.
func (m MessageRepository) GetConversation(userA, userB string) ([]domain.Message, error) {
	var raw [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", conversationKey(userA, userB)))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(raw) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var dm diskMessage
		if err = json.Unmarshal(b, &dm); err != nil {
			return nil, err
		}
		message, err := toMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:        message.ID.String(),
		Sender:    message.Sender,
		Recipient: message.Recipient,
		Text:      message.Text,
		FileRef:   message.FileRef,
		CreatedAt: message.CreatedAt,
	}
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		Sender:    dm.Sender,
		Recipient: dm.Recipient,
		Text:      dm.Text,
		FileRef:   dm.FileRef,
		CreatedAt: dm.CreatedAt.UTC(),
	}, nil
}

// sanitizeID guards the key scheme: the pair separator must not appear in a
// user id. Ids are UUIDs everywhere in practice.
func sanitizeID(id string) string {
	return strings.ReplaceAll(id, "|", "")
}
