package services

import (
	"chat-relay/domain"
	"chat-relay/repositories"

	"github.com/samber/lo"
)

type IChatService interface {
	Conversation(userID, otherID string) ([]domain.Message, error)
	People(exceptUserID string) ([]domain.Identity, error)
}

// ChatService serves the request/response side of the chat: conversation
// history and the user directory. The realtime flow never goes through it.
type ChatService struct {
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
}

func NewChatService(messages repositories.IMessageRepository, users repositories.IUserRepository) IChatService {
	return &ChatService{messages: messages, users: users}
}

// Conversation returns both directions of the exchange between two users in
// chronological order.
func (s *ChatService) Conversation(userID, otherID string) ([]domain.Message, error) {
	return s.messages.GetConversation(userID, otherID)
}

// People lists every registered user except the caller.
func (s *ChatService) People(exceptUserID string) ([]domain.Identity, error) {
	users, err := s.users.ListUsers()
	if err != nil {
		return nil, err
	}

	others := lo.Filter(users, func(u repositories.User, _ int) bool {
		return u.ID != exceptUserID
	})
	return lo.Map(others, func(u repositories.User, _ int) domain.Identity {
		return domain.Identity{UserID: u.ID, Username: u.Username}
	}), nil
}
