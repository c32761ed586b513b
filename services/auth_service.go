package services

import (
	"fmt"

	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/repositories"
)

type IAuthService interface {
	Register(username, password string) (Session, error)
	Login(username, password string) (Session, error)
}

// Session is what a successful credential exchange yields: the account
// identity plus a signed token for the cookie.
type Session struct {
	UserID   string
	Username string
	Token    string
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, password string) (Session, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Password: password,
	}

	// Validate business rules before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return Session{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hash in the service layer to keep the repository unaware of plain
	// passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(username, hashedPassword)
	if err != nil {
		return Session{}, err // Propagates ErrUserAlreadyExists when the name is taken
	}

	token, err := s.tokens.GenerateToken(userID, username)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}

	return Session{UserID: userID, Username: username, Token: token}, nil
}

func (s *AuthService) Login(username, password string) (Session, error) {
	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}

	return Session{UserID: user.ID, Username: user.Username, Token: token}, nil
}
