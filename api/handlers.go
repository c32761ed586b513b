package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"chat-relay/auth"
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"chat-relay/gateway"
	"chat-relay/observability"
	"chat-relay/services"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

// Handler carries the dependencies of the request/response endpoints. The
// realtime flow goes through the gateway, not through here.
type Handler struct {
	log          *slog.Logger
	auth         services.IAuthService
	chat         services.IChatService
	tokens       *auth.TokenManager
	registry     *gateway.Registry
	cookieMaxAge time.Duration
}

func NewHandler(log *slog.Logger, authService services.IAuthService, chatService services.IChatService,
	tokens *auth.TokenManager, registry *gateway.Registry, cookieMaxAge time.Duration) *Handler {
	return &Handler{
		log:          log,
		auth:         authService,
		chat:         chatService,
		tokens:       tokens,
		registry:     registry,
		cookieMaxAge: cookieMaxAge,
	}
}

// CredentialsRequest is the register/login request body.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ProfileResponse mirrors the claims inside the session cookie.
type ProfileResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// MessageResponse is one persisted message in conversation lookups.
type MessageResponse struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text,omitempty"`
	File      string    `json:"file,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	session, err := h.auth.Register(req.Username, req.Password)
	switch {
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		h.Error(w, http.StatusConflict, "username taken")
		return
	case errors.Is(err, apperrors.ErrInvalidPassword):
		h.Error(w, http.StatusBadRequest, "invalid username or password format")
		return
	case err != nil:
		h.log.Error("Registration failed", "error", err)
		h.Error(w, http.StatusInternalServerError, "registration error")
		return
	}

	h.setSessionCookie(w, session.Token)
	h.JSON(w, http.StatusCreated, SessionResponse{ID: session.UserID, Username: session.Username})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	session, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.setSessionCookie(w, session.Token)
	h.JSON(w, http.StatusOK, SessionResponse{ID: session.UserID, Username: session.Username})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Profile decodes the session cookie without touching storage, exactly what
// the client needs to restore its session on reload.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	identity := h.identityFromRequest(r)
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "no token")
		return
	}
	h.JSON(w, http.StatusOK, ProfileResponse{UserID: identity.UserID, Username: identity.Username})
}

// People lists every registered user except the caller.
func (h *Handler) People(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	people, err := h.chat.People(identity.UserID)
	if err != nil {
		h.log.Error("Listing users failed", "error", err)
		h.Error(w, http.StatusInternalServerError, "error fetching users")
		return
	}
	if people == nil {
		people = []domain.Identity{}
	}
	h.JSON(w, http.StatusOK, people)
}

// Messages returns the conversation between the caller and the user in the
// URL, both directions, chronological.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	otherID := chi.URLParam(r, "userId")

	messages, err := h.chat.Conversation(identity.UserID, otherID)
	if err != nil {
		h.log.Error("Conversation lookup failed", "error", err)
		h.Error(w, http.StatusInternalServerError, "error fetching messages")
		return
	}

	h.JSON(w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) MessageResponse {
		return MessageResponse{
			ID:        m.ID.String(),
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Text:      m.Text,
			File:      m.FileRef,
			CreatedAt: m.CreatedAt,
		}
	}))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatsResponse reports gateway occupancy and process health.
type StatsResponse struct {
	Connections int                         `json:"connections"`
	Online      int                         `json:"online"`
	Process     *observability.ProcessStats `json:"process,omitempty"`
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	connections, online := h.registry.Counts()

	resp := StatsResponse{Connections: connections, Online: online}
	if stats, err := observability.SelfStats(); err == nil {
		resp.Process = &stats
	} else {
		h.log.Warn("Self stats unavailable", "error", err)
	}
	h.JSON(w, http.StatusOK, resp)
}

func (h *Handler) JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Response encoding failed", "error", err)
	}
}

func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

const tokenCookie = "token"

// Cookie attributes follow the browser client's expectations: cross-site
// requests with credentials, so SameSite=None and Secure.
func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieMaxAge.Seconds()),
		SameSite: http.SameSiteNoneMode,
		Secure:   true,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteNoneMode,
		Secure:   true,
	})
}

func (h *Handler) identityFromRequest(r *http.Request) *domain.Identity {
	cookie, err := r.Cookie(tokenCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	identity, err := h.tokens.Verify(cookie.Value)
	if err != nil {
		return nil
	}
	return identity
}
