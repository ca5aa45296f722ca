package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/haakonsb/liftchat/internal/auth"
	"github.com/haakonsb/liftchat/internal/models"
	pkghttp "github.com/haakonsb/liftchat/pkg/http"
)

// ChatServiceInterface defines the interface for conversation business logic
type ChatServiceInterface interface {
	StartConversation(ctx context.Context, userID int64) (*models.Conversation, error)
	Conversations(ctx context.Context, userID int64) ([]*models.Conversation, error)
	Messages(ctx context.Context, userID, conversationID int64) ([]*models.Message, error)
	Send(ctx context.Context, userID, conversationID int64, content string) (*models.Message, error)
}

// ChatHandler handles conversation and message HTTP requests
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

// SendMessageRequest represents the request body for posting a message
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// ConversationResponse is the public view of a conversation
type ConversationResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageResponse is the public view of a message
type MessageResponse struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func newConversationResponse(conv *models.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
	}
}

func newMessageResponse(msg *models.Message) MessageResponse {
	return MessageResponse{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

// accountID pulls the authenticated account from the session. The routes
// guarantee a session is present; the zero check is a backstop.
func accountID(r *http.Request) (int64, bool) {
	data := auth.SessionFromContext(r)
	if data == nil || !data.Authenticated() {
		return 0, false
	}
	return data.AccountID, true
}

func conversationIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
}

// StartConversation creates a new empty conversation
func (h *ChatHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := accountID(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	conv, err := h.service.StartConversation(r.Context(), userID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(newConversationResponse(conv))
}

// ListConversations returns the user's conversations, newest first
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := accountID(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	conversations, err := h.service.Conversations(r.Context(), userID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, newConversationResponse(conv))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// ListMessages returns the full transcript of one conversation
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := accountID(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	conversationID, err := conversationIDParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid conversation id")
		return
	}

	messages, err := h.service.Messages(r.Context(), userID, conversationID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Conversation not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		out = append(out, newMessageResponse(msg))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// SendMessage appends a user message and returns the assistant's reply
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := accountID(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	conversationID, err := conversationIDParam(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid conversation id")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	reply, err := h.service.Send(r.Context(), userID, conversationID, req.Content)
	if err != nil {
		var validationErr *models.ValidationError
		switch {
		case errors.As(err, &validationErr):
			pkghttp.WriteValidationError(w, validationErr.Violations)
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Conversation not found")
		case errors.Is(err, models.ErrServiceUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Assistant is unavailable, try again shortly")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(newMessageResponse(reply))
}
