package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/haakonsb/liftchat/internal/models"
	"github.com/haakonsb/liftchat/internal/session"
	pkghttp "github.com/haakonsb/liftchat/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, username string) (*models.User, error)
	Authenticate(ctx context.Context, identifier, password, ipAddress string) (*models.User, error)
}

// ConversationResolver picks the conversation a fresh login should land on.
type ConversationResolver interface {
	DefaultConversationID(ctx context.Context, userID int64) (int64, error)
}

// AuthHandler handles registration, login and logout
type AuthHandler struct {
	service       AuthServiceInterface
	sessions      *session.Manager
	conversations ConversationResolver
	lockoutWindow time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, sessions *session.Manager, conversations ConversationResolver, lockoutWindow time.Duration) *AuthHandler {
	return &AuthHandler{
		service:       service,
		sessions:      sessions,
		conversations: conversations,
		lockoutWindow: lockoutWindow,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Username string `json:"username" validate:"omitempty,min=2,max=64"`
}

// LoginRequest represents the request body for login. The identifier is
// either an email address or a username.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// UserResponse is the public view of an account. The password hash never
// leaves the service layer.
type UserResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginResponse carries the established identity and where to go next.
type LoginResponse struct {
	User       UserResponse `json:"user"`
	RedirectTo string       `json:"redirect_to"`
}

func newUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Role:      user.Role.String(),
		CreatedAt: user.CreatedAt,
	}
}

// Register handles account creation. A new account is not logged in
// automatically; the client follows up with a login request.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		var validationErr *models.ValidationError
		switch {
		case errors.As(err, &validationErr):
			pkghttp.WriteValidationError(w, validationErr.Violations)
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email or username already exists")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(newUserResponse(user))
}

// Login authenticates the credentials and establishes a session. A pending
// post-login redirect is consumed here; otherwise the client is pointed at
// the user's most recent conversation.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r)

	user, err := h.service.Authenticate(r.Context(), req.Identifier, req.Password, ipAddress)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	// Read the saved destination before the session is rotated.
	target, err := h.sessions.ConsumePostLoginRedirect(r)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if err := h.sessions.Establish(w, r, user); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if target == "" {
		conversationID, err := h.conversations.DefaultConversationID(r.Context(), user.ID)
		if err != nil {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
		target = fmt.Sprintf("/chat/conversations/%d", conversationID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LoginResponse{
		User:       newUserResponse(user),
		RedirectTo: target,
	})
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	var credentialsErr *models.InvalidCredentialsError
	switch {
	case errors.Is(err, models.ErrLockedOut):
		pkghttp.WriteTooManyRequests(w,
			fmt.Sprintf("Too many failed login attempts. Try again in %d minutes.",
				int(h.lockoutWindow.Minutes())))
	case errors.As(err, &credentialsErr):
		pkghttp.WriteUnauthorized(w,
			fmt.Sprintf("Invalid credentials. %d attempts remaining.",
				credentialsErr.RemainingAttempts))
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Invalid credentials")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Logout destroys the session. Safe to call without one.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(w, r); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
