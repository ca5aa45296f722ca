package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/haakonsb/liftchat/internal/models"
	pkghttp "github.com/haakonsb/liftchat/pkg/http"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// UserLister defines the interface for paginated account listing
type UserLister interface {
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// AdminHandler handles administrative HTTP requests
type AdminHandler struct {
	users UserLister
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(users UserLister) *AdminHandler {
	return &AdminHandler{users: users}
}

// ListUsers returns a page of registered accounts
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	users, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, newUserResponse(user))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
