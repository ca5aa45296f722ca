package session

import (
	"context"

	"github.com/haakonsb/liftchat/internal/models"
)

// Data is the server-side session record bound to a transport-session
// identifier. AccountID zero means the session is anonymous (it may still
// carry a pending post-login redirect).
type Data struct {
	AccountID  int64       `json:"account_id"`
	Username   string      `json:"username"`
	Role       models.Role `json:"role"`
	RedirectTo string      `json:"redirect_to,omitempty"`
}

// Authenticated reports whether the record proves a logged-in account.
func (d *Data) Authenticated() bool {
	return d != nil && d.AccountID != 0
}

// Store is the key-value backend sessions live in. It is injected into
// the Manager so tests can run against an isolated in-memory store while
// production uses Redis. Get returns (nil, nil) for an unknown id.
//
// Put replaces the whole record in one operation and Delete removes it in
// one operation, so a session is never observable half-written or half
// destroyed.
type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Put(ctx context.Context, id string, data *Data) error
	Delete(ctx context.Context, id string) error
}
