package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/haakonsb/liftchat/internal/models"
	"github.com/haakonsb/liftchat/internal/session"
	httputil "github.com/haakonsb/liftchat/pkg/http"
	"github.com/haakonsb/liftchat/pkg/logger"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing session data in context
	SessionContextKey contextKey = "session"
)

// LoginPath is where unauthenticated requests are pointed.
const LoginPath = "/auth/login"

// UserDirectory fetches the current account record. Role checks read from
// here rather than from the session so that role changes take effect on the
// next request, not the next login.
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// WithSession resolves the session cookie and injects the session data into
// the request context. Requests without a session pass through untouched;
// enforcement is left to RequireAuthenticated.
func WithSession(sm *session.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := sm.Current(r)
			if err != nil {
				httputil.WriteInternalError(w, "unable to load session")
				return
			}
			if data == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), SessionContextKey, data)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext extracts session data from the request context.
// Returns nil when the request carries no session.
func SessionFromContext(r *http.Request) *session.Data {
	data, ok := r.Context().Value(SessionContextKey).(*session.Data)
	if !ok {
		return nil
	}
	return data
}

// RequireAuthenticated rejects requests without an authenticated session.
// The attempted URL is remembered so the login flow can send the user back
// to it afterwards.
func RequireAuthenticated(sm *session.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data := SessionFromContext(r)
			if data == nil || !data.Authenticated() {
				if r.Method == http.MethodGet {
					if err := sm.SetPostLoginRedirect(w, r, r.URL.RequestURI()); err != nil {
						httputil.WriteInternalError(w, "unable to save session")
						return
					}
				}
				w.Header().Set("Location", LoginPath)
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole enforces role-based access control. The role is re-read from
// the user directory on every request; the copy cached in the session is
// never trusted for authorization decisions.
func RequireRole(directory UserDirectory, auditLogger *logger.AuditLogger, roles ...models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data := SessionFromContext(r)
			if data == nil || !data.Authenticated() {
				w.Header().Set("Location", LoginPath)
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			user, err := directory.GetByID(r.Context(), data.AccountID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					// Account deleted since login. Treat as unauthorized.
					httputil.WriteUnauthorized(w, "authentication required")
					return
				}
				httputil.WriteInternalError(w, "internal server error")
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			auditLogger.LogAccessDenied(user.ID, r.URL.Path)
			httputil.WriteForbidden(w, "insufficient permissions")
		})
	}
}
