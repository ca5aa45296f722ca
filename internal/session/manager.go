package session

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haakonsb/liftchat/internal/config"
	"github.com/haakonsb/liftchat/internal/models"
)

// Manager owns the authenticated-identity lifecycle over an injected
// Store. The transport binding is an opaque httpOnly cookie holding the
// session identifier.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewManager(store Store, cfg *config.SessionConfig) *Manager {
	return &Manager{
		store:      store,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     cfg.Secure,
	}
}

func (m *Manager) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (m *Manager) setCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		Expires:  time.Now().Add(m.ttl),
		HttpOnly: true, // no JavaScript access
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Establish binds the request's transport session to an authenticated
// account. The session identifier is rotated so a pre-login identifier
// never becomes an authenticated one; any pending post-login redirect on
// the old anonymous session is carried over. An existing session for the
// same transport is overwritten, never stacked.
func (m *Manager) Establish(w http.ResponseWriter, r *http.Request, user *models.User) error {
	ctx := r.Context()

	redirectTo := ""
	if oldSID := m.sessionID(r); oldSID != "" {
		if old, err := m.store.Get(ctx, oldSID); err == nil && old != nil {
			redirectTo = old.RedirectTo
		}
		if err := m.store.Delete(ctx, oldSID); err != nil {
			return fmt.Errorf("failed to discard previous session: %w", err)
		}
	}

	sid := uuid.New().String()
	data := &Data{
		AccountID:  user.ID,
		Username:   user.Username,
		Role:       user.Role,
		RedirectTo: redirectTo,
	}

	if err := m.store.Put(ctx, sid, data); err != nil {
		return fmt.Errorf("failed to establish session: %w", err)
	}

	m.setCookie(w, sid)
	return nil
}

// Current returns the session record for the request, or nil when the
// request carries no known session. Side-effect free.
func (m *Manager) Current(r *http.Request) (*Data, error) {
	sid := m.sessionID(r)
	if sid == "" {
		return nil, nil
	}
	return m.store.Get(r.Context(), sid)
}

// SetPostLoginRedirect remembers the originally requested path so login
// can return there. Only relative paths are accepted; anything else is
// silently dropped to keep the value useless as an open-redirect vector.
// An anonymous session is minted when the request has none.
func (m *Manager) SetPostLoginRedirect(w http.ResponseWriter, r *http.Request, target string) error {
	if !validRedirectTarget(target) {
		return nil
	}

	ctx := r.Context()
	sid := m.sessionID(r)
	var data *Data

	if sid != "" {
		existing, err := m.store.Get(ctx, sid)
		if err != nil {
			return err
		}
		data = existing
	}

	if data == nil {
		sid = uuid.New().String()
		data = &Data{}
	}

	data.RedirectTo = target

	if err := m.store.Put(ctx, sid, data); err != nil {
		return fmt.Errorf("failed to save redirect target: %w", err)
	}

	m.setCookie(w, sid)
	return nil
}

// ConsumePostLoginRedirect reads and clears the redirect target in one
// step, so it is used at most once. Returns "" when none is pending.
func (m *Manager) ConsumePostLoginRedirect(r *http.Request) (string, error) {
	ctx := r.Context()
	sid := m.sessionID(r)
	if sid == "" {
		return "", nil
	}

	data, err := m.store.Get(ctx, sid)
	if err != nil || data == nil || data.RedirectTo == "" {
		return "", err
	}

	target := data.RedirectTo
	data.RedirectTo = ""
	if err := m.store.Put(ctx, sid, data); err != nil {
		return "", fmt.Errorf("failed to clear redirect target: %w", err)
	}

	return target, nil
}

// Destroy removes the whole session record in a single store delete and
// expires the cookie. Idempotent: destroying an absent session is a no-op.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	sid := m.sessionID(r)
	if sid != "" {
		if err := m.store.Delete(r.Context(), sid); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}

	m.clearCookie(w)
	return nil
}

func validRedirectTarget(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
}
