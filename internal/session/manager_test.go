package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haakonsb/liftchat/internal/config"
	"github.com/haakonsb/liftchat/internal/models"
	"github.com/haakonsb/liftchat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *session.Manager {
	return session.NewManager(session.NewMemoryStore(), &config.SessionConfig{
		CookieName: "sid",
		TTL:        time.Hour,
	})
}

// requestWithCookies builds a follow-up request carrying the cookies the
// previous response set, the way a browser would.
func requestWithCookies(t *testing.T, rec *httptest.ResponseRecorder, target string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge >= 0 {
			req.AddCookie(cookie)
		}
	}
	return req
}

func testUser() *models.User {
	return &models.User{ID: 42, Username: "kari", Role: models.RoleUser}
}

func TestManager_EstablishAndCurrent(t *testing.T) {
	sm := newTestManager()

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Establish(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil), testUser()))

	data, err := sm.Current(requestWithCookies(t, rec, "/chat"))
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.True(t, data.Authenticated())
	assert.Equal(t, int64(42), data.AccountID)
	assert.Equal(t, "kari", data.Username)
	assert.Equal(t, models.RoleUser, data.Role)
}

func TestManager_CurrentWithoutSession(t *testing.T) {
	sm := newTestManager()

	data, err := sm.Current(httptest.NewRequest(http.MethodGet, "/chat", nil))
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestManager_EstablishOverwritesExistingSession(t *testing.T) {
	sm := newTestManager()

	first := httptest.NewRecorder()
	require.NoError(t, sm.Establish(first, httptest.NewRequest(http.MethodPost, "/auth/login", nil), testUser()))

	// Same transport session logs in as a different account.
	second := httptest.NewRecorder()
	other := &models.User{ID: 7, Username: "ola", Role: models.RoleAdmin}
	require.NoError(t, sm.Establish(second, requestWithCookies(t, first, "/auth/login"), other))

	data, err := sm.Current(requestWithCookies(t, second, "/chat"))
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, int64(7), data.AccountID)

	// The old identifier no longer resolves.
	old, err := sm.Current(requestWithCookies(t, first, "/chat"))
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestManager_DestroyClearsEverythingAtOnce(t *testing.T) {
	sm := newTestManager()

	login := httptest.NewRecorder()
	require.NoError(t, sm.Establish(login, httptest.NewRequest(http.MethodPost, "/auth/login", nil), testUser()))

	logout := httptest.NewRecorder()
	require.NoError(t, sm.Destroy(logout, requestWithCookies(t, login, "/logout")))

	// Every field reads as absent afterwards, not just some.
	data, err := sm.Current(requestWithCookies(t, login, "/chat"))
	require.NoError(t, err)
	assert.Nil(t, data)

	target, err := sm.ConsumePostLoginRedirect(requestWithCookies(t, login, "/chat"))
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestManager_DestroyIsIdempotent(t *testing.T) {
	sm := newTestManager()

	login := httptest.NewRecorder()
	require.NoError(t, sm.Establish(login, httptest.NewRequest(http.MethodPost, "/auth/login", nil), testUser()))

	first := httptest.NewRecorder()
	require.NoError(t, sm.Destroy(first, requestWithCookies(t, login, "/logout")))

	// Second logout observes no session and still succeeds.
	second := httptest.NewRecorder()
	require.NoError(t, sm.Destroy(second, requestWithCookies(t, login, "/logout")))
}

func TestManager_PostLoginRedirectConsumedOnce(t *testing.T) {
	sm := newTestManager()

	rec := httptest.NewRecorder()
	require.NoError(t, sm.SetPostLoginRedirect(rec, httptest.NewRequest(http.MethodGet, "/chat/5", nil), "/chat/5"))

	req := requestWithCookies(t, rec, "/auth/login")
	target, err := sm.ConsumePostLoginRedirect(req)
	require.NoError(t, err)
	assert.Equal(t, "/chat/5", target)

	// Consume reads and clears in one step.
	target, err = sm.ConsumePostLoginRedirect(req)
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestManager_RedirectSurvivesLogin(t *testing.T) {
	sm := newTestManager()

	// An anonymous visitor is bounced from a protected page.
	bounce := httptest.NewRecorder()
	require.NoError(t, sm.SetPostLoginRedirect(bounce, httptest.NewRequest(http.MethodGet, "/chat/5", nil), "/chat/5"))

	// They log in; establishing rotates the session identifier but keeps
	// the pending redirect.
	login := httptest.NewRecorder()
	require.NoError(t, sm.Establish(login, requestWithCookies(t, bounce, "/auth/login"), testUser()))

	target, err := sm.ConsumePostLoginRedirect(requestWithCookies(t, login, "/auth/login"))
	require.NoError(t, err)
	assert.Equal(t, "/chat/5", target)
}

func TestManager_RejectsAbsoluteRedirectTargets(t *testing.T) {
	sm := newTestManager()

	for _, target := range []string{"https://evil.example", "//evil.example/path", ""} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		require.NoError(t, sm.SetPostLoginRedirect(rec, req, target))

		got, err := sm.ConsumePostLoginRedirect(requestWithCookies(t, rec, "/auth/login"))
		require.NoError(t, err)
		assert.Empty(t, got, "target %q", target)
	}
}
