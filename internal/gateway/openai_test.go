package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haakonsb/liftchat/internal/config"
	"github.com/haakonsb/liftchat/internal/gateway"
	"github.com/haakonsb/liftchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *gateway.Client {
	return gateway.NewClient(&config.OpenAIConfig{
		APIKey:      "sk-test",
		Model:       "gpt-4o-mini",
		BaseURL:     baseURL,
		Temperature: 0.3,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestComplete_ReturnsReply(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Squat twice a week.  "}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	reply, err := client.Complete(context.Background(), []gateway.Message{
		{Role: "system", Content: "You are a coach."},
		{Role: "user", Content: "How often should I squat?"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Squat twice a week.", reply)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
}

func TestComplete_EmptyHistoryRejected(t *testing.T) {
	client := newTestClient("http://localhost:0")

	_, err := client.Complete(context.Background(), nil)
	assert.Error(t, err)
}

func TestComplete_ProviderErrorIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Complete(context.Background(), []gateway.Message{{Role: "user", Content: "hi"}})

	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}

func TestComplete_MalformedResponseIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Complete(context.Background(), []gateway.Message{{Role: "user", Content: "hi"}})

	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}

func TestComplete_TransportErrorIsServiceUnavailable(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Complete(context.Background(), []gateway.Message{{Role: "user", Content: "hi"}})

	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}
