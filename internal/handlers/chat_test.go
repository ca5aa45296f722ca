package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/haakonsb/liftchat/internal/auth"
	"github.com/haakonsb/liftchat/internal/handlers"
	"github.com/haakonsb/liftchat/internal/models"
	"github.com/haakonsb/liftchat/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatService struct {
	conversation *models.Conversation
	messages     []*models.Message
	reply        *models.Message
	err          error

	sentContent string
	sentUserID  int64
}

func (s *stubChatService) StartConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.conversation, nil
}

func (s *stubChatService) Conversations(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*models.Conversation{s.conversation}, nil
}

func (s *stubChatService) Messages(ctx context.Context, userID, conversationID int64) ([]*models.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.messages, nil
}

func (s *stubChatService) Send(ctx context.Context, userID, conversationID int64, content string) (*models.Message, error) {
	s.sentUserID = userID
	s.sentContent = content
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

// chatRouter wires the handler the way the application does, behind the
// session middleware and chi URL params.
func chatRouter(service *stubChatService, sm *session.Manager) http.Handler {
	handler := handlers.NewChatHandler(service)
	r := chi.NewRouter()
	r.Use(auth.WithSession(sm))
	r.Post("/chat/conversations", handler.StartConversation)
	r.Get("/chat/conversations", handler.ListConversations)
	r.Get("/chat/conversations/{conversationID}/messages", handler.ListMessages)
	r.Post("/chat/conversations/{conversationID}/messages", handler.SendMessage)
	return r
}

func loggedInCookies(t *testing.T, sm *session.Manager, userID int64) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	user := &models.User{ID: userID, Email: "kari@example.com", Role: models.RoleUser}
	require.NoError(t, sm.Establish(rec, req, user))
	return rec.Result().Cookies()
}

func doJSON(handler http.Handler, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSendMessage_ReturnsAssistantReply(t *testing.T) {
	service := &stubChatService{reply: &models.Message{
		ID: 11, ConversationID: 5, Role: models.MessageRoleAssistant,
		Content: "Start with an empty bar.", CreatedAt: time.Now(),
	}}
	sm := testSessionManager()
	router := chatRouter(service, sm)
	cookies := loggedInCookies(t, sm, 4)

	rec := doJSON(router, http.MethodPost, "/chat/conversations/5/messages",
		map[string]string{"content": "How do I learn to snatch?"}, cookies)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp handlers.MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "assistant", resp.Role)
	assert.Equal(t, "Start with an empty bar.", resp.Content)
	assert.Equal(t, int64(4), service.sentUserID)
	assert.Equal(t, "How do I learn to snatch?", service.sentContent)
}

func TestSendMessage_RequiresSession(t *testing.T) {
	service := &stubChatService{}
	router := chatRouter(service, testSessionManager())

	rec := doJSON(router, http.MethodPost, "/chat/conversations/5/messages",
		map[string]string{"content": "hello"}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSendMessage_UnownedConversation(t *testing.T) {
	service := &stubChatService{err: models.ErrNotFound}
	sm := testSessionManager()
	router := chatRouter(service, sm)
	cookies := loggedInCookies(t, sm, 4)

	rec := doJSON(router, http.MethodPost, "/chat/conversations/99/messages",
		map[string]string{"content": "hello"}, cookies)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessage_AssistantUnavailable(t *testing.T) {
	service := &stubChatService{err: models.ErrServiceUnavailable}
	sm := testSessionManager()
	router := chatRouter(service, sm)
	cookies := loggedInCookies(t, sm, 4)

	rec := doJSON(router, http.MethodPost, "/chat/conversations/5/messages",
		map[string]string{"content": "hello"}, cookies)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSendMessage_EmptyContent(t *testing.T) {
	service := &stubChatService{err: &models.ValidationError{Violations: []string{"message_empty"}}}
	sm := testSessionManager()
	router := chatRouter(service, sm)
	cookies := loggedInCookies(t, sm, 4)

	rec := doJSON(router, http.MethodPost, "/chat/conversations/5/messages",
		map[string]string{"content": "   "}, cookies)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message_empty")
}

func TestSendMessage_BadConversationID(t *testing.T) {
	service := &stubChatService{}
	sm := testSessionManager()
	router := chatRouter(service, sm)
	cookies := loggedInCookies(t, sm, 4)

	rec := doJSON(router, http.MethodPost, "/chat/conversations/abc/messages",
		map[string]string{"content": "hello"}, cookies)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMessages_ReturnsTranscript(t *testing.T) {
	service := &stubChatService{messages: []*models.Message{
		{ID: 1, Role: models.MessageRoleUser, Content: "hi"},
		{ID: 2, Role: models.MessageRoleAssistant, Content: "hello"},
	}}
	sm := testSessionManager()
	router := chatRouter(service, sm)
	cookies := loggedInCookies(t, sm, 4)

	rec := doJSON(router, http.MethodGet, "/chat/conversations/5/messages", nil, cookies)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []handlers.MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "user", resp[0].Role)
	assert.Equal(t, "assistant", resp[1].Role)
}

func TestStartConversation_Created(t *testing.T) {
	service := &stubChatService{conversation: &models.Conversation{ID: 7, UserID: 4}}
	sm := testSessionManager()
	router := chatRouter(service, sm)
	cookies := loggedInCookies(t, sm, 4)

	rec := doJSON(router, http.MethodPost, "/chat/conversations", nil, cookies)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp handlers.ConversationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(7), resp.ID)
}
