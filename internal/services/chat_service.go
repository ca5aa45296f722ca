package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/haakonsb/liftchat/internal/gateway"
	"github.com/haakonsb/liftchat/internal/models"
)

// How many recent messages are sent to the model as context, and how
// long an auto-generated conversation title may get.
const (
	historyLimit  = 12
	titleMaxRunes = 60
)

// ConversationStore defines the conversation/message persistence the chat
// service consumes. Implemented by repositories.ConversationRepository.
type ConversationStore interface {
	Create(ctx context.Context, userID int64) (*models.Conversation, error)
	GetForUser(ctx context.Context, id, userID int64) (*models.Conversation, error)
	LatestIDForUser(ctx context.Context, userID int64) (int64, error)
	ListForUser(ctx context.Context, userID int64) ([]*models.Conversation, error)
	SetTitle(ctx context.Context, id int64, title string) error
	AppendMessage(ctx context.Context, conversationID int64, role models.MessageRole, content string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID int64) ([]*models.Message, error)
	RecentHistory(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error)
}

// Completer is the language-model gateway contract. Implemented by
// gateway.Client.
type Completer interface {
	Complete(ctx context.Context, messages []gateway.Message) (string, error)
}

// ChatService orchestrates conversations: it persists the user's message,
// assembles recent history for the gateway and stores the reply.
type ChatService struct {
	conversations ConversationStore
	completer     Completer
	systemPrompt  string
	logger        *slog.Logger
}

func NewChatService(conversations ConversationStore, completer Completer, systemPrompt string, logger *slog.Logger) *ChatService {
	return &ChatService{
		conversations: conversations,
		completer:     completer,
		systemPrompt:  systemPrompt,
		logger:        logger,
	}
}

// Send appends the user's message to an owned conversation, asks the
// model for a reply and persists it. The returned message is the
// assistant's.
func (s *ChatService) Send(ctx context.Context, userID, conversationID int64, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &models.ValidationError{Violations: []string{"message_empty"}}
	}

	conv, err := s.conversations.GetForUser(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.conversations.AppendMessage(ctx, conv.ID, models.MessageRoleUser, content); err != nil {
		s.logger.Error("failed to store user message", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// First user message doubles as the conversation title.
	if conv.Title == "" {
		if err := s.conversations.SetTitle(ctx, conv.ID, truncateTitle(content)); err != nil {
			s.logger.Warn("failed to set conversation title", slog.Any("error", err))
		}
	}

	history, err := s.conversations.RecentHistory(ctx, conv.ID, historyLimit)
	if err != nil {
		s.logger.Error("failed to load conversation history", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	prompt := make([]gateway.Message, 0, len(history)+1)
	prompt = append(prompt, gateway.Message{Role: string(models.MessageRoleSystem), Content: s.systemPrompt})
	for _, msg := range history {
		prompt = append(prompt, gateway.Message{Role: string(msg.Role), Content: msg.Content})
	}

	reply, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, models.ErrServiceUnavailable) {
			return nil, models.ErrServiceUnavailable
		}
		s.logger.Error("completion failed", slog.Any("error", err))
		return nil, models.ErrServiceUnavailable
	}

	assistantMsg, err := s.conversations.AppendMessage(ctx, conv.ID, models.MessageRoleAssistant, reply)
	if err != nil {
		s.logger.Error("failed to store assistant message", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return assistantMsg, nil
}

// Messages lists a conversation's messages oldest-first for display,
// enforcing ownership.
func (s *ChatService) Messages(ctx context.Context, userID, conversationID int64) ([]*models.Message, error) {
	conv, err := s.conversations.GetForUser(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	return s.conversations.ListMessages(ctx, conv.ID)
}

// StartConversation creates a fresh conversation for the user.
func (s *ChatService) StartConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	return s.conversations.Create(ctx, userID)
}

// Conversations lists the user's conversations, newest first.
func (s *ChatService) Conversations(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	return s.conversations.ListForUser(ctx, userID)
}

// DefaultConversationID is the post-login landing conversation: the most
// recent one, created on demand when the user has none yet.
func (s *ChatService) DefaultConversationID(ctx context.Context, userID int64) (int64, error) {
	id, err := s.conversations.LatestIDForUser(ctx, userID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return 0, err
	}

	conv, err := s.conversations.Create(ctx, userID)
	if err != nil {
		return 0, err
	}
	return conv.ID, nil
}

func truncateTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleMaxRunes-1]) + "…"
}
