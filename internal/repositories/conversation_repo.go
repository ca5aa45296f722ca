package repositories

import (
	"context"
	"fmt"

	"github.com/haakonsb/liftchat/internal/database"
	"github.com/haakonsb/liftchat/internal/models"
	"github.com/jackc/pgx/v5"
)

// ConversationRepository persists conversations and their messages.
type ConversationRepository struct {
	db *database.DB
}

func NewConversationRepository(db *database.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, userID int64) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (user_id)
		VALUES ($1)
		RETURNING id, user_id, title, created_at
	`

	var conv models.Conversation
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &conv, nil
}

// GetForUser fetches a conversation only when it belongs to the given
// user; anything else is ErrNotFound.
func (r *ConversationRepository) GetForUser(ctx context.Context, id, userID int64) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at
		FROM conversations WHERE id = $1 AND user_id = $2
	`

	var conv models.Conversation
	err := r.db.Pool.QueryRow(ctx, query, id, userID).Scan(
		&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &conv, nil
}

// LatestIDForUser returns the most recently created conversation for a
// user, or ErrNotFound when they have none.
func (r *ConversationRepository) LatestIDForUser(ctx context.Context, userID int64) (int64, error) {
	query := `
		SELECT id FROM conversations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var id int64
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&id)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return id, nil
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at
		FROM conversations WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]*models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, &conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return conversations, nil
}

func (r *ConversationRepository) SetTitle(ctx context.Context, id int64, title string) error {
	query := `UPDATE conversations SET title = $1 WHERE id = $2`
	_, err := r.db.Pool.Exec(ctx, query, title, id)
	return database.MapPostgresError(err)
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, conversationID int64, role models.MessageRole, content string) (*models.Message, error) {
	query := `
		INSERT INTO messages (conversation_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING id, conversation_id, role, content, created_at
	`

	var msg models.Message
	err := r.db.Pool.QueryRow(ctx, query, conversationID, role, content).Scan(
		&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &msg, nil
}

func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	return scanMessageRows(rows)
}

// RecentHistory returns the most recent messages of a conversation in
// chronological order, bounded by limit. Used to assemble gateway context.
func (r *ConversationRepository) RecentHistory(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM (
			SELECT id, conversation_id, role, content, created_at
			FROM messages WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query message history: %w", err)
	}

	return scanMessageRows(rows)
}

func scanMessageRows(rows pgx.Rows) ([]*models.Message, error) {
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return messages, nil
}
