package repositories

import (
	"context"
	"time"

	"github.com/haakonsb/liftchat/internal/database"
	"github.com/haakonsb/liftchat/internal/models"
)

// LoginAttemptRepository handles database operations for failed login
// attempts. Every attempt is a discrete insert, never a read-modify-write
// counter, so concurrent writers cannot lose an attempt.
type LoginAttemptRepository struct {
	db *database.DB
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Record inserts one failed attempt row.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (identifier, ip_address, attempt_time)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.Identifier,
		attempt.IPAddress,
		attempt.AttemptTime,
	)

	return database.MapPostgresError(err)
}

// CountSince returns the number of attempts for an identifier at or after
// the given instant. An attempt exactly at the window boundary still counts.
func (r *LoginAttemptRepository) CountSince(ctx context.Context, identifier string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE identifier = $1 AND attempt_time >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, identifier, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// DeleteForIdentifier removes all attempts for an identifier, expired or
// not. Called after a successful authentication.
func (r *LoginAttemptRepository) DeleteForIdentifier(ctx context.Context, identifier string) error {
	query := `DELETE FROM login_attempts WHERE identifier = $1`
	_, err := r.db.Pool.Exec(ctx, query, identifier)
	return database.MapPostgresError(err)
}

// DeleteOlderThan removes attempts strictly older than the cutoff, across
// all identifiers. Bounds storage growth; correctness never depends on it.
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempt_time < $1`
	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
