package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haakonsb/liftchat/internal/models"
)

// LoginAttemptRepository defines the storage operations the lockout
// tracker needs. Implemented by repositories.LoginAttemptRepository.
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
	CountSince(ctx context.Context, identifier string, since time.Time) (int, error)
	DeleteForIdentifier(ctx context.Context, identifier string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LockoutConfig holds the brute-force policy: how many failed attempts
// within the sliding window lock an identifier out.
type LockoutConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// LockoutService tracks failed authentication attempts per identifier and
// computes lockout state over a sliding window. Attempts with a timestamp
// exactly at the window boundary still count; strictly older ones are
// expired.
type LockoutService struct {
	repo   LoginAttemptRepository
	config LockoutConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewLockoutService(repo LoginAttemptRepository, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *LockoutService) WithClock(now func() time.Time) *LockoutService {
	s.now = now
	return s
}

// RecordFailedAttempt durably appends one attempt record. Each call is an
// independent insert, so concurrent failures for the same identifier are
// all counted. Storage errors propagate: tracking must not silently stop.
func (s *LockoutService) RecordFailedAttempt(ctx context.Context, identifier, ipAddress string) error {
	now := s.now()

	attempt := &models.LoginAttempt{
		Identifier:  identifier,
		IPAddress:   ipAddress,
		AttemptTime: now,
	}

	if err := s.repo.Record(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	// Opportunistic cleanup of expired records across all identifiers.
	// Best effort: counting already ignores expired rows.
	if deleted, err := s.repo.DeleteOlderThan(ctx, now.Add(-s.config.Window)); err != nil {
		s.logger.Warn("failed to purge expired login attempts", slog.Any("error", err))
	} else if deleted > 0 {
		s.logger.Debug("purged expired login attempts", slog.Int64("rows_deleted", deleted))
	}

	return nil
}

// IsLockedOut reports whether the identifier has reached the attempt
// threshold within the window. One "now" snapshot per evaluation.
func (s *LockoutService) IsLockedOut(ctx context.Context, identifier string) (bool, error) {
	count, err := s.repo.CountSince(ctx, identifier, s.now().Add(-s.config.Window))
	if err != nil {
		return false, fmt.Errorf("failed to count login attempts: %w", err)
	}
	return count >= s.config.MaxAttempts, nil
}

// RemainingAttempts returns how many more failures the identifier can
// accumulate before lockout, never below zero.
func (s *LockoutService) RemainingAttempts(ctx context.Context, identifier string) (int, error) {
	count, err := s.repo.CountSince(ctx, identifier, s.now().Add(-s.config.Window))
	if err != nil {
		return 0, fmt.Errorf("failed to count login attempts: %w", err)
	}

	remaining := s.config.MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// ClearFailedAttempts deletes every record for the identifier. Called
// only after a successful authentication.
func (s *LockoutService) ClearFailedAttempts(ctx context.Context, identifier string) error {
	if err := s.repo.DeleteForIdentifier(ctx, identifier); err != nil {
		return fmt.Errorf("failed to clear login attempts: %w", err)
	}
	return nil
}

// Window exposes the configured lockout duration for boundary messages.
func (s *LockoutService) Window() time.Duration {
	return s.config.Window
}
