package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haakonsb/liftchat/internal/models"
	pkgauth "github.com/haakonsb/liftchat/pkg/auth"
	pkglogger "github.com/haakonsb/liftchat/pkg/logger"
)

// UserDirectory defines the account storage contract the facade consumes.
// Implemented by repositories.UserRepository.
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// LockoutTracker defines the brute-force tracking contract the facade
// consumes. Implemented by LockoutService.
type LockoutTracker interface {
	IsLockedOut(ctx context.Context, identifier string) (bool, error)
	RemainingAttempts(ctx context.Context, identifier string) (int, error)
	RecordFailedAttempt(ctx context.Context, identifier, ipAddress string) error
	ClearFailedAttempts(ctx context.Context, identifier string) error
}

// AuthService is the single entry point for credential registration and
// verification. Session establishment stays with the HTTP boundary, which
// composes this service with the session manager.
type AuthService struct {
	users       UserDirectory
	lockout     LockoutTracker
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(users UserDirectory, lockout LockoutTracker, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		users:       users,
		lockout:     lockout,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Register validates credentials, checks email uniqueness and creates the
// account. It does not establish a session; callers decide whether to
// auto-login. All violated password rules are reported together.
func (s *AuthService) Register(ctx context.Context, email, password, username string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	violations := make([]string, 0)
	if !pkgauth.ValidateEmail(email) {
		violations = append(violations, "email_invalid")
	}
	violations = append(violations, pkgauth.ValidatePassword(password)...)

	if len(violations) > 0 {
		return nil, &models.ValidationError{Violations: violations}
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to check email uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if exists {
		return nil, models.ErrConflict
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = pkgauth.EmailLocalPart(email)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// The uniqueness check above is best effort; the unique constraint is
	// the final authority under concurrent duplicate registration.
	user, err := s.users.Create(ctx, &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", pkglogger.SanitizedEmail(user.Email)))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "register_success",
		UserID:    user.ID,
		Success:   true,
	})

	return user, nil
}

// Authenticate verifies an identifier/password pair. Once locked out the
// password is never compared, so lockout adds no hashing work and no
// timing signal. On mismatch the attempt is recorded and the failure
// carries the remaining-attempt count; on success all attempts for the
// identifier are cleared.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password, ipAddress string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, models.ErrUnauthorized
	}

	locked, err := s.lockout.IsLockedOut(ctx, identifier)
	if err != nil {
		// Fail closed: if tracking storage is unavailable, deny.
		s.logger.Error("failed to evaluate lockout state", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if locked {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			IPAddress:     ipAddress,
			FailureReason: "locked_out",
			Success:       false,
		})
		return nil, models.ErrLockedOut
	}

	user, err := s.users.GetByEmailOrUsername(ctx, identifier)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Unknown identifier and wrong password take the same path so the
	// two are indistinguishable to the caller.
	if user == nil || !pkgauth.ComparePassword(user.PasswordHash, password) {
		return nil, s.recordFailure(ctx, identifier, ipAddress)
	}

	if err := s.lockout.ClearFailedAttempts(ctx, identifier); err != nil {
		s.logger.Error("failed to clear login attempts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user authenticated",
		slog.Int64("user_id", user.ID),
		slog.String("email", pkglogger.SanitizedEmail(user.Email)))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return user, nil
}

// recordFailure durably records the failed attempt and shapes the caller
// error: locked-out once the threshold is reached, otherwise invalid
// credentials with the remaining count.
func (s *AuthService) recordFailure(ctx context.Context, identifier, ipAddress string) error {
	if err := s.lockout.RecordFailedAttempt(ctx, identifier, ipAddress); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
		return fmt.Errorf("recording login attempt: %w", models.ErrInternalServer)
	}

	remaining, err := s.lockout.RemainingAttempts(ctx, identifier)
	if err != nil {
		s.logger.Error("failed to count remaining attempts", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("login failed: invalid credentials")
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		IPAddress:     ipAddress,
		FailureReason: "invalid_credentials",
		Success:       false,
	})

	if remaining == 0 {
		return models.ErrLockedOut
	}
	return &models.InvalidCredentialsError{RemainingAttempts: remaining}
}
