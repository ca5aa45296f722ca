package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/haakonsb/liftchat/internal/models"
	"github.com/haakonsb/liftchat/internal/services"
	pkgauth "github.com/haakonsb/liftchat/pkg/auth"
	pkglogger "github.com/haakonsb/liftchat/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockUserDirectory implements UserDirectory in memory.
type MockUserDirectory struct {
	users  map[int64]*models.User
	nextID int64
}

func NewMockUserDirectory() *MockUserDirectory {
	return &MockUserDirectory{users: make(map[int64]*models.User), nextID: 1}
}

func (m *MockUserDirectory) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *MockUserDirectory) GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	for _, user := range m.users {
		// Emails match case-insensitively, usernames case-exactly,
		// mirroring the SQL lookup.
		if strings.EqualFold(user.Email, identifier) || user.Username == identifier {
			copied := *user
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockUserDirectory) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, user := range m.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserDirectory) Create(ctx context.Context, user *models.User) (*models.User, error) {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return nil, models.ErrConflict
		}
	}
	created := *user
	created.ID = m.nextID
	m.nextID++
	if created.Role == "" {
		created.Role = models.RoleUser
	}
	m.users[created.ID] = &created
	copied := created
	return &copied, nil
}

func newAuthService(users *MockUserDirectory, attempts *MockLoginAttemptRepository) (*services.AuthService, *services.LockoutService) {
	logger := testLogger()
	lockout := newLockoutService(attempts, nil)
	return services.NewAuthService(users, lockout, logger, pkglogger.NewAuditLogger(logger)), lockout
}

func TestRegister_Success(t *testing.T) {
	svc, _ := newAuthService(NewMockUserDirectory(), NewMockLoginAttemptRepository())

	user, err := svc.Register(context.Background(), "User@Example.com", "Abc12345!", "")
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, "user", user.Username, "username defaults to the email local part")
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "Abc12345!", user.PasswordHash)
}

func TestRegister_ExplicitUsername(t *testing.T) {
	svc, _ := newAuthService(NewMockUserDirectory(), NewMockLoginAttemptRepository())

	user, err := svc.Register(context.Background(), "kari@example.com", "Abc12345!", "kari_lifts")
	require.NoError(t, err)
	assert.Equal(t, "kari_lifts", user.Username)
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	svc, _ := newAuthService(NewMockUserDirectory(), NewMockLoginAttemptRepository())
	ctx := context.Background()

	_, err := svc.Register(ctx, "User@Example.com", "Abc12345!", "")
	require.NoError(t, err)

	// Same address in different case is the same identity.
	_, err = svc.Register(ctx, "user@example.com", "Other123!", "")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestRegister_ReportsAllViolations(t *testing.T) {
	svc, _ := newAuthService(NewMockUserDirectory(), NewMockLoginAttemptRepository())

	_, err := svc.Register(context.Background(), "not-an-email", "short", "")

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Violations, "email_invalid")
	assert.Contains(t, validationErr.Violations, pkgauth.RuleMinLength)
	assert.Contains(t, validationErr.Violations, pkgauth.RuleUppercase)
	assert.Contains(t, validationErr.Violations, pkgauth.RuleDigit)
	assert.Contains(t, validationErr.Violations, pkgauth.RuleSpecial)
}

func registerTestUser(t *testing.T, svc *services.AuthService) *models.User {
	t.Helper()
	user, err := svc.Register(context.Background(), "kari@example.com", "Abc12345!", "kari")
	require.NoError(t, err)
	return user
}

func TestAuthenticate_SuccessByEmailAndUsername(t *testing.T) {
	svc, _ := newAuthService(NewMockUserDirectory(), NewMockLoginAttemptRepository())
	registered := registerTestUser(t, svc)
	ctx := context.Background()

	byEmail, err := svc.Authenticate(ctx, "kari@example.com", "Abc12345!", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, byEmail.ID)

	byUsername, err := svc.Authenticate(ctx, "kari", "Abc12345!", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, byUsername.ID)
}

func TestAuthenticate_EmailCaseInsensitive(t *testing.T) {
	svc, _ := newAuthService(NewMockUserDirectory(), NewMockLoginAttemptRepository())
	ctx := context.Background()

	registered, err := svc.Register(ctx, "User@Example.com", "Abc12345!", "kari")
	require.NoError(t, err)

	// Logging in with the same mixed-case string used at registration
	// must resolve to the normalized account.
	user, err := svc.Authenticate(ctx, "User@Example.com", "Abc12345!", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	user, err = svc.Authenticate(ctx, "USER@EXAMPLE.COM", "Abc12345!", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	// Usernames stay case-exact.
	_, err = svc.Authenticate(ctx, "KARI", "Abc12345!", "203.0.113.9")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthenticate_WrongPasswordReportsRemaining(t *testing.T) {
	attempts := NewMockLoginAttemptRepository()
	svc, _ := newAuthService(NewMockUserDirectory(), attempts)
	registerTestUser(t, svc)

	_, err := svc.Authenticate(context.Background(), "kari@example.com", "Wrong123!", "203.0.113.9")

	var invalidErr *models.InvalidCredentialsError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, 2, invalidErr.RemainingAttempts)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthenticate_UnknownIdentifierIndistinguishable(t *testing.T) {
	svc, _ := newAuthService(NewMockUserDirectory(), NewMockLoginAttemptRepository())
	registerTestUser(t, svc)
	ctx := context.Background()

	_, wrongPassword := svc.Authenticate(ctx, "kari@example.com", "Wrong123!", "203.0.113.9")
	_, unknownUser := svc.Authenticate(ctx, "nobody@example.com", "Wrong123!", "203.0.113.9")

	// Both failures look identical to the caller.
	var a, b *models.InvalidCredentialsError
	require.ErrorAs(t, wrongPassword, &a)
	require.ErrorAs(t, unknownUser, &b)
	assert.Equal(t, a.RemainingAttempts, b.RemainingAttempts)
}

func TestAuthenticate_ThirdFailureLocksOut(t *testing.T) {
	svc, _ := newAuthService(NewMockUserDirectory(), NewMockLoginAttemptRepository())
	registerTestUser(t, svc)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Authenticate(ctx, "kari@example.com", "Wrong123!", "203.0.113.9")
		var invalidErr *models.InvalidCredentialsError
		require.ErrorAs(t, err, &invalidErr)
	}

	_, err := svc.Authenticate(ctx, "kari@example.com", "Wrong123!", "203.0.113.9")
	assert.ErrorIs(t, err, models.ErrLockedOut)
}

func TestAuthenticate_LockedOutEvenWithCorrectPassword(t *testing.T) {
	svc, _ := newAuthService(NewMockUserDirectory(), NewMockLoginAttemptRepository())
	registerTestUser(t, svc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = svc.Authenticate(ctx, "kari@example.com", "Wrong123!", "203.0.113.9")
	}

	// The correct password no longer helps while locked out.
	_, err := svc.Authenticate(ctx, "kari@example.com", "Abc12345!", "203.0.113.9")
	assert.ErrorIs(t, err, models.ErrLockedOut)
}

func TestAuthenticate_SuccessClearsAttempts(t *testing.T) {
	attempts := NewMockLoginAttemptRepository()
	svc, lockout := newAuthService(NewMockUserDirectory(), attempts)
	registerTestUser(t, svc)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = svc.Authenticate(ctx, "kari@example.com", "Wrong123!", "203.0.113.9")
	}

	_, err := svc.Authenticate(ctx, "kari@example.com", "Abc12345!", "203.0.113.9")
	require.NoError(t, err)

	remaining, err := lockout.RemainingAttempts(ctx, "kari@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestAuthenticate_FailsClosedOnAttemptStorageError(t *testing.T) {
	attempts := NewMockLoginAttemptRepository()
	svc, _ := newAuthService(NewMockUserDirectory(), attempts)
	registerTestUser(t, svc)

	attempts.recordErr = errors.New("connection refused")

	_, err := svc.Authenticate(context.Background(), "kari@example.com", "Wrong123!", "203.0.113.9")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}
