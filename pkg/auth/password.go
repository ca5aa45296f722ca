package auth

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 8
)

// Password rule identifiers. Validation reports every violated rule so the
// caller can show complete guidance rather than one failure at a time.
const (
	RuleMinLength = "min_length"
	RuleUppercase = "uppercase"
	RuleLowercase = "lowercase"
	RuleDigit     = "digit"
	RuleSpecial   = "special"
)

// RuleDescriptions maps rule identifiers to user-facing messages.
var RuleDescriptions = map[string]string{
	RuleMinLength: fmt.Sprintf("must be at least %d characters", MinPasswordLen),
	RuleUppercase: "must contain at least one uppercase letter",
	RuleLowercase: "must contain at least one lowercase letter",
	RuleDigit:     "must contain at least one digit",
	RuleSpecial:   "must contain at least one special character",
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword reports whether password matches the stored hash.
// A malformed stored hash compares as a mismatch, never an error the
// caller must distinguish.
func ComparePassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// ValidatePassword evaluates every policy rule and returns the identifiers
// of all violated rules. An empty slice means the password is acceptable.
func ValidatePassword(password string) []string {
	violations := make([]string, 0)

	if len(password) < MinPasswordLen {
		violations = append(violations, RuleMinLength)
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if !hasUpper {
		violations = append(violations, RuleUppercase)
	}
	if !hasLower {
		violations = append(violations, RuleLowercase)
	}
	if !hasDigit {
		violations = append(violations, RuleDigit)
	}
	if !hasSpecial {
		violations = append(violations, RuleSpecial)
	}

	return violations
}

// ValidateEmail accepts only a syntactically valid single address. No
// DNS or disposable-domain checks.
func ValidateEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\n") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject display names and anything the parser normalized away.
	return addr.Address == email && strings.Count(email, "@") == 1
}

// EmailLocalPart returns the part of the address before the '@'. Used as
// the default username when none is supplied at registration.
func EmailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
