package common

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"userhub/internal/models"
)

type contextKey string

// ActorKey holds the authenticated user resolved from the bearer token.
// There is no hidden global session state; the actor is threaded through
// the request context into every service call.
const ActorKey contextKey = "actor"

// WithActor returns a context carrying the authenticated user.
func WithActor(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ActorKey, user)
}

// GetActorFromContext extracts the authenticated user from the request
// context.
func GetActorFromContext(ctx context.Context) (*models.User, bool) {
	actor, ok := ctx.Value(ActorKey).(*models.User)
	return actor, ok
}

const maxNameLength = 255

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateName checks a first/last name: required, at most 255 code
// points.
func ValidateName(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if utf8.RuneCountInString(value) > maxNameLength {
		return fmt.Errorf("%s cannot exceed %d characters", fieldName, maxNameLength)
	}
	return nil
}

// ValidateEmail checks email syntax and length.
func ValidateEmail(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("email is required")
	}
	if utf8.RuneCountInString(value) > maxNameLength {
		return fmt.Errorf("email cannot exceed %d characters", maxNameLength)
	}
	if !emailPattern.MatchString(value) {
		return fmt.Errorf("email must be a valid email address")
	}
	return nil
}

// MinPasswordLength applies to registration and every password change.
const MinPasswordLength = 8

// ValidatePassword checks a plaintext password against the minimum
// length policy.
func ValidatePassword(value string) error {
	if value == "" {
		return fmt.Errorf("password is required")
	}
	if utf8.RuneCountInString(value) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
