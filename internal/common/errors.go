package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies a domain failure so the transport layer can map it to
// a status code without inspecting message text.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindInvalidCredentials
	KindForbidden
	KindNotFound
	KindTransient
)

// DomainError is the typed failure returned by the account service. It
// is a result value, never control flow across the authorization
// boundary.
type DomainError struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// ValidationError reports malformed, missing, or non-unique input with
// per-field messages.
func ValidationError(fields map[string]string) error {
	return &DomainError{Kind: KindValidation, Message: "Validation failed", Fields: fields}
}

// FieldError is a single-field validation failure.
func FieldError(field, message string) error {
	return &DomainError{Kind: KindValidation, Message: message, Fields: map[string]string{field: message}}
}

// ValidationMessage is a validation failure with no field detail, used
// where the original surface returns a bare message at 422.
func ValidationMessage(message string) error {
	return &DomainError{Kind: KindValidation, Message: message}
}

// InvalidCredentials carries one fixed message for both unknown email
// and wrong password so callers cannot enumerate accounts.
func InvalidCredentials() error {
	return &DomainError{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
}

// WrongPassword reports a failed current-password check on an already
// authenticated request.
func WrongPassword() error {
	return &DomainError{Kind: KindInvalidCredentials, Message: "Current password is incorrect"}
}

func Forbidden(message string) error {
	return &DomainError{Kind: KindForbidden, Message: message}
}

func NotFound(resource string) error {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// Transient wraps a store failure; the transport surfaces it as 5xx and
// may retry, the core never does.
func Transient(operation string, err error) error {
	return &DomainError{Kind: KindTransient, Message: fmt.Sprintf("failed to %s", operation), Err: err}
}

// KindOf extracts the kind of a domain error, or 0 for unknown errors.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus maps a domain error to its response status code.
func HTTPStatus(err error) int {
	return statusFor(KindOf(err))
}

// RespondError writes the JSON shape for a domain error: validation
// failures with field detail become {"errors": {...}}, everything else
// {"message": ...} at the mapped status.
func RespondError(c echo.Context, err error) error {
	var de *DomainError
	if !errors.As(err, &de) {
		c.Logger().Errorf("unhandled error: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	if de.Kind == KindTransient {
		c.Logger().Errorf("transient failure: %v", de)
	}
	if de.Kind == KindValidation && len(de.Fields) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{"errors": de.Fields})
	}
	return c.JSON(statusFor(de.Kind), map[string]string{"message": de.Message})
}
