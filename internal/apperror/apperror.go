// Package apperror defines the tagged error type shared by the service and
// HTTP layers. Callers branch on Kind, never on message text.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the failure categories of the authentication flow.
type Kind int

const (
	Unknown Kind = iota
	EmailInUse
	InvalidEmail
	Validation
	Persistence
	UserNotFound
	BadCredentials
	NotAuthenticated
	InvalidToken
	ExpiredToken
	StaleCredentials
)

var kindNames = map[Kind]string{
	Unknown:          "unknown",
	EmailInUse:       "email_in_use",
	InvalidEmail:     "invalid_email",
	Validation:       "validation",
	Persistence:      "persistence",
	UserNotFound:     "user_not_found",
	BadCredentials:   "bad_credentials",
	NotAuthenticated: "not_authenticated",
	InvalidToken:     "invalid_token",
	ExpiredToken:     "expired_token",
	StaleCredentials: "stale_credentials",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure. Message is safe to show to clients; Err is
// the underlying cause and is only meant for server-side logs.
type Error struct {
	Kind    Kind
	Message string
	// Status overrides the default HTTP status of Kind when non-zero.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the error to an HTTP status.
func (e *Error) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case EmailInUse:
		return http.StatusConflict
	case InvalidEmail, Validation:
		return http.StatusBadRequest
	case UserNotFound:
		return http.StatusNotFound
	case BadCredentials, NotAuthenticated, InvalidToken, ExpiredToken, StaleCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WithStatus returns a copy of e answering with status instead of the default.
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewEmailInUse(err error) *Error {
	return New(EmailInUse, "Email is in use.", err)
}

func NewInvalidEmail() *Error {
	return New(InvalidEmail, "Invalid Email.", nil)
}

func NewValidation(message string, err error) *Error {
	return New(Validation, message, err)
}

// NewPersistence hides the cause behind a generic message.
func NewPersistence(err error) *Error {
	return New(Persistence, "Internal server error", err)
}

func NewUserNotFound(message string) *Error {
	return New(UserNotFound, message, nil)
}

func NewBadCredentials(message string) *Error {
	return New(BadCredentials, message, nil)
}

func NewNotAuthenticated() *Error {
	return New(NotAuthenticated, "Not logged in", nil)
}

func NewInvalidToken(err error) *Error {
	return New(InvalidToken, "Invalid Token", err)
}

func NewExpiredToken(err error) *Error {
	return New(ExpiredToken, "Your session token is expired, Login again!", err)
}

func NewStaleCredentials() *Error {
	return New(StaleCredentials, "Your password has been changed, login again!", nil)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the Kind of err, or Unknown when err is not classified.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
