// Package apperr defines the error taxonomy shared by the authentication
// flows. Services return *Error for expected failures; the HTTP boundary maps
// each Kind to a status code in one place.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicateEmail
	KindInvalidCredentials
	KindUnverifiedEmail
	KindInvalidOrExpired
	KindUnauthenticated
	KindNotFound
)

var kindInfo = map[Kind]struct {
	status int
	code   string
}{
	KindInternal:           {http.StatusInternalServerError, "INTERNAL"},
	KindValidation:         {http.StatusBadRequest, "VALIDATION_FAILED"},
	KindDuplicateEmail:     {http.StatusBadRequest, "DUPLICATE_EMAIL"},
	KindInvalidCredentials: {http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	KindUnverifiedEmail:    {http.StatusUnauthorized, "EMAIL_NOT_VERIFIED"},
	KindInvalidOrExpired:   {http.StatusBadRequest, "INVALID_OR_EXPIRED"},
	KindUnauthenticated:    {http.StatusUnauthorized, "UNAUTHENTICATED"},
	KindNotFound:           {http.StatusNotFound, "NOT_FOUND"},
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	if info, ok := kindInfo[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Code returns the stable machine-readable code for the kind.
func (k Kind) Code() string {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return kindInfo[KindInternal].code
}

// Error is a classified application error. Message is safe to show to
// clients; Err carries the underlying cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can compare against the sentinel values below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is checks; they match any message of the same kind.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrDuplicateEmail     = &Error{Kind: KindDuplicateEmail}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrUnverifiedEmail    = &Error{Kind: KindUnverifiedEmail}
	ErrInvalidOrExpired   = &Error{Kind: KindInvalidOrExpired}
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInternal           = &Error{Kind: KindInternal}
)

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func DuplicateEmail() *Error {
	return &Error{Kind: KindDuplicateEmail, Message: "Email already exists, please use a different one"}
}

// InvalidCredentials never says whether the account or the password was wrong.
func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "Invalid email or password"}
}

func UnverifiedEmail() *Error {
	return &Error{Kind: KindUnverifiedEmail, Message: "Please verify your email before logging in"}
}

// InvalidOrExpired covers wrong, expired, consumed and wrong-purpose codes alike.
func InvalidOrExpired() *Error {
	return &Error{Kind: KindInvalidOrExpired, Message: "Invalid or expired OTP"}
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "Unauthorized - No valid session"}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Internal wraps an unexpected failure. The cause is never sent to clients.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal Server Error", Err: err}
}

// KindOf extracts the Kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
