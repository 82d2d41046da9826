// Package apperror defines the error kinds surfaced by the API and their HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	Internal Kind = iota
	Validation
	Unauthorized
	Forbidden
	NotFound
	Conflict
	InvalidMedia
	ServiceUnavailable
	Upstream
	Configuration
)

var kindNames = map[Kind]string{
	Internal:           "Internal",
	Validation:         "Validation",
	Unauthorized:       "Unauthorized",
	Forbidden:          "Forbidden",
	NotFound:           "NotFound",
	Conflict:           "Conflict",
	InvalidMedia:       "InvalidMedia",
	ServiceUnavailable: "ServiceUnavailable",
	Upstream:           "UpstreamError",
	Configuration:      "ConfigurationError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Internal"
}

// AppError is an error with a client-facing message and an optional underlying cause.
type AppError struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code for the error kind.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case Validation, InvalidMedia:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates an AppError of the given kind.
func New(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func NewValidation(message string, details ...string) *AppError {
	return &AppError{Kind: Validation, Message: message, Details: details}
}

func NewUnauthorized(message string, err error) *AppError {
	return New(Unauthorized, message, err)
}

func NewForbidden(message string) *AppError {
	return New(Forbidden, message, nil)
}

func NewNotFound(message string) *AppError {
	return New(NotFound, message, nil)
}

func NewConflict(message string, err error) *AppError {
	return New(Conflict, message, err)
}

func NewInvalidMedia(message string, err error) *AppError {
	return New(InvalidMedia, message, err)
}

func NewServiceUnavailable(message string, err error) *AppError {
	return New(ServiceUnavailable, message, err)
}

func NewUpstream(message string, err error) *AppError {
	return New(Upstream, message, err)
}

func NewConfiguration(message string, err error) *AppError {
	return New(Configuration, message, err)
}

func NewInternal(message string, err error) *AppError {
	return New(Internal, message, err)
}

// KindOf reports the kind of the first AppError in err's chain, or Internal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// From returns the AppError in err's chain, wrapping anything else as Internal.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternal("Internal server error", err)
}

// IsKind reports whether err's chain holds an AppError of the given kind.
func IsKind(err error, kind Kind) bool { return isKind(err, kind) }

func IsNotFound(err error) bool     { return isKind(err, NotFound) }
func IsConflict(err error) bool     { return isKind(err, Conflict) }
func IsForbidden(err error) bool    { return isKind(err, Forbidden) }
func IsUnauthorized(err error) bool { return isKind(err, Unauthorized) }
func IsValidation(err error) bool   { return isKind(err, Validation) }
func IsInvalidMedia(err error) bool { return isKind(err, InvalidMedia) }

func isKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
