// Package apperr defines the error taxonomy shared by services and HTTP
// handlers. Services return *Error values; handlers translate them to status
// codes with HTTPStatus.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindClientInput         Kind = "CLIENT_INPUT"
	KindNotFound            Kind = "NOT_FOUND"
	KindUpstreamTimeout     Kind = "UPSTREAM_TIMEOUT"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindUpstream            Kind = "UPSTREAM_ERROR"
	KindInternal            Kind = "INTERNAL_ERROR"
)

// Error carries a Kind and a human readable message suitable for clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func ClientInput(message string) *Error {
	return New(KindClientInput, message, nil)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

// KindOf reports the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps err to the status code the HTTP layer answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindClientInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
