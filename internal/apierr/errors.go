// Package apierr normalizes every failure of a gateway call into a closed set
// of kinds carrying status, message, path and timestamp.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a failure.
type Kind int

const (
	// KindValidation marks input rejected before it left the client.
	KindValidation Kind = iota + 1
	// KindNetwork marks a call that produced no response.
	KindNetwork
	// KindClient marks a 4xx response.
	KindClient
	// KindServer marks a 5xx response.
	KindServer
	// KindCanceled marks a call abandoned by its caller.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the uniform error record produced by the gateway client.
type Error struct {
	Kind      Kind
	Status    int
	Message   string
	Path      string
	Timestamp time.Time
	// Details holds validation messages in order.
	Details []string

	wrapped error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	prefix := e.Kind.String()
	if e.Status != 0 {
		prefix = fmt.Sprintf("%s %d", prefix, e.Status)
	}
	if e.Path != "" {
		prefix = fmt.Sprintf("%s %s", prefix, e.Path)
	}
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Retryable reports whether the failure may be retried: no response or 5xx.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// Validation builds a KindValidation error from ordered messages.
func Validation(path string, messages []string, now time.Time) *Error {
	msg := "invalid input"
	if len(messages) > 0 {
		msg = joinMessages(messages)
	}
	return &Error{
		Kind:      KindValidation,
		Message:   msg,
		Path:      path,
		Timestamp: now,
		Details:   append([]string(nil), messages...),
	}
}

// FromStatus builds an error for a non-2xx response.
func FromStatus(path string, status int, message string, now time.Time) *Error {
	kind := KindClient
	if status >= http.StatusInternalServerError {
		kind = KindServer
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Kind: kind, Status: status, Message: message, Path: path, Timestamp: now}
}

// FromTransport builds an error for a call that produced no response.
func FromTransport(path string, err error, now time.Time) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	kind := KindNetwork
	msg := "no response from server"
	if errors.Is(err, context.Canceled) {
		kind = KindCanceled
		msg = "request canceled"
	}
	return &Error{Kind: kind, Message: msg, Path: path, Timestamp: now, wrapped: err}
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}

func joinMessages(messages []string) string {
	out := messages[0]
	for _, m := range messages[1:] {
		out += ", " + m
	}
	return out
}
