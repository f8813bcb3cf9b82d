package chaterr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes a ChatError.
type Kind string

const (
	// KindNetwork means no response was received.
	KindNetwork Kind = "network"
	// KindAuth means the server rejected the credentials (HTTP 401).
	KindAuth Kind = "auth"
	// KindValidation means a caller-side precondition failed.
	KindValidation Kind = "validation"
	// KindServer means the server answered with a non-2xx status.
	KindServer Kind = "server"
	// KindSocket means the push channel failed.
	KindSocket Kind = "socket"
)

// ErrNotAuthenticated is returned by intents issued without an authenticated session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Error is the only error type that leaves the engine.
type Error struct {
	Kind    Kind
	Message string
	// Code is the HTTP status for server and auth errors, zero otherwise.
	Code int
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Validation creates a validation-kind error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Socket wraps a push-channel failure.
func Socket(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Kind: KindSocket, Message: err.Error(), Err: err}
}

// StatusCoder is implemented by errors that carry an HTTP response status.
type StatusCoder interface {
	StatusCode() int
}

// Classify normalizes err into an *Error. Errors without a recognizable
// shape get the fallback kind: network for REST calls, socket for the push
// channel.
func Classify(err error, fallback Kind) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, ErrNotAuthenticated) {
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		if code == http.StatusUnauthorized {
			return &Error{Kind: KindAuth, Message: err.Error(), Code: code, Err: err}
		}
		return &Error{Kind: KindServer, Message: err.Error(), Code: code, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindNetwork, Message: "request aborted: " + err.Error(), Err: err}
	}

	return &Error{Kind: fallback, Message: err.Error(), Err: err}
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

// Reporter receives classified errors from components.
type Reporter interface {
	// Surface records a user-visible error.
	Surface(err *Error)
	// Swallow logs a best-effort failure without surfacing it.
	// Auth-kind errors still escalate.
	Swallow(err *Error)
}
