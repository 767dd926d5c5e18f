package transport

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation.
type ErrorKind string

const (
	// KindAuthentication is an HTTP 401. Never retried, always surfaced.
	KindAuthentication ErrorKind = "authentication"

	// KindRequestFailed is any other non-2xx response or a transport failure.
	KindRequestFailed ErrorKind = "request_failed"

	// KindMalformedResponse is a 2xx body that is not a complete envelope.
	KindMalformedResponse ErrorKind = "malformed_response"

	// KindInvalidState is a usage error, such as reading the current item
	// of an enumerator that has not been advanced.
	KindInvalidState ErrorKind = "invalid_state"

	// KindCancelled is a request aborted by its context.
	KindCancelled ErrorKind = "cancelled"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrAuthentication    = errors.New("authentication failed")
	ErrRequestFailed     = errors.New("request failed")
	ErrMalformedResponse = errors.New("malformed response")
	ErrInvalidState      = errors.New("invalid state")
	ErrCancelled         = errors.New("request cancelled")
)

var kindSentinels = map[ErrorKind]error{
	KindAuthentication:    ErrAuthentication,
	KindRequestFailed:     ErrRequestFailed,
	KindMalformedResponse: ErrMalformedResponse,
	KindInvalidState:      ErrInvalidState,
	KindCancelled:         ErrCancelled,
}

// Error is a classified API error.
type Error struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("oneapi %s", e.Kind)
	if e.URL != "" {
		msg += fmt.Sprintf(" (%s", e.URL)
		if e.StatusCode != 0 {
			msg += fmt.Sprintf(", status %d", e.StatusCode)
		}
		msg += ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}
