package client

import "github.com/Sternrassler/oneapi-client/pkg/transport"

// Errors returned by collections, re-exported so that callers of this package can
// classify them without importing transport. Match them with errors.Is.
var (
	// ErrAuthentication is returned when the API rejects the key (HTTP 401).
	ErrAuthentication = transport.ErrAuthentication

	// ErrRequestFailed is returned for any other non-2xx response or transport failure.
	ErrRequestFailed = transport.ErrRequestFailed

	// ErrMalformedResponse is returned when a 2xx body is not a complete envelope.
	ErrMalformedResponse = transport.ErrMalformedResponse

	// ErrInvalidState is returned when reading an enumerator that has not been advanced.
	ErrInvalidState = transport.ErrInvalidState

	// ErrCancelled is returned when a request is aborted by its context.
	ErrCancelled = transport.ErrCancelled
)

// Error is the classified error type carried by every failed operation.
type Error = transport.Error
