package providers

import (
	"errors"
	"fmt"
)

// AuthError is a terminal credential problem (401/403). Retrying cannot
// succeed, so the transport surfaces it after a single attempt.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: status=%d error=%s", e.StatusCode, e.Message)
}

// TransportError is a terminal network or server fault, surfaced either
// immediately for conditions retries cannot fix or after the retry budget is
// exhausted. Cause is the last observed failure.
type TransportError struct {
	Attempts int
	Cause    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// MalformedChunkError records one undecodable stream line. It is absorbed by
// the decoder (logged and skipped) and never terminates a stream.
type MalformedChunkError struct {
	Line string
	Err  error
}

func (e *MalformedChunkError) Error() string {
	return fmt.Sprintf("malformed stream chunk %q: %v", e.Line, e.Err)
}

func (e *MalformedChunkError) Unwrap() error {
	return e.Err
}

// ErrEmptyResponse marks the recognized state of a response that carried no
// usable content. Callers must not commit an assistant message for it.
var ErrEmptyResponse = errors.New("response carried no usable content")

// statusError carries a non-2xx response status through the retry loop.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API request failed: status=%d error=%s", e.code, e.message)
}

// retryable reports whether another attempt could plausibly succeed. Only
// credential failures are terminal; every other status, timeout, or
// connection fault gets the full retry budget.
func retryable(err error) bool {
	var authErr *AuthError
	return !errors.As(err, &authErr)
}
