package lastfm

import (
	"errors"
	"fmt"
)

// Error represents a Last.fm API error.
//
// The Error type carries the error object Last.fm embeds in a response body,
// with its numeric code surfaced verbatim. Callers use the code to tell
// conditions such as "not found" apart from generic failures.
type Error struct {
	Code    int    // Last.fm error code
	Message string // Error message from Last.fm
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("lastfm: error %d: %s", e.Code, e.Message)
}

// Is checks if the target error is a Last.fm error.
//
// This allows errors.Is() to work with *Error types.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Temporary returns true if the error is temporary and the request
// should be retried.
//
// The following Last.fm error codes are considered temporary:
//   - 11: Service Offline - temporarily unavailable
//   - 16: Service Temporarily Unavailable
//   - 29: Rate Limit Exceeded
func (e *Error) Temporary() bool {
	switch e.Code {
	case ErrCodeServiceOffline, ErrCodeTempUnavailable, ErrCodeRateLimitExceeded:
		return true
	default:
		return false
	}
}

// IsNotFound reports whether Last.fm rejected the request because the
// artist, track or album does not exist. Last.fm uses the generic
// "invalid parameters" code for this.
func (e *Error) IsNotFound() bool {
	return e.Code == ErrCodeInvalidParameters
}

// Common Last.fm error codes.
const (
	ErrCodeInvalidService       = 2
	ErrCodeInvalidMethod        = 3
	ErrCodeAuthenticationFailed = 4
	ErrCodeInvalidFormat        = 5
	ErrCodeInvalidParameters    = 6
	ErrCodeInvalidResourceSpec  = 7
	ErrCodeOperationFailed      = 8
	ErrCodeInvalidSessionKey    = 9
	ErrCodeInvalidAPIKey        = 10
	ErrCodeServiceOffline       = 11
	ErrCodeSubscribersOnly      = 12
	ErrCodeInvalidSignature     = 13
	ErrCodeUnauthorizedToken    = 14
	ErrCodeExpiredToken         = 15
	ErrCodeTempUnavailable      = 16
	ErrCodeRateLimitExceeded    = 29
)

// NetworkError is returned when the request never produced an HTTP
// response: connection failures, timeouts, or a truncated body.
type NetworkError struct {
	Method string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("lastfm: %s: network error: %v", e.Method, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError is returned for a non-success HTTP status whose body is not
// a Last.fm error object.
type ProtocolError struct {
	Method     string
	StatusCode int
	Status     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("lastfm: %s: unexpected status %d %s", e.Method, e.StatusCode, e.Status)
}

// DecodeError is returned when a structured body was expected but the
// response was empty or not valid JSON.
type DecodeError struct {
	Method string
	Body   []byte
	Err    error
}

func (e *DecodeError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("lastfm: %s: empty response body", e.Method)
	}
	return fmt.Sprintf("lastfm: %s: failed to decode response: %v", e.Method, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Predefined errors for common cases.
var (
	// ErrNoSessionKey is returned when an operation requires authentication
	// but no session key has been set.
	ErrNoSessionKey = errors.New("lastfm: session key required")

	// ErrMissingSecret is returned when a signed method is called on a
	// client configured without an API secret.
	ErrMissingSecret = errors.New("lastfm: API secret required for signed methods")

	// ErrInvalidConfig is returned when client configuration is invalid.
	ErrInvalidConfig = errors.New("lastfm: invalid configuration")
)

// IsConfigError reports whether err is a configuration problem that no
// amount of retrying will fix.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrNoSessionKey) ||
		errors.Is(err, ErrMissingSecret) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsNotFound reports whether err is a Last.fm "not found" error.
func IsNotFound(err error) bool {
	var lastfmErr *Error
	if errors.As(err, &lastfmErr) {
		return lastfmErr.IsNotFound()
	}
	return false
}

// isRetryableError determines if an error should trigger a retry.
//
// This is used by the transport layer for read calls only. Network errors,
// server errors and temporary Last.fm errors are retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var lastfmErr *Error
	if errors.As(err, &lastfmErr) {
		return lastfmErr.Temporary()
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return protoErr.StatusCode >= 500
	}

	return false
}
