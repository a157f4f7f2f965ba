package refreshkit

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a client failure. Every error surfaced by the client is a
// *ClientError carrying exactly one Kind.
type Kind string

const (
	// KindInvalidRequest marks a request that could not be turned into a
	// transport call (empty method, unparseable URL).
	KindInvalidRequest Kind = "InvalidRequest"

	// KindNetworkUnavailable marks transport-level connection failures and
	// requests rejected because the transport is known to be offline.
	KindNetworkUnavailable Kind = "NetworkUnavailable"

	// KindAuthenticationFailed maps a 401 response.
	KindAuthenticationFailed Kind = "AuthenticationFailed"

	// KindRateLimitExceeded marks local admission refusal or a 429 response.
	// Never retried internally: rate limiting requires caller-paced backoff.
	KindRateLimitExceeded Kind = "RateLimitExceeded"

	// KindServerError covers 5xx and unmapped non-2xx responses.
	KindServerError Kind = "ServerError"

	// KindTimeout marks an attempt that exceeded its effective timeout.
	KindTimeout Kind = "TimeoutError"

	// KindSerialization marks a payload decode failure. Never retried:
	// malformed data will not fix itself.
	KindSerialization Kind = "SerializationError"

	// KindValidation marks a request that failed shape validation (malformed
	// header keys, missing credentials on signed requests).
	KindValidation Kind = "ValidationError"

	// KindCircuitBreakerOpen marks a fail-fast refusal by the circuit breaker.
	KindCircuitBreakerOpen Kind = "CircuitBreakerOpen"

	// KindRetryLimitExceeded marks a request whose attempt loop never managed
	// to run a single transport call.
	KindRetryLimitExceeded Kind = "RetryLimitExceeded"

	// KindRequestTooLarge marks a body exceeding the configured maximum size.
	KindRequestTooLarge Kind = "RequestTooLarge"

	// KindResponseProcessing marks a response body that could not be read.
	KindResponseProcessing Kind = "ResponseProcessingFailed"
)

// Sentinel errors for the fail-fast paths, usable with errors.Is.
var (
	// ErrCircuitOpen matches any *ClientError with KindCircuitBreakerOpen.
	ErrCircuitOpen = errors.New("refreshkit: circuit open")

	// ErrRateLimited matches any *ClientError with KindRateLimitExceeded.
	ErrRateLimited = errors.New("refreshkit: rate limited")
)

// ClientError is the error type returned by all client operations.
type ClientError struct {
	Kind       Kind
	Message    string
	Cause      error
	TraceID    string
	Method     string
	URL        string
	StatusCode int
	Attempts   int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.TraceID != "" {
		msg = fmt.Sprintf("[%s] %s", e.TraceID, msg)
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s (attempts %d/%d)", msg, e.Attempts, e.MaxRetries+1)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error kinds for errors.Is. The sentinel errors ErrCircuitOpen
// and ErrRateLimited match their respective kinds.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrCircuitOpen:
		return e.Kind == KindCircuitBreakerOpen
	case ErrRateLimited:
		return e.Kind == KindRateLimitExceeded
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Kind == targetErr.Kind
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Kind: %s\n", e.Kind)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.TraceID != "" {
		info += fmt.Sprintf("Trace ID: %s\n", e.TraceID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Attempts > 0 {
		info += fmt.Sprintf("Attempts: %d/%d\n", e.Attempts, e.MaxRetries+1)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// KindOf extracts the Kind from an error chain, or "" if the chain contains
// no *ClientError.
func KindOf(err error) Kind {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Kind
	}
	return ""
}

// kindForStatus maps a non-2xx status code onto the error taxonomy.
func kindForStatus(code int) Kind {
	switch code {
	case 401:
		return KindAuthenticationFailed
	case 429:
		return KindRateLimitExceeded
	default:
		return KindServerError
	}
}
