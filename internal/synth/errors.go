package synth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// ErrorKind classifies a failed synthesis call. The retry policy depends on
// nothing else.
type ErrorKind int

const (
	// KindUnknown is any failure that fits no other kind
	KindUnknown ErrorKind = iota

	// KindAuthentication means the API key was rejected
	KindAuthentication

	// KindValidation means the provider rejected the request itself
	KindValidation

	// KindRateLimit means the provider asked us to slow down
	KindRateLimit

	// KindServerError is a 5xx response
	KindServerError

	// KindNetwork is a transport failure before a response arrived
	KindNetwork

	// KindTimeout means the per-call deadline passed
	KindTimeout
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindRateLimit:
		return "rate-limit"
	case KindServerError:
		return "server-error"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Retryable reports whether a call that failed this way may succeed if
// repeated. Authentication and validation failures are deterministic.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindAuthentication, KindValidation:
		return false
	default:
		return true
	}
}

// Error is the only error type returned by Client.Generate.
type Error struct {
	Kind       ErrorKind
	StatusCode int // zero when no response was received
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("synthesis failed (%s", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", HTTP %d", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(", %d attempts", e.Attempts)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the provider error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the kind of err, or KindUnknown when err carries none.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Classify(err)
}

// StatusError is returned by providers for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("provider returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Classify maps a provider error onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}

	var status *StatusError
	if errors.As(err, &status) {
		return classifyStatus(status.Code)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	if netErr != nil ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) {
		return KindNetwork
	}

	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) {
		return KindNetwork
	}

	return KindUnknown
}

func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuthentication
	case code == http.StatusBadRequest,
		code == http.StatusNotFound,
		code == http.StatusUnprocessableEntity:
		return KindValidation
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}

func statusCodeOf(err error) int {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code
	}
	return 0
}
