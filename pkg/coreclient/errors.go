package coreclient

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCoreAvailable matches every *ConnectivityError via errors.Is.
	ErrNoCoreAvailable = errors.New("coreclient: no core available")

	// ErrIncompatibleVersion is returned when the core and the SDK share no API version.
	ErrIncompatibleVersion = errors.New("coreclient: no compatible core api version")
)

// ConnectivityError means no configured host could serve the call, either
// because none were reachable or because version negotiation failed.
type ConnectivityError struct {
	Hosts []string
	Err   error
}

func (e *ConnectivityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("coreclient: no core available (tried %s)", strings.Join(e.Hosts, ", "))
	}
	return fmt.Sprintf("coreclient: no core available (tried %s): %v", strings.Join(e.Hosts, ", "), e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func (e *ConnectivityError) Is(target error) bool { return target == ErrNoCoreAvailable }

// RateLimitedError is returned once a call has used its whole retry budget on
// 429 responses. Body is the last response body, verbatim.
type RateLimitedError struct {
	Host     string
	Method   string
	Path     string
	Attempts int
	Body     []byte
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("coreclient: %s %s rate limited by %s after %d attempts: %s",
		e.Method, e.Path, e.Host, e.Attempts, string(e.Body))
}

// StatusCode is always 429.
func (e *RateLimitedError) StatusCode() int { return 429 }

// RequestError is a non-2xx, non-429 core response.
type RequestError struct {
	Host       string
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("coreclient: core request failed: %s %s returned %d: %s",
		e.Method, e.Path, e.StatusCode, string(e.Body))
}

// hostUnreachableError marks a connection level failure. It never leaves the
// package; callers see it wrapped in a *ConnectivityError.
type hostUnreachableError struct {
	host string
	err  error
}

func (e *hostUnreachableError) Error() string {
	return fmt.Sprintf("%s: %v", e.host, e.err)
}

func (e *hostUnreachableError) Unwrap() error { return e.err }
