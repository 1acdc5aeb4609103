// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed exchange. Every error returned by the
// request executor maps to exactly one kind; the unauthorized
// interceptor matches on KindUnauthorized and nothing else.
type ErrorKind int

const (
	// KindNone is returned by KindOf for a nil error.
	KindNone ErrorKind = iota
	// KindCancelled: the cancellation scope (or the caller's context)
	// ended before the exchange completed.
	KindCancelled
	// KindTransport: connectivity, DNS, TLS or timeout failure. No
	// response status was received.
	KindTransport
	// KindUnauthorized: the service answered 401.
	KindUnauthorized
	// KindHTTP: any other non-2xx status.
	KindHTTP
	// KindDecode: 2xx status but the body did not match the expected shape.
	KindDecode
	// KindOther: errors that did not come from the executor (request
	// construction, encoding, precondition failures).
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCancelled:
		return "cancelled"
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	default:
		return "other"
	}
}

var (
	// ErrCancelled is matched by errors.Is for any request that ended
	// because its cancellation scope was invalidated by CancelAll or
	// because the caller's context was done.
	ErrCancelled = errors.New("messaging: request cancelled")

	// ErrUnauthorized is matched by errors.Is for a 401 *HTTPError.
	ErrUnauthorized = errors.New("messaging: unauthorized")

	// ErrNotAuthenticated is returned by operations that need the
	// session profile (for example GetChats, which follows the
	// profile's private chats locator) while no session is active.
	ErrNotAuthenticated = errors.New("messaging: not authenticated")
)

// HTTPError is a non-2xx response from the service. A 401 status is
// reported as KindUnauthorized; every other status is KindHTTP.
//
//	var httpErr *HTTPError
//	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound { ... }
type HTTPError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int
	// Method and Target identify the request.
	Method string
	Target string
	// Body is the (bounded) response body, kept for diagnostics.
	Body string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("messaging: %s %s: %d %s", e.Method, e.Target, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("messaging: %s %s: %d %s: %s", e.Method, e.Target, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Is reports ErrUnauthorized for a 401 response.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// TransportError wraps a failure to complete the exchange at all.
type TransportError struct {
	Method string
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("messaging: request to %s %s failed: %v", e.Method, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is a 2xx response whose body could not be parsed.
type DecodeError struct {
	Target string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("messaging: failed to parse response from %s: %v", e.Target, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// cancelledError carries the underlying context error while matching
// ErrCancelled.
type cancelledError struct {
	Method string
	Target string
	Err    error
}

func (e *cancelledError) Error() string {
	return fmt.Sprintf("messaging: %s %s cancelled: %v", e.Method, e.Target, e.Err)
}

func (e *cancelledError) Is(target error) bool { return target == ErrCancelled }

func (e *cancelledError) Unwrap() error { return e.Err }

// KindOf classifies err. The executor has already decided between
// cancellation and transport failure, so a *TransportError wrapping a
// client timeout stays KindTransport. Bare context errors that never
// passed through the executor count as cancellation.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrCancelled) {
		return KindCancelled
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return KindTransport
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusUnauthorized {
			return KindUnauthorized
		}
		return KindHTTP
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return KindDecode
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindOther
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not
// an *HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
