package task

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// retryableStatusCodes are the HTTP statuses treated as transient
// provider failures, eligible for bounded retry with backoff.
var retryableStatusCodes = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// IsRetryableStatusCode reports whether the given HTTP status belongs to
// the retryable set {408, 429, 502, 503, 504}.
func IsRetryableStatusCode(code int) bool {
	for _, c := range retryableStatusCodes {
		if c == code {
			return true
		}
	}
	return false
}

// RetryableError wraps a transport-level fault (timeout, connection
// failure) so the runner re-attempts the task instead of failing it.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// RetryableStatusError is raised when a provider responds with an HTTP
// status in the retryable set. Message carries the templated description
// that propagates to the failure handler once retries are exhausted.
type RetryableStatusError struct {
	Message    string
	StatusCode int
}

func (e *RetryableStatusError) Error() string {
	return e.Message
}

// classifyClientError wraps a provider client error as retryable when
// it is a genuine transport fault: a timeout, a connection failure, or
// a cancelled request. http.Client.Do surfaces all of those as
// *url.Error. Errors raised before the request left the process, such
// as a request that could not be built, are permanent and returned
// unchanged.
func classifyClientError(err error) error {
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &RetryableError{Err: err}
	}
	return err
}

// IsRetryable reports whether the error is classified as transient and
// should go through the bounded retry policy. Anything else fails the
// task immediately.
func IsRetryable(err error) bool {
	var transport *RetryableError
	if errors.As(err, &transport) {
		return true
	}
	var status *RetryableStatusError
	return errors.As(err, &status)
}
