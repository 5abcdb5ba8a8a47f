package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Failure classes reported on crawl reports and in the session summary.
const (
	ClassTransient = "transient"
	ClassPermanent = "permanent"
	ClassMalformed = "malformed"
	ClassCanceled  = "canceled"
	ClassFatal     = "fatal"
)

// ErrFetchUnavailable means the fetch capability itself is gone (the circuit breaker
// opened after repeated connection failures). It ends the whole session.
var ErrFetchUnavailable = errors.New("fetch capability unavailable")

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrServer indicates a 5xx response.
type ErrServer struct {
	Err error
}

func (e ErrServer) Error() string {
	return fmt.Errorf("server: %w", e.Err).Error()
}

func (e ErrServer) Unwrap() error {
	return e.Err
}

// ErrMalformedPayload indicates a response whose structure could not be read.
type ErrMalformedPayload struct {
	Err error
}

func (e ErrMalformedPayload) Error() string {
	return fmt.Errorf("malformed_payload: %w", e.Err).Error()
}

func (e ErrMalformedPayload) Unwrap() error {
	return e.Err
}

// ClassifyError maps a transport error and HTTP status onto the typed errors above.
// A zero status with a nil error is success.
func ClassifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnection{Err: err}
	}

	if statusCode >= http.StatusBadRequest {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound, statusCode == http.StatusGone:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{Err: wrapped}
		}
		return wrapped
	}

	return err
}

// IsTransient reports whether err is worth retrying: timeouts, connection failures,
// rate limiting and 5xx responses.
func IsTransient(err error) bool {
	switch errorTypeLabel(err) {
	case "timeout", "connection", "rate_limited", "server":
		return true
	}
	return false
}

// IsConnectionFailure reports whether err means the site could not be reached at all.
// Only these failures count towards opening the circuit breaker.
func IsConnectionFailure(err error) bool {
	switch errorTypeLabel(err) {
	case "timeout", "connection":
		return true
	}
	return false
}

// FailureClass buckets err for reports: transient, permanent, malformed, canceled or
// fatal. It returns "" for nil.
func FailureClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFetchUnavailable):
		return ClassFatal
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	}
	var malformed ErrMalformedPayload
	if errors.As(err, &malformed) {
		return ClassMalformed
	}
	if IsTransient(err) {
		return ClassTransient
	}
	return ClassPermanent
}

// ErrorLabel returns the fine-grained error type used as a metric label.
func ErrorLabel(err error) string {
	return errorTypeLabel(err)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var server ErrServer
	if errors.As(err, &server) {
		return "server"
	}
	var malformed ErrMalformedPayload
	if errors.As(err, &malformed) {
		return "malformed_payload"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}
