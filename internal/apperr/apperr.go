package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

var authQuotaExpr = regexp.MustCompile(`(?i)api key|permission|quota|project|unauthorized`)

// ValidationError reports bad caller input.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidation(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func NewValidationWrap(msg string, err error) *ValidationError {
	return &ValidationError{Message: msg, Err: err}
}

// ExternalError is a failed call to a third-party service.
// StatusCode is zero when no HTTP response was received.
type ExternalError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *ExternalError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Service, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Service, e.Message)
	}
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// NewStatus builds an ExternalError from an HTTP status and response message.
func NewStatus(service string, status int, msg string) *ExternalError {
	return &ExternalError{Service: service, StatusCode: status, Message: msg}
}

// Wrap builds an ExternalError for a transport-level failure.
func Wrap(service string, err error) *ExternalError {
	return &ExternalError{Service: service, Err: err}
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var ext *ExternalError
	if errors.As(err, &ext) {
		return ext.StatusCode
	}
	return 0
}

// IsAuthOrQuota reports credential or quota failures that no retry can fix.
func IsAuthOrQuota(err error) bool {
	var ext *ExternalError
	if !errors.As(err, &ext) {
		return false
	}
	switch ext.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusBadRequest, http.StatusTooManyRequests:
		return authQuotaExpr.MatchString(ext.Message)
	}
	return false
}

// IsTimeout reports local timeouts, including per-call context deadlines.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRetryable is true for timeouts, 5xx responses and rate limits without a quota message.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeout(err) {
		return true
	}
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		return true
	}
	return status == http.StatusTooManyRequests && !IsAuthOrQuota(err)
}
