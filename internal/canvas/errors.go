package canvas

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/coursevault/internal/apperr"
)

// APIError is a non-2xx answer from Canvas.
type APIError struct {
	StatusCode int
	Message    string
	Transient  bool
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("canvas: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("canvas: HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the transient/permanent classification to errors.Is.
func (e *APIError) Unwrap() error {
	if e.Transient {
		return apperr.ErrTransientSource
	}
	return apperr.ErrPermanentSource
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, apperr.ErrTransientSource)
}

func newAPIError(status int, body string) *APIError {
	msg := strings.TrimSpace(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &APIError{StatusCode: status, Message: msg, Transient: transientStatus(status, msg)}
}

func transientStatus(status int, body string) bool {
	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	case status == http.StatusForbidden && strings.Contains(body, "Rate Limit Exceeded"):
		// Canvas throttles with 403 and this body rather than 429.
		return true
	default:
		return false
	}
}

// classifyTransport marks a transport failure (timeout, reset, DNS) as
// transient. Cancellation by the caller is returned as-is so it is never
// retried.
func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("canvas: %w: %w", apperr.ErrTransientSource, err)
}
