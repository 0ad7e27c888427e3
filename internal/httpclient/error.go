package httpclient

import (
	"fmt"
	"net/http"

	ierr "github.com/rumahku/billing/internal/errors"
)

// Error is a non-2xx response from an upstream service
type Error struct {
	StatusCode int
	Response   []byte
	err        error
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Error() string {
	return e.err.Error()
}

// NewError creates a new HTTP client error. Server side failures are marked
// unavailable so callers can retry them.
func NewError(statusCode int, response []byte) *Error {
	reference := ierr.ErrHTTPClient
	if statusCode >= http.StatusInternalServerError {
		reference = ierr.ErrUnavailable
	}

	return &Error{
		StatusCode: statusCode,
		Response:   response,
		err: ierr.NewError(fmt.Sprintf("upstream responded with status %d", statusCode)).
			WithHint("Payment provider rejected the request").
			WithReportableDetails(map[string]any{"status_code": statusCode}).
			Mark(reference),
	}
}

// IsHTTPError checks if an error is an HTTP client error
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if ierr.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
