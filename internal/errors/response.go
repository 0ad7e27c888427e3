package errors

import (
	"strings"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

const (
	safeDetailsPrefix = "__json__:"
	fallbackDisplay   = "An unexpected error occurred"
)

// ErrorResponse is the body written for every failed API call
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail carries the client safe parts of an error
type ErrorDetail struct {
	Code      string         `json:"code"`
	Display   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewErrorResponse renders err using only its hints and reportable details.
// The internal message never reaches the client.
func NewErrorResponse(err error, requestID string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:      CodeFromErr(err),
			Display:   displayMessage(err),
			RequestID: requestID,
			Details:   safeDetails(err),
		},
	}
}

// CodeFromErr returns the machine readable code of the first marker that matches,
// using the same precedence as HTTPStatusFromErr
func CodeFromErr(err error) string {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			var ie *InternalError
			if errors.As(sc.err, &ie) {
				return ie.Code
			}
		}
	}
	return ErrCodeSystemError
}

func displayMessage(err error) string {
	// GetAllHints walks post-order, so the innermost hint comes first
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return fallbackDisplay
}

func safeDetails(err error) map[string]any {
	var details map[string]any
	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			raw, ok := strings.CutPrefix(payload, safeDetailsPrefix)
			if !ok {
				continue
			}

			var parsed map[string]any
			if jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(raw, &parsed) != nil {
				continue
			}
			if details == nil {
				details = make(map[string]any, len(parsed))
			}
			for k, v := range parsed {
				details[k] = v
			}
		}
	}
	return details
}
