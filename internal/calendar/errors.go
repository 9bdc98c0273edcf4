package calendar

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// RateLimitError is returned when Google rejects a call because a usage
// quota was exhausted. Callers should stop issuing requests for this run.
type RateLimitError struct {
	Op      string
	Code    int
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded (%d): %s", e.Op, e.Code, e.Message)
}

// RemoteError is any other error response from the Google Calendar API.
type RemoteError struct {
	Op      string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: google service error (%d): %s", e.Op, e.Code, e.Message)
}

// IsNotFound reports whether the remote object does not exist (anymore).
func (e *RemoteError) IsNotFound() bool {
	return e.Code == http.StatusNotFound || e.Code == http.StatusGone
}

var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

// classify converts an API error into a RateLimitError or RemoteError.
// Transport and local errors are wrapped with the operation name.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if isRateLimit(gerr) {
		return &RateLimitError{Op: op, Code: gerr.Code, Message: gerr.Message}
	}
	return &RemoteError{Op: op, Code: gerr.Code, Message: gerr.Message}
}

func isRateLimit(gerr *googleapi.Error) bool {
	if gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return strings.Contains(gerr.Message, "Rate Limit Exceeded")
}
