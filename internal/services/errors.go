package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrRateLimited   = errors.New("rate limited")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRateLimited reports whether err stems from a transient-capacity response.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// StatusError converts a non-success HTTP status into the matching sentinel.
// 429 is the only status treated as retryable; everything else is transient
// and resolves the film as unavailable for the current pass.
func StatusError(stage, operation string, status int) error {
	marker := ErrTransient
	switch status {
	case http.StatusTooManyRequests:
		marker = ErrRateLimited
	case http.StatusNotFound:
		marker = ErrNotFound
	}
	return Wrap(marker, stage, operation, fmt.Sprintf("status %d", status), nil)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
