package model

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the Gemini API.
type APIError struct {
	Code    int    // HTTP status code
	Status  string // API status string, e.g. "UNAVAILABLE", "NOT_FOUND"
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API error %d %s: %s", e.Code, e.Status, e.Message)
}

// IsUnavailable reports whether the error is a transient overload signal.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == 503 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "503") || strings.Contains(s, "UNAVAILABLE")
}

// IsNotFound reports whether the error says the model id does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == 404 {
		return true
	}
	return strings.Contains(err.Error(), "NOT_FOUND")
}
