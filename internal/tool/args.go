package tool

import (
	"errors"
	"fmt"
)

// ErrMissingArgument marks a tool call whose required argument is absent.
// Dispatch-time validation failures are fatal for the turn.
var ErrMissingArgument = errors.New("missing required tool argument")

// Args wraps the untyped argument mapping produced by the model.
type Args map[string]interface{}

// String returns a required string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, key)
	}
	return s, nil
}

// OptionalString returns a string argument or empty when absent.
func (a Args) OptionalString(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// OptionalInt returns an integer argument or the default when absent.
// JSON numbers arrive as float64.
func (a Args) OptionalInt(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
