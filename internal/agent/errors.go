package agent

import "errors"

// ErrModelUnavailable is returned when every model attempt failed with a
// transient overload signal. The HTTP boundary maps it to 503.
var ErrModelUnavailable = errors.New("model temporarily unavailable")
