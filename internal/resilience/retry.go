package resilience

import "time"

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	MaxAttempts int                       // Maximum number of attempts
	Backoff     time.Duration             // Fixed backoff between attempts
	Sleep       func(d time.Duration)     // Sleep function, defaults to time.Sleep
	OnRetry     func(attempt int, err error) // Called before each backoff sleep
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		Backoff:     40 * time.Second,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func() error

// IsRetryableError checks if an error is retryable
type IsRetryableError func(error) bool

// Retry executes a function up to MaxAttempts times with a fixed backoff
// between attempts. A non-retryable error aborts immediately. The error of
// the last attempt is returned when all attempts fail.
func Retry(fn RetryableFunc, config *RetryConfig, isRetryable IsRetryableError) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	sleep := config.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return err
		}

		// Don't sleep after the last attempt
		if attempt < config.MaxAttempts-1 {
			if config.OnRetry != nil {
				config.OnRetry(attempt+1, err)
			}
			sleep(config.Backoff)
		}
	}

	return lastErr
}
