package channel

import "fmt"

// ValidationError indicates the message itself is malformed, for
// example a recipient that fails channel-specific validation. Never
// retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// IsRetryable returns false as malformed input never succeeds on retry.
func (e *ValidationError) IsRetryable() bool { return false }

// ConfigurationError indicates the sender is missing credentials or
// other required configuration. Never retried.
type ConfigurationError struct {
	Channel string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s configuration error: %s", e.Channel, e.Message)
}

// IsRetryable returns false as configuration does not change between
// attempts.
func (e *ConfigurationError) IsRetryable() bool { return false }

// PermanentError indicates a provider rejection that should not be
// retried.
type PermanentError struct {
	Channel string
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s error %d: %s", e.Channel, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Channel, e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary failure that can be retried.
type RetryableError struct {
	Channel string
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s error %d: %s", e.Channel, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Channel, e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }
