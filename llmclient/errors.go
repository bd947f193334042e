package llmclient

import "fmt"

// ClientError is the base error type for the package. Typed errors
// embed it so callers can match on the concrete type while %w chains
// still reach the underlying cause.
type ClientError struct {
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ClientError) Unwrap() error { return e.Cause }

// ConfigurationError indicates an invalid or incomplete Config.
type ConfigurationError struct {
	ClientError
}

// NewConfigurationError builds a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{ClientError{Message: fmt.Sprintf(format, args...)}}
}

// AuthenticationError indicates the provider rejected the API key.
type AuthenticationError struct {
	ClientError
}

// RateLimitError indicates the provider throttled the request.
type RateLimitError struct {
	ClientError
}

// InvalidRequestError indicates the provider rejected the request body.
type InvalidRequestError struct {
	ClientError
}

// ProviderError is a generic upstream failure with the HTTP status
// attached when one was observed.
type ProviderError struct {
	ClientError
	StatusCode int
}

// ErrorFromStatusCode maps an HTTP status from the provider to a typed
// error wrapping cause.
func ErrorFromStatusCode(status int, message string, cause error) error {
	base := ClientError{Message: message, Cause: cause}
	switch status {
	case 401, 403:
		return &AuthenticationError{base}
	case 429:
		return &RateLimitError{base}
	case 400, 404, 422:
		return &InvalidRequestError{base}
	default:
		return &ProviderError{ClientError: base, StatusCode: status}
	}
}
