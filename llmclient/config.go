package llmclient

import "time"

// Backend selects which chat-completions endpoint the client talks to.
// Gemini is reached through its OpenAI-compatible surface, so both
// backends share one adapter and differ only in defaults.
type Backend string

const (
	BackendOpenAI Backend = "openai"
	BackendGemini Backend = "gemini"
)

// Per-backend defaults applied by Config.withDefaults.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.0-flash"

	// DefaultRequestsPerMinute paces outbound requests when the Config
	// does not say otherwise.
	DefaultRequestsPerMinute = 60
)

// Config carries everything the client needs to reach a provider.
// Values are explicit: the package never reads the environment, so a
// process embedding the client decides where keys come from.
type Config struct {
	// Backend picks the provider defaults. Empty means BackendOpenAI.
	Backend Backend

	// Model is the model identifier sent with each request.
	Model string

	// APIKey authenticates against the provider. Required.
	APIKey string

	// BaseURL overrides the backend's default endpoint.
	BaseURL string

	// RequestsPerMinute caps the outbound request rate. Zero or
	// negative means DefaultRequestsPerMinute.
	RequestsPerMinute int
}

// withDefaults returns a copy of c with backend defaults filled in.
func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendOpenAI
	}
	if c.BaseURL == "" {
		switch c.Backend {
		case BackendGemini:
			c.BaseURL = DefaultGeminiBaseURL
		default:
			c.BaseURL = DefaultOpenAIBaseURL
		}
	}
	if c.Model == "" {
		switch c.Backend {
		case BackendGemini:
			c.Model = DefaultGeminiModel
		default:
			c.Model = DefaultOpenAIModel
		}
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	return c
}

// Validate reports whether the config can produce a working client.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendOpenAI, BackendGemini:
	default:
		return NewConfigurationError("unsupported backend %q", c.Backend)
	}
	if c.APIKey == "" {
		return NewConfigurationError("missing API key for backend %q", c.backendOrDefault())
	}
	return nil
}

func (c Config) backendOrDefault() Backend {
	if c.Backend == "" {
		return BackendOpenAI
	}
	return c.Backend
}

// MinInterval is the minimum spacing between two requests implied by
// the configured rate.
func (c Config) MinInterval() time.Duration {
	rpm := c.RequestsPerMinute
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	return time.Minute / time.Duration(rpm)
}
