package generation

import "time"

// Config contains generation domain configuration.
type Config struct {
	// DefaultHistoryLimit is used when History is called with limit <= 0.
	DefaultHistoryLimit int

	// MaxPromptLength caps prompts in runes. Zero disables the check.
	MaxPromptLength int

	// FileURLTTL is how long resolved download URLs are cached.
	FileURLTTL time.Duration

	PollInterval    time.Duration
	MaxPollAttempts int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultHistoryLimit: 50,
		MaxPromptLength:     2000,
		FileURLTTL:          30 * time.Minute,
		PollInterval:        5 * time.Second,
		MaxPollAttempts:     60,
	}
}
