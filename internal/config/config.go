package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Default values.
const (
	DefaultGatewayPort     = 18790
	DefaultThresholdTokens = 6000
	DefaultKeepRecent      = 2
	DefaultRequestsPerSec  = 10
	DefaultBurst           = 20
)

// DefaultSummaryPrompt asks the utility agent for a compact recap.
const DefaultSummaryPrompt = "Summarize the conversation below so it can replace the original messages. " +
	"Keep names, decisions, open questions and any facts later turns may rely on. " +
	"Write plain prose, no preamble."

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}
