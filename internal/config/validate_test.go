package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Agents = []AgentEntry{
		{Name: "A", Model: "m1"},
		{Name: "B", Model: "m2"},
		{Name: "C", Model: "m3"},
	}
	cfg.Groups = []GroupEntry{
		{Name: "trio", Members: []string{"A", "B", "C"}, Moderator: "A", Flow: "autoModerator", MaxTurns: 2, TimerSeconds: 60},
	}
	cfg.Summary.UtilityAgent = "C"
	return cfg
}

func issuePaths(issues []ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Path
	}
	return out
}

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Issues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"bad port", func(c *Config) { c.Gateway.Port = 70000 }, "gateway.port"},
		{"bad bind", func(c *Config) { c.Gateway.Bind = "moon" }, "gateway.bind"},
		{"custom bind without host", func(c *Config) { c.Gateway.Bind = "custom" }, "gateway.customBindHost"},
		{"bad auth mode", func(c *Config) { c.Gateway.Auth.Mode = "oauth" }, "gateway.auth.mode"},
		{"negative burst", func(c *Config) { c.Gateway.RateLimit.Burst = -1 }, "gateway.rateLimit.burst"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad store", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"all providers disabled", func(c *Config) {
			c.Providers.OpenRouter.Disabled = true
			c.Providers.Ollama.Disabled = true
		}, "providers"},
		{"agent without name", func(c *Config) { c.Agents[0].Name = "" }, "agents.0.name"},
		{"duplicate agent", func(c *Config) { c.Agents[1].Name = "A" }, "agents.1.name"},
		{"agent without model", func(c *Config) { c.Agents[2].Model = "" }, "agents.2.model"},
		{"empty members", func(c *Config) { c.Groups[0].Members = nil; c.Groups[0].Moderator = "" }, "groups.0.members"},
		{"unknown member", func(c *Config) { c.Groups[0].Members = append(c.Groups[0].Members, "Z") }, "groups.0.members.3"},
		{"bad flow", func(c *Config) { c.Groups[0].Flow = "anarchy" }, "groups.0.flow"},
		{"moderator not member", func(c *Config) { c.Groups[0].Moderator = "Q" }, "groups.0.moderator"},
		{"auto without moderator", func(c *Config) { c.Groups[0].Moderator = "" }, "groups.0.moderator"},
		{"maxTurns too high", func(c *Config) { c.Groups[0].MaxTurns = 9 }, "groups.0.maxTurns"},
		{"timer too long", func(c *Config) { c.Groups[0].TimerSeconds = 181 }, "groups.0.timerSeconds"},
		{"negative threshold", func(c *Config) { c.Groups[0].SummarizationTokenThreshold = -5 }, "groups.0.summarizationTokenThreshold"},
		{"unknown utility agent", func(c *Config) { c.Summary.UtilityAgent = "Ghost" }, "summary.utilityAgent"},
		{"negative keepRecent", func(c *Config) { c.Summary.KeepRecent = -1 }, "summary.keepRecent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			require.NotEmpty(t, issues)
			assert.Contains(t, issuePaths(issues), tt.path)
		})
	}
}

func TestValidate_TimerBounds(t *testing.T) {
	for _, secs := range []int{0, 1, 180} {
		cfg := validConfig()
		cfg.Groups[0].TimerSeconds = secs
		assert.Empty(t, Validate(&cfg), "timer %d", secs)
	}
}

func TestValidate_MultipleIssues(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.Port = -1
	cfg.Logging.Level = "nope"
	assert.Len(t, Validate(&cfg), 2)
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "groups.0.maxTurns", Message: "must be 1-8, got 0"}
	assert.Equal(t, "groups.0.maxTurns: must be 1-8, got 0", issue.String())
}
