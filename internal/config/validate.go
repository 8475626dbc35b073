package config

import (
	"fmt"
	"slices"

	"github.com/sarega/promptprim/internal/domain"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		add("gateway.customBindHost", "required when bind is custom")
	}
	validAuthModes := []string{"token", "password"}
	if cfg.Gateway.Auth.Mode != "" && !slices.Contains(validAuthModes, cfg.Gateway.Auth.Mode) {
		add("gateway.auth.mode", "must be one of %v, got %q", validAuthModes, cfg.Gateway.Auth.Mode)
	}
	if cfg.Gateway.RateLimit.RequestsPerSecond < 0 {
		add("gateway.rateLimit.requestsPerSecond", "must not be negative")
	}
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		add("gateway.tls", "certPath and keyPath are required when TLS is enabled")
	}
	if cfg.Gateway.RateLimit.Burst < 0 {
		add("gateway.rateLimit.burst", "must not be negative")
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}

	// Store validation
	validDrivers := []string{"sqlite", "memory"}
	if cfg.Store.Driver != "" && !slices.Contains(validDrivers, cfg.Store.Driver) {
		add("store.driver", "must be one of %v, got %q", validDrivers, cfg.Store.Driver)
	}

	if cfg.Providers.OpenRouter.Disabled && cfg.Providers.Ollama.Disabled {
		add("providers", "at least one provider must be enabled")
	}

	// Agent validation
	agentNames := make([]string, 0, len(cfg.Agents))
	for i, a := range cfg.Agents {
		path := fmt.Sprintf("agents.%d", i)
		if a.Name == "" {
			add(path+".name", "name is required")
		} else if slices.Contains(agentNames, a.Name) {
			add(path+".name", "duplicate agent name %q", a.Name)
		}
		if a.Model == "" {
			add(path+".model", "model is required")
		}
		agentNames = append(agentNames, a.Name)
	}

	// Group validation
	groupNames := make([]string, 0, len(cfg.Groups))
	for i, g := range cfg.Groups {
		path := fmt.Sprintf("groups.%d", i)
		if g.Name == "" {
			add(path+".name", "name is required")
		} else if slices.Contains(groupNames, g.Name) {
			add(path+".name", "duplicate group name %q", g.Name)
		}
		groupNames = append(groupNames, g.Name)

		if len(g.Members) == 0 {
			add(path+".members", "members must not be empty")
		}
		for j, m := range g.Members {
			if !slices.Contains(agentNames, m) {
				add(fmt.Sprintf("%s.members.%d", path, j), "unknown agent %q", m)
			}
		}
		flow := domain.FlowKind(g.Flow)
		if g.Flow != "" && !flow.Valid() {
			add(path+".flow", "must be one of [manual roundRobin autoModerator], got %q", g.Flow)
		}
		if g.Moderator != "" && !slices.Contains(g.Members, g.Moderator) {
			add(path+".moderator", "moderator %q must be a member", g.Moderator)
		}
		if flow == domain.FlowAutoModerator && g.Moderator == "" {
			add(path+".moderator", "required for autoModerator flow")
		}
		if g.MaxTurns < domain.MinMaxTurns || g.MaxTurns > domain.MaxMaxTurns {
			add(path+".maxTurns", "must be %d-%d, got %d", domain.MinMaxTurns, domain.MaxMaxTurns, g.MaxTurns)
		}
		if g.TimerSeconds < 0 || g.TimerSeconds > domain.MaxTimerSeconds {
			add(path+".timerSeconds", "must be 0-%d, got %d", domain.MaxTimerSeconds, g.TimerSeconds)
		}
		if g.SummarizationTokenThreshold < 0 {
			add(path+".summarizationTokenThreshold", "must not be negative")
		}
	}

	// Summary validation
	if cfg.Summary.UtilityAgent != "" && !slices.Contains(agentNames, cfg.Summary.UtilityAgent) {
		add("summary.utilityAgent", "unknown agent %q", cfg.Summary.UtilityAgent)
	}
	if cfg.Summary.ThresholdTokens < 0 {
		add("summary.thresholdTokens", "must not be negative")
	}
	if cfg.Summary.KeepRecent < 0 {
		add("summary.keepRecent", "must not be negative")
	}

	return issues
}
