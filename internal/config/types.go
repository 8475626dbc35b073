package config

import "github.com/sarega/promptprim/internal/domain"

// Config is the root configuration for PromptPrim.
type Config struct {
	Providers ProvidersConfig `yaml:"providers,omitempty"`
	Agents    []AgentEntry    `yaml:"agents,omitempty"`
	Groups    []GroupEntry    `yaml:"groups,omitempty"`
	Summary   SummaryConfig   `yaml:"summary,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ProvidersConfig configures the two chat backends.
type ProvidersConfig struct {
	OpenRouter OpenRouterConfig `yaml:"openrouter,omitempty"`
	Ollama     OllamaConfig     `yaml:"ollama,omitempty"`
}

// OpenRouterConfig configures the cloud aggregator.
type OpenRouterConfig struct {
	BaseURL  string        `yaml:"baseUrl,omitempty"`
	APIKey   string        `yaml:"apiKey,omitempty"`
	Referer  string        `yaml:"referer,omitempty"`
	Title    string        `yaml:"title,omitempty"`
	Disabled bool          `yaml:"disabled,omitempty"`
	Models   []ModelConfig `yaml:"models,omitempty"`
}

// OllamaConfig configures the local inference server.
type OllamaConfig struct {
	BaseURL  string        `yaml:"baseUrl,omitempty"`
	Disabled bool          `yaml:"disabled,omitempty"`
	Models   []ModelConfig `yaml:"models,omitempty"`
}

// ModelConfig pins a model into the catalog without listing it.
type ModelConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`
}

// AgentEntry defines a single agent.
type AgentEntry struct {
	Name         string                  `yaml:"name"`
	Model        string                  `yaml:"model"`
	SystemPrompt string                  `yaml:"systemPrompt,omitempty"`
	Params       domain.GenerationParams `yaml:"params,omitempty"`
}

// Agent converts the entry to its domain form.
func (a AgentEntry) Agent() domain.Agent {
	return domain.Agent{Name: a.Name, Model: a.Model, SystemPrompt: a.SystemPrompt, Params: a.Params}
}

// GroupEntry defines a group conversation.
type GroupEntry struct {
	Name                        string   `yaml:"name"`
	Members                     []string `yaml:"members"`
	Moderator                   string   `yaml:"moderator,omitempty"`
	Flow                        string   `yaml:"flow,omitempty"` // "manual" | "roundRobin" | "autoModerator"
	MaxTurns                    int      `yaml:"maxTurns,omitempty"`
	TimerSeconds                int      `yaml:"timerSeconds,omitempty"`
	SummarizationTokenThreshold int      `yaml:"summarizationTokenThreshold,omitempty"`
}

// Group converts the entry to its domain form.
func (g GroupEntry) Group() domain.Group {
	return domain.Group{
		Name:                        g.Name,
		Members:                     append([]string(nil), g.Members...),
		Moderator:                   g.Moderator,
		Flow:                        domain.FlowKind(g.Flow),
		MaxTurns:                    g.MaxTurns,
		TimerSeconds:                g.TimerSeconds,
		SummarizationTokenThreshold: g.SummarizationTokenThreshold,
	}
}

// SummaryConfig controls history compaction.
type SummaryConfig struct {
	UtilityAgent    string `yaml:"utilityAgent,omitempty"`
	ThresholdTokens int    `yaml:"thresholdTokens,omitempty"` // approximate tokens; a group threshold overrides it
	KeepRecent      int    `yaml:"keepRecent,omitempty"`      // messages left verbatim after the summary
	Prompt          string `yaml:"prompt,omitempty"`
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int              `yaml:"port,omitempty"`
	Bind           string           `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string           `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth      `yaml:"auth,omitempty"`
	ControlUI      GatewayControlUI `yaml:"controlUi,omitempty"`
	RateLimit      RateLimitConfig  `yaml:"rateLimit,omitempty"`
	TLS            GatewayTLS       `yaml:"tls,omitempty"`
}

// GatewayTLS enables TLS on the gateway listener.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GatewayControlUI configures browser access.
type GatewayControlUI struct {
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// RateLimitConfig bounds RPC calls per connection.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty"`   // defaults to <home>/data/sessions.db
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File  string `yaml:"file,omitempty"`
}

// FindAgent returns the agent entry with the given name.
func (c *Config) FindAgent(name string) (AgentEntry, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentEntry{}, false
}

// FindGroup returns the group entry with the given name.
func (c *Config) FindGroup(name string) (GroupEntry, bool) {
	for _, g := range c.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupEntry{}, false
}
