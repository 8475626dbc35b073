package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sarega/promptprim/internal/agent"
	"github.com/sarega/promptprim/internal/config"
	"github.com/sarega/promptprim/internal/hooks"
	"github.com/sarega/promptprim/internal/llm"
	"github.com/sarega/promptprim/internal/logging"
	"github.com/sarega/promptprim/internal/store"
	"github.com/sarega/promptprim/internal/turn"
)

// app holds the wiring shared by the conversation commands.
type app struct {
	cfg      config.Config
	registry *llm.Registry
	hooks    *hooks.Manager
	svc      *agent.Service
	db       *store.DB
}

// loadConfig reads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// applyLogging rebuilds the logger with the configured log file. An
// explicit --log-level wins over level.
func applyLogging(cfg config.Config, level string) error {
	if logLevel != "" {
		level = logLevel
	}
	l, closer, err := logging.NewWithFile(cfg.Logging.File, level)
	if err != nil {
		return err
	}
	if logCloser != nil {
		logCloser.Close()
	}
	log, logCloser = l, closer
	return nil
}

// openApp builds the provider registry, session store and conversation
// service from cfg.
func openApp(cfg config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		registry: llm.NewRegistryFromConfig(cfg.Providers, llm.NewHTTPClient(), log),
		hooks:    hooks.NewManager(log),
	}

	var sessions agent.SessionStore
	switch cfg.Store.Driver {
	case "memory":
		sessions = agent.NewMemorySessionStore()
		log.Debug().Msg("using in-memory session store")
	default:
		path := cfg.Store.Path
		if path == "" {
			if err := paths.EnsureDirs(); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
			path = paths.SessionDB()
		}
		db, err := store.Open(path, log)
		if err != nil {
			return nil, fmt.Errorf("opening session database: %w", err)
		}
		a.db = db
		sessions = store.NewSQLiteSessionStore(db)
		log.Debug().Str("path", path).Msg("using SQLite session store")
	}

	opts := agent.OptionsFromConfig(&cfg)
	opts.Runner = turn.NewExecutor(a.registry, log)
	opts.Sessions = sessions
	opts.Hooks = a.hooks
	a.svc = agent.NewService(opts, log)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// refreshModels lists both providers so configured agents resolve. A
// provider that cannot be reached is logged and skipped.
func (a *app) refreshModels(ctx context.Context) {
	if err := a.registry.RefreshModels(ctx); err != nil {
		log.Warn().Err(err).Msg("model listing incomplete")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// withApp loads config, opens the app and runs fn with a signal-aware
// context.
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyLogging(cfg, "warn"); err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()
	return fn(ctx, a)
}
