package cli

import (
	"fmt"

	"github.com/sarega/promptprim/internal/config"
	"github.com/sarega/promptprim/internal/gateway"
	"github.com/spf13/cobra"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the PromptPrim gateway server",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}
			if err := applyLogging(cfg, cfg.Logging.Level); err != nil {
				return err
			}

			// Load raw config for RPC access
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				raw = make(map[string]any)
			}

			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext()
			defer stop()

			// Listing can be slow; the gateway serves while it runs.
			go func() {
				a.refreshModels(ctx)
				log.Info().Int("models", len(a.registry.Catalog().Entries())).Msg("model catalog ready")
			}()

			srv := gateway.New(cfg, log,
				gateway.WithConfigRaw(raw),
				gateway.WithService(a.svc),
				gateway.WithModels(a.registry),
				gateway.WithHooks(a.hooks),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
