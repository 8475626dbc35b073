package cli

import (
	"fmt"

	"github.com/sarega/promptprim/internal/config"
	"github.com/sarega/promptprim/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show PromptPrim status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "PromptPrim %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}

			gw := cfg.Gateway
			fmt.Fprintf(out, "Gateway: port=%d bind=%s auth=%s tls=%v rate=%.0f/s burst=%d\n",
				gw.Port, gw.Bind, gw.Auth.Mode, gw.TLS.Enabled, gw.RateLimit.RequestsPerSecond, gw.RateLimit.Burst)

			storePath := cfg.Store.Path
			if storePath == "" && cfg.Store.Driver != "memory" {
				storePath = paths.SessionDB()
			}
			fmt.Fprintf(out, "Store:   driver=%s %s\n", cfg.Store.Driver, storePath)

			or := cfg.Providers.OpenRouter
			switch {
			case or.Disabled:
				fmt.Fprintln(out, "Cloud:   disabled")
			case or.APIKey == "":
				fmt.Fprintln(out, "Cloud:   OpenRouter (no API key)")
			default:
				fmt.Fprintf(out, "Cloud:   OpenRouter key=%s\n", maskSecret(or.APIKey))
			}
			if cfg.Providers.Ollama.Disabled {
				fmt.Fprintln(out, "Local:   disabled")
			} else {
				url := cfg.Providers.Ollama.BaseURL
				if url == "" {
					url = "(default)"
				}
				fmt.Fprintf(out, "Local:   Ollama %s\n", url)
			}

			fmt.Fprintf(out, "Agents:  %d\n", len(cfg.Agents))
			fmt.Fprintf(out, "Groups:  %d\n", len(cfg.Groups))
			if cfg.Summary.UtilityAgent != "" {
				fmt.Fprintf(out, "Summary: agent=%s threshold=%d keepRecent=%d\n",
					cfg.Summary.UtilityAgent, cfg.Summary.ThresholdTokens, cfg.Summary.KeepRecent)
			} else {
				fmt.Fprintln(out, "Summary: disabled (no utility agent)")
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}

	return cmd
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(s string) string {
	if len(s) <= 12 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
