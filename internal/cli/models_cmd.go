package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the model catalog",
	}

	cmd.AddCommand(newModelsListCmd())
	return cmd
}

func newModelsListCmd() *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models from OpenRouter and Ollama",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				a.refreshModels(ctx)
				cat := a.registry.Catalog()
				out := cmd.OutOrStdout()

				n := 0
				for _, m := range cat.Entries() {
					if provider != "" && string(m.Provider) != provider {
						continue
					}
					fmt.Fprintf(out, "  %-16s %-40s %s\n", m.Provider, m.ID, m.DisplayName)
					n++
				}
				if n == 0 {
					fmt.Fprintln(out, "(no models)")
				}

				errs := cat.Errors()
				for _, kind := range slices.Sorted(maps.Keys(errs)) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", kind, errs[kind])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "only list one provider (cloudAggregator or localServer)")
	return cmd
}
