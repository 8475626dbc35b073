package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Compact or restore session history",
	}

	cmd.AddCommand(newSummaryCreateCmd())
	cmd.AddCommand(newSummaryUnloadCmd())
	cmd.AddCommand(newSummaryShowCmd())
	return cmd
}

func newSummaryCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <session>",
		Short: "Summarize the older part of a session with the utility agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				a.refreshModels(ctx)
				rec, err := a.svc.Summarize(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Summary %s replaces messages %d-%d (by %s):\n\n", rec.ID, rec.FromIndex, rec.ToIndex, rec.Agent)
				fmt.Fprintln(out, rec.Content)
				return nil
			})
		},
	}
}

func newSummaryUnloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unload <session>",
		Short: "Discard the active summary so the full history is used again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				had, err := a.svc.Unload(ctx, args[0])
				if err != nil {
					return err
				}
				if had {
					fmt.Fprintln(cmd.OutOrStdout(), "Summary unloaded")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No active summary")
				}
				return nil
			})
		},
	}
}

func newSummaryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session>",
		Short: "Print the active summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				rec, err := a.svc.Sessions().ActiveSummary(args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No active summary")
					return nil
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Summary %s replaces messages %d-%d (by %s, %s):\n\n",
					rec.ID, rec.FromIndex, rec.ToIndex, rec.Agent, rec.CreatedAt.Local().Format("2006-01-02 15:04"))
				fmt.Fprintln(out, rec.Content)
				return nil
			})
		},
	}
}
