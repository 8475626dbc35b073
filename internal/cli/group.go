package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sarega/promptprim/internal/agent"
	"github.com/sarega/promptprim/internal/render"
	"github.com/spf13/cobra"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "List and run group conversations",
	}

	cmd.AddCommand(newGroupListCmd())
	cmd.AddCommand(newGroupRunCmd())
	return cmd
}

func newGroupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no groups configured)")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, g := range cfg.Groups {
				fmt.Fprintf(out, "  %-16s flow=%-13s maxTurns=%d members=%s",
					g.Name, g.Flow, g.MaxTurns, strings.Join(g.Members, ","))
				if g.Moderator != "" {
					fmt.Fprintf(out, " moderator=%s", g.Moderator)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newGroupRunCmd() *cobra.Command {
	var (
		sessionID string
		noStream  bool
	)

	cmd := &cobra.Command{
		Use:   "run <group> [message]",
		Short: "Run one round of a roundRobin or autoModerator group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			return withApp(func(ctx context.Context, a *app) error {
				a.refreshModels(ctx)
				id, err := ensureSession(cmd, a, sessionID, "", args[0])
				if err != nil {
					return err
				}

				term := render.NewTerminal(cmd.OutOrStdout())
				defer term.Close()
				stop := context.AfterFunc(ctx, func() { a.svc.Stop() })
				defer stop()

				res, err := a.svc.RunGroup(context.Background(), agent.GroupRequest{
					SessionID: id,
					Group:     args[0],
					Text:      text,
					Stream:    !noStream,
					Publish:   term.Publish,
				})
				if res != nil {
					w := cmd.ErrOrStderr()
					fmt.Fprintf(w, "[%s", res.State)
					if res.Reason != "" {
						fmt.Fprintf(w, ": %s", res.Reason)
					}
					fmt.Fprintf(w, " after %d turn(s)]\n", len(res.Speakers))
					if res.Summaries > 0 {
						fmt.Fprintf(w, "[%d summary(ies) created]\n", res.Summaries)
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session bound to the group")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for each complete reply")

	return cmd
}
