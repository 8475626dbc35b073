package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/gateway"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsNewCmd())
	cmd.AddCommand(newSessionsHistoryCmd())
	cmd.AddCommand(newSessionsSearchCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				sessions, err := a.svc.Sessions().List()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "(no sessions)")
					return nil
				}
				for _, s := range sessions {
					group := s.Group
					if group == "" {
						group = "-"
					}
					fmt.Fprintf(out, "  %s  %-20s group=%-12s updated=%s\n",
						s.ID, s.Name, group, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
}

func newSessionsNewCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "new [name]",
		Short: "Create a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return withApp(func(ctx context.Context, a *app) error {
				sess, err := a.svc.NewSession(name, group)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "bind the session to a group")
	return cmd
}

func newSessionsHistoryCmd() *cobra.Command {
	var view bool
	cmd := &cobra.Command{
		Use:   "history <session>",
		Short: "Print a session transcript",
		Long: "Print a session transcript. With --view the history is shown as the next " +
			"turn would see it, with the active summary in place of the range it covers.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				var (
					msgs []domain.Message
					err  error
				)
				if view {
					msgs, _, err = a.svc.View(args[0])
				} else {
					msgs, err = a.svc.Sessions().History(args[0])
				}
				if err != nil {
					return err
				}
				printTranscript(cmd.OutOrStdout(), msgs)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&view, "view", false, "show the summarized view")
	return cmd
}

func newSessionsSearchCmd() *cobra.Command {
	var (
		sessionID string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over stored messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				searcher, ok := a.svc.Sessions().(gateway.Searcher)
				if !ok {
					return fmt.Errorf("search requires the sqlite session store")
				}
				hits, err := searcher.Search(sessionID, strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintln(out, "(no matches)")
					return nil
				}
				for _, h := range hits {
					fmt.Fprintf(out, "  %s  %s: %s\n", h.SessionID, speakerLabel(h.Message), h.Snippet)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "restrict the search to one session")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (default 20)")
	return cmd
}

func speakerLabel(m domain.Message) string {
	switch {
	case m.Speaker != "":
		return m.Speaker
	case m.Role == domain.RoleUser:
		return "You"
	default:
		return string(m.Role)
	}
}

func printTranscript(w io.Writer, msgs []domain.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	for i, m := range msgs {
		fmt.Fprintf(w, "[%d] %s: %s\n", i, speakerLabel(m), m.Text())
		for _, img := range m.Images() {
			fmt.Fprintf(w, "    [image] %s\n", truncate(img, 60))
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
