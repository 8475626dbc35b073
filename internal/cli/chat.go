package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sarega/promptprim/internal/agent"
	"github.com/sarega/promptprim/internal/render"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		sessionID string
		name      string
		images    []string
		noStream  bool
	)

	cmd := &cobra.Command{
		Use:   "chat <agent> [message]",
		Short: "Send a message to one agent and print the reply",
		Long: "Send a message to one agent and print the reply. Without --session a new " +
			"session is created and its id printed to stderr. Ctrl-C stops the reply and " +
			"keeps what was generated so far.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			return withApp(func(ctx context.Context, a *app) error {
				a.refreshModels(ctx)
				id, err := ensureSession(cmd, a, sessionID, name, "")
				if err != nil {
					return err
				}

				term := render.NewTerminal(cmd.OutOrStdout())
				defer term.Close()

				// The turn runs on its own context so Ctrl-C stops the
				// generation rather than the command.
				stop := context.AfterFunc(ctx, func() { a.svc.Stop() })
				defer stop()

				out, err := a.svc.Send(context.Background(), agent.SendRequest{
					SessionID: id,
					Agent:     args[0],
					Text:      text,
					Images:    images,
					Stream:    !noStream,
					Publish:   term.Publish,
				})
				if err != nil {
					return err
				}
				reportOutcome(cmd.ErrOrStderr(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().StringVar(&name, "name", "", "name for a new session")
	cmd.Flags().StringArrayVar(&images, "image", nil, "attach an image URL or data URL (repeatable)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for the complete reply")

	return cmd
}

// ensureSession returns id, or creates a session and reports its id.
func ensureSession(cmd *cobra.Command, a *app, id, name, group string) (string, error) {
	if id != "" {
		if _, err := a.svc.Sessions().Get(id); err != nil {
			return "", err
		}
		return id, nil
	}
	sess, err := a.svc.NewSession(name, group)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sess.ID)
	return sess.ID, nil
}

func reportOutcome(w io.Writer, out *agent.TurnOutcome) {
	res := out.Result
	switch {
	case res.Superseded:
		fmt.Fprintln(w, "[superseded]")
	case res.Cancelled:
		fmt.Fprintf(w, "[stopped after %d chars]\n", len(res.Text))
	}
	fmt.Fprintf(w, "[model=%s provider=%s duration=%s]\n", res.Model, res.Provider, res.Duration.Round(1e6))
	if out.Summary != nil {
		fmt.Fprintf(w, "[summarized messages %d-%d]\n", out.Summary.FromIndex, out.Summary.ToIndex)
	}
}
