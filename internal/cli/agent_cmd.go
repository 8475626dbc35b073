package cli

import (
	"fmt"
	"io"

	"github.com/sarega/promptprim/internal/agent"
	"github.com/sarega/promptprim/internal/config"
	"github.com/sarega/promptprim/internal/domain"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Inspect configured agents",
	}

	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentInfoCmd())
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cfg.Agents) == 0 {
				fmt.Fprintln(out, "(no agents configured)")
				return nil
			}
			for _, a := range cfg.Agents {
				role := ""
				if a.Name == cfg.Summary.UtilityAgent {
					role = " (utility)"
				}
				fmt.Fprintf(out, "  %-16s model=%s%s\n", a.Name, a.Model, role)
			}
			return nil
		},
	}
}

func newAgentInfoCmd() *cobra.Command {
	var prompt bool
	cmd := &cobra.Command{
		Use:   "info <agent>",
		Short: "Show details about an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			entry, ok := cfg.FindAgent(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", agent.ErrUnknownAgent, args[0])
			}
			printAgent(cmd.OutOrStdout(), &cfg, entry.Agent(), prompt)
			return nil
		},
	}
	cmd.Flags().BoolVar(&prompt, "prompt", false, "print the full system prompt sent to the model")
	return cmd
}

func printAgent(w io.Writer, cfg *config.Config, a domain.Agent, prompt bool) {
	fmt.Fprintf(w, "Agent: %s\n", a.Name)
	fmt.Fprintf(w, "  Model:     %s\n", a.Model)

	params := []struct {
		name string
		val  domain.Param
	}{
		{"Temp", a.Params.Temperature},
		{"TopP", a.Params.TopP},
		{"TopK", a.Params.TopK},
		{"FreqPen", a.Params.FrequencyPenalty},
		{"PresPen", a.Params.PresencePenalty},
		{"RepPen", a.Params.RepetitionPenalty},
		{"MaxTokens", a.Params.MaxTokens},
		{"Seed", a.Params.Seed},
	}
	for _, p := range params {
		if p.val != "" {
			fmt.Fprintf(w, "  %-10s %s\n", p.name+":", p.val)
		}
	}
	if stops := a.Params.Stops(); len(stops) > 0 {
		fmt.Fprintf(w, "  Stops:     %q\n", stops)
	}

	var groups []string
	for _, g := range cfg.Groups {
		if g.Group().HasMember(a.Name) {
			groups = append(groups, g.Name)
		}
	}
	if len(groups) > 0 {
		fmt.Fprintf(w, "  Groups:    %v\n", groups)
	}

	if prompt {
		fmt.Fprintf(w, "\n%s\n", agent.BuildSystemPrompt(agent.PromptConfig{Agent: a}))
	} else if a.SystemPrompt != "" {
		fmt.Fprintf(w, "  Prompt:    %s\n", truncate(a.SystemPrompt, 60))
	}
}
