package agent

import (
	"fmt"
	"strings"

	"github.com/sarega/promptprim/internal/domain"
	"github.com/sarega/promptprim/internal/flow"
)

// PromptConfig controls system prompt generation for one turn.
type PromptConfig struct {
	Agent domain.Agent

	// Group and Members are set for group conversations.
	Group   string
	Members []string
}

// BuildSystemPrompt returns the agent's own system prompt, followed by
// the group context when the agent speaks in a group.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(cfg.Agent.SystemPrompt))

	if cfg.Group != "" && len(cfg.Members) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		others := make([]string, 0, len(cfg.Members))
		for _, m := range cfg.Members {
			if m != cfg.Agent.Name {
				others = append(others, m)
			}
		}
		fmt.Fprintf(&b, "You are %s in the group conversation %q.\n", cfg.Agent.Name, cfg.Group)
		if len(others) > 0 {
			fmt.Fprintf(&b, "Other participants: %s.\n", strings.Join(others, ", "))
		}
		b.WriteString("Messages from other participants are prefixed with [Name]. Reply only as yourself and do not prefix your reply with your name.")
	}
	return b.String()
}

// ModeratorInstruction is the meta-instruction appended to the
// transcript when the moderator chooses the next speaker.
func ModeratorInstruction(members []string) string {
	var b strings.Builder
	b.WriteString("You are moderating this conversation. Decide who should speak next.\n")
	b.WriteString("Participants:\n")
	for _, m := range members {
		fmt.Fprintf(&b, "- %s\n", m)
	}
	fmt.Fprintf(&b, "Answer with exactly one participant name from the list, or %s if the conversation is complete. Do not add anything else.", flow.EndToken)
	return b.String()
}
