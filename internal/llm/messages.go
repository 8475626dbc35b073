package llm

import (
	"fmt"
	"strings"

	"github.com/sarega/promptprim/internal/domain"
)

// BuildMessages converts history into provider wire messages as seen by
// agent. The agent's system prompt leads. Assistant messages written by
// other agents are presented as attributed user messages so the speaker
// can tell its own turns from its peers'.
func BuildMessages(kind domain.ProviderKind, agent domain.Agent, history []domain.Message) []map[string]any {
	out := make([]map[string]any, 0, len(history)+1)
	if strings.TrimSpace(agent.SystemPrompt) != "" {
		out = append(out, map[string]any{"role": string(domain.RoleSystem), "content": agent.SystemPrompt})
	}
	for _, m := range history {
		role := m.Role
		prefix := ""
		if m.Role == domain.RoleAssistant && m.Speaker != "" && m.Speaker != agent.Name {
			role = domain.RoleUser
			prefix = fmt.Sprintf("[%s]: ", m.Speaker)
		}
		if kind == domain.ProviderLocal {
			out = append(out, localMessage(role, prefix, m))
		} else {
			out = append(out, cloudMessage(role, prefix, m))
		}
	}
	return out
}

func cloudMessage(role domain.Role, prefix string, m domain.Message) map[string]any {
	if !m.IsMultipart() {
		return map[string]any{"role": string(role), "content": prefix + m.Content}
	}
	parts := make([]map[string]any, 0, len(m.Parts))
	if prefix != "" {
		parts = append(parts, map[string]any{"type": "text", "text": strings.TrimSpace(prefix)})
	}
	for _, p := range m.Parts {
		switch p.Type {
		case domain.PartText:
			parts = append(parts, map[string]any{"type": "text", "text": p.Text})
		case domain.PartImage:
			parts = append(parts, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": p.ImageURL},
			})
		}
	}
	return map[string]any{"role": string(role), "content": parts}
}

func localMessage(role domain.Role, prefix string, m domain.Message) map[string]any {
	msg := map[string]any{"role": string(role)}
	text := m.Text()
	var images []string
	for _, ref := range m.Images() {
		if data, ok := stripDataURL(ref); ok {
			images = append(images, data)
			continue
		}
		// The local server only accepts inline image data.
		text += fmt.Sprintf("\n[image: %s]", ref)
	}
	msg["content"] = prefix + text
	if len(images) > 0 {
		msg["images"] = images
	}
	return msg
}

// stripDataURL returns the base64 payload of a data URL.
func stripDataURL(ref string) (string, bool) {
	if !strings.HasPrefix(ref, "data:") {
		return "", false
	}
	_, data, ok := strings.Cut(ref, ";base64,")
	if !ok || data == "" {
		return "", false
	}
	return data, true
}
