package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Param is a loosely typed generation setting as entered in the agent
// editor. It may hold a number, a numeric string, or garbage; coercion
// happens when a request body is built.
type Param string

// Float returns the numeric value of p. ok is false for empty or
// non-numeric values.
func (p Param) Float() (float64, bool) {
	s := strings.TrimSpace(string(p))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int returns the integer value of p, truncating fractional input.
func (p Param) Int() (int, bool) {
	s := strings.TrimSpace(string(p))
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, ok := p.Float()
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// UnmarshalJSON accepts JSON numbers, strings and null.
func (p *Param) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*p = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Param(s)
		return nil
	}
	*p = Param(b)
	return nil
}

// GenerationParams are an agent's abstract sampling settings.
type GenerationParams struct {
	Temperature       Param `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP              Param `json:"topP,omitempty" yaml:"topP,omitempty"`
	TopK              Param `json:"topK,omitempty" yaml:"topK,omitempty"`
	FrequencyPenalty  Param `json:"frequencyPenalty,omitempty" yaml:"frequencyPenalty,omitempty"`
	PresencePenalty   Param `json:"presencePenalty,omitempty" yaml:"presencePenalty,omitempty"`
	RepetitionPenalty Param `json:"repetitionPenalty,omitempty" yaml:"repetitionPenalty,omitempty"`
	MaxTokens         Param `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	Seed              Param `json:"seed,omitempty" yaml:"seed,omitempty"`

	// StopSequences is a comma-separated list.
	StopSequences string `json:"stopSequences,omitempty" yaml:"stopSequences,omitempty"`
}

// Stops splits StopSequences into trimmed, non-empty entries.
// An empty string yields nil.
func (g GenerationParams) Stops() []string {
	if strings.TrimSpace(g.StopSequences) == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(g.StopSequences, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Agent represents a configured AI agent. It is immutable for the
// duration of a turn.
type Agent struct {
	Name         string           `json:"name"`
	Model        string           `json:"model"`
	SystemPrompt string           `json:"systemPrompt,omitempty"`
	Params       GenerationParams `json:"params"`
}
