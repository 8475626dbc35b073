package llm

import (
	"github.com/sarega/promptprim/internal/domain"
)

// paramKind says how a generation setting is coerced.
type paramKind int

const (
	floatParam paramKind = iota
	intParam
)

// paramSpec maps one abstract setting to its per-provider wire key.
type paramSpec struct {
	get   func(domain.GenerationParams) domain.Param
	kind  paramKind
	cloud string
	local string
}

var paramSpecs = []paramSpec{
	{func(p domain.GenerationParams) domain.Param { return p.Temperature }, floatParam, "temperature", "temperature"},
	{func(p domain.GenerationParams) domain.Param { return p.TopP }, floatParam, "top_p", "top_p"},
	{func(p domain.GenerationParams) domain.Param { return p.TopK }, intParam, "top_k", "top_k"},
	{func(p domain.GenerationParams) domain.Param { return p.FrequencyPenalty }, floatParam, "frequency_penalty", "frequency_penalty"},
	{func(p domain.GenerationParams) domain.Param { return p.PresencePenalty }, floatParam, "presence_penalty", "presence_penalty"},
	{func(p domain.GenerationParams) domain.Param { return p.RepetitionPenalty }, floatParam, "repetition_penalty", "repeat_penalty"},
	{func(p domain.GenerationParams) domain.Param { return p.MaxTokens }, intParam, "max_tokens", "num_predict"},
	{func(p domain.GenerationParams) domain.Param { return p.Seed }, intParam, "seed", "seed"},
}

// SamplingParams coerces an agent's settings into wire values keyed for
// the given provider. Missing or non-numeric settings are omitted so the
// provider applies its own default.
func SamplingParams(kind domain.ProviderKind, p domain.GenerationParams) map[string]any {
	out := make(map[string]any)
	for _, spec := range paramSpecs {
		key := spec.cloud
		if kind == domain.ProviderLocal {
			key = spec.local
		}
		raw := spec.get(p)
		switch spec.kind {
		case floatParam:
			if v, ok := raw.Float(); ok {
				out[key] = v
			}
		case intParam:
			if v, ok := raw.Int(); ok {
				out[key] = v
			}
		}
	}
	if stops := p.Stops(); len(stops) > 0 {
		out["stop"] = stops
	}
	return out
}

// BuildRequestBody produces the provider-specific chat request body.
// Cloud sampling parameters sit at the top level next to model and
// messages; local parameters are nested under "options".
func BuildRequestBody(kind domain.ProviderKind, agent domain.Agent, messages []map[string]any, stream bool) map[string]any {
	body := map[string]any{
		"model":    agent.Model,
		"messages": messages,
		"stream":   stream,
	}
	params := SamplingParams(kind, agent.Params)
	if kind == domain.ProviderLocal {
		body["options"] = params
		return body
	}
	for k, v := range params {
		body[k] = v
	}
	return body
}
