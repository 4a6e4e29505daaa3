package aiconfig

import (
	"strings"

	"github.com/advieskamer/advies-backend/internal/pkg/errors"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// Provider-side hard ceilings on output tokens. Enforced centrally in the
// resolver, never at call sites.
const (
	openAIMaxOutputTokens = 32768
	googleMaxOutputTokens = 65536
)

// Config is a partial model configuration. Pointer fields distinguish "unset"
// from zero so stage overrides can be merged field by field over the global
// default. The resolved form (Resolved) has no optional core fields left.
type Config struct {
	Provider        string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model           string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK            *int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
	ThinkingBudget  *int     `json:"thinking_budget,omitempty" yaml:"thinking_budget,omitempty"`
	ReasoningEffort string   `json:"reasoning_effort,omitempty" yaml:"reasoning_effort,omitempty"`
	DeepResearch    bool     `json:"deep_research,omitempty" yaml:"deep_research,omitempty"`
}

// Resolved is the effective configuration for one stage invocation.
type Resolved struct {
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"top_p,omitempty"`
	TopK            int     `json:"top_k,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	ThinkingBudget  int     `json:"thinking_budget,omitempty"`
	ReasoningEffort string  `json:"reasoning_effort,omitempty"`
	DeepResearch    bool    `json:"deep_research,omitempty"`
}

type Resolver struct {
	log *logger.Logger
}

func NewResolver(baseLog *logger.Logger) *Resolver {
	return &Resolver{log: baseLog.With("component", "AIConfigResolver")}
}

// ResolveForStage merges a stage-level override over the global default,
// per field, and validates the result. Missing both configs, or missing any of
// model/temperature/max_output_tokens after the merge, is a hard
// ConfigurationMissing error naming the absent fields.
func (r *Resolver) ResolveForStage(stage string, stageOverride *Config, global *Config, jobID string) (*Resolved, error) {
	if stageOverride == nil && global == nil {
		return nil, &errors.ConfigurationMissingError{Scope: "stage " + stage, Fields: []string{"ai_config"}}
	}

	merged := merge(stageOverride, global)

	var missing []string
	if strings.TrimSpace(merged.Model) == "" {
		missing = append(missing, "model")
	}
	if merged.Temperature == nil {
		missing = append(missing, "temperature")
	}
	if merged.MaxOutputTokens == nil {
		missing = append(missing, "max_output_tokens")
	}
	if len(missing) > 0 {
		return nil, &errors.ConfigurationMissingError{Scope: "stage " + stage, Fields: missing}
	}

	provider := strings.TrimSpace(strings.ToLower(merged.Provider))
	if provider == "" {
		provider = inferProvider(merged.Model)
	}
	if provider != ProviderOpenAI && provider != ProviderGoogle {
		return nil, &errors.ConfigurationMissingError{Scope: "stage " + stage, Fields: []string{"provider (unrecognized model id " + merged.Model + ")"}}
	}

	out := &Resolved{
		Provider:        provider,
		Model:           merged.Model,
		Temperature:     *merged.Temperature,
		MaxOutputTokens: *merged.MaxOutputTokens,
		ReasoningEffort: merged.ReasoningEffort,
	}
	if merged.TopP != nil {
		out.TopP = *merged.TopP
	}
	if merged.TopK != nil {
		out.TopK = *merged.TopK
	}
	if merged.ThinkingBudget != nil {
		out.ThinkingBudget = *merged.ThinkingBudget
	}

	ceiling := openAIMaxOutputTokens
	if provider == ProviderGoogle {
		ceiling = googleMaxOutputTokens
	}
	if out.MaxOutputTokens > ceiling {
		r.log.Warn("Clamping max_output_tokens to provider ceiling",
			"stage", stage,
			"job_id", jobID,
			"model", out.Model,
			"requested", out.MaxOutputTokens,
			"ceiling", ceiling,
		)
		out.MaxOutputTokens = ceiling
	}

	applyDeepResearch(stage, merged, out)
	return out, nil
}

// merge overlays stage fields on global, field by field. A stage can override
// only temperature and still inherit the model id from global.
func merge(stage *Config, global *Config) *Config {
	out := &Config{}
	if global != nil {
		*out = *global
	}
	if stage == nil {
		return out
	}
	if strings.TrimSpace(stage.Provider) != "" {
		out.Provider = stage.Provider
	}
	if strings.TrimSpace(stage.Model) != "" {
		out.Model = stage.Model
	}
	if stage.Temperature != nil {
		out.Temperature = stage.Temperature
	}
	if stage.TopP != nil {
		out.TopP = stage.TopP
	}
	if stage.TopK != nil {
		out.TopK = stage.TopK
	}
	if stage.MaxOutputTokens != nil {
		out.MaxOutputTokens = stage.MaxOutputTokens
	}
	if stage.ThinkingBudget != nil {
		out.ThinkingBudget = stage.ThinkingBudget
	}
	if strings.TrimSpace(stage.ReasoningEffort) != "" {
		out.ReasoningEffort = stage.ReasoningEffort
	}
	if stage.DeepResearch {
		out.DeepResearch = true
	}
	return out
}

func inferProvider(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "gemini"):
		return ProviderGoogle
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return ProviderOpenAI
	default:
		return ""
	}
}

// applyDeepResearch is the one stage-specific extension point: the draft
// generation stage may run in expanded deep-research mode, but only when a
// pro-class Gemini model is selected. Kept out of the generic merge so the
// resolver itself stays provider-agnostic.
func applyDeepResearch(stage string, merged *Config, out *Resolved) {
	if !merged.DeepResearch {
		return
	}
	if stage != "3_generatie" {
		out.DeepResearch = false
		return
	}
	if out.Provider != ProviderGoogle || !strings.Contains(strings.ToLower(out.Model), "pro") {
		out.DeepResearch = false
		return
	}
	out.DeepResearch = true
	if out.ThinkingBudget == 0 {
		out.ThinkingBudget = 16384
	}
}
