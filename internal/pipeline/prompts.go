package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/advieskamer/advies-backend/internal/aiconfig"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/errors"
)

// Placeholder tokens substituted literally into prompt templates. An
// unresolved placeholder is sent as literal text, not an error; only an
// empty or missing template fails stage execution.
const (
	PlaceholderCurrentReport = "{CURRENT_REPORT}"
	PlaceholderRawInput      = "{RAW_INPUT}"
	PlaceholderClientName    = "{CLIENT_NAME}"
	PlaceholderInstruction   = "{INSTRUCTION}"
	PlaceholderFeedback      = "{FEEDBACK}"
	PlaceholderChangeCount   = "{CHANGE_COUNT}"
)

// PromptVars carries the values available for substitution in one render.
type PromptVars struct {
	CurrentReport string
	RawInput      string
	ClientName    string
	Instruction   string
	Feedback      string
	ChangeCount   string
	StageOutputs  map[string]string
}

// RenderPrompt substitutes known placeholders by literal token replacement.
// {OUTPUT:<stage>} exposes prior stage outputs.
func RenderPrompt(template string, vars PromptVars) string {
	out := template
	out = strings.ReplaceAll(out, PlaceholderCurrentReport, vars.CurrentReport)
	out = strings.ReplaceAll(out, PlaceholderRawInput, vars.RawInput)
	out = strings.ReplaceAll(out, PlaceholderClientName, vars.ClientName)
	out = strings.ReplaceAll(out, PlaceholderInstruction, vars.Instruction)
	out = strings.ReplaceAll(out, PlaceholderFeedback, vars.Feedback)
	out = strings.ReplaceAll(out, PlaceholderChangeCount, vars.ChangeCount)
	for stage, output := range vars.StageOutputs {
		out = strings.ReplaceAll(out, "{OUTPUT:"+stage+"}", output)
	}
	return out
}

// TemplateFor pulls the stage's template out of the active prompt config.
// Missing config or an empty template is a hard ConfigurationMissing error;
// there are no fallback prompts.
func TemplateFor(cfg *domain.PromptConfig, stage string) (string, error) {
	if cfg == nil {
		return "", &errors.ConfigurationMissingError{Scope: "stage " + stage, Fields: []string{"active prompt config"}}
	}
	var templates map[string]string
	if len(cfg.Templates) > 0 {
		if err := json.Unmarshal(cfg.Templates, &templates); err != nil {
			return "", &errors.ConfigurationMissingError{Scope: "stage " + stage, Fields: []string{"templates (invalid json)"}}
		}
	}
	tpl := strings.TrimSpace(templates[stage])
	if tpl == "" {
		return "", &errors.ConfigurationMissingError{Scope: "stage " + stage, Fields: []string{"template"}}
	}
	return tpl, nil
}

// AIConfigsFor decodes the global default and the stage override (if any)
// from the active prompt config.
func AIConfigsFor(cfg *domain.PromptConfig, stage string) (stageOverride *aiconfig.Config, global *aiconfig.Config, err error) {
	if cfg == nil {
		return nil, nil, &errors.ConfigurationMissingError{Scope: "stage " + stage, Fields: []string{"active prompt config"}}
	}
	if len(cfg.GlobalAI) > 0 && string(cfg.GlobalAI) != "null" {
		global = &aiconfig.Config{}
		if uErr := json.Unmarshal(cfg.GlobalAI, global); uErr != nil {
			return nil, nil, &errors.ConfigurationMissingError{Scope: "stage " + stage, Fields: []string{"global_ai (invalid json)"}}
		}
	}
	if len(cfg.StageAI) > 0 && string(cfg.StageAI) != "null" {
		var perStage map[string]*aiconfig.Config
		if uErr := json.Unmarshal(cfg.StageAI, &perStage); uErr != nil {
			return nil, nil, &errors.ConfigurationMissingError{Scope: "stage " + stage, Fields: []string{"stage_ai (invalid json)"}}
		}
		stageOverride = perStage[stage]
	}
	return stageOverride, global, nil
}
