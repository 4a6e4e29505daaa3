package pipeline

import (
	"strings"
	"testing"

	"gorm.io/datatypes"

	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/errors"
)

func TestRenderPromptSubstitutesKnownPlaceholders(t *testing.T) {
	tpl := "Client: {CLIENT_NAME}\nInvoer: {RAW_INPUT}\nRapport: {CURRENT_REPORT}"
	got := RenderPrompt(tpl, PromptVars{
		ClientName:    "Jansen Holding BV",
		RawInput:      "omzetting eenmanszaak",
		CurrentReport: "# Advies",
	})
	want := "Client: Jansen Holding BV\nInvoer: omzetting eenmanszaak\nRapport: # Advies"
	if got != want {
		t.Fatalf("got %q", got)
	}
}

func TestRenderPromptLeavesUnresolvedPlaceholderLiteral(t *testing.T) {
	got := RenderPrompt("Rapport: {CURRENT_REPORT} en {ONBEKEND}", PromptVars{})
	if !strings.Contains(got, "{ONBEKEND}") {
		t.Fatalf("unknown placeholder must be sent literally, got %q", got)
	}
	if strings.Contains(got, "{CURRENT_REPORT}") {
		t.Fatalf("known placeholder must be substituted even when empty, got %q", got)
	}
}

func TestRenderPromptStageOutputs(t *testing.T) {
	tpl := "Validatie: {OUTPUT:1_validatie}\nComplexiteit: {OUTPUT:2_complexiteit}"
	got := RenderPrompt(tpl, PromptVars{StageOutputs: map[string]string{
		StageValidatie:    "volledig",
		StageComplexiteit: "hoog",
	}})
	if got != "Validatie: volledig\nComplexiteit: hoog" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderPromptAdjustVars(t *testing.T) {
	got := RenderPrompt("{INSTRUCTION} / {CHANGE_COUNT} / {FEEDBACK}", PromptVars{
		Instruction: "maak formeler",
		ChangeCount: "3",
		Feedback:    `[{"type":"modify"}]`,
	})
	if got != `maak formeler / 3 / [{"type":"modify"}]` {
		t.Fatalf("got %q", got)
	}
}

func TestTemplateFor(t *testing.T) {
	cfg := &domain.PromptConfig{
		Name:      "default",
		Templates: datatypes.JSON(`{"1_validatie":"Controleer {RAW_INPUT}","4a_fiscaal":"   "}`),
	}
	tpl, err := TemplateFor(cfg, StageValidatie)
	if err != nil {
		t.Fatalf("TemplateFor: %v", err)
	}
	if tpl != "Controleer {RAW_INPUT}" {
		t.Fatalf("got %q", tpl)
	}
}

func TestTemplateForMissing(t *testing.T) {
	cfg := &domain.PromptConfig{
		Name:      "default",
		Templates: datatypes.JSON(`{"1_validatie":"x","4a_fiscaal":"   "}`),
	}
	if _, err := TemplateFor(cfg, StageGeneratie); !errors.IsConfigurationMissing(err) {
		t.Fatalf("absent template: got %v", err)
	}
	if _, err := TemplateFor(cfg, StageReviewFiscaal); !errors.IsConfigurationMissing(err) {
		t.Fatalf("blank template: got %v", err)
	}
	if _, err := TemplateFor(nil, StageValidatie); !errors.IsConfigurationMissing(err) {
		t.Fatalf("nil config: got %v", err)
	}
}

func TestAIConfigsFor(t *testing.T) {
	cfg := &domain.PromptConfig{
		Name:     "default",
		GlobalAI: datatypes.JSON(`{"model":"gpt-4o","temperature":0.3,"max_output_tokens":8192}`),
		StageAI:  datatypes.JSON(`{"3_generatie":{"model":"gemini-2.5-pro","temperature":0.4}}`),
	}
	override, global, err := AIConfigsFor(cfg, StageGeneratie)
	if err != nil {
		t.Fatalf("AIConfigsFor: %v", err)
	}
	if global == nil || global.Model != "gpt-4o" {
		t.Fatalf("global not decoded: %+v", global)
	}
	if override == nil || override.Model != "gemini-2.5-pro" {
		t.Fatalf("stage override not decoded: %+v", override)
	}
	if override.MaxOutputTokens != nil {
		t.Fatalf("absent field must stay nil for per-field merge")
	}

	override, global, err = AIConfigsFor(cfg, StageValidatie)
	if err != nil {
		t.Fatalf("AIConfigsFor: %v", err)
	}
	if override != nil {
		t.Fatalf("no override defined for %s", StageValidatie)
	}
	if global == nil {
		t.Fatalf("global must still decode")
	}
}

func TestAIConfigsForNullSections(t *testing.T) {
	cfg := &domain.PromptConfig{Name: "empty", GlobalAI: datatypes.JSON(`null`)}
	override, global, err := AIConfigsFor(cfg, StageValidatie)
	if err != nil {
		t.Fatalf("AIConfigsFor: %v", err)
	}
	if override != nil || global != nil {
		t.Fatalf("null sections must decode to nil")
	}
}
