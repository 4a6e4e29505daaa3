package seed

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/advieskamer/advies-backend/internal/adjust"
	"github.com/advieskamer/advies-backend/internal/pipeline"
)

const shippedPromptFile = "../../../configs/prompts.yaml"

func loadShippedPrompts(t *testing.T) promptFile {
	t.Helper()
	raw, err := os.ReadFile(shippedPromptFile)
	if err != nil {
		t.Fatalf("read shipped prompt config: %v", err)
	}
	var pf promptFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		t.Fatalf("parse shipped prompt config: %v", err)
	}
	return pf
}

func TestShippedPromptsCoverModelStages(t *testing.T) {
	pf := loadShippedPrompts(t)

	if pf.Name == "" || !pf.Active {
		t.Fatalf("shipped config must be a named active config, got name=%q active=%v", pf.Name, pf.Active)
	}

	want := []string{
		pipeline.StageValidatie,
		pipeline.StageComplexiteit,
		pipeline.StageGeneratie,
		pipeline.StageReviewFiscaal,
		pipeline.StageReviewConsistentie,
		pipeline.StageReviewLeesbaarheid,
		pipeline.StageReviewVolledigheid,
		pipeline.StageEindcontrole,
		adjust.TemplateAnalyze,
		adjust.TemplateApply,
	}
	for _, key := range want {
		if pf.Templates[key] == "" {
			t.Fatalf("shipped config misses template %q", key)
		}
	}
}

func TestShippedPromptsOmitConsolidationStage(t *testing.T) {
	pf := loadShippedPrompts(t)

	// Consolidation applies reviewer proposals mechanically; a template or
	// model config for it would never be read.
	if _, ok := pf.Templates[pipeline.StageVerwerking]; ok {
		t.Fatalf("consolidation stage must not carry a template")
	}
	if _, ok := pf.StageAI[pipeline.StageVerwerking]; ok {
		t.Fatalf("consolidation stage must not carry model settings")
	}
}
