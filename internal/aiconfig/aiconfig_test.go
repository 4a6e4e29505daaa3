package aiconfig

import (
	"testing"

	"github.com/advieskamer/advies-backend/internal/pkg/errors"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return NewResolver(log)
}

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func TestResolveBothConfigsMissing(t *testing.T) {
	r := testResolver(t)
	_, err := r.ResolveForStage("3_generatie", nil, nil, "")
	if err == nil {
		t.Fatalf("expected error for missing configs")
	}
	if !errors.IsConfigurationMissing(err) {
		t.Fatalf("expected ConfigurationMissing, got %T: %v", err, err)
	}
}

func TestResolveMissingFieldsNamed(t *testing.T) {
	r := testResolver(t)
	_, err := r.ResolveForStage("1_validatie", nil, &Config{Model: "gpt-4o"}, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	cfgErr, ok := err.(*errors.ConfigurationMissingError)
	if !ok {
		t.Fatalf("expected ConfigurationMissingError, got %T", err)
	}
	if len(cfgErr.Fields) != 2 {
		t.Fatalf("expected temperature and max_output_tokens named, got %v", cfgErr.Fields)
	}
}

func TestResolveStageOverridesGlobalPerField(t *testing.T) {
	r := testResolver(t)
	global := &Config{Model: "gpt-4o", Temperature: f64(0.3), MaxOutputTokens: i(4096)}
	stage := &Config{Temperature: f64(0.9)}

	res, err := r.ResolveForStage("2_complexiteit", stage, global, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Model != "gpt-4o" {
		t.Fatalf("model should inherit from global, got %s", res.Model)
	}
	if res.Temperature != 0.9 {
		t.Fatalf("temperature should come from stage, got %v", res.Temperature)
	}
	if res.MaxOutputTokens != 4096 {
		t.Fatalf("max_output_tokens should inherit, got %d", res.MaxOutputTokens)
	}
}

func TestResolveProviderInference(t *testing.T) {
	r := testResolver(t)
	cases := []struct {
		model    string
		provider string
	}{
		{"gpt-4o", ProviderOpenAI},
		{"o3-mini", ProviderOpenAI},
		{"gemini-2.5-pro", ProviderGoogle},
	}
	for _, tc := range cases {
		res, err := r.ResolveForStage("1_validatie", nil, &Config{Model: tc.model, Temperature: f64(0.2), MaxOutputTokens: i(1024)}, "")
		if err != nil {
			t.Fatalf("%s: %v", tc.model, err)
		}
		if res.Provider != tc.provider {
			t.Fatalf("%s: expected provider %s, got %s", tc.model, tc.provider, res.Provider)
		}
	}

	_, err := r.ResolveForStage("1_validatie", nil, &Config{Model: "mystery-model", Temperature: f64(0.2), MaxOutputTokens: i(1024)}, "")
	if !errors.IsConfigurationMissing(err) {
		t.Fatalf("unrecognized model should be ConfigurationMissing, got %v", err)
	}
}

func TestResolveClampsToProviderCeiling(t *testing.T) {
	r := testResolver(t)
	res, err := r.ResolveForStage("3_generatie", nil, &Config{Model: "gpt-4o", Temperature: f64(0.3), MaxOutputTokens: i(1000000)}, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.MaxOutputTokens != openAIMaxOutputTokens {
		t.Fatalf("expected clamp to %d, got %d", openAIMaxOutputTokens, res.MaxOutputTokens)
	}

	res, err = r.ResolveForStage("3_generatie", nil, &Config{Model: "gemini-2.5-pro", Temperature: f64(0.3), MaxOutputTokens: i(1000000)}, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.MaxOutputTokens != googleMaxOutputTokens {
		t.Fatalf("expected clamp to %d, got %d", googleMaxOutputTokens, res.MaxOutputTokens)
	}
}

func TestDeepResearchOnlyForProDraftStage(t *testing.T) {
	r := testResolver(t)
	base := &Config{Model: "gemini-2.5-pro", Temperature: f64(0.4), MaxOutputTokens: i(8192), DeepResearch: true}

	res, err := r.ResolveForStage("3_generatie", base, nil, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.DeepResearch {
		t.Fatalf("deep research should engage for pro model on draft stage")
	}
	if res.ThinkingBudget == 0 {
		t.Fatalf("deep research should default a thinking budget")
	}

	res, err = r.ResolveForStage("4a_fiscaal", base, nil, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.DeepResearch {
		t.Fatalf("deep research must not engage outside the draft stage")
	}

	flash := &Config{Model: "gemini-2.5-flash", Temperature: f64(0.4), MaxOutputTokens: i(8192), DeepResearch: true}
	res, err = r.ResolveForStage("3_generatie", flash, nil, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.DeepResearch {
		t.Fatalf("deep research must not engage for non-pro models")
	}
}
