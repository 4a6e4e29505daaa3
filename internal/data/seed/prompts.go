package seed

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/advieskamer/advies-backend/internal/data/repos"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

// promptFile is the YAML shape of a seedable prompt config. The AI sections
// stay loosely typed; validation happens at resolve time, not at seed time,
// so a config can be staged before every stage has its model settings.
type promptFile struct {
	Name      string                    `yaml:"name"`
	Active    bool                      `yaml:"active"`
	Templates map[string]string         `yaml:"templates"`
	GlobalAI  map[string]any            `yaml:"global_ai"`
	StageAI   map[string]map[string]any `yaml:"stage_ai"`
}

// PromptConfigFromFile loads a YAML prompt config and upserts it by name.
// An existing config with the same name is left untouched; seeding never
// overwrites operator edits.
func PromptConfigFromFile(dbc dbctx.Context, prompts repos.PromptConfigRepo, log *logger.Logger, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt seed: %w", err)
	}

	var pf promptFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("parse prompt seed: %w", err)
	}
	if pf.Name == "" {
		return fmt.Errorf("prompt seed %s: missing name", path)
	}
	if len(pf.Templates) == 0 {
		return fmt.Errorf("prompt seed %s: no templates", path)
	}

	existing, err := prompts.GetByName(dbc, pf.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Info("Prompt config already present, skipping seed", "name", pf.Name)
		return nil
	}

	templates, _ := json.Marshal(pf.Templates)
	cfg := &domain.PromptConfig{
		Name:      pf.Name,
		Templates: datatypes.JSON(templates),
	}
	if pf.GlobalAI != nil {
		raw, _ := json.Marshal(pf.GlobalAI)
		cfg.GlobalAI = datatypes.JSON(raw)
	}
	if pf.StageAI != nil {
		raw, _ := json.Marshal(pf.StageAI)
		cfg.StageAI = datatypes.JSON(raw)
	}

	if _, err := prompts.Create(dbc, cfg); err != nil {
		return err
	}

	// First config in, or explicitly marked active, becomes the active one.
	active, err := prompts.GetActive(dbc)
	if err != nil {
		return err
	}
	if pf.Active || active == nil {
		if err := prompts.Activate(dbc, pf.Name); err != nil {
			return err
		}
	}

	log.Info("Prompt config seeded", "name", pf.Name, "templates", len(pf.Templates))
	return nil
}
