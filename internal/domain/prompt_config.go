package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PromptConfig is a named collection of per-stage prompt templates plus model
// configuration. Exactly one config is active at a time; the pipeline consumes
// it read-only. Templates maps stage id to the raw template text. GlobalAI is
// the default model config; StageAI holds per-stage overrides keyed by stage.
type PromptConfig struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Active    bool           `gorm:"column:active;not null;default:false;index" json:"active"`
	Templates datatypes.JSON `gorm:"column:templates;type:jsonb" json:"templates"`
	GlobalAI  datatypes.JSON `gorm:"column:global_ai;type:jsonb" json:"global_ai"`
	StageAI   datatypes.JSON `gorm:"column:stage_ai;type:jsonb" json:"stage_ai,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PromptConfig) TableName() string { return "prompt_config" }
