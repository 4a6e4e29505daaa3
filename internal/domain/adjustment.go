package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionStateInput     = "input"
	SessionStateAnalyzing = "analyzing"
	SessionStateReview    = "review"
	SessionStateApplying  = "applying"
	SessionStateComplete  = "complete"

	// Single-shot flow for an externally authored report the user pastes in.
	SessionStatePreview = "preview"
	SessionStateAdjust  = "adjust"
)

// AdjustmentSession is the post-pipeline edit loop over one document. ReportID
// is nil when the session operates on pasted external content.
type AdjustmentSession struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	ReportID    *uuid.UUID     `gorm:"type:uuid;index" json:"report_id,omitempty"`
	State       string         `gorm:"column:state;not null;index" json:"state"`
	Content     string         `gorm:"column:content;type:text" json:"content"`
	Instruction string         `gorm:"column:instruction;type:text" json:"instruction,omitempty"`
	Proposals   datatypes.JSON `gorm:"column:proposals;type:jsonb" json:"proposals,omitempty"`
	Version     int            `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AdjustmentSession) TableName() string { return "adjustment_session" }

// Adjustment is one applied batch: which instruction, what the content looked
// like before and after, and the per-proposal apply results. Append-only; this
// is the user-facing audit trail, distinct from the snapshot sequence.
type Adjustment struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
	Version         int            `gorm:"column:version;not null" json:"version"`
	Instruction     string         `gorm:"column:instruction;type:text" json:"instruction"`
	PreviousContent string         `gorm:"column:previous_content;type:text" json:"previous_content"`
	NewContent      string         `gorm:"column:new_content;type:text" json:"new_content"`
	Proposals       datatypes.JSON `gorm:"column:proposals;type:jsonb" json:"proposals,omitempty"`
	Results         datatypes.JSON `gorm:"column:results;type:jsonb" json:"results,omitempty"`
	Mode            string         `gorm:"column:mode;not null" json:"mode"`
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Adjustment) TableName() string { return "adjustment" }
