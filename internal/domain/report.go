package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ReportStatusDraft      = "draft"
	ReportStatusProcessing = "processing"
	ReportStatusGenerated  = "generated"
	ReportStatusError      = "error"
)

// Report is the aggregate root for one advice document. Stage outputs live in
// report_stage_output rows; snapshots in report_snapshot. LatestVersion is the
// serialization point for snapshot appends (compare-and-swap on this column).
type Report struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	ClientName    string         `gorm:"column:client_name;not null" json:"client_name"`
	RawInput      string         `gorm:"column:raw_input;type:text" json:"raw_input"`
	Status        string         `gorm:"column:status;not null;index" json:"status"`
	FailedStage   string         `gorm:"column:failed_stage" json:"failed_stage,omitempty"`
	LatestVersion int            `gorm:"column:latest_version;not null;default:0" json:"latest_version"`
	RolledBack    datatypes.JSON `gorm:"column:rolled_back;type:jsonb" json:"rolled_back,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Report) TableName() string { return "report" }

// ReportSnapshot is one immutable full-content document version. Versions are
// strictly increasing and gapless from 1 within a report. Rollback carries the
// descriptor of the undone change when FromStage is "rollback".
type ReportSnapshot struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID  uuid.UUID      `gorm:"type:uuid;not null;index:idx_snapshot_report_version,unique,priority:1" json:"report_id"`
	Version   int            `gorm:"column:version;not null;index:idx_snapshot_report_version,unique,priority:2" json:"version"`
	Content   string         `gorm:"column:content;type:text;not null" json:"content"`
	FromStage string         `gorm:"column:from_stage;not null" json:"from_stage"`
	Rollback  datatypes.JSON `gorm:"column:rollback;type:jsonb" json:"rollback,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (ReportSnapshot) TableName() string { return "report_snapshot" }

// RollbackDescriptor is stored on a snapshot produced by undoing one change.
type RollbackDescriptor struct {
	Stage       string `json:"stage"`
	ChangeIndex int    `json:"change_index"`
}

const (
	StageOutputPending = "pending"
	StageOutputDone    = "done"
	StageOutputFailed  = "failed"
)

// ReportStageOutput stores the verbatim raw model output for one stage of one
// report, plus the exact prompt sent so a failed stage is debuggable without
// guessing. One row per (report, stage); re-running a stage overwrites it.
type ReportStageOutput struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_stage_output_report_stage,unique,priority:1" json:"report_id"`
	Stage      string         `gorm:"column:stage;not null;index:idx_stage_output_report_stage,unique,priority:2" json:"stage"`
	Status     string         `gorm:"column:status;not null" json:"status"`
	RawOutput  string         `gorm:"column:raw_output;type:text" json:"raw_output"`
	PromptSent string         `gorm:"column:prompt_sent;type:text" json:"prompt_sent,omitempty"`
	ModelUsed  string         `gorm:"column:model_used" json:"model_used,omitempty"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	Config     datatypes.JSON `gorm:"column:config;type:jsonb" json:"config,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (ReportStageOutput) TableName() string { return "report_stage_output" }
