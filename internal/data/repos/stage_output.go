package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

type StageOutputRepo interface {
	// Upsert stores the verbatim raw output for (report, stage) as one atomic
	// row write. Re-running a stage overwrites its prior output.
	Upsert(dbc dbctx.Context, output *domain.ReportStageOutput) (*domain.ReportStageOutput, error)
	Get(dbc dbctx.Context, reportID uuid.UUID, stage string) (*domain.ReportStageOutput, error)
	ListByReport(dbc dbctx.Context, reportID uuid.UUID) ([]*domain.ReportStageOutput, error)
	CompletedStages(dbc dbctx.Context, reportID uuid.UUID) (map[string]bool, error)
}

type stageOutputRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageOutputRepo(db *gorm.DB, baseLog *logger.Logger) StageOutputRepo {
	return &stageOutputRepo{db: db, log: baseLog.With("repo", "StageOutputRepo")}
}

func (r *stageOutputRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *stageOutputRepo) Upsert(dbc dbctx.Context, output *domain.ReportStageOutput) (*domain.ReportStageOutput, error) {
	if output == nil || output.ReportID == uuid.Nil || output.Stage == "" {
		return nil, gorm.ErrRecordNotFound
	}
	if output.ID == uuid.Nil {
		output.ID = uuid.New()
	}
	now := time.Now().UTC()
	if output.CreatedAt.IsZero() {
		output.CreatedAt = now
	}
	output.UpdatedAt = now
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "report_id"}, {Name: "stage"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "raw_output", "prompt_sent", "model_used", "error", "config", "updated_at",
			}),
		}).
		Create(output).Error
	if err != nil {
		return nil, err
	}
	return output, nil
}

func (r *stageOutputRepo) Get(dbc dbctx.Context, reportID uuid.UUID, stage string) (*domain.ReportStageOutput, error) {
	if reportID == uuid.Nil || stage == "" {
		return nil, nil
	}
	var out domain.ReportStageOutput
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("report_id = ? AND stage = ?", reportID, stage).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *stageOutputRepo) ListByReport(dbc dbctx.Context, reportID uuid.UUID) ([]*domain.ReportStageOutput, error) {
	var out []*domain.ReportStageOutput
	if reportID == uuid.Nil {
		return out, nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("report_id = ?", reportID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompletedStages returns the set of stage ids with a done output row. This is
// the input to the pipeline's nextRunnable query.
func (r *stageOutputRepo) CompletedStages(dbc dbctx.Context, reportID uuid.UUID) (map[string]bool, error) {
	rows, err := r.ListByReport(dbc, reportID)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.Status == domain.StageOutputDone {
			done[row.Stage] = true
		}
	}
	return done, nil
}
