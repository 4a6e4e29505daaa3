package report_stage

import (
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pipeline"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

// Pipeline runs a single stage for a report. Used to retry a failed stage
// without repeating the ones that already succeeded.
type Pipeline struct {
	db   *gorm.DB
	log  *logger.Logger
	pipe *pipeline.Pipeline
}

func New(db *gorm.DB, baseLog *logger.Logger, pipe *pipeline.Pipeline) *Pipeline {
	return &Pipeline{
		db:   db,
		log:  baseLog.With("job", domain.JobTypeReportStage),
		pipe: pipe,
	}
}

func (p *Pipeline) Type() string { return domain.JobTypeReportStage }
