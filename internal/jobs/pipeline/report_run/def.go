package report_run

import (
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/data/repos"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pipeline"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

// Pipeline runs the full stage sequence for one report in a single job:
// preparation stages one by one, the four reviewers concurrently, then
// consolidation and the final check.
type Pipeline struct {
	db      *gorm.DB
	log     *logger.Logger
	reports repos.ReportRepo
	pipe    *pipeline.Pipeline
}

func New(db *gorm.DB, baseLog *logger.Logger, reports repos.ReportRepo, pipe *pipeline.Pipeline) *Pipeline {
	return &Pipeline{
		db:      db,
		log:     baseLog.With("job", domain.JobTypeReportRun),
		reports: reports,
		pipe:    pipe,
	}
}

func (p *Pipeline) Type() string { return domain.JobTypeReportRun }
