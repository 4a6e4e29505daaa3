package adjust_analyze

import (
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/adjust"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

// Pipeline runs the analysis model call for an adjustment session in the
// background so the request cycle returns immediately.
type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger
	svc *adjust.Service
}

func New(db *gorm.DB, baseLog *logger.Logger, svc *adjust.Service) *Pipeline {
	return &Pipeline{
		db:  db,
		log: baseLog.With("job", domain.JobTypeAdjustAnalyze),
		svc: svc,
	}
}

func (p *Pipeline) Type() string { return domain.JobTypeAdjustAnalyze }
