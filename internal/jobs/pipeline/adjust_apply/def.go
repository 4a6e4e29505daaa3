package adjust_apply

import (
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/adjust"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

// Pipeline applies an accepted proposal batch in the background. Direct mode
// finishes quickly; ai mode can take as long as a model call.
type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger
	svc *adjust.Service
}

func New(db *gorm.DB, baseLog *logger.Logger, svc *adjust.Service) *Pipeline {
	return &Pipeline{
		db:  db,
		log: baseLog.With("job", domain.JobTypeAdjustApply),
		svc: svc,
	}
}

func (p *Pipeline) Type() string { return domain.JobTypeAdjustApply }
