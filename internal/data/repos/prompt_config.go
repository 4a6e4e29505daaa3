package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

type PromptConfigRepo interface {
	GetActive(dbc dbctx.Context) (*domain.PromptConfig, error)
	GetByName(dbc dbctx.Context, name string) (*domain.PromptConfig, error)
	Create(dbc dbctx.Context, cfg *domain.PromptConfig) (*domain.PromptConfig, error)
	// Activate makes the named config the single active one, deactivating all
	// others in the same transaction.
	Activate(dbc dbctx.Context, name string) error
}

type promptConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPromptConfigRepo(db *gorm.DB, baseLog *logger.Logger) PromptConfigRepo {
	return &promptConfigRepo{db: db, log: baseLog.With("repo", "PromptConfigRepo")}
}

func (r *promptConfigRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *promptConfigRepo) GetActive(dbc dbctx.Context) (*domain.PromptConfig, error) {
	var cfg domain.PromptConfig
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("active = ?", true).Limit(1).Find(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == uuid.Nil {
		return nil, nil
	}
	return &cfg, nil
}

func (r *promptConfigRepo) GetByName(dbc dbctx.Context, name string) (*domain.PromptConfig, error) {
	if name == "" {
		return nil, nil
	}
	var cfg domain.PromptConfig
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("name = ?", name).Limit(1).Find(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == uuid.Nil {
		return nil, nil
	}
	return &cfg, nil
}

func (r *promptConfigRepo) Create(dbc dbctx.Context, cfg *domain.PromptConfig) (*domain.PromptConfig, error) {
	if cfg == nil {
		return nil, nil
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(cfg).Error; err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *promptConfigRepo) Activate(dbc dbctx.Context, name string) error {
	if name == "" {
		return gorm.ErrRecordNotFound
	}
	return r.handle(dbc).WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Model(&domain.PromptConfig{}).
			Where("active = ?", true).
			Updates(map[string]interface{}{"active": false, "updated_at": now}).Error; err != nil {
			return err
		}
		res := tx.Model(&domain.PromptConfig{}).
			Where("name = ?", name).
			Updates(map[string]interface{}{"active": true, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
