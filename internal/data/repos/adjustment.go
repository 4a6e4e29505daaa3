package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

type AdjustmentRepo interface {
	CreateSession(dbc dbctx.Context, session *domain.AdjustmentSession) (*domain.AdjustmentSession, error)
	GetSession(dbc dbctx.Context, id uuid.UUID) (*domain.AdjustmentSession, error)
	UpdateSession(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	AppendAdjustment(dbc dbctx.Context, adj *domain.Adjustment) (*domain.Adjustment, error)
	History(dbc dbctx.Context, sessionID uuid.UUID) ([]*domain.Adjustment, error)
}

type adjustmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdjustmentRepo(db *gorm.DB, baseLog *logger.Logger) AdjustmentRepo {
	return &adjustmentRepo{db: db, log: baseLog.With("repo", "AdjustmentRepo")}
}

func (r *adjustmentRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *adjustmentRepo) CreateSession(dbc dbctx.Context, session *domain.AdjustmentSession) (*domain.AdjustmentSession, error) {
	if session == nil {
		return nil, nil
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.State == "" {
		session.State = domain.SessionStateInput
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *adjustmentRepo) GetSession(dbc dbctx.Context, id uuid.UUID) (*domain.AdjustmentSession, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var session domain.AdjustmentSession
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ID == uuid.Nil {
		return nil, nil
	}
	return &session, nil
}

func (r *adjustmentRepo) UpdateSession(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.AdjustmentSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *adjustmentRepo) AppendAdjustment(dbc dbctx.Context, adj *domain.Adjustment) (*domain.Adjustment, error) {
	if adj == nil || adj.SessionID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	if adj.ID == uuid.Nil {
		adj.ID = uuid.New()
	}
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = time.Now().UTC()
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(adj).Error; err != nil {
		return nil, err
	}
	return adj, nil
}

func (r *adjustmentRepo) History(dbc dbctx.Context, sessionID uuid.UUID) ([]*domain.Adjustment, error) {
	var out []*domain.Adjustment
	if sessionID == uuid.Nil {
		return out, nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("session_id = ?", sessionID).
		Order("version ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
