package repos

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

type ReportRepo interface {
	Create(dbc dbctx.Context, report *domain.Report) (*domain.Report, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Report, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.Report, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SetStatus(dbc dbctx.Context, id uuid.UUID, status string, failedStage string) error
	MarkRolledBack(dbc dbctx.Context, id uuid.UUID, stage string, changeIndex int) (bool, error)
	IsRolledBack(dbc dbctx.Context, id uuid.UUID, stage string, changeIndex int) (bool, error)
	List(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*domain.Report, error)
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{db: db, log: baseLog.With("repo", "ReportRepo")}
}

func (r *reportRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *reportRepo) Create(dbc dbctx.Context, report *domain.Report) (*domain.Report, error) {
	if report == nil {
		return nil, nil
	}
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.Status == "" {
		report.Status = domain.ReportStatusDraft
	}
	if len(report.RolledBack) == 0 {
		report.RolledBack = datatypes.JSON([]byte("[]"))
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(report).Error; err != nil {
		return nil, err
	}
	return report, nil
}

func (r *reportRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Report, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var report domain.Report
	err := r.handle(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&report).Error
	if err != nil {
		return nil, err
	}
	if report.ID == uuid.Nil {
		return nil, nil
	}
	return &report, nil
}

func (r *reportRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.Report, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var report domain.Report
	err := applyLock(r.handle(dbc).WithContext(dbc.Ctx)).
		Where("id = ?", id).
		Limit(1).
		Find(&report).Error
	if err != nil {
		return nil, err
	}
	if report.ID == uuid.Nil {
		return nil, nil
	}
	return &report, nil
}

func (r *reportRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&domain.Report{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *reportRepo) SetStatus(dbc dbctx.Context, id uuid.UUID, status string, failedStage string) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"status":       status,
		"failed_stage": failedStage,
	})
}

// MarkRolledBack adds "stage:index" to the report's rolled-back set. Returns
// false when the change was already rolled back, so callers can report the
// duplicate instead of silently re-applying.
func (r *reportRepo) MarkRolledBack(dbc dbctx.Context, id uuid.UUID, stage string, changeIndex int) (bool, error) {
	report, err := r.LockByID(dbc, id)
	if err != nil {
		return false, err
	}
	if report == nil {
		return false, gorm.ErrRecordNotFound
	}
	set := decodeRolledBack(report.RolledBack)
	key := rolledBackKey(stage, changeIndex)
	for _, existing := range set {
		if existing == key {
			return false, nil
		}
	}
	set = append(set, key)
	raw, _ := json.Marshal(set)
	if err := r.UpdateFields(dbc, id, map[string]interface{}{"rolled_back": datatypes.JSON(raw)}); err != nil {
		return false, err
	}
	return true, nil
}

func (r *reportRepo) IsRolledBack(dbc dbctx.Context, id uuid.UUID, stage string, changeIndex int) (bool, error) {
	report, err := r.GetByID(dbc, id)
	if err != nil {
		return false, err
	}
	if report == nil {
		return false, gorm.ErrRecordNotFound
	}
	key := rolledBackKey(stage, changeIndex)
	for _, existing := range decodeRolledBack(report.RolledBack) {
		if existing == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *reportRepo) List(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*domain.Report, error) {
	var out []*domain.Report
	q := r.handle(dbc).WithContext(dbc.Ctx).Order("created_at DESC")
	if ownerUserID != uuid.Nil {
		q = q.Where("owner_user_id = ?", ownerUserID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func decodeRolledBack(raw datatypes.JSON) []string {
	var set []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &set)
	}
	return set
}

func rolledBackKey(stage string, changeIndex int) string {
	return stage + ":" + strconv.Itoa(changeIndex)
}
