package repos

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/pkg/errors"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

type SnapshotRepo interface {
	// Append allocates the next version number for the report, stores the
	// snapshot, and advances the report's latest pointer. Concurrent appends
	// for the same report are serialized: at most one snapshot claims a given
	// version number; the loser gets a VersionConflictError and must retry.
	Append(dbc dbctx.Context, reportID uuid.UUID, fromStage string, content string, rollback *domain.RollbackDescriptor) (*domain.ReportSnapshot, error)
	Latest(dbc dbctx.Context, reportID uuid.UUID) (*domain.ReportSnapshot, error)
	LatestContent(dbc dbctx.Context, reportID uuid.UUID) (string, int, error)
	GetVersion(dbc dbctx.Context, reportID uuid.UUID, version int) (*domain.ReportSnapshot, error)
	ListByReport(dbc dbctx.Context, reportID uuid.UUID) ([]*domain.ReportSnapshot, error)
}

type snapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotRepo {
	return &snapshotRepo{db: db, log: baseLog.With("repo", "SnapshotRepo")}
}

func (r *snapshotRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *snapshotRepo) Append(dbc dbctx.Context, reportID uuid.UUID, fromStage string, content string, rollback *domain.RollbackDescriptor) (*domain.ReportSnapshot, error) {
	if reportID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	var created *domain.ReportSnapshot
	err := r.handle(dbc).WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var report domain.Report
		if err := applyLock(tx.WithContext(dbc.Ctx)).Where("id = ?", reportID).Limit(1).Find(&report).Error; err != nil {
			return err
		}
		if report.ID == uuid.Nil {
			return gorm.ErrRecordNotFound
		}

		next := report.LatestVersion + 1
		snap := &domain.ReportSnapshot{
			ID:        uuid.New(),
			ReportID:  reportID,
			Version:   next,
			Content:   content,
			FromStage: fromStage,
			CreatedAt: time.Now().UTC(),
		}
		if rollback != nil {
			raw, _ := json.Marshal(rollback)
			snap.Rollback = datatypes.JSON(raw)
		}
		if err := tx.WithContext(dbc.Ctx).Create(snap).Error; err != nil {
			return err
		}

		// Compare-and-swap on latest_version: the unique (report_id, version)
		// index catches races the row lock did not.
		res := tx.WithContext(dbc.Ctx).
			Model(&domain.Report{}).
			Where("id = ? AND latest_version = ?", reportID, report.LatestVersion).
			Updates(map[string]interface{}{
				"latest_version": next,
				"updated_at":     time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &errors.VersionConflictError{ReportID: reportID.String(), Version: next}
		}

		created = snap
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *snapshotRepo) Latest(dbc dbctx.Context, reportID uuid.UUID) (*domain.ReportSnapshot, error) {
	if reportID == uuid.Nil {
		return nil, nil
	}
	var snap domain.ReportSnapshot
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("report_id = ?", reportID).
		Order("version DESC").
		Limit(1).
		Find(&snap).Error
	if err != nil {
		return nil, err
	}
	if snap.ID == uuid.Nil {
		return nil, nil
	}
	return &snap, nil
}

// LatestContent returns ("", 0, nil) when no mutating stage has run yet.
func (r *snapshotRepo) LatestContent(dbc dbctx.Context, reportID uuid.UUID) (string, int, error) {
	snap, err := r.Latest(dbc, reportID)
	if err != nil {
		return "", 0, err
	}
	if snap == nil {
		return "", 0, nil
	}
	return snap.Content, snap.Version, nil
}

func (r *snapshotRepo) GetVersion(dbc dbctx.Context, reportID uuid.UUID, version int) (*domain.ReportSnapshot, error) {
	if reportID == uuid.Nil || version < 1 {
		return nil, nil
	}
	var snap domain.ReportSnapshot
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("report_id = ? AND version = ?", reportID, version).
		Limit(1).
		Find(&snap).Error
	if err != nil {
		return nil, err
	}
	if snap.ID == uuid.Nil {
		return nil, nil
	}
	return &snap, nil
}

func (r *snapshotRepo) ListByReport(dbc dbctx.Context, reportID uuid.UUID) ([]*domain.ReportSnapshot, error) {
	var out []*domain.ReportSnapshot
	if reportID == uuid.Nil {
		return out, nil
	}
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("report_id = ?", reportID).
		Order("version ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
