package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/domain"
)

func SeedReport(tb testing.TB, ctx context.Context, tx *gorm.DB, status string) *domain.Report {
	tb.Helper()
	r := &domain.Report{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		ClientName:  "Jansen Holding BV",
		RawInput:    "Cliënt overweegt verkoop van aandelen in 2026.",
		Status:      status,
		RolledBack:  datatypes.JSON([]byte("[]")),
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed report: %v", err)
	}
	return r
}

func SeedStageOutput(tb testing.TB, ctx context.Context, tx *gorm.DB, reportID uuid.UUID, stage string, raw string) *domain.ReportStageOutput {
	tb.Helper()
	out := &domain.ReportStageOutput{
		ID:        uuid.New(),
		ReportID:  reportID,
		Stage:     stage,
		Status:    domain.StageOutputDone,
		RawOutput: raw,
	}
	if err := tx.WithContext(ctx).Create(out).Error; err != nil {
		tb.Fatalf("seed stage output: %v", err)
	}
	return out
}

func SeedSnapshot(tb testing.TB, ctx context.Context, tx *gorm.DB, reportID uuid.UUID, version int, fromStage string, content string) *domain.ReportSnapshot {
	tb.Helper()
	snap := &domain.ReportSnapshot{
		ID:        uuid.New(),
		ReportID:  reportID,
		Version:   version,
		FromStage: fromStage,
		Content:   content,
	}
	if err := tx.WithContext(ctx).Create(snap).Error; err != nil {
		tb.Fatalf("seed snapshot: %v", err)
	}
	if err := tx.WithContext(ctx).
		Model(&domain.Report{}).
		Where("id = ?", reportID).
		Update("latest_version", version).Error; err != nil {
		tb.Fatalf("advance latest_version: %v", err)
	}
	return snap
}
