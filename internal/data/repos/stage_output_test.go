package repos

import (
	"context"
	"testing"

	"github.com/advieskamer/advies-backend/internal/data/repos/testutil"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
)

func TestStageOutputUpsertOneRowPerStage(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	report := testutil.SeedReport(t, ctx, tx, domain.ReportStatusProcessing)
	repo := NewStageOutputRepo(db, testutil.Logger(t))

	first, err := repo.Upsert(dbc, &domain.ReportStageOutput{
		ReportID:  report.ID,
		Stage:     "4a_fiscaal",
		Status:    domain.StageOutputFailed,
		Error:     "model call timed out",
		ModelUsed: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Re-running the stage replaces the row instead of adding one.
	if _, err := repo.Upsert(dbc, &domain.ReportStageOutput{
		ReportID:  report.ID,
		Stage:     "4a_fiscaal",
		Status:    domain.StageOutputDone,
		RawOutput: `{"bevindingen":[]}`,
		ModelUsed: "gpt-4o",
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows, err := repo.ListByReport(dbc, report.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row per (report, stage), got %d", len(rows))
	}
	got := rows[0]
	if got.ID != first.ID {
		t.Fatalf("upsert created a new row instead of updating")
	}
	if got.Status != domain.StageOutputDone || got.Error != "" || got.RawOutput == "" {
		t.Fatalf("row not overwritten: %+v", got)
	}
}

func TestStageOutputGetMissing(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	report := testutil.SeedReport(t, ctx, tx, domain.ReportStatusDraft)
	repo := NewStageOutputRepo(db, testutil.Logger(t))

	out, err := repo.Get(dbc, report.ID, "6_eindcontrole")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil for missing output, got %+v", out)
	}
}

func TestStageOutputCompletedStages(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	report := testutil.SeedReport(t, ctx, tx, domain.ReportStatusProcessing)
	testutil.SeedStageOutput(t, ctx, tx, report.ID, "1_validatie", "ok")
	testutil.SeedStageOutput(t, ctx, tx, report.ID, "2_complexiteit", "hoog")

	repo := NewStageOutputRepo(db, testutil.Logger(t))
	if _, err := repo.Upsert(dbc, &domain.ReportStageOutput{
		ReportID: report.ID,
		Stage:    "3_generatie",
		Status:   domain.StageOutputFailed,
		Error:    "failed",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	done, err := repo.CompletedStages(dbc, report.ID)
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if !done["1_validatie"] || !done["2_complexiteit"] {
		t.Fatalf("done stages missing: %v", done)
	}
	if done["3_generatie"] {
		t.Fatalf("errored stage must not count as completed")
	}
}
