package rollback

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/data/repos"
	"github.com/advieskamer/advies-backend/internal/data/repos/testutil"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/feedback"
	"github.com/advieskamer/advies-backend/internal/pipeline"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/pkg/errors"
)

const baseContent = `# Advies

## Analyse

De bedrijfsopvolgingsregeling van artikel 35b SW 1956 stelt de verkrijging van ondernemingsvermogen grotendeels vrij van schenkbelasting.

## Conclusie

Wij adviseren de overdracht in 2026 uit te voeren.
`

type engineEnv struct {
	db      *gorm.DB
	engine  *Engine
	reports repos.ReportRepo
	snaps   repos.SnapshotRepo
	report  *domain.Report
}

// newEngineEnv seeds a report directly in the shared test database. The
// engine opens its own transactions, so fixtures cannot live in a rolled-back
// test transaction; cleanup deletes the rows instead.
func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	report := testutil.SeedReport(t, ctx, db, domain.ReportStatusGenerated)
	t.Cleanup(func() {
		db.Exec("DELETE FROM report_snapshot WHERE report_id = ?", report.ID)
		db.Exec("DELETE FROM report_stage_output WHERE report_id = ?", report.ID)
		db.Exec("DELETE FROM report WHERE id = ?", report.ID)
	})

	reportRepo := repos.NewReportRepo(db, log)
	outputRepo := repos.NewStageOutputRepo(db, log)
	snapshotRepo := repos.NewSnapshotRepo(db, log)

	return &engineEnv{
		db:      db,
		engine:  New(db, log, reportRepo, outputRepo, snapshotRepo),
		reports: reportRepo,
		snaps:   snapshotRepo,
		report:  report,
	}
}

func (e *engineEnv) seedOutput(t *testing.T, stage string, raw string) {
	t.Helper()
	testutil.SeedStageOutput(t, context.Background(), e.db, e.report.ID, stage, raw)
}

func (e *engineEnv) seedSnapshot(t *testing.T, version int, fromStage string, content string) {
	t.Helper()
	testutil.SeedSnapshot(t, context.Background(), e.db, e.report.ID, version, fromStage, content)
}

func TestRollbackModifyRestoresExactOriginal(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	raw := `[{"type":"wijzig","ernst":"belangrijk",
		"origineel":"Wij adviseren de overdracht in 2026 uit te voeren.",
		"voorstel":"Wij adviseren de overdracht uiterlijk 1 juli 2026 uit te voeren."}]`
	env.seedOutput(t, "4a_fiscaal", raw)
	env.seedSnapshot(t, 1, "3_generatie", baseContent)

	proposals, _ := feedback.Parse(raw, "4a_fiscaal")
	applied, results := pipeline.ApplyProposals(baseContent, proposals)
	if !results[0].Applied {
		t.Fatalf("setup apply failed: %+v", results[0])
	}
	env.seedSnapshot(t, 2, "5_verwerking", applied)

	res, err := env.engine.RollbackChange(ctx, env.report.ID, "4a_fiscaal", 0)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if res.Fuzzy {
		t.Fatalf("applied text is verbatim in the document, rollback must match exactly")
	}
	if res.Snapshot == nil || res.Snapshot.Version != 3 {
		t.Fatalf("snapshot = %+v", res.Snapshot)
	}
	if res.Snapshot.Content != baseContent {
		t.Fatalf("rollback did not reproduce the prior text:\n%s", res.Snapshot.Content)
	}
	if res.Snapshot.FromStage != pipeline.StageRollback {
		t.Fatalf("from_stage %q", res.Snapshot.FromStage)
	}
	if len(res.Snapshot.Rollback) == 0 {
		t.Fatalf("rollback descriptor missing")
	}
}

func TestRollbackAddRemovesInsertedText(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	raw := `[{"type":"toevoegen","sectie":"Analyse",
		"voorstel":"De voortzettingseis van vijf jaar geldt onverkort."}]`
	env.seedOutput(t, "4d_volledigheid", raw)

	proposals, _ := feedback.Parse(raw, "4d_volledigheid")
	applied, results := pipeline.ApplyProposals(baseContent, proposals)
	if !results[0].Applied {
		t.Fatalf("setup apply failed: %+v", results[0])
	}
	env.seedSnapshot(t, 1, "5_verwerking", applied)

	res, err := env.engine.RollbackChange(ctx, env.report.ID, "4d_volledigheid", 0)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if strings.Contains(res.Snapshot.Content, "voortzettingseis") {
		t.Fatalf("added text still present after rollback")
	}
	if strings.Contains(res.Snapshot.Content, "\n\n\n") {
		t.Fatalf("removal left a blank-line run")
	}
}

func TestRollbackDeleteReinsertsUnderSection(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	deleted := "De bedrijfsopvolgingsregeling van artikel 35b SW 1956 stelt de verkrijging van ondernemingsvermogen grotendeels vrij van schenkbelasting."
	raw := `[{"type":"verwijderen","sectie":"Analyse","origineel":"` + deleted + `"}]`
	env.seedOutput(t, "4c_leesbaarheid", raw)

	proposals, _ := feedback.Parse(raw, "4c_leesbaarheid")
	applied, results := pipeline.ApplyProposals(baseContent, proposals)
	if !results[0].Applied {
		t.Fatalf("setup apply failed: %+v", results[0])
	}
	env.seedSnapshot(t, 1, "5_verwerking", applied)

	res, err := env.engine.RollbackChange(ctx, env.report.ID, "4c_leesbaarheid", 0)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if res.Warning != "" {
		t.Fatalf("section still exists, no warning expected: %q", res.Warning)
	}
	content := res.Snapshot.Content
	aIdx := strings.Index(content, "## Analyse")
	dIdx := strings.Index(content, "artikel 35b SW 1956")
	cIdx := strings.Index(content, "## Conclusie")
	if dIdx < aIdx || dIdx > cIdx {
		t.Fatalf("restored text not placed under its section")
	}
}

func TestRollbackDeleteFallsBackToAppendWithWarning(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	raw := `[{"type":"verwijderen","sectie":"Verdwenen Sectie","origineel":"Verwijderde passage over een vervallen vrijstelling."}]`
	env.seedOutput(t, "4b_consistentie", raw)
	env.seedSnapshot(t, 1, "5_verwerking", baseContent)

	res, err := env.engine.RollbackChange(ctx, env.report.ID, "4b_consistentie", 0)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if res.Warning == "" {
		t.Fatalf("append fallback must carry a warning")
	}
	if !strings.HasSuffix(strings.TrimRight(res.Snapshot.Content, "\n"), "Verwijderde passage over een vervallen vrijstelling.") {
		t.Fatalf("restored text not appended at end")
	}
}

func TestRollbackChangeIndexOutOfRange(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	env.seedOutput(t, "4a_fiscaal", `[{"type":"wijzig","origineel":"a","voorstel":"b"}]`)
	env.seedSnapshot(t, 1, "3_generatie", baseContent)

	_, err := env.engine.RollbackChange(ctx, env.report.ID, "4a_fiscaal", 5)
	if !stderrors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("got %v", err)
	}
}

func TestRollbackUnknownStageOutput(t *testing.T) {
	env := newEngineEnv(t)

	_, err := env.engine.RollbackChange(context.Background(), env.report.ID, "4a_fiscaal", 0)
	var snf *errors.StageNotFoundError
	if !stderrors.As(err, &snf) {
		t.Fatalf("got %v", err)
	}
}

func TestRollbackTwiceRejected(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	raw := `[{"type":"wijzig",
		"origineel":"Wij adviseren de overdracht in 2026 uit te voeren.",
		"voorstel":"Wij adviseren de overdracht in 2027 uit te voeren."}]`
	env.seedOutput(t, "4a_fiscaal", raw)

	proposals, _ := feedback.Parse(raw, "4a_fiscaal")
	applied, _ := pipeline.ApplyProposals(baseContent, proposals)
	env.seedSnapshot(t, 1, "5_verwerking", applied)

	if _, err := env.engine.RollbackChange(ctx, env.report.ID, "4a_fiscaal", 0); err != nil {
		t.Fatalf("first rollback: %v", err)
	}
	_, err := env.engine.RollbackChange(ctx, env.report.ID, "4a_fiscaal", 0)
	if !stderrors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("second rollback must be rejected, got %v", err)
	}
}

func TestRollbackTextNotFoundCarriesHint(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	raw := `[{"type":"wijzig",
		"origineel":"Wij adviseren de overdracht in 2026 uit te voeren.",
		"voorstel":"Een voorstel dat nooit in het rapport is beland."}]`
	env.seedOutput(t, "4a_fiscaal", raw)
	env.seedSnapshot(t, 1, "6_eindcontrole", baseContent)

	_, err := env.engine.RollbackChange(ctx, env.report.ID, "4a_fiscaal", 0)
	var tnf *errors.TextNotFoundError
	if !stderrors.As(err, &tnf) {
		t.Fatalf("got %v", err)
	}
	if tnf.Hint == "" || !strings.Contains(tnf.Hint, "6_eindcontrole") {
		t.Fatalf("hint should name the later stage, got %q", tnf.Hint)
	}
}

func TestRollbackFailedAppendLeavesChangeUndoable(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	raw := `[{"type":"wijzig",
		"origineel":"Wij adviseren de overdracht in 2026 uit te voeren.",
		"voorstel":"Wij adviseren de overdracht in 2027 uit te voeren."}]`
	env.seedOutput(t, "4a_fiscaal", raw)

	proposals, _ := feedback.Parse(raw, "4a_fiscaal")
	applied, _ := pipeline.ApplyProposals(baseContent, proposals)
	env.seedSnapshot(t, 1, "5_verwerking", applied)

	// Occupy the version the rollback snapshot would claim, without advancing
	// the report's latest pointer, the way a concurrent winner would.
	blocker := &domain.ReportSnapshot{
		ID:        uuid.New(),
		ReportID:  env.report.ID,
		Version:   2,
		FromStage: "adjustment",
		Content:   "tussentijdse versie",
	}
	if err := env.db.Create(blocker).Error; err != nil {
		t.Fatalf("seed blocking snapshot: %v", err)
	}

	if _, err := env.engine.RollbackChange(ctx, env.report.ID, "4a_fiscaal", 0); err == nil {
		t.Fatalf("append onto an occupied version must fail")
	}

	dbc := dbctx.Context{Ctx: ctx}
	rolled, err := env.reports.IsRolledBack(dbc, env.report.ID, "4a_fiscaal", 0)
	if err != nil {
		t.Fatalf("is rolled back: %v", err)
	}
	if rolled {
		t.Fatalf("failed rollback must not mark the change as rolled back")
	}

	// After the conflict clears, the same rollback succeeds.
	if err := env.db.Delete(&domain.ReportSnapshot{}, "id = ?", blocker.ID).Error; err != nil {
		t.Fatalf("clear blocking snapshot: %v", err)
	}
	res, err := env.engine.RollbackChange(ctx, env.report.ID, "4a_fiscaal", 0)
	if err != nil {
		t.Fatalf("retry after conflict: %v", err)
	}
	if res.Snapshot == nil || res.Snapshot.Content != baseContent {
		t.Fatalf("retry did not restore the prior text")
	}
}

func TestRollbackFuzzyWhenAppliedTextDrifted(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	raw := `[{"type":"wijzig",
		"origineel":"Wij adviseren de overdracht in 2026 uit te voeren.",
		"voorstel":"Wij adviseren de overdracht uiterlijk in het eerste kwartaal van 2026 uit te voeren."}]`
	env.seedOutput(t, "4a_fiscaal", raw)

	proposals, _ := feedback.Parse(raw, "4a_fiscaal")
	applied, _ := pipeline.ApplyProposals(baseContent, proposals)
	// A later edit reworded the applied sentence's tail; only the prefix
	// still matches.
	drifted := strings.Replace(applied,
		"in het eerste kwartaal van 2026 uit te voeren.",
		"in het eerste kwartaal van 2026 af te ronden.", 1)
	env.seedSnapshot(t, 1, "adjustment", drifted)

	res, err := env.engine.RollbackChange(ctx, env.report.ID, "4a_fiscaal", 0)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !res.Fuzzy {
		t.Fatalf("prefix-anchored rollback must be flagged fuzzy")
	}
	if !strings.Contains(res.Snapshot.Content, "Wij adviseren de overdracht in 2026 uit te voeren.") {
		t.Fatalf("original sentence not restored:\n%s", res.Snapshot.Content)
	}
}

func TestRollbackHintNamesOverlappingReviewer(t *testing.T) {
	env := newEngineEnv(t)
	ctx := context.Background()

	proposed := "Wij adviseren de overdracht in 2027 uit te voeren."
	raw := `[{"type":"wijzig",
		"origineel":"Wij adviseren de overdracht in 2026 uit te voeren.",
		"voorstel":"` + proposed + `"}]`
	env.seedOutput(t, "4a_fiscaal", raw)

	// A reviewer recorded later proposes a change to the same sentence.
	later := `[{"type":"wijzig",
		"origineel":"` + proposed + `",
		"voorstel":"Wij adviseren de overdracht zo spoedig mogelijk uit te voeren."}]`
	env.seedOutput(t, "4b_consistentie", later)

	// The document no longer contains the applied text.
	env.seedSnapshot(t, 1, "5_verwerking", "# Advies\n\nVolledig herschreven inhoud.\n")

	_, err := env.engine.RollbackChange(ctx, env.report.ID, "4a_fiscaal", 0)
	var tnf *errors.TextNotFoundError
	if !stderrors.As(err, &tnf) {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(tnf.Hint, "4b_consistentie") {
		t.Fatalf("hint should name the overlapping reviewer, got %q", tnf.Hint)
	}
}

func TestRollbackUnknownReport(t *testing.T) {
	env := newEngineEnv(t)

	_, err := env.engine.RollbackChange(context.Background(), uuid.New(), "4a_fiscaal", 0)
	if err == nil {
		t.Fatalf("expected error for unknown report")
	}
}
