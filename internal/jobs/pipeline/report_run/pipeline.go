package report_run

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/advieskamer/advies-backend/internal/domain"
	jobrt "github.com/advieskamer/advies-backend/internal/jobs/runtime"
	"github.com/advieskamer/advies-backend/internal/pipeline"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
)

// Rough progress weights per stage group. The reviewer block counts as one
// step since the four run concurrently.
var progressByStage = map[string]int{
	pipeline.StageValidatie:    10,
	pipeline.StageComplexiteit: 20,
	pipeline.StageGeneratie:    45,
	pipeline.StageVerwerking:   85,
	pipeline.StageEindcontrole: 95,
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.db == nil || p.pipe == nil || p.reports == nil {
		jc.Fail("validate", fmt.Errorf("report_run: missing deps"))
		return nil
	}

	reportID, ok := jc.PayloadUUID("report_id")
	if !ok || reportID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing report_id"))
		return nil
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	if err := p.reports.SetStatus(dbc, reportID, domain.ReportStatusProcessing, ""); err != nil {
		jc.Fail("validate", err)
		return nil
	}

	jobID := jc.Job.ID.String()

	for _, stage := range pipeline.PreparationStages {
		jc.Progress(stage, progressByStage[stage], "Running stage "+stage)
		if _, err := p.pipe.RunStage(jc.Ctx, reportID, stage, jobID); err != nil {
			jc.Fail(stage, err)
			return nil
		}
	}

	// Reviewers read the same draft and never mutate it, so they fan out.
	// One failed reviewer fails the run; completed reviewer outputs stay
	// recorded so a retry skips nothing that already succeeded.
	jc.Progress("review", 55, "Running reviewer stages")
	g, gctx := errgroup.WithContext(jc.Ctx)
	for _, stage := range pipeline.ReviewerStages {
		g.Go(func() error {
			if _, err := p.pipe.RunStage(gctx, reportID, stage, jobID); err != nil {
				return fmt.Errorf("%s: %w", stage, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		jc.Fail("review", err)
		return nil
	}

	var finalVersion int
	for _, stage := range pipeline.FinalizationStages {
		jc.Progress(stage, progressByStage[stage], "Running stage "+stage)
		res, err := p.pipe.RunStage(jc.Ctx, reportID, stage, jobID)
		if err != nil {
			jc.Fail(stage, err)
			return nil
		}
		if res.Snapshot != nil {
			finalVersion = res.Snapshot.Version
		}
	}

	jc.Succeed(pipeline.StageEindcontrole, map[string]any{
		"report_id": reportID.String(),
		"status":    domain.ReportStatusGenerated,
		"version":   finalVersion,
	})
	return nil
}
