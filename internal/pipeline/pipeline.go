package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/aiconfig"
	"github.com/advieskamer/advies-backend/internal/data/repos"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/feedback"
	"github.com/advieskamer/advies-backend/internal/modelcall"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/pkg/errors"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

// Pipeline executes the fixed stage sequence for one report, persisting stage
// output (and a snapshot, for mutating stages) after every single stage so a
// crash or restart resumes from the failed stage without repeating work.
type Pipeline struct {
	db          *gorm.DB
	log         *logger.Logger
	reports     repos.ReportRepo
	outputs     repos.StageOutputRepo
	snapshots   repos.SnapshotRepo
	prompts     repos.PromptConfigRepo
	resolver    *aiconfig.Resolver
	models      *modelcall.Factory
	callTimeout time.Duration
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	reports repos.ReportRepo,
	outputs repos.StageOutputRepo,
	snapshots repos.SnapshotRepo,
	prompts repos.PromptConfigRepo,
	resolver *aiconfig.Resolver,
	models *modelcall.Factory,
	callTimeout time.Duration,
) *Pipeline {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Minute
	}
	return &Pipeline{
		db:          db,
		log:         baseLog.With("component", "StagePipeline"),
		reports:     reports,
		outputs:     outputs,
		snapshots:   snapshots,
		prompts:     prompts,
		resolver:    resolver,
		models:      models,
		callTimeout: callTimeout,
	}
}

// StageResult is what one stage execution produced.
type StageResult struct {
	Stage        string                    `json:"stage"`
	RawOutput    string                    `json:"raw_output"`
	Snapshot     *domain.ReportSnapshot    `json:"snapshot,omitempty"`
	ApplyResults []ApplyResult             `json:"apply_results,omitempty"`
	Proposals    []feedback.ChangeProposal `json:"proposals,omitempty"`
}

// RunStage executes one stage. Preconditions: the stage is valid and every
// stage ordered strictly before it has recorded output. Re-invocation is
// idempotent: it overwrites the stage's prior raw output and, for mutating
// stages, appends a new version; it never re-runs earlier stages.
func (p *Pipeline) RunStage(ctx context.Context, reportID uuid.UUID, stage string, jobID string) (*StageResult, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if !IsValidStage(stage) {
		return nil, errors.ErrInvalidArgument
	}
	report, err := p.reports.GetByID(dbc, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, errors.ErrNotFound
	}

	completed, err := p.outputs.CompletedStages(dbc, reportID)
	if err != nil {
		return nil, err
	}
	if missing := MissingBefore(stage, completed); len(missing) > 0 {
		return nil, &errors.StagePreconditionError{Stage: stage, Missing: missing}
	}

	if stage == StageVerwerking {
		return p.runConsolidation(ctx, report)
	}
	return p.runModelStage(ctx, report, stage, jobID)
}

func (p *Pipeline) runModelStage(ctx context.Context, report *domain.Report, stage string, jobID string) (*StageResult, error) {
	dbc := dbctx.Context{Ctx: ctx}

	// Configuration is resolved before anything is rendered or sent; a
	// missing template or model config fails here, verbatim, with no
	// fallback values.
	active, err := p.prompts.GetActive(dbc)
	if err != nil {
		return nil, err
	}
	template, err := TemplateFor(active, stage)
	if err != nil {
		return nil, err
	}
	stageOverride, global, err := AIConfigsFor(active, stage)
	if err != nil {
		return nil, err
	}
	resolved, err := p.resolver.ResolveForStage(stage, stageOverride, global, jobID)
	if err != nil {
		return nil, err
	}
	invoker, err := p.models.For(resolved)
	if err != nil {
		return nil, err
	}

	vars, err := p.buildVars(dbc, report, stage)
	if err != nil {
		return nil, err
	}
	prompt := RenderPrompt(template, vars)

	responseFormat := ""
	if IsReviewerStage(stage) {
		responseFormat = "json"
	}

	cfgJSON, _ := json.Marshal(resolved)
	raw, callErr := invoker.CallModel(ctx, resolved, prompt, modelcall.Options{
		Timeout:        p.callTimeout,
		JobID:          jobID,
		ResponseFormat: responseFormat,
	})
	if callErr != nil {
		// The stage fails; prior stages and snapshots stay intact and the
		// report is resumable from here. Prompt and error are kept so the
		// operator sees exactly what was sent.
		_, _ = p.outputs.Upsert(dbc, &domain.ReportStageOutput{
			ReportID:   report.ID,
			Stage:      stage,
			Status:     domain.StageOutputFailed,
			PromptSent: prompt,
			ModelUsed:  resolved.Model,
			Error:      callErr.Error(),
			Config:     datatypes.JSON(cfgJSON),
		})
		_ = p.reports.SetStatus(dbc, report.ID, domain.ReportStatusError, stage)
		return nil, callErr
	}

	if _, err := p.outputs.Upsert(dbc, &domain.ReportStageOutput{
		ReportID:   report.ID,
		Stage:      stage,
		Status:     domain.StageOutputDone,
		RawOutput:  raw,
		PromptSent: prompt,
		ModelUsed:  resolved.Model,
		Config:     datatypes.JSON(cfgJSON),
	}); err != nil {
		return nil, err
	}

	result := &StageResult{Stage: stage, RawOutput: raw}

	if IsMutatingStage(stage) {
		snap, err := p.snapshots.Append(dbc, report.ID, stage, raw, nil)
		if err != nil {
			return nil, err
		}
		result.Snapshot = snap
	}

	status := domain.ReportStatusProcessing
	if stage == StageEindcontrole {
		status = domain.ReportStatusGenerated
	}
	if err := p.reports.SetStatus(dbc, report.ID, status, ""); err != nil {
		return nil, err
	}

	p.log.Info("Stage finished",
		"report_id", report.ID,
		"stage", stage,
		"model", resolved.Model,
		"output_chars", len(raw),
		"job_id", jobID,
	)
	return result, nil
}

// runConsolidation is the join point: it re-parses every reviewer stage's raw
// feedback and applies the proposals as concrete edits against the latest
// snapshot. No model call; the stage output records the per-proposal results.
func (p *Pipeline) runConsolidation(ctx context.Context, report *domain.Report) (*StageResult, error) {
	dbc := dbctx.Context{Ctx: ctx}

	content, _, err := p.snapshots.LatestContent(dbc, report.ID)
	if err != nil {
		return nil, err
	}

	var all []feedback.ChangeProposal
	for _, reviewer := range ReviewerStages {
		out, err := p.outputs.Get(dbc, report.ID, reviewer)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, &errors.StagePreconditionError{Stage: StageVerwerking, Missing: []string{reviewer}}
		}
		props, _ := feedback.Parse(out.RawOutput, reviewer)
		all = append(all, props...)
	}

	newContent, results := ApplyProposals(content, all)

	applied := 0
	for _, r := range results {
		if r.Applied {
			applied++
			if r.Fuzzy {
				p.log.Warn("Consolidation used fuzzy match",
					"report_id", report.ID,
					"stage", r.Stage,
					"change_index", r.Index,
				)
			}
		}
	}

	summary := map[string]any{
		"applied":      applied,
		"failed":       len(results) - applied,
		"change_count": len(results),
		"results":      results,
	}
	summaryJSON, _ := json.Marshal(summary)

	if _, err := p.outputs.Upsert(dbc, &domain.ReportStageOutput{
		ReportID:  report.ID,
		Stage:     StageVerwerking,
		Status:    domain.StageOutputDone,
		RawOutput: string(summaryJSON),
	}); err != nil {
		return nil, err
	}

	snap, err := p.snapshots.Append(dbc, report.ID, StageVerwerking, newContent, nil)
	if err != nil {
		return nil, err
	}
	if err := p.reports.SetStatus(dbc, report.ID, domain.ReportStatusProcessing, ""); err != nil {
		return nil, err
	}

	p.log.Info("Consolidation finished",
		"report_id", report.ID,
		"proposals", len(results),
		"applied", applied,
		"version", snap.Version,
	)
	return &StageResult{
		Stage:        StageVerwerking,
		RawOutput:    string(summaryJSON),
		Snapshot:     snap,
		ApplyResults: results,
	}, nil
}

func (p *Pipeline) buildVars(dbc dbctx.Context, report *domain.Report, stage string) (PromptVars, error) {
	content, _, err := p.snapshots.LatestContent(dbc, report.ID)
	if err != nil {
		return PromptVars{}, err
	}
	vars := PromptVars{
		CurrentReport: content,
		RawInput:      report.RawInput,
		ClientName:    report.ClientName,
		StageOutputs:  map[string]string{},
	}
	rows, err := p.outputs.ListByReport(dbc, report.ID)
	if err != nil {
		return PromptVars{}, err
	}
	for _, row := range rows {
		if row.Status == domain.StageOutputDone {
			vars.StageOutputs[row.Stage] = row.RawOutput
		}
	}
	return vars, nil
}

// Proposals re-derives the normalized proposal list for one reviewer stage
// from its stored raw output. Recomputed rather than cached so the view stays
// byte-consistent with what consolidation and rollback actually see.
func (p *Pipeline) Proposals(ctx context.Context, reportID uuid.UUID, stage string) ([]feedback.ChangeProposal, *feedback.Diagnostics, error) {
	dbc := dbctx.Context{Ctx: ctx}
	out, err := p.outputs.Get(dbc, reportID, stage)
	if err != nil {
		return nil, nil, err
	}
	if out == nil {
		return nil, nil, &errors.StageNotFoundError{Stage: stage}
	}
	props, diag := feedback.Parse(out.RawOutput, stage)
	return props, diag, nil
}

// NextStages answers which stages may run now for the report.
func (p *Pipeline) NextStages(ctx context.Context, reportID uuid.UUID) ([]string, error) {
	completed, err := p.outputs.CompletedStages(dbctx.Context{Ctx: ctx}, reportID)
	if err != nil {
		return nil, err
	}
	return NextRunnable(completed), nil
}
