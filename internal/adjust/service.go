package adjust

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/aiconfig"
	"github.com/advieskamer/advies-backend/internal/data/repos"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/feedback"
	"github.com/advieskamer/advies-backend/internal/modelcall"
	"github.com/advieskamer/advies-backend/internal/pipeline"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/pkg/errors"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

// Template keys in the active prompt config for the edit loop. They live next
// to the stage templates and follow the same no-fallback rule.
const (
	TemplateAnalyze = "adjust_analyze"
	TemplateApply   = "adjust_apply"
)

const (
	ModeDirect = "direct"
	ModeAI     = "ai"
)

// Proposal is a ChangeProposal plus the synthetic id handed to the client so
// an accept/reject round trip survives re-analysis of a different version.
type Proposal struct {
	ID string `json:"id"`
	feedback.ChangeProposal
}

// Service runs the post-pipeline edit loop: analyze an instruction into
// proposals, let the user curate them, apply the accepted set.
type Service struct {
	db          *gorm.DB
	log         *logger.Logger
	sessions    repos.AdjustmentRepo
	snapshots   repos.SnapshotRepo
	prompts     repos.PromptConfigRepo
	resolver    *aiconfig.Resolver
	models      *modelcall.Factory
	callTimeout time.Duration
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessions repos.AdjustmentRepo,
	snapshots repos.SnapshotRepo,
	prompts repos.PromptConfigRepo,
	resolver *aiconfig.Resolver,
	models *modelcall.Factory,
	callTimeout time.Duration,
) *Service {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Minute
	}
	return &Service{
		db:          db,
		log:         baseLog.With("component", "AdjustmentService"),
		sessions:    sessions,
		snapshots:   snapshots,
		prompts:     prompts,
		resolver:    resolver,
		models:      models,
		callTimeout: callTimeout,
	}
}

// CreateSession starts a session over a report's latest snapshot, or over
// pasted external content when reportID is nil. External content enters the
// single-shot preview flow.
func (s *Service) CreateSession(ctx context.Context, ownerUserID uuid.UUID, reportID *uuid.UUID, content string) (*domain.AdjustmentSession, error) {
	dbc := dbctx.Context{Ctx: ctx}

	state := domain.SessionStatePreview
	if reportID != nil {
		latest, _, err := s.snapshots.LatestContent(dbc, *reportID)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return nil, fmt.Errorf("%w: report has no snapshot to adjust", errors.ErrInvalidArgument)
		}
		content = latest
		state = domain.SessionStateInput
	} else if content == "" {
		return nil, fmt.Errorf("%w: external session needs pasted content", errors.ErrInvalidArgument)
	}

	return s.sessions.CreateSession(dbc, &domain.AdjustmentSession{
		OwnerUserID: ownerUserID,
		ReportID:    reportID,
		State:       state,
		Content:     content,
	})
}

// Analyze turns one free-form instruction into curated proposals with one
// model call. The parsed set is stored on the session and the session moves
// to review.
func (s *Service) Analyze(ctx context.Context, sessionID uuid.UUID, instruction string, jobID string) ([]Proposal, *feedback.Diagnostics, error) {
	dbc := dbctx.Context{Ctx: ctx}

	session, err := s.getSession(dbc, sessionID)
	if err != nil {
		return nil, nil, err
	}
	switch session.State {
	case domain.SessionStateInput, domain.SessionStateReview, domain.SessionStatePreview, domain.SessionStateComplete:
	default:
		return nil, nil, fmt.Errorf("%w: session in state %s cannot analyze", errors.ErrInvalidArgument, session.State)
	}
	if instruction == "" {
		return nil, nil, fmt.Errorf("%w: instruction is empty", errors.ErrInvalidArgument)
	}

	if err := s.sessions.UpdateSession(dbc, sessionID, map[string]interface{}{
		"state":       domain.SessionStateAnalyzing,
		"instruction": instruction,
	}); err != nil {
		return nil, nil, err
	}

	raw, err := s.invoke(ctx, TemplateAnalyze, pipeline.PromptVars{
		CurrentReport: session.Content,
		Instruction:   instruction,
	}, "json", jobID)
	if err != nil {
		_ = s.sessions.UpdateSession(dbc, sessionID, map[string]interface{}{"state": session.State})
		return nil, nil, err
	}

	parsed, diag := feedback.Parse(raw, pipeline.StageAdjustment)
	proposals := make([]Proposal, 0, len(parsed))
	for _, p := range parsed {
		proposals = append(proposals, Proposal{
			ID:             fmt.Sprintf("%s:%d:%d", sessionID, session.Version, p.Index),
			ChangeProposal: p,
		})
	}

	proposalsJSON, _ := json.Marshal(proposals)
	nextState := domain.SessionStateReview
	if session.State == domain.SessionStatePreview {
		nextState = domain.SessionStateAdjust
	}
	if err := s.sessions.UpdateSession(dbc, sessionID, map[string]interface{}{
		"state":     nextState,
		"proposals": datatypes.JSON(proposalsJSON),
	}); err != nil {
		return nil, nil, err
	}

	s.log.Info("Adjustment analyzed",
		"session_id", sessionID,
		"proposals", len(proposals),
		"parse_method", diag.Method,
	)
	return proposals, diag, nil
}

// ApplyOutcome reports one apply batch: the new content plus per-proposal
// results, so partial application stays visible.
type ApplyOutcome struct {
	NewContent string                 `json:"new_content"`
	Results    []pipeline.ApplyResult `json:"results,omitempty"`
	Version    int                    `json:"version"`
	Snapshot   *domain.ReportSnapshot `json:"snapshot,omitempty"`
}

// Apply applies the accepted proposals. Direct mode substitutes text per
// proposal without a model call; ai mode hands the whole set to an editor
// prompt for cases where proposals interact. Either way the batch lands as
// one adjustment history entry and, for report-backed sessions, one snapshot.
func (s *Service) Apply(ctx context.Context, sessionID uuid.UUID, accepted []feedback.ChangeProposal, mode string, jobID string) (*ApplyOutcome, error) {
	dbc := dbctx.Context{Ctx: ctx}

	session, err := s.getSession(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.State {
	case domain.SessionStateReview, domain.SessionStateAdjust:
	default:
		return nil, fmt.Errorf("%w: session in state %s cannot apply", errors.ErrInvalidArgument, session.State)
	}
	if len(accepted) == 0 {
		return nil, fmt.Errorf("%w: no accepted proposals", errors.ErrInvalidArgument)
	}
	if mode == "" {
		mode = ModeDirect
	}

	if err := s.sessions.UpdateSession(dbc, sessionID, map[string]interface{}{
		"state": domain.SessionStateApplying,
	}); err != nil {
		return nil, err
	}

	var (
		newContent string
		results    []pipeline.ApplyResult
	)
	switch mode {
	case ModeDirect:
		newContent, results = pipeline.ApplyProposals(session.Content, accepted)
	case ModeAI:
		feedbackJSON, _ := json.Marshal(accepted)
		newContent, err = s.invoke(ctx, TemplateApply, pipeline.PromptVars{
			CurrentReport: session.Content,
			Instruction:   session.Instruction,
			Feedback:      string(feedbackJSON),
			ChangeCount:   strconv.Itoa(len(accepted)),
		}, "", jobID)
		if err != nil {
			_ = s.sessions.UpdateSession(dbc, sessionID, map[string]interface{}{"state": session.State})
			return nil, err
		}
	default:
		_ = s.sessions.UpdateSession(dbc, sessionID, map[string]interface{}{"state": session.State})
		return nil, fmt.Errorf("%w: unknown apply mode %q", errors.ErrInvalidArgument, mode)
	}

	// History entry, session advance, and the report snapshot commit as one
	// batch: a failed snapshot must not leave the session complete without it.
	version := session.Version + 1
	proposalsJSON, _ := json.Marshal(accepted)
	resultsJSON, _ := json.Marshal(results)
	outcome := &ApplyOutcome{NewContent: newContent, Results: results, Version: version}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.sessions.AppendAdjustment(txc, &domain.Adjustment{
			SessionID:       sessionID,
			Version:         version,
			Instruction:     session.Instruction,
			PreviousContent: session.Content,
			NewContent:      newContent,
			Proposals:       datatypes.JSON(proposalsJSON),
			Results:         datatypes.JSON(resultsJSON),
			Mode:            mode,
		}); err != nil {
			return err
		}
		if err := s.sessions.UpdateSession(txc, sessionID, map[string]interface{}{
			"state":   domain.SessionStateComplete,
			"content": newContent,
			"version": version,
		}); err != nil {
			return err
		}
		if session.ReportID != nil {
			snap, err := s.snapshots.Append(txc, *session.ReportID, pipeline.StageAdjustment, newContent, nil)
			if err != nil {
				return err
			}
			outcome.Snapshot = snap
		}
		return nil
	})
	if txErr != nil {
		_ = s.sessions.UpdateSession(dbc, sessionID, map[string]interface{}{"state": session.State})
		return nil, txErr
	}

	s.log.Info("Adjustments applied",
		"session_id", sessionID,
		"mode", mode,
		"accepted", len(accepted),
		"version", version,
	)
	return outcome, nil
}

// History lists the session's applied batches, oldest first.
func (s *Service) History(ctx context.Context, sessionID uuid.UUID) ([]*domain.Adjustment, error) {
	return s.sessions.History(dbctx.Context{Ctx: ctx}, sessionID)
}

// GetSession returns the session or ErrNotFound.
func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.AdjustmentSession, error) {
	return s.getSession(dbctx.Context{Ctx: ctx}, sessionID)
}

func (s *Service) getSession(dbc dbctx.Context, sessionID uuid.UUID) (*domain.AdjustmentSession, error) {
	session, err := s.sessions.GetSession(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.ErrNotFound
	}
	return session, nil
}

func (s *Service) invoke(ctx context.Context, templateKey string, vars pipeline.PromptVars, responseFormat string, jobID string) (string, error) {
	dbc := dbctx.Context{Ctx: ctx}

	active, err := s.prompts.GetActive(dbc)
	if err != nil {
		return "", err
	}
	template, err := pipeline.TemplateFor(active, templateKey)
	if err != nil {
		return "", err
	}
	stageOverride, global, err := pipeline.AIConfigsFor(active, templateKey)
	if err != nil {
		return "", err
	}
	resolved, err := s.resolver.ResolveForStage(templateKey, stageOverride, global, jobID)
	if err != nil {
		return "", err
	}
	invoker, err := s.models.For(resolved)
	if err != nil {
		return "", err
	}
	return invoker.CallModel(ctx, resolved, pipeline.RenderPrompt(template, vars), modelcall.Options{
		Timeout:        s.callTimeout,
		JobID:          jobID,
		ResponseFormat: responseFormat,
	})
}
