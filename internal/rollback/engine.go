package rollback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/advieskamer/advies-backend/internal/data/repos"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/feedback"
	"github.com/advieskamer/advies-backend/internal/pipeline"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
	"github.com/advieskamer/advies-backend/internal/pkg/errors"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
	"github.com/advieskamer/advies-backend/internal/textedit"
)

// Engine undoes one applied change proposal by inverse text substitution
// against the latest snapshot. It never rewrites history: undoing produces a
// new version on top, so the full sequence of states stays auditable.
type Engine struct {
	db        *gorm.DB
	log       *logger.Logger
	reports   repos.ReportRepo
	outputs   repos.StageOutputRepo
	snapshots repos.SnapshotRepo
}

func New(db *gorm.DB, baseLog *logger.Logger, reports repos.ReportRepo, outputs repos.StageOutputRepo, snapshots repos.SnapshotRepo) *Engine {
	return &Engine{
		db:        db,
		log:       baseLog.With("component", "RollbackEngine"),
		reports:   reports,
		outputs:   outputs,
		snapshots: snapshots,
	}
}

// Result is the outcome of one rollback.
type Result struct {
	Stage       string                 `json:"stage"`
	ChangeIndex int                    `json:"change_index"`
	Snapshot    *domain.ReportSnapshot `json:"snapshot"`
	Fuzzy       bool                   `json:"fuzzy,omitempty"`
	Warning     string                 `json:"warning,omitempty"`
}

// RollbackChange reverses the change at changeIndex of the given stage's
// proposal list. The proposal is re-derived from the stage's stored raw
// output, so the index always refers to the same item the apply step saw.
// Each change can be rolled back once; a second attempt is rejected.
func (e *Engine) RollbackChange(ctx context.Context, reportID uuid.UUID, stage string, changeIndex int) (*Result, error) {
	dbc := dbctx.Context{Ctx: ctx}

	out, err := e.outputs.Get(dbc, reportID, stage)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, &errors.StageNotFoundError{Stage: stage}
	}

	proposals, _ := feedback.Parse(out.RawOutput, stage)
	if changeIndex < 0 || changeIndex >= len(proposals) {
		return nil, fmt.Errorf("%w: change index %d out of range for stage %s (0..%d)",
			errors.ErrInvalidArgument, changeIndex, stage, len(proposals)-1)
	}
	proposal := proposals[changeIndex]

	done, err := e.reports.IsRolledBack(dbc, reportID, stage, changeIndex)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, fmt.Errorf("%w: change %d of stage %s was already rolled back",
			errors.ErrInvalidArgument, changeIndex, stage)
	}

	content, _, err := e.snapshots.LatestContent(dbc, reportID)
	if err != nil {
		return nil, err
	}

	res := &Result{Stage: stage, ChangeIndex: changeIndex}
	var next string

	switch proposal.Type {
	case feedback.ChangeModify:
		if proposal.Proposed == "" || proposal.Original == "" {
			return nil, fmt.Errorf("%w: modify proposal %d of stage %s has no reversible text",
				errors.ErrInvalidArgument, changeIndex, stage)
		}
		updated, match, ok := textedit.Replace(content, proposal.Proposed, proposal.Original)
		if !ok {
			return nil, e.notFound(dbc, reportID, stage, changeIndex, proposal.Proposed)
		}
		next = updated
		res.Fuzzy = match.Fuzzy

	case feedback.ChangeAdd:
		if proposal.Proposed == "" {
			return nil, fmt.Errorf("%w: add proposal %d of stage %s has no text to remove",
				errors.ErrInvalidArgument, changeIndex, stage)
		}
		updated, match, ok := textedit.Remove(content, proposal.Proposed)
		if !ok {
			return nil, e.notFound(dbc, reportID, stage, changeIndex, proposal.Proposed)
		}
		next = textedit.CollapseBlankLines(updated)
		res.Fuzzy = match.Fuzzy

	case feedback.ChangeDelete:
		if proposal.Original == "" {
			return nil, fmt.Errorf("%w: delete proposal %d of stage %s has no text to restore",
				errors.ErrInvalidArgument, changeIndex, stage)
		}
		// Re-insertion is best effort: the exact former position is gone, so
		// the text returns under its section when that still exists, at the
		// end otherwise.
		if proposal.Section != "" {
			if updated, ok := textedit.InsertAfterSection(content, proposal.Section, proposal.Original); ok {
				next = updated
				break
			}
		}
		next = textedit.AppendToEnd(content, proposal.Original)
		res.Warning = "restored text appended at end; original position could not be determined"

	default:
		return nil, fmt.Errorf("%w: %s proposals cannot be rolled back by substitution",
			errors.ErrInvalidArgument, proposal.Type)
	}

	// Snapshot and rolled-back mark commit together: a lost version race (or
	// any other append failure) must leave the change undoable on retry.
	var snap *domain.ReportSnapshot
	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		created, err := e.snapshots.Append(txc, reportID, pipeline.StageRollback, next, &domain.RollbackDescriptor{
			Stage:       stage,
			ChangeIndex: changeIndex,
		})
		if err != nil {
			return err
		}
		marked, err := e.reports.MarkRolledBack(txc, reportID, stage, changeIndex)
		if err != nil {
			return err
		}
		if !marked {
			return fmt.Errorf("%w: change %d of stage %s was already rolled back",
				errors.ErrInvalidArgument, changeIndex, stage)
		}
		snap = created
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	res.Snapshot = snap

	if res.Fuzzy {
		e.log.Warn("Rollback used fuzzy match",
			"report_id", reportID,
			"stage", stage,
			"change_index", changeIndex,
		)
	}
	e.log.Info("Change rolled back",
		"report_id", reportID,
		"stage", stage,
		"change_index", changeIndex,
		"version", snap.Version,
		"fuzzy", res.Fuzzy,
	)
	return res, nil
}

// notFound builds the TextNotFoundError, with a hint naming the reviewer,
// stage, or rollback whose edits most likely rewrote the target text.
func (e *Engine) notFound(dbc dbctx.Context, reportID uuid.UUID, stage string, changeIndex int, target string) error {
	err := &errors.TextNotFoundError{Stage: stage, ChangeIndex: changeIndex}

	if hint := e.overwritingReviewer(dbc, reportID, stage, target); hint != "" {
		err.Hint = hint
		return err
	}

	latest, lerr := e.snapshots.Latest(dbc, reportID)
	if lerr == nil && latest != nil && latest.FromStage != stage {
		switch latest.FromStage {
		case pipeline.StageRollback:
			err.Hint = "a later rollback changed the surrounding text"
		default:
			err.Hint = fmt.Sprintf("stage %s produced a later version that may have rewritten it", latest.FromStage)
		}
	}
	return err
}

// overwritingReviewer scans reviewer outputs recorded after the given stage's
// for proposals touching the same text, anchored on the target's prefix, and
// names the first overlapping stage.
func (e *Engine) overwritingReviewer(dbc dbctx.Context, reportID uuid.UUID, stage string, target string) string {
	prefix := strings.TrimSpace(target)
	if len(prefix) > textedit.DefaultPrefixLen {
		prefix = strings.TrimSpace(prefix[:textedit.DefaultPrefixLen])
	}
	if prefix == "" {
		return ""
	}

	rows, err := e.outputs.ListByReport(dbc, reportID)
	if err != nil {
		return ""
	}
	var after time.Time
	for _, row := range rows {
		if row.Stage == stage {
			after = row.CreatedAt
		}
	}
	for _, row := range rows {
		if row.Stage == stage || !pipeline.IsReviewerStage(row.Stage) || !row.CreatedAt.After(after) {
			continue
		}
		props, _ := feedback.Parse(row.RawOutput, row.Stage)
		for _, p := range props {
			if overlapsPrefix(p.Original, prefix) || overlapsPrefix(p.Proposed, prefix) {
				return fmt.Sprintf("stage %s proposed a change to the same text and may have overwritten it", row.Stage)
			}
		}
	}
	return ""
}

func overlapsPrefix(text string, prefix string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	return strings.Contains(text, prefix) || strings.Contains(prefix, text)
}
