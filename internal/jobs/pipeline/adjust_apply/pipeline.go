package adjust_apply

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/advieskamer/advies-backend/internal/feedback"
	jobrt "github.com/advieskamer/advies-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.db == nil || p.svc == nil {
		jc.Fail("validate", fmt.Errorf("adjust_apply: missing deps"))
		return nil
	}

	sessionID, ok := jc.PayloadUUID("session_id")
	if !ok || sessionID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing session_id"))
		return nil
	}
	mode := strings.TrimSpace(jc.PayloadString("mode"))

	// Accepted proposals travel through the job payload verbatim; the user
	// may have edited texts during review, so they are not re-derived here.
	raw, err := json.Marshal(jc.Payload()["accepted"])
	if err != nil {
		jc.Fail("validate", fmt.Errorf("bad accepted proposals: %w", err))
		return nil
	}
	var accepted []feedback.ChangeProposal
	if err := json.Unmarshal(raw, &accepted); err != nil {
		jc.Fail("validate", fmt.Errorf("bad accepted proposals: %w", err))
		return nil
	}
	if len(accepted) == 0 {
		jc.Fail("validate", fmt.Errorf("no accepted proposals"))
		return nil
	}

	jc.Progress("apply", 20, "Applying accepted proposals")
	outcome, err := p.svc.Apply(jc.Ctx, sessionID, accepted, mode, jc.Job.ID.String())
	if err != nil {
		jc.Fail("apply", err)
		return nil
	}

	result := map[string]any{
		"session_id": sessionID.String(),
		"version":    outcome.Version,
		"results":    outcome.Results,
	}
	if outcome.Snapshot != nil {
		result["snapshot_version"] = outcome.Snapshot.Version
	}
	jc.Succeed("apply", result)
	return nil
}
