package report_stage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	jobrt "github.com/advieskamer/advies-backend/internal/jobs/runtime"
	"github.com/advieskamer/advies-backend/internal/pipeline"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.db == nil || p.pipe == nil {
		jc.Fail("validate", fmt.Errorf("report_stage: missing deps"))
		return nil
	}

	reportID, ok := jc.PayloadUUID("report_id")
	if !ok || reportID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing report_id"))
		return nil
	}
	stage := strings.TrimSpace(jc.PayloadString("stage"))
	if !pipeline.IsValidStage(stage) {
		jc.Fail("validate", fmt.Errorf("unknown stage %q", stage))
		return nil
	}

	jc.Progress(stage, 10, "Running stage "+stage)
	res, err := p.pipe.RunStage(jc.Ctx, reportID, stage, jc.Job.ID.String())
	if err != nil {
		jc.Fail(stage, err)
		return nil
	}

	result := map[string]any{
		"report_id": reportID.String(),
		"stage":     stage,
	}
	if res.Snapshot != nil {
		result["version"] = res.Snapshot.Version
	}
	jc.Succeed(stage, result)
	return nil
}
