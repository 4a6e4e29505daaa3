package adjust_analyze

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	jobrt "github.com/advieskamer/advies-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p.db == nil || p.svc == nil {
		jc.Fail("validate", fmt.Errorf("adjust_analyze: missing deps"))
		return nil
	}

	sessionID, ok := jc.PayloadUUID("session_id")
	if !ok || sessionID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing session_id"))
		return nil
	}
	instruction := strings.TrimSpace(jc.PayloadString("instruction"))
	if instruction == "" {
		jc.Fail("validate", fmt.Errorf("missing instruction"))
		return nil
	}

	jc.Progress("analyze", 20, "Analyzing instruction")
	proposals, diag, err := p.svc.Analyze(jc.Ctx, sessionID, instruction, jc.Job.ID.String())
	if err != nil {
		jc.Fail("analyze", err)
		return nil
	}

	jc.Succeed("analyze", map[string]any{
		"session_id":   sessionID.String(),
		"proposals":    proposals,
		"parse_method": diag.Method,
	})
	return nil
}
