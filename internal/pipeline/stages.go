package pipeline

// Stage identifiers form a fixed, ordered enumeration in three groups.
// Ordering within the preparation and finalization groups is significant;
// reviewer stages are conceptually parallel and carry no order among
// themselves, whether or not the scheduler actually runs them concurrently.
const (
	StageValidatie    = "1_validatie"
	StageComplexiteit = "2_complexiteit"
	StageGeneratie    = "3_generatie"

	StageReviewFiscaal      = "4a_fiscaal"
	StageReviewConsistentie = "4b_consistentie"
	StageReviewLeesbaarheid = "4c_leesbaarheid"
	StageReviewVolledigheid = "4d_volledigheid"

	StageVerwerking   = "5_verwerking"
	StageEindcontrole = "6_eindcontrole"
)

// StageRollback is not a pipeline stage; it labels snapshots produced by the
// rollback engine.
const StageRollback = "rollback"

// StageAdjustment marks snapshots produced by the post-pipeline edit loop.
const StageAdjustment = "adjustment"

var PreparationStages = []string{StageValidatie, StageComplexiteit, StageGeneratie}

var ReviewerStages = []string{StageReviewFiscaal, StageReviewConsistentie, StageReviewLeesbaarheid, StageReviewVolledigheid}

var FinalizationStages = []string{StageVerwerking, StageEindcontrole}

// AllStages in canonical order. Reviewers appear in listing order only; their
// relative position carries no execution constraint.
func AllStages() []string {
	out := make([]string, 0, len(PreparationStages)+len(ReviewerStages)+len(FinalizationStages))
	out = append(out, PreparationStages...)
	out = append(out, ReviewerStages...)
	out = append(out, FinalizationStages...)
	return out
}

func IsValidStage(stage string) bool {
	for _, s := range AllStages() {
		if s == stage {
			return true
		}
	}
	return false
}

func IsReviewerStage(stage string) bool {
	for _, s := range ReviewerStages {
		if s == stage {
			return true
		}
	}
	return false
}

// IsMutatingStage reports whether the stage produces a new document snapshot.
// Generation and consolidation mutate; reviewers and checks never do.
func IsMutatingStage(stage string) bool {
	return stage == StageGeneratie || stage == StageVerwerking
}

// RequiredBefore lists the stages whose output must be recorded before the
// given stage may run. For a reviewer that is all preparation stages; for the
// consolidation join point it is every preparation and reviewer stage.
func RequiredBefore(stage string) []string {
	switch stage {
	case StageValidatie:
		return nil
	case StageComplexiteit:
		return []string{StageValidatie}
	case StageGeneratie:
		return []string{StageValidatie, StageComplexiteit}
	case StageReviewFiscaal, StageReviewConsistentie, StageReviewLeesbaarheid, StageReviewVolledigheid:
		return append([]string{}, PreparationStages...)
	case StageVerwerking:
		out := append([]string{}, PreparationStages...)
		return append(out, ReviewerStages...)
	case StageEindcontrole:
		out := append([]string{}, PreparationStages...)
		out = append(out, ReviewerStages...)
		return append(out, StageVerwerking)
	default:
		return nil
	}
}

// MissingBefore returns the required predecessors of stage that are not in
// the completed set, in canonical order.
func MissingBefore(stage string, completed map[string]bool) []string {
	var missing []string
	for _, req := range RequiredBefore(stage) {
		if !completed[req] {
			missing = append(missing, req)
		}
	}
	return missing
}

// NextRunnable is a pure query over the completed-stage set: every stage not
// yet completed whose predecessors are all completed. All four reviewers
// become runnable at once after the draft exists; the caller decides whether
// to run them concurrently or one by one.
func NextRunnable(completed map[string]bool) []string {
	var out []string
	for _, stage := range AllStages() {
		if completed[stage] {
			continue
		}
		if len(MissingBefore(stage, completed)) == 0 {
			out = append(out, stage)
		}
	}
	return out
}
