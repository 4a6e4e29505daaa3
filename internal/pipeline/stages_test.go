package pipeline

import (
	"reflect"
	"testing"
)

func completedSet(stages ...string) map[string]bool {
	out := make(map[string]bool, len(stages))
	for _, s := range stages {
		out[s] = true
	}
	return out
}

func TestNextRunnableEmpty(t *testing.T) {
	got := NextRunnable(completedSet())
	if !reflect.DeepEqual(got, []string{StageValidatie}) {
		t.Fatalf("got %v", got)
	}
}

func TestNextRunnableSequentialPreparation(t *testing.T) {
	got := NextRunnable(completedSet(StageValidatie))
	if !reflect.DeepEqual(got, []string{StageComplexiteit}) {
		t.Fatalf("got %v", got)
	}
	got = NextRunnable(completedSet(StageValidatie, StageComplexiteit))
	if !reflect.DeepEqual(got, []string{StageGeneratie}) {
		t.Fatalf("got %v", got)
	}
}

func TestNextRunnableReviewerFanOut(t *testing.T) {
	got := NextRunnable(completedSet(StageValidatie, StageComplexiteit, StageGeneratie))
	if !reflect.DeepEqual(got, ReviewerStages) {
		t.Fatalf("all reviewers should unlock together, got %v", got)
	}
}

func TestNextRunnableConsolidationWaitsForAllReviewers(t *testing.T) {
	completed := completedSet(StageValidatie, StageComplexiteit, StageGeneratie,
		StageReviewFiscaal, StageReviewConsistentie, StageReviewLeesbaarheid)
	got := NextRunnable(completed)
	if !reflect.DeepEqual(got, []string{StageReviewVolledigheid}) {
		t.Fatalf("consolidation must wait for the last reviewer, got %v", got)
	}
	completed[StageReviewVolledigheid] = true
	got = NextRunnable(completed)
	if !reflect.DeepEqual(got, []string{StageVerwerking}) {
		t.Fatalf("got %v", got)
	}
}

func TestNextRunnableAllDone(t *testing.T) {
	if got := NextRunnable(completedSet(AllStages()...)); got != nil {
		t.Fatalf("expected nothing runnable, got %v", got)
	}
}

func TestNextRunnableIsPure(t *testing.T) {
	completed := completedSet(StageValidatie)
	before := completedSet(StageValidatie)
	NextRunnable(completed)
	if !reflect.DeepEqual(completed, before) {
		t.Fatalf("completed set mutated")
	}
}

func TestMissingBefore(t *testing.T) {
	got := MissingBefore(StageVerwerking, completedSet(StageValidatie, StageComplexiteit, StageGeneratie, StageReviewFiscaal))
	want := []string{StageReviewConsistentie, StageReviewLeesbaarheid, StageReviewVolledigheid}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got := MissingBefore(StageValidatie, completedSet()); got != nil {
		t.Fatalf("first stage has no predecessors, got %v", got)
	}
	got = MissingBefore(StageReviewFiscaal, completedSet(StageValidatie, StageComplexiteit))
	if !reflect.DeepEqual(got, []string{StageGeneratie}) {
		t.Fatalf("got %v", got)
	}
}

func TestReviewersDoNotRequireEachOther(t *testing.T) {
	completed := completedSet(StageValidatie, StageComplexiteit, StageGeneratie)
	for _, stage := range ReviewerStages {
		if missing := MissingBefore(stage, completed); missing != nil {
			t.Fatalf("%s should be runnable, missing %v", stage, missing)
		}
	}
}

func TestIsMutatingStage(t *testing.T) {
	mutating := map[string]bool{StageGeneratie: true, StageVerwerking: true}
	for _, stage := range AllStages() {
		if IsMutatingStage(stage) != mutating[stage] {
			t.Fatalf("IsMutatingStage(%s) = %v", stage, IsMutatingStage(stage))
		}
	}
	if IsMutatingStage(StageRollback) || IsMutatingStage(StageAdjustment) {
		t.Fatalf("snapshot origin labels are not pipeline stages")
	}
}

func TestIsValidStage(t *testing.T) {
	for _, stage := range AllStages() {
		if !IsValidStage(stage) {
			t.Fatalf("%s should be valid", stage)
		}
	}
	for _, stage := range []string{"", "7_extra", StageRollback, StageAdjustment} {
		if IsValidStage(stage) {
			t.Fatalf("%q should not be a pipeline stage", stage)
		}
	}
}

func TestIsReviewerStage(t *testing.T) {
	if !IsReviewerStage(StageReviewVolledigheid) {
		t.Fatalf("4d is a reviewer")
	}
	if IsReviewerStage(StageGeneratie) {
		t.Fatalf("3_generatie is not a reviewer")
	}
}
