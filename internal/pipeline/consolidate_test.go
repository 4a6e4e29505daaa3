package pipeline

import (
	"strings"
	"testing"

	"github.com/advieskamer/advies-backend/internal/feedback"
)

const consolidateDoc = `# Advies

## Analyse

De doorschuiffaciliteit van artikel 4.17c Wet IB 2001 is van toepassing op de schenking van aanmerkelijkbelangaandelen.

Overbodige passage over een niet relevante vrijstelling.

## Conclusie

Wij adviseren de schenking dit jaar af te ronden.
`

func TestApplyProposalsModify(t *testing.T) {
	proposals := []feedback.ChangeProposal{{
		Index:    0,
		Stage:    StageReviewFiscaal,
		Type:     feedback.ChangeModify,
		Original: "Wij adviseren de schenking dit jaar af te ronden.",
		Proposed: "Wij adviseren de schenking voor 31 december af te ronden.",
	}}
	content, results := ApplyProposals(consolidateDoc, proposals)
	if len(results) != 1 || !results[0].Applied || results[0].Fuzzy {
		t.Fatalf("unexpected results: %+v", results)
	}
	if !strings.Contains(content, "voor 31 december") {
		t.Fatalf("replacement missing")
	}
	if strings.Contains(content, "dit jaar af te ronden") {
		t.Fatalf("original text still present")
	}
}

func TestApplyProposalsNotFoundRecordedNotDropped(t *testing.T) {
	proposals := []feedback.ChangeProposal{
		{Index: 0, Stage: StageReviewFiscaal, Type: feedback.ChangeModify, Original: "tekst die nergens staat", Proposed: "x"},
		{Index: 1, Stage: StageReviewFiscaal, Type: feedback.ChangeDelete, Original: "Overbodige passage over een niet relevante vrijstelling."},
	}
	content, results := ApplyProposals(consolidateDoc, proposals)
	if len(results) != 2 {
		t.Fatalf("every proposal must produce a result, got %d", len(results))
	}
	if results[0].Applied || results[0].Error == "" {
		t.Fatalf("missing text must fail with an error: %+v", results[0])
	}
	if !results[1].Applied {
		t.Fatalf("later proposal must still apply after an earlier failure: %+v", results[1])
	}
	if strings.Contains(content, "Overbodige passage") {
		t.Fatalf("delete not applied")
	}
}

func TestApplyProposalsAddWithSection(t *testing.T) {
	proposals := []feedback.ChangeProposal{{
		Index:    0,
		Stage:    StageReviewVolledigheid,
		Type:     feedback.ChangeAdd,
		Section:  "Analyse",
		Proposed: "De bezitseis van vijf jaar verdient aandacht.",
	}}
	content, results := ApplyProposals(consolidateDoc, proposals)
	if !results[0].Applied {
		t.Fatalf("add failed: %+v", results[0])
	}
	aIdx := strings.Index(content, "## Analyse")
	pIdx := strings.Index(content, "De bezitseis van vijf jaar")
	cIdx := strings.Index(content, "## Conclusie")
	if pIdx < aIdx || pIdx > cIdx {
		t.Fatalf("added text not placed in the named section")
	}
}

func TestApplyProposalsAddWithoutSectionAppends(t *testing.T) {
	proposals := []feedback.ChangeProposal{{
		Index:    0,
		Stage:    StageReviewVolledigheid,
		Type:     feedback.ChangeAdd,
		Section:  "Onbestaande Sectie",
		Proposed: "Slotopmerking.",
	}}
	content, results := ApplyProposals(consolidateDoc, proposals)
	if !results[0].Applied {
		t.Fatalf("add must fall back to append: %+v", results[0])
	}
	if !strings.HasSuffix(strings.TrimRight(content, "\n"), "Slotopmerking.") {
		t.Fatalf("fallback should append at end")
	}
}

func TestApplyProposalsRestructureSkipped(t *testing.T) {
	proposals := []feedback.ChangeProposal{{
		Index: 0,
		Stage: StageReviewConsistentie,
		Type:  feedback.ChangeRestructure,
	}}
	content, results := ApplyProposals(consolidateDoc, proposals)
	if content != consolidateDoc {
		t.Fatalf("restructure must not touch the document")
	}
	if results[0].Applied || !results[0].Skipped {
		t.Fatalf("restructure must be skipped: %+v", results[0])
	}
}

func TestApplyProposalsFuzzyFlagged(t *testing.T) {
	proposals := []feedback.ChangeProposal{{
		Index:    0,
		Stage:    StageReviewLeesbaarheid,
		Type:     feedback.ChangeModify,
		Original: "De doorschuiffaciliteit van artikel 4.17c Wet IB 2001 geldt voor de schenking van ab-aandelen.",
		Proposed: "De doorschuiffaciliteit geldt hier onverkort.",
	}}
	content, results := ApplyProposals(consolidateDoc, proposals)
	if !results[0].Applied {
		t.Fatalf("fuzzy apply failed: %+v", results[0])
	}
	if !results[0].Fuzzy {
		t.Fatalf("fuzzy path must be flagged")
	}
	if !strings.Contains(content, "geldt hier onverkort") {
		t.Fatalf("replacement missing")
	}
}

func TestApplyProposalsMissingFields(t *testing.T) {
	proposals := []feedback.ChangeProposal{
		{Index: 0, Stage: StageReviewFiscaal, Type: feedback.ChangeModify, Proposed: "x"},
		{Index: 1, Stage: StageReviewFiscaal, Type: feedback.ChangeAdd},
		{Index: 2, Stage: StageReviewFiscaal, Type: feedback.ChangeDelete},
	}
	_, results := ApplyProposals(consolidateDoc, proposals)
	for _, r := range results {
		if r.Applied || r.Error == "" {
			t.Fatalf("incomplete proposal must fail: %+v", r)
		}
	}
}
