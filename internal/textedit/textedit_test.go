package textedit

import (
	"strings"
	"testing"
)

const sampleDoc = `# Advies

## Inleiding

De client heeft in 2024 een eenmanszaak omgezet naar een besloten vennootschap. De fiscale gevolgen daarvan worden hieronder behandeld.

## Analyse

De geruisloze inbreng van artikel 3.65 Wet IB 2001 is van toepassing wanneer aan de standaardvoorwaarden wordt voldaan. Dit betekent dat geen afrekening over de stille reserves plaatsvindt.

## Conclusie

Wij adviseren de inbreng geruisloos te laten plaatsvinden.
`

func TestFindExact(t *testing.T) {
	target := "De fiscale gevolgen daarvan worden hieronder behandeld."
	m, ok := Find(sampleDoc, target)
	if !ok {
		t.Fatalf("expected exact match")
	}
	if m.Fuzzy {
		t.Fatalf("exact match flagged fuzzy")
	}
	if m.Text != target {
		t.Fatalf("matched text mismatch: %q", m.Text)
	}
	if sampleDoc[m.Start:m.End] != target {
		t.Fatalf("offsets do not point at target")
	}
}

func TestFindExactPreferredOverFuzzy(t *testing.T) {
	// The target occurs verbatim; even though a prefix match would also
	// succeed, the exact path must win and report Fuzzy=false.
	m, ok := Find(sampleDoc, "Wij adviseren de inbreng geruisloos te laten plaatsvinden.")
	if !ok || m.Fuzzy {
		t.Fatalf("expected non-fuzzy match, got ok=%v fuzzy=%v", ok, m.Fuzzy)
	}
}

func TestFindFuzzyPrefixAnchor(t *testing.T) {
	// Same opening words, but the quoted tail drifted from the document.
	target := "De geruisloze inbreng van artikel 3.65 Wet IB 2001 is van toepassing indien de standaardvoorwaarden worden nageleefd."
	m, ok := Find(sampleDoc, target)
	if !ok {
		t.Fatalf("expected fuzzy match")
	}
	if !m.Fuzzy {
		t.Fatalf("expected fuzzy flag")
	}
	if !strings.HasPrefix(m.Text, "De geruisloze inbreng") {
		t.Fatalf("fuzzy match anchored wrong: %q", m.Text)
	}
	if m.End > m.Start+DefaultMaxFactor*len(target) {
		t.Fatalf("fuzzy match exceeds length bound")
	}
}

func TestFindFuzzyStopsAtParagraphBreak(t *testing.T) {
	doc := "Eerste alinea met een behoorlijk lange openingszin die als anker dient voor het prefixmatchen van de tekst.\n\nTweede alinea."
	target := "Eerste alinea met een behoorlijk lange openingszin die als anker dient voor iets heel anders dan wat er werkelijk staat in het document zelf."
	m, ok := Find(doc, target)
	if !ok || !m.Fuzzy {
		t.Fatalf("expected fuzzy match, got ok=%v fuzzy=%v", ok, m.Fuzzy)
	}
	if strings.Contains(m.Text, "Tweede alinea") {
		t.Fatalf("fuzzy match crossed paragraph boundary: %q", m.Text)
	}
}

func TestFindFuzzyStopsAtSentenceEnd(t *testing.T) {
	doc := "Dit is de eerste zin die lang genoeg is om als prefixanker te dienen binnen het document. Dit is de tweede zin. Dit is de derde zin."
	target := "Dit is de eerste zin die lang genoeg is om als prefixanker te dienen binnen de tekst."
	m, ok := Find(doc, target)
	if !ok || !m.Fuzzy {
		t.Fatalf("expected fuzzy match, got ok=%v fuzzy=%v", ok, m.Fuzzy)
	}
	if !strings.HasSuffix(m.Text, ".") {
		t.Fatalf("fuzzy match should end at a sentence boundary: %q", m.Text)
	}
	if strings.Contains(m.Text, "derde zin") {
		t.Fatalf("fuzzy match ran past the sentence end: %q", m.Text)
	}
}

func TestFindNoMatch(t *testing.T) {
	if _, ok := Find(sampleDoc, "Deze zin komt nergens in het document voor."); ok {
		t.Fatalf("expected no match")
	}
	if _, ok := Find(sampleDoc, ""); ok {
		t.Fatalf("empty target must not match")
	}
	if _, ok := Find(sampleDoc, "   \n"); ok {
		t.Fatalf("whitespace target must not match")
	}
}

func TestReplace(t *testing.T) {
	out, m, ok := Replace(sampleDoc, "Wij adviseren de inbreng geruisloos te laten plaatsvinden.", "Wij adviseren af te rekenen over de stille reserves.")
	if !ok {
		t.Fatalf("replace failed")
	}
	if m.Fuzzy {
		t.Fatalf("expected exact replacement")
	}
	if strings.Contains(out, "geruisloos te laten plaatsvinden") {
		t.Fatalf("old text still present")
	}
	if !strings.Contains(out, "af te rekenen over de stille reserves") {
		t.Fatalf("new text missing")
	}
}

func TestReplaceNotFoundLeavesDocUntouched(t *testing.T) {
	out, _, ok := Replace(sampleDoc, "niet aanwezig in het document", "x")
	if ok {
		t.Fatalf("expected not found")
	}
	if out != sampleDoc {
		t.Fatalf("document modified on failed replace")
	}
}

func TestRemoveCollapsesBlankLines(t *testing.T) {
	doc := "Eerste alinea.\n\nTe verwijderen alinea.\n\nDerde alinea.\n"
	out, _, ok := Remove(doc, "Te verwijderen alinea.")
	if !ok {
		t.Fatalf("remove failed")
	}
	if strings.Contains(out, "Te verwijderen") {
		t.Fatalf("target still present")
	}
	if strings.Contains(out, "\n\n\n") {
		t.Fatalf("blank-line run left behind: %q", out)
	}
}

func TestCollapseBlankLines(t *testing.T) {
	got := CollapseBlankLines("a\n\n\n\nb\n\n\nc")
	if got != "a\n\nb\n\nc" {
		t.Fatalf("got %q", got)
	}
}

func TestInsertAfterSectionHeading(t *testing.T) {
	out, ok := InsertAfterSection(sampleDoc, "Analyse", "Herstelde passage.")
	if !ok {
		t.Fatalf("section not found")
	}
	idx := strings.Index(out, "## Analyse")
	if idx < 0 {
		t.Fatalf("heading lost")
	}
	rest := out[idx:]
	if !strings.HasPrefix(rest, "## Analyse\n\nHerstelde passage.") {
		t.Fatalf("text not inserted directly after heading: %q", rest[:60])
	}
}

func TestInsertAfterSectionCaseInsensitive(t *testing.T) {
	if _, ok := InsertAfterSection(sampleDoc, "inleiding", "tekst"); !ok {
		t.Fatalf("heading match should ignore case")
	}
}

func TestInsertAfterSectionMissing(t *testing.T) {
	out, ok := InsertAfterSection(sampleDoc, "Bijlage", "tekst")
	if ok {
		t.Fatalf("expected section not found")
	}
	if out != sampleDoc {
		t.Fatalf("document modified on missing section")
	}
}

func TestAppendToEnd(t *testing.T) {
	out := AppendToEnd("Bestaande inhoud.\n\n\n", "Toegevoegde passage.")
	if out != "Bestaande inhoud.\n\nToegevoegde passage.\n" {
		t.Fatalf("got %q", out)
	}
}
