package feedback

import (
	"fmt"
	"strings"
)

// Field labels vary by stage and prompt version; the same semantic field may
// arrive under any of these names.
var (
	originalKeys  = []string{"original", "original_text", "origineel", "originele_tekst", "oude_tekst", "old", "old_text", "huidige_tekst", "current_text"}
	proposedKeys  = []string{"proposed", "proposed_text", "voorstel", "voorgestelde_tekst", "nieuwe_tekst", "new", "new_text", "suggestie", "replacement"}
	sectionKeys   = []string{"section", "sectie", "hoofdstuk", "kop", "heading", "paragraaf"}
	reasoningKeys = []string{"reasoning", "toelichting", "onderbouwing", "reason", "explanation", "instructie", "instruction", "bevinding", "finding", "description", "omschrijving"}
	typeKeys      = []string{"type", "change_type", "soort", "wijziging_type", "actie", "action"}
	severityKeys  = []string{"severity", "prioriteit", "priority", "ernst", "bevinding_categorie", "categorie", "category"}
)

func normalizeAll(items []map[string]any, stage string) []ChangeProposal {
	out := make([]ChangeProposal, 0, len(items))
	for _, item := range items {
		p := normalizeOne(item, stage)
		p.Index = len(out)
		out = append(out, p)
	}
	return out
}

func normalizeOne(item map[string]any, stage string) ChangeProposal {
	p := ChangeProposal{
		Stage:     stage,
		Original:  firstString(item, originalKeys),
		Proposed:  firstString(item, proposedKeys),
		Section:   firstString(item, sectionKeys),
		Reasoning: firstString(item, reasoningKeys),
	}
	p.Type = inferType(firstString(item, typeKeys), p)
	p.Severity = inferSeverity(firstString(item, severityKeys))
	return p
}

func firstString(item map[string]any, keys []string) string {
	lowered := make(map[string]any, len(item))
	for k, v := range item {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, key := range keys {
		v, ok := lowered[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if t := strings.TrimSpace(s); t != "" {
				return t
			}
			continue
		}
		if t := strings.TrimSpace(fmt.Sprint(v)); t != "" && t != "<nil>" {
			return t
		}
	}
	return ""
}

// inferType keyword-matches free-text category strings onto the closed change
// type set, defaulting to modify. When no explicit type is present the shape
// of the item decides: proposed-only reads as add, original-only as delete.
func inferType(raw string, p ChangeProposal) ChangeType {
	t := strings.ToLower(raw)
	switch {
	case containsAny(t, "add", "insert", "toevoeg", "aanvul", "invoeg"):
		return ChangeAdd
	case containsAny(t, "delete", "remove", "verwijder", "schrap"):
		return ChangeDelete
	case containsAny(t, "restructure", "reorder", "herstructur", "herindel", "verplaats"):
		return ChangeRestructure
	case containsAny(t, "modify", "change", "wijzig", "vervang", "aanpas", "herformuleer"):
		return ChangeModify
	}
	if raw == "" {
		if p.Proposed != "" && p.Original == "" {
			return ChangeAdd
		}
		if p.Original != "" && p.Proposed == "" {
			return ChangeDelete
		}
	}
	return ChangeModify
}

func inferSeverity(raw string) Severity {
	s := strings.ToLower(raw)
	switch {
	case containsAny(s, "critical", "kritiek", "error", "fout", "blokkerend", "onjuist"):
		return SeverityCritical
	case containsAny(s, "important", "belangrijk", "warning", "waarschuwing", "major"):
		return SeverityImportant
	default:
		return SeveritySuggestion
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
