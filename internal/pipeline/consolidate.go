package pipeline

import (
	"github.com/advieskamer/advies-backend/internal/feedback"
	"github.com/advieskamer/advies-backend/internal/textedit"
)

// ApplyResult records what happened to one proposal during consolidation or
// direct apply. Partial application is visible per item; nothing is silently
// dropped.
type ApplyResult struct {
	Stage    string `json:"stage"`
	Index    int    `json:"index"`
	Type     string `json:"type"`
	Applied  bool   `json:"applied"`
	Fuzzy    bool   `json:"fuzzy,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// ApplyProposals applies reviewer proposals to content by sequential text
// substitution, exact match first, then the bounded fuzzy fallback. Proposals
// whose text cannot be located are recorded as failures, never dropped.
// Restructure proposals need judgment a substitution cannot provide, so they
// are skipped and surfaced for the AI-mediated path.
func ApplyProposals(content string, proposals []feedback.ChangeProposal) (string, []ApplyResult) {
	results := make([]ApplyResult, 0, len(proposals))
	for _, p := range proposals {
		res := ApplyResult{
			Stage:    p.Stage,
			Index:    p.Index,
			Type:     string(p.Type),
			Severity: string(p.Severity),
		}
		switch p.Type {
		case feedback.ChangeModify:
			if p.Original == "" || p.Proposed == "" {
				res.Error = "modify proposal missing original or proposed text"
				break
			}
			next, match, ok := textedit.Replace(content, p.Original, p.Proposed)
			if !ok {
				res.Error = "original text not found in document"
				break
			}
			content = next
			res.Applied = true
			res.Fuzzy = match.Fuzzy
		case feedback.ChangeAdd:
			if p.Proposed == "" {
				res.Error = "add proposal missing proposed text"
				break
			}
			if p.Section != "" {
				if next, ok := textedit.InsertAfterSection(content, p.Section, p.Proposed); ok {
					content = next
					res.Applied = true
					break
				}
			}
			content = textedit.AppendToEnd(content, p.Proposed)
			res.Applied = true
		case feedback.ChangeDelete:
			if p.Original == "" {
				res.Error = "delete proposal missing original text"
				break
			}
			next, match, ok := textedit.Remove(content, p.Original)
			if !ok {
				res.Error = "text to delete not found in document"
				break
			}
			content = next
			res.Applied = true
			res.Fuzzy = match.Fuzzy
		default:
			res.Skipped = true
			res.Error = "restructure proposals require manual or AI-mediated handling"
		}
		results = append(results, res)
	}
	return content, results
}
