package feedback

// ChangeType classifies what a proposal wants done to the document.
type ChangeType string

const (
	ChangeAdd         ChangeType = "add"
	ChangeDelete      ChangeType = "delete"
	ChangeModify      ChangeType = "modify"
	ChangeRestructure ChangeType = "restructure"
)

// Severity ranks how strongly a reviewer pushed for the change.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityImportant  Severity = "important"
	SeveritySuggestion Severity = "suggestion"
)

// ChangeProposal is the canonical shape every reviewer feedback item is
// coerced into, whatever JSON the model actually returned. Stage plus Index is
// the stable rollback key; Index is the position in the stage's proposal list.
type ChangeProposal struct {
	Index     int        `json:"index"`
	Stage     string     `json:"stage"`
	Type      ChangeType `json:"type"`
	Severity  Severity   `json:"severity"`
	Section   string     `json:"section,omitempty"`
	Original  string     `json:"original,omitempty"`
	Proposed  string     `json:"proposed,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
}

// Diagnostics records how parsing went so a degraded parse stays debuggable
// without blocking the pipeline.
type Diagnostics struct {
	Attempted []string `json:"attempted"`
	Method    string   `json:"method"`
	Excerpt   string   `json:"excerpt,omitempty"`
}
