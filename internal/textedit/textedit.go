// Package textedit locates and replaces natural-language excerpts in a
// document. Matching is exact first, then a bounded prefix-based fuzzy
// fallback that tolerates minor whitespace and formatting drift between the
// text a reviewer quoted and the text actually in the document.
package textedit

import (
	"regexp"
	"strings"
)

// Fuzzy matching bounds. Tuned empirically, deliberately configurable rather
// than load-bearing: the prefix anchors the match, the factor caps how far a
// region may grow past the expected length.
const (
	DefaultPrefixLen = 50
	DefaultMaxFactor = 2
)

// Match is one located region of the document.
type Match struct {
	Start int
	End   int
	Text  string
	Fuzzy bool
}

// Find locates target in doc, exactly or fuzzily. Returns false when neither
// strategy matches.
func Find(doc string, target string) (Match, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Match{}, false
	}
	if idx := strings.Index(doc, target); idx >= 0 {
		return Match{Start: idx, End: idx + len(target), Text: target}, true
	}
	return findFuzzy(doc, target)
}

// findFuzzy anchors on a fixed-length prefix of the target, then expands the
// matched region to the next paragraph or sentence boundary, bounded to at
// most MaxFactor times the target's length to avoid over-matching.
func findFuzzy(doc string, target string) (Match, bool) {
	prefix := target
	if len(prefix) > DefaultPrefixLen {
		prefix = prefix[:DefaultPrefixLen]
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return Match{}, false
	}
	start := strings.Index(doc, prefix)
	if start < 0 {
		return Match{}, false
	}

	limit := start + DefaultMaxFactor*len(target)
	if limit > len(doc) {
		limit = len(doc)
	}
	expected := start + len(target)
	if expected > limit {
		expected = limit
	}

	end := boundaryAfter(doc, start+len(prefix), expected, limit)
	return Match{Start: start, End: end, Text: doc[start:end], Fuzzy: true}, true
}

// boundaryAfter picks the region end: the first paragraph break at or past
// from, else the first sentence end at or past the expected end, else the
// hard limit.
func boundaryAfter(doc string, from int, expected int, limit int) int {
	if p := strings.Index(doc[from:limit], "\n\n"); p >= 0 {
		return from + p
	}
	for i := expected; i < limit-1; i++ {
		if doc[i] == '.' && (doc[i+1] == ' ' || doc[i+1] == '\n') {
			return i + 1
		}
	}
	if limit > 0 && doc[limit-1] == '.' {
		return limit
	}
	return limit
}

// Replace substitutes old with new in doc. Returns the new document, the
// matched region, and whether the match used the fuzzy path.
func Replace(doc string, old string, new string) (string, Match, bool) {
	m, ok := Find(doc, old)
	if !ok {
		return doc, Match{}, false
	}
	return doc[:m.Start] + new + doc[m.End:], m, true
}

// Remove deletes target from doc and collapses any blank-line runs the
// removal left behind.
func Remove(doc string, target string) (string, Match, bool) {
	m, ok := Find(doc, target)
	if !ok {
		return doc, Match{}, false
	}
	return CollapseBlankLines(doc[:m.Start] + doc[m.End:]), m, true
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// CollapseBlankLines reduces runs of blank lines to a single blank line.
func CollapseBlankLines(s string) string {
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

// InsertAfterSection re-inserts text after the named section heading, matched
// as a markdown-style heading or a bare line starting with the label, through
// end of line. Returns false when the section is not found.
func InsertAfterSection(doc string, section string, text string) (string, bool) {
	section = strings.TrimSpace(section)
	if section == "" {
		return doc, false
	}
	re, err := regexp.Compile(`(?mi)^(#{0,6}\s*` + regexp.QuoteMeta(section) + `[^\n]*)$`)
	if err != nil {
		return doc, false
	}
	loc := re.FindStringIndex(doc)
	if loc == nil {
		return doc, false
	}
	insertAt := loc[1]
	return doc[:insertAt] + "\n\n" + strings.TrimSpace(text) + doc[insertAt:], true
}

// AppendToEnd tacks text onto the document end with a separating blank line.
func AppendToEnd(doc string, text string) string {
	trimmed := strings.TrimRight(doc, "\n")
	return trimmed + "\n\n" + strings.TrimSpace(text) + "\n"
}
