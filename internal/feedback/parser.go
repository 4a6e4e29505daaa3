package feedback

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Parse converts raw reviewer output into normalized proposals. It is a pure
// function of its input: identical input always yields identical output, and
// it never fails. When no JSON can be extracted it degrades to bullet lines,
// and finally to a single synthetic proposal wrapping the whole text.
func Parse(rawText string, stage string) ([]ChangeProposal, *Diagnostics) {
	diag := &Diagnostics{}
	raw := strings.TrimSpace(rawText)
	if raw == "" {
		diag.Method = "empty"
		return []ChangeProposal{}, diag
	}
	diag.Excerpt = excerpt(raw, 300)

	for _, ex := range []struct {
		name string
		fn   func(string) (any, bool)
	}{
		{"whole_json", extractWholeJSON},
		{"fenced_block", extractFencedJSON},
		{"embedded_json", extractEmbeddedJSON},
	} {
		diag.Attempted = append(diag.Attempted, ex.name)
		decoded, ok := ex.fn(raw)
		if !ok {
			continue
		}
		items, found := locateItems(decoded)
		if !found {
			continue
		}
		diag.Method = ex.name
		return normalizeAll(items, stage), diag
	}

	diag.Attempted = append(diag.Attempted, "bullet_lines")
	if props := parseBulletLines(raw, stage); len(props) > 0 {
		diag.Method = "bullet_lines"
		return props, diag
	}

	diag.Attempted = append(diag.Attempted, "whole_text")
	diag.Method = "whole_text"
	return []ChangeProposal{{
		Index:     0,
		Stage:     stage,
		Type:      ChangeModify,
		Severity:  SeveritySuggestion,
		Reasoning: raw,
	}}, diag
}

func extractWholeJSON(raw string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	return v, true
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func extractFencedJSON(raw string) (any, bool) {
	m := fenceRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	return extractWholeJSON(strings.TrimSpace(m[1]))
}

// extractEmbeddedJSON pulls the first balanced {...} or [...] substring out of
// surrounding prose and tries to decode it.
func extractEmbeddedJSON(raw string) (any, bool) {
	start := -1
	for i, r := range raw {
		if r == '{' || r == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}
	open := raw[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return extractWholeJSON(raw[start : i+1])
			}
		}
	}
	return nil, false
}

// Property names the feedback array may hide under, in priority order.
var itemKeys = []string{"feedback", "bevindingen", "items", "adjustments", "aanpassingen", "changes", "wijzigingen"}

// locateItems finds the list of feedback items inside decoded JSON: a direct
// top-level array, a well-known property, the same property one object level
// down, or a lone object that itself looks like a feedback item.
func locateItems(decoded any) ([]map[string]any, bool) {
	switch v := decoded.(type) {
	case []any:
		return toItemMaps(v)
	case map[string]any:
		for _, key := range itemKeys {
			if arr, ok := v[key].([]any); ok {
				return toItemMaps(arr)
			}
		}
		for _, nested := range v {
			obj, ok := nested.(map[string]any)
			if !ok {
				continue
			}
			for _, key := range itemKeys {
				if arr, ok := obj[key].([]any); ok {
					return toItemMaps(arr)
				}
			}
		}
		if looksLikeItem(v) {
			return []map[string]any{v}, true
		}
	}
	return nil, false
}

func toItemMaps(arr []any) ([]map[string]any, bool) {
	out := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func looksLikeItem(obj map[string]any) bool {
	for key := range obj {
		k := strings.ToLower(key)
		if strings.Contains(k, "categorie") || strings.Contains(k, "category") ||
			strings.Contains(k, "instructie") || strings.Contains(k, "instruction") ||
			strings.Contains(k, "bevinding") || strings.Contains(k, "finding") {
			return true
		}
	}
	return false
}

var bulletRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)

func parseBulletLines(raw string, stage string) []ChangeProposal {
	var props []ChangeProposal
	for _, line := range strings.Split(raw, "\n") {
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[1])
		if text == "" {
			continue
		}
		props = append(props, ChangeProposal{
			Index:     len(props),
			Stage:     stage,
			Type:      ChangeModify,
			Severity:  SeveritySuggestion,
			Reasoning: text,
		})
	}
	return props
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
