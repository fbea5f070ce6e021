package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Model output parsing is two-tier: a strict JSON parse of the first
// balanced object in the text, then a table of independent field-level
// regex extractors when that fails. Best effort, never panics.

// StripCodeFences removes a surrounding markdown code fence, if any
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:] // drop the language tag line
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// ExtractJSONObject finds the first balanced top-level JSON object in
// text, tolerating prose before and after it
func ExtractJSONObject(text string) (string, bool) {
	text = StripCodeFences(text)
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseJSON attempts a strict parse of the first JSON object in text
func ParseJSON(text string) (map[string]interface{}, bool) {
	candidate, ok := ExtractJSONObject(text)
	if !ok {
		return nil, false
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// FieldExtractor pulls one named field out of free text. List extractors
// capture every match; scalar extractors capture the first.
type FieldExtractor struct {
	Field   string
	Pattern *regexp.Regexp
	List    bool
}

// ExtractFields applies each extractor independently. Extractors that
// match nothing contribute nothing; the caller fills defaults.
func ExtractFields(text string, extractors []FieldExtractor) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, ex := range extractors {
		if ex.List {
			matches := ex.Pattern.FindAllStringSubmatch(text, -1)
			if len(matches) == 0 {
				continue
			}
			items := []interface{}{}
			for _, m := range matches {
				if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
					items = append(items, strings.TrimSpace(m[1]))
				}
			}
			if len(items) > 0 {
				fields[ex.Field] = items
			}
			continue
		}
		if m := ex.Pattern.FindStringSubmatch(text); len(m) > 1 {
			fields[ex.Field] = strings.TrimSpace(m[1])
		}
	}
	return fields
}
