// Package ai provides the governed gateway to the external reasoning service.
package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ExtractJSONObject pulls the first balanced JSON object out of a model
// response that may wrap it in markdown fences or prose. Returns "" when no
// balanced object is found.
func ExtractJSONObject(response string) string {
	response = stripMarkdownFences(response)

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

func stripMarkdownFences(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// RepairJSON applies conservative fixes (trailing commas) when the extracted
// fragment does not parse as-is. It never invents content.
func RepairJSON(fragment string) string {
	if IsValidJSON(fragment) {
		return fragment
	}
	return trailingCommaRe.ReplaceAllString(fragment, "$1")
}

// IsValidJSON reports whether s parses as JSON.
func IsValidJSON(s string) bool {
	var v any
	return json.Unmarshal([]byte(s), &v) == nil
}
