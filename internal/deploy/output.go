package deploy

import "strings"

// TruncateOutput trims whitespace and cuts the text to limit runes, marking
// the cut with an ellipsis.
func TruncateOutput(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
