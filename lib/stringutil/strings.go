package stringutil

import "strings"

func Empty(vals ...string) bool {
	for _, val := range vals {
		if val == "" {
			return true
		}
	}

	return false
}

// Truncate shortens [value] to at most [maxLength] runes.
func Truncate(value string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	runes := []rune(value)
	if len(runes) <= maxLength {
		return value
	}

	return string(runes[:maxLength])
}

// IsBlank reports whether [value] is empty once whitespace is trimmed.
func IsBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}
