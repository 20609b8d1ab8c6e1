package logger

import (
	"fmt"
	"strings"
)

// SanitizeForLog escapes control characters so that untrusted input, such
// as media file ids or encoder stderr output, cannot forge log entries or
// emit terminal escape sequences. Printable Unicode passes through.
func SanitizeForLog(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		result.WriteString(escapeRune(r))
	}
	return result.String()
}

func escapeRune(r rune) string {
	switch r {
	case '\n':
		return "\\n"
	case '\r':
		return "\\r"
	case '\t':
		return "\\t"
	}
	if r < 32 || r == 127 {
		return fmt.Sprintf("\\x%02x", r)
	}
	return string(r)
}
