package textutil

import (
	"strings"
	"unicode/utf8"
)

// maxFileNameRunes caps sanitized titles so generated paths stay well below
// filesystem name limits once a timestamp suffix is added.
const maxFileNameRunes = 100

// fileNameReplacer removes filesystem-unsafe characters.
var fileNameReplacer = strings.NewReplacer(
	"/", "",
	"\\", "",
	":", "",
	"*", "",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName strips filesystem-unsafe characters from a title and
// truncates it to 100 runes. Surrounding whitespace is trimmed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(fileNameReplacer.Replace(name))
	if utf8.RuneCountInString(name) > maxFileNameRunes {
		runes := []rune(name)
		name = strings.TrimSpace(string(runes[:maxFileNameRunes]))
	}
	return name
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
