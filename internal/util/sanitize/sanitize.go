// Package sanitize cleans text read from user-supplied lists: byte order
// marks, zero-width characters and stray line endings.
package sanitize

import "strings"

// invisible are characters that render as nothing but break path lookups.
var invisible = strings.NewReplacer(
	"\u200B", "", // Zero-width space
	"\u200C", "", // Zero-width non-joiner
	"\u200D", "", // Zero-width joiner
	"\uFEFF", "", // Zero-width no-break space (BOM)
	"\u00AD", "", // Soft hyphen
	"\u2060", "", // Word joiner
	"\u180E", "", // Mongolian vowel separator
)

// SanitizeField removes invisible characters and surrounding whitespace,
// including a trailing CR from CRLF input.
func SanitizeField(field string) string {
	if field == "" {
		return field
	}
	return strings.TrimSpace(invisible.Replace(field))
}
