package pathmodel

import (
	"regexp"
	"strings"
)

// unsafeNameChars matches characters the backend rejects or interprets as
// path structure inside a single folder name.
var unsafeNameChars = regexp.MustCompile(`[/\\?*|<>:"]`)

// SanitizeName replaces unsafe characters in a folder name with "_".
// The returned flag reports whether the name differs from the trimmed input,
// in which case the caller must confirm before using it.
func SanitizeName(name string) (string, bool) {
	trimmed := strings.TrimSpace(name)
	sanitized := unsafeNameChars.ReplaceAllString(trimmed, "_")
	return sanitized, sanitized != trimmed
}
