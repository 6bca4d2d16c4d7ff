// Package strings provides small formatting helpers for CLI output.
package strings

import (
	"fmt"
	"strings"
)

// Pluralize returns singular or plural form based on count.
// Example: Pluralize("file", 1) returns "file", Pluralize("file", 2) returns "files"
func Pluralize(word string, count int64) string {
	if count == 1 {
		return word
	}
	if strings.HasSuffix(word, "y") && len(word) > 1 && !strings.ContainsRune("aeiou", rune(word[len(word)-2])) {
		return word[:len(word)-1] + "ies"
	}
	return word + "s"
}

// Count formats count with the matching form of word: "1 file", "3 files".
func Count(count int64, word string) string {
	return fmt.Sprintf("%d %s", count, Pluralize(word, count))
}
