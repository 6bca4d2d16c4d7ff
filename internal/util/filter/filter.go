// Package filter decides which files of a local tree take part in an import.
package filter

import (
	"path"
	"strings"
)

// Config holds filter configuration. Paths given to its methods are
// slash-separated and relative to the import root ("src/main.go").
type Config struct {
	// Include patterns (glob-style) matched against the file name.
	// Empty means include all.
	// Example: []string{"*.dat", "*.txt"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include. A
	// directory whose name matches is skipped with everything below it.
	// Example: []string{"node_modules", "*.tmp"}
	Exclude []string

	// Search terms (case-insensitive substring match on the file name).
	// A file must match ALL search terms to be included.
	Search []string

	// PathInclude patterns match against the full relative path.
	// Supports standard glob patterns plus ** for multi-directory matching.
	// For ** support: "**/results.dat" matches "a/b/c/results.dat"
	PathInclude []string
}

// IsEmpty reports whether c lets everything through.
func (c *Config) IsEmpty() bool {
	return c == nil || len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0 && len(c.PathInclude) == 0
}

// KeepDir reports whether the directory at relPath should be descended into.
func (c *Config) KeepDir(relPath string) bool {
	if c.IsEmpty() {
		return true
	}
	return !matchesAny(path.Base(relPath), c.Exclude)
}

// KeepFile reports whether the file at relPath belongs in the import.
func (c *Config) KeepFile(relPath string) bool {
	if c.IsEmpty() {
		return true
	}
	if len(c.PathInclude) > 0 && !matchesPathFilter(relPath, c.PathInclude) {
		return false
	}
	return matchesFilter(path.Base(relPath), *c)
}

// matchesFilter checks if a filename matches the filter configuration.
func matchesFilter(filename string, config Config) bool {
	// 1. Exclude patterns first (highest priority)
	if matchesAny(filename, config.Exclude) {
		return false
	}

	// 2. Include patterns
	if len(config.Include) > 0 && !matchesAny(filename, config.Include) {
		return false
	}

	// 3. Search terms
	lowerFilename := strings.ToLower(filename)
	for _, term := range config.Search {
		if !strings.Contains(lowerFilename, strings.ToLower(term)) {
			return false
		}
	}

	return true
}

func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// matchesPathFilter checks if a file path matches any of the path patterns.
func matchesPathFilter(filePath string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchPathPattern(filePath, pattern) {
			return true
		}
	}
	return false
}

// matchPathPattern matches a single path against a pattern.
// Supports standard glob patterns plus ** for recursive directory matching.
func matchPathPattern(p, pattern string) bool {
	if strings.Contains(pattern, "**") {
		return matchDoubleStarPattern(p, pattern)
	}
	matched, err := path.Match(pattern, p)
	return err == nil && matched
}

// matchDoubleStarPattern handles ** glob patterns for multi-directory matching.
// Examples:
//   - "**/foo.txt" matches "foo.txt", "a/foo.txt", "a/b/c/foo.txt"
//   - "run_1/**" matches "run_1/anything", "run_1/a/b/c/file.txt"
//   - "src/**/*.go" matches "src/main.go", "src/a/b/util.go"
func matchDoubleStarPattern(p, pattern string) bool {
	if pattern == "**" {
		return true
	}

	// Leading **/: match the suffix at any depth
	if strings.HasPrefix(pattern, "**/") {
		suffix := pattern[3:]
		parts := strings.Split(p, "/")
		for i := range parts {
			if matchPathPattern(strings.Join(parts[i:], "/"), suffix) {
				return true
			}
		}
		return false
	}

	// Trailing /**: match everything below a prefix
	if strings.HasSuffix(pattern, "/**") {
		prefix := pattern[:len(pattern)-3]
		parts := strings.Split(p, "/")
		for i := 1; i < len(parts); i++ {
			if matched, _ := path.Match(prefix, strings.Join(parts[:i], "/")); matched {
				return true
			}
		}
		return false
	}

	// /**/ in the middle: prefix, any number of directories, suffix
	if i := strings.Index(pattern, "/**/"); i != -1 {
		prefix, suffix := pattern[:i], pattern[i+4:]
		parts := strings.Split(p, "/")
		for j := 1; j < len(parts); j++ {
			if matched, _ := path.Match(prefix, strings.Join(parts[:j], "/")); !matched {
				continue
			}
			for k := j; k < len(parts); k++ {
				if matchPathPattern(strings.Join(parts[k:], "/"), suffix) {
					return true
				}
			}
		}
		return false
	}

	// Anything else: treat ** as *
	matched, _ := path.Match(strings.ReplaceAll(pattern, "**", "*"), p)
	return matched
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.dat,*.txt" -> []string{"*.dat", "*.txt"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
