package strings

import "testing"

func TestPluralize(t *testing.T) {
	tests := []struct {
		word  string
		count int64
		want  string
	}{
		{"file", 0, "files"},
		{"file", 1, "file"},
		{"file", 2, "files"},
		{"folder", 1, "folder"},
		{"entry", 2, "entries"},
		{"entry", 1, "entry"},
		{"key", 3, "keys"},
	}
	for _, tt := range tests {
		if got := Pluralize(tt.word, tt.count); got != tt.want {
			t.Errorf("Pluralize(%q, %d) = %q, want %q", tt.word, tt.count, got, tt.want)
		}
	}
}

func TestCount(t *testing.T) {
	if got := Count(1, "file"); got != "1 file" {
		t.Errorf("Count(1) = %q", got)
	}
	if got := Count(12, "file"); got != "12 files" {
		t.Errorf("Count(12) = %q", got)
	}
}
