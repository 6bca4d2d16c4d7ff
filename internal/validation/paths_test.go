package validation

import "testing"

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"simple", "report.pdf", false},
		{"spaces", "Q1 report (final).pdf", false},
		{"double dots inside", "data..v2.csv", false},
		{"dotfile", ".env", false},
		{"unicode", "přehled.txt", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dot dot", "..", true},
		{"slash", "a/b.txt", true},
		{"traversal", "../etc/passwd", true},
		{"backslash", `..\windows\system32`, true},
		{"null byte", "file\x00.txt", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilename(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
		})
	}
}
