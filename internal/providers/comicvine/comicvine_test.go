package comicvine

import (
	"testing"

	"trackarr/internal/metadata"
)

func TestGetIssueNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected *int
	}{
		{"12", intp(12)},
		{"463-464", intp(464)},
		{" 7 ", intp(7)},
		{"1-2-3", intp(3)},
		{"abc", nil},
		{"12a", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := GetIssueNumber(tt.input)
		switch {
		case got == nil && tt.expected != nil:
			t.Errorf("GetIssueNumber(%q) = nil, want %d", tt.input, *tt.expected)
		case got != nil && tt.expected == nil:
			t.Errorf("GetIssueNumber(%q) = %d, want nil", tt.input, *got)
		case got != nil && *got != *tt.expected:
			t.Errorf("GetIssueNumber(%q) = %d, want %d", tt.input, *got, *tt.expected)
		}
	}
}

func intp(n int) *int { return &n }

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"<p>Plain <b>text</b> here.</p>", "Plain text here."},
		{"no markup at all", "no markup at all"},
		{"<p>multi</p><p>paragraph</p>", "multi paragraph"},
		{"", metadata.NoSynopsis},
		{"<p></p>", metadata.NoSynopsis},
	}

	for _, tt := range tests {
		if got := StripHTML(tt.input); got != tt.expected {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
