package webhooks

import (
	"testing"

	"trackarr/internal/models"
)

func TestMediaTypeFor(t *testing.T) {
	tests := []struct {
		input    string
		expected models.MediaType
		ok       bool
	}{
		{"Episode", models.MediaTypeTV, true},
		{"episode", models.MediaTypeTV, true},
		{"Movie", models.MediaTypeMovie, true},
		{"movie", models.MediaTypeMovie, true},
		{"Audio", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := mediaTypeFor(tt.input)
		if ok != tt.ok || got != tt.expected {
			t.Errorf("mediaTypeFor(%q) = (%q, %v), want (%q, %v)",
				tt.input, got, ok, tt.expected, tt.ok)
		}
	}
}

func TestExternalIDsEmpty(t *testing.T) {
	if !(ExternalIDs{}).Empty() {
		t.Error("zero value should be empty")
	}
	if (ExternalIDs{TVDB: "1"}).Empty() {
		t.Error("ids with a tvdb value should not be empty")
	}
}
