package metadata

import (
	"testing"

	"trackarr/internal/models"
)

func TestMediaRefString(t *testing.T) {
	season := 1
	episode := 3

	tests := []struct {
		ref      MediaRef
		expected string
	}{
		{
			MediaRef{Source: models.SourceTMDB, MediaType: models.MediaTypeMovie, MediaID: "10494"},
			"tmdb/movie/10494",
		},
		{
			MediaRef{Source: models.SourceTMDB, MediaType: models.MediaTypeEpisode, MediaID: "1668", Season: &season, Episode: &episode},
			"tmdb/episode/1668/s1/e3",
		},
	}

	for _, tt := range tests {
		if got := tt.ref.String(); got != tt.expected {
			t.Errorf("String() = %q, want %q", got, tt.expected)
		}
	}
}

func TestNormalizeSynopsis(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"A hero's journey.", "A hero's journey."},
		{"", NoSynopsis},
		{"   ", NoSynopsis},
	}

	for _, tt := range tests {
		if got := NormalizeSynopsis(tt.input); got != tt.expected {
			t.Errorf("NormalizeSynopsis(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeImage(t *testing.T) {
	if got := NormalizeImage("http://img", "fallback"); got != "http://img" {
		t.Errorf("NormalizeImage = %q, want the original url", got)
	}
	if got := NormalizeImage("", "fallback"); got != "fallback" {
		t.Errorf("NormalizeImage = %q, want the fallback", got)
	}
}

func TestRoundScore(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{8.456, 8.5},
		{8.44, 8.4},
		{0, 0},
		{-1, 0},
		{10.6, 10},
	}

	for _, tt := range tests {
		got := RoundScore(tt.input)
		if got == nil || *got != tt.expected {
			t.Errorf("RoundScore(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
