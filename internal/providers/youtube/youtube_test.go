package youtube

import "testing"

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/watch?v=nope", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractVideoID(tt.input); got != tt.expected {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestExtractVideoIDFromPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/media/lectures/dQw4w9WgXcQ.mp4", "dQw4w9WgXcQ"},
		{"/media/lectures/dQw4w9WgXcQ.webm", "dQw4w9WgXcQ"},
		{"dQw4w9WgXcQ.mkv", "dQw4w9WgXcQ"},
		{`C:\media\dQw4w9WgXcQ.mp4`, "dQw4w9WgXcQ"},
		{"/media/lectures/Episode 5.mp4", ""},
		{"/media/lectures/tooshort.mp4", ""},
		{"/media/lectures/waytoolongforavideoid.mp4", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractVideoIDFromPath(tt.input); got != tt.expected {
			t.Errorf("ExtractVideoIDFromPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"PT4M13S", 5},
		{"PT4M", 4},
		{"PT1H2M", 62},
		{"PT1H", 60},
		{"PT45S", 1},
		{"PT0S", 0},
		{"bogus", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := ParseDuration(tt.input); got != tt.expected {
			t.Errorf("ParseDuration(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}
