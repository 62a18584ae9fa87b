package tmdb

import "testing"

func TestReadableDuration(t *testing.T) {
	tests := []struct {
		minutes  int
		expected interface{}
	}{
		{90, "1h 30m"},
		{60, "1h 0m"},
		{45, "45m"},
		{0, nil},
		{-5, nil},
	}

	for _, tt := range tests {
		if got := readableDuration(tt.minutes); got != tt.expected {
			t.Errorf("readableDuration(%d) = %v, want %v", tt.minutes, got, tt.expected)
		}
	}
}

func TestCompanyNames_CapsAtThree(t *testing.T) {
	companies := []company{
		{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"},
	}
	got := companyNames(companies)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != "A" || got[2] != "C" {
		t.Errorf("unexpected names: %v", got)
	}

	if companyNames(nil) != nil {
		t.Error("expected nil for no companies")
	}
}

func TestImageURL(t *testing.T) {
	c := &Client{noImage: "/static/img/none.svg"}

	path := "/poster.jpg"
	if got := c.imageURL(&path); got != imageBase+"/poster.jpg" {
		t.Errorf("imageURL = %q", got)
	}

	empty := ""
	if got := c.imageURL(&empty); got != c.noImage {
		t.Errorf("imageURL for empty path = %q, want fallback", got)
	}
	if got := c.imageURL(nil); got != c.noImage {
		t.Errorf("imageURL for nil path = %q, want fallback", got)
	}
}

func TestEmptyToNil(t *testing.T) {
	if emptyToNil("") != nil {
		t.Error("expected nil for empty string")
	}
	if emptyToNil("x") != "x" {
		t.Error("expected value for non-empty string")
	}
}
