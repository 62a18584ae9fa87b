package models

import "testing"

func TestMatchesPlexAccount(t *testing.T) {
	user := &User{PlexUsernames: "Alice, bob ,Charlie"}

	tests := []struct {
		account  string
		expected bool
	}{
		{"alice", true},
		{"ALICE", true},
		{" Bob ", true},
		{"charlie", true},
		{"dave", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := user.MatchesPlexAccount(tt.account); got != tt.expected {
			t.Errorf("MatchesPlexAccount(%q) = %v, want %v", tt.account, got, tt.expected)
		}
	}
}

func TestMatchesPlexAccount_NoUsernames(t *testing.T) {
	user := &User{}
	if user.MatchesPlexAccount("alice") {
		t.Error("user without plex usernames should match nothing")
	}
}

func TestSourceValid(t *testing.T) {
	for _, s := range []Source{SourceTMDB, SourceMAL, SourceIGDB, SourceHardcover,
		SourceOpenLibrary, SourceComicVine, SourceYouTube, SourceManual} {
		if !s.Valid() {
			t.Errorf("source %q should be valid", s)
		}
	}
	if Source("netflix").Valid() {
		t.Error("unknown source should be invalid")
	}
}

func TestMediaTypeValid(t *testing.T) {
	for _, m := range []MediaType{MediaTypeMovie, MediaTypeTV, MediaTypeSeason,
		MediaTypeEpisode, MediaTypeAnime, MediaTypeManga, MediaTypeGame,
		MediaTypeBook, MediaTypeComic, MediaTypeYouTube, MediaTypeYouTubeVideo} {
		if !m.Valid() {
			t.Errorf("media type %q should be valid", m)
		}
	}
	if MediaType("podcast").Valid() {
		t.Error("unknown media type should be invalid")
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusInProgress.Valid() || !StatusRepeating.Valid() {
		t.Error("known statuses should be valid")
	}
	if Status("Watching").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestSourceLabel(t *testing.T) {
	tests := []struct {
		source   Source
		expected string
	}{
		{SourceTMDB, "The Movie Database"},
		{SourceMAL, "MyAnimeList"},
		{SourceOpenLibrary, "Open Library"},
		{Source("other"), "other"},
	}

	for _, tt := range tests {
		if got := tt.source.Label(); got != tt.expected {
			t.Errorf("Label(%q) = %q, want %q", tt.source, got, tt.expected)
		}
	}
}

func TestMediaTypeLabel(t *testing.T) {
	tests := []struct {
		mediaType MediaType
		expected  string
	}{
		{MediaTypeTV, "TV Show"},
		{MediaTypeMovie, "Movie"},
		{MediaTypeAnime, "Anime"},
		{MediaTypeYouTube, "YouTube"},
		{MediaTypeYouTubeVideo, "YouTube Video"},
	}

	for _, tt := range tests {
		if got := tt.mediaType.Label(); got != tt.expected {
			t.Errorf("Label(%q) = %q, want %q", tt.mediaType, got, tt.expected)
		}
	}
}
