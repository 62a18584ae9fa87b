package webhooks

import (
	"context"
	"testing"

	"trackarr/internal/models"
)

func plexEpisodePayload(event string) []byte {
	return []byte(`{
		"event": "` + event + `",
		"Account": {"title": "Alice"},
		"Metadata": {
			"type": "episode",
			"grandparentTitle": "Frieren",
			"parentIndex": 1,
			"index": 5,
			"Guid": [
				{"id": "imdb://tt9999999"},
				{"id": "tvdb://654321"}
			],
			"Grandparent": {
				"Guid": [{"id": "tmdb://1668"}]
			}
		}
	}`)
}

func plexUser() *models.User {
	return &models.User{ID: 1, Username: "alice", PlexUsernames: "Alice, Bob"}
}

func TestPlexNormalize_ScrobbleEpisode(t *testing.T) {
	n := NewPlexNormalizer()

	ev, err := n.Normalize(context.Background(), plexEpisodePayload("media.scrobble"), plexUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}

	if ev.MediaType != models.MediaTypeTV {
		t.Errorf("media type = %q, want tv", ev.MediaType)
	}
	if !ev.Played {
		t.Error("scrobble should mark the event as played")
	}
	if ev.SeasonNumber != 1 || ev.EpisodeNumber != 5 {
		t.Errorf("season/episode = %d/%d, want 1/5", ev.SeasonNumber, ev.EpisodeNumber)
	}
	if ev.IDs.TMDB != "1668" {
		t.Errorf("tmdb id = %q, want series id 1668", ev.IDs.TMDB)
	}
	if ev.IDs.IMDB != "tt9999999" {
		t.Errorf("imdb id = %q, want tt9999999", ev.IDs.IMDB)
	}
	if ev.IDs.TVDB != "654321" {
		t.Errorf("tvdb id = %q, want 654321", ev.IDs.TVDB)
	}
	if ev.Title != "Frieren S01E05" {
		t.Errorf("title = %q, want Frieren S01E05", ev.Title)
	}
}

func TestPlexNormalize_PlayIsNotPlayed(t *testing.T) {
	n := NewPlexNormalizer()

	ev, err := n.Normalize(context.Background(), plexEpisodePayload("media.play"), plexUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.Played {
		t.Error("media.play should not mark the event as played")
	}
}

func TestPlexNormalize_IgnoresOtherEvents(t *testing.T) {
	n := NewPlexNormalizer()

	ev, err := n.Normalize(context.Background(), plexEpisodePayload("media.pause"), plexUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Errorf("expected event to be ignored, got %+v", ev)
	}
}

func TestPlexNormalize_UnmatchedAccount(t *testing.T) {
	n := NewPlexNormalizer()
	user := &models.User{ID: 1, Username: "alice", PlexUsernames: "someoneelse"}

	ev, err := n.Normalize(context.Background(), plexEpisodePayload("media.scrobble"), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Errorf("expected event for unmatched account to be ignored, got %+v", ev)
	}
}

func TestPlexNormalize_Movie(t *testing.T) {
	payload := []byte(`{
		"event": "media.scrobble",
		"Account": {"title": "alice"},
		"Metadata": {
			"type": "movie",
			"title": "Perfect Blue",
			"Guid": [{"id": "tmdb://10494"}, {"id": "imdb://tt0156887"}]
		}
	}`)
	n := NewPlexNormalizer()

	ev, err := n.Normalize(context.Background(), payload, plexUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.MediaType != models.MediaTypeMovie {
		t.Errorf("media type = %q, want movie", ev.MediaType)
	}
	if ev.IDs.TMDB != "10494" {
		t.Errorf("tmdb id = %q, want 10494", ev.IDs.TMDB)
	}
	if ev.Title != "Perfect Blue" {
		t.Errorf("title = %q, want Perfect Blue", ev.Title)
	}
}

func TestPlexNormalize_NoIDs(t *testing.T) {
	payload := []byte(`{
		"event": "media.scrobble",
		"Account": {"title": "alice"},
		"Metadata": {"type": "movie", "title": "Home Video", "Guid": []}
	}`)
	n := NewPlexNormalizer()

	ev, err := n.Normalize(context.Background(), payload, plexUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Errorf("expected event without ids to be ignored, got %+v", ev)
	}
}

func TestPlexNormalize_MalformedPayload(t *testing.T) {
	n := NewPlexNormalizer()
	if _, err := n.Normalize(context.Background(), []byte("{not json"), plexUser()); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestPlexNormalize_ManualYouTubeEpisode(t *testing.T) {
	// Manually tracked rips carry no season or episode numbers and no
	// provider guids; the file name holds the video id
	payload := []byte(`{
		"event": "media.scrobble",
		"Account": {"title": "alice"},
		"Metadata": {
			"type": "episode",
			"title": "Lecture 5",
			"Guid": [],
			"Media": [
				{"Part": [{"file": "/media/lectures/dQw4w9WgXcQ.mp4"}]}
			]
		}
	}`)
	n := NewPlexNormalizer()

	ev, err := n.Normalize(context.Background(), payload, plexUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.IDs.YouTube != "dQw4w9WgXcQ" {
		t.Errorf("youtube id = %q, want dQw4w9WgXcQ", ev.IDs.YouTube)
	}
	if ev.Title != "Lecture 5" {
		t.Errorf("title = %q, want Lecture 5", ev.Title)
	}
	if !ev.Played {
		t.Error("scrobble should mark the event as played")
	}
}

func TestPlexNormalize_NoNumbersNoVideoID(t *testing.T) {
	payload := []byte(`{
		"event": "media.scrobble",
		"Account": {"title": "alice"},
		"Metadata": {
			"type": "episode",
			"title": "Home Video",
			"Guid": [],
			"Media": [
				{"Part": [{"file": "/media/home/birthday.mp4"}]}
			]
		}
	}`)
	n := NewPlexNormalizer()

	ev, err := n.Normalize(context.Background(), payload, plexUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Errorf("expected episode without numbers or video id to be ignored, got %+v", ev)
	}
}

func TestPlexNormalize_EpisodeLevelTMDBFallback(t *testing.T) {
	// No Grandparent or Parent sections, only episode-level guids
	payload := []byte(`{
		"event": "media.scrobble",
		"Account": {"title": "alice"},
		"Metadata": {
			"type": "episode",
			"grandparentTitle": "Some Show",
			"parentIndex": 2,
			"index": 3,
			"Guid": [{"id": "tmdb://77777"}]
		}
	}`)
	n := NewPlexNormalizer()

	ev, err := n.Normalize(context.Background(), payload, plexUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.IDs.TMDB != "77777" {
		t.Errorf("tmdb id = %q, want fallback 77777", ev.IDs.TMDB)
	}
}
