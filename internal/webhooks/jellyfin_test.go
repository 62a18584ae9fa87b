package webhooks

import (
	"context"
	"testing"

	"trackarr/internal/models"
)

func TestJellyfinNormalize_EpisodeSeriesIDsPrecedence(t *testing.T) {
	// Item ids identify the episode; the Series section carries the
	// show-level ids the resolver needs
	payload := []byte(`{
		"Event": "Stop",
		"Item": {
			"Type": "Episode",
			"Name": "The Journey's End",
			"SeriesName": "Frieren",
			"ParentIndexNumber": 1,
			"IndexNumber": 1,
			"ProviderIds": {"Tmdb": "999999", "Imdb": "tt2222222", "Tvdb": "888888"},
			"UserData": {"Played": true}
		},
		"Series": {
			"ProviderIds": {"Tmdb": "1668", "Tvdb": "424536"}
		}
	}`)
	n := NewJellyfinNormalizer()

	ev, err := n.Normalize(context.Background(), payload, &models.User{ID: 1})
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
		t.Error("played UserData should mark the event as played")
	}
	if ev.IDs.TMDB != "1668" {
		t.Errorf("tmdb id = %q, want series id 1668", ev.IDs.TMDB)
	}
	if ev.IDs.TVDB != "424536" {
		t.Errorf("tvdb id = %q, want series id 424536", ev.IDs.TVDB)
	}
	if ev.IDs.IMDB != "tt2222222" {
		t.Errorf("imdb id = %q, want episode id tt2222222", ev.IDs.IMDB)
	}
	if ev.SeasonNumber != 1 || ev.EpisodeNumber != 1 {
		t.Errorf("season/episode = %d/%d, want 1/1", ev.SeasonNumber, ev.EpisodeNumber)
	}
	if ev.Title != "Frieren S01E01" {
		t.Errorf("title = %q, want Frieren S01E01", ev.Title)
	}
}

func TestJellyfinNormalize_EpisodeFallsBackToItemIDs(t *testing.T) {
	payload := []byte(`{
		"Event": "Play",
		"Item": {
			"Type": "Episode",
			"SeriesName": "Some Show",
			"ParentIndexNumber": 2,
			"IndexNumber": 7,
			"ProviderIds": {"Tvdb": "555"},
			"UserData": {"Played": false}
		}
	}`)
	n := NewJellyfinNormalizer()

	ev, err := n.Normalize(context.Background(), payload, &models.User{ID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.Played {
		t.Error("play event with unplayed UserData should not be played")
	}
	if ev.IDs.TVDB != "555" {
		t.Errorf("tvdb id = %q, want item id 555", ev.IDs.TVDB)
	}
}

func TestJellyfinNormalize_Movie(t *testing.T) {
	payload := []byte(`{
		"Event": "Stop",
		"Item": {
			"Type": "Movie",
			"Name": "Perfect Blue",
			"ProviderIds": {"Tmdb": "10494"},
			"UserData": {"Played": true}
		}
	}`)
	n := NewJellyfinNormalizer()

	ev, err := n.Normalize(context.Background(), payload, &models.User{ID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.MediaType != models.MediaTypeMovie {
		t.Errorf("media type = %q, want movie", ev.MediaType)
	}
	if ev.Title != "Perfect Blue" {
		t.Errorf("title = %q, want Perfect Blue", ev.Title)
	}
}

func TestJellyfinNormalize_IgnoresOtherEvents(t *testing.T) {
	payload := []byte(`{"Event": "ItemAdded", "Item": {"Type": "Movie", "ProviderIds": {"Tmdb": "1"}}}`)
	n := NewJellyfinNormalizer()

	ev, err := n.Normalize(context.Background(), payload, &models.User{ID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Errorf("expected event to be ignored, got %+v", ev)
	}
}

func TestJellyfinNormalize_MalformedPayload(t *testing.T) {
	n := NewJellyfinNormalizer()
	if _, err := n.Normalize(context.Background(), []byte("not json"), &models.User{ID: 1}); err == nil {
		t.Error("expected error for malformed payload")
	}
}
