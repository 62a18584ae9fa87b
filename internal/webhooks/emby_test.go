package webhooks

import (
	"context"
	"testing"

	"trackarr/internal/models"
)

func TestEmbyNormalize_StopPlayedToCompletion(t *testing.T) {
	payload := []byte(`{
		"Event": "playback.stop",
		"Item": {
			"Type": "Episode",
			"SeriesName": "Frieren",
			"ParentIndexNumber": 1,
			"IndexNumber": 3,
			"ProviderIds": {"Tmdb": "1668", "Tvdb": "424536"}
		},
		"PlaybackInfo": {"PlayedToCompletion": true}
	}`)
	n := NewEmbyNormalizer()

	ev, err := n.Normalize(context.Background(), payload, &models.User{ID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if !ev.Played {
		t.Error("played to completion should mark the event as played")
	}
	if ev.SeasonNumber != 1 || ev.EpisodeNumber != 3 {
		t.Errorf("season/episode = %d/%d, want 1/3", ev.SeasonNumber, ev.EpisodeNumber)
	}
	if ev.IDs.TMDB != "1668" {
		t.Errorf("tmdb id = %q, want 1668", ev.IDs.TMDB)
	}
}

func TestEmbyNormalize_StopWithoutCompletionIsNotPlayed(t *testing.T) {
	payload := []byte(`{
		"Event": "playback.stop",
		"Item": {
			"Type": "Movie",
			"Name": "Paprika",
			"ProviderIds": {"Tmdb": "4977"}
		},
		"PlaybackInfo": {"PlayedToCompletion": false}
	}`)
	n := NewEmbyNormalizer()

	ev, err := n.Normalize(context.Background(), payload, &models.User{ID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.Played {
		t.Error("a stop short of completion should not be played")
	}
}

func TestEmbyNormalize_MovieTitleWithYear(t *testing.T) {
	payload := []byte(`{
		"Event": "playback.start",
		"Item": {
			"Type": "Movie",
			"Name": "Paprika",
			"ProductionYear": 2006,
			"ProviderIds": {"Tmdb": "4977"}
		},
		"PlaybackInfo": {"PlayedToCompletion": false}
	}`)
	n := NewEmbyNormalizer()

	ev, err := n.Normalize(context.Background(), payload, &models.User{ID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.Title != "Paprika (2006)" {
		t.Errorf("title = %q, want Paprika (2006)", ev.Title)
	}
}

func TestEmbyNormalize_IgnoresOtherEvents(t *testing.T) {
	payload := []byte(`{"Event": "library.new", "Item": {"Type": "Movie", "ProviderIds": {"Tmdb": "1"}}}`)
	n := NewEmbyNormalizer()

	ev, err := n.Normalize(context.Background(), payload, &models.User{ID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev != nil {
		t.Errorf("expected event to be ignored, got %+v", ev)
	}
}
