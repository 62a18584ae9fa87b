package metadata

import (
	"fmt"
	"math"
	"strings"

	"trackarr/internal/models"
)

// NoSynopsis is the placeholder shown when a provider has no description
const NoSynopsis = "No synopsis available."

// MediaRef identifies one piece of media across the whole system.
// Season and Episode are only set for TV-derived references.
type MediaRef struct {
	Source    models.Source    `json:"source"`
	MediaType models.MediaType `json:"media_type"`
	MediaID   string           `json:"media_id"`
	Season    *int             `json:"season,omitempty"`
	Episode   *int             `json:"episode,omitempty"`
}

// String renders the reference for logs
func (r MediaRef) String() string {
	s := fmt.Sprintf("%s/%s/%s", r.Source, r.MediaType, r.MediaID)
	if r.Season != nil {
		s += fmt.Sprintf("/s%d", *r.Season)
	}
	if r.Episode != nil {
		s += fmt.Sprintf("/e%d", *r.Episode)
	}
	return s
}

// Metadata is the canonical representation every adapter normalizes into
type Metadata struct {
	MediaID     string                 `json:"media_id"`
	Source      models.Source          `json:"source"`
	MediaType   models.MediaType       `json:"media_type"`
	Title       string                 `json:"title"`
	Image       string                 `json:"image"`
	Synopsis    string                 `json:"synopsis"`
	Score       *float64               `json:"score,omitempty"`
	MaxProgress *int                   `json:"max_progress,omitempty"`
	Genres      []string               `json:"genres,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Related     []Stub                 `json:"related,omitempty"`

	// Seasons is populated for tv metadata fetched with seasons appended
	Seasons []Season `json:"seasons,omitempty"`
}

// Season is one season of a show, nested under tv metadata
type Season struct {
	SeasonNumber int       `json:"season_number"`
	Title        string    `json:"title"`
	Image        string    `json:"image"`
	Synopsis     string    `json:"synopsis"`
	Episodes     []Episode `json:"episodes,omitempty"`
}

// Episode is one episode, nested under season metadata
type Episode struct {
	EpisodeNumber int    `json:"episode_number"`
	Title         string `json:"title"`
	Image         string `json:"image"`
	AirDate       string `json:"air_date,omitempty"`
}

// Stub is the compact form used in search results and related lists
type Stub struct {
	MediaID   string           `json:"media_id"`
	Source    models.Source    `json:"source"`
	MediaType models.MediaType `json:"media_type"`
	Title     string           `json:"title"`
	Image     string           `json:"image"`
}

// SearchPage is one page of search results in the paginated envelope
type SearchPage struct {
	Page         int    `json:"page"`
	TotalPages   int    `json:"total_pages"`
	TotalResults int    `json:"total_results"`
	Results      []Stub `json:"results"`
}

// NormalizeSynopsis returns the placeholder for blank descriptions
func NormalizeSynopsis(s string) string {
	if strings.TrimSpace(s) == "" {
		return NoSynopsis
	}
	return s
}

// NormalizeImage falls back to the configured sentinel so the image
// field is never empty
func NormalizeImage(url, fallback string) string {
	if url == "" {
		return fallback
	}
	return url
}

// RoundScore clamps a raw provider score onto the shared 0-10 scale
// with one decimal place
func RoundScore(v float64) *float64 {
	rounded := math.Round(v*10) / 10
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 10 {
		rounded = 10
	}
	return &rounded
}
