// Package webhooks turns media-server playback notifications into
// tracking updates. Each server gets a normalizer that reduces its
// payload to a PlaybackEvent, and a shared processor resolves the
// event's external ids and hands it to the tracker.
package webhooks

import (
	"context"

	"trackarr/internal/models"
)

// ExternalIDs are the provider identifiers a payload carries for the
// played media. For episodes the TMDB id should identify the series,
// but some servers report an episode-level id instead; resolution
// handles both.
type ExternalIDs struct {
	TMDB string
	IMDB string
	TVDB string

	// YouTube is the video id extracted from the media file path of a
	// manually tracked rip
	YouTube string
}

// Empty reports whether no identifier was found at all
func (ids ExternalIDs) Empty() bool {
	return ids.TMDB == "" && ids.IMDB == "" && ids.TVDB == "" && ids.YouTube == ""
}

// PlaybackEvent is a playback notification reduced to the fields
// tracking needs
type PlaybackEvent struct {
	MediaType models.MediaType
	Title     string
	IDs       ExternalIDs

	// Played is true when the media finished, false for a play start
	Played bool

	// Set for episodes only
	SeasonNumber  int
	EpisodeNumber int
}

// Normalizer reduces one media server's payload to a PlaybackEvent.
// A nil event with a nil error means the payload is valid but not
// trackable: an unsupported event type, an unmatched account or a
// payload carrying no usable identifier.
type Normalizer interface {
	Source() string
	Normalize(ctx context.Context, payload []byte, user *models.User) (*PlaybackEvent, error)
}

// mediaTypeFor maps the item types media servers report to tracked
// media types. Everything else (trailers, music, photos) is ignored.
func mediaTypeFor(itemType string) (models.MediaType, bool) {
	switch itemType {
	case "Episode", "episode":
		return models.MediaTypeTV, true
	case "Movie", "movie":
		return models.MediaTypeMovie, true
	default:
		return "", false
	}
}
