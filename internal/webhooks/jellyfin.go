package webhooks

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "trackarr/internal/errors"
	"trackarr/internal/logger"
	"trackarr/internal/models"
)

// Jellyfin event names from the webhook plugin
const (
	jellyfinEventPlay = "Play"
	jellyfinEventStop = "Stop"
)

// JellyfinNormalizer handles Jellyfin webhook plugin payloads
type JellyfinNormalizer struct {
	log *logger.Logger
}

// NewJellyfinNormalizer creates a Jellyfin normalizer
func NewJellyfinNormalizer() *JellyfinNormalizer {
	return &JellyfinNormalizer{log: logger.AppLogger()}
}

// Source identifies this normalizer in routes and logs
func (n *JellyfinNormalizer) Source() string { return "jellyfin" }

type jellyfinProviderIDs struct {
	Tmdb string `json:"Tmdb"`
	Imdb string `json:"Imdb"`
	Tvdb string `json:"Tvdb"`
}

type jellyfinPayload struct {
	Event string `json:"Event"`
	Item  struct {
		Type              string              `json:"Type"`
		Name              string              `json:"Name"`
		SeriesName        string              `json:"SeriesName"`
		ParentIndexNumber *int                `json:"ParentIndexNumber"`
		IndexNumber       *int                `json:"IndexNumber"`
		ProviderIds       jellyfinProviderIDs `json:"ProviderIds"`
		UserData          struct {
			Played bool `json:"Played"`
		} `json:"UserData"`
	} `json:"Item"`
	Series struct {
		ProviderIds jellyfinProviderIDs `json:"ProviderIds"`
	} `json:"Series"`
}

// Normalize reduces a Jellyfin payload to a playback event. For
// episodes the item's provider ids identify the episode, so the
// series section's ids take precedence when present.
func (n *JellyfinNormalizer) Normalize(ctx context.Context, payload []byte, user *models.User) (*PlaybackEvent, error) {
	var p jellyfinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, apperrors.ValidationError("malformed jellyfin payload")
	}

	if p.Event != jellyfinEventPlay && p.Event != jellyfinEventStop {
		n.log.WithFields(map[string]interface{}{"event": p.Event}).
			Debug("ignoring jellyfin event type")
		return nil, nil
	}

	mediaType, ok := mediaTypeFor(p.Item.Type)
	if !ok {
		n.log.WithFields(map[string]interface{}{"type": p.Item.Type}).
			Debug("ignoring jellyfin media type")
		return nil, nil
	}

	ev := &PlaybackEvent{
		MediaType: mediaType,
		Played:    p.Item.UserData.Played,
		IDs: ExternalIDs{
			TMDB: p.Item.ProviderIds.Tmdb,
			IMDB: p.Item.ProviderIds.Imdb,
			TVDB: p.Item.ProviderIds.Tvdb,
		},
	}

	switch mediaType {
	case models.MediaTypeTV:
		if p.Item.ParentIndexNumber == nil || p.Item.IndexNumber == nil {
			n.log.Debug("ignoring jellyfin episode without season or episode number")
			return nil, nil
		}
		ev.SeasonNumber = *p.Item.ParentIndexNumber
		ev.EpisodeNumber = *p.Item.IndexNumber
		ev.Title = fmt.Sprintf("%s S%02dE%02d",
			p.Item.SeriesName, ev.SeasonNumber, ev.EpisodeNumber)
		if p.Series.ProviderIds.Tmdb != "" {
			ev.IDs.TMDB = p.Series.ProviderIds.Tmdb
		}
		if p.Series.ProviderIds.Tvdb != "" {
			ev.IDs.TVDB = p.Series.ProviderIds.Tvdb
		}
	case models.MediaTypeMovie:
		ev.Title = p.Item.Name
	}

	if ev.IDs.Empty() {
		n.log.Warn("ignoring jellyfin event because no id was found")
		return nil, nil
	}
	return ev, nil
}
