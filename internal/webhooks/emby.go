package webhooks

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "trackarr/internal/errors"
	"trackarr/internal/logger"
	"trackarr/internal/models"
)

// Emby event names
const (
	embyEventStart = "playback.start"
	embyEventStop  = "playback.stop"
)

// EmbyNormalizer handles Emby webhook payloads
type EmbyNormalizer struct {
	log *logger.Logger
}

// NewEmbyNormalizer creates an Emby normalizer
func NewEmbyNormalizer() *EmbyNormalizer {
	return &EmbyNormalizer{log: logger.AppLogger()}
}

// Source identifies this normalizer in routes and logs
func (n *EmbyNormalizer) Source() string { return "emby" }

type embyPayload struct {
	Event string `json:"Event"`
	Item  struct {
		Type              string `json:"Type"`
		Name              string `json:"Name"`
		SeriesName        string `json:"SeriesName"`
		ProductionYear    *int   `json:"ProductionYear"`
		ParentIndexNumber *int   `json:"ParentIndexNumber"`
		IndexNumber       *int   `json:"IndexNumber"`
		ProviderIds       struct {
			Tmdb string `json:"Tmdb"`
			Imdb string `json:"Imdb"`
			Tvdb string `json:"Tvdb"`
		} `json:"ProviderIds"`
	} `json:"Item"`
	PlaybackInfo struct {
		PlayedToCompletion bool `json:"PlayedToCompletion"`
	} `json:"PlaybackInfo"`
}

// Normalize reduces an Emby payload to a playback event. A stop event
// only counts as played when the server says playback ran to
// completion.
func (n *EmbyNormalizer) Normalize(ctx context.Context, payload []byte, user *models.User) (*PlaybackEvent, error) {
	var p embyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, apperrors.ValidationError("malformed emby payload")
	}

	if p.Event != embyEventStart && p.Event != embyEventStop {
		n.log.WithFields(map[string]interface{}{"event": p.Event}).
			Debug("ignoring emby event type")
		return nil, nil
	}

	mediaType, ok := mediaTypeFor(p.Item.Type)
	if !ok {
		n.log.WithFields(map[string]interface{}{"type": p.Item.Type}).
			Debug("ignoring emby media type")
		return nil, nil
	}

	ev := &PlaybackEvent{
		MediaType: mediaType,
		Played:    p.PlaybackInfo.PlayedToCompletion,
		IDs: ExternalIDs{
			TMDB: p.Item.ProviderIds.Tmdb,
			IMDB: p.Item.ProviderIds.Imdb,
			TVDB: p.Item.ProviderIds.Tvdb,
		},
	}

	switch mediaType {
	case models.MediaTypeTV:
		if p.Item.ParentIndexNumber == nil || p.Item.IndexNumber == nil {
			n.log.Debug("ignoring emby episode without season or episode number")
			return nil, nil
		}
		ev.SeasonNumber = *p.Item.ParentIndexNumber
		ev.EpisodeNumber = *p.Item.IndexNumber
		ev.Title = fmt.Sprintf("%s S%02dE%02d",
			p.Item.SeriesName, ev.SeasonNumber, ev.EpisodeNumber)
	case models.MediaTypeMovie:
		ev.Title = p.Item.Name
		if p.Item.ProductionYear != nil {
			ev.Title = fmt.Sprintf("%s (%d)", p.Item.Name, *p.Item.ProductionYear)
		}
	}

	if ev.IDs.Empty() {
		n.log.Warn("ignoring emby event because no id was found")
		return nil, nil
	}
	return ev, nil
}
