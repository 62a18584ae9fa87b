package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "trackarr/internal/errors"
	"trackarr/internal/logger"
	"trackarr/internal/models"
	"trackarr/internal/providers/youtube"
)

// Plex event names. Scrobble fires at the ~90% watched mark.
const (
	plexEventScrobble = "media.scrobble"
	plexEventPlay     = "media.play"
)

// PlexNormalizer handles Plex webhook payloads
type PlexNormalizer struct {
	log *logger.Logger
}

// NewPlexNormalizer creates a Plex normalizer
func NewPlexNormalizer() *PlexNormalizer {
	return &PlexNormalizer{log: logger.AppLogger()}
}

// Source identifies this normalizer in routes and logs
func (n *PlexNormalizer) Source() string { return "plex" }

type plexGuid struct {
	ID string `json:"id"`
}

type plexGuidHolder struct {
	Guid []plexGuid `json:"Guid"`
}

type plexPayload struct {
	Event   string `json:"event"`
	Account struct {
		Title string `json:"title"`
	} `json:"Account"`
	Metadata struct {
		Type             string          `json:"type"`
		Title            string          `json:"title"`
		GrandparentTitle string          `json:"grandparentTitle"`
		ParentIndex      *int            `json:"parentIndex"`
		Index            *int            `json:"index"`
		Guid             []plexGuid      `json:"Guid"`
		Parent           *plexGuidHolder `json:"Parent"`
		Grandparent      *plexGuidHolder `json:"Grandparent"`
		Media            []struct {
			Part []struct {
				File string `json:"file"`
			} `json:"Part"`
		} `json:"Media"`
	} `json:"Metadata"`
}

// Normalize reduces a Plex payload to a playback event. Only scrobble
// and play events from an account matching the user's configured Plex
// usernames are kept.
func (n *PlexNormalizer) Normalize(ctx context.Context, payload []byte, user *models.User) (*PlaybackEvent, error) {
	var p plexPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, apperrors.ValidationError("malformed plex payload")
	}

	if p.Event != plexEventScrobble && p.Event != plexEventPlay {
		n.log.WithFields(map[string]interface{}{"event": p.Event}).
			Debug("ignoring plex event type")
		return nil, nil
	}

	if !user.MatchesPlexAccount(p.Account.Title) {
		n.log.WithFields(map[string]interface{}{
			"account": strings.ToLower(strings.TrimSpace(p.Account.Title)),
		}).Debug("ignoring plex event for unmatched account")
		return nil, nil
	}

	mediaType, ok := mediaTypeFor(p.Metadata.Type)
	if !ok {
		n.log.WithFields(map[string]interface{}{"type": p.Metadata.Type}).
			Debug("ignoring plex media type")
		return nil, nil
	}

	ev := &PlaybackEvent{
		MediaType: mediaType,
		Played:    p.Event == plexEventScrobble,
	}

	switch mediaType {
	case models.MediaTypeTV:
		videoID := fileVideoID(&p)
		if p.Metadata.ParentIndex == nil || p.Metadata.Index == nil {
			// Manually tracked rips carry no season or episode number;
			// the video id in the file name is the only handle we have
			if videoID == "" {
				n.log.Debug("ignoring plex episode without season or episode number")
				return nil, nil
			}
			ev.Title = p.Metadata.Title
			ev.IDs = ExternalIDs{YouTube: videoID}
			break
		}
		ev.SeasonNumber = *p.Metadata.ParentIndex
		ev.EpisodeNumber = *p.Metadata.Index
		ev.Title = fmt.Sprintf("%s S%02dE%02d",
			p.Metadata.GrandparentTitle, ev.SeasonNumber, ev.EpisodeNumber)
		ev.IDs = ExternalIDs{
			TMDB:    n.seriesTMDBID(&p),
			IMDB:    guidID(p.Metadata.Guid, "imdb"),
			TVDB:    guidID(p.Metadata.Guid, "tvdb"),
			YouTube: videoID,
		}
	case models.MediaTypeMovie:
		ev.Title = p.Metadata.Title
		ev.IDs = ExternalIDs{
			TMDB: guidID(p.Metadata.Guid, "tmdb"),
			IMDB: guidID(p.Metadata.Guid, "imdb"),
			TVDB: guidID(p.Metadata.Guid, "tvdb"),
		}
	}

	if ev.IDs.Empty() {
		n.log.Warn("ignoring plex event because no id was found")
		return nil, nil
	}
	return ev, nil
}

// seriesTMDBID digs for the show-level TMDB id of an episode payload.
// Plex structures episodes as episode > season (parent) > series
// (grandparent); the id on the episode's own Guid list may belong to
// the episode rather than the show, so it is the last resort.
func (n *PlexNormalizer) seriesTMDBID(p *plexPayload) string {
	if p.Metadata.Grandparent != nil {
		if id := guidID(p.Metadata.Grandparent.Guid, "tmdb"); id != "" {
			return id
		}
	}
	if p.Metadata.Parent != nil {
		if id := guidID(p.Metadata.Parent.Guid, "tmdb"); id != "" {
			return id
		}
	}
	if id := guidID(p.Metadata.Guid, "tmdb"); id != "" {
		n.log.WithFields(map[string]interface{}{"tmdb_id": id}).
			Debug("using episode-level tmdb id for series")
		return id
	}
	return ""
}

// fileVideoID digs through the media file paths for one named after a
// YouTube video id
func fileVideoID(p *plexPayload) string {
	for _, m := range p.Metadata.Media {
		for _, part := range m.Part {
			if id := youtube.ExtractVideoIDFromPath(part.File); id != "" {
				return id
			}
		}
	}
	return ""
}

// guidID pulls the id for one agent out of a Plex Guid list. Entries
// look like {"id": "tmdb://12345"}.
func guidID(guids []plexGuid, agent string) string {
	prefix := agent + "://"
	for _, g := range guids {
		if strings.HasPrefix(g.ID, prefix) {
			return strings.TrimPrefix(g.ID, prefix)
		}
	}
	return ""
}
