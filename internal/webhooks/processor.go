package webhooks

import (
	"context"
	"strconv"

	"trackarr/internal/logger"
	"trackarr/internal/mapping"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
	"trackarr/internal/providers/tmdb"
	"trackarr/internal/tracker"
)

// Processor resolves a playback event's external ids to a tracked
// provider id and applies it through the tracker. TMDB is the anchor
// provider: IMDB and TVDB ids are translated through its find endpoint,
// and anime detection runs through the community anime-IDs table.
// Show metadata reads go through the dispatcher's cache; the find
// endpoint stays on the client because id resolution is not metadata.
type Processor struct {
	tmdb    *tmdb.Client
	meta    metadata.Fetcher
	mapping *mapping.Service
	tracker *tracker.Service
	log     *logger.Logger
}

// NewProcessor creates a webhook processor
func NewProcessor(tmdbClient *tmdb.Client, fetcher metadata.Fetcher, mappingService *mapping.Service, trackerService *tracker.Service) *Processor {
	return &Processor{
		tmdb:    tmdbClient,
		meta:    fetcher,
		mapping: mappingService,
		tracker: trackerService,
		log:     logger.AppLogger(),
	}
}

// Process applies one normalized playback event for a user
func (p *Processor) Process(ctx context.Context, user *models.User, ev *PlaybackEvent) error {
	if ev == nil {
		return nil
	}

	p.log.WithFields(map[string]interface{}{
		"media_type": ev.MediaType,
		"title":      ev.Title,
		"played":     ev.Played,
	}).Info("processing playback event")

	switch ev.MediaType {
	case models.MediaTypeTV:
		return p.processTV(ctx, user, ev)
	case models.MediaTypeMovie:
		return p.processMovie(ctx, user, ev)
	default:
		return nil
	}
}

func (p *Processor) processTV(ctx context.Context, user *models.User, ev *PlaybackEvent) error {
	mediaID, seasonNumber, episodeNumber, ok := p.findTVMediaID(ctx, ev)
	if !ok {
		if ev.IDs.YouTube != "" {
			matched, err := p.tracker.HandleManualYouTube(ctx, user, ev.IDs.YouTube, ev.Played)
			if err != nil {
				return err
			}
			if matched {
				return nil
			}
		}
		p.log.WithFields(map[string]interface{}{"title": ev.Title}).
			Warn("no matching tmdb id found for tv show")
		return nil
	}

	if user.AnimeEnabled {
		if malID, adjusted, found := p.resolveAnimeEpisode(ctx, mediaID, seasonNumber, episodeNumber); found {
			p.log.WithFields(map[string]interface{}{
				"mal_id":  malID,
				"episode": adjusted,
			}).Info("detected anime episode")
			return p.tracker.HandleAnime(ctx, user, malID, adjusted, ev.Played)
		}
	}

	p.log.WithFields(map[string]interface{}{
		"tmdb_id": mediaID,
		"season":  seasonNumber,
		"episode": episodeNumber,
	}).Info("detected tv episode")
	return p.tracker.HandleEpisode(ctx, user, mediaID, seasonNumber, episodeNumber, ev.Played)
}

func (p *Processor) processMovie(ctx context.Context, user *models.User, ev *PlaybackEvent) error {
	if ev.IDs.TMDB != "" {
		if user.AnimeEnabled {
			if table, err := p.mapping.Load(ctx); err == nil {
				if malID, found := table.ResolveTMDBMovie(ev.IDs.TMDB); found {
					p.log.WithFields(map[string]interface{}{"mal_id": malID}).
						Info("detected anime movie")
					return p.tracker.HandleAnime(ctx, user, malID, 1, ev.Played)
				}
			} else {
				p.log.WithFields(map[string]interface{}{"error": err.Error()}).
					Warn("anime mapping unavailable, treating as regular movie")
			}
		}
		return p.tracker.HandleMovie(ctx, user, ev.IDs.TMDB, ev.Played)
	}

	if ev.IDs.IMDB != "" {
		found, err := p.tmdb.Find(ctx, ev.IDs.IMDB, tmdb.ExternalSourceIMDB)
		if err != nil {
			return err
		}
		if len(found.MovieResults) > 0 {
			return p.tracker.HandleMovie(ctx, user, found.MovieResults[0].MediaID, ev.Played)
		}
		p.log.WithFields(map[string]interface{}{"imdb_id": ev.IDs.IMDB}).
			Warn("no matching tmdb id found for imdb id")
		return nil
	}

	p.log.Warn("no tmdb or imdb id found for movie, skipping")
	return nil
}

// findTVMediaID resolves the event's ids to a series TMDB id plus
// season and episode numbers.
//
// Episode-level IMDB and TVDB ids are tried first because they pin the
// exact episode regardless of how the server numbered it. A reported
// TMDB id is verified to exist as a show before use; an id that fails
// verification is assumed to be a server-invented one and looked up in
// the override table.
func (p *Processor) findTVMediaID(ctx context.Context, ev *PlaybackEvent) (string, int, int, bool) {
	if found, ok := p.findByEpisodeIDs(ctx, ev); ok {
		return strconv.Itoa(found.ShowID), found.SeasonNumber, found.EpisodeNumber, true
	}

	if ev.IDs.TMDB == "" {
		return "", 0, 0, false
	}

	if _, err := p.meta.Fetch(ctx, metadata.MediaRef{
		Source:    models.SourceTMDB,
		MediaType: models.MediaTypeTV,
		MediaID:   ev.IDs.TMDB,
	}); err == nil {
		return ev.IDs.TMDB, ev.SeasonNumber, ev.EpisodeNumber, true
	}

	p.log.WithFields(map[string]interface{}{"tmdb_id": ev.IDs.TMDB}).
		Warn("reported tmdb id is not a show, checking overrides")

	override, err := p.mapping.LookupOverride(ctx, models.SourceTMDB, ev.IDs.TMDB)
	if err != nil {
		p.log.WithFields(map[string]interface{}{"error": err.Error()}).
			Warn("override lookup failed")
		return "", 0, 0, false
	}
	if override != nil && override.ToSource == models.SourceTMDB {
		p.log.WithFields(map[string]interface{}{
			"from": ev.IDs.TMDB,
			"to":   override.ToID,
		}).Info("resolved tmdb id through override")
		return override.ToID, ev.SeasonNumber, ev.EpisodeNumber, true
	}
	return "", 0, 0, false
}

// findByEpisodeIDs asks TMDB's find endpoint for an episode-level match
// on the IMDB then TVDB id
func (p *Processor) findByEpisodeIDs(ctx context.Context, ev *PlaybackEvent) (*tmdb.FoundEpisode, bool) {
	lookups := []struct {
		id     string
		source string
	}{
		{ev.IDs.IMDB, tmdb.ExternalSourceIMDB},
		{ev.IDs.TVDB, tmdb.ExternalSourceTVDB},
	}

	for _, l := range lookups {
		if l.id == "" {
			continue
		}
		found, err := p.tmdb.Find(ctx, l.id, l.source)
		if err != nil {
			p.log.WithFields(map[string]interface{}{
				"source": l.source,
				"id":     l.id,
			}).Debug("tmdb find failed, falling back")
			continue
		}
		if len(found.TVEpisodeResults) > 0 {
			return &found.TVEpisodeResults[0], true
		}
	}
	return nil, false
}

// resolveAnimeEpisode checks whether the episode belongs to an anime
// via the show's TVDB id and the community anime-IDs table
func (p *Processor) resolveAnimeEpisode(ctx context.Context, mediaID string, seasonNumber, episodeNumber int) (string, int, bool) {
	show, err := p.meta.Fetch(ctx, metadata.MediaRef{
		Source:    models.SourceTMDB,
		MediaType: models.MediaTypeTV,
		MediaID:   mediaID,
	})
	if err != nil {
		p.log.WithFields(map[string]interface{}{"tmdb_id": mediaID}).
			Warn("could not fetch show for anime detection")
		return "", 0, false
	}

	tvdbID, ok := detailInt(show.Details["tvdb_id"])
	if !ok {
		p.log.WithFields(map[string]interface{}{"tmdb_id": mediaID}).
			Debug("show has no tvdb id, skipping anime detection")
		return "", 0, false
	}

	table, err := p.mapping.Load(ctx)
	if err != nil {
		p.log.WithFields(map[string]interface{}{"error": err.Error()}).
			Warn("anime mapping unavailable")
		return "", 0, false
	}
	return table.ResolveTVDB(tvdbID, seasonNumber, episodeNumber)
}

// detailInt reads a numeric detail value, which arrives as an int from
// a fresh fetch and as a json float64 after a cache round trip
func detailInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}
