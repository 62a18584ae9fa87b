package manual

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	apperrors "trackarr/internal/errors"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
)

// Client serves metadata for user-entered items straight from the local
// item store. Manual shows build their season and episode lists from the
// season/episode items sharing the show's media id.
type Client struct {
	db      *gorm.DB
	noImage string
}

// New creates a manual adapter backed by db
func New(db *gorm.DB, noImageURL string) *Client {
	return &Client{db: db, noImage: noImageURL}
}

// Fetch returns canonical metadata for a manual reference
func (c *Client) Fetch(ctx context.Context, ref metadata.MediaRef) (*metadata.Metadata, error) {
	switch ref.MediaType {
	case models.MediaTypeSeason:
		if ref.Season == nil {
			return nil, apperrors.ValidationError("season reference requires a season number")
		}
		return c.season(ctx, ref.MediaID, *ref.Season)
	case models.MediaTypeEpisode:
		if ref.Season == nil || ref.Episode == nil {
			return nil, apperrors.ValidationError("episode reference requires season and episode numbers")
		}
		return c.episode(ctx, ref.MediaID, *ref.Season, *ref.Episode)
	default:
		return c.item(ctx, ref.MediaID, ref.MediaType)
	}
}

// Search matches manual items by title substring
func (c *Client) Search(ctx context.Context, mediaType models.MediaType, query string, page int) (*metadata.SearchPage, error) {
	var items []models.Item
	err := c.db.WithContext(ctx).
		Where("source = ? AND media_type = ? AND title LIKE ?",
			models.SourceManual, mediaType, "%"+query+"%").
		Order("title").
		Limit(25).
		Find(&items).Error
	if err != nil {
		return nil, apperrors.DatabaseError("searching manual items", err)
	}

	results := make([]metadata.Stub, 0, len(items))
	for _, item := range items {
		results = append(results, metadata.Stub{
			MediaID:   item.MediaID,
			Source:    models.SourceManual,
			MediaType: item.MediaType,
			Title:     item.Title,
			Image:     metadata.NormalizeImage(item.Image, c.noImage),
		})
	}

	return &metadata.SearchPage{
		Page:         1,
		TotalPages:   1,
		TotalResults: len(results),
		Results:      results,
	}, nil
}

func (c *Client) item(ctx context.Context, mediaID string, mediaType models.MediaType) (*metadata.Metadata, error) {
	var item models.Item
	err := c.db.WithContext(ctx).
		Where("media_id = ? AND media_type = ? AND source = ?",
			mediaID, mediaType, models.SourceManual).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.NotFoundError("manual item", fmt.Sprintf("%s/%s", mediaType, mediaID))
	}
	if err != nil {
		return nil, apperrors.DatabaseError("loading manual item", err)
	}

	meta := &metadata.Metadata{
		MediaID:   item.MediaID,
		Source:    models.SourceManual,
		MediaType: item.MediaType,
		Title:     item.Title,
		Image:     metadata.NormalizeImage(item.Image, c.noImage),
		Synopsis:  metadata.NoSynopsis,
		Details:   map[string]interface{}{},
	}

	seasons, err := c.loadSeasons(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	if len(seasons) > 0 {
		meta.Seasons = seasons
		meta.Details["seasons"] = len(seasons)

		numEpisodes := 0
		for _, s := range seasons {
			numEpisodes += len(s.Episodes)
		}
		if numEpisodes > 0 {
			meta.MaxProgress = &numEpisodes
			meta.Details["episodes"] = numEpisodes
		}
	} else if mediaType == models.MediaTypeMovie {
		one := 1
		meta.MaxProgress = &one
	}

	return meta, nil
}

func (c *Client) season(ctx context.Context, mediaID string, seasonNumber int) (*metadata.Metadata, error) {
	show, err := c.item(ctx, mediaID, models.MediaTypeTV)
	if err != nil {
		return nil, err
	}

	for _, s := range show.Seasons {
		if s.SeasonNumber != seasonNumber {
			continue
		}

		maxProgress := len(s.Episodes)
		return &metadata.Metadata{
			MediaID:     mediaID,
			Source:      models.SourceManual,
			MediaType:   models.MediaTypeSeason,
			Title:       show.Title,
			Image:       s.Image,
			Synopsis:    metadata.NoSynopsis,
			MaxProgress: &maxProgress,
			Details: map[string]interface{}{
				"season_title": s.Title,
				"episodes":     len(s.Episodes),
			},
			Seasons: []metadata.Season{s},
		}, nil
	}

	return nil, apperrors.NotFoundError("manual season",
		fmt.Sprintf("%d of %s", seasonNumber, mediaID))
}

func (c *Client) episode(ctx context.Context, mediaID string, seasonNumber, episodeNumber int) (*metadata.Metadata, error) {
	seasonMeta, err := c.season(ctx, mediaID, seasonNumber)
	if err != nil {
		return nil, err
	}

	for _, ep := range seasonMeta.Seasons[0].Episodes {
		if ep.EpisodeNumber != episodeNumber {
			continue
		}

		one := 1
		return &metadata.Metadata{
			MediaID:     mediaID,
			Source:      models.SourceManual,
			MediaType:   models.MediaTypeEpisode,
			Title:       seasonMeta.Title,
			Image:       ep.Image,
			Synopsis:    metadata.NoSynopsis,
			MaxProgress: &one,
			Details: map[string]interface{}{
				"episode_title": ep.Title,
			},
		}, nil
	}

	return nil, apperrors.NotFoundError("manual episode",
		fmt.Sprintf("s%de%d of %s", seasonNumber, episodeNumber, mediaID))
}

// loadSeasons builds the season list from stored season and episode items
func (c *Client) loadSeasons(ctx context.Context, mediaID string) ([]metadata.Season, error) {
	var seasonItems []models.Item
	err := c.db.WithContext(ctx).
		Where("media_id = ? AND source = ? AND media_type = ?",
			mediaID, models.SourceManual, models.MediaTypeSeason).
		Order("season_number").
		Find(&seasonItems).Error
	if err != nil {
		return nil, apperrors.DatabaseError("loading manual seasons", err)
	}

	seasons := make([]metadata.Season, 0, len(seasonItems))
	for _, si := range seasonItems {
		if si.SeasonNumber == nil {
			continue
		}

		var episodeItems []models.Item
		err := c.db.WithContext(ctx).
			Where("media_id = ? AND source = ? AND media_type = ? AND season_number = ?",
				mediaID, models.SourceManual, models.MediaTypeEpisode, *si.SeasonNumber).
			Order("episode_number").
			Find(&episodeItems).Error
		if err != nil {
			return nil, apperrors.DatabaseError("loading manual episodes", err)
		}

		episodes := make([]metadata.Episode, 0, len(episodeItems))
		for _, ei := range episodeItems {
			if ei.EpisodeNumber == nil {
				continue
			}
			episodes = append(episodes, metadata.Episode{
				EpisodeNumber: *ei.EpisodeNumber,
				Title:         ei.Title,
				Image:         metadata.NormalizeImage(ei.Image, c.noImage),
			})
		}

		seasons = append(seasons, metadata.Season{
			SeasonNumber: *si.SeasonNumber,
			Title:        si.Title,
			Image:        metadata.NormalizeImage(si.Image, c.noImage),
			Synopsis:     metadata.NoSynopsis,
			Episodes:     episodes,
		})
	}

	return seasons, nil
}
