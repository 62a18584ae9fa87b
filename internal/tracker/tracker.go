// Package tracker applies playback events and import rows to a user's
// tracking records: items, media entries and per-episode watch records.
package tracker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	apperrors "trackarr/internal/errors"
	"trackarr/internal/logger"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
)

// duplicateWindow suppresses repeated watch records when a server
// delivers the same scrobble more than once in quick succession
const duplicateWindow = 5 * time.Second

// Service owns all writes to items, media entries and episode watches.
// Metadata lookups go through the dispatcher so webhook traffic shares
// the read-through cache with the rest of the app.
type Service struct {
	db   *gorm.DB
	meta metadata.Fetcher
	log  *logger.Logger

	// now is swappable in tests
	now func() time.Time
}

// New creates a tracker service
func New(db *gorm.DB, fetcher metadata.Fetcher) *Service {
	return &Service{
		db:   db,
		meta: fetcher,
		log:  logger.AppLogger(),
		now:  time.Now,
	}
}

// recordTime drops seconds so records written in the same sitting
// compare equal
func (s *Service) recordTime() time.Time {
	return s.now().Truncate(time.Minute)
}

// EnsureItem finds or creates the item row identified by the given key,
// filling title and image only on creation
func (s *Service) EnsureItem(ctx context.Context, mediaID string, source models.Source, mediaType models.MediaType, seasonNumber, episodeNumber *int, title, image string) (*models.Item, error) {
	var item models.Item
	q := s.db.WithContext(ctx).
		Where("media_id = ? AND source = ? AND media_type = ?", mediaID, source, mediaType)
	if seasonNumber != nil {
		q = q.Where("season_number = ?", *seasonNumber)
	} else {
		q = q.Where("season_number IS NULL")
	}
	if episodeNumber != nil {
		q = q.Where("episode_number = ?", *episodeNumber)
	} else {
		q = q.Where("episode_number IS NULL")
	}

	err := q.First(&item).Error
	if err == nil {
		return &item, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, apperrors.DatabaseError("loading item", err)
	}

	item = models.Item{
		MediaID:       mediaID,
		Source:        source,
		MediaType:     mediaType,
		SeasonNumber:  seasonNumber,
		EpisodeNumber: episodeNumber,
		Title:         title,
		Image:         image,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, apperrors.DatabaseError("creating item", err)
	}
	return &item, nil
}

func (s *Service) entryFor(ctx context.Context, userID, itemID uint) (*models.MediaEntry, error) {
	var entry models.MediaEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DatabaseError("loading media entry", err)
	}
	return &entry, nil
}

// HandleMovie records a movie playback event against the user's entry.
//
// A finished play completes the entry; finishing an already completed
// movie turns it into a rewatch and bumps the repeat count. A play
// start resets progress and moves any shelved entry back to in
// progress. The first completion leaves repeats at zero.
func (s *Service) HandleMovie(ctx context.Context, user *models.User, tmdbID string, played bool) error {
	meta, err := s.meta.Fetch(ctx, metadata.MediaRef{
		Source:    models.SourceTMDB,
		MediaType: models.MediaTypeMovie,
		MediaID:   tmdbID,
	})
	if err != nil {
		return err
	}

	item, err := s.EnsureItem(ctx, tmdbID, models.SourceTMDB, models.MediaTypeMovie, nil, nil, meta.Title, meta.Image)
	if err != nil {
		return err
	}

	entry, err := s.entryFor(ctx, user.ID, item.ID)
	if err != nil {
		return err
	}

	now := s.recordTime()

	if entry == nil {
		entry = &models.MediaEntry{UserID: user.ID, ItemID: item.ID}
		if played {
			at := s.now()
			entry.Status = models.StatusCompleted
			entry.Progress = 1
			entry.EndDate = &now
			entry.LastPlayedAt = &at
		} else {
			entry.Status = models.StatusInProgress
			entry.StartDate = &now
		}
		if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
			return apperrors.DatabaseError("creating movie entry", err)
		}
		s.appendHistory(ctx, entry, now)
		s.log.WithFields(map[string]interface{}{
			"title":  meta.Title,
			"status": entry.Status,
		}).Info("created movie entry")
		return nil
	}

	changed := s.applyPlayback(entry, played, 1, now)
	if !changed {
		s.log.WithFields(map[string]interface{}{"title": meta.Title}).
			Debug("movie event produced no change")
		return nil
	}

	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		return apperrors.DatabaseError("updating movie entry", err)
	}
	s.appendHistory(ctx, entry, now)
	s.log.WithFields(map[string]interface{}{
		"title":   meta.Title,
		"status":  entry.Status,
		"repeats": entry.Repeats,
	}).Info("updated movie entry")
	return nil
}

// appendHistory writes one audit trail row mirroring the entry's state
func (s *Service) appendHistory(ctx context.Context, entry *models.MediaEntry, at time.Time) {
	h := models.EntryHistory{
		EntryID:    entry.ID,
		Status:     entry.Status,
		Progress:   entry.Progress,
		Repeats:    entry.Repeats,
		RecordedAt: at,
	}
	if err := s.db.WithContext(ctx).Create(&h).Error; err != nil {
		s.log.Warn("failed to record entry history")
	}
}

// applyPlayback runs the shared status transitions for single-unit media
// (movies, anime treated as one entry). Reports whether anything changed.
// A finished play landing within duplicateWindow of the previous one is
// dropped, so a redelivered scrobble never turns into a phantom rewatch.
func (s *Service) applyPlayback(entry *models.MediaEntry, played bool, maxProgress int, now time.Time) bool {
	if played {
		at := s.now()
		switch entry.Status {
		case models.StatusCompleted, models.StatusRepeating:
			if s.isDuplicatePlay(entry, at) {
				return false
			}
			entry.Status = models.StatusRepeating
			entry.Repeats++
			entry.EndDate = &now
		default:
			entry.Status = models.StatusCompleted
			entry.Progress = maxProgress
			entry.EndDate = &now
		}
		entry.LastPlayedAt = &at
		return true
	}

	// Play start: completed entries stay untouched until the rewatch
	// actually finishes
	if entry.Status == models.StatusCompleted || entry.Status == models.StatusRepeating {
		return false
	}

	changed := false
	if entry.Progress != 0 {
		entry.Progress = 0
		changed = true
	}
	if entry.Status != models.StatusInProgress {
		entry.Status = models.StatusInProgress
		entry.StartDate = &now
		changed = true
	}
	return changed
}

// isDuplicatePlay reports whether a finished play landed within
// duplicateWindow of the previous applied one. LastPlayedAt keeps
// seconds precision because record times are truncated to the minute.
func (s *Service) isDuplicatePlay(entry *models.MediaEntry, at time.Time) bool {
	if entry.LastPlayedAt == nil {
		return false
	}
	diff := at.Sub(*entry.LastPlayedAt)
	if diff < 0 {
		diff = -diff
	}
	return diff < duplicateWindow
}

// HandleAnime records an anime playback event. The episode number is the
// in-series number after any cross-season offset adjustment, and it is
// persisted as the entry's progress.
func (s *Service) HandleAnime(ctx context.Context, user *models.User, malID string, episodeNumber int, played bool) error {
	meta, err := s.meta.Fetch(ctx, metadata.MediaRef{
		Source:    models.SourceMAL,
		MediaType: models.MediaTypeAnime,
		MediaID:   malID,
	})
	if err != nil {
		return err
	}

	item, err := s.EnsureItem(ctx, malID, models.SourceMAL, models.MediaTypeAnime, nil, nil, meta.Title, meta.Image)
	if err != nil {
		return err
	}

	entry, err := s.entryFor(ctx, user.ID, item.ID)
	if err != nil {
		return err
	}

	// A play start means the episode is not finished yet
	if !played && episodeNumber > 0 {
		episodeNumber--
	}

	now := s.recordTime()
	completed := meta.MaxProgress != nil && episodeNumber == *meta.MaxProgress

	if entry == nil {
		entry = &models.MediaEntry{
			UserID:   user.ID,
			ItemID:   item.ID,
			Progress: episodeNumber,
		}
		if completed {
			at := s.now()
			entry.Status = models.StatusCompleted
			entry.EndDate = &now
			entry.LastPlayedAt = &at
		} else {
			entry.Status = models.StatusInProgress
			entry.StartDate = &now
		}
		if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
			return apperrors.DatabaseError("creating anime entry", err)
		}
		s.appendHistory(ctx, entry, now)
		s.log.WithFields(map[string]interface{}{
			"title":    meta.Title,
			"status":   entry.Status,
			"progress": entry.Progress,
		}).Info("created anime entry")
		return nil
	}

	if entry.Status == models.StatusCompleted || entry.Status == models.StatusRepeating {
		if completed && played {
			at := s.now()
			if s.isDuplicatePlay(entry, at) {
				s.log.WithFields(map[string]interface{}{"title": meta.Title}).
					Debug("skipping duplicate anime record")
				return nil
			}
			entry.Status = models.StatusRepeating
			entry.Repeats++
			entry.EndDate = &now
			entry.LastPlayedAt = &at
			if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
				return apperrors.DatabaseError("updating anime entry", err)
			}
			s.appendHistory(ctx, entry, now)
			s.log.WithFields(map[string]interface{}{
				"title":   meta.Title,
				"repeats": entry.Repeats,
			}).Info("anime rewatch completed")
		}
		return nil
	}

	entry.Progress = episodeNumber
	if completed {
		at := s.now()
		entry.Status = models.StatusCompleted
		entry.EndDate = &now
		entry.LastPlayedAt = &at
	} else if entry.Status != models.StatusInProgress {
		entry.Status = models.StatusInProgress
		entry.StartDate = &now
	}
	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		return apperrors.DatabaseError("updating anime entry", err)
	}
	s.appendHistory(ctx, entry, now)
	s.log.WithFields(map[string]interface{}{
		"title":    meta.Title,
		"status":   entry.Status,
		"progress": entry.Progress,
	}).Info("updated anime entry")
	return nil
}

// HandleEpisode records a TV episode playback event, creating the show
// and season tracking records on the way down. Existing show and season
// entries are bumped back to in progress unless they are completed.
func (s *Service) HandleEpisode(ctx context.Context, user *models.User, tmdbID string, seasonNumber, episodeNumber int, played bool) error {
	show, err := s.meta.Fetch(ctx, metadata.MediaRef{
		Source:    models.SourceTMDB,
		MediaType: models.MediaTypeTV,
		MediaID:   tmdbID,
	})
	if err != nil {
		return err
	}

	seasonMeta, err := s.meta.Fetch(ctx, metadata.MediaRef{
		Source:    models.SourceTMDB,
		MediaType: models.MediaTypeSeason,
		MediaID:   tmdbID,
		Season:    &seasonNumber,
	})
	if err != nil {
		return err
	}
	if len(seasonMeta.Seasons) == 0 {
		return apperrors.NotFoundError("tv season",
			fmt.Sprintf("%s s%d", tmdbID, seasonNumber))
	}
	season := &seasonMeta.Seasons[0]

	tvEntry, err := s.ensureEntry(ctx, user, tmdbID, models.SourceTMDB, models.MediaTypeTV, nil, show.Title, show.Image, nil)
	if err != nil {
		return err
	}

	seasonEntry, err := s.ensureEntry(ctx, user, tmdbID, models.SourceTMDB, models.MediaTypeSeason, &seasonNumber, show.Title, season.Image, &tvEntry.ID)
	if err != nil {
		return err
	}

	if !played {
		s.log.WithFields(map[string]interface{}{
			"title":   show.Title,
			"season":  seasonNumber,
			"episode": episodeNumber,
		}).Debug("episode play started")
		return nil
	}

	episodeImage := season.Image
	for _, ep := range season.Episodes {
		if ep.EpisodeNumber == episodeNumber {
			if ep.Image != "" {
				episodeImage = ep.Image
			}
			break
		}
	}

	episodeItem, err := s.EnsureItem(ctx, tmdbID, models.SourceTMDB, models.MediaTypeEpisode, &seasonNumber, &episodeNumber, show.Title, episodeImage)
	if err != nil {
		return err
	}

	created, err := s.recordEpisodeWatch(ctx, seasonEntry, episodeItem)
	if err != nil {
		return err
	}
	if !created {
		s.log.WithFields(map[string]interface{}{
			"title":   show.Title,
			"season":  seasonNumber,
			"episode": episodeNumber,
		}).Debug("skipping duplicate episode record")
		return nil
	}

	if err := s.refreshSeasonProgress(ctx, seasonEntry); err != nil {
		return err
	}

	s.log.WithFields(map[string]interface{}{
		"title":   show.Title,
		"season":  seasonNumber,
		"episode": episodeNumber,
	}).Info("marked episode as played")
	return nil
}

// HandleManualYouTube records a playback event for a manually tracked
// episode whose media file was ripped from a YouTube video. The episode
// is matched by the video id extracted from the file name. Reports
// whether a matching item was found.
func (s *Service) HandleManualYouTube(ctx context.Context, user *models.User, videoID string, played bool) (bool, error) {
	var item models.Item
	err := s.db.WithContext(ctx).
		Where("youtube_video_id = ? AND media_type = ?", videoID, models.MediaTypeEpisode).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, apperrors.DatabaseError("loading youtube episode item", err)
	}
	if item.SeasonNumber == nil {
		return false, nil
	}

	if !played {
		s.log.WithFields(map[string]interface{}{
			"title":    item.Title,
			"video_id": videoID,
		}).Debug("youtube episode play started")
		return true, nil
	}

	seasonEntry, err := s.ensureEntry(ctx, user, item.MediaID, item.Source, models.MediaTypeSeason, item.SeasonNumber, item.Title, item.Image, nil)
	if err != nil {
		return true, err
	}

	created, err := s.recordEpisodeWatch(ctx, seasonEntry, &item)
	if err != nil {
		return true, err
	}
	if !created {
		s.log.WithFields(map[string]interface{}{
			"title":    item.Title,
			"video_id": videoID,
		}).Debug("skipping duplicate episode record")
		return true, nil
	}

	if err := s.refreshSeasonProgress(ctx, seasonEntry); err != nil {
		return true, err
	}

	s.log.WithFields(map[string]interface{}{
		"title":    item.Title,
		"video_id": videoID,
	}).Info("marked youtube episode as played")
	return true, nil
}

// ensureEntry finds or creates the tracking entry for a show or season,
// nudging non-completed entries back to in progress
func (s *Service) ensureEntry(ctx context.Context, user *models.User, mediaID string, source models.Source, mediaType models.MediaType, seasonNumber *int, title, image string, relatedTVID *uint) (*models.MediaEntry, error) {
	item, err := s.EnsureItem(ctx, mediaID, source, mediaType, seasonNumber, nil, title, image)
	if err != nil {
		return nil, err
	}

	entry, err := s.entryFor(ctx, user.ID, item.ID)
	if err != nil {
		return nil, err
	}

	now := s.recordTime()
	if entry == nil {
		entry = &models.MediaEntry{
			UserID:      user.ID,
			ItemID:      item.ID,
			Status:      models.StatusInProgress,
			StartDate:   &now,
			RelatedTVID: relatedTVID,
		}
		if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
			return nil, apperrors.DatabaseError("creating tracking entry", err)
		}
		return entry, nil
	}

	if entry.Status != models.StatusInProgress &&
		entry.Status != models.StatusCompleted &&
		entry.Status != models.StatusRepeating {
		entry.Status = models.StatusInProgress
		if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
			return nil, apperrors.DatabaseError("updating tracking entry", err)
		}
	}
	return entry, nil
}

// recordEpisodeWatch writes the watch record for one episode, reusing
// the existing row as a rewatch and dropping duplicate deliveries
// landing within duplicateWindow of each other
func (s *Service) recordEpisodeWatch(ctx context.Context, seasonEntry *models.MediaEntry, episodeItem *models.Item) (bool, error) {
	now := s.now()

	var watch models.EpisodeWatch
	err := s.db.WithContext(ctx).
		Where("season_entry_id = ? AND item_id = ?", seasonEntry.ID, episodeItem.ID).
		Order("end_date DESC").
		First(&watch).Error

	if err == gorm.ErrRecordNotFound {
		watch = models.EpisodeWatch{
			SeasonEntryID: seasonEntry.ID,
			ItemID:        episodeItem.ID,
			EndDate:       &now,
		}
		if err := s.db.WithContext(ctx).Create(&watch).Error; err != nil {
			return false, apperrors.DatabaseError("creating episode record", err)
		}
		return true, nil
	}
	if err != nil {
		return false, apperrors.DatabaseError("loading episode record", err)
	}

	if watch.EndDate != nil {
		diff := now.Sub(*watch.EndDate)
		if diff < 0 {
			diff = -diff
		}
		if diff < duplicateWindow {
			return false, nil
		}
	}

	watch.Repeats++
	watch.EndDate = &now
	if err := s.db.WithContext(ctx).Save(&watch).Error; err != nil {
		return false, apperrors.DatabaseError("updating episode record", err)
	}
	return true, nil
}

// refreshSeasonProgress recounts a season entry's progress from its
// watch records
func (s *Service) refreshSeasonProgress(ctx context.Context, seasonEntry *models.MediaEntry) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.EpisodeWatch{}).
		Where("season_entry_id = ?", seasonEntry.ID).
		Count(&count).Error
	if err != nil {
		return apperrors.DatabaseError("counting episode records", err)
	}

	if seasonEntry.Progress == int(count) {
		return nil
	}
	seasonEntry.Progress = int(count)
	if err := s.db.WithContext(ctx).Save(seasonEntry).Error; err != nil {
		return apperrors.DatabaseError("updating season progress", err)
	}
	return nil
}

// EntryExists reports whether the user already tracks the item
func (s *Service) EntryExists(ctx context.Context, user *models.User, item *models.Item) (bool, error) {
	entry, err := s.entryFor(ctx, user.ID, item.ID)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// RecordImported writes an entry produced by a list import, replacing
// any existing entry for the same item, and returns the saved entry
func (s *Service) RecordImported(ctx context.Context, user *models.User, item *models.Item, entry models.MediaEntry) (*models.MediaEntry, error) {
	existing, err := s.entryFor(ctx, user.ID, item.ID)
	if err != nil {
		return nil, err
	}

	entry.UserID = user.ID
	entry.ItemID = item.ID
	if existing != nil {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	}
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return nil, apperrors.DatabaseError("saving imported entry", err)
	}
	return &entry, nil
}

// AppendHistory writes an audit trail row for an imported entry. Used
// by importers to backfill past watch-throughs.
func (s *Service) AppendHistory(ctx context.Context, entryID uint, status models.Status, progress, repeats int, at time.Time) error {
	h := models.EntryHistory{
		EntryID:    entryID,
		Status:     status,
		Progress:   progress,
		Repeats:    repeats,
		RecordedAt: at,
	}
	if err := s.db.WithContext(ctx).Create(&h).Error; err != nil {
		return apperrors.DatabaseError("recording entry history", err)
	}
	return nil
}

// ParseMediaID normalizes numeric provider ids arriving as strings
func ParseMediaID(raw string) (string, error) {
	if _, err := strconv.Atoi(raw); err != nil {
		return "", apperrors.ValidationError(fmt.Sprintf("invalid media id %q", raw))
	}
	return raw, nil
}
