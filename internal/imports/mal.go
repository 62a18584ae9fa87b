package imports

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"trackarr/internal/config"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/httpclient"
	"trackarr/internal/logger"
	"trackarr/internal/models"
	"trackarr/internal/tracker"
)

const malListBaseURL = "https://api.myanimelist.net/v2/users"

// malStatusMapping converts MAL list statuses to tracked statuses
var malStatusMapping = map[string]models.Status{
	"completed":     models.StatusCompleted,
	"watching":      models.StatusInProgress,
	"reading":       models.StatusInProgress,
	"plan_to_watch": models.StatusPlanning,
	"plan_to_read":  models.StatusPlanning,
	"on_hold":       models.StatusPaused,
	"dropped":       models.StatusDropped,
}

// MALImporter imports a public MyAnimeList user's anime and manga lists
type MALImporter struct {
	http    *httpclient.Client
	tracker *tracker.Service
	cfg     config.MALConfig
	noImage string
	log     *logger.Logger
}

// NewMALImporter creates a MAL list importer
func NewMALImporter(http *httpclient.Client, trackerService *tracker.Service, cfg config.MALConfig, noImageURL string) *MALImporter {
	return &MALImporter{
		http:    http,
		tracker: trackerService,
		cfg:     cfg,
		noImage: noImageURL,
		log:     logger.AppLogger(),
	}
}

type malListEntry struct {
	Node struct {
		ID          int    `json:"id"`
		Title       string `json:"title"`
		MainPicture struct {
			Large string `json:"large"`
		} `json:"main_picture"`
	} `json:"node"`
	ListStatus struct {
		Status             string  `json:"status"`
		Score              float64 `json:"score"`
		NumEpisodesWatched int     `json:"num_episodes_watched"`
		NumChaptersRead    int     `json:"num_chapters_read"`
		IsRewatching       bool    `json:"is_rewatching"`
		IsRereading        bool    `json:"is_rereading"`
		NumTimesRewatched  int     `json:"num_times_rewatched"`
		NumTimesReread     int     `json:"num_times_reread"`
		StartDate          string  `json:"start_date"`
		FinishDate         string  `json:"finish_date"`
		Comments           string  `json:"comments"`
	} `json:"list_status"`
}

type malListPage struct {
	Data   []malListEntry `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// Import fetches the MAL user's anime and manga lists and writes
// tracking entries for the local user
func (im *MALImporter) Import(ctx context.Context, malUsername string, user *models.User, mode Mode) (*Result, error) {
	if !mode.Valid() {
		return nil, apperrors.ImportError(fmt.Sprintf("unknown import mode %q", mode))
	}

	jobID := uuid.NewString()
	log := im.log.WithFields(map[string]interface{}{
		"job_id":       jobID,
		"mal_username": malUsername,
		"user":         user.Username,
		"mode":         mode,
	})
	log.Info("starting myanimelist import")

	result := newResult()
	for _, mediaType := range []models.MediaType{models.MediaTypeAnime, models.MediaTypeManga} {
		entries, err := im.fetchList(ctx, malUsername, mediaType)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if err := im.importEntry(ctx, entry, mediaType, user, mode, result); err != nil {
				return nil, apperrors.ImportUnexpectedError(entry.Node.Title, err)
			}
		}
		log.WithFields(map[string]interface{}{
			"media_type": mediaType,
			"imported":   result.Counts[mediaType],
		}).Info("imported myanimelist list")
	}

	result.Warnings = result.dedupedWarnings()
	return result, nil
}

// fetchList drains the user's paged list for one media type
func (im *MALImporter) fetchList(ctx context.Context, malUsername string, mediaType models.MediaType) ([]malListEntry, error) {
	params := url.Values{}
	params.Set("fields", "list_status{comments,num_times_rewatched,num_times_reread}")
	params.Set("nsfw", "true")
	params.Set("limit", "1000")

	headers := map[string]string{"X-MAL-CLIENT-ID": im.cfg.ClientID}
	target := fmt.Sprintf("%s/%s/%slist", malListBaseURL, url.PathEscape(malUsername), mediaType)

	var entries []malListEntry
	for target != "" {
		var page malListPage
		if err := im.http.GetJSON(ctx, "mal", target, params, headers, &page); err != nil {
			return nil, err
		}
		entries = append(entries, page.Data...)

		// Paging links already carry the query string
		target = page.Paging.Next
		params = nil
	}
	return entries, nil
}

func (im *MALImporter) importEntry(ctx context.Context, entry malListEntry, mediaType models.MediaType, user *models.User, mode Mode, result *Result) error {
	ls := entry.ListStatus

	status, ok := malStatusMapping[ls.Status]
	if !ok {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: Unknown list status %q - skipped", entry.Node.Title, ls.Status))
		return nil
	}

	progress := ls.NumEpisodesWatched
	repeats := ls.NumTimesRewatched
	rewatching := ls.IsRewatching
	if mediaType == models.MediaTypeManga {
		progress = ls.NumChaptersRead
		repeats = ls.NumTimesReread
		rewatching = ls.IsRereading
	}
	if rewatching {
		status = models.StatusRepeating
	}

	image := entry.Node.MainPicture.Large
	if image == "" {
		image = im.noImage
	}

	item, err := im.tracker.EnsureItem(ctx, fmt.Sprintf("%d", entry.Node.ID),
		models.SourceMAL, mediaType, nil, nil, entry.Node.Title, image)
	if err != nil {
		return err
	}

	if mode == ModeNew {
		exists, err := im.tracker.EntryExists(ctx, user, item)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}

	record := models.MediaEntry{
		Status:    status,
		Progress:  progress,
		Repeats:   repeats,
		Notes:     ls.Comments,
		StartDate: parseMALDate(ls.StartDate),
		EndDate:   parseMALDate(ls.FinishDate),
	}
	if ls.Score > 0 {
		score := ls.Score
		record.Score = &score
	}

	saved, err := im.tracker.RecordImported(ctx, user, item, record)
	if err != nil {
		return err
	}

	if err := im.backfillHistory(ctx, saved); err != nil {
		return err
	}

	result.Counts[mediaType]++
	return nil
}

// backfillHistory reconstructs an audit trail for an imported entry:
// one Completed row per finished watch-through before the row carrying
// the current state, so the trail matches the repeat count.
func (im *MALImporter) backfillHistory(ctx context.Context, entry *models.MediaEntry) error {
	at := time.Now()
	if entry.EndDate != nil {
		at = *entry.EndDate
	}

	for i := 0; i < entry.Repeats; i++ {
		if err := im.tracker.AppendHistory(ctx, entry.ID, models.StatusCompleted, entry.Progress, i, at); err != nil {
			return err
		}
	}
	return im.tracker.AppendHistory(ctx, entry.ID, entry.Status, entry.Progress, entry.Repeats, at)
}

// parseMALDate parses MAL's YYYY-MM-DD list dates
func parseMALDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}
