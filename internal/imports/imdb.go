package imports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "trackarr/internal/errors"
	"trackarr/internal/logger"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
	"trackarr/internal/providers/tmdb"
	"trackarr/internal/tracker"
)

// imdbTypeMapping maps IMDB title types to tracked media types
var imdbTypeMapping = map[string]models.MediaType{
	"Movie":          models.MediaTypeMovie,
	"TV Series":      models.MediaTypeTV,
	"Short":          models.MediaTypeMovie,
	"TV Mini Series": models.MediaTypeTV,
	"TV Movie":       models.MediaTypeMovie,
	"TV Special":     models.MediaTypeMovie,
}

// imdbUnsupportedTypes are title types IMDB exports that have no
// tracked equivalent
var imdbUnsupportedTypes = map[string]struct{}{
	"TV Episode":      {},
	"TV Short":        {},
	"Video Game":      {},
	"Video":           {},
	"Music Video":     {},
	"Podcast Series":  {},
	"Podcast Episode": {},
}

// IMDBImporter imports an IMDB ratings/watchlist CSV export, resolving
// each row to a TMDB id through the find endpoint
type IMDBImporter struct {
	tmdb    *tmdb.Client
	tracker *tracker.Service
	log     *logger.Logger
}

// NewIMDBImporter creates an IMDB CSV importer
func NewIMDBImporter(tmdbClient *tmdb.Client, trackerService *tracker.Service) *IMDBImporter {
	return &IMDBImporter{
		tmdb:    tmdbClient,
		tracker: trackerService,
		log:     logger.AppLogger(),
	}
}

type imdbRow struct {
	imdbID    string
	title     string
	titleType string
	rating    string
	created   string
	modified  string
	dateRated string
}

// Import reads the CSV and writes tracking entries for the user.
//
// Two rows resolving to the same TMDB id cancel each other out: neither
// is imported and one consolidated warning names both source titles.
func (im *IMDBImporter) Import(ctx context.Context, r io.Reader, user *models.User, mode Mode) (*Result, error) {
	if !mode.Valid() {
		return nil, apperrors.ImportError(fmt.Sprintf("unknown import mode %q", mode))
	}

	jobID := uuid.NewString()
	log := im.log.WithFields(map[string]interface{}{
		"job_id": jobID,
		"user":   user.Username,
		"mode":   mode,
	})
	log.Info("starting imdb import")

	rows, err := readIMDBCSV(r)
	if err != nil {
		return nil, err
	}

	result := newResult()

	// Memoized so both passes hit TMDB once per id
	lookups := make(map[string]*metadata.Stub)

	// First pass: resolve every row and count how many rows land on
	// each TMDB id
	idCounts := make(map[string]int)
	idTitles := make(map[string][]string)
	for _, row := range rows {
		stub := im.resolveRow(ctx, row, result, lookups)
		if stub == nil {
			continue
		}
		idCounts[stub.MediaID]++
		idTitles[stub.MediaID] = append(idTitles[stub.MediaID], row.title)
	}

	// Second pass: import rows whose TMDB id is unambiguous
	for _, row := range rows {
		stub := im.cachedLookup(row, lookups)
		if stub == nil || idCounts[stub.MediaID] > 1 {
			continue
		}
		if err := im.importRow(ctx, row, stub, user, mode, result); err != nil {
			return nil, apperrors.ImportUnexpectedError(row.title, err)
		}
	}

	for mediaID, count := range idCounts {
		if count > 1 {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"%s: They were matched to the same TMDB ID %s - none imported",
				joinWithCommasAnd(idTitles[mediaID]), mediaID))
		}
	}

	result.Warnings = result.dedupedWarnings()
	log.WithFields(map[string]interface{}{
		"imported": result.Counts,
		"warnings": len(result.Warnings),
	}).Info("imdb import finished")
	return result, nil
}

func readIMDBCSV(r io.Reader) ([]imdbRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.ImportError("invalid file format, expected an IMDB CSV export")
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []imdbRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.ImportError("invalid file format, expected an IMDB CSV export")
		}
		rows = append(rows, imdbRow{
			imdbID:    field(record, "Const"),
			title:     field(record, "Title"),
			titleType: field(record, "Title Type"),
			rating:    field(record, "Your Rating"),
			created:   field(record, "Created"),
			modified:  field(record, "Modified"),
			dateRated: field(record, "Date Rated"),
		})
	}
	return rows, nil
}

// resolveRow validates one row and resolves it to a TMDB stub, adding
// warnings for rows that cannot be imported
func (im *IMDBImporter) resolveRow(ctx context.Context, row imdbRow, result *Result, lookups map[string]*metadata.Stub) *metadata.Stub {
	imdbID := normalizeIMDBID(row.imdbID)
	if imdbID == "" {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: Invalid or missing IMDB ID", row.title))
		return nil
	}

	mediaType, supported := imdbTypeMapping[row.titleType]
	if !supported {
		if _, known := imdbUnsupportedTypes[row.titleType]; known {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: Unsupported title type %q - skipped", row.title, row.titleType))
		} else {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: Unknown title type %q - skipped", row.title, row.titleType))
		}
		return nil
	}

	stub := im.lookup(ctx, imdbID, mediaType)
	lookups[imdbID] = stub
	if stub == nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: Couldn't find a match in The Movie Database", row.title))
		return nil
	}
	return stub
}

// cachedLookup replays the first pass resolution without re-warning
func (im *IMDBImporter) cachedLookup(row imdbRow, lookups map[string]*metadata.Stub) *metadata.Stub {
	imdbID := normalizeIMDBID(row.imdbID)
	if imdbID == "" {
		return nil
	}
	if _, supported := imdbTypeMapping[row.titleType]; !supported {
		return nil
	}
	return lookups[imdbID]
}

func (im *IMDBImporter) lookup(ctx context.Context, imdbID string, mediaType models.MediaType) *metadata.Stub {
	found, err := im.tmdb.Find(ctx, imdbID, tmdb.ExternalSourceIMDB)
	if err != nil {
		im.log.WithFields(map[string]interface{}{
			"imdb_id": imdbID,
			"error":   err.Error(),
		}).Warn("tmdb lookup failed during import")
		return nil
	}

	switch mediaType {
	case models.MediaTypeMovie:
		if len(found.MovieResults) > 0 {
			return &found.MovieResults[0]
		}
	case models.MediaTypeTV:
		if len(found.TVResults) > 0 {
			return &found.TVResults[0]
		}
	}
	return nil
}

func (im *IMDBImporter) importRow(ctx context.Context, row imdbRow, stub *metadata.Stub, user *models.User, mode Mode, result *Result) error {
	item, err := im.tracker.EnsureItem(ctx, stub.MediaID, models.SourceTMDB, stub.MediaType, nil, nil, stub.Title, stub.Image)
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

	entry := models.MediaEntry{
		Score:  parseIMDBRating(row.rating),
		Status: models.StatusPlanning,
	}

	// A rated title was watched to the end
	if entry.Score != nil {
		entry.Status = models.StatusCompleted
	}

	when := mostRecentDate(row.created, row.modified, row.dateRated)
	if stub.MediaType == models.MediaTypeMovie && entry.Status == models.StatusCompleted {
		entry.Progress = 1
		entry.EndDate = when
	}

	saved, err := im.tracker.RecordImported(ctx, user, item, entry)
	if err != nil {
		return err
	}

	at := time.Now()
	if when != nil {
		at = *when
	}
	if err := im.tracker.AppendHistory(ctx, saved.ID, saved.Status, saved.Progress, saved.Repeats, at); err != nil {
		return err
	}

	result.Counts[stub.MediaType]++
	return nil
}

// normalizeIMDBID cleans the Const column into a tt-prefixed id, which
// the TMDB find endpoint expects
func normalizeIMDBID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "tt") {
		return raw
	}
	if _, err := strconv.Atoi(raw); err == nil {
		return "tt" + raw
	}
	return ""
}

// parseIMDBRating parses the 1-10 rating column, nil when absent or out
// of range
func parseIMDBRating(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	rating, err := strconv.ParseFloat(raw, 64)
	if err != nil || rating < 1 || rating > 10 {
		return nil
	}
	return &rating
}

// mostRecentDate picks the latest of the export's date columns
func mostRecentDate(dates ...string) *time.Time {
	var latest *time.Time
	for _, raw := range dates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			continue
		}
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest
}
