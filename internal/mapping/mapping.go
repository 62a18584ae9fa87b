package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"trackarr/internal/cache"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/httpclient"
	"trackarr/internal/logger"
	"trackarr/internal/models"
)

const mappingCacheKey = "anime_mapping_data"

// ErrMappingExists signals that an override upsert needs confirmation
var ErrMappingExists = apperrors.New(apperrors.CodeValidation,
	"a mapping for this source id already exists; confirm to replace it")

// FlexID tolerates the community table's habit of mixing numbers and
// strings for the same field
type FlexID string

// UnmarshalJSON accepts both "123" and 123
func (f *FlexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// AnimeEntry is one row of the community anime-IDs table
type AnimeEntry struct {
	TVDBID       *int     `json:"tvdb_id"`
	TVDBSeason   *int     `json:"tvdb_season"`
	TVDBEpOffset int      `json:"tvdb_epoffset"`
	MALID        *FlexID  `json:"mal_id"`
	TMDBMovieID  *FlexID  `json:"tmdb_movie_id"`
	TMDBMovieIDs []FlexID `json:"tmdb_movie_ids"`
	TMDBID       *FlexID  `json:"tmdb_id"`
}

// Table is the parsed anime-IDs table keyed by AniDB id
type Table map[string]AnimeEntry

// Service resolves identifiers across providers: the community anime-IDs
// table for TVDB/TMDB to MAL, and the local override table on top.
type Service struct {
	http        *httpclient.Client
	cache       *cache.Cache
	db          *gorm.DB
	animeIDsURL string
	log         *logger.Logger
}

// New creates a mapping service
func New(http *httpclient.Client, c *cache.Cache, db *gorm.DB, animeIDsURL string) *Service {
	return &Service{
		http:        http,
		cache:       c,
		db:          db,
		animeIDsURL: animeIDsURL,
		log:         logger.AppLogger(),
	}
}

// Load returns the anime-IDs table, fetching it when the cached copy
// has expired
func (s *Service) Load(ctx context.Context) (Table, error) {
	if s.cache != nil {
		var cached Table
		hit, err := s.cache.Get(mappingCacheKey, &cached)
		if err == nil && hit {
			return cached, nil
		}
	}
	return s.Refresh(ctx)
}

// Refresh fetches the anime-IDs table and replaces the cached copy
func (s *Service) Refresh(ctx context.Context) (Table, error) {
	var table Table
	if err := s.http.GetJSON(ctx, "github", s.animeIDsURL, nil, nil, &table); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(mappingCacheKey, table); err != nil {
			s.log.Warn("failed to cache anime mapping table")
		}
	}

	s.log.WithFields(map[string]interface{}{"entries": len(table)}).
		Info("anime mapping table refreshed")
	return table, nil
}

// ResolveTVDB maps a (tvdb id, season, episode) triple to a MAL id and
// the episode number within that MAL entry.
//
// Long-running shows split one TVDB season across several MAL entries,
// each owning an episode range starting after its tvdb_epoffset. The
// entry whose range contains the episode wins, and the offset is
// subtracted to renumber the episode for MAL.
func (t Table) ResolveTVDB(tvdbID, seasonNumber, episodeNumber int) (string, int, bool) {
	var matches []AnimeEntry
	for _, entry := range t {
		if entry.TVDBID != nil && *entry.TVDBID == tvdbID &&
			entry.TVDBSeason != nil && *entry.TVDBSeason == seasonNumber &&
			entry.MALID != nil {
			matches = append(matches, entry)
		}
	}
	if len(matches) == 0 {
		return "", 0, false
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].TVDBEpOffset < matches[j].TVDBEpOffset
	})

	for i, entry := range matches {
		current := entry.TVDBEpOffset
		next := -1
		if i < len(matches)-1 {
			next = matches[i+1].TVDBEpOffset
		}

		if episodeNumber > current && (next == -1 || episodeNumber <= next) {
			return parseMALID(*entry.MALID), episodeNumber - current, true
		}
	}
	return "", 0, false
}

// ResolveTMDBMovie maps a TMDB movie id to a MAL id. Keys are scanned in
// sorted order so repeated calls always pick the same entry.
func (t Table) ResolveTMDBMovie(tmdbMovieID string) (string, bool) {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		entry := t[k]
		if entry.MALID == nil {
			continue
		}

		if entry.TMDBMovieID != nil && string(*entry.TMDBMovieID) == tmdbMovieID {
			return parseMALID(*entry.MALID), true
		}
		for _, id := range entry.TMDBMovieIDs {
			if string(id) == tmdbMovieID {
				return parseMALID(*entry.MALID), true
			}
		}
		if entry.TMDBID != nil && string(*entry.TMDBID) == tmdbMovieID {
			return parseMALID(*entry.MALID), true
		}
	}
	return "", false
}

// parseMALID takes the first id when the field holds a comma-separated list
func parseMALID(id FlexID) string {
	s := string(id)
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// LookupOverride returns the admin override for a source id, if any
func (s *Service) LookupOverride(ctx context.Context, fromSource models.Source, fromID string) (*models.ExternalIDMapping, error) {
	var m models.ExternalIDMapping
	err := s.db.WithContext(ctx).
		Where("from_source = ? AND from_id = ?", fromSource, fromID).
		First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DatabaseError("looking up id mapping", err)
	}
	return &m, nil
}

// UpsertOverride stores an admin override. Replacing an existing mapping
// requires confirm to avoid silently clobbering prior fixes.
func (s *Service) UpsertOverride(ctx context.Context, fromSource models.Source, fromID string, toSource models.Source, toID string, confirm bool) error {
	existing, err := s.LookupOverride(ctx, fromSource, fromID)
	if err != nil {
		return err
	}

	if existing != nil {
		if !confirm {
			return ErrMappingExists
		}
		existing.ToSource = toSource
		existing.ToID = toID
		if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
			return apperrors.DatabaseError("updating id mapping", err)
		}
		s.log.WithFields(map[string]interface{}{
			"from": fmt.Sprintf("%s:%s", fromSource, fromID),
			"to":   fmt.Sprintf("%s:%s", toSource, toID),
		}).Info("id mapping replaced")
		return nil
	}

	m := models.ExternalIDMapping{
		FromSource: fromSource,
		FromID:     fromID,
		ToSource:   toSource,
		ToID:       toID,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return apperrors.DatabaseError("creating id mapping", err)
	}
	s.log.WithFields(map[string]interface{}{
		"from": fmt.Sprintf("%s:%s", fromSource, fromID),
		"to":   fmt.Sprintf("%s:%s", toSource, toID),
	}).Info("id mapping created")
	return nil
}
