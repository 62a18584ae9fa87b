package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"trackarr/internal/config"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/httpclient"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
)

const (
	baseURL   = "https://api.themoviedb.org/3"
	imageBase = "https://image.tmdb.org/t/p/w500"

	// maxSeasonsPerRequest leaves room for the recommendations and
	// external_ids appends inside TMDB's limit of 20 per request
	maxSeasonsPerRequest = 18

	providerName = "tmdb"
)

// External ID source names accepted by the find endpoint
const (
	ExternalSourceIMDB = "imdb_id"
	ExternalSourceTVDB = "tvdb_id"
)

// Client is the TMDB metadata adapter
type Client struct {
	http     *httpclient.Client
	apiKey   string
	language string
	nsfw     bool
	noImage  string
}

// New creates a TMDB adapter
func New(http *httpclient.Client, cfg config.TMDBConfig, noImageURL string) *Client {
	return &Client{
		http:     http,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		nsfw:     cfg.NSFW,
		noImage:  noImageURL,
	}
}

func (c *Client) baseParams() url.Values {
	p := url.Values{}
	p.Set("api_key", c.apiKey)
	if c.language != "" {
		p.Set("language", c.language)
	}
	return p
}

type genre struct {
	Name string `json:"name"`
}

type company struct {
	Name string `json:"name"`
}

type country struct {
	Name string `json:"name"`
}

type language struct {
	EnglishName string `json:"english_name"`
}

type relatedEntry struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Name       string  `json:"name"`
	PosterPath *string `json:"poster_path"`
}

type relatedList struct {
	Results []relatedEntry `json:"results"`
}

type movieResponse struct {
	ID                  int         `json:"id"`
	Title               string      `json:"title"`
	PosterPath          *string     `json:"poster_path"`
	Overview            string      `json:"overview"`
	Genres              []genre     `json:"genres"`
	VoteAverage         float64     `json:"vote_average"`
	VoteCount           int         `json:"vote_count"`
	ReleaseDate         string      `json:"release_date"`
	Status              string      `json:"status"`
	Runtime             int         `json:"runtime"`
	ProductionCompanies []company   `json:"production_companies"`
	ProductionCountries []country   `json:"production_countries"`
	SpokenLanguages     []language  `json:"spoken_languages"`
	Recommendations     relatedList `json:"recommendations"`
}

type episodeResponse struct {
	EpisodeNumber int     `json:"episode_number"`
	Name          string  `json:"name"`
	StillPath     *string `json:"still_path"`
	AirDate       string  `json:"air_date"`
	Runtime       *int    `json:"runtime"`
	VoteCount     int     `json:"vote_count"`
}

type seasonResponse struct {
	SeasonNumber int               `json:"season_number"`
	Name         string            `json:"name"`
	PosterPath   *string           `json:"poster_path"`
	Overview     string            `json:"overview"`
	AirDate      string            `json:"air_date"`
	VoteAverage  float64           `json:"vote_average"`
	Episodes     []episodeResponse `json:"episodes"`
}

type tvResponse struct {
	ID               int         `json:"id"`
	Name             string      `json:"name"`
	PosterPath       *string     `json:"poster_path"`
	Overview         string      `json:"overview"`
	Genres           []genre     `json:"genres"`
	VoteAverage      float64     `json:"vote_average"`
	VoteCount        int         `json:"vote_count"`
	FirstAirDate     string      `json:"first_air_date"`
	LastAirDate      string      `json:"last_air_date"`
	Status           string      `json:"status"`
	NumberOfSeasons  int         `json:"number_of_seasons"`
	NumberOfEpisodes int         `json:"number_of_episodes"`
	EpisodeRunTime   []int       `json:"episode_run_time"`
	Recommendations  relatedList `json:"recommendations"`
	ExternalIDs      struct {
		TVDBID *int `json:"tvdb_id"`
	} `json:"external_ids"`
}

// Fetch returns canonical metadata for a TMDB reference. Season and
// episode references ride on a tv-with-seasons fetch of the parent show.
func (c *Client) Fetch(ctx context.Context, ref metadata.MediaRef) (*metadata.Metadata, error) {
	switch ref.MediaType {
	case models.MediaTypeMovie:
		return c.Movie(ctx, ref.MediaID)
	case models.MediaTypeTV:
		return c.TV(ctx, ref.MediaID)
	case models.MediaTypeSeason:
		if ref.Season == nil {
			return nil, apperrors.ValidationError("season reference requires a season number")
		}
		return c.seasonMetadata(ctx, ref.MediaID, *ref.Season)
	case models.MediaTypeEpisode:
		if ref.Season == nil || ref.Episode == nil {
			return nil, apperrors.ValidationError("episode reference requires season and episode numbers")
		}
		return c.episodeMetadata(ctx, ref.MediaID, *ref.Season, *ref.Episode)
	default:
		return nil, apperrors.ValidationError(fmt.Sprintf("tmdb does not serve media type %q", ref.MediaType))
	}
}

// Movie fetches a movie with recommendations appended
func (c *Client) Movie(ctx context.Context, mediaID string) (*metadata.Metadata, error) {
	params := c.baseParams()
	params.Set("append_to_response", "recommendations")

	var resp movieResponse
	if err := c.http.GetJSON(ctx, providerName, fmt.Sprintf("%s/movie/%s", baseURL, mediaID), params, nil, &resp); err != nil {
		return nil, err
	}

	one := 1
	return &metadata.Metadata{
		MediaID:     mediaID,
		Source:      models.SourceTMDB,
		MediaType:   models.MediaTypeMovie,
		Title:       resp.Title,
		Image:       c.imageURL(resp.PosterPath),
		Synopsis:    metadata.NormalizeSynopsis(resp.Overview),
		Score:       metadata.RoundScore(resp.VoteAverage),
		MaxProgress: &one,
		Genres:      genreNames(resp.Genres),
		Details: map[string]interface{}{
			"format":       "Movie",
			"release_date": emptyToNil(resp.ReleaseDate),
			"status":       resp.Status,
			"runtime":      readableDuration(resp.Runtime),
			"studios":      companyNames(resp.ProductionCompanies),
			"country":      firstCountry(resp.ProductionCountries),
			"languages":    languageNames(resp.SpokenLanguages),
		},
		Related: c.relatedStubs(resp.Recommendations.Results, models.MediaTypeMovie),
	}, nil
}

// TV fetches a show without season payloads
func (c *Client) TV(ctx context.Context, mediaID string) (*metadata.Metadata, error) {
	params := c.baseParams()
	params.Set("append_to_response", "recommendations,external_ids")

	var resp tvResponse
	if err := c.http.GetJSON(ctx, providerName, fmt.Sprintf("%s/tv/%s", baseURL, mediaID), params, nil, &resp); err != nil {
		return nil, err
	}
	return c.processTV(mediaID, &resp), nil
}

// TVWithSeasons fetches a show with the requested seasons appended to the
// same response, chunked to respect TMDB's append limit.
func (c *Client) TVWithSeasons(ctx context.Context, mediaID string, seasonNumbers []int) (*metadata.Metadata, error) {
	if len(seasonNumbers) == 0 {
		return c.TV(ctx, mediaID)
	}

	var show *metadata.Metadata

	for i := 0; i < len(seasonNumbers); i += maxSeasonsPerRequest {
		end := i + maxSeasonsPerRequest
		if end > len(seasonNumbers) {
			end = len(seasonNumbers)
		}
		subset := seasonNumbers[i:end]

		appends := []string{"recommendations", "external_ids"}
		for _, n := range subset {
			appends = append(appends, fmt.Sprintf("season/%d", n))
		}

		params := c.baseParams()
		params.Set("append_to_response", strings.Join(appends, ","))

		var raw json.RawMessage
		if err := c.http.GetJSON(ctx, providerName, fmt.Sprintf("%s/tv/%s", baseURL, mediaID), params, nil, &raw); err != nil {
			return nil, err
		}

		var resp tvResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, apperrors.ProviderAPIError(providerName, 0, "malformed tv response", err)
		}
		if show == nil {
			show = c.processTV(mediaID, &resp)
		}

		// Appended seasons arrive as top-level "season/N" keys
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, apperrors.ProviderAPIError(providerName, 0, "malformed tv response", err)
		}

		for _, n := range subset {
			seasonRaw, ok := keyed[fmt.Sprintf("season/%d", n)]
			if !ok {
				return nil, apperrors.NotFoundError("season",
					fmt.Sprintf("%d of tmdb tv %s", n, mediaID))
			}

			var sr seasonResponse
			if err := json.Unmarshal(seasonRaw, &sr); err != nil {
				return nil, apperrors.ProviderAPIError(providerName, 0, "malformed season response", err)
			}
			show.Seasons = append(show.Seasons, c.processSeason(&sr))
		}
	}

	return show, nil
}

// Search queries TMDB movies or shows
func (c *Client) Search(ctx context.Context, mediaType models.MediaType, query string, page int) (*metadata.SearchPage, error) {
	if mediaType != models.MediaTypeMovie && mediaType != models.MediaTypeTV {
		return nil, apperrors.ValidationError(fmt.Sprintf("tmdb does not serve media type %q", mediaType))
	}

	params := c.baseParams()
	params.Set("query", query)
	params.Set("page", fmt.Sprintf("%d", page))
	if c.nsfw {
		params.Set("include_adult", "true")
	}

	var resp struct {
		Page         int            `json:"page"`
		TotalPages   int            `json:"total_pages"`
		TotalResults int            `json:"total_results"`
		Results      []relatedEntry `json:"results"`
	}
	if err := c.http.GetJSON(ctx, providerName, fmt.Sprintf("%s/search/%s", baseURL, mediaType), params, nil, &resp); err != nil {
		return nil, err
	}

	return &metadata.SearchPage{
		Page:         resp.Page,
		TotalPages:   resp.TotalPages,
		TotalResults: resp.TotalResults,
		Results:      c.relatedStubs(resp.Results, mediaType),
	}, nil
}

// FoundEpisode is an episode-level match for an external ID, carrying
// the show it belongs to and its position within it
type FoundEpisode struct {
	ShowID        int
	SeasonNumber  int
	EpisodeNumber int
}

// FindResult holds the movie, tv and episode matches for an external ID
type FindResult struct {
	MovieResults     []metadata.Stub
	TVResults        []metadata.Stub
	TVEpisodeResults []FoundEpisode
}

// Find looks up media by an external identifier such as an IMDB or TVDB id
func (c *Client) Find(ctx context.Context, externalID, externalSource string) (*FindResult, error) {
	params := c.baseParams()
	params.Set("external_source", externalSource)

	var resp struct {
		MovieResults     []relatedEntry `json:"movie_results"`
		TVResults        []relatedEntry `json:"tv_results"`
		TVEpisodeResults []struct {
			ShowID        int `json:"show_id"`
			SeasonNumber  int `json:"season_number"`
			EpisodeNumber int `json:"episode_number"`
		} `json:"tv_episode_results"`
	}
	if err := c.http.GetJSON(ctx, providerName, fmt.Sprintf("%s/find/%s", baseURL, externalID), params, nil, &resp); err != nil {
		return nil, err
	}

	result := &FindResult{
		MovieResults: c.relatedStubs(resp.MovieResults, models.MediaTypeMovie),
		TVResults:    c.relatedStubs(resp.TVResults, models.MediaTypeTV),
	}
	for _, ep := range resp.TVEpisodeResults {
		result.TVEpisodeResults = append(result.TVEpisodeResults, FoundEpisode{
			ShowID:        ep.ShowID,
			SeasonNumber:  ep.SeasonNumber,
			EpisodeNumber: ep.EpisodeNumber,
		})
	}
	return result, nil
}

func (c *Client) seasonMetadata(ctx context.Context, mediaID string, seasonNumber int) (*metadata.Metadata, error) {
	show, err := c.TVWithSeasons(ctx, mediaID, []int{seasonNumber})
	if err != nil {
		return nil, err
	}

	for i := range show.Seasons {
		s := &show.Seasons[i]
		if s.SeasonNumber != seasonNumber {
			continue
		}

		maxProgress := 0
		if len(s.Episodes) > 0 {
			maxProgress = s.Episodes[len(s.Episodes)-1].EpisodeNumber
		}

		synopsis := s.Synopsis
		if synopsis == metadata.NoSynopsis {
			synopsis = show.Synopsis
		}

		return &metadata.Metadata{
			MediaID:     mediaID,
			Source:      models.SourceTMDB,
			MediaType:   models.MediaTypeSeason,
			Title:       show.Title,
			Image:       s.Image,
			Synopsis:    synopsis,
			MaxProgress: &maxProgress,
			Genres:      show.Genres,
			Details: map[string]interface{}{
				"season_title": s.Title,
				"episodes":     len(s.Episodes),
			},
			Seasons: []metadata.Season{*s},
		}, nil
	}

	return nil, apperrors.NotFoundError("season", fmt.Sprintf("%d of tmdb tv %s", seasonNumber, mediaID))
}

func (c *Client) episodeMetadata(ctx context.Context, mediaID string, seasonNumber, episodeNumber int) (*metadata.Metadata, error) {
	season, err := c.seasonMetadata(ctx, mediaID, seasonNumber)
	if err != nil {
		return nil, err
	}

	for _, ep := range season.Seasons[0].Episodes {
		if ep.EpisodeNumber != episodeNumber {
			continue
		}

		one := 1
		return &metadata.Metadata{
			MediaID:     mediaID,
			Source:      models.SourceTMDB,
			MediaType:   models.MediaTypeEpisode,
			Title:       fmt.Sprintf("%s S%dE%d", season.Title, seasonNumber, episodeNumber),
			Image:       ep.Image,
			Synopsis:    season.Synopsis,
			MaxProgress: &one,
			Details: map[string]interface{}{
				"episode_title": ep.Title,
				"air_date":      ep.AirDate,
			},
		}, nil
	}

	return nil, apperrors.NotFoundError("episode",
		fmt.Sprintf("s%de%d of tmdb tv %s", seasonNumber, episodeNumber, mediaID))
}

func (c *Client) processTV(mediaID string, resp *tvResponse) *metadata.Metadata {
	maxProgress := resp.NumberOfEpisodes

	details := map[string]interface{}{
		"format":         "TV",
		"first_air_date": emptyToNil(resp.FirstAirDate),
		"last_air_date":  emptyToNil(resp.LastAirDate),
		"status":         resp.Status,
		"seasons":        resp.NumberOfSeasons,
		"episodes":       resp.NumberOfEpisodes,
	}
	if len(resp.EpisodeRunTime) > 0 {
		details["runtime"] = readableDuration(resp.EpisodeRunTime[0])
	}
	if resp.ExternalIDs.TVDBID != nil {
		details["tvdb_id"] = *resp.ExternalIDs.TVDBID
	}

	return &metadata.Metadata{
		MediaID:     mediaID,
		Source:      models.SourceTMDB,
		MediaType:   models.MediaTypeTV,
		Title:       resp.Name,
		Image:       c.imageURL(resp.PosterPath),
		Synopsis:    metadata.NormalizeSynopsis(resp.Overview),
		Score:       metadata.RoundScore(resp.VoteAverage),
		MaxProgress: &maxProgress,
		Genres:      genreNames(resp.Genres),
		Details:     details,
		Related:     c.relatedStubs(resp.Recommendations.Results, models.MediaTypeTV),
	}
}

func (c *Client) processSeason(resp *seasonResponse) metadata.Season {
	episodes := make([]metadata.Episode, 0, len(resp.Episodes))
	for _, ep := range resp.Episodes {
		episodes = append(episodes, metadata.Episode{
			EpisodeNumber: ep.EpisodeNumber,
			Title:         ep.Name,
			Image:         c.imageURL(ep.StillPath),
			AirDate:       ep.AirDate,
		})
	}

	return metadata.Season{
		SeasonNumber: resp.SeasonNumber,
		Title:        resp.Name,
		Image:        c.imageURL(resp.PosterPath),
		Synopsis:     metadata.NormalizeSynopsis(resp.Overview),
		Episodes:     episodes,
	}
}

func (c *Client) relatedStubs(entries []relatedEntry, mediaType models.MediaType) []metadata.Stub {
	const maxRelated = 15
	if len(entries) > maxRelated {
		entries = entries[:maxRelated]
	}

	stubs := make([]metadata.Stub, 0, len(entries))
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = e.Name
		}
		stubs = append(stubs, metadata.Stub{
			MediaID:   fmt.Sprintf("%d", e.ID),
			Source:    models.SourceTMDB,
			MediaType: mediaType,
			Title:     title,
			Image:     c.imageURL(e.PosterPath),
		})
	}
	return stubs
}

func (c *Client) imageURL(path *string) string {
	if path == nil || *path == "" {
		return c.noImage
	}
	return imageBase + *path
}

func genreNames(genres []genre) []string {
	if len(genres) == 0 {
		return nil
	}
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		names = append(names, g.Name)
	}
	return names
}

func companyNames(companies []company) []string {
	if len(companies) == 0 {
		return nil
	}
	if len(companies) > 3 {
		companies = companies[:3]
	}
	names := make([]string, 0, len(companies))
	for _, co := range companies {
		names = append(names, co.Name)
	}
	return names
}

func firstCountry(countries []country) interface{} {
	if len(countries) == 0 {
		return nil
	}
	return countries[0].Name
}

func languageNames(languages []language) []string {
	if len(languages) == 0 {
		return nil
	}
	names := make([]string, 0, len(languages))
	for _, l := range languages {
		names = append(names, l.EnglishName)
	}
	return names
}

func emptyToNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// readableDuration converts minutes to a "1h 30m" style string
func readableDuration(minutes int) interface{} {
	if minutes <= 0 {
		return nil
	}
	hours := minutes / 60
	mins := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
