package mal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"trackarr/internal/config"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/httpclient"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
)

const (
	baseURL = "https://api.myanimelist.net/v2"

	baseFields = "title,main_picture,media_type,start_date,end_date,synopsis,status,genres,mean,num_scoring_users,recommendations"

	providerName = "mal"
)

// Client is the MyAnimeList metadata adapter
type Client struct {
	clientID string
	nsfw     bool
	http     *httpclient.Client
	noImage  string

	// displayTZ is the timezone broadcast times are rendered in
	displayTZ *time.Location
}

// New creates a MAL adapter
func New(http *httpclient.Client, cfg config.MALConfig, noImageURL string, displayTZ *time.Location) *Client {
	if displayTZ == nil {
		displayTZ = time.UTC
	}
	return &Client{
		clientID:  cfg.ClientID,
		nsfw:      cfg.NSFW,
		http:      http,
		noImage:   noImageURL,
		displayTZ: displayTZ,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{"X-MAL-CLIENT-ID": c.clientID}
}

type picture struct {
	Large string `json:"large"`
}

type named struct {
	Name string `json:"name"`
}

type node struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	MainPicture *picture `json:"main_picture"`
}

type relatedEdge struct {
	Node node `json:"node"`
}

type mediaResponse struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	MainPicture *picture `json:"main_picture"`
	MediaFormat string   `json:"media_type"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Synopsis    string   `json:"synopsis"`
	Status      string   `json:"status"`
	Genres      []named  `json:"genres"`
	Mean        *float64 `json:"mean"`
	ScoreCount  int      `json:"num_scoring_users"`

	// anime only
	NumEpisodes            int     `json:"num_episodes"`
	AverageEpisodeDuration int     `json:"average_episode_duration"`
	Studios                []named `json:"studios"`
	StartSeason            *struct {
		Year   int    `json:"year"`
		Season string `json:"season"`
	} `json:"start_season"`
	Broadcast *struct {
		DayOfTheWeek string `json:"day_of_the_week"`
		StartTime    string `json:"start_time"`
	} `json:"broadcast"`
	Source       string        `json:"source"`
	RelatedAnime []relatedEdge `json:"related_anime"`

	// manga only
	NumChapters  int           `json:"num_chapters"`
	RelatedManga []relatedEdge `json:"related_manga"`

	Recommendations []relatedEdge `json:"recommendations"`
}

// Fetch returns canonical metadata for a MAL reference
func (c *Client) Fetch(ctx context.Context, ref metadata.MediaRef) (*metadata.Metadata, error) {
	switch ref.MediaType {
	case models.MediaTypeAnime:
		return c.Anime(ctx, ref.MediaID)
	case models.MediaTypeManga:
		return c.Manga(ctx, ref.MediaID)
	default:
		return nil, apperrors.ValidationError(fmt.Sprintf("mal does not serve media type %q", ref.MediaType))
	}
}

// Anime fetches one anime's metadata
func (c *Client) Anime(ctx context.Context, mediaID string) (*metadata.Metadata, error) {
	params := url.Values{}
	params.Set("fields", baseFields+",num_episodes,average_episode_duration,studios,start_season,broadcast,source,related_anime")

	var resp mediaResponse
	if err := c.http.GetJSON(ctx, providerName, fmt.Sprintf("%s/anime/%s", baseURL, mediaID), params, c.headers(), &resp); err != nil {
		return nil, err
	}

	details := map[string]interface{}{
		"format":     readableFormat(resp.MediaFormat),
		"start_date": emptyToNil(resp.StartDate),
		"end_date":   emptyToNil(resp.EndDate),
		"status":     readableStatus(resp.Status),
		"episodes":   zeroToNil(resp.NumEpisodes),
		"runtime":    episodeRuntime(resp.AverageEpisodeDuration),
		"studios":    nameList(resp.Studios),
		"source":     readableSource(resp.Source),
	}
	if resp.StartSeason != nil {
		details["season"] = fmt.Sprintf("%s %d",
			strings.Title(resp.StartSeason.Season), resp.StartSeason.Year)
	}
	if b := c.broadcastTime(&resp); b != "" {
		details["broadcast"] = b
	}

	meta := c.processCommon(mediaID, models.MediaTypeAnime, &resp)
	meta.Details = details
	meta.Related = append(
		c.stubs(resp.RelatedAnime, models.MediaTypeAnime),
		c.stubs(resp.Recommendations, models.MediaTypeAnime)...)
	if resp.NumEpisodes > 0 {
		meta.MaxProgress = &resp.NumEpisodes
	}
	return meta, nil
}

// Manga fetches one manga's metadata
func (c *Client) Manga(ctx context.Context, mediaID string) (*metadata.Metadata, error) {
	params := url.Values{}
	params.Set("fields", baseFields+",num_chapters,related_manga,recommendations")

	var resp mediaResponse
	if err := c.http.GetJSON(ctx, providerName, fmt.Sprintf("%s/manga/%s", baseURL, mediaID), params, c.headers(), &resp); err != nil {
		return nil, err
	}

	meta := c.processCommon(mediaID, models.MediaTypeManga, &resp)
	meta.Details = map[string]interface{}{
		"format":             readableFormat(resp.MediaFormat),
		"start_date":         emptyToNil(resp.StartDate),
		"end_date":           emptyToNil(resp.EndDate),
		"status":             readableStatus(resp.Status),
		"number_of_chapters": zeroToNil(resp.NumChapters),
	}
	meta.Related = append(
		c.stubs(resp.RelatedManga, models.MediaTypeManga),
		c.stubs(resp.Recommendations, models.MediaTypeManga)...)
	if resp.NumChapters > 0 {
		meta.MaxProgress = &resp.NumChapters
	}
	return meta, nil
}

// Search queries MAL anime or manga. MAL search is not paginated on our
// side, so every request returns page one of one.
func (c *Client) Search(ctx context.Context, mediaType models.MediaType, query string, page int) (*metadata.SearchPage, error) {
	if mediaType != models.MediaTypeAnime && mediaType != models.MediaTypeManga {
		return nil, apperrors.ValidationError(fmt.Sprintf("mal does not serve media type %q", mediaType))
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "media_type")
	if c.nsfw {
		params.Set("nsfw", "true")
	}

	var resp struct {
		Data []relatedEdge `json:"data"`
	}
	err := c.http.GetJSON(ctx, providerName, fmt.Sprintf("%s/%s", baseURL, mediaType), params, c.headers(), &resp)
	if err != nil {
		// MAL rejects short or symbol-only queries with "invalid q"
		if apperrors.HTTPStatus(err) == 400 {
			return &metadata.SearchPage{Page: 1, TotalPages: 1, Results: []metadata.Stub{}}, nil
		}
		return nil, err
	}

	return &metadata.SearchPage{
		Page:         1,
		TotalPages:   1,
		TotalResults: len(resp.Data),
		Results:      c.stubs(resp.Data, mediaType),
	}, nil
}

func (c *Client) processCommon(mediaID string, mediaType models.MediaType, resp *mediaResponse) *metadata.Metadata {
	var score *float64
	if resp.Mean != nil {
		score = metadata.RoundScore(*resp.Mean)
	}

	return &metadata.Metadata{
		MediaID:   mediaID,
		Source:    models.SourceMAL,
		MediaType: mediaType,
		Title:     resp.Title,
		Image:     c.imageURL(resp.MainPicture),
		Synopsis:  metadata.NormalizeSynopsis(resp.Synopsis),
		Score:     score,
		Genres:    nameSlice(resp.Genres),
	}
}

// broadcastTime renders the weekly broadcast slot in the display
// timezone. MAL reports the slot in Japan time anchored to the premiere
// date; any missing piece yields an empty string.
func (c *Client) broadcastTime(resp *mediaResponse) string {
	if resp.StartDate == "" || resp.Broadcast == nil || resp.Broadcast.StartTime == "" {
		return ""
	}

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return ""
	}

	// start_date can come as a full date or just year-month
	date, err := time.ParseInLocation("2006-01-02", resp.StartDate, tokyo)
	if err != nil {
		date, err = time.ParseInLocation("2006-01", resp.StartDate, tokyo)
		if err != nil {
			return ""
		}
	}

	slot, err := time.ParseInLocation("2006-01-02 15:04",
		fmt.Sprintf("%s %s", date.Format("2006-01-02"), resp.Broadcast.StartTime), tokyo)
	if err != nil {
		return ""
	}

	local := slot.In(c.displayTZ)
	return local.Format("Monday 15:04")
}

func (c *Client) stubs(edges []relatedEdge, mediaType models.MediaType) []metadata.Stub {
	if len(edges) == 0 {
		return nil
	}
	stubs := make([]metadata.Stub, 0, len(edges))
	for _, e := range edges {
		stubs = append(stubs, metadata.Stub{
			MediaID:   fmt.Sprintf("%d", e.Node.ID),
			Source:    models.SourceMAL,
			MediaType: mediaType,
			Title:     e.Node.Title,
			Image:     c.imageURL(e.Node.MainPicture),
		})
	}
	return stubs
}

func (c *Client) imageURL(p *picture) string {
	if p == nil || p.Large == "" {
		return c.noImage
	}
	return p.Large
}

// readableFormat maps MAL's media_type onto a display label
func readableFormat(format string) string {
	switch format {
	case "tv":
		// MAL reports anime series as "tv"
		return "Anime"
	case "ova", "ona":
		return strings.ToUpper(format)
	default:
		return strings.Title(strings.ReplaceAll(format, "_", " "))
	}
}

func readableStatus(status string) string {
	statusMap := map[string]string{
		"finished_airing":      "Finished",
		"currently_airing":     "Airing",
		"not_yet_aired":        "Upcoming",
		"finished":             "Finished",
		"currently_publishing": "Publishing",
		"not_yet_published":    "Upcoming",
		"on_hiatus":            "On Hiatus",
		"discontinued":         "Discontinued",
	}
	if readable, ok := statusMap[status]; ok {
		return readable
	}
	return strings.Title(strings.ReplaceAll(status, "_", " "))
}

func readableSource(source string) interface{} {
	if source == "" {
		return nil
	}
	return strings.Title(strings.ReplaceAll(source, "_", " "))
}

// episodeRuntime converts seconds to a "1h 30m" style string
func episodeRuntime(seconds int) interface{} {
	if seconds <= 0 {
		return nil
	}
	minutes := seconds / 60
	hours := minutes / 60
	mins := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%d min", mins)
}

func nameSlice(items []named) []string {
	if len(items) == 0 {
		return nil
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return names
}

func nameList(items []named) interface{} {
	names := nameSlice(items)
	if names == nil {
		return nil
	}
	return names
}

func emptyToNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func zeroToNil(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
