package igdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"trackarr/internal/cache"
	"trackarr/internal/config"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/httpclient"
	"trackarr/internal/logger"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
)

const (
	baseURL  = "https://api.igdb.com/v4"
	tokenURL = "https://id.twitch.tv/oauth2/token"

	tokenCacheKey = "igdb_access_token"

	// tokenTTLBuffer keeps us from presenting a token that expires mid-flight
	tokenTTLBuffer = 60 * time.Second

	perPage = 25

	providerName = "igdb"
)

// Client is the IGDB metadata adapter. IGDB authenticates through Twitch
// client-credential tokens, cached until shortly before expiry.
type Client struct {
	http         *httpclient.Client
	cache        *cache.Cache
	clientID     string
	clientSecret string
	nsfw         bool
	noImage      string
	log          *logger.Logger
}

// New creates an IGDB adapter
func New(http *httpclient.Client, c *cache.Cache, cfg config.IGDBConfig, noImageURL string) *Client {
	return &Client{
		http:         http,
		cache:        c,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		nsfw:         cfg.NSFW,
		noImage:      noImageURL,
		log:          logger.ProviderLogger(),
	}
}

type cover struct {
	ImageID string `json:"image_id"`
}

type named struct {
	Name string `json:"name"`
}

type relatedGame struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Cover *cover `json:"cover"`
}

type gameResponse struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	Cover            *cover   `json:"cover"`
	URL              string   `json:"url"`
	Summary          string   `json:"summary"`
	GameType         int      `json:"game_type"`
	FirstReleaseDate *int64   `json:"first_release_date"`
	TotalRating      *float64 `json:"total_rating"`
	TotalRatingCount int      `json:"total_rating_count"`
	Genres           []named  `json:"genres"`
	Themes           []named  `json:"themes"`
	Platforms        []named  `json:"platforms"`
	InvolvedCompanies []struct {
		Company named `json:"company"`
	} `json:"involved_companies"`
	ParentGame           *relatedGame  `json:"parent_game"`
	Remasters            []relatedGame `json:"remasters"`
	Remakes              []relatedGame `json:"remakes"`
	Expansions           []relatedGame `json:"expansions"`
	StandaloneExpansions []relatedGame `json:"standalone_expansions"`
	ExpandedGames        []relatedGame `json:"expanded_games"`
	SimilarGames         []relatedGame `json:"similar_games"`
}

// Fetch returns canonical metadata for an IGDB reference
func (c *Client) Fetch(ctx context.Context, ref metadata.MediaRef) (*metadata.Metadata, error) {
	if ref.MediaType != models.MediaTypeGame {
		return nil, apperrors.ValidationError(fmt.Sprintf("igdb does not serve media type %q", ref.MediaType))
	}
	return c.Game(ctx, ref.MediaID)
}

// Game fetches one game's metadata
func (c *Client) Game(ctx context.Context, mediaID string) (*metadata.Metadata, error) {
	body := "fields name,cover.image_id," +
		"url,summary,game_type,first_release_date,total_rating,total_rating_count," +
		"genres.name,themes.name,platforms.name,involved_companies.company.name," +
		"parent_game.name,parent_game.cover.image_id," +
		"remasters.name,remasters.cover.image_id," +
		"remakes.name,remakes.cover.image_id," +
		"expansions.name,expansions.cover.image_id," +
		"standalone_expansions.name,standalone_expansions.cover.image_id," +
		"expanded_games.name,expanded_games.cover.image_id," +
		"similar_games.name,similar_games.cover.image_id;" +
		fmt.Sprintf("where id = %s;", mediaID)

	var resp []gameResponse
	if err := c.query(ctx, baseURL+"/games", body, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, apperrors.NotFoundError("game", mediaID)
	}
	g := resp[0]

	var score *float64
	if g.TotalRating != nil {
		score = metadata.RoundScore(*g.TotalRating / 10)
	}

	details := map[string]interface{}{
		"format":    gameTypeLabel(g.GameType),
		"themes":    names(g.Themes),
		"platforms": names(g.Platforms),
	}
	if g.FirstReleaseDate != nil {
		details["release_date"] = time.Unix(*g.FirstReleaseDate, 0).UTC().Format("2006-01-02")
	}
	if len(g.InvolvedCompanies) > 0 {
		companies := ""
		for i, ic := range g.InvolvedCompanies {
			if i > 0 {
				companies += ", "
			}
			companies += ic.Company.Name
		}
		details["companies"] = companies
	}

	related := c.stubs(g.Remasters)
	related = append(related, c.stubs(g.Remakes)...)
	related = append(related, c.stubs(g.Expansions)...)
	related = append(related, c.stubs(g.StandaloneExpansions)...)
	related = append(related, c.stubs(g.ExpandedGames)...)
	related = append(related, c.stubs(g.SimilarGames)...)
	if g.ParentGame != nil {
		related = append(related, c.stub(*g.ParentGame))
	}

	return &metadata.Metadata{
		MediaID:   mediaID,
		Source:    models.SourceIGDB,
		MediaType: models.MediaTypeGame,
		Title:     g.Name,
		Image:     c.imageURL(g.Cover),
		Synopsis:  metadata.NormalizeSynopsis(g.Summary),
		Score:     score,
		Genres:    names(g.Genres),
		Details:   details,
		Related:   related,
	}, nil
}

// Search queries games with a multiquery combining results and a total count
func (c *Client) Search(ctx context.Context, mediaType models.MediaType, query string, page int) (*metadata.SearchPage, error) {
	if mediaType != models.MediaTypeGame {
		return nil, apperrors.ValidationError(fmt.Sprintf("igdb does not serve media type %q", mediaType))
	}

	conditions := fmt.Sprintf(`where name ~ *"%s"* & game_type = (0,1,2,3,4,5,6,7,8,9,10)`, query)
	if !c.nsfw {
		conditions += " & themes != (42)"
	}

	offset := (page - 1) * perPage
	multiquery := `query games "SearchResults" {` +
		"fields name,cover.image_id;" +
		"sort total_rating_count desc;" +
		fmt.Sprintf("limit %d;", perPage) +
		fmt.Sprintf("offset %d;", offset) +
		conditions + ";" +
		"};" +
		`query games/count "TotalCount" {` +
		conditions + ";" +
		"};"

	var resp []struct {
		Name   string        `json:"name"`
		Result []relatedGame `json:"result"`
		Count  int           `json:"count"`
	}
	if err := c.query(ctx, baseURL+"/multiquery", multiquery, &resp); err != nil {
		return nil, err
	}

	var results []relatedGame
	var total int
	for _, item := range resp {
		switch item.Name {
		case "SearchResults":
			results = item.Result
		case "TotalCount":
			total = item.Count
		}
	}

	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}

	return &metadata.SearchPage{
		Page:         page,
		TotalPages:   totalPages,
		TotalResults: total,
		Results:      c.stubs(results),
	}, nil
}

// query runs one IGDB body query, refreshing the access token and
// replaying the request once if the token turns out to be stale.
func (c *Client) query(ctx context.Context, target, body string, dst interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	err = c.doQuery(ctx, target, body, token, dst)
	if err != nil && apperrors.HTTPStatus(err) == http.StatusUnauthorized {
		c.log.Warn("igdb access token rejected, refreshing")
		if delErr := c.cache.Delete(tokenCacheKey); delErr != nil {
			return delErr
		}

		token, err = c.accessToken(ctx)
		if err != nil {
			return err
		}
		return c.doQuery(ctx, target, body, token, dst)
	}
	return err
}

func (c *Client) doQuery(ctx context.Context, target, body, token string, dst interface{}) error {
	headers := map[string]string{
		"Client-ID":     c.clientID,
		"Authorization": "Bearer " + token,
	}
	return c.http.Request(ctx, providerName, http.MethodPost, target,
		httpclient.Options{Headers: headers, Body: []byte(body)}, dst)
}

// accessToken returns a valid Twitch token, minting one when the cached
// copy is missing or expired
func (c *Client) accessToken(ctx context.Context) (string, error) {
	var token string
	hit, err := c.cache.Get(tokenCacheKey, &token)
	if err != nil {
		return "", err
	}
	if hit {
		return token, nil
	}

	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("client_secret", c.clientSecret)
	params.Set("grant_type", "client_credentials")

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := c.http.Request(ctx, providerName, http.MethodPost, tokenURL,
		httpclient.Options{Params: params}, &resp); err != nil {
		return "", err
	}

	ttl := time.Duration(resp.ExpiresIn)*time.Second - tokenTTLBuffer
	if err := c.cache.SetTTL(tokenCacheKey, resp.AccessToken, ttl); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func (c *Client) stubs(games []relatedGame) []metadata.Stub {
	if len(games) == 0 {
		return nil
	}
	stubs := make([]metadata.Stub, 0, len(games))
	for _, g := range games {
		stubs = append(stubs, c.stub(g))
	}
	return stubs
}

func (c *Client) stub(g relatedGame) metadata.Stub {
	return metadata.Stub{
		MediaID:   fmt.Sprintf("%d", g.ID),
		Source:    models.SourceIGDB,
		MediaType: models.MediaTypeGame,
		Title:     g.Name,
		Image:     c.imageURL(g.Cover),
	}
}

func (c *Client) imageURL(cv *cover) string {
	if cv == nil || cv.ImageID == "" {
		return c.noImage
	}
	return fmt.Sprintf("https://images.igdb.com/igdb/image/upload/t_original/%s.jpg", cv.ImageID)
}

func gameTypeLabel(id int) string {
	labels := map[int]string{
		0:  "Main game",
		1:  "DLC",
		2:  "Expansion",
		3:  "Bundle",
		4:  "Standalone expansion",
		5:  "Mod",
		6:  "Episode",
		7:  "Season",
		8:  "Remake",
		9:  "Remaster",
		10: "Expanded game",
		11: "Port",
		12: "Fork",
		13: "Pack",
		14: "Update",
	}
	return labels[id]
}

func names(items []named) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}
