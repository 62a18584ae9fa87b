package comicvine

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"trackarr/internal/config"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/httpclient"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
)

const (
	baseURL = "https://comicvine.gamespot.com/api"

	providerName = "comicvine"
)

// ComicVine blocks default Go user agents
var requestHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0",
}

// Client is the Comic Vine metadata adapter
type Client struct {
	http    *httpclient.Client
	apiKey  string
	noImage string
}

// New creates a Comic Vine adapter
func New(http *httpclient.Client, cfg config.ComicVineConfig, noImageURL string) *Client {
	return &Client{
		http:    http,
		apiKey:  cfg.APIKey,
		noImage: noImageURL,
	}
}

type image struct {
	MediumURL string `json:"medium_url"`
}

type volumeResult struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Image         *image `json:"image"`
	SiteDetailURL string `json:"site_detail_url"`
	Description   string `json:"description"`
	StartYear     string `json:"start_year"`
	CountOfIssues int    `json:"count_of_issues"`
	Publisher     *struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"publisher"`
	LastIssue *struct {
		Name        string `json:"name"`
		IssueNumber string `json:"issue_number"`
	} `json:"last_issue"`
	Concepts []struct {
		Name string `json:"name"`
	} `json:"concepts"`
	People []struct {
		Name string `json:"name"`
	} `json:"people"`
}

// Fetch returns canonical metadata for a Comic Vine reference
func (c *Client) Fetch(ctx context.Context, ref metadata.MediaRef) (*metadata.Metadata, error) {
	if ref.MediaType != models.MediaTypeComic {
		return nil, apperrors.ValidationError(fmt.Sprintf("comicvine does not serve media type %q", ref.MediaType))
	}
	return c.Comic(ctx, ref.MediaID)
}

// Comic fetches one volume's metadata
func (c *Client) Comic(ctx context.Context, mediaID string) (*metadata.Metadata, error) {
	params := c.baseParams()
	params.Set("field_list",
		"publisher,site_detail_url,name,last_issue,image,issues,"+
			"description,concepts,start_year,count_of_issues,people")

	var resp struct {
		Results volumeResult `json:"results"`
	}
	target := fmt.Sprintf("%s/volume/4050-%s/", baseURL, mediaID)
	if err := c.http.GetJSON(ctx, providerName, target, params, requestHeaders, &resp); err != nil {
		return nil, err
	}
	v := resp.Results

	details := map[string]interface{}{
		"issues_count": v.CountOfIssues,
	}
	if v.StartYear != "" {
		details["start_date"] = v.StartYear
	}
	if v.Publisher != nil {
		details["publisher"] = v.Publisher.Name
	}
	if v.LastIssue != nil {
		details["last_issue_name"] = v.LastIssue.Name
		if n := GetIssueNumber(v.LastIssue.IssueNumber); n != nil {
			details["last_issue_number"] = *n
		}
	}
	if people := peopleNames(v); len(people) > 0 {
		details["people"] = people
	}

	var maxProgress *int
	if v.LastIssue != nil {
		maxProgress = GetIssueNumber(v.LastIssue.IssueNumber)
	}

	var related []metadata.Stub
	if v.Publisher != nil && v.Publisher.ID != 0 {
		similar, err := c.similarVolumes(ctx, v.Publisher.ID, mediaID)
		if err == nil {
			related = similar
		}
	}

	return &metadata.Metadata{
		MediaID:     mediaID,
		Source:      models.SourceComicVine,
		MediaType:   models.MediaTypeComic,
		Title:       v.Name,
		Image:       c.imageURL(v.Image),
		Synopsis:    StripHTML(v.Description),
		MaxProgress: maxProgress,
		Genres:      conceptNames(v),
		Details:     details,
		Related:     related,
	}, nil
}

// Search queries Comic Vine volumes. Results come back as one fixed page.
func (c *Client) Search(ctx context.Context, mediaType models.MediaType, query string, page int) (*metadata.SearchPage, error) {
	if mediaType != models.MediaTypeComic {
		return nil, apperrors.ValidationError(fmt.Sprintf("comicvine does not serve media type %q", mediaType))
	}

	params := c.baseParams()
	params.Set("query", query)
	params.Set("resources", "volume")
	params.Set("field_list", "id,name,image")
	params.Set("limit", "20")

	var resp struct {
		Results []volumeResult `json:"results"`
	}
	if err := c.http.GetJSON(ctx, providerName, baseURL+"/search/", params, requestHeaders, &resp); err != nil {
		return nil, err
	}

	results := make([]metadata.Stub, 0, len(resp.Results))
	for _, item := range resp.Results {
		results = append(results, metadata.Stub{
			MediaID:   strconv.Itoa(item.ID),
			Source:    models.SourceComicVine,
			MediaType: models.MediaTypeComic,
			Title:     item.Name,
			Image:     c.imageURL(item.Image),
		})
	}

	return &metadata.SearchPage{
		Page:         1,
		TotalPages:   1,
		TotalResults: len(results),
		Results:      results,
	}, nil
}

// similarVolumes lists other volumes from the same publisher, excluding
// the volume being viewed
func (c *Client) similarVolumes(ctx context.Context, publisherID int, currentID string) ([]metadata.Stub, error) {
	const limit = 10

	params := c.baseParams()
	params.Set("field_list", "id,name,image,start_year,publisher")
	params.Set("filter", fmt.Sprintf("publisher:%d", publisherID))
	params.Set("limit", strconv.Itoa(limit+1))

	var resp struct {
		Results []volumeResult `json:"results"`
	}
	if err := c.http.GetJSON(ctx, providerName, baseURL+"/volumes/", params, requestHeaders, &resp); err != nil {
		return nil, err
	}

	var stubs []metadata.Stub
	for _, item := range resp.Results {
		if strconv.Itoa(item.ID) == currentID {
			continue
		}
		stubs = append(stubs, metadata.Stub{
			MediaID:   strconv.Itoa(item.ID),
			Source:    models.SourceComicVine,
			MediaType: models.MediaTypeComic,
			Title:     item.Name,
			Image:     c.imageURL(item.Image),
		})
		if len(stubs) == limit {
			break
		}
	}
	return stubs, nil
}

func (c *Client) baseParams() url.Values {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	return params
}

func (c *Client) imageURL(img *image) string {
	if img == nil || img.MediumURL == "" {
		return c.noImage
	}
	return img.MediumURL
}

func conceptNames(v volumeResult) []string {
	if len(v.Concepts) == 0 {
		return nil
	}
	names := make([]string, 0, len(v.Concepts))
	for _, concept := range v.Concepts {
		names = append(names, concept.Name)
	}
	return names
}

func peopleNames(v volumeResult) []string {
	people := v.People
	if len(people) > 5 {
		people = people[:5]
	}
	names := make([]string, 0, len(people))
	for _, p := range people {
		names = append(names, p.Name)
	}
	return names
}

// GetIssueNumber parses Comic Vine's issue_number field. Double issues
// come as "463-464"; the larger number wins. Non-numeric values yield nil.
func GetIssueNumber(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var max *int
	for _, part := range strings.Split(raw, "-") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil
		}
		if max == nil || n > *max {
			v := n
			max = &v
		}
	}
	return max
}

// StripHTML reduces an HTML description to collapsed plain text
func StripHTML(html string) string {
	if html == "" {
		return metadata.NoSynopsis
	}

	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	collapsed := strings.Join(strings.Fields(b.String()), " ")
	return metadata.NormalizeSynopsis(collapsed)
}
