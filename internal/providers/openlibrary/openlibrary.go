package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sourcegraph/conc/pool"

	apperrors "trackarr/internal/errors"
	"trackarr/internal/httpclient"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
)

const (
	searchURL = "https://openlibrary.org/search.json"
	worksURL  = "https://openlibrary.org/works"
	siteURL   = "https://openlibrary.org"

	// maxConcurrentAuthors bounds the author fan-out so one work with a
	// long contributor list cannot monopolize the rate budget
	maxConcurrentAuthors = 4

	providerName = "openlibrary"
)

// Client is the Open Library metadata adapter. Open Library needs no
// API key; its budget is enforced purely by the shared rate limiter.
type Client struct {
	http    *httpclient.Client
	noImage string
}

// New creates an Open Library adapter
func New(http *httpclient.Client, noImageURL string) *Client {
	return &Client{http: http, noImage: noImageURL}
}

type workResponse struct {
	Key         string          `json:"key"`
	Title       string          `json:"title"`
	Covers      []int           `json:"covers"`
	Description json.RawMessage `json:"description"`
	Subjects    []string        `json:"subjects"`
	Authors     []struct {
		Author struct {
			Key string `json:"key"`
		} `json:"author"`
	} `json:"authors"`
}

// Fetch returns canonical metadata for an Open Library reference
func (c *Client) Fetch(ctx context.Context, ref metadata.MediaRef) (*metadata.Metadata, error) {
	if ref.MediaType != models.MediaTypeBook {
		return nil, apperrors.ValidationError(fmt.Sprintf("openlibrary does not serve media type %q", ref.MediaType))
	}
	return c.Book(ctx, ref.MediaID)
}

// Book fetches one work's metadata, resolving author names concurrently
func (c *Client) Book(ctx context.Context, mediaID string) (*metadata.Metadata, error) {
	var resp workResponse
	if err := c.http.GetJSON(ctx, providerName, fmt.Sprintf("%s/%s.json", worksURL, mediaID), nil, nil, &resp); err != nil {
		return nil, err
	}

	details := map[string]interface{}{}
	if author := c.fetchAuthors(ctx, &resp); author != "" {
		details["author"] = author
	}
	if len(resp.Subjects) > 0 {
		subjects := resp.Subjects
		if len(subjects) > 5 {
			subjects = subjects[:5]
		}
		details["genres"] = strings.Join(subjects, ", ")
	}

	return &metadata.Metadata{
		MediaID:   mediaID,
		Source:    models.SourceOpenLibrary,
		MediaType: models.MediaTypeBook,
		Title:     resp.Title,
		Image:     c.coverURL(resp.Covers),
		Synopsis:  description(resp.Description),
		Details:   details,
	}, nil
}

// Search queries Open Library works. Results come back as one fixed page.
func (c *Client) Search(ctx context.Context, mediaType models.MediaType, query string, page int) (*metadata.SearchPage, error) {
	if mediaType != models.MediaTypeBook {
		return nil, apperrors.ValidationError(fmt.Sprintf("openlibrary does not serve media type %q", mediaType))
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "key,title,cover_i,author_name,first_publish_year")
	params.Set("limit", "25")

	var resp struct {
		Docs []struct {
			Key    string `json:"key"`
			Title  string `json:"title"`
			CoverI int    `json:"cover_i"`
		} `json:"docs"`
	}
	if err := c.http.GetJSON(ctx, providerName, searchURL, params, nil, &resp); err != nil {
		return nil, err
	}

	results := make([]metadata.Stub, 0, len(resp.Docs))
	for _, doc := range resp.Docs {
		if doc.Key == "" || doc.Title == "" {
			continue
		}
		image := c.noImage
		if doc.CoverI != 0 {
			image = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverI)
		}
		results = append(results, metadata.Stub{
			MediaID:   lastSegment(doc.Key),
			Source:    models.SourceOpenLibrary,
			MediaType: models.MediaTypeBook,
			Title:     doc.Title,
			Image:     image,
		})
	}

	return &metadata.SearchPage{
		Page:         1,
		TotalPages:   1,
		TotalResults: len(results),
		Results:      results,
	}, nil
}

// fetchAuthors resolves the work's author references in parallel and
// joins the names. Individual author failures just drop that name.
func (c *Client) fetchAuthors(ctx context.Context, resp *workResponse) string {
	if len(resp.Authors) == 0 {
		return ""
	}

	p := pool.NewWithResults[string]().
		WithContext(ctx).
		WithMaxGoroutines(maxConcurrentAuthors)

	for _, entry := range resp.Authors {
		key := entry.Author.Key
		if key == "" {
			continue
		}
		p.Go(func(ctx context.Context) (string, error) {
			var author struct {
				Name string `json:"name"`
			}
			if err := c.http.GetJSON(ctx, providerName, siteURL+key+".json", nil, nil, &author); err != nil {
				return "", nil
			}
			return author.Name, nil
		})
	}

	names, err := p.Wait()
	if err != nil {
		return ""
	}

	var kept []string
	for _, n := range names {
		if n != "" {
			kept = append(kept, n)
		}
	}
	return strings.Join(kept, ", ")
}

func (c *Client) coverURL(covers []int) string {
	if len(covers) == 0 {
		return c.noImage
	}
	return fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", covers[0])
}

// description handles the two shapes Open Library uses: a plain string
// or an object with a "value" field
func description(raw json.RawMessage) string {
	if len(raw) == 0 {
		return metadata.NoSynopsis
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return metadata.NormalizeSynopsis(plain)
	}

	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &typed); err == nil {
		return metadata.NormalizeSynopsis(typed.Value)
	}
	return metadata.NoSynopsis
}

func lastSegment(key string) string {
	parts := strings.Split(key, "/")
	return parts[len(parts)-1]
}
