package hardcover

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"trackarr/internal/config"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/httpclient"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
)

const (
	baseURL = "https://api.hardcover.app/v1/graphql"

	providerName = "hardcover"
)

const searchQuery = `
query SearchBooks($query: String!, $per_page: Int!) {
  search(
    query: $query,
    query_type: "Book",
    per_page: $per_page,
    page: 1
  ) {
    results
  }
}
`

const bookQuery = `
query GetBookDetails($book_id: Int!, $rec_id: bigint!) {
  books_by_pk(id: $book_id) {
    id
    title
    cached_image(path: "url")
    description
    cached_tags(path: "Genre")
    rating
    ratings_count
    pages
    release_date
    slug
    cached_contributors(path: "[0]['author']['name']")
    default_cover_edition {
      edition_format
      isbn_13
      isbn_10
      publisher {
        name
      }
    }
  }
  recommendations(
    where: {
      subject_id: {_eq: $rec_id},
      subject_type: {_eq: "Book"},
      item_type: {_eq: "Book"}
    }
    limit: 10
  ) {
    item_book {
      id
      title
      cached_image(path: "url")
    }
  }
}
`

// Client is the Hardcover metadata adapter. Hardcover is GraphQL-only;
// both operations are POSTs against a single endpoint.
type Client struct {
	http    *httpclient.Client
	apiKey  string
	noImage string
}

// New creates a Hardcover adapter
func New(http *httpclient.Client, cfg config.HardcoverConfig, noImageURL string) *Client {
	return &Client{
		http:    http,
		apiKey:  cfg.APIKey,
		noImage: noImageURL,
	}
}

type bookItem struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	CachedImage string   `json:"cached_image"`
	Description string   `json:"description"`
	CachedTags  []struct {
		Tag string `json:"tag"`
	} `json:"cached_tags"`
	Rating             *float64 `json:"rating"`
	RatingsCount       int      `json:"ratings_count"`
	Pages              *int     `json:"pages"`
	ReleaseDate        string   `json:"release_date"`
	Slug               string   `json:"slug"`
	CachedContributors string   `json:"cached_contributors"`
	DefaultCoverEdition *struct {
		EditionFormat string `json:"edition_format"`
		ISBN13        string `json:"isbn_13"`
		ISBN10        string `json:"isbn_10"`
		Publisher     *struct {
			Name string `json:"name"`
		} `json:"publisher"`
	} `json:"default_cover_edition"`
}

// Fetch returns canonical metadata for a Hardcover reference
func (c *Client) Fetch(ctx context.Context, ref metadata.MediaRef) (*metadata.Metadata, error) {
	if ref.MediaType != models.MediaTypeBook {
		return nil, apperrors.ValidationError(fmt.Sprintf("hardcover does not serve media type %q", ref.MediaType))
	}
	return c.Book(ctx, ref.MediaID)
}

// Book fetches one book's metadata
func (c *Client) Book(ctx context.Context, mediaID string) (*metadata.Metadata, error) {
	bookID, err := strconv.Atoi(mediaID)
	if err != nil {
		return nil, apperrors.ValidationError(fmt.Sprintf("hardcover id %q is not numeric", mediaID))
	}

	var resp struct {
		Data struct {
			BooksByPK       *bookItem `json:"books_by_pk"`
			Recommendations []struct {
				ItemBook *struct {
					ID          int    `json:"id"`
					Title       string `json:"title"`
					CachedImage string `json:"cached_image"`
				} `json:"item_book"`
			} `json:"recommendations"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}

	if err := c.graphql(ctx, bookQuery, map[string]interface{}{
		"book_id": bookID,
		"rec_id":  mediaID,
	}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Errors) > 0 {
		return nil, apperrors.ProviderAPIError(providerName, 0, resp.Errors[0].Message, nil)
	}
	if resp.Data.BooksByPK == nil {
		return nil, apperrors.NotFoundError("book", mediaID)
	}
	b := resp.Data.BooksByPK

	// Hardcover rates 0-5, the shared scale runs 0-10
	var score *float64
	if b.Rating != nil && *b.Rating > 0 {
		score = metadata.RoundScore(*b.Rating * 2)
	}

	var genres []string
	for _, t := range b.CachedTags {
		genres = append(genres, t.Tag)
	}

	details := map[string]interface{}{
		"format":       "Unknown",
		"publish_date": b.ReleaseDate,
		"author":       b.CachedContributors,
	}
	if b.Pages != nil {
		details["number_of_pages"] = *b.Pages
	}
	if e := b.DefaultCoverEdition; e != nil {
		if e.EditionFormat != "" {
			details["format"] = e.EditionFormat
		}
		if e.Publisher != nil {
			details["publisher"] = e.Publisher.Name
		}
		var isbns []string
		if e.ISBN10 != "" {
			isbns = append(isbns, e.ISBN10)
		}
		if e.ISBN13 != "" {
			isbns = append(isbns, e.ISBN13)
		}
		if len(isbns) > 0 {
			details["isbn"] = isbns
		}
	}

	var related []metadata.Stub
	for _, rec := range resp.Data.Recommendations {
		if rec.ItemBook == nil {
			continue
		}
		related = append(related, metadata.Stub{
			MediaID:   fmt.Sprintf("%d", rec.ItemBook.ID),
			Source:    models.SourceHardcover,
			MediaType: models.MediaTypeBook,
			Title:     rec.ItemBook.Title,
			Image:     c.imageOr(rec.ItemBook.CachedImage),
		})
	}

	return &metadata.Metadata{
		MediaID:     mediaID,
		Source:      models.SourceHardcover,
		MediaType:   models.MediaTypeBook,
		Title:       b.Title,
		Image:       c.imageOr(b.CachedImage),
		Synopsis:    metadata.NormalizeSynopsis(b.Description),
		Score:       score,
		MaxProgress: b.Pages,
		Genres:      genres,
		Details:     details,
		Related:     related,
	}, nil
}

// Search queries Hardcover books. Results come back as one fixed page.
func (c *Client) Search(ctx context.Context, mediaType models.MediaType, query string, page int) (*metadata.SearchPage, error) {
	if mediaType != models.MediaTypeBook {
		return nil, apperrors.ValidationError(fmt.Sprintf("hardcover does not serve media type %q", mediaType))
	}

	var resp struct {
		Data struct {
			Search struct {
				Results struct {
					Hits []struct {
						Document struct {
							ID    string `json:"id"`
							Title string `json:"title"`
							Image struct {
								URL string `json:"url"`
							} `json:"image"`
						} `json:"document"`
					} `json:"hits"`
				} `json:"results"`
			} `json:"search"`
		} `json:"data"`
	}

	if err := c.graphql(ctx, searchQuery, map[string]interface{}{
		"query":    query,
		"per_page": 30,
	}, &resp); err != nil {
		return nil, err
	}

	hits := resp.Data.Search.Results.Hits
	results := make([]metadata.Stub, 0, len(hits))
	for _, hit := range hits {
		results = append(results, metadata.Stub{
			MediaID:   hit.Document.ID,
			Source:    models.SourceHardcover,
			MediaType: models.MediaTypeBook,
			Title:     hit.Document.Title,
			Image:     c.imageOr(hit.Document.Image.URL),
		})
	}

	return &metadata.SearchPage{
		Page:         1,
		TotalPages:   1,
		TotalResults: len(results),
		Results:      results,
	}, nil
}

func (c *Client) graphql(ctx context.Context, query string, variables map[string]interface{}, dst interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return apperrors.ValidationError(fmt.Sprintf("encoding graphql request: %v", err))
	}

	headers := map[string]string{"Authorization": c.apiKey}
	return c.http.PostJSON(ctx, providerName, baseURL, body, headers, dst)
}

func (c *Client) imageOr(url string) string {
	return metadata.NormalizeImage(url, c.noImage)
}
