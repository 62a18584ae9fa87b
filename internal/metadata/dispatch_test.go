package metadata

import (
	"context"
	"testing"
	"time"

	"trackarr/internal/cache"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/models"
)

type fakeProvider struct {
	fetches  int
	searches int
	meta     *Metadata
	page     *SearchPage
	err      error
}

func (p *fakeProvider) Fetch(ctx context.Context, ref MediaRef) (*Metadata, error) {
	p.fetches++
	if p.err != nil {
		return nil, p.err
	}
	return p.meta, nil
}

func (p *fakeProvider) Search(ctx context.Context, mediaType models.MediaType, query string, page int) (*SearchPage, error) {
	p.searches++
	if p.err != nil {
		return nil, p.err
	}
	return p.page, nil
}

func testCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.OpenInMemory(time.Hour)
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDispatcher_FetchReadThrough(t *testing.T) {
	p := &fakeProvider{meta: &Metadata{
		MediaID:   "1668",
		Source:    models.SourceTMDB,
		MediaType: models.MediaTypeTV,
		Title:     "Frieren",
	}}

	d := NewDispatcher(testCache(t))
	d.Register(models.SourceTMDB, models.MediaTypeTV, p)

	ref := MediaRef{Source: models.SourceTMDB, MediaType: models.MediaTypeTV, MediaID: "1668"}

	first, err := d.Fetch(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Title != "Frieren" {
		t.Errorf("title = %q, want Frieren", first.Title)
	}

	second, err := d.Fetch(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Title != "Frieren" {
		t.Errorf("cached title = %q, want Frieren", second.Title)
	}
	if p.fetches != 1 {
		t.Errorf("upstream fetches = %d, second read should come from cache", p.fetches)
	}
}

func TestDispatcher_FetchWithoutCache(t *testing.T) {
	p := &fakeProvider{meta: &Metadata{Title: "Frieren"}}
	d := NewDispatcher(nil)
	d.Register(models.SourceTMDB, models.MediaTypeTV, p)

	ref := MediaRef{Source: models.SourceTMDB, MediaType: models.MediaTypeTV, MediaID: "1668"}
	for i := 0; i < 2; i++ {
		if _, err := d.Fetch(context.Background(), ref); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if p.fetches != 2 {
		t.Errorf("fetches = %d, want 2 without a cache", p.fetches)
	}
}

func TestDispatcher_FetchUnknownRoute(t *testing.T) {
	d := NewDispatcher(nil)

	_, err := d.Fetch(context.Background(), MediaRef{
		Source: models.SourceIGDB, MediaType: models.MediaTypeGame, MediaID: "1",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsValidationError(err) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestDispatcher_FetchErrorNotCached(t *testing.T) {
	p := &fakeProvider{err: apperrors.ProviderAPIError("tmdb", 500, "", nil)}
	d := NewDispatcher(testCache(t))
	d.Register(models.SourceTMDB, models.MediaTypeMovie, p)

	ref := MediaRef{Source: models.SourceTMDB, MediaType: models.MediaTypeMovie, MediaID: "9"}
	for i := 0; i < 2; i++ {
		if _, err := d.Fetch(context.Background(), ref); err == nil {
			t.Fatal("expected error")
		}
	}
	if p.fetches != 2 {
		t.Errorf("fetches = %d, failures must not be cached", p.fetches)
	}
}

func TestDispatcher_SearchCached(t *testing.T) {
	p := &fakeProvider{page: &SearchPage{
		Page:         1,
		TotalPages:   1,
		TotalResults: 1,
		Results:      []Stub{{MediaID: "1668", Title: "Frieren"}},
	}}
	d := NewDispatcher(testCache(t))
	d.Register(models.SourceTMDB, models.MediaTypeTV, p)

	for i := 0; i < 2; i++ {
		page, err := d.Search(context.Background(), models.SourceTMDB, models.MediaTypeTV, "frieren", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Results) != 1 || page.Results[0].Title != "Frieren" {
			t.Errorf("unexpected results: %+v", page.Results)
		}
	}
	if p.searches != 1 {
		t.Errorf("upstream searches = %d, second read should come from cache", p.searches)
	}
}

func TestDispatcher_Supported(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register(models.SourceMAL, models.MediaTypeAnime, &fakeProvider{})

	if !d.Supported(models.SourceMAL, models.MediaTypeAnime) {
		t.Error("registered route should be supported")
	}
	if d.Supported(models.SourceMAL, models.MediaTypeManga) {
		t.Error("unregistered route should not be supported")
	}
}

func TestCacheKeyFor(t *testing.T) {
	season := 2
	episode := 5

	tests := []struct {
		ref      MediaRef
		expected string
	}{
		{
			MediaRef{Source: models.SourceTMDB, MediaType: models.MediaTypeTV, MediaID: "1668"},
			"tmdb_tv_1668",
		},
		{
			MediaRef{Source: models.SourceTMDB, MediaType: models.MediaTypeSeason, MediaID: "1668", Season: &season},
			"tmdb_season_1668_s2",
		},
		{
			MediaRef{Source: models.SourceTMDB, MediaType: models.MediaTypeEpisode, MediaID: "1668", Season: &season, Episode: &episode},
			"tmdb_episode_1668_s2_e5",
		},
	}

	for _, tt := range tests {
		if got := cacheKeyFor(tt.ref); got != tt.expected {
			t.Errorf("cacheKeyFor(%s) = %q, want %q", tt.ref, got, tt.expected)
		}
	}
}
