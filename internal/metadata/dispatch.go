package metadata

import (
	"context"
	"fmt"

	"trackarr/internal/cache"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/logger"
	"trackarr/internal/models"
)

// Provider fetches and searches one upstream metadata source
type Provider interface {
	Fetch(ctx context.Context, ref MediaRef) (*Metadata, error)
	Search(ctx context.Context, mediaType models.MediaType, query string, page int) (*SearchPage, error)
}

// Fetcher is the read side consumers depend on. The Dispatcher satisfies
// it, so everything downstream of it shares the read-through cache.
type Fetcher interface {
	Fetch(ctx context.Context, ref MediaRef) (*Metadata, error)
}

type routeKey struct {
	source    models.Source
	mediaType models.MediaType
}

// Dispatcher routes metadata requests to the adapter registered for the
// (source, media type) pair, with read-through caching in front.
type Dispatcher struct {
	routes map[routeKey]Provider
	cache  *cache.Cache
	log    *logger.Logger
}

// NewDispatcher creates a dispatcher. The cache may be nil, in which
// case every request goes upstream.
func NewDispatcher(c *cache.Cache) *Dispatcher {
	return &Dispatcher{
		routes: make(map[routeKey]Provider),
		cache:  c,
		log:    logger.AppLogger(),
	}
}

// Register installs p as the adapter for (source, mediaType)
func (d *Dispatcher) Register(source models.Source, mediaType models.MediaType, p Provider) {
	d.routes[routeKey{source, mediaType}] = p
}

// Supported reports whether a (source, mediaType) pair has an adapter
func (d *Dispatcher) Supported(source models.Source, mediaType models.MediaType) bool {
	_, ok := d.routes[routeKey{source, mediaType}]
	return ok
}

// Fetch returns canonical metadata for ref.
//
// Season and episode references route through the show-level adapter:
// the adapter fetches the show with seasons appended once, and the
// season entry is carved out of that response rather than fetched
// separately.
func (d *Dispatcher) Fetch(ctx context.Context, ref MediaRef) (*Metadata, error) {
	p, ok := d.routes[routeKey{ref.Source, ref.MediaType}]
	if !ok {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("no metadata adapter for source %q and media type %q", ref.Source, ref.MediaType))
	}

	key := cacheKeyFor(ref)
	if d.cache != nil {
		var cached Metadata
		hit, err := d.cache.Get(key, &cached)
		if err != nil {
			d.log.WithFields(map[string]interface{}{"key": key}).Warn("metadata cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	meta, err := p.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if err := d.cache.Set(key, meta); err != nil {
			d.log.WithFields(map[string]interface{}{"key": key}).Warn("metadata cache write failed")
		}
	}
	return meta, nil
}

// Search returns one page of results from the adapter for (source, mediaType)
func (d *Dispatcher) Search(ctx context.Context, source models.Source, mediaType models.MediaType, query string, page int) (*SearchPage, error) {
	p, ok := d.routes[routeKey{source, mediaType}]
	if !ok {
		return nil, apperrors.ValidationError(
			fmt.Sprintf("no metadata adapter for source %q and media type %q", source, mediaType))
	}
	if page < 1 {
		page = 1
	}

	key := cache.SearchKey(string(source), string(mediaType), query, page)
	if d.cache != nil {
		var cached SearchPage
		hit, err := d.cache.Get(key, &cached)
		if err != nil {
			d.log.WithFields(map[string]interface{}{"key": key}).Warn("search cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	results, err := p.Search(ctx, mediaType, query, page)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if err := d.cache.Set(key, results); err != nil {
			d.log.WithFields(map[string]interface{}{"key": key}).Warn("search cache write failed")
		}
	}
	return results, nil
}

// cacheKeyFor builds the metadata cache key, folding season and episode
// numbers into the ID segment so tv, season and episode entries never
// collide.
func cacheKeyFor(ref MediaRef) string {
	id := ref.MediaID
	if ref.Season != nil {
		id = fmt.Sprintf("%s_s%d", id, *ref.Season)
	}
	if ref.Episode != nil {
		id = fmt.Sprintf("%s_e%d", id, *ref.Episode)
	}
	return cache.MetadataKey(string(ref.Source), string(ref.MediaType), id)
}
