package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/oaipmh/internal/domain"
	"github.com/totegamma/oaipmh/internal/usecase"
)

const (
	recordKeyPrefix = "oai:record:"
	recordTTL       = 300 // seconds
)

// Memcache is the subset of *memcache.Client the cache uses.
type Memcache interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

// CachedRecords fronts the record index with memcached for single record
// loads and an in-process cache for facet lists. Searches always go to the
// index so listing pages stay consistent with their counts.
type CachedRecords struct {
	source usecase.RecordSource
	index  usecase.RecordIndex
	mc     Memcache
	facets *cache.Cache
}

func NewCachedRecords(source usecase.RecordSource, index usecase.RecordIndex, mc Memcache) *CachedRecords {
	return &CachedRecords{
		source: source,
		index:  index,
		mc:     mc,
		facets: cache.New(10*time.Minute, 15*time.Minute),
	}
}

var (
	_ usecase.RecordSource = (*CachedRecords)(nil)
	_ usecase.RecordIndex  = (*CachedRecords)(nil)
)

func recordKey(id string) string {
	return recordKeyPrefix + strconv.FormatUint(xxh3.HashString(id), 16)
}

func (c *CachedRecords) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResult, error) {
	return c.source.Search(ctx, q)
}

func (c *CachedRecords) Load(ctx context.Context, id string) (domain.Record, error) {
	key := recordKey(id)

	item, err := c.mc.Get(key)
	if err == nil {
		var rec domain.Record
		if err := json.Unmarshal(item.Value, &rec); err == nil && rec.ID == id {
			return rec, nil
		}
	} else if !errors.Is(err, memcache.ErrCacheMiss) {
		slog.WarnContext(
			ctx, "memcached get failed",
			slog.String("error", err.Error()),
			slog.String("module", "gateway"),
		)
	}

	rec, err := c.source.Load(ctx, id)
	if err != nil {
		return domain.Record{}, err
	}

	value, err := json.Marshal(rec)
	if err == nil {
		err = c.mc.Set(&memcache.Item{Key: key, Value: value, Expiration: recordTTL})
	}
	if err != nil {
		slog.WarnContext(
			ctx, "memcached set failed",
			slog.String("error", err.Error()),
			slog.String("module", "gateway"),
		)
	}
	return rec, nil
}

func (c *CachedRecords) Facets(ctx context.Context, field string) ([]domain.FacetValue, error) {
	if cached, found := c.facets.Get(field); found {
		return cached.([]domain.FacetValue), nil
	}

	facets, err := c.source.Facets(ctx, field)
	if err != nil {
		return nil, err
	}
	c.facets.Set(field, facets, cache.DefaultExpiration)
	return facets, nil
}

func (c *CachedRecords) Save(ctx context.Context, rec domain.Record) error {
	if err := c.index.Save(ctx, rec); err != nil {
		return err
	}
	c.invalidate(ctx, rec.ID)
	return nil
}

func (c *CachedRecords) Remove(ctx context.Context, id string) error {
	err := c.index.Remove(ctx, id)
	c.invalidate(ctx, id)
	return err
}

func (c *CachedRecords) invalidate(ctx context.Context, id string) {
	err := c.mc.Delete(recordKey(id))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		slog.WarnContext(
			ctx, "memcached delete failed",
			slog.String("error", err.Error()),
			slog.String("module", "gateway"),
		)
	}
	c.facets.Flush()
}
