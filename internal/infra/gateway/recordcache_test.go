package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/oaipmh/internal/domain"
)

type mockMemcache struct {
	items map[string][]byte
	gets  int
}

func newMockMemcache() *mockMemcache {
	return &mockMemcache{items: map[string][]byte{}}
}

func (m *mockMemcache) Get(key string) (*memcache.Item, error) {
	m.gets++
	value, ok := m.items[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	return &memcache.Item{Key: key, Value: value}, nil
}

func (m *mockMemcache) Set(item *memcache.Item) error {
	m.items[item.Key] = item.Value
	return nil
}

func (m *mockMemcache) Delete(key string) error {
	if _, ok := m.items[key]; !ok {
		return memcache.ErrCacheMiss
	}
	delete(m.items, key)
	return nil
}

type mockSource struct {
	records    map[string]domain.Record
	loads      int
	facetCalls int
	saved      []string
	removed    []string
}

func (m *mockSource) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResult, error) {
	return domain.SearchResult{Total: len(m.records)}, nil
}

func (m *mockSource) Load(ctx context.Context, id string) (domain.Record, error) {
	m.loads++
	rec, ok := m.records[id]
	if !ok {
		return domain.Record{}, domain.NotFoundError{Resource: "record"}
	}
	return rec, nil
}

func (m *mockSource) Facets(ctx context.Context, field string) ([]domain.FacetValue, error) {
	m.facetCalls++
	return []domain.FacetValue{{Value: "Main", DisplayText: "Main", Count: 1}}, nil
}

func (m *mockSource) Save(ctx context.Context, rec domain.Record) error {
	m.saved = append(m.saved, rec.ID)
	m.records[rec.ID] = rec
	return nil
}

func (m *mockSource) Remove(ctx context.Context, id string) error {
	m.removed = append(m.removed, id)
	delete(m.records, id)
	return nil
}

func TestCachedRecordsLoad(t *testing.T) {
	rec := domain.Record{
		ID:          "rec 1",
		LastIndexed: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Fields:      map[string][]string{"title": {"A"}},
	}
	source := &mockSource{records: map[string]domain.Record{"rec 1": rec}}
	mc := newMockMemcache()
	cached := NewCachedRecords(source, source, mc)
	ctx := context.Background()

	got, err := cached.Load(ctx, "rec 1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	got, err = cached.Load(ctx, "rec 1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Equal(t, 1, source.loads)
	assert.NotContains(t, recordKey("rec 1"), " ")

	_, err = cached.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCachedRecordsInvalidate(t *testing.T) {
	source := &mockSource{records: map[string]domain.Record{"r": {ID: "r"}}}
	mc := newMockMemcache()
	cached := NewCachedRecords(source, source, mc)
	ctx := context.Background()

	_, err := cached.Load(ctx, "r")
	require.NoError(t, err)
	_, err = cached.Facets(ctx, "building")
	require.NoError(t, err)

	require.NoError(t, cached.Save(ctx, domain.Record{ID: "r", Fields: map[string][]string{"title": {"B"}}}))
	assert.Empty(t, mc.items)

	got, err := cached.Load(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, got.Values("title"))
	assert.Equal(t, 2, source.loads)

	_, err = cached.Facets(ctx, "building")
	require.NoError(t, err)
	assert.Equal(t, 2, source.facetCalls)

	require.NoError(t, cached.Remove(ctx, "r"))
	assert.Equal(t, []string{"r"}, source.removed)
}

func TestCachedRecordsFacets(t *testing.T) {
	source := &mockSource{records: map[string]domain.Record{}}
	cached := NewCachedRecords(source, source, newMockMemcache())

	for i := 0; i < 3; i++ {
		facets, err := cached.Facets(context.Background(), "building")
		require.NoError(t, err)
		assert.Len(t, facets, 1)
	}
	assert.Equal(t, 1, source.facetCalls)
}
