package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/oaipmh/internal/domain"
)

func TestChangeTrackerRepository(t *testing.T) {
	db := testDB(t)
	repo := NewChangeTrackerRepository(db)
	ctx := context.Background()

	clock := time.Date(2022, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	changed := time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC)
	entry, err := repo.Index(ctx, "biblio", "r1", changed)
	require.NoError(t, err)
	require.NotNil(t, entry.LastIndexed)
	assert.Equal(t, clock, *entry.LastIndexed)
	assert.False(t, entry.IsDeleted())

	// same change again leaves last_indexed alone
	clock = clock.Add(time.Hour)
	entry, err = repo.Index(ctx, "biblio", "r1", changed)
	require.NoError(t, err)
	assert.Equal(t, clock.Add(-time.Hour), *entry.LastIndexed)

	entry, err = repo.MarkDeleted(ctx, "biblio", "r1")
	require.NoError(t, err)
	require.True(t, entry.IsDeleted())
	assert.Equal(t, clock, *entry.Deleted)

	_, err = repo.MarkDeleted(ctx, "biblio", "r2")
	require.NoError(t, err)

	from := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	until := clock.Add(time.Hour)
	count, err := repo.CountDeleted(ctx, "biblio", from, until)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountDeleted(ctx, "authority", from, until)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	deleted, err := repo.ListDeleted(ctx, "biblio", from, until, 1, 10)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, "r2", deleted[0].ID)

	// reindexing a deleted record revives it
	entry, err = repo.Index(ctx, "biblio", "r1", changed)
	require.NoError(t, err)
	assert.False(t, entry.IsDeleted())

	got, err := repo.Retrieve(ctx, "biblio", "r1")
	require.NoError(t, err)
	assert.False(t, got.IsDeleted())

	_, err = repo.Retrieve(ctx, "biblio", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
