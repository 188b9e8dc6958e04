package usecase

import (
	"context"
	"time"

	"github.com/totegamma/oaipmh/internal/domain"
)

// ResumptionStore persists listing checkpoints behind opaque tokens.
type ResumptionStore interface {
	Save(ctx context.Context, params map[string]string, expires time.Time) (string, error)
	// Find purges expired checkpoints, then loads token. Missing and expired
	// tokens both yield domain.ErrNotFound.
	Find(ctx context.Context, token string) (domain.Checkpoint, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// ChangeTracker is the read side of the change tracker table.
type ChangeTracker interface {
	CountDeleted(ctx context.Context, core string, from, until time.Time) (int, error)
	// ListDeleted pages through deletion events ordered by deletion time, then id.
	ListDeleted(ctx context.Context, core string, from, until time.Time, offset, limit int) ([]domain.DeletedRecord, error)
	Retrieve(ctx context.Context, core, id string) (domain.TrackerEntry, error)
}

// ChangeTrackerWriter records index and delete events.
type ChangeTrackerWriter interface {
	Index(ctx context.Context, core, id string, changed time.Time) (domain.TrackerEntry, error)
	MarkDeleted(ctx context.Context, core, id string) (domain.TrackerEntry, error)
}

// RecordSource is the read side of the live record index.
type RecordSource interface {
	Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResult, error)
	Load(ctx context.Context, id string) (domain.Record, error)
	Facets(ctx context.Context, field string) ([]domain.FacetValue, error)
}

// RecordIndex is the write side of the live record index.
type RecordIndex interface {
	Save(ctx context.Context, rec domain.Record) error
	Remove(ctx context.Context, id string) error
}

// MetadataFormatter renders records in the repository's metadata formats.
type MetadataFormatter interface {
	Formats() []domain.MetadataFormat
	Supports(rec domain.Record, prefix string) bool
	Render(rec domain.Record, prefix string) (string, error)
}

// Observer receives one call per handled OAI request.
type Observer interface {
	RecordRequest(verb, outcome string, duration time.Duration)
}
