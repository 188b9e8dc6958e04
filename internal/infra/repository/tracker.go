package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/oaipmh/internal/domain"
	"github.com/totegamma/oaipmh/internal/infra/database/models"
)

type ChangeTrackerRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewChangeTrackerRepository(db *gorm.DB) *ChangeTrackerRepository {
	return &ChangeTrackerRepository{db: db, now: time.Now}
}

func (r *ChangeTrackerRepository) deletedIn(ctx context.Context, core string, from, until time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.ChangeTracker{}).
		Where("core = ? AND deleted IS NOT NULL AND deleted >= ? AND deleted <= ?", core, from, until)
}

func (r *ChangeTrackerRepository) CountDeleted(ctx context.Context, core string, from, until time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Repository.ChangeTracker.CountDeleted")
	defer span.End()

	var count int64
	err := r.deletedIn(ctx, core, from, until).Count(&count).Error
	if err != nil {
		span.RecordError(err)
		return 0, errors.Wrap(err, "count deleted")
	}
	return int(count), nil
}

func (r *ChangeTrackerRepository) ListDeleted(ctx context.Context, core string, from, until time.Time, offset, limit int) ([]domain.DeletedRecord, error) {
	ctx, span := tracer.Start(ctx, "Repository.ChangeTracker.ListDeleted")
	defer span.End()

	var rows []models.ChangeTracker
	err := r.deletedIn(ctx, core, from, until).
		Order("deleted ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "list deleted")
	}

	result := make([]domain.DeletedRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.DeletedRecord{ID: row.ID, Deleted: row.Deleted.UTC()})
	}
	return result, nil
}

func (r *ChangeTrackerRepository) Retrieve(ctx context.Context, core, id string) (domain.TrackerEntry, error) {
	ctx, span := tracer.Start(ctx, "Repository.ChangeTracker.Retrieve")
	defer span.End()

	var row models.ChangeTracker
	err := r.db.WithContext(ctx).Where("core = ? AND id = ?", core, id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.TrackerEntry{}, domain.NotFoundError{Resource: "change tracker entry"}
	}
	if err != nil {
		span.RecordError(err)
		return domain.TrackerEntry{}, errors.Wrap(err, "retrieve change tracker entry")
	}
	return trackerEntry(row), nil
}

// Index records that id was (re)indexed. last_indexed only moves when the
// record changed after the last known change, or when it was deleted before.
func (r *ChangeTrackerRepository) Index(ctx context.Context, core, id string, changed time.Time) (domain.TrackerEntry, error) {
	ctx, span := tracer.Start(ctx, "Repository.ChangeTracker.Index")
	defer span.End()

	now := r.now().UTC().Truncate(time.Second)
	changed = changed.UTC().Truncate(time.Second)

	var row models.ChangeTracker
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("core = ? AND id = ?", core, id).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.ChangeTracker{
				Core:             core,
				ID:               id,
				FirstIndexed:     now,
				LastIndexed:      now,
				LastRecordChange: changed,
			}
			return tx.Create(&row).Error
		}
		if err != nil {
			return err
		}

		if row.Deleted == nil && !row.LastRecordChange.Before(changed) {
			return nil
		}
		if row.FirstIndexed.IsZero() {
			row.FirstIndexed = now
		}
		row.LastIndexed = now
		row.LastRecordChange = changed
		row.Deleted = nil
		return tx.Model(&models.ChangeTracker{}).
			Where("core = ? AND id = ?", core, id).
			Updates(map[string]any{
				"first_indexed":      row.FirstIndexed,
				"last_indexed":       row.LastIndexed,
				"last_record_change": row.LastRecordChange,
				"deleted":            nil,
			}).Error
	})
	if err != nil {
		span.RecordError(err)
		return domain.TrackerEntry{}, errors.Wrap(err, "index change tracker entry")
	}
	return trackerEntry(row), nil
}

// MarkDeleted stamps id as deleted. An already deleted entry keeps its
// original deletion time.
func (r *ChangeTrackerRepository) MarkDeleted(ctx context.Context, core, id string) (domain.TrackerEntry, error) {
	ctx, span := tracer.Start(ctx, "Repository.ChangeTracker.MarkDeleted")
	defer span.End()

	now := r.now().UTC().Truncate(time.Second)

	var row models.ChangeTracker
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("core = ? AND id = ?", core, id).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.ChangeTracker{
				Core:             core,
				ID:               id,
				FirstIndexed:     now,
				LastIndexed:      now,
				LastRecordChange: now,
				Deleted:          &now,
			}
			return tx.Create(&row).Error
		}
		if err != nil {
			return err
		}
		if row.Deleted != nil {
			return nil
		}

		row.Deleted = &now
		return tx.Model(&models.ChangeTracker{}).
			Where("core = ? AND id = ?", core, id).
			Update("deleted", now).Error
	})
	if err != nil {
		span.RecordError(err)
		return domain.TrackerEntry{}, errors.Wrap(err, "mark change tracker entry deleted")
	}
	return trackerEntry(row), nil
}

func trackerEntry(row models.ChangeTracker) domain.TrackerEntry {
	entry := domain.TrackerEntry{
		Core:             row.Core,
		ID:               row.ID,
		FirstIndexed:     timePtr(row.FirstIndexed),
		LastIndexed:      timePtr(row.LastIndexed),
		LastRecordChange: timePtr(row.LastRecordChange),
	}
	if row.Deleted != nil {
		deleted := row.Deleted.UTC()
		entry.Deleted = &deleted
	}
	return entry
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
