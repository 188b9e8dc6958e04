package usecase

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/oaipmh/internal/domain"
)

// CommitInput is the validated input for committing a record.
type CommitInput struct {
	Record  *domain.Record
	Changed time.Time
	Delete  *string
}

// RecordUsecase keeps the record index and the change tracker in step.
type RecordUsecase struct {
	core    string
	index   RecordIndex
	tracker ChangeTrackerWriter
	now     func() time.Time
}

func NewRecordUsecase(core string, index RecordIndex, tracker ChangeTrackerWriter) *RecordUsecase {
	if core == "" {
		core = domain.DefaultCore
	}
	return &RecordUsecase{
		core:    core,
		index:   index,
		tracker: tracker,
		now:     time.Now,
	}
}

func (uc *RecordUsecase) Commit(ctx context.Context, input CommitInput) error {
	ctx, span := tracer.Start(ctx, "OAI.Usecase.Commit")
	defer span.End()

	if input.Delete != nil {
		if _, err := uc.tracker.MarkDeleted(ctx, uc.core, *input.Delete); err != nil {
			return errors.Wrap(err, "mark deleted")
		}
		err := uc.index.Remove(ctx, *input.Delete)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return errors.Wrap(err, "remove record")
		}
		return nil
	}

	if input.Record == nil || input.Record.ID == "" {
		return errors.New("record id is required")
	}
	changed := input.Changed
	if changed.IsZero() {
		changed = uc.now()
	}

	entry, err := uc.tracker.Index(ctx, uc.core, input.Record.ID, changed)
	if err != nil {
		return errors.Wrap(err, "update change tracker")
	}

	rec := *input.Record
	rec.LastIndexed = uc.now()
	if entry.LastIndexed != nil {
		rec.LastIndexed = *entry.LastIndexed
	}
	return uc.index.Save(ctx, rec)
}
