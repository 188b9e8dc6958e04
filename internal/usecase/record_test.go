package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/totegamma/oaipmh/internal/domain"
)

type mockRecordIndex struct {
	saved   []domain.Record
	removed string
}

func (m *mockRecordIndex) Save(ctx context.Context, rec domain.Record) error {
	m.saved = append(m.saved, rec)
	return nil
}

func (m *mockRecordIndex) Remove(ctx context.Context, id string) error {
	m.removed = id
	return domain.NotFoundError{Resource: "record"}
}

type mockTrackerWriter struct {
	indexed string
	changed time.Time
	deleted string
}

func (m *mockTrackerWriter) Index(ctx context.Context, core, id string, changed time.Time) (domain.TrackerEntry, error) {
	m.indexed = id
	m.changed = changed
	indexed := testNow
	return domain.TrackerEntry{Core: core, ID: id, LastIndexed: &indexed, LastRecordChange: &changed}, nil
}

func (m *mockTrackerWriter) MarkDeleted(ctx context.Context, core, id string) (domain.TrackerEntry, error) {
	m.deleted = id
	deleted := testNow
	return domain.TrackerEntry{Core: core, ID: id, Deleted: &deleted}, nil
}

func TestRecordUsecaseCommitCreate(t *testing.T) {
	index := &mockRecordIndex{}
	tracker := &mockTrackerWriter{}
	uc := NewRecordUsecase("", index, tracker)

	changed := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	input := CommitInput{
		Record:  &domain.Record{ID: "rec-1", Fields: map[string][]string{"title": {"x"}}},
		Changed: changed,
	}

	if err := uc.Commit(context.Background(), input); err != nil {
		t.Fatalf("commit create failed: %v", err)
	}

	if tracker.indexed != "rec-1" || !tracker.changed.Equal(changed) {
		t.Fatalf("expected tracker index for rec-1 at %v, got %s at %v", changed, tracker.indexed, tracker.changed)
	}
	if len(index.saved) != 1 {
		t.Fatalf("expected save to be called once, got %d", len(index.saved))
	}
	if !index.saved[0].LastIndexed.Equal(testNow) {
		t.Fatalf("expected last indexed %v, got %v", testNow, index.saved[0].LastIndexed)
	}
	if !input.Record.LastIndexed.IsZero() {
		t.Fatalf("input record must not be modified")
	}
}

func TestRecordUsecaseCommitDelete(t *testing.T) {
	index := &mockRecordIndex{}
	tracker := &mockTrackerWriter{}
	uc := NewRecordUsecase("biblio", index, tracker)

	id := "rec-2"
	if err := uc.Commit(context.Background(), CommitInput{Delete: &id}); err != nil {
		t.Fatalf("commit delete failed: %v", err)
	}

	if tracker.deleted != id {
		t.Fatalf("expected tracker delete %s got %s", id, tracker.deleted)
	}
	if index.removed != id {
		t.Fatalf("expected remove %s got %s", id, index.removed)
	}
}

func TestRecordUsecaseCommitRequiresID(t *testing.T) {
	uc := NewRecordUsecase("", &mockRecordIndex{}, &mockTrackerWriter{})

	if err := uc.Commit(context.Background(), CommitInput{Record: &domain.Record{}}); err == nil {
		t.Fatalf("expected error for record without id")
	}
	if err := uc.Commit(context.Background(), CommitInput{}); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
