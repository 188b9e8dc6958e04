package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/oaipmh/internal/domain"
	"github.com/totegamma/oaipmh/internal/infra/database/models"
)

// RecordRepository is the live record index. Field values are stored twice:
// as a JSON document for loading and flattened into record_fields for
// filtering and faceting.
type RecordRepository struct {
	db   *gorm.DB
	core string
}

func NewRecordRepository(db *gorm.DB, core string) *RecordRepository {
	if core == "" {
		core = domain.DefaultCore
	}
	return &RecordRepository{db: db, core: core}
}

func (r *RecordRepository) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Repository.Record.Search")
	defer span.End()

	base := r.db.WithContext(ctx).
		Model(&models.IndexRecord{}).
		Where("core = ? AND last_indexed >= ? AND last_indexed <= ?", r.core, q.From, q.Until)
	for _, filter := range q.Filters {
		base = applyQuery(base, filter)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		span.RecordError(err)
		return domain.SearchResult{}, errors.Wrap(err, "count records")
	}

	result := domain.SearchResult{Total: int(total)}
	if q.Limit <= 0 {
		return result, nil
	}

	var rows []models.IndexRecord
	err := base.
		Order("last_indexed ASC, id ASC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&rows).Error
	if err != nil {
		span.RecordError(err)
		return domain.SearchResult{}, errors.Wrap(err, "search records")
	}

	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return domain.SearchResult{}, err
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// applyQuery adds one EXISTS condition per term.
func applyQuery(db *gorm.DB, q domain.Query) *gorm.DB {
	for _, term := range q.Terms {
		if term.Value == "*" {
			db = db.Where(
				"EXISTS (SELECT 1 FROM record_fields rf WHERE rf.record_id = index_records.id AND rf.field = ?)",
				term.Field,
			)
			continue
		}
		db = db.Where(
			"EXISTS (SELECT 1 FROM record_fields rf WHERE rf.record_id = index_records.id AND rf.field = ? AND rf.value = ?)",
			term.Field, term.Value,
		)
	}
	return db
}

func (r *RecordRepository) Load(ctx context.Context, id string) (domain.Record, error) {
	ctx, span := tracer.Start(ctx, "Repository.Record.Load")
	defer span.End()

	var row models.IndexRecord
	err := r.db.WithContext(ctx).
		Where("id = ? AND core = ?", id, r.core).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Record{}, domain.NotFoundError{Resource: "record"}
	}
	if err != nil {
		span.RecordError(err)
		return domain.Record{}, errors.Wrap(err, "load record")
	}
	return toRecord(row)
}

func (r *RecordRepository) Facets(ctx context.Context, field string) ([]domain.FacetValue, error) {
	ctx, span := tracer.Start(ctx, "Repository.Record.Facets")
	defer span.End()

	type facetRow struct {
		Value string `gorm:"column:value"`
		Count int    `gorm:"column:count"`
	}

	var rows []facetRow
	err := r.db.WithContext(ctx).
		Model(&models.RecordField{}).
		Joins("JOIN index_records ir ON ir.id = record_fields.record_id").
		Select("record_fields.value AS value, COUNT(*) AS count").
		Where("ir.core = ? AND record_fields.field = ?", r.core, field).
		Group("record_fields.value").
		Order("count DESC, value ASC").
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "facet %s", field)
	}

	facets := make([]domain.FacetValue, 0, len(rows))
	for _, row := range rows {
		facets = append(facets, domain.FacetValue{Value: row.Value, DisplayText: row.Value, Count: row.Count})
	}
	return facets, nil
}

func (r *RecordRepository) Save(ctx context.Context, rec domain.Record) error {
	ctx, span := tracer.Start(ctx, "Repository.Record.Save")
	defer span.End()

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return errors.Wrapf(err, "encode record %s", rec.ID)
	}

	lastIndexed := rec.LastIndexed
	if lastIndexed.IsZero() {
		lastIndexed = time.Now()
	}
	row := models.IndexRecord{
		ID:          rec.ID,
		Core:        r.core,
		LastIndexed: lastIndexed.UTC(),
		Fields:      string(fields),
	}

	values := flattenFields(rec)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"core", "last_indexed", "fields"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		if err := tx.Where("record_id = ?", rec.ID).Delete(&models.RecordField{}).Error; err != nil {
			return err
		}
		if len(values) == 0 {
			return nil
		}
		return tx.CreateInBatches(values, 500).Error
	})
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "save record %s", rec.ID)
	}
	return nil
}

func (r *RecordRepository) Remove(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Repository.Record.Remove")
	defer span.End()

	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ?", id).Delete(&models.RecordField{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ? AND core = ?", id, r.core).Delete(&models.IndexRecord{})
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "remove record %s", id)
	}
	if affected == 0 {
		return domain.NotFoundError{Resource: "record"}
	}
	return nil
}

func toRecord(row models.IndexRecord) (domain.Record, error) {
	rec := domain.Record{ID: row.ID, LastIndexed: row.LastIndexed.UTC()}
	if row.Fields != "" {
		if err := json.Unmarshal([]byte(row.Fields), &rec.Fields); err != nil {
			return domain.Record{}, errors.Wrapf(err, "decode record %s", row.ID)
		}
	}
	return rec, nil
}

// maxIndexedValue bounds a record_fields value so it fits the btree index.
// Longer values are cut and only remain complete in the JSON document.
const maxIndexedValue = 512

// flattenFields turns a record into its distinct field/value rows in a
// stable order.
func flattenFields(rec domain.Record) []models.RecordField {
	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows []models.RecordField
	seen := map[[2]string]bool{}
	for _, name := range names {
		for _, value := range rec.Fields[name] {
			if len(value) > maxIndexedValue {
				value = strings.ToValidUTF8(value[:maxIndexedValue], "")
			}
			key := [2]string{name, value}
			if value == "" || seen[key] {
				continue
			}
			seen[key] = true
			rows = append(rows, models.RecordField{RecordID: rec.ID, Field: name, Value: value})
		}
	}
	return rows
}
