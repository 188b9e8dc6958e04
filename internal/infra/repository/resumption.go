package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/totegamma/oaipmh/internal/domain"
	"github.com/totegamma/oaipmh/internal/infra/database/models"
)

// ResumptionRepository keeps listing checkpoints in the oai_resumptions table.
type ResumptionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewResumptionRepository(db *gorm.DB) *ResumptionRepository {
	return &ResumptionRepository{db: db, now: time.Now}
}

func (r *ResumptionRepository) Save(ctx context.Context, params map[string]string, expires time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "Repository.Resumption.Save")
	defer span.End()

	row := models.OaiResumption{
		Token:   uuid.NewString(),
		Params:  domain.EncodeParams(params),
		Expires: expires.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "save resumption token")
	}
	return row.Token, nil
}

func (r *ResumptionRepository) Find(ctx context.Context, token string) (domain.Checkpoint, error) {
	ctx, span := tracer.Start(ctx, "Repository.Resumption.Find")
	defer span.End()

	if _, err := r.PurgeExpired(ctx); err != nil {
		return domain.Checkpoint{}, err
	}

	var row models.OaiResumption
	err := r.db.WithContext(ctx).
		Where("token = ? AND expires > ?", token, r.now()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Checkpoint{}, domain.NotFoundError{Resource: "resumption token"}
	}
	if err != nil {
		span.RecordError(err)
		return domain.Checkpoint{}, errors.Wrap(err, "find resumption token")
	}

	params, err := domain.DecodeParams(row.Params)
	if err != nil {
		return domain.Checkpoint{}, errors.Wrapf(err, "decode resumption token %s", token)
	}
	return domain.Checkpoint{Token: row.Token, Params: params, Expires: row.Expires.UTC()}, nil
}

func (r *ResumptionRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires <= ?", r.now()).
		Delete(&models.OaiResumption{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "purge resumption tokens")
	}
	return result.RowsAffected, nil
}
