package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/oaipmh/internal/domain"
)

const resumptionKeyPrefix = "oai:resumption:"

// RedisResumptionStore keeps checkpoints as plain keys and lets redis expire
// them.
type RedisResumptionStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisResumptionStore(rdb *redis.Client) *RedisResumptionStore {
	return &RedisResumptionStore{rdb: rdb, now: time.Now}
}

func (s *RedisResumptionStore) Save(ctx context.Context, params map[string]string, expires time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "Repository.RedisResumption.Save")
	defer span.End()

	ttl := expires.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	token := uuid.NewString()
	err := s.rdb.Set(ctx, resumptionKeyPrefix+token, domain.EncodeParams(params), ttl).Err()
	if err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "save resumption token")
	}
	return token, nil
}

func (s *RedisResumptionStore) Find(ctx context.Context, token string) (domain.Checkpoint, error) {
	ctx, span := tracer.Start(ctx, "Repository.RedisResumption.Find")
	defer span.End()

	key := resumptionKeyPrefix + token
	pipe := s.rdb.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	_, err := pipe.Exec(ctx)
	if errors.Is(err, redis.Nil) {
		return domain.Checkpoint{}, domain.NotFoundError{Resource: "resumption token"}
	}
	if err != nil {
		span.RecordError(err)
		return domain.Checkpoint{}, errors.Wrap(err, "find resumption token")
	}

	params, err := domain.DecodeParams(get.Val())
	if err != nil {
		return domain.Checkpoint{}, errors.Wrapf(err, "decode resumption token %s", token)
	}
	return domain.Checkpoint{
		Token:   token,
		Params:  params,
		Expires: s.now().Add(ttl.Val()).UTC(),
	}, nil
}

// PurgeExpired is a no-op: redis drops expired keys on its own.
func (s *RedisResumptionStore) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}
