package repository

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/totegamma/oaipmh/internal/domain"
)

// MemoryResumptionStore keeps checkpoints in process. Tokens do not survive
// a restart and are not shared between instances.
type MemoryResumptionStore struct {
	cache *cache.Cache
	now   func() time.Time
}

func NewMemoryResumptionStore() *MemoryResumptionStore {
	return &MemoryResumptionStore{
		cache: cache.New(24*time.Hour, 10*time.Minute),
		now:   time.Now,
	}
}

func (s *MemoryResumptionStore) Save(ctx context.Context, params map[string]string, expires time.Time) (string, error) {
	ttl := expires.Sub(s.now())
	if ttl <= 0 {
		ttl = time.Millisecond
	}

	token := uuid.NewString()
	s.cache.Set(token, domain.Checkpoint{
		Token:   token,
		Params:  maps.Clone(params),
		Expires: expires.UTC(),
	}, ttl)
	return token, nil
}

func (s *MemoryResumptionStore) Find(ctx context.Context, token string) (domain.Checkpoint, error) {
	cached, found := s.cache.Get(token)
	if !found {
		return domain.Checkpoint{}, domain.NotFoundError{Resource: "resumption token"}
	}
	cp := cached.(domain.Checkpoint)
	if !cp.Expires.After(s.now()) {
		s.cache.Delete(token)
		return domain.Checkpoint{}, domain.NotFoundError{Resource: "resumption token"}
	}
	cp.Params = maps.Clone(cp.Params)
	return cp, nil
}

func (s *MemoryResumptionStore) PurgeExpired(ctx context.Context) (int64, error) {
	before := s.cache.ItemCount()
	s.cache.DeleteExpired()
	return int64(before - s.cache.ItemCount()), nil
}
