package main

import (
	"context"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/totegamma/oaipmh/internal/config"
	"github.com/totegamma/oaipmh/internal/domain"
	"github.com/totegamma/oaipmh/internal/infra/database"
	"github.com/totegamma/oaipmh/internal/infra/gateway"
	"github.com/totegamma/oaipmh/internal/infra/repository"
	"github.com/totegamma/oaipmh/internal/present/rest"
	"github.com/totegamma/oaipmh/internal/usecase"
)

// deps holds the wired storage layer shared by every command.
type deps struct {
	config   config.Config
	settings domain.Settings

	db  *gorm.DB
	rdb *redis.Client
	mc  *memcache.Client

	tokens  usecase.ResumptionStore
	tracker *repository.ChangeTrackerRepository
	records usecase.RecordSource
	index   usecase.RecordIndex
}

func setup(ctx context.Context, path string) (*deps, error) {
	conf, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	settings, err := conf.Settings()
	if err != nil {
		return nil, err
	}
	if conf.Server.PostgresDsn == "" {
		return nil, errors.New("server.postgresDsn is required")
	}

	d := &deps{config: conf, settings: settings}

	d.db, err = database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	core := settings.Core
	if core == "" {
		core = domain.DefaultCore
	}
	d.tracker = repository.NewChangeTrackerRepository(d.db)
	recordRepo := repository.NewRecordRepository(d.db, core)
	d.records, d.index = recordRepo, recordRepo

	if conf.Server.MemcachedAddr != "" {
		d.mc = database.NewMemcached(conf.Server.MemcachedAddr)
		cached := gateway.NewCachedRecords(recordRepo, recordRepo, d.mc)
		d.records, d.index = cached, cached
	}

	switch conf.Server.ResumptionBackend {
	case config.BackendRedis:
		d.rdb = database.NewRedis(conf.Server.RedisAddr, "", conf.Server.RedisDB)
		if err := database.PingRedis(ctx, d.rdb); err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		d.tokens = repository.NewRedisResumptionStore(d.rdb)
	case config.BackendMemory:
		d.tokens = repository.NewMemoryResumptionStore()
	default:
		d.tokens = repository.NewResumptionRepository(d.db)
	}

	return d, nil
}

func (d *deps) healthChecks() map[string]rest.HealthCheck {
	checks := map[string]rest.HealthCheck{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := d.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if d.rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return d.rdb.Ping(ctx).Err()
		}
	}
	return checks
}

func (d *deps) Close() {
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	if d.db != nil {
		if sqlDB, err := d.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
