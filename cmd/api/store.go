package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"companydir/internal/config"
	"companydir/internal/database"
	"companydir/internal/database/migration"
	"companydir/internal/events"
	"companydir/internal/query"
	"companydir/internal/repository"
	"companydir/internal/repository/memory"
	"companydir/internal/repository/mongodb"
	"companydir/internal/repository/postgres"
	"companydir/internal/service"
)

// backend is an opened repository plus the schema step for its driver.
type backend struct {
	repo    repository.CompanyRepository
	migrate func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, err := database.ConnectWithRetry(ctx, log, "mongodb", cfg.Store.ConnectRetries,
			func(ctx context.Context) (*mongo.Client, error) {
				return database.NewMongo(ctx, cfg.Mongo, cfg.Store.Timeout)
			})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		repo := mongodb.NewCompanyMongoDB(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
		return &backend{
			repo: repo,
			migrate: func(ctx context.Context) error {
				names, err := repo.EnsureIndexes(ctx)
				if err != nil {
					return err
				}
				log.Info("mongodb indexes ensured", zap.Strings("indexes", names))
				return nil
			},
		}, nil

	case config.DriverPostgres:
		db, err := database.ConnectWithRetry(ctx, log, "postgres", cfg.Store.ConnectRetries,
			func(ctx context.Context) (*sql.DB, error) {
				return database.NewPostgres(ctx, cfg.Database, cfg.Store.Timeout)
			})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return &backend{
			repo: postgres.NewCompanyPostgres(db),
			migrate: func(ctx context.Context) error {
				return migration.EnsureMigrated(ctx, db, log, cfg.Database.Host)
			},
		}, nil

	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on exit")
		return &backend{
			repo:    memory.NewCompanyMemory(),
			migrate: func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

// openCache returns nil when caching is disabled or Redis is unreachable.
func openCache(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) *redis.Client {
	if !cfg.RedisEnabled() {
		return nil
	}
	rdb, err := database.NewRedis(ctx, cfg.Redis, cfg.Store.Timeout)
	if err != nil {
		log.Warn("redis unavailable, filter values will not be cached",
			zap.String("addr", cfg.Redis.Addr),
			zap.Error(err),
		)
		return nil
	}
	log.Info("caching filter values", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	return rdb
}

func newService(cfg *config.AppConfig, log *zap.Logger, repo repository.CompanyRepository, publisher events.Publisher, rdb *redis.Client) service.CompanyService {
	return service.NewCompanyService(repo, publisher, log, service.Config{
		Builder:      query.NewBuilder(cfg.List.DefaultLimit, cfg.List.MaxLimit),
		StoreTimeout: cfg.Store.Timeout,
		Redis:        rdb,
		CacheTTL:     cfg.Redis.TTL,
	})
}
