package main

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/companion/internal/auth"
	"github.com/jason-s-yu/companion/internal/cache"
	"github.com/jason-s-yu/companion/internal/config"
	"github.com/jason-s-yu/companion/internal/database"
	"github.com/jason-s-yu/companion/internal/handlers"
	"github.com/jason-s-yu/companion/internal/relationship"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// newSigner loads the session keys from disk when configured, so every
// instance and restart accepts the same tokens.
func newSigner(cfg *config.Config) (*auth.Signer, error) {
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return nil, err
	}
	if cfg.JWTPrivateKeyPath != "" {
		return auth.NewSignerFromFiles(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, ttl)
	}
	return auth.NewSigner(ttl)
}

// newAPIServer builds the store, directory, accounts and audit queue the
// configured backend calls for. cleanup releases every connection opened.
func newAPIServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (api *handlers.APIServer, cleanup func(), err error) {
	var closers []func()
	cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}
	defer func() {
		if err != nil {
			cleanup()
		}
	}()

	signer, err := newSigner(cfg)
	if err != nil {
		return nil, cleanup, err
	}
	if cfg.JWTPrivateKeyPath == "" {
		logger.Warn("no JWT key files configured, sessions end when the process exits")
	}
	api = &handlers.APIServer{Signer: signer, Logger: logger}

	var rdb *redis.Client
	if cfg.StoreBackend == config.BackendRedis || cfg.AuditEnabled {
		rdb, err = cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { rdb.Close() })
	}

	var store relationship.Store
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory relationship store and accounts, state is lost on restart")
		directory := relationship.NewStaticDirectory()
		store = relationship.NewMemoryStore()
		api.Directory = directory
		api.Accounts = auth.NewMemoryAccounts(directory)
	case config.BackendPostgres, config.BackendRedis:
		pool, err := database.Connect(ctx, cfg.Postgres.ConnString())
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, pool.Close)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return nil, cleanup, err
		}
		logger.Infof("Connected to database at %s:%s/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)

		users := database.NewUsers(pool)
		api.Directory = users
		api.Accounts = users
		if cfg.StoreBackend == config.BackendRedis {
			store = cache.NewRelationshipStore(rdb, cfg.Redis.SnapshotKey)
		} else {
			store = database.NewRelationshipStore(pool)
		}
	default:
		return nil, cleanup, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	svc := relationship.NewService(store, api.Directory, logger)
	svc.MaxAttempts = cfg.MaxApplyAttempts
	if cfg.AuditEnabled {
		svc.Events = cache.NewEventQueue(rdb, cfg.AuditQueue)
	}
	api.Relationships = svc
	return api, cleanup, nil
}
