// cmd/historian/main.go drains relationship events from the Redis audit
// queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/companion/internal/cache"
	"github.com/jason-s-yu/companion/internal/config"
	"github.com/jason-s-yu/companion/internal/database"
	"github.com/jason-s-yu/companion/internal/historian"
	"github.com/jason-s-yu/companion/internal/models"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Postgres.ConnString())
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal(err)
	}

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.Fatal(err)
	}
	defer rdb.Close()

	queue := cache.NewEventQueue(rdb, cfg.AuditQueue)
	sink := func(ctx context.Context, events []models.RelationshipEvent) error {
		return database.InsertRelationshipEvents(ctx, pool, events)
	}

	hs := historian.New(queue, sink, logger)
	hs.BatchSize = cfg.HistorianBatchSize
	hs.FlushDelay = cfg.FlushDelay()

	logger.Infof("draining %s into %s", cfg.AuditQueue, cfg.Postgres.Database)
	hs.Run(ctx)
}
