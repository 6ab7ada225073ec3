package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/ingest"
	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/opponent"
	"github.com/jstittsworth/fantasy-advisor/internal/projection"
	"github.com/jstittsworth/fantasy-advisor/internal/providers"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/pkg/config"
	"github.com/jstittsworth/fantasy-advisor/pkg/database"
	"github.com/jstittsworth/fantasy-advisor/pkg/logger"
)

// backfill loads historical weekly stats: backfill <season> <from-week> <to-week>
func main() {
	if len(os.Args) < 4 {
		logrus.Fatal("Usage: backfill <season> <from-week> <to-week>")
	}
	args := make([]int, 3)
	for i := range args {
		v, err := strconv.Atoi(os.Args[i+1])
		if err != nil {
			logrus.Fatalf("Invalid argument %q: %v", os.Args[i+1], err)
		}
		args[i] = v
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())

	db, err := database.Open(database.Options{URL: cfg.DatabaseURL, MaxOpenConns: 5, Logger: log})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(models.All()...); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	dataStore := store.NewGormStore(db, log)
	feed := providers.NewSleeperClient(providers.SleeperConfig{
		BaseURL:          cfg.SleeperBaseURL,
		RequestsPerSec:   float64(cfg.FeedRateLimit),
		Timeout:          cfg.FeedTimeout,
		BreakerThreshold: cfg.CircuitBreakerThreshold,
	}, log)
	syncer := ingest.NewSyncer(
		feed,
		dataStore,
		projection.NewEngine(dataStore, cfg.ProjectionLookback, log),
		opponent.NewLearner(dataStore, log),
		clockwork.NewRealClock(),
		cfg.BackfillDelay,
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := syncer.Backfill(ctx, args[0], args[1], args[2])
	if err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}
	log.WithFields(logrus.Fields{
		"processed": result.Processed,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("Backfill finished")
}
