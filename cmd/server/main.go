package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/api"
	"github.com/jstittsworth/fantasy-advisor/internal/api/handlers"
	"github.com/jstittsworth/fantasy-advisor/internal/cache"
	"github.com/jstittsworth/fantasy-advisor/internal/ingest"
	"github.com/jstittsworth/fantasy-advisor/internal/injury"
	"github.com/jstittsworth/fantasy-advisor/internal/jobs"
	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/internal/notify"
	"github.com/jstittsworth/fantasy-advisor/internal/opponent"
	"github.com/jstittsworth/fantasy-advisor/internal/projection"
	"github.com/jstittsworth/fantasy-advisor/internal/providers"
	"github.com/jstittsworth/fantasy-advisor/internal/services"
	"github.com/jstittsworth/fantasy-advisor/internal/store"
	"github.com/jstittsworth/fantasy-advisor/internal/trade"
	"github.com/jstittsworth/fantasy-advisor/internal/valuation"
	"github.com/jstittsworth/fantasy-advisor/internal/waiver"
	"github.com/jstittsworth/fantasy-advisor/internal/websocket"
	"github.com/jstittsworth/fantasy-advisor/pkg/config"
	"github.com/jstittsworth/fantasy-advisor/pkg/database"
	"github.com/jstittsworth/fantasy-advisor/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Open(database.Options{URL: cfg.DatabaseURL, Logger: log})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(models.All()...); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Connect to Redis
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opt)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, log)
	dataStore := store.NewCachedStore(store.NewGormStore(db, log), redisCache, cfg.CacheTTL, log)
	clock := clockwork.NewRealClock()

	loc, err := time.LoadLocation(cfg.LeagueTimezone)
	if err != nil {
		log.Warnf("Invalid league timezone %q, using UTC: %v", cfg.LeagueTimezone, err)
		loc = time.UTC
	}

	// Initialize data feed
	feed := providers.NewSleeperClient(providers.SleeperConfig{
		BaseURL:          cfg.SleeperBaseURL,
		RequestsPerSec:   float64(cfg.FeedRateLimit),
		Timeout:          cfg.FeedTimeout,
		BreakerThreshold: cfg.CircuitBreakerThreshold,
	}, log)

	// Initialize engines
	projector := projection.NewEngine(dataStore, cfg.ProjectionLookback, log)
	valuer := valuation.NewEngine(dataStore, redisCache, cfg.CacheTTL, cfg.ValuationLookback, log)
	learner := opponent.NewLearner(dataStore, log)
	trades := trade.NewGenerator(dataStore, valuer, learner, cfg.TradeTopN, log)
	waivers := waiver.NewRecommender(dataStore, feed, projector, cfg.WaiverTopN, log)
	syncer := ingest.NewSyncer(feed, dataStore, projector, learner, clock, cfg.BackfillDelay, log)

	// Notifications
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	dispatcher := notify.NewMultiDispatcher(
		notify.NewLogDispatcher(log),
		notify.NewHubDispatcher(hub, dataStore, log),
		notify.NewSMSDispatcher(newSMSSender(cfg, log), dataStore, log),
	)

	var monitor *injury.Monitor
	if cfg.EnableInjuryMonitor {
		monitor = injury.NewMonitor(dataStore, feed, nil, dispatcher, clock, injury.Config{
			DefaultInterval: cfg.MonitorDefaultInterval,
			UrgentInterval:  cfg.MonitorUrgentInterval,
			DefaultTimezone: cfg.LeagueTimezone,
		}, log)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	var runner *jobs.Runner
	if cfg.EnableBackgroundJobs {
		runner = jobs.NewRunner(ctx, loc, clock, log)
		if err := jobs.RegisterDefaults(runner, syncer); err != nil {
			log.Fatalf("Failed to register jobs: %v", err)
		}
		if err := runner.Start(); err != nil {
			log.Fatalf("Failed to start job runner: %v", err)
		}
		defer runner.Stop()
	}

	deps := services.Deps{
		Store:     dataStore,
		Projector: projector,
		Valuer:    valuer,
		Trades:    trades,
		Waivers:   waivers,
		Bids:      waivers.Calculator(),
		Leagues:   syncer,
		Clock:     clock,
	}
	if monitor != nil {
		deps.Monitor = monitor
	}
	advisor := services.NewAdvisor(deps, log)

	routerDeps := api.RouterDeps{
		Advisor: advisor,
		Health: handlers.NewHealthHandler(map[string]handlers.Checker{
			"cache":    redisCache,
			"database": handlers.CheckerFunc(db.Ping),
		}, clock),
		WebSocket:   hub.HandleWebSocket,
		CorsOrigins: cfg.CorsOrigins,
		Logger:      log,
	}
	if runner != nil {
		routerDeps.Jobs = runner
	}
	router := api.NewRouter(routerDeps)

	for _, route := range router.Routes() {
		log.Debugf("%s %s", route.Method, route.Path)
	}

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func newSMSSender(cfg *config.Config, log *logrus.Logger) notify.SMSSender {
	if cfg.SMSProvider != "twilio" {
		return notify.NewMockSMSSender(log)
	}
	limiter := notify.NewSMSRateLimiter(cfg.SMSRateLimit, time.Hour)
	return notify.NewTwilioSMSSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, limiter, log)
}
