package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"perftracker/api/analytics"
	"perftracker/api/cache"
	"perftracker/api/config"
	"perftracker/api/database"
	"perftracker/api/handlers"
	"perftracker/api/jobs"
	"perftracker/api/metrics"
	"perftracker/api/middleware"
	"perftracker/api/store"
	"perftracker/api/telemetry"
	"perftracker/api/tracking"
	"perftracker/api/utils"
)

const (
	tokenTTL        = 24 * time.Hour
	productMemoSize = 512
	warmupSchedule  = "@every 30m"
	shutdownTimeout = 5 * time.Second
)

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" || cfg.GinMode == gin.ReleaseMode {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// newCache selects the configured backend. An unreachable Redis falls back to the in-process cache.
func newCache(cfg *config.Config, log *logrus.Logger) cache.Cache {
	if cfg.CacheBackend == "redis" {
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err == nil {
			log.WithField("namespace", cfg.CacheNamespace).Info("Using Redis metrics cache")
			return cache.NewRedisCache(client, cfg.CacheNamespace, cfg.CacheDuration())
		}
		log.WithError(err).Warn("Redis unavailable, falling back to in-memory metrics cache")
	}
	return cache.NewMemoryCache(cfg.CacheMaxEntries, cfg.CacheDuration(), config.MaxCacheDuration)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Error loading .env")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := newLogger(cfg)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- PostgreSQL (events, products, dashboard users) ---
	dbClient, err := database.NewPostgresDB(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize PostgreSQL database")
	}
	defer dbClient.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	eventStore := store.NewEventStore(dbClient.DB, log)
	if err := eventStore.EnsureSchema(startupCtx); err != nil {
		log.WithError(err).Fatal("Failed to create event schema")
	}
	userStore := store.NewUserStore(dbClient.DB)
	if err := userStore.EnsureSchema(startupCtx); err != nil {
		log.WithError(err).Fatal("Failed to create users schema")
	}
	analyticsStore := store.NewAnalyticsStore(eventStore, log)
	productStore := store.NewProductStore(dbClient.DB, cfg.ProductURLTemplate, productMemoSize, cfg.CacheDuration())

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	telem := telemetry.NewMetrics(registry)

	engine := analytics.NewEngine(analyticsStore, productStore, log)
	metricsService := metrics.NewService(engine, newCache(cfg, log), cfg.CacheDuration(), log, telem)

	// --- Optional ClickHouse mirror ---
	opts := tracking.Options{
		Policy:        tracking.PolicyFromConfig(cfg),
		AnonymizeIP:   cfg.AnonymizeIP,
		RetentionDays: cfg.DataRetentionDays,
		Telemetry:     telem,
	}
	if cfg.ClickHouseEnabled() {
		chClient, err := database.NewClickHouseDB(cfg, log)
		if err != nil {
			log.WithError(err).Warn("ClickHouse unavailable, event mirroring disabled")
		} else {
			defer chClient.Close()
			mirror := store.NewClickHouseMirror(chClient, log)
			if err := mirror.EnsureSchema(startupCtx); err != nil {
				log.WithError(err).Warn("Failed to create ClickHouse schema, event mirroring disabled")
			} else {
				opts.Mirror = mirror
			}
		}
	}
	tracker := tracking.NewTracker(eventStore, metricsService, log, opts)

	// --- Background jobs ---
	log.WithField("retention_days", tracker.RetentionDays()).Info("Data retention configured")
	scheduler := jobs.NewScheduler(log)
	if cfg.AutoCleanup {
		if err := scheduler.ScheduleCleanup(cfg.CleanupSchedule, tracker); err != nil {
			log.WithError(err).Fatal("Invalid cleanup schedule")
		}
	}
	if cfg.CacheWarmup {
		if err := scheduler.ScheduleWarmup(warmupSchedule, metricsService); err != nil {
			log.WithError(err).Fatal("Invalid warmup schedule")
		}
		go func() {
			if err := metricsService.Warmup(context.Background()); err != nil {
				log.WithError(err).Warn("Startup cache warmup failed")
			}
		}()
	}
	scheduler.Start()

	// --- HTTP ---
	tokens := utils.NewTokenManager(cfg.JWTSecret, tokenTTL)
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET_KEY is not set, dashboard logins are disabled")
	}
	secureCookies := cfg.GinMode == gin.ReleaseMode

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics(telem), middleware.CORSMiddleware(cfg.FEOrigin))
	r.GET("/metrics", gin.WrapH(telemetry.Handler(registry)))

	handlers.Routes{
		Auth:  middleware.NewAuth(tokens, cfg.AuthDefault, log),
		Users: handlers.NewAuthHandlers(userStore, tokens, log),
		Track: handlers.NewTrackHandlers(tracker, log, secureCookies),
		Stats: handlers.NewStatsHandlers(metricsService, log),
		Admin: handlers.NewAdminHandlers(eventStore, metricsService, tracker, log),
	}.Register(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Performance tracker API starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("API server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	scheduler.Stop(ctx)

	log.Info("Server exiting.")
}
