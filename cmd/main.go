package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Dosada05/lan-tournament/brackets"
	"github.com/Dosada05/lan-tournament/config"
	"github.com/Dosada05/lan-tournament/db"
	"github.com/Dosada05/lan-tournament/handlers"
	"github.com/Dosada05/lan-tournament/metrics"
	"github.com/Dosada05/lan-tournament/middleware"
	"github.com/Dosada05/lan-tournament/repositories"
	api "github.com/Dosada05/lan-tournament/routes"
	"github.com/Dosada05/lan-tournament/services"
	"github.com/Dosada05/lan-tournament/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage", cfg.StorageDriver),
		slog.Int("event_id", cfg.CurrentEventID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище
	var (
		store     repositories.Store
		directory repositories.Directory
		dbConn    *sql.DB
	)
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		dbConn, err = db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()
		if err := db.Migrate(ctx, dbConn, logger); err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
		store = repositories.NewPostgresStore(dbConn)
		directory = repositories.NewPostgresDirectory(dbConn)
		logger.Info("database connection established")
	case config.DriverMemory:
		store = repositories.NewMemoryStore()
		directory = repositories.NewMemoryDirectory()
		logger.Warn("using in-memory storage, state is lost on restart")
	}

	// Архив снимков рейтинга в Cloudflare R2 (необязательно)
	var archiver services.SnapshotArchiver
	if cfg.R2.Enabled() {
		bucket, err := storage.NewR2Store(ctx, cfg.R2, logger)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 store", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewSnapshotArchiver(bucket, directory, cfg.ArchiveKeep, logger)
		logger.Info("Cloudflare R2 snapshot archive enabled", slog.String("bucket", cfg.R2.BucketName))
	}

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Инициализация сервисов
	rankingService := services.NewRankingService(services.RankingServiceDeps{
		Store:     store,
		Directory: directory,
		Archiver:  archiver,
		Notifier:  wsHub,
		Metrics:   m,
		Logger:    logger,
	})
	gameService := services.NewGameService(store, logger)
	registrationService := services.NewRegistrationService(store, directory, wsHub, logger)
	matchService := services.NewMatchService(services.MatchServiceDeps{
		Store:     store,
		Directory: directory,
		Notifier:  wsHub,
		Metrics:   m,
		Logger:    logger,
	})
	poolService := services.NewPoolService(services.PoolServiceDeps{
		Store:     store,
		Directory: directory,
		Notifier:  wsHub,
		Metrics:   m,
		Logger:    logger,
	})
	timeTrialService := services.NewTimeTrialService(store, directory, wsHub, m, logger)
	dashboardService := services.NewDashboardService(rankingService, gameService, poolService, matchService)
	logger.Info("Services initialized")

	go runSnapshotScheduler(ctx, rankingService, cfg.CurrentEventID, cfg.SnapshotInterval, logger)

	// Инициализация обработчиков HTTP
	actionTokens := middleware.NewActionTokens([]byte(cfg.JWTSecretKey), cfg.ActionTokenTTL)
	ingestLimiter, stopLimiter := middleware.NewTokenBucketRateLimiter(cfg.IngestRatePerSecond, cfg.IngestBurst)
	defer stopLimiter()

	dashboardHandler := handlers.NewDashboardHandler(cfg.CurrentEventID, dashboardService, rankingService)
	gameHandler := handlers.NewGameHandler(cfg.CurrentEventID, gameService, registrationService, poolService, matchService)
	actionHandler := handlers.NewActionHandler(cfg.CurrentEventID, registrationService, matchService, directory, actionTokens)
	adminHandler := handlers.NewAdminHandler(cfg.CurrentEventID, gameService, poolService, rankingService, timeTrialService)
	timeTrialHandler := handlers.NewTimeTrialHandler(cfg.CurrentEventID, timeTrialService, cfg.TimeTrialPasswordHash)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins, logger)
	if cfg.TimeTrialPasswordHash == "" {
		logger.Warn("TIMETRIAL_PASSWORD_HASH is not set, time trial ingestion is disabled")
	}

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		api.Options{
			JWTSecret:      []byte(cfg.JWTSecretKey),
			AllowedOrigins: cfg.CORSAllowedOrigins,
			ActionTokens:   actionTokens,
			IngestLimiter:  ingestLimiter,
			Gatherer:       registry,
		},
		dashboardHandler,
		gameHandler,
		actionHandler,
		adminHandler,
		timeTrialHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

// runSnapshotScheduler пытается сделать снимок рейтинга на каждом тике.
// CreateSnapshot сам пропускает слишком частые снимки.
func runSnapshotScheduler(ctx context.Context, rankings services.RankingService, eventID int, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("ranking snapshot scheduler started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			created, err := rankings.CreateSnapshot(ctx, eventID)
			if err != nil {
				logger.Error("Scheduler: snapshot failed", slog.Any("error", err))
				continue
			}
			if created {
				logger.Info("Scheduler: ranking snapshot created", slog.Int("event_id", eventID))
			}
		}
	}
}
