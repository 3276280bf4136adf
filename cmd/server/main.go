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

	"storefront/internal/config"
	handlers "storefront/internal/handlers/shared"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/repositories/interfaces"
	"storefront/internal/repositories/memory"
	"storefront/internal/repositories/mongodb"
	"storefront/internal/services"
	"storefront/pkg/cache"
	"storefront/pkg/database"
	"storefront/pkg/logger"
	"storefront/pkg/storage"
	"storefront/pkg/websocket"
	"storefront/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  cfg.App.LogOutput,
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("Server stopped with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	analyticsRepo, closeRepo, err := newAnalyticsRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	// Live feed
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	m := metrics.New(cfg.App.Name, hub.ClientCount)

	// Realtime counters are optional.
	var realtime services.RealtimeRecorder
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisCache.Close()
		realtime = cache.NewRealtimeCounter(redisCache, cfg.Redis.CounterTTL)
		log.Info("Realtime analytics counters enabled")
	}

	archive, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize archive storage: %w", err)
	}

	analyticsService := services.NewAnalyticsService(
		analyticsRepo,
		realtime,
		hub,
		archive,
		m,
		cfg.Analytics,
		cfg.Storage.Prefix,
		log,
	)

	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, cfg.Analytics.SummaryMaxAge, cfg.Analytics.RetentionDays, log)
	liveHandler := websocket.NewHandler(hub, cfg.WebSocket)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = log.WithComponent("gin").Writer()
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	// Global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	api := router.Group("/api")
	routes.SetupAnalyticsRoutes(api, analyticsHandler, liveHandler, cfg.Security.AdminSecret, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
		})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newAnalyticsRepository(ctx context.Context, cfg *config.Config, log *logger.Logger) (interfaces.AnalyticsRepository, func(), error) {
	if cfg.Database.Driver == config.DatabaseDriverMemory {
		log.Warn("Using in-memory analytics storage; events are lost on restart")
		return memory.NewAnalyticsRepository(), func() {}, nil
	}

	db, err := database.NewMongoDB(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.RunMigrations {
		if err := database.NewMigrator(db.Database, cfg.Analytics.Collection, log).Up(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Warn("Failed to close MongoDB connection")
		}
	}
	return mongodb.NewAnalyticsRepository(db.Database, cfg.Analytics.Collection), closeDB, nil
}
