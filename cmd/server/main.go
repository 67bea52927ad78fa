package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shivanandham/pregnancy-assistant/internal/ai"
	"github.com/shivanandham/pregnancy-assistant/internal/api"
	"github.com/shivanandham/pregnancy-assistant/internal/api/middleware"
	"github.com/shivanandham/pregnancy-assistant/internal/config"
	"github.com/shivanandham/pregnancy-assistant/internal/logx"
	"github.com/shivanandham/pregnancy-assistant/internal/metrics"
	"github.com/shivanandham/pregnancy-assistant/internal/repository/postgres"
	"github.com/shivanandham/pregnancy-assistant/internal/service"
)

func main() {
	// Logging starts in development mode so anything emitted before the
	// config is available still goes through the configured writer.
	logx.Init("development")

	if err := godotenv.Load(".env"); err != nil {
		// Absent .env is the normal case outside local development.
		logx.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to load config")
	}

	logx.Init(cfg.Environment)
	if cfg.AllowUnverifiedCustomTokens {
		logx.Warn().Msg("custom tokens accepted without signature verification; development only")
	}

	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to connect to database")
	}

	repos := postgres.NewRepositories(db)

	generator, err := ai.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise text-generation client")
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	services := service.NewServices(repos, cfg, service.NewGoogleKeySource(), generator, collector)
	services.Extraction.Start()

	scheduler := service.NewScheduler(cfg.SweepTickInterval(), service.Task{
		Name: "session-sweep",
		Run: func(ctx context.Context) error {
			deleted, err := services.Session.SweepExpired(ctx)
			if err != nil {
				return err
			}
			logx.Info().Int64("deleted", deleted).Msg("session sweep")
			return nil
		},
	})
	scheduler.Start()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	router := api.NewRouter(services, repos, cfg, registry, limiter)

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logx.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logx.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logx.Error().Err(err).Msg("forced shutdown")
	}

	scheduler.Stop()
	limiter.Stop()
	services.Extraction.Stop()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	logx.Info().Msg("server stopped")
}
