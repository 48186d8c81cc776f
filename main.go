package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"

	database "github.com/MintuTF/tripply/app/db"
	appLogger "github.com/MintuTF/tripply/app/logger"
	"github.com/MintuTF/tripply/app/tracer"
	"github.com/MintuTF/tripply/config"
	"github.com/MintuTF/tripply/internal/api/auth"
	"github.com/MintuTF/tripply/internal/api/chat"
	generativeAI "github.com/MintuTF/tripply/internal/api/generative_ai"
	"github.com/MintuTF/tripply/internal/api/tools"
	"github.com/MintuTF/tripply/internal/api/trip"
	"github.com/MintuTF/tripply/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger(cfg.Mode)
	slog.SetDefault(logger)

	tracer.InitTracingAndMetrics()
	tracer.InitializeMetrics(otel.GetMeterProvider().Meter("tripply"))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Database Setup ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Run migrations before initializing the main pool
	err = database.RunMigrations(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Tool Registry ---
	// One shared result cache for every provider-backed tool; concurrent
	// requests may race to populate it, which only costs a redundant
	// provider call.
	resultCache := cache.New(cfg.Tools.CacheTTL, cfg.Tools.CacheCleanup)

	registry := tools.NewRegistry(logger, cfg.Tools.Timeout)
	registry.Register(tools.NewPlaceSearchTool(cfg.Tools.PlacesBaseURL, resultCache, logger))
	registry.Register(tools.NewWeatherLookupTool(cfg.Tools.WeatherBaseURL, resultCache, logger))
	registry.Register(tools.NewVideoSearchTool(cfg.Tools.VideoBaseURL, resultCache, logger))
	registry.Register(tools.NewWebSearchTool(cfg.Tools.SearchBaseURL, resultCache, logger))

	// --- Model Client & Orchestration ---
	aiClient, err := generativeAI.NewAIClient(ctx, cfg.AI.Model)
	if err != nil {
		logger.Error("Failed to initialize AI client", slog.Any("error", err))
		os.Exit(1)
	}

	chatService := chat.NewChatService(logger, aiClient, registry, &chat.KeywordClassifier{}, cfg.AI.MaxRounds, cfg.AI.Temperature)

	tripRepo := trip.NewRepository(pool, logger)
	chatHandler := chat.NewStreamingHandler(chatService, tripRepo, logger)

	// --- Router Setup ---
	routerConfig := &router.Config{
		ChatHandler:            chatHandler,
		OptionalAuthMiddleware: auth.OptionalAuthenticate(logger, []byte(cfg.JWT.SecretKey)),
	}
	mainRouter := router.SetupRouter(routerConfig)

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Mount("/", mainRouter)

	// --- HTTP Server Setup ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:    serverAddress,
		Handler: mux,
		// SSE responses stay open for the whole turn, so no write
		// timeout here; per-request deadlines come from the client.
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
		ErrorLog:    slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger(mode string) *slog.Logger {
	var logger *slog.Logger

	if mode == "development" || mode == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
