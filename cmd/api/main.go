// cmd/api/main.go

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ringsaturn/tzf"
	"go.uber.org/zap"

	"locale/internal/adapter/eventbus"
	"locale/internal/config"
	"locale/internal/domain/event"
	"locale/internal/logger"
	"locale/internal/metrics"
	"locale/internal/server"
	"locale/internal/server/handlers"
	"locale/internal/service/assistant"
	"locale/internal/service/render"
	"locale/internal/service/retrieval"
	"locale/internal/service/search"
	sessionService "locale/internal/service/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	m := metrics.New()

	// Notification transport
	bus, push, connected := initBus(cfg.NATS, zapLogger)
	defer bus.Close()

	// Model client. A missing key keeps the server up and is reported by
	// /api/v1/status and by every search.
	configErr := cfg.MissingKey()
	var client *retrieval.Client
	if configErr == nil {
		gen, err := initGenerator(ctx, cfg.Model)
		if err != nil {
			zapLogger.Fatal("Failed to initialize model client", zap.Error(err))
		}
		client = retrieval.NewClient(gen, retrieval.ClientConfig{
			Mode:          event.Mode(cfg.Retrieval.Mode),
			Timeout:       cfg.Retrieval.Timeout,
			Temperature:   float32(cfg.Model.Temperature),
			EnforceSchema: cfg.Retrieval.EnforceSchema,
		}, zapLogger, m)
	} else {
		zapLogger.Warn("Model provider is not configured", zap.String("provider", cfg.Model.Provider), zap.Error(configErr))
	}

	// Initialize services
	store := sessionService.NewStore(sessionService.StoreConfig{
		IdleTimeout:     cfg.Session.IdleTimeout,
		CleanupInterval: cfg.Session.CleanupInterval,
	}, zapLogger, m)

	renderer := render.NewRenderer(render.Config{
		SummaryLength: cfg.Render.SummaryLength,
		MapsBaseURL:   cfg.Render.MapsBaseURL,
	}, initTimezones(cfg.Render, zapLogger), zapLogger, m)

	var (
		retriever search.Retriever
		generator assistant.Generator
	)
	if client != nil {
		retriever = client
		generator = client
	}

	searchService := search.NewService(store, retriever, configErr, renderer, bus, zapLogger, m)
	assistantService := assistant.NewService(assistant.Config{
		HistoryLimit:     cfg.Assistant.HistoryLimit,
		MaxMessageLength: cfg.Assistant.MaxMessageLength,
		Temperature:      float32(cfg.Model.Temperature),
	}, store, generator, configErr, bus, zapLogger)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg, server.Dependencies{
		Sessions:  store,
		Search:    searchService,
		Assistant: assistantService,
		Bus:       bus,
		Metrics:   m,
		Status: handlers.StatusInfo{
			Provider:  cfg.Model.Provider,
			Mode:      event.Mode(cfg.Retrieval.Mode),
			Push:      push,
			Connected: connected,
			ConfigErr: configErr,
			Sessions:  store.Count,
		},
	}, zapLogger)

	// Start HTTP server
	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("addr", httpServer.Addr()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	zapLogger.Info("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel in-flight searches
	store.Flush()

	zapLogger.Info("Shutdown complete")
}

// initBus connects to NATS when a URL is configured and falls back to the
// in-process bus otherwise. The returned func reports live connectivity.
func initBus(cfg config.NATSConfig, zapLogger *zap.Logger) (eventbus.Bus, string, func() bool) {
	local := func() bool { return true }
	if cfg.URL == "" {
		return eventbus.NewLocalBus(), "local", local
	}

	bus, err := eventbus.Connect(cfg, zapLogger)
	if err != nil {
		zapLogger.Warn("NATS unavailable, using in-process notifications", zap.String("url", cfg.URL), zap.Error(err))
		return eventbus.NewLocalBus(), "local", local
	}
	return bus, "nats", bus.Connected
}

// initGenerator creates the provider client named by the configuration
func initGenerator(ctx context.Context, cfg config.ModelConfig) (retrieval.Generator, error) {
	if cfg.Provider == config.ProviderOpenAI {
		return retrieval.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIURL), nil
	}
	return retrieval.NewGeminiGenerator(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
}

// initTimezones loads the offline timezone finder
func initTimezones(cfg config.RenderConfig, zapLogger *zap.Logger) render.TimezoneFinder {
	if !cfg.Timezones {
		return nil
	}

	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		zapLogger.Warn("Timezone lookup disabled", zap.Error(err))
		return nil
	}
	return finder
}
