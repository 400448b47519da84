package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prabujayant/LLM-safety-gateway/internal/config"
	"github.com/prabujayant/LLM-safety-gateway/internal/detect"
	"github.com/prabujayant/LLM-safety-gateway/internal/frontdoor"
	"github.com/prabujayant/LLM-safety-gateway/internal/generate"
	"github.com/prabujayant/LLM-safety-gateway/internal/generate/gemini"
	"github.com/prabujayant/LLM-safety-gateway/internal/generate/ollama"
	"github.com/prabujayant/LLM-safety-gateway/internal/history"
	"github.com/prabujayant/LLM-safety-gateway/internal/normalize"
	"github.com/prabujayant/LLM-safety-gateway/internal/server"
	"github.com/prabujayant/LLM-safety-gateway/internal/telemetry"
)

// switchableGenerator lets a config reload swap the generation backend
// without restarting the gateway.
type switchableGenerator struct {
	current atomic.Pointer[generate.Generator]
}

func (s *switchableGenerator) set(gen generate.Generator) {
	s.current.Store(&gen)
}

func (s *switchableGenerator) Name() string {
	return (*s.current.Load()).Name()
}

func (s *switchableGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return (*s.current.Load()).Generate(ctx, prompt)
}

func buildGenerator(cfg *config.Config) generate.Generator {
	if cfg.Generation.Provider == "gemini" {
		return gemini.NewClient(cfg.Generation.Gemini.APIKey,
			gemini.WithModel(cfg.Generation.Gemini.Model))
	}
	return ollama.NewClient(
		ollama.WithBaseURL(cfg.Generation.Ollama.BaseURL),
		ollama.WithModel(cfg.Generation.Ollama.Model))
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("llm-safety-gateway", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	detector := detect.NewClient(
		detect.WithBaseURL(cfg.Detection.BaseURL),
		detect.WithHTTPClient(&http.Client{Timeout: cfg.Detection.Timeout}),
	)

	gen := &switchableGenerator{}
	gen.set(buildGenerator(cfg))

	invoker := generate.New(gen,
		generate.WithMaxAttempts(cfg.Generation.MaxAttempts),
		generate.WithInitialDelay(cfg.Generation.InitialDelay),
		generate.WithLogger(logger),
	)

	aggregator := history.NewAggregator(detector,
		history.WithPollInterval(cfg.History.PollInterval),
		history.WithLimit(cfg.History.Limit),
		history.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go aggregator.Run(ctx)

	// Generation backend changes take effect on the next request;
	// server and detection settings need a restart.
	if _, statErr := os.Stat(*configPath); statErr == nil {
		watchErr := config.Watch(ctx, *configPath, logger, func(next *config.Config) {
			gen.set(buildGenerator(next))
			logger.Info("generation backend updated",
				slog.String("provider", next.Generation.Provider))
		})
		if watchErr != nil {
			logger.Warn("config watch disabled", slog.String("error", watchErr.Error()))
		}
	}

	handler := frontdoor.NewHandler(detector, normalize.New(), invoker, aggregator, logger)

	srv := server.New(cfg.Server.Port, cfg.Server.RequestTimeout, logger)
	srv.Router.Post("/api/analyze", handler.HandleAnalyzeText)
	srv.Router.Post("/api/image", handler.HandleAnalyzeImage)
	srv.Router.Post("/api/document", handler.HandleAnalyzeDocument)
	srv.Router.Post("/api/voice", handler.HandleAnalyzeVoice)
	srv.Router.Post("/api/generate", handler.HandleGenerate)
	srv.Router.Get("/api/history", handler.HandleHistory)
	srv.Router.Get("/healthz", handler.HandleHealthz)
	srv.Router.Handle("/metrics", promhttp.Handler())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("gateway shutdown complete")
}
