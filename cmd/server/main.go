package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docqa/internal/api"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/embedder"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/session"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	emb, err := embedder.New(embedder.Config{
		Provider: cfg.EmbeddingProvider,
		OpenAIOptions: embedder.OpenAIOptions{
			BaseURL:     cfg.OllamaBaseURL,
			APIKey:      cfg.OllamaAPIKey,
			Model:       cfg.EmbeddingModel,
			Dimension:   cfg.EmbeddingDim,
			BatchSize:   cfg.EmbedBatchSize,
			Concurrency: cfg.EmbedConcurrency,
			CacheSize:   cfg.EmbedCacheSize,
		},
	}, log)
	if err != nil {
		log.Error("invalid embedder configuration", "error", err)
		os.Exit(1)
	}

	stats := llm.NewLLMStats(time.Hour)
	chat := llm.NewClient(cfg.OllamaBaseURL, cfg.OllamaAPIKey, cfg.OllamaModel, llm.Options{
		Temperature: float32(cfg.LLMTemperature),
		TopP:        float32(cfg.LLMTopP),
		MaxTokens:   cfg.LLMMaxTokens,
	}, stats, log)

	// Initialize sessions and pipeline.
	sessions := session.NewStore(cfg.SessionTTL, emb, log)
	orch := pipeline.NewOrchestrator(pipeline.Options{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
		ExportDir:    cfg.ExportDir,
		Parser:       parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
	}, sessions, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, sessions, chat, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting docqa",
		"port", cfg.Port,
		"model", cfg.OllamaModel,
		"embeddings", cfg.EmbeddingProvider,
		"strategy", cfg.DefaultStrategy,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
