package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/bootstrap"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/config"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/observability/logging"
)

func main() {
	cfg, err := bootstrap.ResolveConfig(config.Load())
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New(logging.Options{Service: "worker", Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer worker.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           worker.Metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if cfg.WorkerSyncOnStart {
		started := time.Now()
		reports, err := worker.IngestUC.SyncAll(ctx)
		chunks := 0
		for _, r := range reports {
			chunks += r.Chunks
		}
		logger.Info("knowledge_sync_finished", "sources", len(reports), "chunks", chunks, "duration_ms", time.Since(started).Milliseconds(), "error", err)
	}

	logger.Info("worker_subscribed", "subject", cfg.NATSIngestSubject)
	err = worker.Queue.SubscribeIngestRequested(ctx, func(handlerCtx context.Context, sourceKey string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		worker.Metrics.StartIngest()
		started := time.Now()
		report, err := worker.IngestUC.IngestSource(processCtx, sourceKey)
		chunks := 0
		if report != nil {
			chunks = report.Chunks
		}
		worker.Metrics.FinishIngest("worker", time.Since(started), chunks, err)
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
