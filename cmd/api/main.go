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

	httpadapter "github.com/AryanGupta99/Acebuddy-Chatbot/internal/adapters/http"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/bootstrap"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/config"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/observability/logging"
)

func main() {
	cfg, err := bootstrap.ResolveConfig(config.Load())
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New(logging.Options{Service: "api", Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.RouterDependencies{
		Chat:     app.Chat,
		Cache:    app.Cache,
		Bus:      app.Bus,
		Ingest:   app.Ingest,
		Sessions: app.Sessions,
		Metrics:  app.Metrics,
		Health:   app.Health,
	}).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
