package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/memebot/internal/api"
	"github.com/timmy/memebot/internal/app"
	"github.com/timmy/memebot/internal/config"
	"github.com/timmy/memebot/internal/logger"
	"github.com/timmy/memebot/internal/service"
	"github.com/timmy/memebot/internal/storage"
)

func main() {
	log := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(log)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	dispatcher := service.NewDispatcher(cfg.Delivery.Workers, cfg.Delivery.QueueSize)

	stopRetention, err := storage.StartRetention(ctx, a.Store, cfg.Delivery.RetentionCron, cfg.Delivery.KeepFiles)
	if err != nil {
		log.Fatalf("Failed to start retention: %v", err)
	}

	router := api.SetupRouter(api.RouterDeps{
		Memes:       a.Memes,
		Dispatcher:  dispatcher,
		Ping:        a.Ping,
		DownloadDir: a.Store.Dir(),
		Logger:      log,
	}, cfg.Server)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	// Queued deliveries finish before the store closes.
	dispatcher.Close()
	stopRetention()

	log.Info("Server exited")
}
