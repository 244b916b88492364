package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/dvloznov/spend-signals/internal/api"
	"github.com/dvloznov/spend-signals/internal/app"
	"github.com/dvloznov/spend-signals/internal/config"
	"github.com/dvloznov/spend-signals/internal/jobs"
	"github.com/dvloznov/spend-signals/internal/jobs/inmemory"
	"github.com/dvloznov/spend-signals/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.Parse()

	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)
	ctx := logger.WithContext(context.Background(), log)

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, cfg.JobWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	batchHandler := jobs.NewScoreBatchHandler(application.Engine, application.Snapshots, cfg.BatchConcurrency)

	go func() {
		log.Info().Int("workers", cfg.JobWorkers).Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, batchHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	deps := api.RouterDeps{
		Assessor:  application.Assessor,
		Snapshots: application.Snapshots,
		Publisher: jobQueue,
		JobStore:  jobStore,
	}
	if cfg.RateLimitRPS > 0 {
		deps.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := api.NewRouter(deps, log)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight batches finish before cancelling the worker context
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
