// cmd/promptflow/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"promptflow/internal/clients/dispatch"
	"promptflow/internal/clients/openai"
	"promptflow/internal/common/config"
	"promptflow/internal/common/database"
	"promptflow/internal/common/logger"
	"promptflow/internal/common/observability"
	"promptflow/internal/repository"
	"promptflow/internal/scheduler"
	"promptflow/internal/server"

	executescheduled "promptflow/internal/workers/execution/execute-scheduled"
	executewebhook "promptflow/internal/workers/execution/execute-webhook"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting promptflow...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Postgres with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pg.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "Postgres initialization")
	if err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "Redis initialization")
	if err != nil {
		zapLog.Fatal("redis unavailable", zap.Error(err))
	}
	defer rdb.Close()

	// --- Repositories ---
	templates := repository.NewCachedTemplates(repository.NewTemplates(pg.DB), rdb.Client, log)
	users := repository.NewUsers(pg.DB)

	// --- Outbound clients ---
	completions := openai.NewClient(openai.Config{
		BaseURL:   cfg.OpenAI.BaseURL,
		APIKey:    cfg.OpenAI.APIKey,
		MaxTokens: cfg.OpenAI.MaxTokens,
		Timeout:   config.GetDuration(cfg.OpenAI.Timeout),
	})
	dispatcher := dispatch.NewDispatcher(config.GetDuration(cfg.Dispatch.Timeout))

	// --- Execution workers ---
	webhookHandler := executewebhook.NewHandler(executewebhook.LoadConfig(), templates, completions, dispatcher, log)
	scheduledHandler := executescheduled.NewHandler(executescheduled.LoadConfig(), templates, completions, dispatcher, log)

	// --- Scheduler ---
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(scheduledHandler, log)
		sched.Start(ctx)
		defer sched.Stop()
		zapLog.Info("Scheduler enabled")
	} else {
		zapLog.Info("Scheduler disabled; scheduled runs expected via API")
	}

	// --- HTTP server ---
	api := server.New(templates, users, webhookHandler, scheduledHandler, obs, log, config.GetDuration(cfg.Server.RequestTimeout))
	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.Handler(),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}
