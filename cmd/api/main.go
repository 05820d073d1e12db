// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/planagent/planning-service/internal/config"
	"github.com/planagent/planning-service/internal/logging"
	"github.com/planagent/planning-service/internal/persistence/postgres"
	"github.com/planagent/planning-service/internal/repository"
	"github.com/planagent/planning-service/internal/service"
	httptransport "github.com/planagent/planning-service/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env, cfg.LogLevel)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
			log.Fatalf("schema bootstrap failed: %v", err)
		}
	} else if err := postgres.SchemaReady(ctx, pool); err != nil {
		log.Fatalf("schema not ready: %v", err)
	}

	plans := service.New(repository.NewPlanRepository(pool, logger), logger)

	handler := httptransport.NewRouter(httptransport.Deps{
		Planner:   plans,
		Executor:  plans,
		Manager:   plans,
		Health:    postgres.NewSchemaHealthChecker(pool),
		Logger:    logger,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
