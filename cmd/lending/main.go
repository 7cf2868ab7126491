// cmd/lending/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"librarysync/internal/chaos"
	"librarysync/internal/httpx"
	"librarysync/internal/lending"
	"librarysync/internal/platform/config"
	"librarysync/internal/platform/database"
	"librarysync/internal/platform/telemetry"
)

func main() {
	config.LoadEnvFiles(".env")
	cfg, err := config.LoadLending()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.ServiceName, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("lending stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Lending, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	return httpx.Serve(ctx, logger, cfg.Addr, newRouter(cfg, repo, logger))
}

// newRouter mounts the lending routes. With chaos enabled they sit behind a
// fault injector whose control endpoint stays outside it, so a partition can
// always be cleared.
func newRouter(cfg config.Lending, repo lending.Repository, logger *slog.Logger) http.Handler {
	svc := lending.NewService(repo, logger)
	router := httpx.NewRouter(logger, cfg.ServiceName, repo.Ping)
	limiter := httpx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	handler := lending.NewHandler(svc, logger)

	if !cfg.ChaosEnabled {
		handler.Routes(router, limiter.Middleware)
		return router
	}

	logger.Warn("chaos fault injection enabled", "control", chaos.ControlPath)
	inj := chaos.NewInjector()
	router.Mount(chaos.ControlPath, chaos.ControlHandler(inj, logger))
	router.Group(func(r chi.Router) {
		r.Use(inj.Middleware)
		handler.Routes(r, limiter.Middleware)
	})
	return router
}

func openRepository(ctx context.Context, cfg config.Lending, logger *slog.Logger) (lending.Repository, func(), error) {
	if cfg.DatabaseURL == config.MemoryDatabaseURL {
		logger.Warn("using in-memory replica store")
		return lending.NewMemoryRepository(), func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MigrateOnStart {
		if err := database.Migrate(db.DB, database.LendingSchema, "up"); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate on start: %w", err)
		}
	}
	logger.Info("connected to database", "dsn", database.RedactDSN(cfg.DatabaseURL))
	return lending.NewPostgresRepository(db), func() { db.Close() }, nil
}
