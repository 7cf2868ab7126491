// cmd/authority/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"librarysync/internal/catalog"
	"librarysync/internal/clients"
	"librarysync/internal/httpx"
	"librarysync/internal/platform/config"
	"librarysync/internal/platform/database"
	"librarysync/internal/platform/telemetry"
)

func main() {
	config.LoadEnvFiles(".env")
	cfg, err := config.LoadAuthority()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.ServiceName, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("authority stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Authority, logger *slog.Logger) error {
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

	var (
		notifier catalog.Notifier = catalog.NopNotifier{}
		infos    []httpx.ReadyInfo
	)
	if cfg.LendingURL != "" {
		client := clients.NewLendingClient(cfg.LendingURL,
			clients.WithTimeout(cfg.SyncTimeout),
			clients.WithBreakerFailures(cfg.BreakerFailures),
		)
		notifier = client
		infos = append(infos, client.ReadyInfo)
		logger.Info("sync push enabled", "lending_url", cfg.LendingURL, "timeout", cfg.SyncTimeout)
	} else {
		logger.Warn("LENDING_URL not set, catalogue changes will not be pushed")
	}

	svc := catalog.NewService(repo, notifier, logger)
	router := httpx.NewRouter(logger, cfg.ServiceName, repo.Ping, infos...)
	catalog.NewHandler(svc, logger).Routes(router)

	return httpx.Serve(ctx, logger, cfg.Addr, router)
}

func openRepository(ctx context.Context, cfg config.Authority, logger *slog.Logger) (catalog.Repository, func(), error) {
	if cfg.DatabaseURL == config.MemoryDatabaseURL {
		logger.Warn("using in-memory catalogue store")
		return catalog.NewMemoryRepository(), func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MigrateOnStart {
		if err := database.Migrate(db.DB, database.AuthoritySchema, "up"); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate on start: %w", err)
		}
	}
	logger.Info("connected to database", "dsn", database.RedactDSN(cfg.DatabaseURL))
	return catalog.NewPostgresRepository(db), func() { db.Close() }, nil
}
