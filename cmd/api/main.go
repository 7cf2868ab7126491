// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"librarysync/internal/httpx"
	"librarysync/internal/platform/config"
)

func main() {
	config.LoadEnvFiles(".env")
	cfg, err := config.LoadGateway()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger("gateway", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := newGateway(cfg.AuthorityURL, cfg.LendingURL, logger)
	if err != nil {
		logger.Error("invalid upstream", "error", err)
		os.Exit(1)
	}
	if err := httpx.Serve(ctx, logger, cfg.Addr, gw); err != nil {
		logger.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

// newGateway exposes the catalogue authority under /api/v1/admin and the
// lending service under /api/v1. The lending service's internal sync
// receiver is not reachable through the gateway.
func newGateway(authorityURL, lendingURL string, logger *slog.Logger) (http.Handler, error) {
	authority, err := proxy(authorityURL, logger)
	if err != nil {
		return nil, err
	}
	lending, err := proxy(lendingURL, logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(httpx.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpx.AccessLog(logger))
	r.Use(httpx.Recovery(logger))

	r.Get("/health", httpx.Health)
	r.Handle("/api/v1/admin/*", http.StripPrefix("/api/v1/admin", authority))
	r.HandleFunc("/api/v1/internal/*", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteDetail(w, http.StatusNotFound, "Not Found")
	})
	r.Handle("/api/v1/*", http.StripPrefix("/api/v1", lending))
	return r, nil
}

func proxy(raw string, logger *slog.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(raw)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", raw)
	}
	p := httputil.NewSingleHostReverseProxy(target)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.WarnContext(r.Context(), "upstream unavailable",
			"upstream", target.Host,
			"request_id", httpx.RequestIDFrom(r.Context()),
			"error", err,
		)
		httpx.WriteDetail(w, http.StatusBadGateway, "upstream unavailable")
	}
	return p, nil
}
