// cmd/chaos/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"

	"librarysync/internal/chaos"
	"librarysync/internal/platform/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	config.LoadEnvFiles(".env")
	cfg, err := config.LoadChaos()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger("chaos", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := gameDay(ctx, cfg, logger, http.DefaultClient)
	if report, merr := json.MarshalIndent(results, "", "  "); merr == nil {
		fmt.Println(string(report))
	}
	if err != nil {
		logger.Error("chaos game day failed", "error", err)
		os.Exit(1)
	}
}

// gameDay runs the sync experiments against a deployed authority and a
// lending service started with CHAOS_ENABLED. It fails when any experiment
// does not hold or recover.
func gameDay(ctx context.Context, cfg config.Chaos, logger *slog.Logger, hc *http.Client) ([]chaos.Result, error) {
	engine := chaos.NewEngine(logger)
	target := chaos.NewRemoteTarget(cfg.LendingURL, nil)
	probe := catalogueProbe(hc, cfg.AuthorityURL, cfg.ProbeBudget)

	var failed []string
	for _, exp := range chaos.SyncExperiments(target, cfg.Latency, probe) {
		logger.Info("running experiment", "experiment", exp.Name, "hypothesis", exp.Hypothesis)
		res, err := engine.Run(ctx, exp)
		if err != nil {
			return engine.Results(), fmt.Errorf("experiment %s: %w", exp.Name, err)
		}
		if !res.HypothesisHeld || !res.Recovered {
			failed = append(failed, exp.Name)
		}
	}
	if len(failed) > 0 {
		return engine.Results(), fmt.Errorf("experiments failed: %s", strings.Join(failed, ", "))
	}
	return engine.Results(), nil
}

// catalogueProbe creates a book on the authority and deletes it again. Both
// calls must succeed within budget, whatever the replica is doing.
func catalogueProbe(hc *http.Client, authorityURL string, budget time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, budget)
		defer cancel()

		body, err := call(ctx, hc, http.MethodPost, authorityURL+"/books",
			`{"title":"Chaos probe","publisher":"librarysync","category":"probe"}`)
		if err != nil {
			return fmt.Errorf("create book: %w", err)
		}
		var created struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(body, &created); err != nil || created.ID == 0 {
			return errors.New("create book: response carries no id")
		}

		if _, err := call(ctx, hc, http.MethodDelete, fmt.Sprintf("%s/books/%d", authorityURL, created.ID), ""); err != nil {
			return fmt.Errorf("delete book %d: %w", created.ID, err)
		}
		return nil
	}
}

func call(ctx context.Context, hc *http.Client, method, url, body string) ([]byte, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return out, nil
}
