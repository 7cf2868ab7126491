// internal/clients/lending_client.go
package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"librarysync/internal/catalog"
	"librarysync/internal/httpx"
)

// ErrUpstreamUnavailable wraps every failed push: unreachable, timed out,
// non-2xx or shed by the open breaker.
var ErrUpstreamUnavailable = errors.New("lending service unavailable")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultTimeout         = 5 * time.Second
	defaultBreakerFailures = 5
	breakerOpenFor         = 30 * time.Second
)

// LendingClient pushes catalogue mutations to the lending service's internal
// sync receiver. Each push is a single attempt bounded by the timeout; there
// are no retries.
type LendingClient struct {
	baseURL         string
	httpClient      *http.Client
	timeout         time.Duration
	breakerFailures uint32
	tracerProvider  trace.TracerProvider
	meterProvider   metric.MeterProvider

	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
	pushes  metric.Int64Counter
}

// Option configures a LendingClient.
type Option func(*LendingClient)

// WithTimeout bounds each push.
func WithTimeout(d time.Duration) Option {
	return func(c *LendingClient) { c.timeout = d }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *LendingClient) { c.httpClient = hc }
}

// WithBreakerFailures sets how many consecutive failures open the breaker.
func WithBreakerFailures(n uint32) Option {
	return func(c *LendingClient) { c.breakerFailures = n }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *LendingClient) { c.tracerProvider = tp }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *LendingClient) { c.meterProvider = mp }
}

func NewLendingClient(baseURL string, opts ...Option) *LendingClient {
	c := &LendingClient{
		baseURL:         baseURL,
		httpClient:      http.DefaultClient,
		timeout:         defaultTimeout,
		breakerFailures: defaultBreakerFailures,
		tracerProvider:  otel.GetTracerProvider(),
		meterProvider:   otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breakerFailures == 0 {
		c.breakerFailures = defaultBreakerFailures
	}

	failures := c.breakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "lending-sync",
		MaxRequests: 1,
		Timeout:     breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})
	c.tracer = c.tracerProvider.Tracer("librarysync/clients")

	pushes, err := c.meterProvider.Meter("librarysync/clients").Int64Counter(
		"librarysync.sync.push",
		metric.WithDescription("Sync pushes to the lending service by operation and outcome."),
	)
	if err != nil {
		c.pushes = noop.Int64Counter{}
	} else {
		c.pushes = pushes
	}
	return c
}

type bookPayload struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Publisher   string `json:"publisher"`
	Category    string `json:"category"`
	IsAvailable bool   `json:"is_available"`
}

// BookUpserted sends the full book state to POST /internal/books.
func (c *LendingClient) BookUpserted(ctx context.Context, b catalog.Book) error {
	body, err := json.Marshal(bookPayload{
		ID:          b.ID,
		Title:       b.Title,
		Publisher:   b.Publisher,
		Category:    b.Category,
		IsAvailable: b.IsAvailable,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal book %d: %w", b.ID, err)
	}
	return c.push(ctx, "upsert", b.ID, http.MethodPost, "/internal/books", body)
}

// BookDeleted sends DELETE /internal/books/{id}.
func (c *LendingClient) BookDeleted(ctx context.Context, id int64) error {
	return c.push(ctx, "delete", id, http.MethodDelete, fmt.Sprintf("/internal/books/%d", id), nil)
}

func (c *LendingClient) push(ctx context.Context, op string, id int64, method, path string, body []byte) error {
	// The push belongs to a mutation that has already committed, so it does
	// not inherit the caller's cancellation, only its values.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "lending_client."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.Int64("book.id", id),
		attribute.String("http.method", method),
	))
	defer span.End()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, method, path, body)
	})

	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	c.pushes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %s %s: %w", ErrUpstreamUnavailable, method, path, err)
	}
	return nil
}

func (c *LendingClient) do(ctx context.Context, method, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := httpx.RequestIDFrom(ctx); id != "" {
		req.Header.Set(httpx.RequestIDHeader, id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// BreakerState reports the breaker's current state: closed, half-open or open.
func (c *LendingClient) BreakerState() string {
	return c.breaker.State().String()
}

// ReadyInfo exposes the breaker state in the authority's /readyz body.
func (c *LendingClient) ReadyInfo() (string, string) {
	return "sync_breaker", c.BreakerState()
}
