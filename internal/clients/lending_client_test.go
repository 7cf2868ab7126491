package clients

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"librarysync/internal/catalog"
	"librarysync/internal/httpx"
)

type capturedRequest struct {
	method    string
	path      string
	body      string
	requestID string
	parent    string
}

func captureServer(t *testing.T, status int) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	seen := make(chan capturedRequest, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- capturedRequest{
			method:    r.Method,
			path:      r.URL.Path,
			body:      string(body),
			requestID: r.Header.Get(httpx.RequestIDHeader),
			parent:    r.Header.Get("traceparent"),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestLendingClient_BookUpserted(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	srv, seen := captureServer(t, http.StatusOK)
	c := NewLendingClient(srv.URL, WithTracerProvider(tp))

	ctx := httpx.ContextWithRequestID(context.Background(), "req-1")
	err := c.BookUpserted(ctx, catalog.Book{ID: 1, Title: "Dune", Publisher: "Ace", Category: "sci-fi", IsAvailable: true})
	require.NoError(t, err)

	req := <-seen
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/internal/books", req.path)
	assert.JSONEq(t, `{"id":1,"title":"Dune","publisher":"Ace","category":"sci-fi","is_available":true}`, req.body)
	assert.Equal(t, "req-1", req.requestID)
	assert.NotEmpty(t, req.parent)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "lending_client.upsert", spans[0].Name())
}

func TestLendingClient_BookDeleted(t *testing.T) {
	srv, seen := captureServer(t, http.StatusOK)
	c := NewLendingClient(srv.URL)

	require.NoError(t, c.BookDeleted(context.Background(), 42))
	req := <-seen
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, "/internal/books/42", req.path)
	assert.Empty(t, req.body)
}

func TestLendingClient_ErrorStatus(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError)
	c := NewLendingClient(srv.URL)

	err := c.BookDeleted(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorContains(t, err, "unexpected status code: 500")
}

func TestLendingClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := NewLendingClient(srv.URL, WithTimeout(50*time.Millisecond))
	start := time.Now()
	err := c.BookDeleted(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLendingClient_IgnoresCallerCancellation(t *testing.T) {
	srv, seen := captureServer(t, http.StatusOK)
	c := NewLendingClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.BookDeleted(ctx, 5))
	assert.Equal(t, "/internal/books/5", (<-seen).path)
}

func TestLendingClient_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewLendingClient(srv.URL, WithBreakerFailures(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, c.BookDeleted(ctx, 1), ErrUpstreamUnavailable)
	}
	assert.Equal(t, "open", c.BreakerState())
	key, state := c.ReadyInfo()
	assert.Equal(t, "sync_breaker", key)
	assert.Equal(t, "open", state)

	err := c.BookDeleted(ctx, 1)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), hits.Load())
}
