package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"librarysync/internal/lending"
	"librarysync/internal/platform/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, reader))
	return w
}

func testConfig(chaos bool) config.Lending {
	return config.Lending{
		Common:         config.Common{ServiceName: "lending"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		ChaosEnabled:   chaos,
	}
}

func TestNewRouter_WithoutChaos(t *testing.T) {
	h := newRouter(testConfig(false), lending.NewMemoryRepository(), discardLogger())

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/books", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodPut, "/internal/chaos/", `{"fault":"partition"}`).Code)
}

func TestNewRouter_WithChaos(t *testing.T) {
	h := newRouter(testConfig(true), lending.NewMemoryRepository(), discardLogger())

	w := serve(h, http.MethodPut, "/internal/chaos/", `{"fault":"failure","status":503}`)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodGet, "/books", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable,
		serve(h, http.MethodPost, "/internal/books", `{"id":1,"title":"T","publisher":"P","category":"C","is_available":true}`).Code)

	// Probes and the control endpoint are never degraded.
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodDelete, "/internal/chaos/", "").Code)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/books", "").Code)
}
