// Package httpx holds the HTTP plumbing shared by the authority and lending
// services: JSON responses, request ids, logging, recovery, rate limiting and
// request validation.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ErrInvalidID is returned by PathID for a missing or non-positive id.
var ErrInvalidID = errors.New("invalid id")

// Detail is the body of every error and confirmation response.
type Detail struct {
	Detail string `json:"detail"`
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDetail writes {"detail": msg}.
func WriteDetail(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, Detail{Detail: msg})
}

// WriteInternalError answers 500 with the operation that failed, taken from
// the outermost wrap of err. The wrapped cause stays in the logs.
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteDetail(w, http.StatusInternalServerError, Operation(err))
}

// Operation returns the message err adds on top of the error it wraps, so
// "failed to create book: pq: ..." becomes "failed to create book".
func Operation(err error) string {
	if err == nil {
		return "internal server error"
	}
	msg := err.Error()
	if inner := errors.Unwrap(err); inner != nil {
		msg = strings.TrimSuffix(msg, ": "+inner.Error())
	}
	if msg == "" {
		return "internal server error"
	}
	return msg
}

// DecodeJSON decodes the request body into v and validates it.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return Validate(v)
}

// PathID parses a positive integer URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
