// internal/catalog/handler.go
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarysync/internal/httpx"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/books", h.handleCreateBook)
	r.Get("/books/unavailable", h.handleListUnavailable)
	r.Delete("/books/{id}", h.handleDeleteBook)
	r.Get("/users", h.handleListUsers)
	r.Get("/users/borrowed", h.handleListUsersWithLoans)
}

func (h *Handler) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string `json:"title" validate:"required"`
		Publisher string `json:"publisher" validate:"required"`
		Category  string `json:"category" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.service.CreateBook(r.Context(), req.Title, req.Publisher, req.Category)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	err = h.service.DeleteBook(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.WriteDetail(w, http.StatusNotFound, "Book not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, fmt.Sprintf("Book with id %d removed successfully.", id))
}

func (h *Handler) handleListUnavailable(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListUnavailableBooks(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) handleListUsersWithLoans(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsersWithLoans(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", httpx.RequestIDFrom(r.Context()),
		"error", err,
	)
	httpx.WriteInternalError(w, err)
}
