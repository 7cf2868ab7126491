package lending

import (
	"errors"
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

// Routes mounts the public surface behind limit and the internal sync
// receiver without it. A nil limit mounts the public routes unthrottled.
func (h *Handler) Routes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/users", h.handleEnroll)
		r.Get("/books", h.handleListBooks)
		r.Get("/books/filter", h.handleFilterBooks)
		r.Get("/books/{id}", h.handleGetBook)
		r.Post("/borrow/{book_id}", h.handleBorrow)
	})

	r.Post("/internal/books", h.handleSyncBook)
	r.Delete("/internal/books/{id}", h.handleSyncDelete)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email" validate:"required,email"`
		FirstName string `json:"first_name" validate:"required"`
		LastName  string `json:"last_name" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Enroll(r.Context(), req.Email, req.FirstName, req.LastName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) handleFilterBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := h.service.FilterBooks(r.Context(), Filter{
		Publisher: q.Get("publisher"),
		Category:  q.Get("category"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if errors.Is(err, ErrBookUnavailable) {
		httpx.WriteDetail(w, http.StatusNotFound, "Book not found or not available.")
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	bookID, err := httpx.PathID(r, "book_id")
	if err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	var req struct {
		UserID *int64 `json:"user_id" validate:"required,gt=0"`
		Days   *int   `json:"days" validate:"required,min=0,max=1000000"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	loan, err := h.service.Borrow(r.Context(), bookID, *req.UserID, *req.Days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, loan.Message())
}

func (h *Handler) handleSyncBook(w http.ResponseWriter, r *http.Request) {
	var req BookSync
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.ApplyBookSync(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, "Book synced successfully from Admin.")
}

func (h *Handler) handleSyncDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteDetail(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	if err := h.service.ApplyBookDelete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, "Book removal synced successfully from Admin.")
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrBookUnavailable):
		httpx.WriteDetail(w, http.StatusNotFound, "Book not available or doesn't exist.")
	case errors.Is(err, ErrUserNotFound):
		httpx.WriteDetail(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, ErrEmailTaken):
		httpx.WriteDetail(w, http.StatusBadRequest, "User with this email already exists.")
	case errors.Is(err, ErrInvalidDays):
		httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", httpx.RequestIDFrom(r.Context()),
			"error", err,
		)
		httpx.WriteInternalError(w, err)
	}
}
