package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mrops-br/catalog-service/internal/app/dto"
	"github.com/mrops-br/catalog-service/internal/domain"
	"github.com/mrops-br/catalog-service/internal/infrastructure/http/response"
)

const maxBodyBytes = 1 << 20

// BookService is the catalog capability the handler delegates to
type BookService interface {
	ViewBookList(ctx context.Context) ([]*dto.BookResponse, error)
	ViewBookDetails(ctx context.Context, isbn string) (*dto.BookResponse, error)
	AddBookToCatalog(ctx context.Context, req *dto.BookRequest) (*dto.BookResponse, error)
	EditBookDetails(ctx context.Context, isbn string, req *dto.BookRequest) (*dto.BookResponse, error)
	RemoveBookFromCatalog(ctx context.Context, isbn string) error
}

// Route binds a method and a pattern relative to /books to a handler
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// BookHandler handles HTTP requests for books
type BookHandler struct {
	service BookService
	logger  *slog.Logger
}

// NewBookHandler creates a new book handler
func NewBookHandler(service BookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the route table served under /books
func (h *BookHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Pattern: "/", Handler: h.ListBooks},
		{Method: http.MethodPost, Pattern: "/", Handler: h.CreateBook},
		{Method: http.MethodGet, Pattern: "/{isbn}", Handler: h.GetBook},
		{Method: http.MethodPut, Pattern: "/{isbn}", Handler: h.UpdateBook},
		{Method: http.MethodDelete, Pattern: "/{isbn}", Handler: h.DeleteBook},
	}
}

// Mount registers the route table on r
func (h *BookHandler) Mount(r chi.Router) {
	for _, route := range h.Routes() {
		r.Method(route.Method, route.Pattern, route.Handler)
	}
}

// ListBooks handles GET /books
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ViewBookList(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, books)
}

// GetBook handles GET /books/{isbn}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.service.ViewBookDetails(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, book)
}

// CreateBook handles POST /books
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	book, err := h.service.AddBookToCatalog(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/books/%s", book.ISBN))
	response.JSON(w, http.StatusCreated, book)
}

// UpdateBook handles PUT /books/{isbn}
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	book, err := h.service.EditBookDetails(r.Context(), chi.URLParam(r, "isbn"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, book)
}

// DeleteBook handles DELETE /books/{isbn}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveBookFromCatalog(r.Context(), chi.URLParam(r, "isbn")); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Empty(w, http.StatusNoContent)
}

func (h *BookHandler) decode(w http.ResponseWriter, r *http.Request) (*dto.BookRequest, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	var req dto.BookRequest
	err := dec.Decode(&req)
	if err == nil {
		// exactly one JSON value per body
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = errors.New("unexpected data after JSON object")
		}
	}
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body",
			slog.String("error", err.Error()),
		)
		response.Error(w, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return nil, false
	}
	return &req, true
}

// writeError maps service errors onto status codes
func (h *BookHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrBookNotFound):
		response.Empty(w, http.StatusNotFound)
	case errors.Is(err, domain.ErrBookAlreadyExists):
		response.Error(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, domain.ErrInvalidBook), errors.Is(err, domain.ErrISBNMismatch):
		response.Error(w, http.StatusBadRequest, err)
	default:
		h.logger.ErrorContext(r.Context(), "Request failed",
			slog.String("error", err.Error()),
		)
		response.Error(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}
