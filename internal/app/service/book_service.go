package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mrops-br/catalog-service/internal/app/dto"
	"github.com/mrops-br/catalog-service/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	resultSuccess  = "success"
	resultFailure  = "failure"
	resultNotFound = "not_found"
	resultConflict = "conflict"
	resultInvalid  = "invalid"
)

// BookService handles catalog use cases
type BookService struct {
	repo               domain.BookRepository
	tracer             trace.Tracer
	logger             *slog.Logger
	bookCreatedCounter metric.Int64Counter
	bookOperations     metric.Int64Counter
}

// NewBookService creates a new book service
func NewBookService(
	repo domain.BookRepository,
	tracer trace.Tracer,
	meter metric.Meter,
	logger *slog.Logger,
) *BookService {
	bookCreatedCounter, _ := meter.Int64Counter(
		"books.created.total",
		metric.WithDescription("Total number of books added to the catalog"),
	)

	bookOperations, _ := meter.Int64Counter(
		"books.operations",
		metric.WithDescription("Total number of catalog operations"),
	)

	return &BookService{
		repo:               repo,
		tracer:             tracer,
		logger:             logger,
		bookCreatedCounter: bookCreatedCounter,
		bookOperations:     bookOperations,
	}
}

func (s *BookService) record(ctx context.Context, operation, result string) {
	s.bookOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("result", result),
		),
	)
}

// classify maps a domain error to the result attribute of books.operations
func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrBookNotFound):
		return resultNotFound
	case errors.Is(err, domain.ErrBookAlreadyExists):
		return resultConflict
	case errors.Is(err, domain.ErrInvalidBook), errors.Is(err, domain.ErrISBNMismatch):
		return resultInvalid
	default:
		return resultFailure
	}
}

func (s *BookService) fail(ctx context.Context, span trace.Span, operation string, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	result := classify(err)
	level := slog.LevelWarn
	if result == resultFailure {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, msg,
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	s.record(ctx, operation, result)
}

// ViewBookList returns every book in the catalog
func (s *BookService) ViewBookList(ctx context.Context) ([]*dto.BookResponse, error) {
	ctx, span := s.tracer.Start(ctx, "BookService.ViewBookList")
	defer span.End()

	books, err := s.repo.FindAll(ctx)
	if err != nil {
		s.fail(ctx, span, "list", err, "Failed to list books")
		return nil, err
	}

	span.SetAttributes(attribute.Int("book.count", len(books)))
	s.record(ctx, "list", resultSuccess)

	s.logger.InfoContext(ctx, "Books listed successfully",
		slog.Int("count", len(books)),
	)

	span.SetStatus(codes.Ok, "Books listed successfully")
	return dto.ToBookResponseList(books), nil
}

// ViewBookDetails returns the book stored under isbn or domain.ErrBookNotFound
func (s *BookService) ViewBookDetails(ctx context.Context, isbn string) (*dto.BookResponse, error) {
	ctx, span := s.tracer.Start(ctx, "BookService.ViewBookDetails")
	defer span.End()

	span.SetAttributes(attribute.String("book.isbn", isbn))

	book, err := s.repo.FindByISBN(ctx, isbn)
	if err != nil {
		s.fail(ctx, span, "read", err, "Failed to get book")
		return nil, err
	}

	s.record(ctx, "read", resultSuccess)

	s.logger.InfoContext(ctx, "Book retrieved successfully",
		slog.String("isbn", isbn),
	)

	span.SetStatus(codes.Ok, "Book retrieved successfully")
	return dto.ToBookResponse(book), nil
}

// AddBookToCatalog stores a new book. An ISBN that is already stored
// yields domain.ErrBookAlreadyExists.
func (s *BookService) AddBookToCatalog(ctx context.Context, req *dto.BookRequest) (*dto.BookResponse, error) {
	ctx, span := s.tracer.Start(ctx, "BookService.AddBookToCatalog")
	defer span.End()

	span.SetAttributes(attribute.String("book.isbn", req.ISBN))

	book, err := req.ToDomain()
	if err != nil {
		s.fail(ctx, span, "create", err, "Validation failed")
		return nil, err
	}

	saved, err := s.repo.Create(ctx, book)
	if err != nil {
		msg := "Failed to store book"
		if errors.Is(err, domain.ErrBookAlreadyExists) {
			msg = "Book already exists"
		}
		s.fail(ctx, span, "create", err, msg)
		return nil, err
	}

	s.bookCreatedCounter.Add(ctx, 1)
	s.record(ctx, "create", resultSuccess)

	s.logger.InfoContext(ctx, "Book added to catalog",
		slog.String("isbn", saved.ISBN),
	)

	span.SetStatus(codes.Ok, "Book created successfully")
	return dto.ToBookResponse(saved), nil
}

// EditBookDetails replaces the book stored under isbn, creating it when
// absent. The body ISBN may be empty; otherwise it must equal isbn.
func (s *BookService) EditBookDetails(ctx context.Context, isbn string, req *dto.BookRequest) (*dto.BookResponse, error) {
	ctx, span := s.tracer.Start(ctx, "BookService.EditBookDetails")
	defer span.End()

	span.SetAttributes(attribute.String("book.isbn", isbn))

	body := *req
	if body.ISBN == "" {
		body.ISBN = isbn
	}
	if body.ISBN != isbn {
		s.fail(ctx, span, "update", domain.ErrISBNMismatch, "ISBN mismatch")
		return nil, domain.ErrISBNMismatch
	}

	book, err := body.ToDomain()
	if err != nil {
		s.fail(ctx, span, "update", err, "Validation failed")
		return nil, err
	}

	saved, err := s.repo.Save(ctx, book)
	if err != nil {
		s.fail(ctx, span, "update", err, "Failed to store book")
		return nil, err
	}

	s.record(ctx, "update", resultSuccess)

	s.logger.InfoContext(ctx, "Book details updated",
		slog.String("isbn", saved.ISBN),
	)

	span.SetStatus(codes.Ok, "Book updated successfully")
	return dto.ToBookResponse(saved), nil
}

// RemoveBookFromCatalog deletes the book stored under isbn, if any
func (s *BookService) RemoveBookFromCatalog(ctx context.Context, isbn string) error {
	ctx, span := s.tracer.Start(ctx, "BookService.RemoveBookFromCatalog")
	defer span.End()

	span.SetAttributes(attribute.String("book.isbn", isbn))

	if err := s.repo.DeleteByISBN(ctx, isbn); err != nil {
		s.fail(ctx, span, "delete", err, "Failed to remove book")
		return err
	}

	s.record(ctx, "delete", resultSuccess)

	s.logger.InfoContext(ctx, "Book removed from catalog",
		slog.String("isbn", isbn),
	)

	span.SetStatus(codes.Ok, "Book removed successfully")
	return nil
}
