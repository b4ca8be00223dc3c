package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/mrops-br/catalog-service/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BookRepository is an in-memory implementation of domain.BookRepository.
// Records are copied on the way in and out.
type BookRepository struct {
	mu     sync.RWMutex
	books  map[string]*domain.Book
	tracer trace.Tracer
	logger *slog.Logger
}

// NewBookRepository creates a new in-memory book repository
func NewBookRepository(tracer trace.Tracer, logger *slog.Logger) *BookRepository {
	return &BookRepository{
		books:  make(map[string]*domain.Book),
		tracer: tracer,
		logger: logger,
	}
}

// Create stores a book unless its ISBN is already taken
func (r *BookRepository) Create(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "BookRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.String("book.isbn", book.ISBN))

	stored := book.Clone()

	r.mu.Lock()
	if _, exists := r.books[stored.ISBN]; exists {
		r.mu.Unlock()
		span.RecordError(domain.ErrBookAlreadyExists)
		span.SetStatus(codes.Error, "Book already exists")
		return nil, domain.ErrBookAlreadyExists
	}
	r.books[stored.ISBN] = stored
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Book created in repository",
		slog.String("isbn", stored.ISBN),
	)

	span.SetStatus(codes.Ok, "Book created successfully")
	return stored.Clone(), nil
}

// Save inserts or replaces a book
func (r *BookRepository) Save(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "BookRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("book.isbn", book.ISBN),
		attribute.String("book.title", book.Title),
	)

	stored := book.Clone()

	r.mu.Lock()
	_, replaced := r.books[stored.ISBN]
	r.books[stored.ISBN] = stored
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Book saved in repository",
		slog.String("isbn", stored.ISBN),
		slog.Bool("replaced", replaced),
	)

	span.SetStatus(codes.Ok, "Book saved successfully")
	return stored.Clone(), nil
}

// FindByISBN retrieves a book by ISBN
func (r *BookRepository) FindByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "BookRepository.FindByISBN")
	defer span.End()

	span.SetAttributes(attribute.String("book.isbn", isbn))

	r.mu.RLock()
	book, exists := r.books[isbn]
	r.mu.RUnlock()

	if !exists {
		span.RecordError(domain.ErrBookNotFound)
		span.SetStatus(codes.Error, "Book not found")
		r.logger.DebugContext(ctx, "Book not found in repository",
			slog.String("isbn", isbn),
		)
		return nil, domain.ErrBookNotFound
	}

	span.SetStatus(codes.Ok, "Book found")
	return book.Clone(), nil
}

// ExistsByISBN reports whether a book with the given ISBN is stored
func (r *BookRepository) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	_, span := r.tracer.Start(ctx, "BookRepository.ExistsByISBN")
	defer span.End()

	r.mu.RLock()
	_, exists := r.books[isbn]
	r.mu.RUnlock()

	span.SetAttributes(
		attribute.String("book.isbn", isbn),
		attribute.Bool("book.exists", exists),
	)
	return exists, nil
}

// DeleteByISBN removes a book; absent ISBNs are not an error
func (r *BookRepository) DeleteByISBN(ctx context.Context, isbn string) error {
	ctx, span := r.tracer.Start(ctx, "BookRepository.DeleteByISBN")
	defer span.End()

	span.SetAttributes(attribute.String("book.isbn", isbn))

	r.mu.Lock()
	_, existed := r.books[isbn]
	delete(r.books, isbn)
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Book deleted from repository",
		slog.String("isbn", isbn),
		slog.Bool("existed", existed),
	)

	span.SetStatus(codes.Ok, "Book deleted")
	return nil
}

// FindAll retrieves all books ordered by ISBN
func (r *BookRepository) FindAll(ctx context.Context) ([]*domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "BookRepository.FindAll")
	defer span.End()

	r.mu.RLock()
	books := make([]*domain.Book, 0, len(r.books))
	for _, book := range r.books {
		books = append(books, book.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(books, func(i, j int) bool { return books[i].ISBN < books[j].ISBN })

	span.SetAttributes(attribute.Int("book.count", len(books)))

	r.logger.DebugContext(ctx, "Books retrieved from repository",
		slog.Int("count", len(books)),
	)

	span.SetStatus(codes.Ok, "Books retrieved successfully")
	return books, nil
}
