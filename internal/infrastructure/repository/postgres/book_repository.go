package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrops-br/catalog-service/internal/domain"
)

const bookColumns = `isbn, title, author, price, publisher`

// BookRepository stores books in the "book" table.
type BookRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewBookRepository creates a repository on top of an open pool. Every
// query is bounded by timeout.
func NewBookRepository(pool *pgxpool.Pool, timeout time.Duration, tracer trace.Tracer, logger *slog.Logger) *BookRepository {
	return &BookRepository{
		pool:    pool,
		timeout: timeout,
		tracer:  tracer,
		logger:  logger,
	}
}

func (r *BookRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// scannable abstracts pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanBook(row scannable) (*domain.Book, error) {
	var b domain.Book
	if err := row.Scan(&b.ISBN, &b.Title, &b.Author, &b.Price, &b.Publisher); err != nil {
		return nil, err
	}
	return &b, nil
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// FindAll returns every book ordered by ISBN.
func (r *BookRepository) FindAll(ctx context.Context) ([]*domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "BookRepository.FindAll")
	defer span.End()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+bookColumns+` FROM book ORDER BY isbn`)
	if err != nil {
		fail(span, err, "Query failed")
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]*domain.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			fail(span, err, "Scan failed")
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		fail(span, err, "Rows failed")
		return nil, fmt.Errorf("list books: %w", err)
	}

	span.SetAttributes(attribute.Int("book.count", len(books)))
	span.SetStatus(codes.Ok, "Books retrieved successfully")
	return books, nil
}

// FindByISBN returns the book or domain.ErrBookNotFound.
func (r *BookRepository) FindByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "BookRepository.FindByISBN")
	defer span.End()
	span.SetAttributes(attribute.String("book.isbn", isbn))

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	b, err := scanBook(r.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM book WHERE isbn = $1`, isbn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			fail(span, domain.ErrBookNotFound, "Book not found")
			return nil, fmt.Errorf("get book %s: %w", isbn, domain.ErrBookNotFound)
		}
		fail(span, err, "Query failed")
		return nil, fmt.Errorf("get book %s: %w", isbn, err)
	}

	span.SetStatus(codes.Ok, "Book found")
	return b, nil
}

// ExistsByISBN reports whether a row with isbn exists.
func (r *BookRepository) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "BookRepository.ExistsByISBN")
	defer span.End()
	span.SetAttributes(attribute.String("book.isbn", isbn))

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM book WHERE isbn = $1)`, isbn).Scan(&exists); err != nil {
		fail(span, err, "Query failed")
		return false, fmt.Errorf("check book %s: %w", isbn, err)
	}

	span.SetAttributes(attribute.Bool("book.exists", exists))
	return exists, nil
}

// Create inserts the record unless the ISBN is taken. The conflict check
// and the insert are the same statement.
func (r *BookRepository) Create(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "BookRepository.Create")
	defer span.End()
	span.SetAttributes(attribute.String("book.isbn", book.ISBN))

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const q = `
		INSERT INTO book (isbn, title, author, price, publisher)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (isbn) DO NOTHING
		RETURNING ` + bookColumns

	created, err := scanBook(r.pool.QueryRow(ctx, q,
		book.ISBN, book.Title, book.Author, book.Price, book.Publisher,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			fail(span, domain.ErrBookAlreadyExists, "Book already exists")
			return nil, fmt.Errorf("create book %s: %w", book.ISBN, domain.ErrBookAlreadyExists)
		}
		fail(span, err, "Insert failed")
		return nil, fmt.Errorf("create book %s: %w", book.ISBN, err)
	}

	r.logger.InfoContext(ctx, "Book created in database",
		slog.String("isbn", created.ISBN),
	)

	span.SetStatus(codes.Ok, "Book created successfully")
	return created, nil
}

// Save upserts the whole record in a single statement.
func (r *BookRepository) Save(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "BookRepository.Save")
	defer span.End()
	span.SetAttributes(
		attribute.String("book.isbn", book.ISBN),
		attribute.String("book.title", book.Title),
	)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const q = `
		INSERT INTO book (isbn, title, author, price, publisher)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (isbn) DO UPDATE
		SET title = EXCLUDED.title,
		    author = EXCLUDED.author,
		    price = EXCLUDED.price,
		    publisher = EXCLUDED.publisher,
		    updated_at = now()
		RETURNING ` + bookColumns

	saved, err := scanBook(r.pool.QueryRow(ctx, q,
		book.ISBN, book.Title, book.Author, book.Price, book.Publisher,
	))
	if err != nil {
		fail(span, err, "Upsert failed")
		return nil, fmt.Errorf("save book %s: %w", book.ISBN, err)
	}

	r.logger.InfoContext(ctx, "Book saved in database",
		slog.String("isbn", saved.ISBN),
	)

	span.SetStatus(codes.Ok, "Book saved successfully")
	return saved, nil
}

// DeleteByISBN deletes the row if present.
func (r *BookRepository) DeleteByISBN(ctx context.Context, isbn string) error {
	ctx, span := r.tracer.Start(ctx, "BookRepository.DeleteByISBN")
	defer span.End()
	span.SetAttributes(attribute.String("book.isbn", isbn))

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM book WHERE isbn = $1`, isbn)
	if err != nil {
		fail(span, err, "Delete failed")
		return fmt.Errorf("delete book %s: %w", isbn, err)
	}

	r.logger.InfoContext(ctx, "Book deleted from database",
		slog.String("isbn", isbn),
		slog.Int64("rows_affected", tag.RowsAffected()),
	)

	span.SetStatus(codes.Ok, "Book deleted")
	return nil
}
