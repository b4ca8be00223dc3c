// Package cache implements a read-through domain.BookRepository decorator
// on top of a dgraph-io/ristretto in-process cache.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrops-br/catalog-service/internal/domain"
)

// BookRepository caches FindByISBN results. Writes go to the wrapped
// repository first and then evict the key.
//
// Every write bumps a per-ISBN generation. A lookup only fills the cache
// when the generation it saw before reading the wrapped repository is
// still current, so a read that overlaps a write never caches the old
// record. Filling and evicting happen under mu so the ristretto set and
// delete buffers see them in the same order.
type BookRepository struct {
	next   domain.BookRepository
	c      *ristretto.Cache[string, domain.Book]
	ttl    time.Duration
	tracer trace.Tracer
	logger *slog.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

// NewBookRepository wraps next with a cache holding at most maxItems books.
func NewBookRepository(next domain.BookRepository, maxItems int64, ttl time.Duration, tracer trace.Tracer, logger *slog.Logger) (*BookRepository, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, domain.Book]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
		// cost is counted in books, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &BookRepository{
		next:        next,
		c:           c,
		ttl:         ttl,
		tracer:      tracer,
		logger:      logger,
		generations: make(map[string]uint64),
	}, nil
}

func (r *BookRepository) generation(isbn string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[isbn]
}

// fill caches book unless isbn was written since seen was read
func (r *BookRepository) fill(isbn string, book *domain.Book, seen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generations[isbn] != seen {
		return false
	}
	r.c.SetWithTTL(isbn, *book.Clone(), 1, r.ttl)
	return true
}

func (r *BookRepository) evict(ctx context.Context, isbn string) {
	r.mu.Lock()
	r.generations[isbn]++
	r.c.Del(isbn)
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Evicted book from cache", slog.String("isbn", isbn))
}

// FindByISBN serves from cache, falling back to the wrapped repository.
func (r *BookRepository) FindByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	ctx, span := r.tracer.Start(ctx, "CachedBookRepository.FindByISBN")
	defer span.End()
	span.SetAttributes(attribute.String("book.isbn", isbn))

	if cached, ok := r.c.Get(isbn); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.Clone(), nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	seen := r.generation(isbn)

	book, err := r.next.FindByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Bool("cache.filled", r.fill(isbn, book, seen)))
	return book, nil
}

// Create writes through and evicts the key.
func (r *BookRepository) Create(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	created, err := r.next.Create(ctx, book)
	if err != nil {
		return nil, err
	}
	r.evict(ctx, book.ISBN)
	return created, nil
}

// Save writes through and evicts the cached entry.
func (r *BookRepository) Save(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	saved, err := r.next.Save(ctx, book)
	if err != nil {
		return nil, err
	}
	r.evict(ctx, book.ISBN)
	return saved, nil
}

// DeleteByISBN deletes through and evicts the cached entry.
func (r *BookRepository) DeleteByISBN(ctx context.Context, isbn string) error {
	if err := r.next.DeleteByISBN(ctx, isbn); err != nil {
		return err
	}
	r.evict(ctx, isbn)
	return nil
}

func (r *BookRepository) FindAll(ctx context.Context) ([]*domain.Book, error) {
	return r.next.FindAll(ctx)
}

func (r *BookRepository) ExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	return r.next.ExistsByISBN(ctx, isbn)
}

// Wait blocks until buffered cache writes are applied.
func (r *BookRepository) Wait() {
	r.c.Wait()
}

// Close releases the cache.
func (r *BookRepository) Close() {
	r.c.Close()
}
