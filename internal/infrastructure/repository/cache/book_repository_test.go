package cache_test

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mrops-br/catalog-service/internal/domain"
	"github.com/mrops-br/catalog-service/internal/infrastructure/repository/cache"
	"github.com/mrops-br/catalog-service/internal/infrastructure/repository/memory"
	"github.com/mrops-br/catalog-service/internal/infrastructure/repository/repositorytest"
)

// countingRepository counts lookups that reach the backing store.
type countingRepository struct {
	domain.BookRepository
	finds atomic.Int64
}

func (r *countingRepository) FindByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	r.finds.Add(1)
	return r.BookRepository.FindByISBN(ctx, isbn)
}

func newCached(t *testing.T) (*cache.BookRepository, *countingRepository) {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := slog.New(slog.DiscardHandler)

	backing := &countingRepository{BookRepository: memory.NewBookRepository(tracer, logger)}
	repo, err := cache.NewBookRepository(backing, 1000, time.Minute, tracer, logger)
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo, backing
}

func TestBookRepository_Contract(t *testing.T) {
	repositorytest.RunContract(t, func(t *testing.T) domain.BookRepository {
		repo, _ := newCached(t)
		return repo
	})
}

func TestBookRepository_ServesRepeatedLookupsFromCache(t *testing.T) {
	ctx := context.Background()
	repo, backing := newCached(t)

	_, err := repo.Save(ctx, repositorytest.SampleBook("7373731394"))
	require.NoError(t, err)

	_, err = repo.FindByISBN(ctx, "7373731394")
	require.NoError(t, err)
	repo.Wait()

	found, err := repo.FindByISBN(ctx, "7373731394")
	require.NoError(t, err)
	assert.Equal(t, "Title", found.Title)
	assert.Equal(t, int64(1), backing.finds.Load())
}

func TestBookRepository_SaveEvictsStaleEntry(t *testing.T) {
	ctx := context.Background()
	repo, _ := newCached(t)

	_, err := repo.Save(ctx, repositorytest.SampleBook("7373731394"))
	require.NoError(t, err)
	_, err = repo.FindByISBN(ctx, "7373731394")
	require.NoError(t, err)
	repo.Wait()

	updated := repositorytest.SampleBook("7373731394")
	updated.Title = "Second Edition"
	_, err = repo.Save(ctx, updated)
	require.NoError(t, err)
	repo.Wait()

	found, err := repo.FindByISBN(ctx, "7373731394")
	require.NoError(t, err)
	assert.Equal(t, "Second Edition", found.Title)
}

func TestBookRepository_DeleteEvictsEntry(t *testing.T) {
	ctx := context.Background()
	repo, _ := newCached(t)

	_, err := repo.Save(ctx, repositorytest.SampleBook("7373731394"))
	require.NoError(t, err)
	_, err = repo.FindByISBN(ctx, "7373731394")
	require.NoError(t, err)
	repo.Wait()

	require.NoError(t, repo.DeleteByISBN(ctx, "7373731394"))
	repo.Wait()

	_, err = repo.FindByISBN(ctx, "7373731394")
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
}

// pausingRepository holds the first FindByISBN after it has read from the
// backing store until release is closed.
type pausingRepository struct {
	domain.BookRepository
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (r *pausingRepository) FindByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	book, err := r.BookRepository.FindByISBN(ctx, isbn)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return book, err
}

func TestBookRepository_LookupOverlappingSaveDoesNotCacheOldRecord(t *testing.T) {
	ctx := context.Background()
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := slog.New(slog.DiscardHandler)

	backing := &pausingRepository{
		BookRepository: memory.NewBookRepository(tracer, logger),
		read:           make(chan struct{}),
		release:        make(chan struct{}),
	}
	_, err := backing.Save(ctx, repositorytest.SampleBook("7373731394"))
	require.NoError(t, err)

	repo, err := cache.NewBookRepository(backing, 1000, time.Minute, tracer, logger)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	done := make(chan *domain.Book, 1)
	go func() {
		book, err := repo.FindByISBN(ctx, "7373731394")
		assert.NoError(t, err)
		done <- book
	}()

	<-backing.read
	updated := repositorytest.SampleBook("7373731394")
	updated.Title = "Second Edition"
	_, err = repo.Save(ctx, updated)
	require.NoError(t, err)
	close(backing.release)

	stale := <-done
	assert.Equal(t, "Title", stale.Title)
	repo.Wait()

	found, err := repo.FindByISBN(ctx, "7373731394")
	require.NoError(t, err)
	assert.Equal(t, "Second Edition", found.Title)
}

func TestBookRepository_CreateRejectsExistingWithoutCaching(t *testing.T) {
	ctx := context.Background()
	repo, _ := newCached(t)

	_, err := repo.Create(ctx, repositorytest.SampleBook("7373731394"))
	require.NoError(t, err)
	_, err = repo.FindByISBN(ctx, "7373731394")
	require.NoError(t, err)
	repo.Wait()

	dup := repositorytest.SampleBook("7373731394")
	dup.Title = "Second"
	_, err = repo.Create(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrBookAlreadyExists)

	found, err := repo.FindByISBN(ctx, "7373731394")
	require.NoError(t, err)
	assert.Equal(t, "Title", found.Title)
}
