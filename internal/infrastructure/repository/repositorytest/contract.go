// Package repositorytest holds behavior checks shared by every
// domain.BookRepository implementation.
package repositorytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrops-br/catalog-service/internal/domain"
)

// SampleBook returns the catalog entry used across tests.
func SampleBook(isbn string) *domain.Book {
	return &domain.Book{
		ISBN:   isbn,
		Title:  "Title",
		Author: "Author",
		Price:  9.90,
	}
}

// RunContract exercises repo against the storage contract. newRepo must
// return an empty repository on every call.
func RunContract(t *testing.T, newRepo func(t *testing.T) domain.BookRepository) {
	t.Helper()
	ctx := context.Background()

	t.Run("save_then_find_returns_equal_book", func(t *testing.T) {
		repo := newRepo(t)
		publisher := "Polarsophia"
		book := SampleBook("7373731394")
		book.Publisher = &publisher

		saved, err := repo.Save(ctx, book)
		require.NoError(t, err)
		assert.True(t, book.Equal(saved))

		found, err := repo.FindByISBN(ctx, book.ISBN)
		require.NoError(t, err)
		assert.True(t, book.Equal(found), "got %+v", found)
	})

	t.Run("values_round_trip_unchanged", func(t *testing.T) {
		repo := newRepo(t)
		publisher := strings.Repeat("p", 300)
		book := &domain.Book{
			ISBN:      "9781234567897",
			Title:     strings.Repeat("t", 1000),
			Author:    strings.Repeat("a", 300),
			Price:     9.999,
			Publisher: &publisher,
		}

		_, err := repo.Save(ctx, book)
		require.NoError(t, err)

		found, err := repo.FindByISBN(ctx, book.ISBN)
		require.NoError(t, err)
		assert.Equal(t, 9.999, found.Price)
		assert.True(t, book.Equal(found))

		book.Price = 123456789.125
		_, err = repo.Save(ctx, book)
		require.NoError(t, err)

		found, err = repo.FindByISBN(ctx, book.ISBN)
		require.NoError(t, err)
		assert.Equal(t, 123456789.125, found.Price)
	})

	t.Run("create_then_find_returns_equal_book", func(t *testing.T) {
		repo := newRepo(t)
		book := SampleBook("7373731394")

		created, err := repo.Create(ctx, book)
		require.NoError(t, err)
		assert.True(t, book.Equal(created))

		found, err := repo.FindByISBN(ctx, book.ISBN)
		require.NoError(t, err)
		assert.True(t, book.Equal(found))
	})

	t.Run("create_existing_isbn_keeps_original", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, SampleBook("7373731394"))
		require.NoError(t, err)

		second := SampleBook("7373731394")
		second.Title = "Second"
		_, err = repo.Create(ctx, second)
		assert.ErrorIs(t, err, domain.ErrBookAlreadyExists)

		found, err := repo.FindByISBN(ctx, "7373731394")
		require.NoError(t, err)
		assert.Equal(t, "Title", found.Title)
	})

	t.Run("concurrent_creates_admit_exactly_one", func(t *testing.T) {
		repo := newRepo(t)

		var (
			wg        sync.WaitGroup
			succeeded atomic.Int64
			winner    atomic.Value
		)
		start := make(chan struct{})
		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b := SampleBook("7373731394")
				b.Title = fmt.Sprintf("Title %d", i)
				<-start
				_, err := repo.Create(ctx, b)
				if err == nil {
					succeeded.Add(1)
					winner.Store(b.Title)
					return
				}
				assert.ErrorIs(t, err, domain.ErrBookAlreadyExists)
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, int64(1), succeeded.Load())
		found, err := repo.FindByISBN(ctx, "7373731394")
		require.NoError(t, err)
		assert.Equal(t, winner.Load(), found.Title)
	})

	t.Run("find_missing_returns_not_found", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.FindByISBN(ctx, "7373731394")
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
	})

	t.Run("save_existing_isbn_replaces_record", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Save(ctx, SampleBook("7373731394"))
		require.NoError(t, err)

		updated := SampleBook("7373731394")
		updated.Title = "Second Edition"
		updated.Price = 12.5
		_, err = repo.Save(ctx, updated)
		require.NoError(t, err)

		found, err := repo.FindByISBN(ctx, "7373731394")
		require.NoError(t, err)
		assert.Equal(t, "Second Edition", found.Title)
		assert.Equal(t, 12.5, found.Price)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("delete_then_find_returns_not_found", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Save(ctx, SampleBook("7373731394"))
		require.NoError(t, err)

		require.NoError(t, repo.DeleteByISBN(ctx, "7373731394"))

		_, err = repo.FindByISBN(ctx, "7373731394")
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
	})

	t.Run("delete_missing_is_not_an_error", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.DeleteByISBN(ctx, "7373731394"))

		_, err := repo.FindByISBN(ctx, "7373731394")
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
	})

	t.Run("exists_by_isbn", func(t *testing.T) {
		repo := newRepo(t)

		exists, err := repo.ExistsByISBN(ctx, "7373731394")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = repo.Save(ctx, SampleBook("7373731394"))
		require.NoError(t, err)

		exists, err = repo.ExistsByISBN(ctx, "7373731394")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("find_all_orders_by_isbn", func(t *testing.T) {
		repo := newRepo(t)
		for _, isbn := range []string{"9999999999", "1111111111", "5555555555"} {
			_, err := repo.Save(ctx, SampleBook(isbn))
			require.NoError(t, err)
		}

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "1111111111", all[0].ISBN)
		assert.Equal(t, "5555555555", all[1].ISBN)
		assert.Equal(t, "9999999999", all[2].ISBN)
	})

	t.Run("concurrent_saves_are_never_partially_visible", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Save(ctx, SampleBook("7373731394"))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				b := SampleBook("7373731394")
				b.Title = fmt.Sprintf("Title %d", i)
				b.Author = fmt.Sprintf("Author %d", i)
				_, _ = repo.Save(ctx, b)
			}()
			go func() {
				defer wg.Done()
				found, err := repo.FindByISBN(ctx, "7373731394")
				if !assert.NoError(t, err) {
					return
				}
				var n string
				if found.Title != "Title" {
					n = found.Title[len("Title "):]
					assert.Equal(t, "Author "+n, found.Author)
				} else {
					assert.Equal(t, "Author", found.Author)
				}
			}()
		}
		wg.Wait()
	})
}
