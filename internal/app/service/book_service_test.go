package service_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mrops-br/catalog-service/internal/app/dto"
	"github.com/mrops-br/catalog-service/internal/app/service"
	"github.com/mrops-br/catalog-service/internal/domain"
	"github.com/mrops-br/catalog-service/internal/infrastructure/repository/memory"
)

const isbn = "7373731394"

func price(v float64) *float64 { return &v }

func sampleRequest() *dto.BookRequest {
	return &dto.BookRequest{ISBN: isbn, Title: "Title", Author: "Author", Price: price(9.90)}
}

type fixture struct {
	svc    *service.BookService
	repo   *memory.BookRepository
	reader *sdkmetric.ManualReader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tracer := noop.NewTracerProvider().Tracer("test")
	logger := slog.New(slog.DiscardHandler)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	repo := memory.NewBookRepository(tracer, logger)
	return &fixture{
		svc:    service.NewBookService(repo, tracer, mp.Meter("test"), logger),
		repo:   repo,
		reader: reader,
	}
}

// operations returns books.operations data points keyed by "operation/result"
func (f *fixture) operations(t *testing.T) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "books.operations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value("operation")
				res, _ := dp.Attributes.Value("result")
				out[op.AsString()+"/"+res.AsString()] = dp.Value
			}
		}
	}
	return out
}

func TestBookService_AddThenView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.svc.AddBookToCatalog(ctx, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, &dto.BookResponse{ISBN: isbn, Title: "Title", Author: "Author", Price: 9.90}, created)

	found, err := f.svc.ViewBookDetails(ctx, isbn)
	require.NoError(t, err)
	assert.Equal(t, created, found)

	ops := f.operations(t)
	assert.Equal(t, int64(1), ops["create/success"])
	assert.Equal(t, int64(1), ops["read/success"])
}

func TestBookService_ViewMissingBook(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ViewBookDetails(context.Background(), isbn)

	assert.ErrorIs(t, err, domain.ErrBookNotFound)
	assert.Equal(t, int64(1), f.operations(t)["read/not_found"])
}

func TestBookService_AddExistingBookConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddBookToCatalog(ctx, sampleRequest())
	require.NoError(t, err)

	second := sampleRequest()
	second.Title = "Duplicate"
	_, err = f.svc.AddBookToCatalog(ctx, second)
	assert.ErrorIs(t, err, domain.ErrBookAlreadyExists)

	stored, err := f.svc.ViewBookDetails(ctx, isbn)
	require.NoError(t, err)
	assert.Equal(t, "Title", stored.Title)
	assert.Equal(t, int64(1), f.operations(t)["create/conflict"])
}

func TestBookService_ConcurrentAddsCreateOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := sampleRequest()
			req.Title = fmt.Sprintf("Title %d", i)
			<-start
			_, errs[i] = f.svc.AddBookToCatalog(ctx, req)
		}()
	}
	close(start)
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrBookAlreadyExists)
	}
	assert.Equal(t, 1, created)

	ops := f.operations(t)
	assert.Equal(t, int64(1), ops["create/success"])
	assert.Equal(t, int64(callers-1), ops["create/conflict"])
}

func TestBookService_AddInvalidBook(t *testing.T) {
	f := newFixture(t)
	req := sampleRequest()
	req.ISBN = "123"

	_, err := f.svc.AddBookToCatalog(context.Background(), req)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "isbn")
	assert.Equal(t, int64(1), f.operations(t)["create/invalid"])
}

func TestBookService_EditBookDetails(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces_existing_book", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AddBookToCatalog(ctx, sampleRequest())
		require.NoError(t, err)

		publisher := "Polarsophia"
		req := sampleRequest()
		req.Title = "Second Edition"
		req.Publisher = &publisher

		updated, err := f.svc.EditBookDetails(ctx, isbn, req)
		require.NoError(t, err)
		assert.Equal(t, "Second Edition", updated.Title)
		assert.Equal(t, "Polarsophia", *updated.Publisher)

		found, err := f.svc.ViewBookDetails(ctx, isbn)
		require.NoError(t, err)
		assert.Equal(t, updated, found)
	})

	t.Run("creates_missing_book", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.EditBookDetails(ctx, isbn, sampleRequest())
		require.NoError(t, err)

		_, err = f.svc.ViewBookDetails(ctx, isbn)
		require.NoError(t, err)
	})

	t.Run("empty_body_isbn_takes_path_isbn", func(t *testing.T) {
		f := newFixture(t)
		req := sampleRequest()
		req.ISBN = ""

		updated, err := f.svc.EditBookDetails(ctx, isbn, req)
		require.NoError(t, err)
		assert.Equal(t, isbn, updated.ISBN)
		assert.Empty(t, req.ISBN)
	})

	t.Run("mismatched_isbn_is_rejected", func(t *testing.T) {
		f := newFixture(t)
		req := sampleRequest()
		req.ISBN = "1234567891"

		_, err := f.svc.EditBookDetails(ctx, isbn, req)
		assert.ErrorIs(t, err, domain.ErrISBNMismatch)

		exists, err := f.repo.ExistsByISBN(ctx, "1234567891")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestBookService_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.RemoveBookFromCatalog(ctx, isbn))

	_, err := f.svc.AddBookToCatalog(ctx, sampleRequest())
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveBookFromCatalog(ctx, isbn))

	_, err = f.svc.ViewBookDetails(ctx, isbn)
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
	assert.Equal(t, int64(2), f.operations(t)["delete/success"])
}

func TestBookService_LoadTestData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.LoadTestData(ctx))
	require.NoError(t, f.svc.LoadTestData(ctx))

	books, err := f.svc.ViewBookList(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "1234567891", books[0].ISBN)
	assert.Equal(t, "Northern Lights", books[0].Title)
	assert.Equal(t, "1234567892", books[1].ISBN)
}
