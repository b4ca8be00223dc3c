package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mrops-br/catalog-service/internal/domain"
)

func testBooks() []*domain.Book {
	publisher := "Polarsophia"
	return []*domain.Book{
		{ISBN: "1234567891", Title: "Northern Lights", Author: "Lyra Silverstar", Price: 9.90, Publisher: &publisher},
		{ISBN: "1234567892", Title: "Polar Journey", Author: "Iorek Polarson", Price: 12.90, Publisher: &publisher},
	}
}

// LoadTestData stores a fixed set of books, replacing any previous versions
func (s *BookService) LoadTestData(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "BookService.LoadTestData")
	defer span.End()

	books := testBooks()
	for _, b := range books {
		if _, err := s.repo.Save(ctx, b); err != nil {
			span.RecordError(err)
			return fmt.Errorf("seed book %s: %w", b.ISBN, err)
		}
	}

	s.logger.InfoContext(ctx, "Test data loaded", slog.Int("count", len(books)))
	return nil
}
