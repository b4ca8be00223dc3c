package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrops-br/catalog-service/internal/app/service"
	"github.com/mrops-br/catalog-service/internal/domain"
	"github.com/mrops-br/catalog-service/internal/infrastructure/config"
	"github.com/mrops-br/catalog-service/internal/infrastructure/http"
	"github.com/mrops-br/catalog-service/internal/infrastructure/http/handler"
	"github.com/mrops-br/catalog-service/internal/infrastructure/repository/cache"
	"github.com/mrops-br/catalog-service/internal/infrastructure/repository/memory"
	"github.com/mrops-br/catalog-service/internal/infrastructure/repository/postgres"
	"github.com/mrops-br/catalog-service/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize OpenTelemetry
	var (
		telem *telemetry.Telemetry
		err   error
	)
	if cfg.OTLP.Enabled {
		telem, err = telemetry.NewTelemetry(&cfg.OTLP)
	} else {
		telem, err = telemetry.NewNoOpTelemetry(&cfg.OTLP)
	}
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	// Ensure telemetry is shutdown on exit
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := telem.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()

	tracer := telem.TracerProvider.Tracer("catalog-service")
	meter := telem.MeterProvider.Meter("catalog-service")
	logger := telem.Logger

	logger.Info("Starting Catalog Service",
		slog.String("storage", cfg.Storage.Driver),
		slog.Bool("cache", cfg.Cache.Enabled),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, closeRepo, err := newRepository(ctx, cfg, tracer, logger)
	if err != nil {
		logger.Error("Failed to initialize repository", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeRepo()

	bookService := service.NewBookService(repo, tracer, meter, logger)

	if cfg.SeedTestData {
		if err := bookService.LoadTestData(ctx); err != nil {
			logger.Error("Failed to load test data", slog.String("error", err.Error()))
		}
	}

	bookHandler := handler.NewBookHandler(bookService, logger)
	server := http.NewServer(&cfg.Server, bookHandler, logger, telem)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", slog.String("error", err.Error()))
		}
	}

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("Server shutdown failed", slog.String("error", err.Error()))
	}

	logger.Info("Server stopped")
}

// newRepository builds the configured store, optionally behind the cache.
// The returned func releases its resources.
func newRepository(ctx context.Context, cfg *config.Config, tracer trace.Tracer, logger *slog.Logger) (domain.BookRepository, func(), error) {
	var (
		repo    domain.BookRepository
		closers []func()
	)

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		repo = memory.NewBookRepository(tracer, logger)
	case config.StoragePostgres:
		if err := postgres.RunMigrations(ctx, cfg.Database.URL); err != nil {
			return nil, nil, err
		}
		pool, err := postgres.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		repo = postgres.NewBookRepository(pool, cfg.Database.QueryTimeout, tracer, logger)
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Cache.Enabled {
		cached, err := cache.NewBookRepository(repo, cfg.Cache.MaxItems, cfg.Cache.TTL, tracer, logger)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, fmt.Errorf("create cache: %w", err)
		}
		closers = append(closers, cached.Close)
		repo = cached
	}

	return repo, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
