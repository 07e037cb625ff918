package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"

	"ArticlesRewriter/internal/config"
	"ArticlesRewriter/internal/ports"
)

// Driver names accepted in database.driver.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// ErrUnsupportedDriver is returned for an unknown database.driver value.
var ErrUnsupportedDriver = errors.New("unsupported storage driver")

// Open connects the configured backend and prepares its schema or indexes.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (ports.Repository, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	logger.Info("opening storage", "driver", driver)

	switch driver {
	case DriverPostgres:
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo := NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return repo, nil
	case DriverMongo:
		repo, err := NewMongoRepository(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, err
		}
		return repo, nil
	case DriverMemory:
		logger.Warn("using in-memory storage, data is lost on exit")
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
}
