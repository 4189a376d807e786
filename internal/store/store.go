// Package store persists the schedule document. Every backend stores the
// whole document under a single key and is read-modify-written wholesale;
// there is no locking or versioning, so the last writer wins.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"hvacsched/internal/config"
	"hvacsched/internal/model"
)

// ErrNotFound is returned by Load when no document has been saved yet.
var ErrNotFound = errors.New("store: document not found")

// Store loads and saves the full schedule document.
type Store interface {
	Load(ctx context.Context) (model.Document, error)
	Save(ctx context.Context, doc model.Document) error
	Close() error
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverFile, "":
		return NewFile(cfg.Path, logger), nil
	case config.DriverDiskv:
		return NewDiskv(cfg.Path, cfg.Key, logger), nil
	case config.DriverRedis:
		return OpenRedis(ctx, cfg.Redis, cfg.Key, logger)
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.Postgres, cfg.Key, logger)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func decode(data []byte, where string) (model.Document, error) {
	doc, err := model.DecodeDocument(data)
	if err != nil {
		return model.Document{}, fmt.Errorf("store: decode %s: %w", where, err)
	}
	return doc, nil
}
