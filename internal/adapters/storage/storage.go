// Package storage opens the store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/adapters/sqlstore"
	"github.com/okian/peloton/internal/config"
	"github.com/okian/peloton/pkg/logger"
)

// Store is everything the binaries need from a backend.
type Store interface {
	repository.Store
	repository.Loader
	io.Closer
}

type memory struct {
	*repository.MemoryStore
}

func (memory) Close() error { return nil }

// Open returns an in-memory store for the memory backend and a migrated
// SQL store otherwise.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	log := logger.Get()
	if cfg.DBBackend == config.BackendMemory || cfg.DBBackend == "" {
		log.Info(ctx, "using in-memory store")
		return memory{repository.NewMemoryStore()}, nil
	}

	backend, err := sqlstore.ParseBackend(cfg.DBBackend)
	if err != nil {
		return nil, err
	}
	s, err := sqlstore.Open(ctx, backend, cfg.DBDSN,
		sqlstore.WithMigrate(cfg.MigrateOnStart),
		sqlstore.WithMaxOpenConns(cfg.WorkerCount*2),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Info(ctx, "using sql store",
		logger.String("backend", string(backend)),
		logger.Bool("migrate", cfg.MigrateOnStart))
	return s, nil
}
