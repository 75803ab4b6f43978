// Package storage selects the StorageManager backend named in configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/storage/memory"
	"github.com/nikitakreml/invest-track-app/internal/storage/postgres"
	"github.com/nikitakreml/invest-track-app/internal/storage/surrealdb"
)

// NewStorageManager creates the storage backend for config.Storage.Driver.
// Supported drivers: "memory" (default), "postgres", "surrealdb".
func NewStorageManager(ctx context.Context, logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	driver := config.Storage.Driver
	if driver == "" {
		driver = common.StorageDriverMemory
	}

	switch driver {
	case common.StorageDriverMemory:
		logger.Info().Msg("Using in-memory storage; data is lost on restart")
		return memory.NewManager(logger), nil

	case common.StorageDriverPostgres:
		m, err := postgres.NewManager(ctx, logger, config.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres storage: %w", err)
		}
		return m, nil

	case common.StorageDriverSurrealDB:
		m, err := surrealdb.NewManager(ctx, logger, config.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create surrealdb storage: %w", err)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: memory, postgres, surrealdb)", driver)
	}
}
