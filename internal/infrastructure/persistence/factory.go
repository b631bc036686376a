// Package persistence selects and instruments the storage.Adapter named by configuration.
package persistence

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/turtacn/credkit/internal/config"
	"github.com/turtacn/credkit/internal/infrastructure/persistence/bolt"
	"github.com/turtacn/credkit/internal/infrastructure/persistence/database"
	"github.com/turtacn/credkit/internal/infrastructure/persistence/filesystem"
	"github.com/turtacn/credkit/internal/infrastructure/persistence/memory"
	"github.com/turtacn/credkit/internal/infrastructure/persistence/redis"
	"github.com/turtacn/credkit/internal/infrastructure/persistence/vault"
	"github.com/turtacn/credkit/pkg/constants"
	"github.com/turtacn/credkit/pkg/logger"
	"github.com/turtacn/credkit/pkg/storage"
)

// DefaultBoltFile is the bolt database file name used when none is configured.
const DefaultBoltFile = "credkit.db"

// Backend returns the backend sc selects, resolving the empty default to filesystem.
func Backend(sc config.StorageConfig) constants.StorageBackend {
	if sc.Backend == "" {
		return constants.StorageBackendFilesystem
	}
	return sc.Backend
}

// New opens the backend selected by cfg.Storage.Backend. The caller owns the
// adapter and releases it with storage.Close.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Adapter, error) {
	sc := cfg.Storage
	name := sc.Name
	if name == "" {
		name = constants.DefaultStorageName
	}
	backend := Backend(sc)
	log = logger.Component(log, "persistence")

	var (
		adapter storage.Adapter
		err     error
	)
	switch backend {
	case constants.StorageBackendFilesystem:
		dir := sc.Directory
		if dir == "" {
			dir = constants.DefaultStorageDirectory
		}
		adapter, err = filesystem.New(dir, name, filesystem.WithLogger(log))

	case constants.StorageBackendMemory:
		adapter = memory.New()

	case constants.StorageBackendBolt:
		file := sc.BoltFile
		if file == "" {
			file = DefaultBoltFile
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(sc.Directory, file)
		}
		adapter, err = bolt.Open(file, name)

	case constants.StorageBackendRedis:
		conn := redis.NewConnection(cfg.Redis, log)
		if err = conn.Connect(ctx); err != nil {
			break
		}
		health, herr := conn.HealthCheck(ctx)
		if herr != nil {
			_ = conn.Close()
			err = fmt.Errorf("redis health check: %w", herr)
			break
		}
		log.Info(ctx, "Redis health check passed", logger.Fields(health))
		adapter = redis.NewFromConnection(conn, cfg.Redis.KeyPrefix, name)

	case constants.StorageBackendVault:
		client, cerr := vault.NewClient(cfg.Vault)
		if cerr != nil {
			err = cerr
			break
		}
		adapter = vault.New(client, cfg.Vault.MountPath, name, log)

	case constants.StorageBackendSQL:
		db, oerr := database.Open(ctx, cfg.Database, log)
		if oerr != nil {
			err = oerr
			break
		}
		s, nerr := database.New(ctx, db, cfg.Database.Table, name)
		if nerr != nil {
			if sqlDB, dberr := db.DB(); dberr == nil {
				_ = sqlDB.Close()
			}
			err = nerr
			break
		}
		adapter = s.OwnConnection()

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
	if err != nil {
		log.Error(ctx, "Failed to open storage backend", err, logger.String("backend", string(backend)))
		return nil, err
	}

	log.Info(ctx, "Storage backend ready",
		logger.String("backend", string(backend)),
		logger.String("name", name),
	)
	return adapter, nil
}
