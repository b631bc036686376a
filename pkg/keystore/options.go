package keystore

import (
	"time"

	"github.com/turtacn/credkit/internal/infrastructure/persistence/filesystem"
	"github.com/turtacn/credkit/pkg/constants"
	"github.com/turtacn/credkit/pkg/errors"
	"github.com/turtacn/credkit/pkg/logger"
	"github.com/turtacn/credkit/pkg/storage"
)

// Config selects the default filesystem adapter.
type Config struct {
	// Dir is the parent directory. Defaults to constants.DefaultStorageDirectory.
	Dir string
	// Name is the logical store name; entries live in Dir/Name. Defaults to constants.DefaultStorageName.
	Name string
}

// Source is where a Store keeps its entries: either FromConfig or FromAdapter.
type Source interface {
	open(log logger.Logger) (storage.Adapter, error)
}

type configSource struct{ cfg Config }

type adapterSource struct{ adapter storage.Adapter }

// FromConfig stores entries as files under cfg.Dir/cfg.Name.
func FromConfig(cfg Config) Source {
	return configSource{cfg: cfg}
}

// FromAdapter stores entries in a caller-provided adapter.
func FromAdapter(a storage.Adapter) Source {
	return adapterSource{adapter: a}
}

func (s configSource) open(log logger.Logger) (storage.Adapter, error) {
	dir := s.cfg.Dir
	if dir == "" {
		dir = constants.DefaultStorageDirectory
	}
	name := s.cfg.Name
	if name == "" {
		name = constants.DefaultStorageName
	}
	return filesystem.New(dir, name, filesystem.WithLogger(log))
}

func (s adapterSource) open(logger.Logger) (storage.Adapter, error) {
	if s.adapter == nil {
		return nil, errors.ErrValidation("adapter")
	}
	return s.adapter, nil
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}
