// Package filesystem is the default storage.Adapter: one file per record under a directory.
//
// Files are named by the SHA-256 digest of the record name, so any name is addressable
// without path traversal or file name length limits. The record itself carries the name. Writes go to a uniquely named temp file first and are then linked
// (create) or renamed (update) into place, so readers never observe a partial record.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/turtacn/credkit/pkg/constants"
	"github.com/turtacn/credkit/pkg/logger"
	"github.com/turtacn/credkit/pkg/storage"
)

const (
	recordSuffix = ".json"
	tempPrefix   = ".tmp-"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Store keeps records as files in root.
type Store struct {
	root string
	log  logger.Logger

	// mu serializes updates and removals against each other within this process.
	mu sync.Mutex
}

// New returns a Store rooted at dir/name, creating the directory if needed.
func New(dir, name string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("filesystem storage: directory is required")
	}
	if name == "" {
		return nil, fmt.Errorf("filesystem storage: name is required")
	}
	s := &Store{
		root: filepath.Join(dir, name),
		log:  logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Component(s.log, "filesystem_storage")

	if err := os.MkdirAll(s.root, constants.StorageDirPermissions); err != nil {
		return nil, fmt.Errorf("filesystem storage: create %s: %w", s.root, err)
	}
	return s, nil
}

// Root returns the directory holding the record files.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *Store) Store(ctx context.Context, name string, data []byte) error {
	tmp, err := s.writeTemp(data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	// Link fails if the target exists, which makes create-if-absent atomic.
	if err := os.Link(tmp, s.path(name)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("filesystem storage: store %q: %w", name, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(name)
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return err
	}

	tmp, err := s.writeTemp(data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("filesystem storage: update %q: %w", name, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// List returns records in digest order.
func (s *Store) List(ctx context.Context) ([][]byte, error) {
	names, err := s.recordFiles()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(names))
	for _, file := range names {
		data, err := os.ReadFile(filepath.Join(s.root, file))
		if errors.Is(err, fs.ErrNotExist) {
			// Removed since the directory was read.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.recordFiles()
	if err != nil {
		return err
	}
	for _, file := range names {
		if err := os.Remove(filepath.Join(s.root, file)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	s.log.Debug(ctx, "Storage directory cleared", logger.Fields{"root": s.root, "count": len(names)})
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, storage.NameDigest(name)+recordSuffix)
}

func (s *Store) recordFiles() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) || !strings.HasSuffix(e.Name(), recordSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *Store) writeTemp(data []byte) (string, error) {
	tmp := filepath.Join(s.root, tempPrefix+uuid.NewString())
	if err := os.WriteFile(tmp, data, constants.StorageFilePermissions); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("filesystem storage: write temp file: %w", err)
	}
	return tmp, nil
}

var _ storage.Adapter = (*Store)(nil)
