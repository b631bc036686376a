// Package bolt is a storage.Adapter backed by a single bbolt database file.
//
// Each store name maps to one bucket; record names are the bucket keys.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/turtacn/credkit/pkg/constants"
	"github.com/turtacn/credkit/pkg/storage"
)

// Store keeps records in one bucket of a bbolt database.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open opens (or creates) the database at path and the bucket for name.
func Open(path, name string) (*Store, error) {
	if name == "" {
		return nil, fmt.Errorf("bolt storage: name is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.StorageDirPermissions); err != nil {
		return nil, fmt.Errorf("bolt storage: %w", err)
	}
	db, err := bolt.Open(path, constants.StorageFilePermissions, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt storage: open %s: %w", path, err)
	}

	s := &Store{db: db, bucket: []byte(name)}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt storage: create bucket %q: %w", name, err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Exists(ctx context.Context, name string) (found bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(s.bucket).Get([]byte(name)) != nil
		return nil
	})
	return found, err
}

func (s *Store) Load(ctx context.Context, name string) (data []byte, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		// Values are only valid for the life of the transaction.
		if v := tx.Bucket(s.bucket).Get([]byte(name)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	return data, err
}

func (s *Store) Store(ctx context.Context, name string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(name)) != nil {
			return storage.ErrAlreadyExists
		}
		return b.Put([]byte(name), data)
	})
}

func (s *Store) Update(ctx context.Context, name string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(name)) == nil {
			return storage.ErrNotFound
		}
		return b.Put([]byte(name), data)
	})
}

func (s *Store) Remove(ctx context.Context, name string) (removed bool, err error) {
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(name)) == nil {
			return nil
		}
		removed = true
		return b.Delete([]byte(name))
	})
	return removed, err
}

// List returns records in key byte order.
func (s *Store) List(ctx context.Context) (out [][]byte, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(_, v []byte) error {
			record := make([]byte, len(v))
			copy(record, v)
			out = append(out, record)
			return nil
		})
	})
	return out, err
}

func (s *Store) Clear(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}

var _ storage.Adapter = (*Store)(nil)
