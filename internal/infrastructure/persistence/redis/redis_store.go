package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/credkit/pkg/storage"
)

// updateIfPresent replaces a hash field only if it already exists.
var updateIfPresent = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0
`)

// Store keeps all records of one store in a single Redis hash, so every
// operation touches one key and stays atomic in cluster mode as well.
type Store struct {
	client redis.UniversalClient
	key    string
	closer func() error
}

// New returns a Store keeping records in the hash "<prefix>:{<name>}:entries".
func New(client redis.UniversalClient, prefix, name string) *Store {
	if prefix == "" {
		prefix = "credkit"
	}
	return &Store{
		client: client,
		key:    fmt.Sprintf("%s:{%s}:entries", prefix, name),
	}
}

// NewFromConnection is like New and closes conn when the store is closed.
func NewFromConnection(conn *Connection, prefix, name string) *Store {
	s := New(conn.Client(), prefix, name)
	s.closer = conn.Close
	return s
}

// Key returns the hash key holding the records.
func (s *Store) Key() string {
	return s.key
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	return s.client.HExists(ctx, s.key, name).Result()
}

func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.HGet(ctx, s.key, name).Bytes()
	if errors.Is(err, redis.Nil) {
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
	created, err := s.client.HSetNX(ctx, s.key, name, data).Result()
	if err != nil {
		return err
	}
	if !created {
		return storage.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Update(ctx context.Context, name string, data []byte) error {
	updated, err := updateIfPresent.Run(ctx, s.client, []string{s.key}, name, data).Int()
	if err != nil {
		return err
	}
	if updated == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, name string) (bool, error) {
	n, err := s.client.HDel(ctx, s.key, name).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns records ordered by name.
func (s *Store) List(ctx context.Context) ([][]byte, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([][]byte, 0, len(names))
	for _, name := range names {
		out = append(out, []byte(all[name]))
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Close closes the owned connection, if any.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

var _ storage.Adapter = (*Store)(nil)
