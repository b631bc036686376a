package keystore_test

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/credkit/internal/infrastructure/persistence/memory"
	"github.com/turtacn/credkit/pkg/errors"
	"github.com/turtacn/credkit/pkg/keystore"
	"github.com/turtacn/credkit/pkg/storage"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(t *testing.T) (*keystore.Store, *memory.Store, *clock) {
	t.Helper()
	c := &clock{now: time.Unix(1700000000, 0)}
	adapter := memory.New()
	s, err := keystore.New(keystore.FromAdapter(adapter), keystore.WithClock(c.Now))
	require.NoError(t, err)
	return s, adapter, c
}

func TestSaveThenLoad(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, keystore.SaveParams{Name: "k", Value: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, saved.Value)

	loaded, err := s.Load(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "k", loaded.Name)
	assert.Equal(t, []byte{1, 2, 3}, loaded.Value)
	assert.Nil(t, loaded.Meta)
	assert.True(t, loaded.CreationDate.Equal(loaded.ModificationDate))
	assert.Equal(t, saved, loaded)
}

func TestSavePersistsWireFormat(t *testing.T) {
	s, adapter, _ := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, keystore.SaveParams{Name: "k", Value: []byte{1, 2, 3}})
	require.NoError(t, err)
	raw, err := adapter.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"k","value":"AQID","creationDate":"2023-11-14T22:13:20.000Z","modificationDate":"2023-11-14T22:13:20.000Z"}`,
		string(raw))

	_, err = s.Save(ctx, keystore.SaveParams{Name: "m", Value: []byte("x"), Meta: map[string]string{"a": "b"}})
	require.NoError(t, err)
	raw, err = adapter.Load(ctx, "m")
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"name":"m","value":"eA==","meta":{"a":"b"},"creationDate":"2023-11-14T22:13:20.000Z","modificationDate":"2023-11-14T22:13:20.000Z"}`,
		string(raw))
}

func TestLoadAcceptsForeignRecord(t *testing.T) {
	s, adapter, _ := newStore(t)
	ctx := context.Background()

	record := `{"modificationDate":"2024-01-02T03:04:05.678Z","meta":{"x":"y"},"value":"AQID","name":"ext","creationDate":"2024-01-01T00:00:00Z"}`
	require.NoError(t, adapter.Store(ctx, "ext", []byte(record)))

	entry, err := s.Load(ctx, "ext")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, entry.Value)
	assert.Equal(t, map[string]string{"x": "y"}, entry.Meta)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), entry.CreationDate)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 678000000, time.UTC), entry.ModificationDate)
}

func TestTimestampsTruncatedToMilliseconds(t *testing.T) {
	c := &clock{now: time.Unix(1700000000, 123456789)}
	s, err := keystore.New(keystore.FromAdapter(memory.New()), keystore.WithClock(c.Now))
	require.NoError(t, err)
	ctx := context.Background()

	saved, err := s.Save(ctx, keystore.SaveParams{Name: "k", Value: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, 123000000, saved.CreationDate.Nanosecond())

	loaded, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestLoadMissReturnsNil(t *testing.T) {
	s, _, _ := newStore(t)
	entry, err := s.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSaveDuplicate(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, keystore.SaveParams{Name: "k", Value: []byte{1}})
	require.NoError(t, err)

	_, err = s.Save(ctx, keystore.SaveParams{Name: "k", Value: []byte{2}})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeEntryAlreadyExists))
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	loaded, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, loaded.Value)
}

func TestValidation(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		param string
		call  func() error
	}{
		{"exists without name", "name", func() error { _, err := s.Exists(ctx, ""); return err }},
		{"load without name", "name", func() error { _, err := s.Load(ctx, ""); return err }},
		{"remove without name", "name", func() error { _, err := s.Remove(ctx, ""); return err }},
		{"save without name", "name", func() error {
			_, err := s.Save(ctx, keystore.SaveParams{Value: []byte{1}})
			return err
		}},
		{"save without value", "value", func() error {
			_, err := s.Save(ctx, keystore.SaveParams{Name: "k"})
			return err
		}},
		{"save with empty value", "value", func() error {
			_, err := s.Save(ctx, keystore.SaveParams{Name: "k", Value: []byte{}})
			return err
		}},
		{"update without name", "name", func() error {
			_, err := s.Update(ctx, keystore.UpdateParams{Value: []byte{1}})
			return err
		}},
		{"update with nothing to change", "value or meta", func() error {
			_, err := s.Update(ctx, keystore.UpdateParams{Name: "k"})
			return err
		}},
		{"update with empty value", "value", func() error {
			_, err := s.Update(ctx, keystore.UpdateParams{Name: "k", Value: []byte{}})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			credErr, ok := errors.AsCredError(err)
			require.True(t, ok)
			assert.Equal(t, errors.CodeValidation, credErr.Code())
			assert.Equal(t, tt.param, credErr.Metadata()["parameter"])
		})
	}
}

func TestUpdateMissing(t *testing.T) {
	s, _, _ := newStore(t)
	_, err := s.Update(context.Background(), keystore.UpdateParams{Name: "missing", Value: []byte{1}})
	assert.True(t, errors.HasCode(err, errors.CodeEntryNotFound))
}

func TestUpdateMeta(t *testing.T) {
	s, _, c := newStore(t)
	ctx := context.Background()

	saved, err := s.Save(ctx, keystore.SaveParams{Name: "k", Value: []byte{1, 2, 3}})
	require.NoError(t, err)

	c.Advance(90 * time.Second)
	updated, err := s.Update(ctx, keystore.UpdateParams{Name: "k", Meta: map[string]string{"a": "b"}})
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, updated, loaded)
	assert.Equal(t, []byte{1, 2, 3}, loaded.Value)
	assert.Equal(t, map[string]string{"a": "b"}, loaded.Meta)
	assert.Equal(t, saved.CreationDate, loaded.CreationDate)
	assert.True(t, loaded.ModificationDate.After(saved.ModificationDate))
	assert.Equal(t, saved.CreationDate.Add(90*time.Second), loaded.ModificationDate)
}

func TestUpdateValueKeepsMeta(t *testing.T) {
	s, _, c := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, keystore.SaveParams{Name: "k", Value: []byte{1}, Meta: map[string]string{"role": "signing"}})
	require.NoError(t, err)

	c.Advance(time.Second)
	_, err = s.Update(ctx, keystore.UpdateParams{Name: "k", Value: []byte{9, 9}})
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, loaded.Value)
	assert.Equal(t, map[string]string{"role": "signing"}, loaded.Meta)
}

func TestReturnedEntriesAreCopies(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	value := []byte{1, 2, 3}
	meta := map[string]string{"a": "b"}
	saved, err := s.Save(ctx, keystore.SaveParams{Name: "k", Value: value, Meta: meta})
	require.NoError(t, err)

	value[0] = 0xff
	meta["a"] = "changed"
	saved.Value[1] = 0xff

	loaded, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, loaded.Value)
	assert.Equal(t, "b", loaded.Meta["a"])
}

func TestExistsRemove(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Save(ctx, keystore.SaveParams{Name: "k", Value: []byte{1}})
	require.NoError(t, err)

	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := s.Remove(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestListAndClear(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	for _, name := range []string{"b", "a", "c"} {
		_, err := s.Save(ctx, keystore.SaveParams{Name: name, Value: []byte(name)})
		require.NoError(t, err)
	}

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// The memory adapter yields names in sorted order.
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, []byte("c"), entries[2].Value)

	require.NoError(t, s.Clear(ctx))
	entries, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInvalidRecords(t *testing.T) {
	records := map[string]string{
		"not json":          `garbage`,
		"array":             `[1,2]`,
		"bad base64":        `{"name":"k","value":"!!","creationDate":"2024-01-01T00:00:00.000Z","modificationDate":"2024-01-01T00:00:00.000Z"}`,
		"value not string":  `{"name":"k","value":5,"creationDate":"2024-01-01T00:00:00.000Z","modificationDate":"2024-01-01T00:00:00.000Z"}`,
		"bad date":          `{"name":"k","value":"AQ==","creationDate":"yesterday","modificationDate":"2024-01-01T00:00:00.000Z"}`,
		"missing date":      `{"name":"k","value":"AQ==","creationDate":"2024-01-01T00:00:00.000Z"}`,
		"missing name":      `{"value":"AQ==","creationDate":"2024-01-01T00:00:00.000Z","modificationDate":"2024-01-01T00:00:00.000Z"}`,
		"trailing data":     `{"name":"k","value":"AQ==","creationDate":"2024-01-01T00:00:00.000Z","modificationDate":"2024-01-01T00:00:00.000Z"}{}`,
		"meta wrong type":   `{"name":"k","value":"AQ==","meta":{"a":1},"creationDate":"2024-01-01T00:00:00.000Z","modificationDate":"2024-01-01T00:00:00.000Z"}`,
		"value empty":       `{"name":"k","value":"","creationDate":"2024-01-01T00:00:00.000Z","modificationDate":"2024-01-01T00:00:00.000Z"}`,
	}

	for name, record := range records {
		t.Run(name, func(t *testing.T) {
			s, adapter, _ := newStore(t)
			ctx := context.Background()
			require.NoError(t, adapter.Store(ctx, "k", []byte(record)))

			_, err := s.Load(ctx, "k")
			assert.True(t, errors.HasCode(err, errors.CodeInvalidEntry), "got %v", err)

			_, err = s.List(ctx)
			assert.True(t, errors.HasCode(err, errors.CodeInvalidEntry), "got %v", err)
		})
	}
}

type failingAdapter struct {
	storage.Adapter
	err error
}

func (f failingAdapter) Store(context.Context, string, []byte) error { return f.err }
func (f failingAdapter) Load(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingAdapter) Remove(context.Context, string) (bool, error) { return false, f.err }
func (f failingAdapter) Exists(context.Context, string) (bool, error) { return false, f.err }
func (f failingAdapter) List(context.Context) ([][]byte, error) { return nil, f.err }
func (f failingAdapter) Clear(context.Context) error { return f.err }
func (f failingAdapter) Update(context.Context, string, []byte) error { return f.err }

func TestAdapterErrorsPassThrough(t *testing.T) {
	diskFull := stderrors.New("disk full")
	s, err := keystore.New(keystore.FromAdapter(failingAdapter{err: diskFull}))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Save(ctx, keystore.SaveParams{Name: "k", Value: []byte{1}})
	assert.Same(t, diskFull, err)
	_, err = s.Load(ctx, "k")
	assert.Same(t, diskFull, err)
	_, err = s.Update(ctx, keystore.UpdateParams{Name: "k", Value: []byte{1}})
	assert.Same(t, diskFull, err)
	_, err = s.Exists(ctx, "k")
	assert.Same(t, diskFull, err)
	_, err = s.Remove(ctx, "k")
	assert.Same(t, diskFull, err)
	_, err = s.List(ctx)
	assert.Same(t, diskFull, err)
	assert.Same(t, diskFull, s.Clear(ctx))
}

func TestFromAdapterRequiresAdapter(t *testing.T) {
	_, err := keystore.New(keystore.FromAdapter(nil))
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = keystore.New(nil)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestFromConfigUsesFilesystem(t *testing.T) {
	dir := t.TempDir()
	s, err := keystore.New(keystore.FromConfig(keystore.Config{Dir: dir, Name: "Keys"}))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(context.Background(), keystore.SaveParams{Name: "k", Value: []byte{1}})
	require.NoError(t, err)

	files, err := os.ReadDir(filepath.Join(dir, "Keys"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	reopened, err := keystore.New(keystore.FromConfig(keystore.Config{Dir: dir, Name: "Keys"}))
	require.NoError(t, err)
	entry, err := reopened.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, entry.Value)
}
