// Package adaptertest is a conformance suite for storage.Adapter implementations.
//
//	func TestMyAdapter(t *testing.T) {
//		suite.Run(t, &adaptertest.Suite{NewAdapter: func(t *testing.T) storage.Adapter { ... }})
//	}
package adaptertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/turtacn/credkit/pkg/storage"
)

// Suite exercises the storage.Adapter contract. NewAdapter must return an empty adapter.
type Suite struct {
	suite.Suite

	NewAdapter func(t *testing.T) storage.Adapter

	ctx     context.Context
	adapter storage.Adapter
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.adapter = s.NewAdapter(s.T())
}

func (s *Suite) TearDownTest() {
	s.NoError(storage.Close(s.adapter))
}

// Adapter returns the adapter under test.
func (s *Suite) Adapter() storage.Adapter {
	return s.adapter
}

func (s *Suite) TestStoreThenLoad() {
	s.Require().NoError(s.adapter.Store(s.ctx, "alpha", []byte(`{"a":1}`)))

	got, err := s.adapter.Load(s.ctx, "alpha")
	s.Require().NoError(err)
	s.Equal([]byte(`{"a":1}`), got)

	ok, err := s.adapter.Exists(s.ctx, "alpha")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *Suite) TestLoadMissReturnsNil() {
	got, err := s.adapter.Load(s.ctx, "missing")
	s.Require().NoError(err)
	s.Nil(got)

	ok, err := s.adapter.Exists(s.ctx, "missing")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *Suite) TestStoreRejectsDuplicate() {
	s.Require().NoError(s.adapter.Store(s.ctx, "dup", []byte("first")))

	err := s.adapter.Store(s.ctx, "dup", []byte("second"))
	s.ErrorIs(err, storage.ErrAlreadyExists)

	got, err := s.adapter.Load(s.ctx, "dup")
	s.Require().NoError(err)
	s.Equal([]byte("first"), got)
}

func (s *Suite) TestUpdate() {
	s.Require().NoError(s.adapter.Store(s.ctx, "upd", []byte("v1")))
	s.Require().NoError(s.adapter.Update(s.ctx, "upd", []byte("v2")))

	got, err := s.adapter.Load(s.ctx, "upd")
	s.Require().NoError(err)
	s.Equal([]byte("v2"), got)
}

func (s *Suite) TestUpdateMissing() {
	err := s.adapter.Update(s.ctx, "ghost", []byte("v"))
	s.ErrorIs(err, storage.ErrNotFound)

	ok, err := s.adapter.Exists(s.ctx, "ghost")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *Suite) TestRemove() {
	s.Require().NoError(s.adapter.Store(s.ctx, "rm", []byte("v")))

	removed, err := s.adapter.Remove(s.ctx, "rm")
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.adapter.Remove(s.ctx, "rm")
	s.Require().NoError(err)
	s.False(removed)

	got, err := s.adapter.Load(s.ctx, "rm")
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *Suite) TestListAndClear() {
	list, err := s.adapter.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)

	want := []string{"one", "two", "three"}
	for _, name := range want {
		s.Require().NoError(s.adapter.Store(s.ctx, name, []byte("record-"+name)))
	}

	list, err = s.adapter.List(s.ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"record-one", "record-two", "record-three"}, asStrings(list))

	s.Require().NoError(s.adapter.Clear(s.ctx))
	list, err = s.adapter.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)

	for _, name := range want {
		ok, err := s.adapter.Exists(s.ctx, name)
		s.Require().NoError(err)
		s.False(ok, name)
	}

	// The adapter stays usable after Clear.
	s.Require().NoError(s.adapter.Store(s.ctx, "one", []byte("again")))
}

func (s *Suite) TestAwkwardNames() {
	names := []string{"with space", "slash/inside", "../escape", "ключ", "a:b*c", strings.Repeat("long", 100)}
	for _, name := range names {
		s.Require().NoError(s.adapter.Store(s.ctx, name, []byte(name)), name)
	}
	for _, name := range names {
		got, err := s.adapter.Load(s.ctx, name)
		s.Require().NoError(err, name)
		s.Equal([]byte(name), got, name)
	}

	list, err := s.adapter.List(s.ctx)
	s.Require().NoError(err)
	s.ElementsMatch(names, asStrings(list))
}

func (s *Suite) TestBinaryRecord() {
	data := []byte{0x00, 0xff, 0x10, 0x80}
	s.Require().NoError(s.adapter.Store(s.ctx, "bin", data))

	got, err := s.adapter.Load(s.ctx, "bin")
	s.Require().NoError(err)
	s.Equal(data, got)
}

func (s *Suite) TestConcurrentStoreHasOneWinner() {
	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		conflict int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.adapter.Store(s.ctx, "contended", []byte(fmt.Sprintf("writer-%d", i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, storage.ErrAlreadyExists):
				conflict++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, winners)
	s.Equal(writers-1, conflict)
}

func asStrings(records [][]byte) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}
