package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/credkit/internal/config"
	"github.com/turtacn/credkit/internal/infrastructure/persistence/adaptertest"
	"github.com/turtacn/credkit/pkg/logger"
	"github.com/turtacn/credkit/pkg/storage"
)

func TestRedisStore(t *testing.T) {
	suite.Run(t, &adaptertest.Suite{
		NewAdapter: func(t *testing.T) storage.Adapter {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return New(client, "test", "VirgilKeys")
		},
	})
}

func TestRedisStoreLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	a := New(client, "", "AppA")
	b := New(client, "", "AppB")
	assert.Equal(t, "credkit:{AppA}:entries", a.Key())

	require.NoError(t, a.Store(ctx, "k", []byte("from-a")))
	require.NoError(t, b.Store(ctx, "k", []byte("from-b")))

	assert.Equal(t, "from-a", mr.HGet("credkit:{AppA}:entries", "k"))

	require.NoError(t, a.Clear(ctx))
	got, err := b.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-b"), got)
	assert.False(t, mr.Exists("credkit:{AppA}:entries"))
}

func TestRedisStoreServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := New(client, "", "keys")

	mr.Close()
	_, err := s.Load(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, s.Store(context.Background(), "k", []byte("v")))
}

func TestConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := NewConnection(config.RedisConfig{Addresses: []string{mr.Addr()}}, logger.NewNoopLogger())
	assert.Nil(t, conn.Client())

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.Connect(ctx))

	health, err := conn.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, health["connected"])

	s := NewFromConnection(conn, "p", "keys")
	require.NoError(t, s.Store(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())
	assert.Nil(t, conn.Client())
}

func TestConnectionFailures(t *testing.T) {
	ctx := context.Background()

	conn := NewConnection(config.RedisConfig{Mode: "mesh"}, nil)
	assert.Error(t, conn.Connect(ctx))

	conn = NewConnection(config.RedisConfig{Mode: "sentinel", Addresses: []string{"127.0.0.1:1"}}, nil)
	assert.Error(t, conn.Connect(ctx))

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	conn = NewConnection(config.RedisConfig{Addresses: []string{addr}, MaxRetries: -1}, nil)
	assert.Error(t, conn.Connect(ctx))
	assert.Nil(t, conn.Client())

	_, err := conn.HealthCheck(ctx)
	assert.Error(t, err)
}
