// Package redis provides Redis connection management and a Redis-backed storage.Adapter.
// Connections support standalone, cluster, and sentinel deployment modes with connection pooling.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/credkit/internal/config"
	"github.com/turtacn/credkit/pkg/logger"
)

// ConnectionMode defines Redis deployment mode
type ConnectionMode string

const (
	// ModeStandalone represents single Redis instance
	ModeStandalone ConnectionMode = "standalone"
	// ModeCluster represents Redis cluster mode
	ModeCluster ConnectionMode = "cluster"
	// ModeSentinel represents Redis sentinel mode for high availability
	ModeSentinel ConnectionMode = "sentinel"
)

// Connection manages Redis client lifecycle and health checks.
type Connection struct {
	config config.RedisConfig
	logger logger.Logger

	mu     sync.Mutex
	client redis.UniversalClient
}

// NewConnection creates a new Redis connection manager instance.
func NewConnection(cfg config.RedisConfig, log logger.Logger) *Connection {
	c := &Connection{
		config: cfg,
		logger: logger.Component(log, "redis"),
	}
	c.setDefaults()
	return c
}

// Connect establishes the client for the configured mode and verifies it with PING.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.logger.Warn(ctx, "Redis connection already initialized")
		return nil
	}

	var client redis.UniversalClient
	var err error

	switch ConnectionMode(c.config.Mode) {
	case ModeStandalone:
		client, err = c.connectStandalone()
	case ModeCluster:
		client, err = c.connectCluster()
	case ModeSentinel:
		client, err = c.connectSentinel()
	default:
		return fmt.Errorf("unsupported Redis mode: %s", c.config.Mode)
	}
	if err != nil {
		c.logger.Error(ctx, "Failed to establish Redis connection", err,
			logger.String("mode", c.config.Mode),
		)
		return fmt.Errorf("redis connection failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		c.logger.Error(ctx, "Redis ping failed", err)
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.client = client
	c.logger.Info(ctx, "Redis connection established",
		logger.String("mode", c.config.Mode),
		logger.Int("pool_size", c.config.PoolSize),
	)
	return nil
}

func (c *Connection) connectStandalone() (redis.UniversalClient, error) {
	opts := &redis.Options{
		Addr:     c.config.Addresses[0],
		Password: c.config.Password,
		DB:       c.config.DB,

		PoolSize:     c.config.PoolSize,
		MinIdleConns: c.config.MinIdleConns,

		DialTimeout:  c.config.DialTimeout,
		ReadTimeout:  c.config.ReadTimeout,
		WriteTimeout: c.config.WriteTimeout,
		MaxRetries:   c.config.MaxRetries,
	}
	if c.config.EnableTLS {
		opts.TLSConfig = c.buildTLSConfig()
	}
	return redis.NewClient(opts), nil
}

func (c *Connection) connectCluster() (redis.UniversalClient, error) {
	opts := &redis.ClusterOptions{
		Addrs:    c.config.Addresses,
		Password: c.config.Password,

		PoolSize:     c.config.PoolSize,
		MinIdleConns: c.config.MinIdleConns,

		DialTimeout:  c.config.DialTimeout,
		ReadTimeout:  c.config.ReadTimeout,
		WriteTimeout: c.config.WriteTimeout,
		MaxRetries:   c.config.MaxRetries,
	}
	if c.config.EnableTLS {
		opts.TLSConfig = c.buildTLSConfig()
	}
	return redis.NewClusterClient(opts), nil
}

func (c *Connection) connectSentinel() (redis.UniversalClient, error) {
	if c.config.MasterName == "" {
		return nil, fmt.Errorf("sentinel master name not configured")
	}
	opts := &redis.FailoverOptions{
		MasterName:    c.config.MasterName,
		SentinelAddrs: c.config.Addresses,
		Password:      c.config.Password,
		DB:            c.config.DB,

		PoolSize:     c.config.PoolSize,
		MinIdleConns: c.config.MinIdleConns,

		DialTimeout:  c.config.DialTimeout,
		ReadTimeout:  c.config.ReadTimeout,
		WriteTimeout: c.config.WriteTimeout,
		MaxRetries:   c.config.MaxRetries,
	}
	if c.config.EnableTLS {
		opts.TLSConfig = c.buildTLSConfig()
	}
	return redis.NewFailoverClient(opts), nil
}

func (c *Connection) buildTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.config.TLSSkipVerify,
	}
}

func (c *Connection) setDefaults() {
	if c.config.Mode == "" {
		c.config.Mode = string(ModeStandalone)
	}
	if len(c.config.Addresses) == 0 {
		c.config.Addresses = []string{"localhost:6379"}
	}
	if c.config.PoolSize == 0 {
		c.config.PoolSize = 10
	}
	if c.config.DialTimeout == 0 {
		c.config.DialTimeout = 5 * time.Second
	}
	if c.config.ReadTimeout == 0 {
		c.config.ReadTimeout = 3 * time.Second
	}
	if c.config.WriteTimeout == 0 {
		c.config.WriteTimeout = 3 * time.Second
	}
}

// Client returns the Redis client, or nil before Connect.
func (c *Connection) Client() redis.UniversalClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// HealthCheck pings the server and reports latency and pool statistics.
func (c *Connection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	client := c.Client()
	if client == nil {
		return nil, fmt.Errorf("redis connection not initialized")
	}

	health := make(map[string]interface{})
	start := time.Now()
	err := client.Ping(ctx).Err()
	health["connected"] = err == nil
	health["latency_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		health["error"] = err.Error()
		return health, err
	}

	stats := client.PoolStats()
	health["total_conns"] = stats.TotalConns
	health["idle_conns"] = stats.IdleConns
	health["timeouts"] = stats.Timeouts
	return health, nil
}

// Close closes the client. It is a no-op before Connect.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		c.logger.Error(context.Background(), "Failed to close Redis connection", err)
		return err
	}
	c.client = nil
	c.logger.Debug(context.Background(), "Redis connection closed")
	return nil
}
