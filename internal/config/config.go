package config

import (
	"fmt"
	"time"

	"github.com/turtacn/credkit/pkg/constants"
	"github.com/turtacn/credkit/pkg/errors"
	"github.com/turtacn/credkit/pkg/utils"
)

// Config holds the application's configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Database DatabaseConfig `mapstructure:"database"`
	Token    TokenConfig    `mapstructure:"token"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

// StorageConfig selects the key entry backend. Directory and Name are the
// filesystem location; Name also namespaces the other backends.
type StorageConfig struct {
	Backend   constants.StorageBackend `mapstructure:"backend" validate:"oneof=filesystem memory bolt redis vault sql"`
	Directory string                   `mapstructure:"directory" validate:"required"`
	Name      string                   `mapstructure:"name" validate:"required"`
	// BoltFile is the database file used by the bolt backend, relative to Directory.
	BoltFile string `mapstructure:"bolt_file"`
}

type RedisConfig struct {
	Mode          string        `mapstructure:"mode" validate:"oneof=standalone cluster sentinel"`
	Addresses     []string      `mapstructure:"addresses"`
	MasterName    string        `mapstructure:"master_name"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db" validate:"gte=0"`
	PoolSize      int           `mapstructure:"pool_size" validate:"gte=0"`
	MinIdleConns  int           `mapstructure:"min_idle_conns" validate:"gte=0"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	EnableTLS     bool          `mapstructure:"enable_tls"`
	TLSSkipVerify bool          `mapstructure:"tls_skip_verify"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

type VaultConfig struct {
	Address   string        `mapstructure:"address"`
	Token     string        `mapstructure:"token"`
	MountPath string        `mapstructure:"mount_path"`
	Namespace string        `mapstructure:"namespace"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// TokenConfig tunes the caching token provider.
type TokenConfig struct {
	ExpirationMargin time.Duration `mapstructure:"expiration_margin" validate:"gte=0"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
}

// Validate checks field constraints and the settings the selected backend needs.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case constants.StorageBackendRedis:
		if len(c.Redis.Addresses) == 0 {
			return errors.ErrValidation("redis.addresses")
		}
		if c.Redis.Mode == "sentinel" && c.Redis.MasterName == "" {
			return errors.ErrValidation("redis.master_name")
		}
	case constants.StorageBackendVault:
		if c.Vault.Address == "" {
			return errors.ErrValidation("vault.address")
		}
		if c.Vault.MountPath == "" {
			return errors.ErrValidation("vault.mount_path")
		}
	case constants.StorageBackendSQL:
		if c.Database.DSN == "" {
			return errors.ErrValidation("database.dsn")
		}
	}

	if c.Tracing.Enabled && c.Tracing.JaegerEndpoint == "" {
		return errors.ErrValidation("tracing.jaeger_endpoint")
	}
	return nil
}

// String summarizes the configuration without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("storage=%s name=%s dir=%s log=%s metrics=%t tracing=%t",
		c.Storage.Backend, c.Storage.Name, c.Storage.Directory, c.Log.Level, c.Metrics.Enabled, c.Tracing.Enabled)
}
