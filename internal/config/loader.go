package config

import (
	"context"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/credkit/pkg/constants"
	"github.com/turtacn/credkit/pkg/errors"
	"github.com/turtacn/credkit/pkg/logger"
)

const (
	configName = "credkit"
	envPrefix  = "CREDKIT"
)

// Loader reads configuration from defaults, an optional YAML file and CREDKIT_* environment variables,
// in increasing order of precedence.
type Loader struct {
	v   *viper.Viper
	log logger.Logger

	mu      sync.Mutex
	current *Config
}

// NewLoader prepares a loader. An empty path searches for credkit.yaml in ".",
// "$HOME/.credkit" and "/etc/credkit"; a missing file is not an error then.
// An explicit path must exist.
func NewLoader(path string, log logger.Logger) (*Loader, error) {
	log = logger.Component(log, "config")
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.credkit")
		v.AddConfigPath("/etc/credkit")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.WrapError(err, errors.CodeValidation, "failed to read config file")
		}
		log.Debug(context.Background(), "No config file found, using defaults and environment")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, log: log}, nil
}

// Load loads the configuration from file, environment variables and defaults.
func Load(path string, log logger.Logger) (*Config, error) {
	l, err := NewLoader(path, log)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

// Load decodes and validates the current configuration.
func (l *Loader) Load() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapError(err, errors.CodeValidation, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = &cfg
	l.mu.Unlock()
	return &cfg, nil
}

// Current returns the last configuration returned by Load, or nil.
func (l *Loader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// ConfigFileUsed returns the path of the file read, or "" when none was found.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Watch reloads the file on change and passes each valid configuration to onChange.
// Invalid edits are logged and skipped; the previous configuration stays current.
func (l *Loader) Watch(onChange func(*Config)) {
	if l.ConfigFileUsed() == "" {
		l.log.Warn(context.Background(), "No config file to watch")
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		ctx := context.Background()
		cfg, err := l.Load()
		if err != nil {
			l.log.Error(ctx, "Ignoring invalid config change", err, logger.String("file", e.Name))
			return
		}
		l.log.Info(ctx, "Config reloaded", logger.Fields{"file": e.Name, "op": e.Op.String()})
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", string(constants.LogLevelInfo))
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stderr")

	v.SetDefault("storage.backend", string(constants.StorageBackendFilesystem))
	v.SetDefault("storage.directory", constants.DefaultStorageDirectory)
	v.SetDefault("storage.name", constants.DefaultStorageName)
	v.SetDefault("storage.bolt_file", "credkit.db")

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.master_name", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.enable_tls", false)
	v.SetDefault("redis.tls_skip_verify", false)
	v.SetDefault("redis.key_prefix", "credkit")

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "key_entries")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")

	v.SetDefault("token.expiration_margin", constants.TokenExpirationMargin.String())

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "credkit")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "")
	v.SetDefault("tracing.service_name", "credkit")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sampling_rate", 1.0)
}
