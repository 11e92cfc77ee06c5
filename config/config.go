// Package config loads the rtnode configuration from a YAML file,
// RTNODE_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. RTNODE_GRPC_ADDRESS.
const EnvPrefix = "RTNODE"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

var (
	ErrUnknownBackend = errors.New("config: unknown storage backend")
	ErrNoStoragePath  = errors.New("config: badger backend needs a path")
	ErrLogFormat      = errors.New("config: log format must be console or json")
)

// Config is the node configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Storage StorageConfig `mapstructure:"storage"`
	// ChainSpec is the genesis YAML path. Empty uses the dev chain.
	ChainSpec string `mapstructure:"chain_spec"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File, when set, receives the log with size-based rotation.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// Path is the badger directory.
	Path string `mapstructure:"path"`
	// Retain is how many recent states stay readable.
	Retain int `mapstructure:"retain"`
}

// Default returns the configuration of a local dev node.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		GRPC:    GRPCConfig{Address: "127.0.0.1:9944"},
		Metrics: MetricsConfig{Enabled: true, Address: "127.0.0.1:9615"},
		Storage: StorageConfig{Backend: BackendMemory, Retain: 256},
	}
}

// keys lists every setting; a flag binds to a key with its dots
// replaced by dashes.
var keys = []string{
	"log.level", "log.format", "log.file", "log.max_size_mb", "log.max_backups", "log.max_age_days", "log.compress",
	"grpc.address",
	"metrics.enabled", "metrics.address",
	"storage.backend", "storage.path", "storage.retain",
	"chain_spec",
}

// FlagName returns the command-line flag bound to key.
func FlagName(key string) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(key)
}

// Load reads path (if non-empty), applies environment overrides and
// any changed flags, and validates the result.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if flags != nil {
		for _, key := range keys {
			if f := flags.Lookup(FlagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("grpc.address", d.GRPC.Address)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.address", d.Metrics.Address)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.retain", d.Storage.Retain)
	v.SetDefault("chain_spec", d.ChainSpec)
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("%w: %q", ErrLogFormat, c.Log.Format)
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.Storage.Path == "" {
			return ErrNoStoragePath
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage.Backend)
	}
	return nil
}
