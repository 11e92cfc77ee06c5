package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rtnode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
  format: json
grpc:
  address: 0.0.0.0:7000
storage:
  backend: badger
  path: /var/lib/rtnode
  retain: 32
chain_spec: genesis.yaml
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "0.0.0.0:7000", cfg.GRPC.Address)
	require.Equal(t, StorageConfig{Backend: BackendBadger, Path: "/var/lib/rtnode", Retain: 32}, cfg.Storage)
	require.Equal(t, "genesis.yaml", cfg.ChainSpec)
	// Untouched sections keep their defaults.
	require.Equal(t, Default().Metrics, cfg.Metrics)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeFile(t, "grpc:\n  address: 10.0.0.1:1\nmetrics:\n  address: 10.0.0.1:2\n")
	t.Setenv("RTNODE_GRPC_ADDRESS", "10.0.0.2:1")
	t.Setenv("RTNODE_METRICS_ADDRESS", "10.0.0.2:2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(FlagName("metrics.address"), "", "")
	require.NoError(t, flags.Parse([]string{"--metrics-address=10.0.0.3:2"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.2:1", cfg.GRPC.Address, "env overrides file")
	require.Equal(t, "10.0.0.3:2", cfg.Metrics.Address, "flag overrides env")
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		want   error
	}{
		"badger without path": {func(c *Config) { c.Storage.Backend = BackendBadger }, ErrNoStoragePath},
		"unknown backend":     {func(c *Config) { c.Storage.Backend = "rocks" }, ErrUnknownBackend},
		"bad format":          {func(c *Config) { c.Log.Format = "xml" }, ErrLogFormat},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tc.want)
		})
	}

	cfg := Default()
	cfg.Log.Level = "loud"
	require.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	c := Default().Log
	c.File = path
	log, err := NewLogger(c)
	require.NoError(t, err)
	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"hello"`)
}
