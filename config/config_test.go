package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"adserver/storage"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `ListenAddress = "127.0.0.1:9090"
Environment = "prod"
LogLevel = "debug"
AutoInstantiate = false

[Storage]
Backend = "Redis"
RedisAddr = "localhost:6379"
RedisPrefix = "ads/"

[HTTP]
ReadTimeout = 3
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", cfg.ListenAddress)
	require.Equal(t, "prod", cfg.Environment)
	require.False(t, cfg.AutoInstantiate)
	require.Equal(t, storage.BackendRedis, cfg.Storage.Backend)
	require.Equal(t, 3, cfg.HTTP.ReadTimeout)
	require.Equal(t, 10, cfg.HTTP.WriteTimeout)

	opts := cfg.StorageOptions()
	require.Equal(t, "localhost:6379", opts.Redis.Addr)
	require.Equal(t, "ads/", opts.Redis.Prefix)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ListenAddres = \":1\"\n"), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "unknown key")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "memory without path", mutate: func(c *Config) { c.Storage = StorageConfig{Backend: "memory"} }},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage = StorageConfig{Backend: "sqlite"} }, wantErr: true},
		{name: "badger without path", mutate: func(c *Config) { c.Storage = StorageConfig{Backend: "badger"} }, wantErr: true},
		{name: "redis without addr", mutate: func(c *Config) { c.Storage = StorageConfig{Backend: "redis"} }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "etcd" }, wantErr: true},
		{name: "negative redis db", mutate: func(c *Config) { c.Storage.RedisDB = -1 }, wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
