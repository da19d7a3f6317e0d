package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk configuration of the adserver daemon.
type Config struct {
	ListenAddress   string          `toml:"ListenAddress"`
	Environment     string          `toml:"Environment"`
	LogLevel        string          `toml:"LogLevel"`
	LogFile         string          `toml:"LogFile"`
	AutoInstantiate bool            `toml:"AutoInstantiate"`
	Storage         StorageConfig   `toml:"Storage"`
	Telemetry       TelemetryConfig `toml:"Telemetry"`
	HTTP            HTTPConfig      `toml:"HTTP"`
}

// StorageConfig selects the key-value backend holding the registry.
type StorageConfig struct {
	Backend       string `toml:"Backend"`
	Path          string `toml:"Path"`
	RedisAddr     string `toml:"RedisAddr"`
	RedisPassword string `toml:"RedisPassword"`
	RedisDB       int    `toml:"RedisDB"`
	RedisPrefix   string `toml:"RedisPrefix"`
}

// TelemetryConfig configures OTLP export. An empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
}

// HTTPConfig holds server timeouts in seconds and the request body cap.
type HTTPConfig struct {
	ReadTimeout  int   `toml:"ReadTimeout"`
	WriteTimeout int   `toml:"WriteTimeout"`
	IdleTimeout  int   `toml:"IdleTimeout"`
	MaxBodyBytes int64 `toml:"MaxBodyBytes"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		ListenAddress:   ":8080",
		Environment:     "dev",
		LogLevel:        "info",
		AutoInstantiate: true,
		Storage: StorageConfig{
			Backend:     "leveldb",
			Path:        "./adserver-data",
			RedisPrefix: "adserver/",
		},
		Telemetry: TelemetryConfig{Insecure: true},
		HTTP: HTTPConfig{
			ReadTimeout:  10,
			WriteTimeout: 10,
			IdleTimeout:  60,
			MaxBodyBytes: 1 << 20,
		},
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	defaults := Default()
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = defaults.ListenAddress
	}
	if strings.TrimSpace(cfg.Storage.Backend) == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.HTTP.ReadTimeout <= 0 {
		cfg.HTTP.ReadTimeout = defaults.HTTP.ReadTimeout
	}
	if cfg.HTTP.WriteTimeout <= 0 {
		cfg.HTTP.WriteTimeout = defaults.HTTP.WriteTimeout
	}
	if cfg.HTTP.IdleTimeout <= 0 {
		cfg.HTTP.IdleTimeout = defaults.HTTP.IdleTimeout
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = defaults.HTTP.MaxBodyBytes
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
