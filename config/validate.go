package config

import (
	"fmt"
	"strings"

	"adserver/storage"
)

// Validate reports the first inconsistency in the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	backend := strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch backend {
	case storage.BackendMemory:
	case storage.BackendLevelDB, storage.BackendSQLite, storage.BackendBadger:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage: Path required for %s backend", backend)
		}
	case storage.BackendRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return fmt.Errorf("storage: RedisAddr required for redis backend")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q (want one of %s)", c.Storage.Backend, strings.Join(storage.Backends(), ", "))
	}
	if c.Storage.RedisDB < 0 {
		return fmt.Errorf("storage: RedisDB must not be negative")
	}
	return nil
}

// StorageOptions converts the storage section into backend options.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend: c.Storage.Backend,
		Path:    c.Storage.Path,
		Redis: storage.RedisConfig{
			Addr:     c.Storage.RedisAddr,
			Password: c.Storage.RedisPassword,
			DB:       c.Storage.RedisDB,
			Prefix:   c.Storage.RedisPrefix,
		},
	}
}
