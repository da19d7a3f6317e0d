package storage

import (
	"fmt"
	"log/slog"
	"strings"
)

// Supported backend names.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendSQLite  = "sqlite"
	BackendBadger  = "badger"
	BackendRedis   = "redis"
)

// Options selects and configures a Database backend.
type Options struct {
	Backend string
	Path    string
	Redis   RedisConfig
	Logger  *slog.Logger
}

// Backends lists every backend accepted by Open.
func Backends() []string {
	return []string{BackendMemory, BackendLevelDB, BackendSQLite, BackendBadger, BackendRedis}
}

// Open constructs the backend named in opts.
func Open(opts Options) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemDB(), nil
	case BackendLevelDB:
		if strings.TrimSpace(opts.Path) == "" {
			return nil, ErrPathRequired
		}
		db, err := NewLevelDB(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("open leveldb: %w", err)
		}
		return db, nil
	case BackendSQLite:
		dsn, err := FileDSN(opts.Path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteDB(dsn)
	case BackendBadger:
		return NewBadgerDB(BadgerConfig{Path: opts.Path, SyncWrites: true, Logger: opts.Logger})
	case BackendRedis:
		return NewRedisDB(opts.Redis)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", opts.Backend)
	}
}
