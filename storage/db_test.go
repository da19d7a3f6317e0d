package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func backendsUnderTest(t *testing.T) map[string]Database {
	t.Helper()
	dir := t.TempDir()

	level, err := NewLevelDB(filepath.Join(dir, "leveldb"))
	require.NoError(t, err)

	dsn, err := FileDSN(filepath.Join(dir, "kv.sqlite"))
	require.NoError(t, err)
	lite, err := NewSQLiteDB(dsn)
	require.NoError(t, err)

	badgerDB, err := NewBadgerDB(BadgerConfig{InMemory: true})
	require.NoError(t, err)

	redisDB, err := NewRedisDB(RedisConfig{Addr: miniredis.RunT(t).Addr(), Prefix: "conformance/"})
	require.NoError(t, err)

	dbs := map[string]Database{
		BackendMemory:  NewMemDB(),
		BackendLevelDB: level,
		BackendSQLite:  lite,
		BackendBadger:  badgerDB,
		BackendRedis:   redisDB,
	}
	t.Cleanup(func() {
		for _, db := range dbs {
			db.Close()
		}
	})
	return dbs
}

func TestDatabaseConformance(t *testing.T) {
	for name, db := range backendsUnderTest(t) {
		db := db
		t.Run(name, func(t *testing.T) {
			_, err := db.Get([]byte("missing"))
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, db.Put([]byte("state"), []byte("v1")))
			got, err := db.Get([]byte("state"))
			require.NoError(t, err)
			require.Equal(t, []byte("v1"), got)

			require.NoError(t, db.Put([]byte("state"), []byte("v2")))
			got, err = db.Get([]byte("state"))
			require.NoError(t, err)
			require.Equal(t, []byte("v2"), got)
		})
	}
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'x'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)

	got[1] = 'y'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), again)
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	require.NoError(t, db1.Put([]byte("state"), []byte("blob")))
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("state"))
	require.NoError(t, err)
	require.Equal(t, []byte("blob"), got)
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()

	mem, err := Open(Options{Backend: "memory"})
	require.NoError(t, err)
	require.IsType(t, &MemDB{}, mem)

	lite, err := Open(Options{Backend: "SQLite", Path: filepath.Join(dir, "a.sqlite")})
	require.NoError(t, err)
	defer lite.Close()
	require.IsType(t, &SQLiteDB{}, lite)

	_, err = Open(Options{Backend: BackendLevelDB})
	require.ErrorIs(t, err, ErrPathRequired)

	_, err = Open(Options{Backend: BackendRedis})
	require.Error(t, err)

	_, err = Open(Options{Backend: "etcd"})
	require.Error(t, err)
}

func TestFileDSNRequiresPath(t *testing.T) {
	_, err := FileDSN("   ")
	require.ErrorIs(t, err, ErrPathRequired)

	dsn, err := FileDSN("data/kv.sqlite")
	require.NoError(t, err)
	require.Contains(t, dsn, "file:")
	require.Contains(t, dsn, "_journal_mode=WAL")
}

func TestRedisPrefixesIsolateKeys(t *testing.T) {
	srv := miniredis.RunT(t)

	a, err := NewRedisDB(RedisConfig{Addr: srv.Addr(), Prefix: "a/"})
	require.NoError(t, err)
	defer a.Close()
	b, err := NewRedisDB(RedisConfig{Addr: srv.Addr(), Prefix: "b/"})
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Put([]byte("state"), []byte("from-a")))
	_, err = b.Get([]byte("state"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Put([]byte("state"), []byte("from-b")))
	got, err := a.Get([]byte("state"))
	require.NoError(t, err)
	require.Equal(t, []byte("from-a"), got)

	raw, err := srv.Get("a/state")
	require.NoError(t, err)
	require.Equal(t, "from-a", raw)
	require.True(t, srv.Exists("b/state"))
}

func TestRedisRequiresReachableServer(t *testing.T) {
	_, err := NewRedisDB(RedisConfig{})
	require.Error(t, err)

	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()
	_, err = NewRedisDB(RedisConfig{Addr: addr, Timeout: 200 * time.Millisecond})
	require.Error(t, err)
}
