package adserver

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"adserver/storage"
)

// stateKey is the single well-known key holding the registry blob.
var stateKey = []byte("state")

// kvStore abstracts the subset of storage functionality required by the
// registry.
type kvStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// KVStore adapts a raw storage.Database into an RLP-encoded key-value store.
type KVStore struct {
	db storage.Database
}

// NewKVStore wraps db.
func NewKVStore(db storage.Database) *KVStore {
	return &KVStore{db: db}
}

// KVPut encodes value and writes it under key.
func (s *KVStore) KVPut(key []byte, value interface{}) error {
	if s == nil || s.db == nil {
		return errors.New("adserver: storage unavailable")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Put(key, encoded)
}

// KVGet reads and decodes the value stored under key. A missing key yields
// ok=false without error.
func (s *KVStore) KVGet(key []byte, out interface{}) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("adserver: storage unavailable")
	}
	encoded, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func loadState(store kvStore) (*State, error) {
	if store == nil {
		return nil, errNilState
	}
	var st State
	ok, err := store.KVGet(stateKey, &st)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateCorruptOrMissing, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: registry not instantiated", ErrStateCorruptOrMissing)
	}
	if st.Ads == nil {
		st.Ads = []Ad{}
	}
	return &st, nil
}

func saveState(store kvStore, st *State) error {
	if store == nil {
		return errNilState
	}
	if err := store.KVPut(stateKey, st); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	return nil
}
