// Package kv is a badger backed key value store. It persists webauth
// sessions between runs.
package kv

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	badger "github.com/dgraph-io/badger/v3"
	"github.com/protonlink/webauth/client"
	"github.com/protonlink/webauth/proto"
)

var sessionKey = []byte("session")

// KV is a key value store.
type KV struct {
	DB *badger.DB
}

// Open opens the store with the given badger options.
func Open(opt badger.Options) (*KV, error) {
	db, err := badger.Open(opt)
	if err != nil {
		return nil, err
	}
	return &KV{DB: db}, nil
}

// OpenWithDefaults opens the store in the client's data directory, encrypted
// when a store key is configured.
func OpenWithDefaults(cfg *client.Config) (*KV, error) {
	dp, err := cfg.DataPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dp, 0o700); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(dp).WithLoggingLevel(badger.ERROR)
	if cfg.StoreKey != "" {
		ek, err := hex.DecodeString(cfg.StoreKey)
		if err != nil {
			return nil, fmt.Errorf("invalid store key: %w", err)
		}
		opts, err = OptionsWithEncryption(opts, ek, 32768)
		if err != nil {
			return nil, err
		}
	}
	log.Debug("opening session store", "path", dp)
	return Open(opts)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*KV, error) {
	return Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
}

// OptionsWithEncryption returns badger options encrypting the store with
// encKey.
func OptionsWithEncryption(opt badger.Options, encKey []byte, cacheSize int64) (badger.Options, error) {
	if cacheSize <= 0 {
		return opt, fmt.Errorf("You must set an index cache size to use encrypted workloads in Badger v3")
	}
	if len(encKey) != 32 {
		return opt, fmt.Errorf("Encryption key must be 32 bytes, got %d", len(encKey))
	}
	return opt.WithEncryptionKey(encKey).WithIndexCacheSize(cacheSize), nil
}

// View runs fn in a read-only transaction.
func (kv *KV) View(fn func(txn *badger.Txn) error) error {
	return kv.DB.View(fn)
}

// Close closes the store.
func (kv *KV) Close() error {
	return kv.DB.Close()
}

// Set stores value under key.
func (kv *KV) Set(key []byte, value []byte) error {
	return kv.DB.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// SetReader stores everything read from value under key.
func (kv *KV) SetReader(key []byte, value io.Reader) error {
	v, err := io.ReadAll(value)
	if err != nil {
		return err
	}
	return kv.Set(key, v)
}

// Get returns the value stored under key.
func (kv *KV) Get(key []byte) ([]byte, error) {
	var v []byte
	err := kv.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	return v, err
}

// Delete removes key.
func (kv *KV) Delete(key []byte) error {
	return kv.DB.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Keys returns every key in the store.
func (kv *KV) Keys() ([][]byte, error) {
	var ks [][]byte
	err := kv.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ks = append(ks, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ks, nil
}

// Reset deletes everything in the store.
func (kv *KV) Reset() error {
	return kv.DB.DropAll()
}

// LoadSession implements client.SessionStore.
func (kv *KV) LoadSession() (*client.SessionData, error) {
	b, err := kv.Get(sessionKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, proto.ErrMissingSession
	}
	if err != nil {
		return nil, err
	}
	var s client.SessionData
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("corrupt session: %w", err)
	}
	return &s, nil
}

// SaveSession implements client.SessionStore.
func (kv *KV) SaveSession(s *client.SessionData) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return kv.Set(sessionKey, b)
}

// DeleteSession implements client.SessionStore.
func (kv *KV) DeleteSession() error {
	return kv.Delete(sessionKey)
}
