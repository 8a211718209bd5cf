package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is the key-value store backing the ledger. Besides plain metadata
// access it exposes the trie node database the state trie is persisted into.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	TrieDB() *triedb.Database
	Close() error
}

type database struct {
	disk   ethdb.Database
	trieDB *triedb.Database
}

func wrap(disk ethdb.Database) *database {
	return &database{
		disk:   disk,
		trieDB: triedb.NewDatabase(disk, triedb.HashDefaults),
	}
}

func (db *database) Put(key []byte, value []byte) error {
	return db.disk.Put(key, value)
}

func (db *database) Get(key []byte) ([]byte, error) {
	ok, err := db.disk.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return db.disk.Get(key)
}

func (db *database) TrieDB() *triedb.Database { return db.trieDB }

func (db *database) Close() error {
	if err := db.trieDB.Close(); err != nil {
		return err
	}
	return db.disk.Close()
}

// --- In-Memory DB (for testing) ---

// MemDB keeps every key in process memory.
type MemDB struct {
	*database
}

func NewMemDB() *MemDB {
	return &MemDB{database: wrap(rawdb.NewDatabase(memorydb.New()))}
}

// --- Persistent DB ---

// LevelDB is a persistent store using LevelDB.
type LevelDB struct {
	*database
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := leveldb.NewCustom(path, "cardmarket/db/", func(o *opt.Options) {
		o.OpenFilesCacheCapacity = 64
		o.BlockCacheCapacity = 16 * opt.MiB
		o.WriteBuffer = 8 * opt.MiB
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{database: wrap(rawdb.NewDatabase(kv))}, nil
}
