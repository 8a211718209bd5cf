package rpc

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"cardmarket/core"
)

var bucketReceipts = []byte("receipts")

// IdempotencyStore remembers the receipt of every transaction accepted
// through the RPC server, keyed by transaction hash, so a resubmission
// returns the original outcome instead of failing on its spent nonce.
type IdempotencyStore struct {
	db *bolt.DB
}

type storedReceipt struct {
	Receipt  *core.Receipt `json:"receipt"`
	StoredAt time.Time     `json:"storedAt"`
}

// OpenIdempotencyStore opens (and migrates) the Bolt file at path.
func OpenIdempotencyStore(path string) (*IdempotencyStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReceipts)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &IdempotencyStore{db: db}, nil
}

// Lookup returns the stored receipt for hash.
func (s *IdempotencyStore) Lookup(hash []byte) (*core.Receipt, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	var out *core.Receipt
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketReceipts).Get(hash)
		if raw == nil {
			return nil
		}
		var rec storedReceipt
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		out = rec.Receipt
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Remember stores receipt under hash. An existing entry is kept.
func (s *IdempotencyStore) Remember(hash []byte, receipt *core.Receipt) error {
	if s == nil || receipt == nil {
		return nil
	}
	encoded, err := json.Marshal(storedReceipt{Receipt: receipt, StoredAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketReceipts)
		if bucket.Get(hash) != nil {
			return nil
		}
		return bucket.Put(hash, encoded)
	})
}

func (s *IdempotencyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
