// Package kvstore is the persisted key-value store backing every
// stateful component (Inventory, HostCache, SpecStore, the OSD removal
// queue, upgrade state, SSH config and keys, registry credentials). It
// is a thin bbolt wrapper: one bucket per entity family, values opaque
// JSON blobs, callers own marshaling.
package kvstore

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// Buckets used by the orchestrator's persisted state.
var (
	BucketHosts          = []byte("hosts")
	BucketSpecs          = []byte("specs")
	BucketSpecPreviews   = []byte("spec_previews")
	BucketHostCache      = []byte("host_cache")
	BucketRemovalQueue   = []byte("removal_queue")
	BucketUpgradeState   = []byte("upgrade_state")
	BucketConfig         = []byte("config") // pause flag, ssh config/keys, registry creds
	allBuckets           = [][]byte{
		BucketHosts, BucketSpecs, BucketSpecPreviews, BucketHostCache,
		BucketRemovalQueue, BucketUpgradeState, BucketConfig,
	}
)

// Store is a thin wrapper over a bbolt database pre-seeded with every
// bucket the orchestrator needs.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the orchestrator's database file
// under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "cephadmd.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes value under key in bucket.
func (s *Store) Put(bucket, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, value)
	})
}

// Get reads the value stored under key in bucket. Returns (nil, nil)
// when the key is absent.
func (s *Store) Get(bucket, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, err
}

// Delete removes key from bucket. Deleting a missing key is not an
// error.
func (s *Store) Delete(bucket, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

// ForEach calls fn for every key/value pair in bucket, in bbolt's
// byte-sorted key order.
func (s *Store) ForEach(bucket []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(fn)
	})
}

// Update runs fn inside a single read-write transaction, for callers
// that need to make several related bucket mutations atomically (e.g.
// an upsert-if-absent that must not interleave with a ForEach scan).
func (s *Store) Update(fn func(tx *bolt.Tx) error) error {
	return s.db.Update(fn)
}
