package dedup

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"novarelay.dev/internal/apputil"
	"novarelay.dev/internal/chk"
	"novarelay.dev/internal/log"
)

// persistentTier is the third tier of the dedup store: a badger-backed
// key/value store mapping event_id to its created_at timestamp, the
// source of truth that survives restarts and backs Warmup.
type persistentTier struct {
	db *badger.DB
}

func openPersistentTier(dataDir string) (p *persistentTier, err error) {
	if err = os.MkdirAll(dataDir, 0o755); chk.E(err) {
		return
	}
	dummy := dataDir + "/dummy.sst"
	if err = apputil.EnsureDir(dummy); chk.E(err) {
		return
	}
	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil
	var db *badger.DB
	if db, err = badger.Open(opts); chk.E(err) {
		return
	}
	return &persistentTier{db: db}, nil
}

// Has reports whether id is recorded, regardless of age.
func (p *persistentTier) Has(id [32]byte) (ok bool, err error) {
	err = p.db.View(func(txn *badger.Txn) error {
		_, e := txn.Get(id[:])
		if e == badger.ErrKeyNotFound {
			return nil
		}
		if e != nil {
			return e
		}
		ok = true
		return nil
	})
	return
}

// Put records id with its created_at timestamp.
func (p *persistentTier) Put(id [32]byte, createdAt int64) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(createdAt))
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(id[:], val)
	})
}

// Each walks every stored entry, invoking fn with the event id and its
// created_at timestamp. Used by Warmup to rebuild the in-memory tiers.
func (p *persistentTier) Each(fn func(id [32]byte, createdAt int64)) error {
	return p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var id [32]byte
			copy(id[:], item.Key())
			var createdAt int64
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					createdAt = int64(binary.BigEndian.Uint64(val))
				}
				return nil
			}); err != nil {
				return err
			}
			fn(id, createdAt)
		}
		return nil
	})
}

// Prune deletes every entry older than the retention horizon, called
// periodically to bound the persistent tier's size.
func (p *persistentTier) Prune(horizon time.Duration) (removed int, err error) {
	cutoff := time.Now().Add(-horizon).Unix()
	var stale [][]byte
	if err = p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var createdAt int64
			if e := item.Value(func(val []byte) error {
				if len(val) == 8 {
					createdAt = int64(binary.BigEndian.Uint64(val))
				}
				return nil
			}); e != nil {
				return e
			}
			if createdAt < cutoff {
				key := make([]byte, len(item.Key()))
				copy(key, item.Key())
				stale = append(stale, key)
			}
		}
		return nil
	}); chk.E(err) {
		return
	}
	if len(stale) == 0 {
		return
	}
	err = p.db.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if e := txn.Delete(key); e != nil {
				return e
			}
		}
		return nil
	})
	if err == nil {
		removed = len(stale)
		log.D.F("dedup store pruned %d entries older than %s", removed, horizon)
	}
	return
}

// Close releases the underlying badger DB.
func (p *persistentTier) Close() error {
	return p.db.Close()
}
