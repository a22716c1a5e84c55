package cache

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.etcd.io/bbolt"
)

const (
	// ledgerFile is the BoltDB file holding the build history
	ledgerFile = "cache.db"

	// ledgerTimeout bounds how long a process waits for another one holding the database
	ledgerTimeout = 5 * time.Second

	// keyLayout is fixed width so keys sort chronologically
	keyLayout = "2006-01-02T15:04:05.000000000Z"
)

// ledger appends publish and invalidate events to a BoltDB file, one bucket per target.
// The database is only held open for the duration of a single transaction so that
// concurrent builds of different targets do not serialize on it.
type ledger struct {
	path string
}

func (l *ledger) open(readOnly bool) (*bbolt.DB, error) {
	return bbolt.Open(l.path, 0o600, &bbolt.Options{Timeout: ledgerTimeout, ReadOnly: readOnly})
}

func (l *ledger) append(rec Record) error {
	db, err := l.open(false)
	if err != nil {
		return eris.Wrap(err, "failed to open build ledger")
	}
	defer db.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "failed to encode ledger record")
	}

	key := rec.Timestamp.UTC().Format(keyLayout) + "/" + rec.BuildID

	return db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(rec.Target))
		if err != nil {
			return err
		}

		return b.Put([]byte(key), data)
	})
}

// history returns the records of target, or of every target when target is empty, oldest first
func (l *ledger) history(target string) ([]Record, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := l.open(true)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open build ledger")
	}
	defer db.Close()

	var records []Record
	collect := func(b *bbolt.Bucket) error {
		return b.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // Skip unreadable records
			}

			records = append(records, rec)
			return nil
		})
	}

	err = db.View(func(tx *bbolt.Tx) error {
		if target != "" {
			b := tx.Bucket([]byte(target))
			if b == nil {
				return nil
			}

			return collect(b)
		}

		return tx.ForEach(func(_ []byte, b *bbolt.Bucket) error {
			return collect(b)
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	return records, nil
}

// reset drops every bucket
func (l *ledger) reset() error {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return nil
	}

	db, err := l.open(false)
	if err != nil {
		return eris.Wrap(err, "failed to open build ledger")
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		var names [][]byte
		err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, append([]byte{}, name...))
			return nil
		})
		if err != nil {
			return err
		}

		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}

		return nil
	})
}
