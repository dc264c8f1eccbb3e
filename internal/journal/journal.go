package journal

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const sessionPrefix = "session:"

// Entry records the terminal outcome of one transfer session.
type Entry struct {
	SessionID  string `json:"session_id"`
	FileID     string `json:"file_id"`
	Verdict    string `json:"verdict"`
	Bytes      int64  `json:"bytes"`
	Digest     string `json:"digest"`
	Remote     string `json:"remote"`
	FinishedAt int64  `json:"finished_at"` // Unix timestamp
}

// Journal wraps BadgerDB as a persistent audit log of transfer
// verdicts. The checksum registry itself stays in-memory; only the
// receiver's outcomes are written here.
type Journal struct {
	db *badger.DB
}

// Open opens (or creates) a journal at the given path.
func Open(path string) (*Journal, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append persists one terminal verdict, keyed by session ID.
func (j *Journal) Append(e Entry) error {
	key := []byte(sessionPrefix + e.SessionID)
	val, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// Get retrieves the entry for one session.
func (j *Journal) Get(sessionID string) (Entry, error) {
	key := []byte(sessionPrefix + sessionID)
	var e Entry
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	return e, err
}

// List returns every recorded session entry.
func (j *Journal) List() ([]Entry, error) {
	var entries []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(sessionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}
