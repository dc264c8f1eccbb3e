package registry

import (
	"sync"
	"time"
)

// Record is one registered checksum entry.
type Record struct {
	Checksum  string
	Length    int64
	ExpiresAt time.Time
}

// Store holds the registered checksums behind a single coarse lock.
// Entries are small and every operation is O(1), so one mutex over the
// whole map is enough. Expiry is lazy: an expired entry is treated as
// absent and dropped when it is looked up. The store is purely
// in-memory and is lost on restart; there is no size bound beyond
// expiry.
type Store struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time

	sweepStop chan struct{}
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Put inserts or replaces the record for fileID. Last write wins; a
// re-registration silently overwrites the prior entry.
func (s *Store) Put(fileID, sum string, length int64, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[fileID] = Record{
		Checksum:  sum,
		Length:    length,
		ExpiresAt: s.now().Add(ttl),
	}
}

// Get returns the unexpired record for fileID. An expired entry is
// indistinguishable from one that was never registered; it is removed
// on the way out. A hit does not consume the record, so reads repeat
// until natural expiry or overwrite.
func (s *Store) Get(fileID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[fileID]
	if !ok {
		return Record{}, false
	}
	if s.now().After(rec.ExpiresAt) {
		delete(s.records, fileID)
		return Record{}, false
	}
	return rec, true
}

// Len reports the number of entries currently held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// StartSweeper reclaims expired entries that are never queried. Lazy
// expiry alone lets them accumulate; the sweep is optional and changes
// nothing observable through Get.
func (s *Store) StartSweeper(interval time.Duration) {
	s.mu.Lock()
	if s.sweepStop != nil {
		s.mu.Unlock()
		return
	}
	s.sweepStop = make(chan struct{})
	stop := s.sweepStop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-stop:
				return
			}
		}
	}()
}

// StopSweeper halts a running sweeper. Safe to call when none runs.
func (s *Store) StopSweeper() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweepStop != nil {
		close(s.sweepStop)
		s.sweepStop = nil
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, rec := range s.records {
		if now.After(rec.ExpiresAt) {
			delete(s.records, id)
		}
	}
}
