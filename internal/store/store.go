// Package store holds the authoritative, versioned catalog record set.
//
// The whole dataset is one immutable snapshot behind an atomic pointer:
// ReplaceAll builds the new snapshot off to the side and swaps it in, so a
// reader sees either the fully-old or the fully-new set, never a mix.
package store

import (
	"sync"
	"sync/atomic"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

// Snapshot is one immutable version of the catalog.
// Callers must not modify Records.
type Snapshot struct {
	Version uint64
	Records []domain.CatalogRecord
	byID    map[string]int
}

// Get looks up a record by id in this snapshot.
func (s *Snapshot) Get(id string) (domain.CatalogRecord, bool) {
	i, ok := s.byID[id]
	if !ok {
		return domain.CatalogRecord{}, false
	}
	return s.Records[i], true
}

// Index returns the position of id within Records.
func (s *Snapshot) Index(id string) (int, bool) {
	i, ok := s.byID[id]
	return i, ok
}

// Store is the Catalog Store. It is safe for concurrent use.
type Store struct {
	cur atomic.Pointer[Snapshot]

	// mu serialises writers so versions are handed out in swap order.
	mu sync.Mutex
}

// New creates an empty store at version 0.
func New() *Store {
	s := &Store{}
	s.cur.Store(&Snapshot{byID: map[string]int{}})
	return s
}

// ReplaceAll atomically swaps the entire dataset and returns the new
// version. The slice is copied; later changes by the caller are not seen.
func (s *Store) ReplaceAll(records []domain.CatalogRecord) uint64 {
	recs := make([]domain.CatalogRecord, len(records))
	copy(recs, records)

	byID := make(map[string]int, len(recs))
	for i, r := range recs {
		byID[r.ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Snapshot{
		Version: s.cur.Load().Version + 1,
		Records: recs,
		byID:    byID,
	}
	s.cur.Store(next)
	return next.Version
}

// Snapshot returns the current snapshot, giving a consistent view of
// version and records together.
func (s *Store) Snapshot() *Snapshot {
	return s.cur.Load()
}

// Get returns the record with the given id. ok is false when absent.
func (s *Store) Get(id string) (domain.CatalogRecord, bool) {
	return s.cur.Load().Get(id)
}

// All returns every record in ingestion order. The slice is shared with the
// snapshot and must be treated as read-only.
func (s *Store) All() []domain.CatalogRecord {
	return s.cur.Load().Records
}

// Count returns the current number of records.
func (s *Store) Count() int {
	return len(s.cur.Load().Records)
}

// Version returns the current dataset version. It starts at 0 and grows by
// one on every ReplaceAll.
func (s *Store) Version() uint64 {
	return s.cur.Load().Version
}
