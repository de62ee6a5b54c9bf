// Package records implements the metadata store: vector records keyed by id
// with insertion-order iteration.
//
// The store owns the vector payloads and serves them to the index through the
// VectorSource interface, so vectors are never duplicated.
package records

import (
	"iter"
	"sync"

	"github.com/hupe1980/memvec/metadata"
	"github.com/hupe1980/memvec/model"
)

// Store maps uint64 ids to vector records and remembers insertion order.
type Store struct {
	mu    sync.RWMutex
	data  map[uint64]model.VectorRecord
	order []uint64
}

// New creates an empty store pre-sized for capacityHint records.
func New(capacityHint int) *Store {
	if capacityHint < 0 {
		capacityHint = 0
	}

	return &Store{
		data:  make(map[uint64]model.VectorRecord, capacityHint),
		order: make([]uint64, 0, capacityHint),
	}
}

// Get returns the record for id. The returned value shares its vector and
// metadata with the store; callers that hand it out clone first.
func (s *Store) Get(id uint64) (model.VectorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	return rec, ok
}

// Vector returns the stored vector for id. Implements the index's
// VectorSource.
func (s *Store) Vector(id uint64) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return rec.Vector, true
}

// Set stores rec under its id. New ids append to the iteration order,
// existing ids keep their position.
func (s *Store) Set(rec model.VectorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.data[rec.ID] = rec
}

// Delete removes the record for id. Returns false if the id is unknown.
func (s *Store) Delete(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return false
	}

	delete(s.data, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return true
}

// Merge shallow-merges patch into the record's metadata: keys in patch
// overwrite, keys absent from patch are preserved. The vector and timestamp
// are untouched. Returns the merged metadata and false if the id is unknown.
func (s *Store) Merge(id uint64, patch metadata.Metadata) (metadata.Metadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		return nil, false
	}

	rec.Metadata = rec.Metadata.Merge(patch)
	s.data[id] = rec

	return rec.Metadata, true
}

// All iterates the records in insertion order.
func (s *Store) All() iter.Seq[model.VectorRecord] {
	return func(yield func(model.VectorRecord) bool) {
		s.mu.RLock()
		ids := make([]uint64, len(s.order))
		copy(ids, s.order)
		s.mu.RUnlock()

		for _, id := range ids {
			s.mu.RLock()
			rec, ok := s.data[id]
			s.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

// Clear removes all records.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[uint64]model.VectorRecord)
	s.order = s.order[:0]
}
