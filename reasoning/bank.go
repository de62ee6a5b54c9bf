// Package reasoning implements the reasoning bank: string-keyed
// context/reasoning records with case-insensitive substring search.
package reasoning

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/memvec/metadata"
	"github.com/hupe1980/memvec/model"
)

// Bank stores immutable reasoning records in insertion order.
type Bank struct {
	mu      sync.RWMutex
	data    map[string]model.ReasoningRecord
	order   []string
	counter uint64
}

// New creates an empty bank.
func New() *Bank {
	return &Bank{
		data: make(map[string]model.ReasoningRecord),
	}
}

// Add stores a new record and returns it. Ids combine a monotonic counter
// with a random suffix so they stay unique even across restores that reset
// the counter.
func (b *Bank) Add(context, reasoning string, meta metadata.Metadata) model.ReasoningRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := model.ReasoningRecord{
		ID:        b.nextIDLocked(),
		Context:   context,
		Reasoning: reasoning,
		Metadata:  meta.Clone(),
		CreatedAt: time.Now().UTC(),
	}

	b.data[rec.ID] = rec
	b.order = append(b.order, rec.ID)

	return rec
}

// Get returns the record for id.
func (b *Bank) Get(id string) (model.ReasoningRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.data[id]
	return rec, ok
}

// Search returns all records whose context or reasoning text contains term,
// case-insensitively, in insertion order. A linear scan; the bank is sized
// for agent sessions, not corpora.
func (b *Bank) Search(term string) []model.ReasoningRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	needle := strings.ToLower(term)

	var matches []model.ReasoningRecord
	for _, id := range b.order {
		rec := b.data[id]
		if strings.Contains(strings.ToLower(rec.Context), needle) ||
			strings.Contains(strings.ToLower(rec.Reasoning), needle) {
			matches = append(matches, rec)
		}
	}

	return matches
}

// Len returns the number of records.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.data)
}

// Clear removes all records and resets the id counter.
func (b *Bank) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = make(map[string]model.ReasoningRecord)
	b.order = b.order[:0]
	b.counter = 0
}

// Records returns all records in insertion order.
func (b *Bank) Records() []model.ReasoningRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.ReasoningRecord, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.data[id])
	}

	return out
}

// Counter returns the current id counter, persisted with snapshots.
func (b *Bank) Counter() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.counter
}

// Restore replaces the bank's contents, preserving the given record order
// and id counter.
func (b *Bank) Restore(recs []model.ReasoningRecord, counter uint64) error {
	data := make(map[string]model.ReasoningRecord, len(recs))
	order := make([]string, 0, len(recs))

	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("reasoning: record with empty id")
		}
		if _, dup := data[rec.ID]; dup {
			return fmt.Errorf("reasoning: duplicate record id %q", rec.ID)
		}
		data[rec.ID] = rec
		order = append(order, rec.ID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = data
	b.order = order
	b.counter = counter

	return nil
}

func (b *Bank) nextIDLocked() string {
	id := fmt.Sprintf("r%d-%s", b.counter, uuid.NewString()[:8])
	b.counter++

	return id
}
