// Package model defines the record types shared across the store.
package model

import (
	"time"

	"github.com/hupe1980/memvec/metadata"
)

// VectorRecord is a stored vector with its metadata.
//
// The vector payload is immutable after insertion; only Metadata may change,
// via shallow merge. Records are owned by the records store. The index holds
// ids and adjacency only.
type VectorRecord struct {
	ID        uint64            `json:"id"`
	Vector    []float32         `json:"vector"`
	Metadata  metadata.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Clone copies the record. The vector slice and the metadata map are copied;
// values inside the metadata are shared.
func (r VectorRecord) Clone() VectorRecord {
	c := r
	c.Vector = make([]float32, len(r.Vector))
	copy(c.Vector, r.Vector)
	c.Metadata = r.Metadata.Clone()
	return c
}

// ReasoningRecord is a free-text context/reasoning pair stored in the
// reasoning bank. Records are immutable once added.
type ReasoningRecord struct {
	ID        string            `json:"id"`
	Context   string            `json:"context"`
	Reasoning string            `json:"reasoning"`
	Metadata  metadata.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
