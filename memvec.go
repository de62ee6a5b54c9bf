// Package memvec provides an embedded vector store for AI-agent memory.
//
// A Store combines three parts behind one synchronized facade:
//
//   - an HNSW index for approximate nearest neighbor search over
//     fixed-dimension float32 vectors
//   - a records store holding vector payloads, per-record metadata and
//     timestamps, iterated in insertion order
//   - a reasoning bank for free-text context/reasoning pairs with
//     case-insensitive substring search
//
// Quick start:
//
//	store, err := memvec.New(memvec.WithDimension(4))
//	if err != nil {
//	    panic(err)
//	}
//
//	ctx := context.Background()
//	id, _ := store.AddVector(ctx, []float32{1, 0, 0, 0}, metadata.Metadata{"kind": "note"})
//
//	results, _ := store.Search(ctx, []float32{1, 0, 0, 0}, 2)
//	_ = results[0].ID == id // nearest hit
//
// Persistence is snapshot based: Export captures the full state, Import
// replaces it atomically and rebuilds the index by replaying inserts. The
// serialized container is self-describing (codec, compression, checksum) and
// can live on disk or in any blobstore backend.
package memvec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/memvec/blobstore"
	"github.com/hupe1980/memvec/codec"
	"github.com/hupe1980/memvec/index/hnsw"
	"github.com/hupe1980/memvec/metadata"
	"github.com/hupe1980/memvec/model"
	"github.com/hupe1980/memvec/persistence"
	"github.com/hupe1980/memvec/reasoning"
	"github.com/hupe1980/memvec/records"
	"github.com/hupe1980/memvec/resource"
)

// SearchResult is a single search hit with its hydrated metadata.
type SearchResult struct {
	ID       uint64
	Distance float32
	Metadata metadata.Metadata
}

// Stats is a point-in-time summary of the store.
type Stats struct {
	VectorCount    int        `json:"vector_count"`
	ReasoningCount int        `json:"reasoning_count"`
	Dimension      int        `json:"dimension"`
	NextID         uint64     `json:"next_id"`
	Index          hnsw.Stats `json:"index"`
}

// Store is the synchronized facade over index, records and reasoning bank.
// All operations are safe for concurrent use; a single RWMutex serializes
// mutations and lets searches proceed in parallel.
type Store struct {
	mu sync.RWMutex

	opts    options
	index   *hnsw.Index
	records *records.Store
	bank    *reasoning.Bank
	nextID  uint64

	handlers []Handler

	codec      codec.Codec
	compressor persistence.Compressor
	resources  *resource.Controller
	metrics    MetricsCollector
	logger     *Logger
}

// New creates a Store. The dimension defaults to 384; all other parameters
// have workable defaults for agent-memory workloads.
func New(optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)

	if o.dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: o.dimension}
	}

	recs := records.New(o.capacityHint)

	idx, err := newIndex(recs, o)
	if err != nil {
		return nil, translateError(err)
	}

	s := &Store{
		opts:       o,
		index:      idx,
		records:    recs,
		bank:       reasoning.New(),
		handlers:   o.handlers,
		codec:      o.codec,
		compressor: o.compressor,
		resources:  o.resources,
		metrics:    o.metricsCollector,
		logger:     o.logger,
	}

	s.emit(Event{Type: EventInitialized})

	return s, nil
}

func newIndex(source hnsw.VectorSource, o options) (*hnsw.Index, error) {
	return hnsw.New(source, func(io *hnsw.Options) {
		io.Dimension = o.dimension
		io.CapacityHint = o.capacityHint
		io.M = o.m
		io.EFConstruction = o.efConstruction
		io.EFSearch = o.efSearch
		io.DistanceType = o.distanceType
		io.RandomSeed = o.randomSeed
	})
}

// AddVector stores a vector with optional metadata and returns its id.
// Ids are assigned from a counter that only advances on success, so a
// rejected vector never burns an id.
func (s *Store) AddVector(ctx context.Context, vector []float32, meta metadata.Metadata) (uint64, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID

	rec := model.VectorRecord{
		ID:        id,
		Vector:    slices.Clone(vector),
		Metadata:  meta.Clone(),
		CreatedAt: time.Now().UTC(),
	}

	s.records.Set(rec)

	if err := s.index.Insert(id, rec.Vector); err != nil {
		s.records.Delete(id)

		err = translateError(err)
		s.metrics.RecordInsert(time.Since(start), err)
		s.logger.LogInsert(ctx, id, len(vector), err)

		return 0, err
	}

	s.nextID++

	s.metrics.RecordInsert(time.Since(start), nil)
	s.logger.LogInsert(ctx, id, len(rec.Vector), nil)
	s.emit(Event{Type: EventVectorAdded, ID: id})

	return id, nil
}

// Search returns up to k nearest live vectors, ordered by ascending distance
// with ties going to the earlier id. k = 0 yields an empty result; k < 0 is
// an error.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	start := time.Now()

	if k < 0 {
		err := fmt.Errorf("%w: got %d", ErrInvalidK, k)
		s.metrics.RecordSearch(k, time.Since(start), err)
		s.logger.LogSearch(ctx, k, 0, err)

		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.index.Search(query, k)
	if err != nil {
		err = translateError(err)
		s.metrics.RecordSearch(k, time.Since(start), err)
		s.logger.LogSearch(ctx, k, 0, err)

		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		rec, ok := s.records.Get(h.ID)
		if !ok {
			continue
		}

		results = append(results, SearchResult{
			ID:       h.ID,
			Distance: h.Distance,
			Metadata: rec.Metadata.Clone(),
		})
	}

	s.metrics.RecordSearch(k, time.Since(start), nil)
	s.logger.LogSearch(ctx, k, len(results), nil)

	return results, nil
}

// DeleteVector removes a vector. The index keeps a tombstone so the graph
// stays navigable; the record itself is dropped immediately. Returns false
// for unknown or already deleted ids.
func (s *Store) DeleteVector(ctx context.Context, id uint64) bool {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.index.Delete(id) {
		return false
	}

	s.records.Delete(id)

	s.metrics.RecordDelete(time.Since(start), nil)
	s.logger.LogDelete(ctx, id, nil)
	s.emit(Event{Type: EventVectorDeleted, ID: id})

	return true
}

// UpdateMetadata shallow-merges patch into a vector's metadata: patch keys
// overwrite, absent keys are preserved, the vector and timestamp stay
// untouched. Returns false for unknown ids.
func (s *Store) UpdateMetadata(ctx context.Context, id uint64, patch metadata.Metadata) bool {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	merged, ok := s.records.Merge(id, patch)
	if !ok {
		return false
	}

	s.metrics.RecordUpdate(time.Since(start), nil)
	s.logger.LogUpdate(ctx, id, nil)
	s.emit(Event{Type: EventMetadataUpdated, ID: id, Metadata: merged.Clone()})

	return true
}

// GetVector returns a copy of the stored record for id.
func (s *Store) GetVector(id uint64) (model.VectorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records.Get(id)
	if !ok {
		return model.VectorRecord{}, false
	}

	return rec.Clone(), true
}

// AddReasoning stores a context/reasoning pair in the reasoning bank and
// returns the generated id.
func (s *Store) AddReasoning(ctx context.Context, contextText, reasoningText string, meta metadata.Metadata) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.bank.Add(contextText, reasoningText, meta)

	s.logger.DebugContext(ctx, "reasoning added", "reasoning_id", rec.ID)
	s.emit(Event{Type: EventReasoningAdded, ReasoningID: rec.ID})

	return rec.ID
}

// GetReasoning returns the reasoning record for id.
func (s *Store) GetReasoning(id string) (model.ReasoningRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bank.Get(id)
}

// SearchReasoning returns all reasoning records whose context or reasoning
// text contains term, case-insensitively, in insertion order.
func (s *Store) SearchReasoning(term string) []model.ReasoningRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bank.Search(term)
}

// Stats returns current counts and index statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		VectorCount:    s.records.Len(),
		ReasoningCount: s.bank.Len(),
		Dimension:      s.opts.dimension,
		NextID:         s.nextID,
		Index:          s.index.Stats(),
	}
}

// SetEFSearch adjusts the search-time candidate list size.
func (s *Store) SetEFSearch(ef int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.SetEFSearch(ef)
}

// Subscribe registers a handler for lifecycle events. Handlers run
// synchronously, in registration order, strictly after the mutation they
// describe, while the store lock is still held - keep them fast and never
// call back into the store from one.
func (s *Store) Subscribe(h Handler) {
	if h == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = append(s.handlers, h)
}

// Clear atomically resets vectors, reasoning records, tombstones and the id
// counter, then emits a single Cleared event.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.Reset()
	s.records.Clear()
	s.bank.Clear()
	s.nextID = 0

	s.logger.LogClear(ctx)
	s.emit(Event{Type: EventCleared})
}

// Compact rebuilds the index without its tombstones and returns how many
// were dropped. The rebuild runs under the write lock; the resource
// controller bounds how many maintenance jobs run at once.
func (s *Store) Compact(ctx context.Context) (int, error) {
	if err := s.resources.AcquireBackground(ctx); err != nil {
		return 0, err
	}
	defer s.resources.ReleaseBackground()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.index.Compact()
	if err != nil {
		return removed, translateError(err)
	}

	s.logger.LogCompact(ctx, removed)

	return removed, nil
}

// Export captures the complete live state: configuration, vectors with
// metadata, reasoning records and both id counters. Tombstoned vectors are
// excluded. The snapshot shares nothing with the store.
func (s *Store) Export() *persistence.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &persistence.Snapshot{
		Config: persistence.Config{
			Dimension:      s.opts.dimension,
			CapacityHint:   s.opts.capacityHint,
			M:              s.opts.m,
			EFConstruction: s.opts.efConstruction,
			EFSearch:       s.index.EFSearch(),
			DistanceType:   s.opts.distanceType,
		},
		NextID:           s.nextID,
		Reasoning:        s.bank.Records(),
		ReasoningCounter: s.bank.Counter(),
		CreatedAt:        time.Now().UTC(),
	}

	for rec := range s.records.All() {
		snap.Vectors = append(snap.Vectors, rec.Clone())
	}

	return snap
}

// Import replaces the store's state with the snapshot. The index is rebuilt
// by replaying an insert per vector; serialized graph structure is never
// trusted. Import validates everything up front and swaps the new state in
// only on success, so a failed import leaves the store untouched.
//
// The snapshot dimension must match the store's. The remaining index
// configuration (distance metric, M, efConstruction, efSearch) is adopted
// from the snapshot, so an imported store answers queries exactly like the
// store that exported it.
func (s *Store) Import(ctx context.Context, snap *persistence.Snapshot) error {
	if snap == nil {
		return errors.New("memvec: nil snapshot")
	}

	if err := snap.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Config.Dimension != s.opts.dimension {
		return &ErrDimensionMismatch{Expected: s.opts.dimension, Actual: snap.Config.Dimension}
	}

	newOpts := s.opts
	newOpts.capacityHint = max(snap.Config.CapacityHint, len(snap.Vectors))
	newOpts.m = snap.Config.M
	newOpts.efConstruction = snap.Config.EFConstruction
	newOpts.efSearch = snap.Config.EFSearch
	newOpts.distanceType = snap.Config.DistanceType

	newRecords := records.New(newOpts.capacityHint)

	newIndex, err := newIndex(newRecords, newOpts)
	if err != nil {
		return translateError(err)
	}

	for _, rec := range snap.Vectors {
		c := rec.Clone()
		newRecords.Set(c)

		if err := newIndex.Insert(c.ID, c.Vector); err != nil {
			return translateError(err)
		}
	}

	newBank := reasoning.New()
	if err := newBank.Restore(snap.Reasoning, snap.ReasoningCounter); err != nil {
		return err
	}

	s.opts = newOpts
	s.records = newRecords
	s.index = newIndex
	s.bank = newBank
	s.nextID = snap.NextID

	s.logger.LogImport(ctx, len(snap.Vectors), len(snap.Reasoning), nil)
	s.emit(Event{Type: EventSnapshotImported})

	return nil
}

// SaveToWriter exports the store and writes the snapshot container to w.
func (s *Store) SaveToWriter(w io.Writer) error {
	return persistence.Encode(w, s.Export(), s.codec, s.compressor)
}

// LoadFromReader decodes a snapshot container from r and imports it.
func (s *Store) LoadFromReader(ctx context.Context, r io.Reader) error {
	snap, err := persistence.Decode(r)
	if err != nil {
		return err
	}

	return s.Import(ctx, snap)
}

// SaveToFile writes a snapshot to filename atomically.
func (s *Store) SaveToFile(ctx context.Context, filename string) error {
	err := persistence.SaveToFile(filename, s.SaveToWriter)
	s.logger.LogSnapshot(ctx, filename, err)

	return err
}

// LoadFromFile reads a snapshot file and imports it.
func (s *Store) LoadFromFile(ctx context.Context, filename string) error {
	return persistence.LoadFromFile(filename, func(r io.Reader) error {
		return s.LoadFromReader(ctx, r)
	})
}

// SaveToBlobStore exports the store and uploads the snapshot under name.
// Uploads count against the resource controller's IO budget.
func (s *Store) SaveToBlobStore(ctx context.Context, bs blobstore.Store, name string) error {
	var buf bytes.Buffer
	if err := s.SaveToWriter(&buf); err != nil {
		return err
	}

	if err := s.resources.AcquireIO(ctx, buf.Len()); err != nil {
		return err
	}

	err := bs.Put(ctx, name, buf.Bytes())
	s.logger.LogSnapshot(ctx, name, err)

	return err
}

// LoadFromBlobStore downloads the named snapshot and imports it.
func (s *Store) LoadFromBlobStore(ctx context.Context, bs blobstore.Store, name string) error {
	blob, err := bs.Open(ctx, name)
	if err != nil {
		return translateError(err)
	}
	defer blob.Close()

	if err := s.resources.AcquireIO(ctx, int(blob.Size())); err != nil {
		return err
	}

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return err
	}

	return s.LoadFromReader(ctx, bytes.NewReader(data))
}

// emit runs all handlers synchronously in registration order. Callers hold
// the store lock, so observers always see the post-mutation state.
func (s *Store) emit(e Event) {
	for _, h := range s.handlers {
		h(e)
	}
}
