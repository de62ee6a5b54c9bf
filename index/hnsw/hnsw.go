// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// The index stores ids and adjacency only. Vector payloads are read through a
// VectorSource so they are never duplicated. The index is not safe for
// concurrent use; callers synchronize access (the facade holds a single
// RWMutex over index and record store).
package hnsw

import (
	"math"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/internal/queue"
	"github.com/hupe1980/memvec/internal/visited"
)

const (
	// DefaultM is the default maximum number of connections per layer.
	DefaultM = 16

	// DefaultEFConstruction is the default size of the candidate list
	// during index construction.
	DefaultEFConstruction = 200

	// DefaultEFSearch is the default size of the candidate list during
	// search. Mutable after construction via SetEFSearch.
	DefaultEFSearch = 50

	// minM is the smallest usable connection count; below this the graph
	// degenerates into disconnected chains.
	minM = 2
)

// VectorSource provides read access to vector payloads by id.
// Implemented by the records store.
type VectorSource interface {
	Vector(id uint64) ([]float32, bool)
}

// Options contains the configuration for the HNSW index.
type Options struct {
	// Dimension is the expected vector dimension. Required.
	Dimension int

	// CapacityHint pre-sizes internal structures. Advisory only; inserting
	// past it reallocates and never fails.
	CapacityHint int

	// M is the maximum number of connections per node and layer.
	M int

	// EFConstruction is the candidate list size during insertion.
	EFConstruction int

	// EFSearch is the candidate list size during search.
	EFSearch int

	// DistanceType is the metric used for vector comparison.
	DistanceType distance.Metric

	// RandomSeed makes layer assignment deterministic when set.
	RandomSeed *int64
}

// DefaultOptions contains the default options for the HNSW index.
var DefaultOptions = Options{
	CapacityHint:   10_000,
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
	EFSearch:       DefaultEFSearch,
	DistanceType:   distance.MetricCosine,
}

// Result is a single search hit.
type Result struct {
	ID       uint64
	Distance float32
}

// Stats describes the current shape of the index.
type Stats struct {
	Count          int             `json:"count"`
	Tombstones     int             `json:"tombstones"`
	MaxLevel       int             `json:"max_level"`
	Dimension      int             `json:"dimension"`
	M              int             `json:"m"`
	EFConstruction int             `json:"ef_construction"`
	EFSearch       int             `json:"ef_search"`
	DistanceType   distance.Metric `json:"distance_type"`
}

type node struct {
	level int
	// conns[l] holds the neighbor ids at layer l, 0 <= l <= level.
	conns [][]uint64
}

// Index is a layered proximity graph over externally stored vectors.
type Index struct {
	opts         Options
	distanceFunc distance.Func
	vectors      VectorSource

	nodes      map[uint64]*node
	entryPoint uint64
	maxLevel   int // -1 while the graph is empty
	count      int // live nodes, tombstones excluded
	tombstones *roaring64.Bitmap
	// retained holds vector payloads of tombstoned nodes after the source
	// drops them, so traversal through their edges keeps real distances.
	// Freed by Compact and Reset.
	retained map[uint64][]float32
	efSearch int

	layerMultiplier float64
	rng             *rand.Rand

	visitedPool sync.Pool
}

// New creates a new HNSW index reading vectors from source.
func New(source VectorSource, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: opts.Dimension}
	}

	if opts.M < minM {
		opts.M = minM
	}

	if opts.EFConstruction < opts.M {
		opts.EFConstruction = DefaultEFConstruction
	}

	if opts.EFSearch <= 0 {
		opts.EFSearch = DefaultEFSearch
	}

	if opts.CapacityHint < 0 {
		opts.CapacityHint = 0
	}

	distanceFunc, err := distance.Provider(opts.DistanceType)
	if err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if opts.RandomSeed != nil {
		seed = *opts.RandomSeed
	}

	i := &Index{
		opts:            opts,
		distanceFunc:    distanceFunc,
		vectors:         source,
		nodes:           make(map[uint64]*node, opts.CapacityHint),
		maxLevel:        -1,
		tombstones:      roaring64.NewBitmap(),
		retained:        make(map[uint64][]float32),
		efSearch:        opts.EFSearch,
		layerMultiplier: 1 / math.Log(float64(opts.M)),
		rng:             rand.New(rand.NewSource(seed)),
	}

	i.visitedPool = sync.Pool{
		New: func() any {
			return visited.New(opts.CapacityHint)
		},
	}

	return i, nil
}

// Insert adds a vector id to the graph. The vector must already be available
// from the VectorSource. Returns ErrDuplicateID if the id is present
// (tombstoned or not).
func (i *Index) Insert(id uint64, vector []float32) error {
	if len(vector) != i.opts.Dimension {
		return &ErrDimensionMismatch{Expected: i.opts.Dimension, Actual: len(vector)}
	}

	if _, exists := i.nodes[id]; exists {
		return ErrDuplicateID
	}

	level := i.randomLevel()

	n := &node{
		level: level,
		conns: make([][]uint64, level+1),
	}

	// First node becomes the entry point.
	if i.maxLevel < 0 {
		i.nodes[id] = n
		i.entryPoint = id
		i.maxLevel = level
		i.count++

		return nil
	}

	ep := queue.Item{Node: i.entryPoint, Distance: i.distToQuery(vector, i.entryPoint)}

	// Greedy descent through the layers above the new node's level.
	for l := i.maxLevel; l > level; l-- {
		ep = i.greedyClosest(vector, ep, l)
	}

	for l := min(level, i.maxLevel); l >= 0; l-- {
		candidates := i.searchLayer(vector, ep, l, i.opts.EFConstruction)

		neighbors := candidates
		if len(neighbors) > i.opts.M {
			neighbors = neighbors[:i.opts.M]
		}

		conns := make([]uint64, len(neighbors))
		for j, nb := range neighbors {
			conns[j] = nb.Node
		}
		n.conns[l] = conns

		// Edges are bidirectional; over-full neighbor lists are pruned.
		for _, nb := range neighbors {
			i.connect(nb.Node, id, l)
		}

		if len(candidates) > 0 {
			ep = candidates[0]
		}
	}

	i.nodes[id] = n
	i.count++

	if level > i.maxLevel {
		i.maxLevel = level
		i.entryPoint = id
	}

	return nil
}

// Search returns up to k live ids ordered by ascending distance to query,
// ties broken by lower id. Tombstoned ids are traversed but never returned.
func (i *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != i.opts.Dimension {
		return nil, &ErrDimensionMismatch{Expected: i.opts.Dimension, Actual: len(query)}
	}

	if k <= 0 || i.count == 0 || i.maxLevel < 0 {
		return nil, nil
	}

	ep := queue.Item{Node: i.entryPoint, Distance: i.distToQuery(query, i.entryPoint)}

	for l := i.maxLevel; l > 0; l-- {
		ep = i.greedyClosest(query, ep, l)
	}

	ef := max(i.efSearch, k)

	candidates := i.searchLayer(query, ep, 0, ef)
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]Result, len(candidates))
	for j, c := range candidates {
		results[j] = Result{ID: c.Node, Distance: c.Distance}
	}

	return results, nil
}

// Delete soft-deletes an id. The node keeps its edges and its vector payload
// so the graph stays navigable with real distances; both are dropped for real
// by Compact. Returns false if the id is unknown or already deleted.
func (i *Index) Delete(id uint64) bool {
	if _, ok := i.nodes[id]; !ok {
		return false
	}

	if i.tombstones.Contains(id) {
		return false
	}

	// Capture the payload while the source can still serve it.
	if vec, ok := i.vectors.Vector(id); ok {
		i.retained[id] = vec
	}

	i.tombstones.Add(id)
	i.count--

	return true
}

// Contains reports whether id is live in the index.
func (i *Index) Contains(id uint64) bool {
	if _, ok := i.nodes[id]; !ok {
		return false
	}

	return !i.tombstones.Contains(id)
}

// Len returns the number of live vectors.
func (i *Index) Len() int {
	return i.count
}

// SetEFSearch changes the search-time candidate list size.
// Values below 1 are ignored.
func (i *Index) SetEFSearch(ef int) {
	if ef > 0 {
		i.efSearch = ef
	}
}

// EFSearch returns the current search-time candidate list size.
func (i *Index) EFSearch() int {
	return i.efSearch
}

// Stats returns the current index statistics.
func (i *Index) Stats() Stats {
	return Stats{
		Count:          i.count,
		Tombstones:     int(i.tombstones.GetCardinality()),
		MaxLevel:       i.maxLevel,
		Dimension:      i.opts.Dimension,
		M:              i.opts.M,
		EFConstruction: i.opts.EFConstruction,
		EFSearch:       i.efSearch,
		DistanceType:   i.opts.DistanceType,
	}
}

// Reset discards the whole graph, tombstones included.
func (i *Index) Reset() {
	i.nodes = make(map[uint64]*node, i.opts.CapacityHint)
	i.entryPoint = 0
	i.maxLevel = -1
	i.count = 0
	i.tombstones = roaring64.NewBitmap()
	i.retained = make(map[uint64][]float32)
}

// Compact rebuilds the graph from the live ids, dropping tombstones.
// Returns the number of tombstones removed.
func (i *Index) Compact() (int, error) {
	removed := int(i.tombstones.GetCardinality())
	if removed == 0 {
		return 0, nil
	}

	live := make([]uint64, 0, i.count)
	for id := range i.nodes {
		if !i.tombstones.Contains(id) {
			live = append(live, id)
		}
	}
	slices.Sort(live)

	i.Reset()

	for _, id := range live {
		vec, ok := i.vectors.Vector(id)
		if !ok {
			continue
		}
		if err := i.Insert(id, vec); err != nil {
			return removed, err
		}
	}

	return removed, nil
}

// distToQuery fetches the vector for id, falling back to retained tombstone
// payloads, and measures it against query. Missing vectors sort last.
func (i *Index) distToQuery(query []float32, id uint64) float32 {
	vec, ok := i.vectors.Vector(id)
	if !ok {
		vec, ok = i.retained[id]
		if !ok {
			return math.MaxFloat32
		}
	}

	return i.distanceFunc(query, vec)
}

// randomLevel draws a layer from the exponential distribution
// floor(-ln(U) / ln(M)).
func (i *Index) randomLevel() int {
	u := i.rng.Float64()
	for u == 0 {
		u = i.rng.Float64()
	}

	return int(math.Floor(-math.Log(u) * i.layerMultiplier))
}

// greedyClosest walks layer edges from ep toward query until no neighbor
// improves the distance. Ties move to the lower id.
func (i *Index) greedyClosest(query []float32, ep queue.Item, layer int) queue.Item {
	for {
		improved := false

		n := i.nodes[ep.Node]
		if layer >= len(n.conns) {
			return ep
		}

		for _, nb := range n.conns[layer] {
			d := i.distToQuery(query, nb)
			if d < ep.Distance || (d == ep.Distance && nb < ep.Node) {
				ep = queue.Item{Node: nb, Distance: d}
				improved = true
			}
		}

		if !improved {
			return ep
		}
	}
}

// searchLayer runs a best-first search on one layer, keeping at most ef live
// results. The returned slice is sorted ascending by (distance, id).
// Tombstoned nodes are expanded but excluded from the result set.
func (i *Index) searchLayer(query []float32, ep queue.Item, layer, ef int) []queue.Item {
	vs := i.visitedPool.Get().(*visited.Set)
	defer func() {
		vs.Reset()
		i.visitedPool.Put(vs)
	}()

	candidates := queue.NewMin(ef)
	results := queue.NewMax(ef)

	vs.Visit(ep.Node)
	candidates.Push(ep)

	if !i.tombstones.Contains(ep.Node) {
		results.Push(ep)
	}

	for candidates.Len() > 0 {
		curr, _ := candidates.Pop()

		if results.Len() >= ef {
			worst, _ := results.Top()
			if curr.Distance > worst.Distance {
				break
			}
		}

		n := i.nodes[curr.Node]
		if layer >= len(n.conns) {
			continue
		}

		for _, nb := range n.conns[layer] {
			if vs.Visited(nb) {
				continue
			}
			vs.Visit(nb)

			d := i.distToQuery(query, nb)

			if results.Len() >= ef {
				worst, _ := results.Top()
				if d > worst.Distance || (d == worst.Distance && nb > worst.Node) {
					continue
				}
			}

			item := queue.Item{Node: nb, Distance: d}
			candidates.Push(item)

			if !i.tombstones.Contains(nb) {
				results.Push(item)
				if results.Len() > ef {
					results.Pop()
				}
			}
		}
	}

	out := make([]queue.Item, results.Len())
	for j := len(out) - 1; j >= 0; j-- {
		out[j], _ = results.Pop()
	}

	return out
}

// connect adds an edge src -> dst at layer and prunes the list back to M by
// dropping the farthest neighbors, ties dropping the higher id.
func (i *Index) connect(src, dst uint64, layer int) {
	n := i.nodes[src]
	n.conns[layer] = append(n.conns[layer], dst)

	if len(n.conns[layer]) <= i.opts.M {
		return
	}

	srcVec, ok := i.vectors.Vector(src)
	if !ok {
		n.conns[layer] = n.conns[layer][:i.opts.M]
		return
	}

	type scored struct {
		id   uint64
		dist float32
	}

	list := make([]scored, len(n.conns[layer]))
	for j, nb := range n.conns[layer] {
		list[j] = scored{id: nb, dist: i.distToQuery(srcVec, nb)}
	}

	sort.Slice(list, func(a, b int) bool {
		if list[a].dist != list[b].dist {
			return list[a].dist < list[b].dist
		}
		return list[a].id < list[b].id
	})

	kept := make([]uint64, i.opts.M)
	for j := range kept {
		kept[j] = list[j].id
	}
	n.conns[layer] = kept
}
