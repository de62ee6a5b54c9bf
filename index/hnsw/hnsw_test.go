package hnsw

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memvec/distance"
)

// mapSource is a VectorSource backed by a plain map.
type mapSource map[uint64][]float32

func (m mapSource) Vector(id uint64) ([]float32, bool) {
	v, ok := m[id]
	return v, ok
}

func newTestIndex(t *testing.T, source mapSource, dim int) *Index {
	t.Helper()

	seed := int64(42)
	i, err := New(source, func(o *Options) {
		o.Dimension = dim
		o.RandomSeed = &seed
	})
	require.NoError(t, err)

	return i
}

func TestNew(t *testing.T) {
	t.Run("invalid dimension", func(t *testing.T) {
		_, err := New(mapSource{})
		require.Error(t, err)

		var e *ErrInvalidDimension
		assert.ErrorAs(t, err, &e)
	})

	t.Run("m floor", func(t *testing.T) {
		i, err := New(mapSource{}, func(o *Options) {
			o.Dimension = 4
			o.M = 1
		})
		require.NoError(t, err)
		assert.Equal(t, minM, i.Stats().M)
	})
}

func TestIndex_InsertAndSearch(t *testing.T) {
	source := mapSource{
		0: {1, 0, 0, 0},
		1: {0, 1, 0, 0},
		2: {0.9, 0.1, 0, 0},
	}
	i := newTestIndex(t, source, 4)

	for id := uint64(0); id < 3; id++ {
		require.NoError(t, i.Insert(id, source[id]))
	}
	assert.Equal(t, 3, i.Len())

	results, err := i.Search([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, uint64(0), results[0].ID)
	assert.Equal(t, uint64(2), results[1].ID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	i := newTestIndex(t, mapSource{}, 4)

	err := i.Insert(0, []float32{1, 2})
	require.Error(t, err)

	var e *ErrDimensionMismatch
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 4, e.Expected)
	assert.Equal(t, 2, e.Actual)

	_, err = i.Search([]float32{1, 2}, 1)
	assert.ErrorAs(t, err, &e)
}

func TestIndex_DuplicateID(t *testing.T) {
	source := mapSource{0: {1, 0, 0, 0}}
	i := newTestIndex(t, source, 4)

	require.NoError(t, i.Insert(0, source[0]))
	assert.ErrorIs(t, i.Insert(0, source[0]), ErrDuplicateID)
}

func TestIndex_SearchEdgeCases(t *testing.T) {
	source := mapSource{0: {1, 0, 0, 0}}
	i := newTestIndex(t, source, 4)

	t.Run("empty index", func(t *testing.T) {
		results, err := i.Search([]float32{1, 0, 0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	require.NoError(t, i.Insert(0, source[0]))

	t.Run("k zero", func(t *testing.T) {
		results, err := i.Search([]float32{1, 0, 0, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("k exceeds size", func(t *testing.T) {
		results, err := i.Search([]float32{1, 0, 0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}

func TestIndex_Delete(t *testing.T) {
	source := mapSource{
		0: {1, 0, 0, 0},
		1: {0, 1, 0, 0},
		2: {0.9, 0.1, 0, 0},
	}
	i := newTestIndex(t, source, 4)
	for id := uint64(0); id < 3; id++ {
		require.NoError(t, i.Insert(id, source[id]))
	}

	assert.True(t, i.Delete(2))
	assert.False(t, i.Delete(2), "second delete is a no-op")
	assert.False(t, i.Delete(99), "unknown id")
	assert.Equal(t, 2, i.Len())
	assert.False(t, i.Contains(2))
	assert.True(t, i.Contains(0))

	// The tombstoned id must never come back from a search.
	results, err := i.Search([]float32{0.9, 0.1, 0, 0}, 3)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, uint64(2), r.ID)
	}
	assert.Len(t, results, 2)
}

func TestIndex_DeleteRetainsPayload(t *testing.T) {
	source := mapSource{
		0: {1, 0, 0, 0},
		1: {0, 1, 0, 0},
		2: {0, 0, 1, 0},
	}
	i := newTestIndex(t, source, 4)
	for id := uint64(0); id < 3; id++ {
		require.NoError(t, i.Insert(id, source[id]))
	}

	// The facade drops the record right after a delete; the index must keep
	// the payload so edges through the tombstone still measure real
	// distances instead of sorting last.
	require.True(t, i.Delete(1))
	delete(source, 1)

	d := i.distToQuery([]float32{0, 1, 0, 0}, 1)
	assert.InDelta(t, 0.0, d, 1e-6)

	results, err := i.Search([]float32{0, 1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, results, 2, "tombstoned id stays out of results")

	// Compact frees the retained payloads along with the tombstones.
	_, err = i.Compact()
	require.NoError(t, err)
	assert.Empty(t, i.retained)

	i.Reset()
	assert.Empty(t, i.retained)
}

func TestIndex_Compact(t *testing.T) {
	source := mapSource{}
	i := newTestIndex(t, source, 4)

	rng := rand.New(rand.NewSource(7))
	for id := uint64(0); id < 50; id++ {
		vec := []float32{rng.Float32(), rng.Float32(), rng.Float32(), rng.Float32()}
		source[id] = vec
		require.NoError(t, i.Insert(id, vec))
	}

	for id := uint64(0); id < 50; id += 5 {
		require.True(t, i.Delete(id))
		delete(source, id)
	}

	before, err := i.Search(source[1], 5)
	require.NoError(t, err)

	removed, err := i.Compact()
	require.NoError(t, err)
	assert.Equal(t, 10, removed)
	assert.Equal(t, 40, i.Len())
	assert.Equal(t, 0, i.Stats().Tombstones)

	after, err := i.Search(source[1], 5)
	require.NoError(t, err)
	assert.Equal(t, before[0].ID, after[0].ID)

	removed, err = i.Compact()
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "nothing left to compact")
}

func TestIndex_Deterministic(t *testing.T) {
	build := func() ([]Result, error) {
		source := mapSource{}
		seed := int64(99)
		i, err := New(source, func(o *Options) {
			o.Dimension = 8
			o.RandomSeed = &seed
		})
		if err != nil {
			return nil, err
		}

		rng := rand.New(rand.NewSource(3))
		var query []float32
		for id := uint64(0); id < 100; id++ {
			vec := make([]float32, 8)
			for j := range vec {
				vec[j] = rng.Float32()
			}
			source[id] = vec
			if id == 50 {
				query = vec
			}
			if err := i.Insert(id, vec); err != nil {
				return nil, err
			}
		}

		return i.Search(query, 10)
	}

	a, err := build()
	require.NoError(t, err)
	b, err := build()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIndex_Recall(t *testing.T) {
	source := mapSource{}
	seed := int64(1)
	i, err := New(source, func(o *Options) {
		o.Dimension = 8
		o.DistanceType = distance.MetricSquaredL2
		o.RandomSeed = &seed
		o.EFSearch = 200
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	for id := uint64(0); id < 200; id++ {
		vec := make([]float32, 8)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		source[id] = vec
		require.NoError(t, i.Insert(id, vec))
	}

	query := make([]float32, 8)
	for j := range query {
		query[j] = rng.Float32()
	}

	// Brute-force nearest neighbor.
	best := uint64(0)
	bestDist := distance.SquaredL2(query, source[0])
	for id := uint64(1); id < 200; id++ {
		if d := distance.SquaredL2(query, source[id]); d < bestDist {
			best, bestDist = id, d
		}
	}

	results, err := i.Search(query, 5)
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.True(t, sort.SliceIsSorted(results, func(a, b int) bool {
		return results[a].Distance < results[b].Distance
	}), "results must be sorted by distance")

	found := false
	for _, r := range results {
		if r.ID == best {
			found = true
		}
	}
	assert.True(t, found, "exact nearest neighbor should rank in the top results")
}

func TestIndex_SetEFSearch(t *testing.T) {
	i := newTestIndex(t, mapSource{}, 4)
	assert.Equal(t, DefaultEFSearch, i.EFSearch())

	i.SetEFSearch(128)
	assert.Equal(t, 128, i.EFSearch())

	i.SetEFSearch(0)
	assert.Equal(t, 128, i.EFSearch(), "non-positive values are ignored")
}

func TestIndex_Reset(t *testing.T) {
	source := mapSource{0: {1, 0, 0, 0}}
	i := newTestIndex(t, source, 4)
	require.NoError(t, i.Insert(0, source[0]))

	i.Reset()
	assert.Equal(t, 0, i.Len())

	results, err := i.Search([]float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Ids are reusable after a reset.
	require.NoError(t, i.Insert(0, source[0]))
	assert.Equal(t, 1, i.Len())
}
