package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	assert.InDelta(t, 32.0, Dot([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-6)
	assert.InDelta(t, 0.0, Dot([]float32{1, 0}, []float32{0, 1}), 1e-6)
}

func TestSquaredL2(t *testing.T) {
	assert.InDelta(t, 0.0, SquaredL2([]float32{1, 2}, []float32{1, 2}), 1e-6)
	assert.InDelta(t, 8.0, SquaredL2([]float32{1, 1}, []float32{3, 3}), 1e-6)
}

func TestCosine(t *testing.T) {
	t.Run("identical direction", func(t *testing.T) {
		assert.InDelta(t, 0.0, Cosine([]float32{1, 0, 0}, []float32{2, 0, 0}), 1e-6)
	})

	t.Run("orthogonal", func(t *testing.T) {
		assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	})

	t.Run("opposite", func(t *testing.T) {
		assert.InDelta(t, 2.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	})

	t.Run("zero norm is maximal", func(t *testing.T) {
		assert.Equal(t, float32(math.MaxFloat32), Cosine([]float32{0, 0}, []float32{1, 0}))
	})
}

func TestNegativeDot(t *testing.T) {
	// More similar vectors must sort first (smaller value).
	close := NegativeDot([]float32{1, 0}, []float32{1, 0})
	far := NegativeDot([]float32{1, 0}, []float32{0.1, 0})
	assert.Less(t, close, far)
}

func TestProvider(t *testing.T) {
	for _, m := range []Metric{MetricCosine, MetricSquaredL2, MetricDot} {
		fn, err := Provider(m)
		require.NoError(t, err)
		require.NotNil(t, fn)
	}

	_, err := Provider(Metric(42))
	assert.Error(t, err)
}

func TestMetricString(t *testing.T) {
	assert.Equal(t, "Cosine", MetricCosine.String())
	assert.Equal(t, "SquaredL2", MetricSquaredL2.String())
	assert.Equal(t, "Dot", MetricDot.String())
}
