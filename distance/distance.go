// Package distance provides the distance metrics used for vector comparison.
//
// All functions assume both vectors have the same length; enforcing the
// configured dimension is the caller's responsibility.
package distance

import (
	"fmt"
	"math"
)

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared Euclidean distance between two vectors.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Cosine calculates the cosine distance (1 - cosine similarity) between two
// vectors. Identical directions yield 0, orthogonal vectors yield 1.
// Zero-norm inputs yield the maximal distance since no angle is defined.
func Cosine(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return math.MaxFloat32
	}
	return 1 - dot/float32(math.Sqrt(float64(normA)*float64(normB)))
}

// NegativeDot is the inner-product distance. A higher dot product means more
// similar, so the negated value sorts ascending like the other metrics.
func NegativeDot(a, b []float32) float32 {
	return -Dot(a, b)
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	// MetricCosine is cosine distance, the default.
	MetricCosine Metric = iota
	// MetricSquaredL2 is squared Euclidean distance.
	MetricSquaredL2
	// MetricDot is inner-product distance (negated dot product).
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "Cosine"
	case MetricSquaredL2:
		return "SquaredL2"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricSquaredL2:
		return SquaredL2, nil
	case MetricDot:
		return NegativeDot, nil
	default:
		return nil, fmt.Errorf("unsupported distance metric: %v", m)
	}
}
