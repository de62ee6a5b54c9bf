package hnsw

import (
	"errors"
	"fmt"
)

// ErrDuplicateID is returned by Insert when the id is already present.
var ErrDuplicateID = errors.New("hnsw: duplicate id")

// ErrDimensionMismatch is returned when a vector does not match the
// configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("hnsw: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension is returned when the index is configured with a
// non-positive dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("hnsw: invalid dimension: %d", e.Dimension)
}
