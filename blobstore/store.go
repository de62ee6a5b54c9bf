// Package blobstore abstracts where snapshot blobs live: memory, local
// filesystem, or object storage.
//
// Stores deal in whole blobs; there is no append or partial write. Put must
// be atomic per name: readers see either the previous blob or the new one,
// never a torn write.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a named blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.Closer

	// Size returns the blob length in bytes.
	Size() int64

	// ReadAt reads len(p) bytes at offset off. Short reads at the end of
	// the blob return io.EOF alongside the byte count, like io.ReaderAt.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
}

// Store stores named blobs.
type Store interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ReadAll reads the complete content of a blob.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	data := make([]byte, b.Size())
	if len(data) == 0 {
		return data, nil
	}

	n, err := b.ReadAt(ctx, data, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n != len(data) {
		return nil, io.ErrUnexpectedEOF
	}

	return data, nil
}
