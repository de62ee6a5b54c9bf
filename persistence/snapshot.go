package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/hupe1980/memvec/codec"
	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/model"
)

// Config is the store configuration captured in a snapshot. A snapshot can
// only be imported into a store with the same dimension; the remaining fields
// document how the exported index was built.
type Config struct {
	Dimension      int             `json:"dimension"`
	CapacityHint   int             `json:"capacity_hint"`
	M              int             `json:"m"`
	EFConstruction int             `json:"ef_construction"`
	EFSearch       int             `json:"ef_search"`
	DistanceType   distance.Metric `json:"distance_type"`
}

// Snapshot is the complete exported state of a store. Tombstoned vectors are
// excluded at export time; the graph itself is not captured because import
// rebuilds it by replaying inserts.
type Snapshot struct {
	Config           Config                  `json:"config"`
	NextID           uint64                  `json:"next_id"`
	Vectors          []model.VectorRecord    `json:"vectors"`
	Reasoning        []model.ReasoningRecord `json:"reasoning,omitempty"`
	ReasoningCounter uint64                  `json:"reasoning_counter"`
	CreatedAt        time.Time               `json:"created_at"`
}

// Validate checks internal consistency: positive dimension, per-vector
// dimension, unique ids below NextID, non-empty reasoning ids.
func (s *Snapshot) Validate() error {
	if s.Config.Dimension <= 0 {
		return fmt.Errorf("snapshot: invalid dimension %d", s.Config.Dimension)
	}

	seen := make(map[uint64]struct{}, len(s.Vectors))
	for _, rec := range s.Vectors {
		if len(rec.Vector) != s.Config.Dimension {
			return fmt.Errorf("snapshot: vector %d has dimension %d, want %d", rec.ID, len(rec.Vector), s.Config.Dimension)
		}
		if _, dup := seen[rec.ID]; dup {
			return fmt.Errorf("snapshot: duplicate vector id %d", rec.ID)
		}
		seen[rec.ID] = struct{}{}
		if rec.ID >= s.NextID {
			return fmt.Errorf("snapshot: vector id %d not below next id %d", rec.ID, s.NextID)
		}
	}

	reasoningIDs := make(map[string]struct{}, len(s.Reasoning))
	for _, rec := range s.Reasoning {
		if rec.ID == "" {
			return fmt.Errorf("snapshot: reasoning record with empty id")
		}
		if _, dup := reasoningIDs[rec.ID]; dup {
			return fmt.Errorf("snapshot: duplicate reasoning id %q", rec.ID)
		}
		reasoningIDs[rec.ID] = struct{}{}
	}

	return nil
}

// Encode writes the snapshot to w in the container format. A nil codec or
// compressor selects the package default.
func Encode(w io.Writer, snap *Snapshot, c codec.Codec, comp Compressor) error {
	if c == nil {
		c = codec.Default
	}
	if comp == nil {
		comp = DefaultCompressor
	}

	body, err := c.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot body: %w", err)
	}

	body, err = comp.Compress(body)
	if err != nil {
		return fmt.Errorf("compress snapshot body: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, MagicNumber); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, Version); err != nil {
		return err
	}
	if err := writeString(w, c.Name()); err != nil {
		return err
	}
	if err := writeString(w, comp.Name()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(body))); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}

	return binary.Write(w, binary.LittleEndian, Checksum(body))
}

// Decode reads a snapshot from r, validating magic, version, checksum and
// header names. The decoded snapshot is syntactically checked via Validate.
func Decode(r io.Reader) (*Snapshot, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, magic)
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, version)
	}

	codecName, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("read codec name: %w", err)
	}

	compName, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("read compression name: %w", err)
	}

	var bodyLen uint64
	if err := binary.Read(r, binary.LittleEndian, &bodyLen); err != nil {
		return nil, fmt.Errorf("read body length: %w", err)
	}
	if bodyLen > maxBodyLen {
		return nil, fmt.Errorf("snapshot body too large: %d bytes", bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var checksum uint32
	if err := binary.Read(r, binary.LittleEndian, &checksum); err != nil {
		return nil, fmt.Errorf("read checksum: %w", err)
	}
	if got := Checksum(body); got != checksum {
		return nil, fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrChecksumMismatch, got, checksum)
	}

	comp, ok := CompressorByName(compName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, compName)
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codecName)
	}

	body, err = comp.Decompress(body)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot body: %w", err)
	}

	var snap Snapshot
	if err := c.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot body: %w", err)
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}

	return &snap, nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	return string(buf), nil
}
