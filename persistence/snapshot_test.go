package persistence

import (
	"bytes"
	"encoding/binary"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memvec/codec"
	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/model"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Config: Config{
			Dimension:      4,
			CapacityHint:   100,
			M:              16,
			EFConstruction: 200,
			EFSearch:       50,
			DistanceType:   distance.MetricCosine,
		},
		NextID: 2,
		Vectors: []model.VectorRecord{
			{ID: 0, Vector: []float32{1, 0, 0, 0}, CreatedAt: time.Now().UTC()},
			{ID: 1, Vector: []float32{0, 1, 0, 0}, CreatedAt: time.Now().UTC()},
		},
		Reasoning: []model.ReasoningRecord{
			{ID: "r0-abcd", Context: "ctx", Reasoning: "why", CreatedAt: time.Now().UTC()},
		},
		ReasoningCounter: 1,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestSnapshot_EncodeDecode(t *testing.T) {
	for _, comp := range []Compressor{None{}, Zstd{}, LZ4{}} {
		t.Run(comp.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, testSnapshot(), codec.JSON{}, comp))

			got, err := Decode(&buf)
			require.NoError(t, err)

			assert.Equal(t, 4, got.Config.Dimension)
			assert.Equal(t, uint64(2), got.NextID)
			require.Len(t, got.Vectors, 2)
			assert.Equal(t, []float32{1, 0, 0, 0}, got.Vectors[0].Vector)
			require.Len(t, got.Reasoning, 1)
			assert.Equal(t, "r0-abcd", got.Reasoning[0].ID)
			assert.Equal(t, uint64(1), got.ReasoningCounter)
		})
	}
}

func TestSnapshot_DecodeErrors(t *testing.T) {
	encode := func(t *testing.T) []byte {
		t.Helper()
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, testSnapshot(), nil, None{}))
		return buf.Bytes()
	}

	t.Run("bad magic", func(t *testing.T) {
		data := encode(t)
		data[0] ^= 0xFF

		_, err := Decode(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("bad version", func(t *testing.T) {
		data := encode(t)
		binary.LittleEndian.PutUint32(data[4:], 999)

		_, err := Decode(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("corrupt body", func(t *testing.T) {
		data := encode(t)
		data[len(data)-10] ^= 0xFF

		_, err := Decode(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("truncated", func(t *testing.T) {
		data := encode(t)

		_, err := Decode(bytes.NewReader(data[:len(data)/2]))
		assert.Error(t, err)
	})

	t.Run("unknown codec", func(t *testing.T) {
		// Rewrite the codec name field ("json" -> "ruby").
		data := encode(t)
		copy(data[10:14], "ruby")

		_, err := Decode(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrUnknownCodec)
	})
}

func TestSnapshot_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, testSnapshot().Validate())
	})

	t.Run("bad dimension", func(t *testing.T) {
		s := testSnapshot()
		s.Config.Dimension = 0
		assert.Error(t, s.Validate())
	})

	t.Run("vector dimension mismatch", func(t *testing.T) {
		s := testSnapshot()
		s.Vectors[0].Vector = []float32{1, 2}
		assert.Error(t, s.Validate())
	})

	t.Run("duplicate vector id", func(t *testing.T) {
		s := testSnapshot()
		s.Vectors[1].ID = s.Vectors[0].ID
		assert.Error(t, s.Validate())
	})

	t.Run("id beyond next id", func(t *testing.T) {
		s := testSnapshot()
		s.NextID = 1
		assert.Error(t, s.Validate())
	})

	t.Run("duplicate reasoning id", func(t *testing.T) {
		s := testSnapshot()
		s.Reasoning = append(s.Reasoning, s.Reasoning[0])
		assert.Error(t, s.Validate())
	})
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.memvec")

	require.NoError(t, SaveToFile(path, func(w io.Writer) error {
		return Encode(w, testSnapshot(), nil, nil)
	}))

	var got *Snapshot
	require.NoError(t, LoadFromFile(path, func(r io.Reader) error {
		var err error
		got, err = Decode(r)
		return err
	}))

	assert.Equal(t, uint64(2), got.NextID)
}

func TestCompressorByName(t *testing.T) {
	for _, name := range []string{"none", "zstd", "lz4"} {
		c, ok := CompressorByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}

	_, ok := CompressorByName("brotli")
	assert.False(t, ok)
}

func TestCompressors_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("memvec snapshot body "), 100)

	for _, comp := range []Compressor{None{}, Zstd{}, LZ4{}} {
		t.Run(comp.Name(), func(t *testing.T) {
			compressed, err := comp.Compress(payload)
			require.NoError(t, err)

			restored, err := comp.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, restored)
		})
	}
}
