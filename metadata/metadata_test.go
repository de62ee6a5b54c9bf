package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClone(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		var m Metadata
		assert.Nil(t, m.Clone())
	})

	t.Run("independent copy", func(t *testing.T) {
		m := Metadata{"a": 1}
		c := m.Clone()
		c["a"] = 2

		assert.Equal(t, 1, m["a"])
	})
}

func TestMerge(t *testing.T) {
	base := Metadata{"keep": "x", "replace": "old"}

	merged := base.Merge(Metadata{"replace": "new", "added": 42})

	assert.Equal(t, "x", merged["keep"], "absent keys preserved")
	assert.Equal(t, "new", merged["replace"], "patch keys overwrite")
	assert.Equal(t, 42, merged["added"])

	assert.Equal(t, "old", base["replace"], "inputs are not mutated")
}

func TestMerge_EmptyPatch(t *testing.T) {
	base := Metadata{"a": 1}

	merged := base.Merge(nil)
	merged["a"] = 2

	assert.Equal(t, 1, base["a"], "empty patch still returns a copy")
}
