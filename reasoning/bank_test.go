package reasoning

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memvec/metadata"
	"github.com/hupe1980/memvec/model"
)

func TestBank_AddGet(t *testing.T) {
	b := New()

	rec := b.Add("user asked about refunds", "policy allows refunds within 30 days", metadata.Metadata{"topic": "billing"})
	require.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, ok := b.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, "user asked about refunds", got.Context)
	assert.Equal(t, "billing", got.Metadata["topic"])

	_, ok = b.Get("missing")
	assert.False(t, ok)
}

func TestBank_IDFormat(t *testing.T) {
	b := New()

	pattern := regexp.MustCompile(`^r\d+-[0-9a-f-]+$`)
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		rec := b.Add("ctx", "why", nil)
		assert.Regexp(t, pattern, rec.ID)
		assert.False(t, seen[rec.ID], "ids must be unique")
		seen[rec.ID] = true
	}

	// Counter component is monotonic.
	first := b.Records()[0].ID
	last := b.Records()[9].ID
	assert.Regexp(t, `^r0-`, first)
	assert.Regexp(t, `^r9-`, last)
}

func TestBank_Search(t *testing.T) {
	b := New()
	b.Add("Database migration failed", "Retry with smaller batches", nil)
	b.Add("User prefers dark mode", "Persist theme in settings", nil)
	b.Add("API rate limit hit", "Back off exponentially", nil)

	t.Run("matches context case-insensitively", func(t *testing.T) {
		hits := b.Search("DATABASE")
		require.Len(t, hits, 1)
		assert.Contains(t, hits[0].Context, "migration")
	})

	t.Run("matches reasoning text", func(t *testing.T) {
		hits := b.Search("back off")
		require.Len(t, hits, 1)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, b.Search("kubernetes"))
	})

	t.Run("insertion order", func(t *testing.T) {
		hits := b.Search("e")
		require.Len(t, hits, 3)
		assert.Contains(t, hits[0].Context, "Database")
		assert.Contains(t, hits[2].Context, "rate limit")
	})
}

func TestBank_Clear(t *testing.T) {
	b := New()
	b.Add("ctx", "why", nil)
	require.Equal(t, 1, b.Len())

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, uint64(0), b.Counter())

	rec := b.Add("ctx", "why", nil)
	assert.Regexp(t, `^r0-`, rec.ID, "counter restarts after clear")
}

func TestBank_Restore(t *testing.T) {
	recs := []model.ReasoningRecord{
		{ID: "r0-aaaa", Context: "a", Reasoning: "x"},
		{ID: "r1-bbbb", Context: "b", Reasoning: "y"},
	}

	b := New()
	require.NoError(t, b.Restore(recs, 2))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, uint64(2), b.Counter())

	next := b.Add("c", "z", nil)
	assert.Regexp(t, `^r2-`, next.ID, "counter continues past restored value")

	t.Run("duplicate id", func(t *testing.T) {
		err := New().Restore([]model.ReasoningRecord{
			{ID: "r0-aaaa"}, {ID: "r0-aaaa"},
		}, 1)
		assert.Error(t, err)
	})

	t.Run("empty id", func(t *testing.T) {
		err := New().Restore([]model.ReasoningRecord{{ID: ""}}, 0)
		assert.Error(t, err)
	})
}

func TestBank_RecordsOrder(t *testing.T) {
	b := New()
	for i := 0; i < 5; i++ {
		b.Add(fmt.Sprintf("ctx-%d", i), "why", nil)
	}

	recs := b.Records()
	require.Len(t, recs, 5)
	for i, rec := range recs {
		assert.Equal(t, fmt.Sprintf("ctx-%d", i), rec.Context)
	}
}
