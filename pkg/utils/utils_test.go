package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncateToBucket(t *testing.T) {
	ts := time.Date(2025, 3, 1, 15, 42, 17, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC), TruncateToBucket(ts, time.Hour))
	assert.Equal(t, time.Date(2025, 3, 1, 15, 42, 0, 0, time.UTC), TruncateToBucket(ts, time.Minute))

	// Non-UTC input is normalized before truncation.
	cet := time.FixedZone("CET", 3600)
	local := time.Date(2025, 3, 1, 16, 42, 17, 0, cet)
	assert.Equal(t, time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC), TruncateToBucket(local, time.Hour))
}

func TestShouldContinue(t *testing.T) {
	assert.True(t, ShouldContinue(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, ShouldContinue(ctx))
}

func TestContainsString(t *testing.T) {
	assert.True(t, ContainsString([]string{"a", "b"}, "b"))
	assert.False(t, ContainsString([]string{"a", "b"}, "c"))
	assert.False(t, ContainsString(nil, "a"))
}

func TestChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)

	assert.Empty(t, Chunk([]int{}, 2))
	assert.Equal(t, [][]int{{1, 2, 3}}, Chunk([]int{1, 2, 3}, 10))
}

func TestCleanToValidUTF8(t *testing.T) {
	assert.Equal(t, "hello", CleanToValidUTF8("hello"))
	assert.NotContains(t, CleanToValidUTF8("he\xffllo"), "\xff")
}
