package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotCursorSeedsBothFields(t *testing.T) {
	c := NewSlotCursor(42)
	assert.Equal(t, uint64(42), c.HighestFetchAttempted())
	assert.Equal(t, uint64(42), c.HighestStoredContiguous())
}

func TestAdvanceFetchAttemptedIsMonotonic(t *testing.T) {
	c := NewSlotCursor(10)

	c.AdvanceFetchAttempted(15)
	assert.Equal(t, uint64(15), c.HighestFetchAttempted())

	c.AdvanceFetchAttempted(12)
	assert.Equal(t, uint64(15), c.HighestFetchAttempted())
}

func TestMarkSettledOnlyAdvancesContiguously(t *testing.T) {
	c := NewSlotCursor(10)

	assert.False(t, c.MarkSettled(13), "gap must not advance the watermark")
	assert.Equal(t, uint64(10), c.HighestStoredContiguous())

	assert.True(t, c.MarkSettled(11))
	assert.Equal(t, uint64(11), c.HighestStoredContiguous())

	assert.False(t, c.MarkSettled(11), "re-settling the same slot is a no-op")
	assert.Equal(t, uint64(11), c.HighestStoredContiguous())

	assert.True(t, c.MarkSettled(12))
	assert.True(t, c.MarkSettled(13))
	assert.Equal(t, uint64(13), c.HighestStoredContiguous())
}
