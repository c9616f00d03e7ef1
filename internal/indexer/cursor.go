package indexer

import "sync"

// SlotCursor tracks pipeline progress. Single-writer-per-field: the fetcher
// advances highestFetchAttempted, the processor advances
// highestStoredContiguous; catchup only reads.
type SlotCursor struct {
	mu                      sync.RWMutex
	highestFetchAttempted   uint64
	highestStoredContiguous uint64
}

// NewSlotCursor seeds both fields from the store's highest settled slot, the
// sole source of truth across restarts.
func NewSlotCursor(highestStored uint64) *SlotCursor {
	return &SlotCursor{
		highestFetchAttempted:   highestStored,
		highestStoredContiguous: highestStored,
	}
}

// AdvanceFetchAttempted records that the fetcher announced slot. Monotonic.
func (c *SlotCursor) AdvanceFetchAttempted(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot > c.highestFetchAttempted {
		c.highestFetchAttempted = slot
	}
}

func (c *SlotCursor) HighestFetchAttempted() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.highestFetchAttempted
}

// MarkSettled advances the contiguous watermark when slot is the direct
// successor; otherwise the gap stays visible to catchup. Returns whether the
// watermark moved.
func (c *SlotCursor) MarkSettled(slot uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot == c.highestStoredContiguous+1 {
		c.highestStoredContiguous = slot
		return true
	}
	return false
}

func (c *SlotCursor) HighestStoredContiguous() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.highestStoredContiguous
}
