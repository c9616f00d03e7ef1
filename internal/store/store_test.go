package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soldag/soldag/internal/kvstore"
	"github.com/soldag/soldag/internal/ledger"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	kv, err := kvstore.NewBadgerStore(t.TempDir(), "soldag", kvstore.JSON)
	require.NoError(t, err)
	s := New(kv)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func blockAt(slot uint64, sigs ...string) *ledger.Block {
	blockTime := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	b := &ledger.Block{
		Slot:      slot,
		Blockhash: fmt.Sprintf("hash-%d", slot),
		BlockTime: &blockTime,
	}
	for _, sig := range sigs {
		b.Transactions = append(b.Transactions, ledger.Transaction{
			Signature: sig,
			Slot:      slot,
			BlockTime: &blockTime,
			Fee:       5000,
			Message:   ledger.Message{RecentBlockhash: "prev"},
		})
	}
	return b
}

func TestUpsertBlock_Idempotent(t *testing.T) {
	s := newTestStore(t)
	b := blockAt(100, "sig-1", "sig-2")

	require.NoError(t, s.UpsertBlock(b))
	require.NoError(t, s.UpsertBlock(b))

	got, found, err := s.GetBlock(100)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hash-100", got.Blockhash)
	assert.Len(t, got.Transactions, 2)

	txs, more, err := s.ListTransactions(0, 10)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Len(t, txs, 2, "double upsert must not duplicate")
}

func TestHighestStoredSlot(t *testing.T) {
	s := newTestStore(t)

	highest, err := s.HighestStoredSlot()
	require.NoError(t, err)
	assert.Zero(t, highest)

	require.NoError(t, s.SetBaseline(4))
	require.NoError(t, s.UpsertBlock(blockAt(5, "a")))

	highest, err = s.HighestStoredSlot()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), highest)

	// 7 settles out of order; the hole at 6 pins the watermark.
	require.NoError(t, s.MarkSlotSkipped(7))
	highest, err = s.HighestStoredSlot()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), highest)

	maxSettled, found, err := s.MaxSettledSlot()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(7), maxSettled)

	// closing the hole advances past the out-of-order marker too
	require.NoError(t, s.UpsertBlock(blockAt(6, "b")))
	highest, err = s.HighestStoredSlot()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), highest, "skipped slots count as settled")
}

func TestHighestStoredSlot_BaselineFloor(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetBaseline(250_000_000))

	highest, err := s.HighestStoredSlot()
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_000), highest)

	require.NoError(t, s.UpsertBlock(blockAt(250_000_001, "a")))
	highest, err = s.HighestStoredSlot()
	require.NoError(t, err)
	assert.Equal(t, uint64(250_000_001), highest)
}

func TestIsSlotSettled(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertBlock(blockAt(10, "a")))
	require.NoError(t, s.MarkSlotSkipped(11))

	for slot, want := range map[uint64]bool{10: true, 11: true, 12: false} {
		settled, err := s.IsSlotSettled(slot)
		require.NoError(t, err)
		assert.Equal(t, want, settled, "slot %d", slot)
	}
}

func TestGetTransaction(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertBlock(blockAt(10, "sig-x")))

	tx, found, err := s.GetTransaction("sig-x")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(10), tx.Slot)

	_, found, err = s.GetTransaction("unknown")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListTransactions_Pagination(t *testing.T) {
	s := newTestStore(t)
	for slot := uint64(1); slot <= 5; slot++ {
		require.NoError(t, s.UpsertBlock(blockAt(slot, fmt.Sprintf("sig-%d", slot))))
	}

	page, more, err := s.ListTransactions(0, 2)
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, page, 2)
	assert.Equal(t, "sig-1", page[0].Signature)
	assert.Equal(t, "sig-2", page[1].Signature)

	page, more, err = s.ListTransactions(4, 2)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, page, 1)
	assert.Equal(t, "sig-5", page[0].Signature)

	page, more, err = s.ListTransactions(99, 2)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Empty(t, page)

	_, _, err = s.ListTransactions(-1, 2)
	assert.Error(t, err)
	_, _, err = s.ListTransactions(0, 0)
	assert.Error(t, err)
}

func TestListTransactionsByDay(t *testing.T) {
	s := newTestStore(t)

	day1 := time.Date(2026, 8, 29, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 30, 0, 1, 0, 0, time.UTC)

	b1 := blockAt(1, "sig-old")
	b1.BlockTime = &day1
	b1.Transactions[0].BlockTime = &day1
	b2 := blockAt(2, "sig-new")
	b2.BlockTime = &day2
	b2.Transactions[0].BlockTime = &day2

	require.NoError(t, s.UpsertBlock(b1))
	require.NoError(t, s.UpsertBlock(b2))

	txs, more, err := s.ListTransactionsByDay(day2, 0, 10)
	require.NoError(t, err)
	assert.False(t, more)
	require.Len(t, txs, 1)
	assert.Equal(t, "sig-new", txs[0].Signature)

	txs, _, err = s.ListTransactionsByDay(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestBaseline_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.Baseline()
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetBaseline(42))
	baseline, found, err := s.Baseline()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(42), baseline)
}
