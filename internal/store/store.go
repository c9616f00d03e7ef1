// Package store persists normalized ledger data in a key-value store.
//
// Key layout (all under the kvstore prefix):
//
//	slots/<slot>            per-slot marker: stored | skipped
//	blocks/<slot>           full block, transactions embedded
//	txs/<signature>         one transaction
//	txindex/<slot>/<idx>    slot-ordered signature index
//	days/<date>/<slot>/<idx> day-bucketed signature index
//	meta/baseline           first-start slot floor
//
// Slot numbers are zero-padded so lexicographic key order equals slot order,
// which makes "highest stored slot" a reverse seek and pagination a prefix walk.
package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/soldag/soldag/internal/kvstore"
	"github.com/soldag/soldag/internal/ledger"
)

const (
	slotMarkerStored  = "stored"
	slotMarkerSkipped = "skipped"

	dayLayout = "2006-01-02"
)

// Store is the persistence surface consumed by the indexer pipeline and the
// API layer. All writes are idempotent by key.
type Store interface {
	// UpsertBlock stores a block and indexes its transactions. Safe to call
	// twice with the same slot.
	UpsertBlock(b *ledger.Block) error
	// MarkSlotSkipped records a slot the ledger produced no block for, so gap
	// reconciliation stops re-requesting it.
	MarkSlotSkipped(slot uint64) error
	// HighestStoredSlot is the highest slot up to which every slot is settled
	// (stored or skipped), never below the recorded baseline. Zero when empty.
	// Slots settled out of order above a hole do not advance it, so gap
	// reconciliation always re-detects the hole.
	HighestStoredSlot() (uint64, error)
	// MaxSettledSlot is the highest slot with any marker, holes below it or
	// not. Diagnostic only.
	MaxSettledSlot() (uint64, bool, error)
	// IsSlotSettled reports whether a slot has a marker, stored or skipped.
	IsSlotSettled(slot uint64) (bool, error)

	GetBlock(slot uint64) (*ledger.Block, bool, error)
	GetTransaction(signature string) (*ledger.Transaction, bool, error)
	// ListTransactions returns count transactions starting at offset in slot
	// order, and whether more rows follow.
	ListTransactions(offset, count int) ([]ledger.Transaction, bool, error)
	// ListTransactionsByDay restricts the walk to one UTC calendar day.
	ListTransactionsByDay(day time.Time, offset, count int) ([]ledger.Transaction, bool, error)

	// SetBaseline records the first-start slot floor; it is written once.
	SetBaseline(slot uint64) error
	Baseline() (uint64, bool, error)

	Close() error
}

type ledgerStore struct {
	kv kvstore.KVStore
}

func New(kv kvstore.KVStore) Store {
	return &ledgerStore{kv: kv}
}

func slotKey(slot uint64) string {
	return fmt.Sprintf("slots/%020d", slot)
}

func blockKey(slot uint64) string {
	return fmt.Sprintf("blocks/%020d", slot)
}

func txKey(signature string) string {
	return "txs/" + signature
}

func txIndexKey(slot uint64, idx int) string {
	return fmt.Sprintf("txindex/%020d/%06d", slot, idx)
}

func dayIndexKey(day time.Time, slot uint64, idx int) string {
	return fmt.Sprintf("days/%s/%020d/%06d", day.UTC().Format(dayLayout), slot, idx)
}

const (
	baselineKey   = "meta/baseline"
	contiguousKey = "meta/contiguous"
)

func (s *ledgerStore) UpsertBlock(b *ledger.Block) error {
	if b == nil {
		return fmt.Errorf("nil block")
	}

	if err := s.kv.SetAny(blockKey(b.Slot), b); err != nil {
		return fmt.Errorf("store block %d: %w", b.Slot, err)
	}

	for i, tx := range b.Transactions {
		if err := s.kv.SetAny(txKey(tx.Signature), tx); err != nil {
			return fmt.Errorf("store transaction %s: %w", tx.Signature, err)
		}
		if err := s.kv.Set(txIndexKey(b.Slot, i), tx.Signature); err != nil {
			return fmt.Errorf("index transaction %s: %w", tx.Signature, err)
		}
		if tx.BlockTime != nil {
			if err := s.kv.Set(dayIndexKey(*tx.BlockTime, b.Slot, i), tx.Signature); err != nil {
				return fmt.Errorf("day-index transaction %s: %w", tx.Signature, err)
			}
		}
	}

	// Marker last: a slot only counts as settled once its data is readable.
	return s.settleSlot(b.Slot, slotMarkerStored)
}

func (s *ledgerStore) MarkSlotSkipped(slot uint64) error {
	return s.settleSlot(slot, slotMarkerSkipped)
}

func (s *ledgerStore) settleSlot(slot uint64, marker string) error {
	if err := s.kv.Set(slotKey(slot), marker); err != nil {
		return fmt.Errorf("mark slot %d %s: %w", slot, marker, err)
	}
	return s.advanceContiguous(slot)
}

// advanceContiguous moves the watermark when slot closes the gap directly
// above it, then walks forward over markers settled out of order. Single
// writer: only the processing pipeline settles slots.
func (s *ledgerStore) advanceContiguous(slot uint64) error {
	w, err := s.contiguousWatermark()
	if err != nil {
		return err
	}
	if slot != w+1 {
		return nil
	}
	w = slot
	for {
		_, err := s.kv.Get(slotKey(w + 1))
		if err == kvstore.ErrKeyNotFound {
			break
		}
		if err != nil {
			return err
		}
		w++
	}
	return s.kv.Set(contiguousKey, strconv.FormatUint(w, 10))
}

// contiguousWatermark falls back to the baseline so a fresh store starts at
// the recorded floor rather than genesis.
func (s *ledgerStore) contiguousWatermark() (uint64, error) {
	v, err := s.kv.Get(contiguousKey)
	if err == kvstore.ErrKeyNotFound {
		baseline, _, err := s.Baseline()
		return baseline, err
	}
	if err != nil {
		return 0, err
	}
	w, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt contiguous watermark %q: %w", v, err)
	}
	return w, nil
}

func (s *ledgerStore) HighestStoredSlot() (uint64, error) {
	w, err := s.contiguousWatermark()
	if err != nil {
		return 0, err
	}
	baseline, ok, err := s.Baseline()
	if err != nil {
		return 0, err
	}
	if ok && baseline > w {
		w = baseline
	}
	return w, nil
}

func (s *ledgerStore) MaxSettledSlot() (uint64, bool, error) {
	kv, found, err := s.kv.LastUnderPrefix("slots/")
	if err != nil || !found {
		return 0, false, err
	}
	slot, err := slotFromKey(kv.Key)
	if err != nil {
		return 0, false, err
	}
	return slot, true, nil
}

func (s *ledgerStore) IsSlotSettled(slot uint64) (bool, error) {
	_, err := s.kv.Get(slotKey(slot))
	if err != nil {
		if err == kvstore.ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ledgerStore) GetBlock(slot uint64) (*ledger.Block, bool, error) {
	var b ledger.Block
	found, err := s.kv.GetAny(blockKey(slot), &b)
	if err != nil || !found {
		return nil, false, err
	}
	return &b, true, nil
}

func (s *ledgerStore) GetTransaction(signature string) (*ledger.Transaction, bool, error) {
	var tx ledger.Transaction
	found, err := s.kv.GetAny(txKey(signature), &tx)
	if err != nil || !found {
		return nil, false, err
	}
	return &tx, true, nil
}

func (s *ledgerStore) ListTransactions(offset, count int) ([]ledger.Transaction, bool, error) {
	return s.listBySignatureIndex("txindex/", offset, count)
}

func (s *ledgerStore) ListTransactionsByDay(day time.Time, offset, count int) ([]ledger.Transaction, bool, error) {
	prefix := "days/" + day.UTC().Format(dayLayout) + "/"
	return s.listBySignatureIndex(prefix, offset, count)
}

func (s *ledgerStore) listBySignatureIndex(prefix string, offset, count int) ([]ledger.Transaction, bool, error) {
	if offset < 0 || count <= 0 {
		return nil, false, fmt.Errorf("invalid pagination offset=%d count=%d", offset, count)
	}

	kvs, err := s.kv.List(prefix)
	if err != nil {
		return nil, false, err
	}
	if offset >= len(kvs) {
		return []ledger.Transaction{}, false, nil
	}

	end := min(offset+count, len(kvs))
	out := make([]ledger.Transaction, 0, end-offset)
	for _, kv := range kvs[offset:end] {
		tx, found, err := s.GetTransaction(string(kv.Value))
		if err != nil {
			return nil, false, err
		}
		if !found {
			return nil, false, fmt.Errorf("dangling index entry %s", kv.Key)
		}
		out = append(out, *tx)
	}
	return out, end < len(kvs), nil
}

func (s *ledgerStore) SetBaseline(slot uint64) error {
	return s.kv.Set(baselineKey, strconv.FormatUint(slot, 10))
}

func (s *ledgerStore) Baseline() (uint64, bool, error) {
	v, err := s.kv.Get(baselineKey)
	if err != nil {
		if err == kvstore.ErrKeyNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	slot, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt baseline %q: %w", v, err)
	}
	return slot, true, nil
}

func (s *ledgerStore) Close() error {
	return s.kv.Close()
}

func slotFromKey(key string) (uint64, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 2 {
		return 0, fmt.Errorf("unexpected slot key %q", key)
	}
	return strconv.ParseUint(parts[len(parts)-1], 10, 64)
}
