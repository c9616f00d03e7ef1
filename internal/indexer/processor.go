package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soldag/soldag/internal/ledger"
	"github.com/soldag/soldag/internal/rpc/solana"
	"github.com/soldag/soldag/internal/store"
	"github.com/soldag/soldag/pkg/events"
	"github.com/soldag/soldag/pkg/logger"
	"github.com/soldag/soldag/pkg/retry"
)

// The processor absorbs per-slot failures; only storage being unreachable
// this many times in a row fails the unit.
const maxConsecutiveStorageFailures = 3

const (
	upsertRetryAttempts = 3
	upsertRetryInterval = 500 * time.Millisecond
)

// Processor is the single consumer turning fetch requests into stored blocks.
// Exactly one Run loop may be active: it is the only writer to the store and
// to the contiguous cursor field.
type Processor struct {
	client   solana.API
	store    store.Store
	cursor   *SlotCursor
	inflight *InFlightSet
	emitter  events.Emitter
	requests <-chan FetchRequest
	timeout  time.Duration
	logger   *slog.Logger

	storageFailures int
}

func NewProcessor(
	client solana.API,
	st store.Store,
	cursor *SlotCursor,
	inflight *InFlightSet,
	emitter events.Emitter,
	requests <-chan FetchRequest,
	timeout time.Duration,
) *Processor {
	return &Processor{
		client:   client,
		store:    st,
		cursor:   cursor,
		inflight: inflight,
		emitter:  emitter,
		requests: requests,
		timeout:  timeout,
		logger:   logger.With(slog.String("worker", "processor")),
	}
}

func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("Starting processor")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Processor stopping")
			return ctx.Err()
		case req, ok := <-p.requests:
			if !ok {
				return errors.New("request channel closed unexpectedly")
			}
			if err := p.process(ctx, req); err != nil {
				return err
			}
		}
	}
}

// process handles one request. Transient and per-slot failures are absorbed;
// a non-nil return means the unit's invariants are broken.
func (p *Processor) process(ctx context.Context, req FetchRequest) error {
	defer p.inflight.Remove(req.Slot)

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	raw, err := p.client.GetBlock(callCtx, req.Slot)
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, solana.ErrSlotSkipped):
		return p.settleSkipped(req)
	case solana.IsMalformed(err):
		p.logger.Error("Dropping slot with malformed block", "slot", req.Slot, "source", req.Source, "err", err)
		_ = p.emitter.EmitError("indexer", err)
		return nil
	default:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Transient: catchup re-detects the slot as missing later.
		p.logger.Warn("Block fetch failed", "slot", req.Slot, "source", req.Source, "err", err)
		return nil
	}

	block, err := ledger.FromRPCBlock(req.Slot, raw)
	if err != nil {
		p.logger.Error("Dropping slot that failed normalization", "slot", req.Slot, "err", err)
		_ = p.emitter.EmitError("indexer", err)
		return nil
	}

	if err := p.upsert(block); err != nil {
		p.storageFailures++
		p.logger.Error("Storage upsert failed",
			"slot", req.Slot,
			"consecutive_failures", p.storageFailures,
			"err", err,
		)
		_ = p.emitter.EmitError("indexer", err)
		if p.storageFailures >= maxConsecutiveStorageFailures {
			return fmt.Errorf("storage unavailable after %d consecutive failures: %w", p.storageFailures, err)
		}
		return nil
	}
	p.storageFailures = 0

	p.cursor.MarkSettled(req.Slot)
	for i := range block.Transactions {
		_ = p.emitter.EmitTransaction(&block.Transactions[i])
	}

	p.logger.Info("Stored block",
		"slot", req.Slot,
		"txs", len(block.Transactions),
		"source", req.Source,
		"contiguous", p.cursor.HighestStoredContiguous(),
	)
	return nil
}

func (p *Processor) settleSkipped(req FetchRequest) error {
	if err := p.store.MarkSlotSkipped(req.Slot); err != nil {
		p.storageFailures++
		if p.storageFailures >= maxConsecutiveStorageFailures {
			return fmt.Errorf("storage unavailable: %w", err)
		}
		p.logger.Error("Failed to record skipped slot", "slot", req.Slot, "err", err)
		return nil
	}
	p.storageFailures = 0
	p.cursor.MarkSettled(req.Slot)
	p.logger.Debug("Slot skipped by ledger", "slot", req.Slot, "source", req.Source)
	return nil
}

func (p *Processor) upsert(block *ledger.Block) error {
	return retry.Constant(func() error {
		return p.store.UpsertBlock(block)
	}, upsertRetryInterval, upsertRetryAttempts)
}
