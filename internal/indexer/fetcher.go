package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/soldag/soldag/internal/rpc/solana"
	"github.com/soldag/soldag/pkg/logger"
)

// Fetcher observes the ledger head on a fixed cadence and announces newly
// produced slots to the processor. A failed poll is skipped, not retried; the
// next tick is the retry.
type Fetcher struct {
	client   solana.API
	cursor   *SlotCursor
	inflight *InFlightSet
	requests chan<- FetchRequest
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	lastHead uint64
}

func NewFetcher(
	client solana.API,
	cursor *SlotCursor,
	inflight *InFlightSet,
	requests chan<- FetchRequest,
	interval, timeout time.Duration,
) *Fetcher {
	return &Fetcher{
		client:   client,
		cursor:   cursor,
		inflight: inflight,
		requests: requests,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With(slog.String("worker", "fetcher")),
	}
}

func (f *Fetcher) Run(ctx context.Context) error {
	f.logger.Info("Starting fetcher", "interval", f.interval)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Fetcher stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := f.pollOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// pollOnce reads the chain head and enqueues every slot above the last
// observed head, in increasing order. Only context cancellation is an error;
// RPC failures skip the tick.
func (f *Fetcher) pollOnce(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	head, err := f.client.GetSlot(callCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("Head poll failed, skipping tick", "err", err)
		return nil
	}

	if head <= f.lastHead {
		return nil
	}

	// First observation: announce only the head. Everything before it is
	// either pre-baseline history or catchup's job.
	start := head
	if f.lastHead > 0 {
		start = f.lastHead + 1
	}

	for slot := start; slot <= head; slot++ {
		f.cursor.AdvanceFetchAttempted(slot)
		if !f.inflight.TryAdd(slot) {
			continue
		}
		select {
		case f.requests <- FetchRequest{Slot: slot, Source: SourceFetcher}:
		case <-ctx.Done():
			f.inflight.Remove(slot)
			return ctx.Err()
		}
	}

	f.logger.Debug("Observed new head", "head", head, "announced", head-start+1)
	f.lastHead = head
	return nil
}
