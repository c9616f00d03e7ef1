package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/soldag/soldag/internal/rpc/solana"
	"github.com/soldag/soldag/internal/store"
	"github.com/soldag/soldag/pkg/logger"
)

// CatchUp periodically reconciles the store against the chain head and
// re-enqueues missing slots, bounded per cycle so a large gap never starves
// live indexing.
type CatchUp struct {
	client    solana.API
	store     store.Store
	inflight  *InFlightSet
	requests  chan<- FetchRequest
	interval  time.Duration
	timeout   time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewCatchUp(
	client solana.API,
	st store.Store,
	inflight *InFlightSet,
	requests chan<- FetchRequest,
	interval, timeout time.Duration,
	batchSize int,
) *CatchUp {
	return &CatchUp{
		client:    client,
		store:     st,
		inflight:  inflight,
		requests:  requests,
		interval:  interval,
		timeout:   timeout,
		batchSize: batchSize,
		logger:    logger.With(slog.String("worker", "catchup")),
	}
}

func (c *CatchUp) Run(ctx context.Context) error {
	c.logger.Info("Starting catchup", "interval", c.interval, "batch_size", c.batchSize)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Catchup stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := c.runCycle(ctx); err != nil {
				return err
			}
		}
	}
}

// runCycle enqueues up to batchSize slots from (highestStored, head] that are
// not already in flight. Slots in flight or already settled re-surface on the
// next cycle if they remain missing.
func (c *CatchUp) runCycle(ctx context.Context) error {
	highest, err := c.store.HighestStoredSlot()
	if err != nil {
		c.logger.Error("Failed to read highest stored slot", "err", err)
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	head, err := c.client.GetSlot(callCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("Head poll failed, skipping cycle", "err", err)
		return nil
	}

	if head <= highest {
		return nil
	}

	enqueued := 0
	for slot := highest + 1; slot <= head && enqueued < c.batchSize; slot++ {
		settled, err := c.store.IsSlotSettled(slot)
		if err != nil {
			c.logger.Error("Failed to check slot state", "slot", slot, "err", err)
			return nil
		}
		if settled {
			continue
		}
		if !c.inflight.TryAdd(slot) {
			continue
		}
		select {
		case c.requests <- FetchRequest{Slot: slot, Source: SourceCatchup}:
			enqueued++
		case <-ctx.Done():
			c.inflight.Remove(slot)
			return ctx.Err()
		}
	}

	if enqueued > 0 {
		c.logger.Info("Backfilling missing slots",
			"from", highest+1,
			"head", head,
			"enqueued", enqueued,
		)
	}
	return nil
}
