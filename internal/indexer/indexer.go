package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/soldag/soldag/internal/config"
	"github.com/soldag/soldag/internal/rpc/solana"
	"github.com/soldag/soldag/internal/store"
	"github.com/soldag/soldag/pkg/events"
	"github.com/soldag/soldag/pkg/logger"
)

// Indexer runs the full pipeline as one unit: head fetcher, single processor
// and gap catchup, wired through a bounded request channel. Any worker error
// tears down the others so the supervisor restarts a consistent whole.
type Indexer struct {
	cfg     config.Config
	client  solana.API
	store   store.Store
	emitter events.Emitter
	logger  *slog.Logger
}

func New(cfg config.Config, client solana.API, st store.Store, emitter events.Emitter) *Indexer {
	return &Indexer{
		cfg:     cfg,
		client:  client,
		store:   st,
		emitter: emitter,
		logger:  logger.With(slog.String("unit", "indexer")),
	}
}

func (ix *Indexer) Run(ctx context.Context) error {
	highest, err := ix.store.HighestStoredSlot()
	if err != nil {
		return fmt.Errorf("read highest stored slot: %w", err)
	}
	if highest == 0 {
		highest, err = ix.ensureBaseline(ctx)
		if err != nil {
			return err
		}
	}
	ix.logger.Info("Starting indexing pipeline", "from_slot", highest)

	cursor := NewSlotCursor(highest)
	inflight := NewInFlightSet()
	requests := make(chan FetchRequest, ix.cfg.Indexer.QueueSize)

	fetcher := NewFetcher(ix.client, cursor, inflight, requests,
		ix.cfg.Indexer.UpdateInterval, ix.cfg.RPC.Timeout)
	processor := NewProcessor(ix.client, ix.store, cursor, inflight, ix.emitter,
		requests, ix.cfg.RPC.Timeout)
	catchup := NewCatchUp(ix.client, ix.store, inflight, requests,
		ix.cfg.Indexer.CatchupInterval, ix.cfg.RPC.Timeout, ix.cfg.Indexer.CatchupBatchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fetcher.Run(gctx) })
	g.Go(func() error { return processor.Run(gctx) })
	g.Go(func() error { return catchup.Run(gctx) })
	return g.Wait()
}

// ensureBaseline pins the first-start floor to just below the current head so
// catchup never walks toward genesis. Returns the effective starting slot.
func (ix *Indexer) ensureBaseline(ctx context.Context) (uint64, error) {
	if baseline, ok, err := ix.store.Baseline(); err != nil {
		return 0, fmt.Errorf("read baseline: %w", err)
	} else if ok {
		return baseline, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, ix.cfg.RPC.Timeout)
	head, err := ix.client.GetSlot(callCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("resolve initial head: %w", err)
	}

	baseline := uint64(0)
	if head > 0 {
		baseline = head - 1
	}
	if err := ix.store.SetBaseline(baseline); err != nil {
		return 0, fmt.Errorf("persist baseline: %w", err)
	}
	ix.logger.Info("Recorded baseline slot", "baseline", baseline, "head", head)
	return baseline, nil
}
