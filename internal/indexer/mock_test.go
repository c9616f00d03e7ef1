package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soldag/soldag/internal/kvstore"
	"github.com/soldag/soldag/internal/ledger"
	"github.com/soldag/soldag/internal/rpc/solana"
	"github.com/soldag/soldag/internal/store"
)

type mockAPI struct {
	getSlot  func(ctx context.Context) (uint64, error)
	getBlock func(ctx context.Context, slot uint64) (*solana.GetBlockResult, error)
}

func (m *mockAPI) GetSlot(ctx context.Context) (uint64, error) {
	if m.getSlot == nil {
		return 0, errors.New("getSlot not stubbed")
	}
	return m.getSlot(ctx)
}

func (m *mockAPI) GetBlock(ctx context.Context, slot uint64) (*solana.GetBlockResult, error) {
	if m.getBlock == nil {
		return nil, errors.New("getBlock not stubbed")
	}
	return m.getBlock(ctx, slot)
}

func (m *mockAPI) GetAccount(context.Context, string) (*solana.AccountInfo, error) {
	return nil, errors.New("getAccount not stubbed")
}

func (m *mockAPI) GetHealth(context.Context) error { return nil }

func newTestStore() store.Store {
	return store.New(kvstore.NewMemoryStore(kvstore.JSON))
}

func blockResultAt(slot uint64) *solana.GetBlockResult {
	blockTime := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC).Unix()
	return &solana.GetBlockResult{
		Blockhash:         fmt.Sprintf("hash-%d", slot),
		PreviousBlockhash: fmt.Sprintf("hash-%d", slot-1),
		ParentSlot:        slot - 1,
		BlockTime:         &blockTime,
		Transactions: []solana.BlockTxn{
			{
				Meta: &solana.TxnMeta{Fee: 5000},
				Transaction: solana.TxnEnvelope{
					Signatures: []string{fmt.Sprintf("sig-%d-0", slot)},
					Message: solana.Message{
						Header:          solana.MessageHeader{NumRequiredSignatures: 1},
						AccountKeys:     []string{"payer", "program"},
						RecentBlockhash: "recent",
						Instructions: []solana.Instruction{
							{ProgramIDIndex: 1, Accounts: []int{0}, Data: "data"},
						},
					},
				},
			},
		},
	}
}

// failingUpsertStore wraps a real store and fails block upserts on demand.
type failingUpsertStore struct {
	store.Store
	fail bool
}

func (s *failingUpsertStore) UpsertBlock(b *ledger.Block) error {
	if s.fail {
		return errors.New("disk unavailable")
	}
	return s.Store.UpsertBlock(b)
}

func drainRequests(requests <-chan FetchRequest) []FetchRequest {
	out := []FetchRequest{}
	for {
		select {
		case req := <-requests:
			out = append(out, req)
		default:
			return out
		}
	}
}
