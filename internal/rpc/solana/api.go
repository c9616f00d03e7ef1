package solana

import "context"

// API is the remote ledger surface the indexer consumes.
type API interface {
	GetSlot(ctx context.Context) (uint64, error)
	GetBlock(ctx context.Context, slot uint64) (*GetBlockResult, error)
	GetAccount(ctx context.Context, pubkey string) (*AccountInfo, error)
	GetHealth(ctx context.Context) error
}
