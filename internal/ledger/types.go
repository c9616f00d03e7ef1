// Package ledger holds the normalized domain model persisted by the indexer.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

const lamportsPerSOL = 1_000_000_000

// Block is the set of transactions finalized at a slot. Identity key = slot;
// once stored it is immutable and re-upserts are no-ops.
type Block struct {
	Slot              uint64        `json:"slot"`
	Blockhash         string        `json:"blockhash"`
	PreviousBlockhash string        `json:"previous_blockhash"`
	ParentSlot        uint64        `json:"parent_slot"`
	BlockTime         *time.Time    `json:"block_time,omitempty"`
	Transactions      []Transaction `json:"transactions"`
}

// Transaction identity key = signature. Signature uniqueness is guaranteed by
// the source ledger, not enforced here.
type Transaction struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime *time.Time      `json:"block_time,omitempty"`
	Fee       uint64          `json:"fee"`
	FeeSOL    decimal.Decimal `json:"fee_sol"`
	Failed    bool            `json:"failed"`
	Message   Message         `json:"message"`
}

type Message struct {
	Header              MessageHeader        `json:"header"`
	AccountKeys         []string             `json:"account_keys"`
	RecentBlockhash     string               `json:"recent_blockhash"`
	Instructions        []Instruction        `json:"instructions"`
	AddressTableLookups []AddressTableLookup `json:"address_table_lookups,omitempty"`
}

type MessageHeader struct {
	NumRequiredSignatures       int `json:"num_required_signatures"`
	NumReadonlySignedAccounts   int `json:"num_readonly_signed_accounts"`
	NumReadonlyUnsignedAccounts int `json:"num_readonly_unsigned_accounts"`
}

// Instruction accounts are indices into the message account table.
type Instruction struct {
	ProgramIDIndex int    `json:"program_id_index"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
	StackHeight    *int   `json:"stack_height,omitempty"`
}

type AddressTableLookup struct {
	AccountKey      string `json:"account_key"`
	WritableIndexes []int  `json:"writable_indexes"`
	ReadonlyIndexes []int  `json:"readonly_indexes"`
}

// Account is a read-only snapshot fetched on demand; it is not versioned and
// not part of the polling pipeline.
type Account struct {
	Pubkey     string `json:"pubkey"`
	Lamports   uint64 `json:"lamports"`
	Data       []byte `json:"data"`
	Owner      string `json:"owner"`
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rent_epoch"`
}

// LamportsToSOL converts a lamport amount into SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Div(decimal.NewFromInt(lamportsPerSOL))
}
