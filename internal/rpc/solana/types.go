package solana

import "encoding/json"

// JSON-RPC envelope types for getSlot / getBlock / getAccountInfo.

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

type GetBlockConfig struct {
	Encoding                       string `json:"encoding"`           // json
	TransactionDetails             string `json:"transactionDetails"` // full
	Rewards                        bool   `json:"rewards"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
	Commitment                     string `json:"commitment,omitempty"` // finalized
}

type GetBlockResult struct {
	Blockhash         string     `json:"blockhash"`
	PreviousBlockhash string     `json:"previousBlockhash"`
	ParentSlot        uint64     `json:"parentSlot"`
	BlockTime         *int64     `json:"blockTime"`
	BlockHeight       *uint64    `json:"blockHeight"`
	Transactions      []BlockTxn `json:"transactions"`
}

type BlockTxn struct {
	Meta        *TxnMeta    `json:"meta"`
	Transaction TxnEnvelope `json:"transaction"`
}

type TxnMeta struct {
	Err          any      `json:"err"`
	Fee          uint64   `json:"fee"`
	PreBalances  []uint64 `json:"preBalances"`
	PostBalances []uint64 `json:"postBalances"`
}

type TxnEnvelope struct {
	Signatures []string `json:"signatures"`
	Message    Message  `json:"message"`
}

// Message is the raw (encoding=json) transaction message: account keys are
// base58 strings and instructions reference them by index.
type Message struct {
	Header              MessageHeader        `json:"header"`
	AccountKeys         []string             `json:"accountKeys"`
	RecentBlockhash     string               `json:"recentBlockhash"`
	Instructions        []Instruction        `json:"instructions"`
	AddressTableLookups []AddressTableLookup `json:"addressTableLookups,omitempty"`
}

type MessageHeader struct {
	NumRequiredSignatures       int `json:"numRequiredSignatures"`
	NumReadonlySignedAccounts   int `json:"numReadonlySignedAccounts"`
	NumReadonlyUnsignedAccounts int `json:"numReadonlyUnsignedAccounts"`
}

type Instruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"` // base58 payload
	StackHeight    *int   `json:"stackHeight,omitempty"`
}

type AddressTableLookup struct {
	AccountKey      string `json:"accountKey"`
	WritableIndexes []int  `json:"writableIndexes"`
	ReadonlyIndexes []int  `json:"readonlyIndexes"`
}

type getAccountInfoResult struct {
	Value *AccountInfo `json:"value"`
}

// AccountInfo is a read-only account snapshot.
type AccountInfo struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [payload, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}
