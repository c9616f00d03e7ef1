package solana

import (
	"errors"
	"fmt"
)

// Slot-skipped RPC error codes. A skipped slot is a legitimate ledger outcome,
// not a failure: the leader produced no block for it.
const (
	codeSlotSkipped       = -32007
	codeLongTermSkipped   = -32009
	codeBlockNotAvailable = -32004
)

var (
	// ErrSlotSkipped marks a slot with no block behind it.
	ErrSlotSkipped = errors.New("slot skipped or missing")
	// ErrRateLimited marks an HTTP 429 from the endpoint.
	ErrRateLimited = errors.New("rate limited by rpc endpoint")
	// ErrAccountNotFound marks a getAccountInfo null result.
	ErrAccountNotFound = errors.New("account not found")
)

// RPCError is a JSON-RPC level error returned by the endpoint.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *RPCError) isSlotSkipped() bool {
	switch e.Code {
	case codeSlotSkipped, codeLongTermSkipped, codeBlockNotAvailable:
		return true
	}
	return false
}

// MalformedResponseError marks a response that could not be decoded. The
// affected slot is dropped rather than retried.
type MalformedResponseError struct {
	Method string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Method, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is a decode failure rather than a transport
// or ledger condition.
func IsMalformed(err error) bool {
	var m *MalformedResponseError
	return errors.As(err, &m)
}
