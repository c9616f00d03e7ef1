package ledger

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/soldag/soldag/internal/rpc/solana"
)

// FromRPCBlock normalizes a raw getBlock result into the stored Block shape.
// Transactions without a signature are rejected; the ledger guarantees one.
func FromRPCBlock(slot uint64, raw *solana.GetBlockResult) (*Block, error) {
	block := &Block{
		Slot:              slot,
		Blockhash:         raw.Blockhash,
		PreviousBlockhash: raw.PreviousBlockhash,
		ParentSlot:        raw.ParentSlot,
		Transactions:      make([]Transaction, 0, len(raw.Transactions)),
	}
	if raw.BlockTime != nil {
		t := time.Unix(*raw.BlockTime, 0).UTC()
		block.BlockTime = &t
	}

	for i, txn := range raw.Transactions {
		if len(txn.Transaction.Signatures) == 0 {
			return nil, fmt.Errorf("transaction %d in slot %d has no signature", i, slot)
		}

		tx := Transaction{
			Signature: txn.Transaction.Signatures[0],
			Slot:      slot,
			BlockTime: block.BlockTime,
			Message:   fromRPCMessage(txn.Transaction.Message),
		}
		if txn.Meta != nil {
			tx.Fee = txn.Meta.Fee
			tx.FeeSOL = LamportsToSOL(txn.Meta.Fee)
			tx.Failed = txn.Meta.Err != nil
		}
		block.Transactions = append(block.Transactions, tx)
	}

	return block, nil
}

func fromRPCMessage(m solana.Message) Message {
	out := Message{
		Header: MessageHeader{
			NumRequiredSignatures:       m.Header.NumRequiredSignatures,
			NumReadonlySignedAccounts:   m.Header.NumReadonlySignedAccounts,
			NumReadonlyUnsignedAccounts: m.Header.NumReadonlyUnsignedAccounts,
		},
		AccountKeys:     m.AccountKeys,
		RecentBlockhash: m.RecentBlockhash,
		Instructions:    make([]Instruction, 0, len(m.Instructions)),
	}

	for _, ins := range m.Instructions {
		out.Instructions = append(out.Instructions, Instruction{
			ProgramIDIndex: ins.ProgramIDIndex,
			Accounts:       ins.Accounts,
			Data:           ins.Data,
			StackHeight:    ins.StackHeight,
		})
	}
	for _, l := range m.AddressTableLookups {
		out.AddressTableLookups = append(out.AddressTableLookups, AddressTableLookup{
			AccountKey:      l.AccountKey,
			WritableIndexes: l.WritableIndexes,
			ReadonlyIndexes: l.ReadonlyIndexes,
		})
	}
	return out
}

// FromRPCAccount normalizes a getAccountInfo value. Data arrives as
// [payload, encoding]; only base64 is requested.
func FromRPCAccount(pubkey string, info *solana.AccountInfo) (*Account, error) {
	acc := &Account{
		Pubkey:     pubkey,
		Lamports:   info.Lamports,
		Owner:      info.Owner,
		Executable: info.Executable,
		RentEpoch:  info.RentEpoch,
	}

	if len(info.Data) == 2 {
		if info.Data[1] != "base64" {
			return nil, fmt.Errorf("unexpected account data encoding %q", info.Data[1])
		}
		data, err := base64.StdEncoding.DecodeString(info.Data[0])
		if err != nil {
			return nil, fmt.Errorf("decode account data: %w", err)
		}
		acc.Data = data
	}
	return acc, nil
}
