package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// TxKind labels a transaction for logs and metrics.
type TxKind string

const (
	TxApprove TxKind = "approve"
	TxSwap    TxKind = "swap"
	TxRefuel  TxKind = "refuel"
)

// TxRequest is an unsigned call to be submitted on a chain.
//
// Fields:
// - Kind: what the transaction does.
// - To: the contract being called.
// - Value: native value attached to the call, nil for none.
// - Data: ABI-encoded calldata.
// - GasLimit: fixed gas budget. Zero means estimate.
// - Nonce: explicit nonce. Nil means use the pending nonce of the sender.
type TxRequest struct {
	Kind     TxKind
	To       string
	Value    *big.Int
	Data     []byte
	GasLimit uint64
	Nonce    *uint64
}

// TxSigner signs transactions with a key held in process memory.
type TxSigner interface {
	// Address returns the account controlled by the signer.
	Address() common.Address

	// SignTx signs a transaction for the given chain id.
	SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// TransactionOutcome represents a mined transaction.
//
// Fields:
// - Hash: the hash of the transaction.
// - Success: true if the receipt status is successful.
// - Status: DONE or FAILED.
// - ExplorerURL: link to the transaction in the chain's block explorer.
// - Nonce: the nonce the transaction was sent with.
// - BlockNumber: the block the transaction was mined in.
// - GasUsed: gas consumed by the transaction.
type TransactionOutcome struct {
	Hash        string
	Success     bool
	Status      TransactionStatus
	ExplorerURL string
	Nonce       uint64
	BlockNumber uint64
	GasUsed     uint64
}
