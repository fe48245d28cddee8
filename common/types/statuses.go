package types

// TransactionStatus is the terminal state of a submitted transaction.
type TransactionStatus string

const (
	// TxDone means the receipt reported success.
	TxDone TransactionStatus = "DONE"
	// TxFailed means the receipt reported a revert.
	TxFailed TransactionStatus = "FAILED"
	// TxPending means the transaction was broadcast but no receipt was seen.
	TxPending TransactionStatus = "PENDING"
)

// LegStatus is the state of one bridging leg for one wallet.
type LegStatus string

const (
	// LegPending is the status of a leg that is waiting for funds or confirmations.
	LegPending LegStatus = "PENDING"
	// LegDone is the status of a leg whose swap transaction succeeded.
	LegDone LegStatus = "DONE"
	// LegFailed is the status of a leg that ended without a successful swap.
	LegFailed LegStatus = "FAILED"
	// LegSkipped is the status of a leg never started because an earlier leg failed.
	LegSkipped LegStatus = "SKIPPED"
)

type SubStatus string

const (
	// Completed indicates that the swap transaction was mined successfully.
	Completed SubStatus = "COMPLETED"

	// NothingToBridge indicates that the source balance stayed below the dust threshold.
	NothingToBridge SubStatus = "NOTHING_TO_BRIDGE"

	// InsufficientAllowance indicates that the approval transaction failed or reverted.
	InsufficientAllowance SubStatus = "INSUFFICIENT_ALLOWANCE"

	// InsufficientBalance indicates that the live balance was lower than the requested amount and was used instead.
	InsufficientBalance SubStatus = "INSUFFICIENT_BALANCE"

	// ValidationRejected indicates that the swap was rejected before broadcast, usually because the amount is too low.
	ValidationRejected SubStatus = "VALIDATION_REJECTED"

	// BroadcastFailed indicates that the node refused the signed transaction.
	BroadcastFailed SubStatus = "BROADCAST_FAILED"

	// Reverted indicates that the swap transaction was mined with a failed status.
	Reverted SubStatus = "REVERTED"

	// ChainNotAvailable indicates that the RPC for the source chain is temporarily unavailable.
	ChainNotAvailable SubStatus = "CHAIN_NOT_AVAILABLE"

	// Cancelled indicates that the run was interrupted by the operator.
	Cancelled SubStatus = "CANCELLED"

	// UnknownError indicates that the failure cannot be classified.
	UnknownError SubStatus = "UNKNOWN_ERROR"
)
