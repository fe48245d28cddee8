package errors

import "github.com/pkg/errors"

var (
	ErrChainNotFound      = errors.New("chain not found")
	ErrInvalidChainID     = errors.New("invalid chain id")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrChainExists        = errors.New("chain already exists in registry")
	ErrFactoryNotProvided = errors.New("chain factory not provided")
	ErrInvalidChainType   = errors.New("invalid chain type")
	ErrNotImplemented     = errors.New("functionality not implemented")
	ErrTokenNotSupported  = errors.New("token not supported on chain")

	// Route selection.
	ErrMissingRoute = errors.New("route code not provided")
	ErrInvalidRoute = errors.New("unsupported route code")

	// Transaction lifecycle.
	ErrTransientRPC       = errors.New("rpc request failed")
	ErrSignFailed         = errors.New("failed to sign transaction")
	ErrBroadcastFailed    = errors.New("failed to broadcast transaction")
	ErrReceiptWait        = errors.New("failed to wait for transaction receipt")
	ErrValidationRejected = errors.New("transaction rejected by validation")
	ErrApprovalFailed     = errors.New("token approval failed")

	// Balance polling.
	ErrPollTimeout      = errors.New("balance poll timed out")
	ErrNothingToBridge  = errors.New("balance below dust threshold")
	ErrInvalidKeyFormat = errors.New("invalid private key")

	// Native refuel.
	ErrRefuelUnsupported = errors.New("refuel not supported for route")
	ErrRefuelLimits      = errors.New("refuel amount outside limits")

	ErrDatabaseConnect = errors.New("failed to connect to database")
)
