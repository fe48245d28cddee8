package evm

import (
	"context"
	"math/big"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// PendingNonce returns the next nonce of an account including pending transactions.
//
// Parameters:
// - ctx: the context for managing the request.
// - address: the account address.
//
// Returns:
// - uint64: the pending nonce.
// - error: ErrTransientRPC if the node cannot be queried.
func (e *evm) PendingNonce(ctx context.Context, address string) (uint64, error) {
	client, err := e.getClient()
	if err != nil {
		return 0, err
	}

	nonce, err := client.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to get nonce: %v", err)
	}
	return nonce, nil
}

// Simulate executes the request as an eth_call from the sender against the latest state.
//
// Parameters:
// - ctx: the context for managing the request.
// - from: the sender address.
// - req: the request to simulate.
//
// Returns:
// - error: ErrValidationRejected when the call reverts, ErrTransientRPC when the node fails otherwise.
func (e *evm) Simulate(ctx context.Context, from string, req *types.TxRequest) error {
	client, err := e.getClient()
	if err != nil {
		return err
	}

	to := common.HexToAddress(req.To)
	_, err = client.CallContract(ctx, ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &to,
		Gas:   req.GasLimit,
		Value: req.Value,
		Data:  req.Data,
	}, nil)
	if err == nil {
		return nil
	}
	if isRevert(err) {
		return errors.Wrap(commonerrors.ErrValidationRejected, err.Error())
	}
	return errors.Wrapf(commonerrors.ErrTransientRPC, "failed to simulate %s: %v", req.Kind, err)
}

// Submit signs and broadcasts the request, then waits for its receipt.
// A failed broadcast returns ErrBroadcastFailed and no outcome, the receipt is never awaited.
// A mined but reverted transaction returns an outcome with Success false and a nil error.
// A wait that ends without a receipt returns ErrReceiptWait with a pending outcome carrying the hash.
//
// Parameters:
// - ctx: the context for managing the request.
// - signer: the wallet signing the transaction.
// - req: the request to submit.
//
// Returns:
// - *types.TransactionOutcome: the mined transaction.
// - error: an error if the transaction could not be built, signed, broadcast or confirmed.
func (e *evm) Submit(ctx context.Context, signer types.TxSigner, req *types.TxRequest) (*types.TransactionOutcome, error) {
	log := e.logger.WithFields(logrus.Fields{
		"chain":  e.config.Name,
		"kind":   req.Kind,
		"wallet": signer.Address().Hex(),
	})

	tx, err := e.prepareTransaction(ctx, signer.Address(), req)
	if err != nil {
		e.metrics.ObserveTransaction(e.config.Name.String(), string(req.Kind), "build_failed")
		return nil, err
	}

	signedTx, err := e.signAndSendTransaction(ctx, signer, tx)
	if err != nil {
		e.metrics.ObserveTransaction(e.config.Name.String(), string(req.Kind), "broadcast_failed")
		log.WithError(err).Error("Transaction was not broadcast")
		return nil, err
	}

	hash := signedTx.Hash().Hex()
	log.WithFields(logrus.Fields{"txHash": hash, "nonce": signedTx.Nonce()}).Info("Transaction sent, waiting for receipt")

	outcome := &types.TransactionOutcome{
		Hash:        hash,
		Status:      types.TxPending,
		ExplorerURL: e.config.ExplorerTxURL(hash),
		Nonce:       signedTx.Nonce(),
	}

	receipt, err := e.waitReceipt(ctx, signedTx.Hash())
	if err != nil {
		e.metrics.ObserveTransaction(e.config.Name.String(), string(req.Kind), string(outcome.Status))
		log.WithFields(logrus.Fields{"txHash": hash, "explorer": outcome.ExplorerURL}).WithError(err).Error("No receipt for broadcast transaction")
		return outcome, errors.Wrapf(commonerrors.ErrReceiptWait, "tx %s: %v", hash, err)
	}

	outcome.Success = receipt.Status == ethtypes.ReceiptStatusSuccessful
	outcome.Status = types.TxFailed
	outcome.GasUsed = receipt.GasUsed
	if receipt.BlockNumber != nil {
		outcome.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if outcome.Success {
		outcome.Status = types.TxDone
	} else {
		log.WithField("txHash", hash).Error("Transaction reverted")
	}

	e.metrics.ObserveTransaction(e.config.Name.String(), string(req.Kind), string(outcome.Status))
	return outcome, nil
}

// prepareTransaction prepares a transaction with the given parameters.
//
// Parameters:
// - ctx: the context for managing the request.
// - from: the sender, used for nonce and gas estimation.
// - req: the request to prepare.
//
// Returns:
// - *ethtypes.Transaction: the prepared transaction.
// - error: an error if the nonce, gas estimation or gas price retrieval fails.
func (e *evm) prepareTransaction(ctx context.Context, from common.Address, req *types.TxRequest) (*ethtypes.Transaction, error) {
	var nonce uint64
	if req.Nonce != nil {
		nonce = *req.Nonce
	} else {
		n, err := e.PendingNonce(ctx, from.Hex())
		if err != nil {
			return nil, err
		}
		nonce = n
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		estimated, err := e.estimateGas(ctx, from, req.To, value, req.Data)
		if err != nil {
			e.logger.WithField("chain", e.config.Name).WithError(err).Warn("Failed to estimate gas")
			if isRevert(err) {
				return nil, errors.Wrap(commonerrors.ErrValidationRejected, err.Error())
			}
			return nil, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to estimate gas: %v", err)
		}
		gasLimit = estimated
	}

	to := common.HexToAddress(req.To)

	if e.config.TxType == types.DynamicFeeTxType {
		gasPriceData, err := e.getEIP1559GasPrice(ctx)
		if err != nil {
			return nil, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to get EIP-1559 gas price: %v", err)
		}

		return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:    new(big.Int).SetUint64(e.config.ChainID),
			Nonce:      nonce,
			GasFeeCap:  gasPriceData.MaxFeePerGas,
			GasTipCap:  gasPriceData.MaxPriorityFeePerGas,
			Gas:        gasLimit,
			To:         &to,
			Value:      value,
			Data:       req.Data,
			AccessList: nil,
		}), nil
	}

	gasPrice, err := e.getLegacyGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrapf(commonerrors.ErrTransientRPC, "%v", err)
	}

	return ethtypes.NewTransaction(
		nonce,
		to,
		value,
		gasLimit,
		gasPrice,
		req.Data,
	), nil
}

// signAndSendTransaction signs and sends the prepared transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - signer: the wallet signing the transaction.
// - tx: the prepared transaction to be signed and sent.
//
// Returns:
// - *ethtypes.Transaction: the signed and sent transaction.
// - error: ErrSignFailed or ErrBroadcastFailed.
func (e *evm) signAndSendTransaction(ctx context.Context, signer types.TxSigner, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, errors.Wrap(commonerrors.ErrBroadcastFailed, err.Error())
	}

	chainID := new(big.Int).SetUint64(e.config.ChainID)

	signedTx, err := signer.SignTx(tx, chainID)
	if err != nil {
		return nil, errors.Wrap(commonerrors.ErrSignFailed, err.Error())
	}

	if err = client.SendTransaction(ctx, signedTx); err != nil {
		return nil, errors.Wrap(commonerrors.ErrBroadcastFailed, err.Error())
	}

	return signedTx, nil
}
