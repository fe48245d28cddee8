// Package bridge runs one Stargate transfer leg: approval, balance re-check, fee quote and swap.
package bridge

import (
	"context"
	"math/big"
	"time"

	"github.com/ClipFinance/stargate-bridger/amount"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultApproveGasLimit is the fixed gas budget of an ERC20 approval.
	DefaultApproveGasLimit uint64 = 150_000
	// DefaultSettleDelay is the pause after an approval before the swap is built.
	DefaultSettleDelay = 30 * time.Second
)

// Options configure an Orchestrator. Zero values select the defaults.
type Options struct {
	ApproveGasLimit uint64        // Gas budget of the approval.
	SettleDelay     time.Duration // Pause after a mined approval.
}

// LegResult describes what a leg did on chain.
//
// Fields:
// - Approval: the approval transaction, nil if the allowance was sufficient.
// - Swap: the swap transaction, nil if it was never mined.
// - AmountIn: the amount actually sent.
// - AmountOutMin: the minimum accepted on the destination for AmountIn.
// - Substituted: true if the live balance replaced the requested amount.
// - Fee: the LayerZero fee attached to the swap.
// - LayerZeroURL: the cross-chain message link of the swap.
type LegResult struct {
	Approval     *types.TransactionOutcome
	Swap         *types.TransactionOutcome
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Substituted  bool
	Fee          *big.Int
	LayerZeroURL string
}

// Orchestrator drives a transfer through a source chain.
type Orchestrator struct {
	calc       *amount.Calculator                               // Recomputes the minimum when the balance is used.
	approveGas uint64                                           // Gas budget of the approval.
	settle     time.Duration                                    // Pause after a mined approval.
	sleep      func(ctx context.Context, d time.Duration) error // Swapped in tests.
	logger     *logrus.Logger
}

// NewOrchestrator creates an orchestrator.
//
// Parameters:
// - calc: the calculator matching the slippage of the run.
// - opts: orchestrator options.
// - logger: the logger for leg progress.
//
// Returns:
// - *Orchestrator: the orchestrator.
func NewOrchestrator(calc *amount.Calculator, opts Options, logger *logrus.Logger) *Orchestrator {
	o := &Orchestrator{
		calc:       calc,
		approveGas: opts.ApproveGasLimit,
		settle:     opts.SettleDelay,
		sleep:      sleepContext,
		logger:     logger,
	}
	if o.approveGas == 0 {
		o.approveGas = DefaultApproveGasLimit
	}
	if o.settle == 0 {
		o.settle = DefaultSettleDelay
	}
	return o
}

// Bridge sends req from the wallet through the source chain's router. It never retries.
//
// Parameters:
// - ctx: the context for managing the leg.
// - wallet: the signer of the sending account.
// - source: the chain funds leave from.
// - req: the transfer; it is not modified.
//
// Returns:
// - *LegResult: what happened on chain, also returned alongside most errors.
// - error: the sentinel of the step that failed, or a context error.
//
// A reverted swap is reported through LegResult.Swap with a nil error. A swap broadcast without
// a receipt is reported through LegResult.Swap alongside the error.
func (o *Orchestrator) Bridge(ctx context.Context, wallet types.TxSigner, source types.Chain, req *types.TransferRequest) (*LegResult, error) {
	cfg := source.GetConfig()
	address := wallet.Address().Hex()
	router := cfg.RouterAddress

	log := o.logger.WithFields(logrus.Fields{
		"wallet":      address,
		"chain":       cfg.Name,
		"destination": req.Destination,
		"token":       req.Token,
	})

	result := &LegResult{
		AmountIn:     new(big.Int).Set(req.AmountIn),
		AmountOutMin: new(big.Int).Set(req.AmountOutMin),
	}

	nonce, err := source.PendingNonce(ctx, address)
	if err != nil {
		return result, err
	}

	allowance, err := source.Allowance(ctx, req.TokenAddress, address, router)
	if err != nil {
		return result, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to read allowance: %v", err)
	}
	log.WithField("allowance", amount.FromSmallestUnit(allowance, req.Decimals)).Debug("Router allowance")

	if allowance.Cmp(req.AmountIn) < 0 {
		approval, err := o.approve(ctx, wallet, source, req, nonce)
		result.Approval = approval
		if err != nil {
			log.WithError(err).Error("Approval failed")
			return result, err
		}
		nonce++
		log.WithField("explorer", approval.ExplorerURL).Infof("%s APPROVED", req.Token)

		if err := o.sleep(ctx, o.settle); err != nil {
			return result, err
		}
	}

	balance, err := source.BalanceOf(ctx, req.TokenAddress, address)
	if err != nil {
		return result, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to read balance: %v", err)
	}
	if balance.Sign() == 0 {
		return result, errors.Wrapf(commonerrors.ErrNothingToBridge, "%s balance on %s is zero", req.Token, cfg.Name)
	}
	if balance.Cmp(result.AmountIn) < 0 {
		q := o.calc.FromBalance(balance, req.Decimals)
		log.WithFields(logrus.Fields{
			"requested": req.HumanAmount,
			"balance":   q.HumanAmountIn(),
		}).Warn("Balance is lower than requested amount, bridging the whole balance")
		result.AmountIn = q.AmountIn
		result.AmountOutMin = q.AmountOutMin
		result.Substituted = true
	}

	fee, err := source.QuoteLayerZeroFee(ctx, types.DefaultFeeQuote(req.DstLayerZeroID))
	if err != nil {
		return result, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to quote layerzero fee: %v", err)
	}
	result.Fee = fee

	params := req.SwapParams()
	params.AmountIn = result.AmountIn
	params.AmountOutMin = result.AmountOutMin

	swap, err := source.BuildSwap(params, fee)
	if err != nil {
		return result, errors.Wrap(err, "failed to build swap")
	}

	if err := source.Simulate(ctx, address, swap); err != nil {
		if errors.Is(err, commonerrors.ErrValidationRejected) {
			log.WithError(err).Error("Amount to be bridged is too low")
		}
		return result, err
	}

	pending, err := source.PendingNonce(ctx, address)
	if err != nil {
		return result, err
	}
	if pending > nonce {
		nonce = pending
	}
	swap.Nonce = &nonce

	log.WithFields(logrus.Fields{
		"amount": amount.FromSmallestUnit(result.AmountIn, req.Decimals),
		"min":    amount.FromSmallestUnit(result.AmountOutMin, req.Decimals),
		"fee":    fee.String(),
	}).Info("Bridging")

	outcome, err := source.Submit(ctx, wallet, swap)
	if outcome != nil {
		result.Swap = outcome
		result.LayerZeroURL = types.LayerZeroScanTxURL + outcome.Hash
	}
	if err != nil {
		if outcome != nil {
			log.WithFields(logrus.Fields{
				"explorer":      outcome.ExplorerURL,
				"layerzeroscan": result.LayerZeroURL,
			}).WithError(err).Error("Swap was broadcast but its receipt is unknown")
		}
		return result, err
	}

	if !outcome.Success {
		log.WithField("explorer", outcome.ExplorerURL).Error("Swap transaction reverted")
		return result, nil
	}

	log.WithField("explorer", outcome.ExplorerURL).Info("Swap transaction mined")
	log.WithField("layerzeroscan", result.LayerZeroURL).Info("Cross-chain message sent")
	return result, nil
}

// approve submits an approval of exactly req.AmountIn to the router with the given nonce.
func (o *Orchestrator) approve(ctx context.Context, wallet types.TxSigner, source types.Chain, req *types.TransferRequest, nonce uint64) (*types.TransactionOutcome, error) {
	tx, err := source.BuildApprove(req.TokenAddress, source.GetConfig().RouterAddress, req.AmountIn)
	if err != nil {
		return nil, errors.Wrapf(commonerrors.ErrApprovalFailed, "failed to build approval: %v", err)
	}
	tx.GasLimit = o.approveGas
	tx.Nonce = &nonce

	outcome, err := source.Submit(ctx, wallet, tx)
	if err != nil {
		return outcome, errors.Wrapf(commonerrors.ErrApprovalFailed, "%v", err)
	}
	if !outcome.Success {
		return outcome, errors.Wrapf(commonerrors.ErrApprovalFailed, "approval %s reverted", outcome.Hash)
	}
	return outcome, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
