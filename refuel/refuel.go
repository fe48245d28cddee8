// Package refuel tops up native gas on a destination chain through the Socket refuel contract.
package refuel

import (
	"context"
	"math"
	"math/big"
	"math/rand/v2"
	"sync"

	"github.com/ClipFinance/stargate-bridger/amount"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ClipFinance/stargate-bridger/route"
	"github.com/ClipFinance/stargate-bridger/wallet"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// nativeDecimals is shared by the native token of every supported chain.
	nativeDecimals = 18
	// amountDecimals is the precision of the drawn deposit.
	amountDecimals = 5
	// maxMarkup is the upper bound of the random markup applied to the deposit.
	maxMarkup = 0.1
)

// Quoter supplies refuel limits and native token prices.
type Quoter interface {
	Limits(ctx context.Context, srcChainID, dstChainID uint64) (*Limits, error)
	Price(ctx context.Context, symbol string) (float64, error)
}

// ChainSource hands out connected chains.
type ChainSource interface {
	Get(name types.ChainName) (types.Chain, error)
}

// Result is the refuel outcome of one wallet.
type Result struct {
	Wallet  string
	Value   *big.Int                  // Deposited wei, nil if nothing was sent.
	Outcome *types.TransactionOutcome // The deposit transaction.
	Err     error
}

// Service sends refuel deposits.
type Service struct {
	quoter Quoter
	chains ChainSource
	usd    float64
	markup func() float64
	logger *logrus.Logger
}

// NewService creates a refuel service.
//
// Parameters:
// - quoter: the limits and price source.
// - chains: the connected chains.
// - usd: the deposit value in USD before the random markup.
// - logger: the logger for deposits.
//
// Returns:
// - *Service: the service.
func NewService(quoter Quoter, chains ChainSource, usd float64, logger *logrus.Logger) *Service {
	return &Service{
		quoter: quoter,
		chains: chains,
		usd:    usd,
		markup: func() float64 { return 1 + rand.Float64()*maxMarkup },
		logger: logger,
	}
}

// RefuelAll refuels every wallet concurrently. One wallet failing never stops the others.
func (s *Service) RefuelAll(ctx context.Context, wallets []*wallet.Wallet, r route.Route) []Result {
	results := make([]Result, len(wallets))

	var wg sync.WaitGroup
	for i, w := range wallets {
		wg.Add(1)
		go func(i int, w *wallet.Wallet) {
			defer wg.Done()
			outcome, value, err := s.Refuel(ctx, w, r)
			results[i] = Result{Wallet: w.Address(), Value: value, Outcome: outcome, Err: err}
		}(i, w)
	}
	wg.Wait()

	return results
}

// Refuel deposits native tokens on the route's source chain to be paid out as gas on its destination.
//
// Parameters:
// - ctx: the context for the deposit.
// - w: the paying wallet, also the recipient.
// - r: the route.
//
// Returns:
// - *types.TransactionOutcome: the mined deposit.
// - *big.Int: the deposited wei.
// - error: ErrRefuelUnsupported, ErrRefuelLimits or a submission error.
func (s *Service) Refuel(ctx context.Context, w *wallet.Wallet, r route.Route) (*types.TransactionOutcome, *big.Int, error) {
	if !r.Refuelable() {
		return nil, nil, errors.Wrapf(commonerrors.ErrRefuelUnsupported, "route %s", r.Code)
	}

	source, err := s.chains.Get(r.Source)
	if err != nil {
		return nil, nil, err
	}
	destination, err := s.chains.Get(r.Destination)
	if err != nil {
		return nil, nil, err
	}
	src, dst := source.GetConfig(), destination.GetConfig()
	address := w.Address()

	log := s.logger.WithFields(logrus.Fields{
		"wallet":      address,
		"chain":       src.Name,
		"destination": dst.Name,
	})
	log.Info("Starting refuel")

	price, err := s.quoter.Price(ctx, src.NativeSymbol)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get native price")
	}
	value := DepositAmount(s.usd, price, s.markup())

	limits, err := s.quoter.Limits(ctx, src.ChainID, dst.ChainID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get refuel limits")
	}
	log.WithFields(logrus.Fields{
		"min": amount.FromSmallestUnit(limits.Min, nativeDecimals),
		"max": amount.FromSmallestUnit(limits.Max, nativeDecimals),
	}).Infof("Refuel limits in %s", src.NativeSymbol)

	if value.Cmp(limits.Min) < 0 || value.Cmp(limits.Max) > 0 {
		return nil, nil, errors.Wrapf(commonerrors.ErrRefuelLimits, "%s %s outside [%s, %s]",
			amount.FromSmallestUnit(value, nativeDecimals), src.NativeSymbol,
			amount.FromSmallestUnit(limits.Min, nativeDecimals), amount.FromSmallestUnit(limits.Max, nativeDecimals))
	}

	tx, err := source.BuildRefuel(dst.ChainID, address, value)
	if err != nil {
		return nil, nil, err
	}

	outcome, err := source.Submit(ctx, w.Signer, tx)
	if err != nil {
		return nil, nil, err
	}
	if !outcome.Success {
		log.WithField("explorer", outcome.ExplorerURL).Error("Refuel transaction reverted")
		return outcome, value, errors.Errorf("refuel %s reverted", outcome.Hash)
	}

	log.WithFields(logrus.Fields{
		"amount":   amount.FromSmallestUnit(value, nativeDecimals),
		"explorer": outcome.ExplorerURL,
	}).Info("Refuel sent")
	return outcome, value, nil
}

// DepositAmount converts a USD value into wei of a native token priced at price USD,
// applies the markup and rounds to five decimals.
func DepositAmount(usd, price, markup float64) *big.Int {
	step := math.Pow10(amountDecimals)
	units := int64(math.Round(usd / price * markup * step))
	wei := new(big.Int).Mul(big.NewInt(units), new(big.Int).Exp(big.NewInt(10), big.NewInt(nativeDecimals-amountDecimals), nil))
	return wei
}
