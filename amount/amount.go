// Package amount converts human token amounts into on-chain units and derives the
// minimum accepted output for a slippage tolerance.
package amount

import (
	"context"
	"math"
	"math/big"
	"math/rand/v2"
	"strconv"
	"strings"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/pkg/errors"
)

// DefaultSlippage is the tolerated loss between source and destination amounts.
const DefaultSlippage = 0.005

// DecimalsReader resolves the decimals of a token.
type DecimalsReader interface {
	Decimals(ctx context.Context, token string) (uint8, error)
}

// Quote is an amount ready to be bridged.
//
// Fields:
// - Decimals: the token decimals both values are scaled by.
// - AmountIn: the amount sent, in the token's smallest unit.
// - AmountOutMin: the minimum accepted on the destination, in the token's smallest unit.
type Quote struct {
	Decimals     uint8
	AmountIn     *big.Int
	AmountOutMin *big.Int
}

// HumanAmountIn returns AmountIn in whole tokens.
func (q *Quote) HumanAmountIn() string {
	return FromSmallestUnit(q.AmountIn, q.Decimals)
}

// HumanAmountOutMin returns AmountOutMin in whole tokens.
func (q *Quote) HumanAmountOutMin() string {
	return FromSmallestUnit(q.AmountOutMin, q.Decimals)
}

// Calculator derives quotes for a fixed slippage.
type Calculator struct {
	slippage *big.Rat // Fraction in [0, 1).
}

// NewCalculator creates a calculator.
//
// Parameters:
// - slippage: the tolerated loss, e.g. 0.005 for 0.5%.
//
// Returns:
// - *Calculator: the calculator.
// - error: ErrInvalidConfig when slippage is outside [0, 1).
func NewCalculator(slippage float64) (*Calculator, error) {
	if slippage < 0 || slippage >= 1 {
		return nil, errors.Wrapf(commonerrors.ErrInvalidConfig, "slippage %v outside [0, 1)", slippage)
	}
	// Going through the shortest decimal form keeps 0.005 exact instead of its binary approximation.
	s, ok := new(big.Rat).SetString(strconv.FormatFloat(slippage, 'f', -1, 64))
	if !ok {
		return nil, errors.Wrapf(commonerrors.ErrInvalidConfig, "slippage %v", slippage)
	}
	return &Calculator{slippage: s}, nil
}

// Compute converts a human amount of token into a quote. Decimals are queried once.
//
// Parameters:
// - ctx: the context for managing the request.
// - reader: resolves the token decimals.
// - token: the token contract.
// - human: the amount in whole tokens.
//
// Returns:
// - *Quote: the scaled amount and its minimum output.
// - error: ErrTransientRPC if decimals cannot be read.
func (c *Calculator) Compute(ctx context.Context, reader DecimalsReader, token string, human *big.Rat) (*Quote, error) {
	if human == nil || human.Sign() < 0 {
		return nil, errors.Wrap(commonerrors.ErrInvalidConfig, "amount must be non-negative")
	}

	decimals, err := reader.Decimals(ctx, token)
	if err != nil {
		if errors.Is(err, commonerrors.ErrTransientRPC) {
			return nil, err
		}
		return nil, errors.Wrapf(commonerrors.ErrTransientRPC, "failed to read decimals of %s: %v", token, err)
	}

	return c.FromBalance(ToSmallestUnit(human, decimals), decimals), nil
}

// FromBalance builds a quote for an amount already in the token's smallest unit,
// e.g. a live balance.
func (c *Calculator) FromBalance(units *big.Int, decimals uint8) *Quote {
	return &Quote{
		Decimals:     decimals,
		AmountIn:     new(big.Int).Set(units),
		AmountOutMin: MinReceive(units, c.slippage),
	}
}

// ToSmallestUnit scales a human amount by 10^decimals, truncating any precision
// the token cannot represent.
func ToSmallestUnit(human *big.Rat, decimals uint8) *big.Int {
	scaled := new(big.Rat).Mul(human, new(big.Rat).SetInt(pow10(decimals)))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}

// MinReceive returns units - units*slippage rounded half up, on the same scale as units.
// The result never exceeds units.
func MinReceive(units *big.Int, slippage *big.Rat) *big.Int {
	u := new(big.Rat).SetInt(units)
	loss := new(big.Rat).Mul(u, slippage)
	minimum := new(big.Rat).Sub(u, loss)

	// floor(x + 1/2) for x >= 0: (2*num + den) / (2*den)
	num := new(big.Int).Lsh(minimum.Num(), 1)
	num.Add(num, minimum.Denom())
	den := new(big.Int).Lsh(minimum.Denom(), 1)
	out := new(big.Int).Quo(num, den)

	if out.Cmp(units) > 0 {
		out.Set(units)
	}
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

// FromSmallestUnit formats units as a decimal string without trailing zeros.
func FromSmallestUnit(units *big.Int, decimals uint8) string {
	if units == nil {
		return "0"
	}
	s := new(big.Rat).SetFrac(units, pow10(decimals)).FloatString(int(decimals))
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// ToFloat converts units to a float for display and metrics only.
func ToFloat(units *big.Int, decimals uint8) float64 {
	f, _ := new(big.Rat).SetFrac(units, pow10(decimals)).Float64()
	return f
}

// ParseHuman parses a decimal string such as "100" or "99.5".
func ParseHuman(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok || r.Sign() < 0 {
		return nil, errors.Wrapf(commonerrors.ErrInvalidConfig, "bad amount %q", s)
	}
	return r, nil
}

// RandomAmount draws a human amount uniformly from [min, max] with the given number of decimal places.
//
// Parameters:
// - min: the lower bound in whole tokens.
// - max: the upper bound in whole tokens.
// - precision: decimal places of the result.
//
// Returns:
// - *big.Rat: the drawn amount.
func RandomAmount(min, max float64, precision uint8) *big.Rat {
	if max < min {
		min, max = max, min
	}
	step := pow10(precision).Int64()
	lo := int64(math.Round(min * float64(step)))
	hi := int64(math.Round(max * float64(step)))
	v := lo
	if hi > lo {
		v = lo + rand.Int64N(hi-lo+1)
	}
	return new(big.Rat).SetFrac64(v, step)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
