// Package route maps short route codes such as "pa" onto source and destination chains
// and resolves them into bridging legs.
package route

import (
	"strings"

	"github.com/ClipFinance/stargate-bridger/amount"
	"github.com/ClipFinance/stargate-bridger/chainmanager"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/pkg/errors"
)

// Route is a directed pair of chains.
type Route struct {
	Code        string          // Short code, e.g. "pa".
	Source      types.ChainName // Chain funds leave from.
	Destination types.ChainName // Chain funds arrive on.
}

// String returns the long form, e.g. "polygon-avalanche".
func (r Route) String() string {
	return r.Source.String() + "-" + r.Destination.String()
}

// Refuelable reports whether native refuel is offered between both chains.
func (r Route) Refuelable() bool {
	return r.Source != types.Fantom && r.Destination != types.Fantom
}

var table = []Route{
	{"pf", types.Polygon, types.Fantom},
	{"pa", types.Polygon, types.Avalanche},
	{"pb", types.Polygon, types.BSC},
	{"parb", types.Polygon, types.Arbitrum},
	{"po", types.Polygon, types.Optimism},
	{"pbase", types.Polygon, types.Base},
	{"fp", types.Fantom, types.Polygon},
	{"fa", types.Fantom, types.Avalanche},
	{"fb", types.Fantom, types.BSC},
	{"ap", types.Avalanche, types.Polygon},
	{"af", types.Avalanche, types.Fantom},
	{"ab", types.Avalanche, types.BSC},
	{"aarb", types.Avalanche, types.Arbitrum},
	{"ao", types.Avalanche, types.Optimism},
	{"abase", types.Avalanche, types.Base},
	{"bp", types.BSC, types.Polygon},
	{"bf", types.BSC, types.Fantom},
	{"ba", types.BSC, types.Avalanche},
	{"barb", types.BSC, types.Arbitrum},
	{"bo", types.BSC, types.Optimism},
	{"bbase", types.BSC, types.Base},
	{"arbp", types.Arbitrum, types.Polygon},
	{"arba", types.Arbitrum, types.Avalanche},
	{"arbb", types.Arbitrum, types.BSC},
	{"arbo", types.Arbitrum, types.Optimism},
	{"arbbase", types.Arbitrum, types.Base},
	{"op", types.Optimism, types.Polygon},
	{"oa", types.Optimism, types.Avalanche},
	{"ob", types.Optimism, types.BSC},
	{"oarb", types.Optimism, types.Arbitrum},
	{"obase", types.Optimism, types.Base},
	{"basep", types.Base, types.Polygon},
	{"basea", types.Base, types.Avalanche},
	{"baseb", types.Base, types.BSC},
	{"basearb", types.Base, types.Arbitrum},
	{"baseo", types.Base, types.Optimism},
}

// All returns every supported route in a stable order.
func All() []Route {
	out := make([]Route, len(table))
	copy(out, table)
	return out
}

// Parse looks up a route code.
//
// Parameters:
// - code: the short code, case-insensitive.
//
// Returns:
// - Route: the route.
// - error: ErrMissingRoute for an empty code, ErrInvalidRoute for an unknown one.
func Parse(code string) (Route, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return Route{}, commonerrors.ErrMissingRoute
	}
	for _, r := range table {
		if r.Code == code {
			return r, nil
		}
	}
	return Route{}, errors.Wrapf(commonerrors.ErrInvalidRoute, "%q", code)
}

// ParseRefuel looks up a route code that supports native refuel.
func ParseRefuel(code string) (Route, error) {
	r, err := Parse(code)
	if err != nil {
		return Route{}, err
	}
	if !r.Refuelable() {
		return Route{}, errors.Wrapf(commonerrors.ErrInvalidRoute, "%q: %v", code, commonerrors.ErrRefuelUnsupported)
	}
	return r, nil
}

// Describe lists routes as "code: long-form" lines for usage output.
func Describe(routes []Route) string {
	var b strings.Builder
	for _, r := range routes {
		b.WriteString("  ")
		b.WriteString(r.Code)
		b.WriteString(": ")
		b.WriteString(r.String())
		b.WriteString("\n")
	}
	return b.String()
}

// Refuelable returns the routes that support native refuel.
func Refuelable() []Route {
	var out []Route
	for _, r := range table {
		if r.Refuelable() {
			out = append(out, r)
		}
	}
	return out
}

// Leg is a route resolved against the chain table.
//
// Fields:
// - Route: the route.
// - Token: the token sent from the source chain.
// - TokenAddress: its contract on the source chain.
// - DstLayerZeroID: the LayerZero id of the destination.
// - SrcPoolID: the Stargate pool of the source token.
// - DstPoolID: the Stargate pool of the token received on the destination.
type Leg struct {
	Route          Route
	Token          *types.Token
	TokenAddress   string
	DstLayerZeroID uint16
	SrcPoolID      uint64
	DstPoolID      uint64
}

// Resolve binds a route to tokens and pools. The source sends its bridge token and the
// destination receives into the pool of its own bridge token.
//
// Parameters:
// - defs: the chain and token table.
// - r: the route.
//
// Returns:
// - *Leg: the resolved leg.
// - error: ErrChainNotFound or ErrTokenNotSupported.
func Resolve(defs *chainmanager.Definitions, r Route) (*Leg, error) {
	srcToken, srcAddr, err := defs.BridgeToken(r.Source)
	if err != nil {
		return nil, errors.Wrapf(err, "route %s", r.Code)
	}
	dstToken, _, err := defs.BridgeToken(r.Destination)
	if err != nil {
		return nil, errors.Wrapf(err, "route %s", r.Code)
	}
	dst, err := defs.Chain(r.Destination)
	if err != nil {
		return nil, err
	}

	return &Leg{
		Route:          r,
		Token:          srcToken,
		TokenAddress:   srcAddr,
		DstLayerZeroID: dst.LayerZeroChainID,
		SrcPoolID:      srcToken.PoolID,
		DstPoolID:      dstToken.PoolID,
	}, nil
}

// Request builds the transfer of q from wallet along the leg.
func (l *Leg) Request(wallet string, q *amount.Quote) *types.TransferRequest {
	return &types.TransferRequest{
		Source:         l.Route.Source,
		Destination:    l.Route.Destination,
		Token:          l.Token.Symbol,
		TokenAddress:   l.TokenAddress,
		Wallet:         wallet,
		DstLayerZeroID: l.DstLayerZeroID,
		SrcPoolID:      l.SrcPoolID,
		DstPoolID:      l.DstPoolID,
		HumanAmount:    q.HumanAmountIn(),
		AmountIn:       q.AmountIn,
		AmountOutMin:   q.AmountOutMin,
		Decimals:       q.Decimals,
	}
}
