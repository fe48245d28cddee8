package route

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ClipFinance/stargate-bridger/amount"
	"github.com/ClipFinance/stargate-bridger/chainmanager"
	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
)

func TestTableShape(t *testing.T) {
	routes := All()
	if len(routes) != 36 {
		t.Fatalf("routes = %d, want 36", len(routes))
	}
	if n := len(Refuelable()); n != 30 {
		t.Errorf("refuelable routes = %d, want 30", n)
	}

	seen := map[string]bool{}
	for _, r := range routes {
		if seen[r.Code] {
			t.Errorf("duplicate code %q", r.Code)
		}
		seen[r.Code] = true
		if r.Source == r.Destination {
			t.Errorf("%s loops onto itself", r.Code)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		code    string
		want    string
		wantErr error
	}{
		{code: "pa", want: "polygon-avalanche"},
		{code: " ARBB ", want: "arbitrum-bsc"},
		{code: "baseo", want: "base-optimism"},
		{code: "", wantErr: commonerrors.ErrMissingRoute},
		{code: "xx", wantErr: commonerrors.ErrInvalidRoute},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r, err := Parse(tt.code)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if r.String() != tt.want {
				t.Errorf("route = %s, want %s", r, tt.want)
			}
		})
	}
}

func TestParseRefuelRejectsFantom(t *testing.T) {
	if _, err := ParseRefuel("pf"); !errors.Is(err, commonerrors.ErrInvalidRoute) {
		t.Errorf("pf error = %v", err)
	}
	if _, err := ParseRefuel("pa"); err != nil {
		t.Errorf("pa error = %v", err)
	}
}

func TestDescribe(t *testing.T) {
	out := Describe(All())
	if !strings.Contains(out, "  pa: polygon-avalanche\n") {
		t.Errorf("usage misses pa:\n%s", out)
	}
}

func TestResolvePools(t *testing.T) {
	defs := chainmanager.DefaultDefinitions()

	tests := []struct {
		code        string
		token       types.TokenSymbol
		srcPool     uint64
		dstPool     uint64
		layerZeroID uint16
	}{
		{"pa", types.USDC, 1, 1, 106},
		{"ab", types.USDC, 1, 2, 102},
		{"bp", types.USDT, 2, 1, 109},
		{"arbb", types.USDT, 2, 2, 102},
		{"basep", types.USDC, 1, 1, 109},
		{"obase", types.USDC, 1, 1, 184},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r, _ := Parse(tt.code)
			leg, err := Resolve(defs, r)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if leg.Token.Symbol != tt.token || leg.SrcPoolID != tt.srcPool || leg.DstPoolID != tt.dstPool {
				t.Errorf("got %s %d -> %d", leg.Token.Symbol, leg.SrcPoolID, leg.DstPoolID)
			}
			if leg.DstLayerZeroID != tt.layerZeroID {
				t.Errorf("layerzero id = %d, want %d", leg.DstLayerZeroID, tt.layerZeroID)
			}
			if leg.TokenAddress == "" {
				t.Error("empty token address")
			}
		})
	}
}

func TestEveryRouteResolves(t *testing.T) {
	defs := chainmanager.DefaultDefinitions()
	for _, r := range All() {
		if _, err := Resolve(defs, r); err != nil {
			t.Errorf("%s: %v", r.Code, err)
		}
	}
}

func TestLegRequest(t *testing.T) {
	r, _ := Parse("pa")
	leg, _ := Resolve(chainmanager.DefaultDefinitions(), r)
	calc, _ := amount.NewCalculator(0.005)
	q := calc.FromBalance(big.NewInt(100_000_000), 6)

	req := leg.Request("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", q)
	if req.HumanAmount != "100" || req.AmountOutMin.Int64() != 99_500_000 {
		t.Errorf("request amounts = %s / %s", req.HumanAmount, req.AmountOutMin)
	}

	params := req.SwapParams()
	if params.RefundAddress != req.Wallet || len(params.To) != 20 {
		t.Errorf("swap params = %+v", params)
	}
	if params.DstChainID != 106 || params.SrcPoolID.Int64() != 1 {
		t.Errorf("swap params = %+v", params)
	}
}
