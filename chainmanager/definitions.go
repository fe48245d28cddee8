package chainmanager

import (
	"strings"

	commonerrors "github.com/ClipFinance/stargate-bridger/common/errors"
	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const (
	stargatePoolUSDC uint64 = 1
	stargatePoolUSDT uint64 = 2

	defaultRefuelAddress = "0xAC313d7491910516E06FBfC2A0b5BB49bb072D91"
	baseRefuelAddress    = "0xE8c5b8488FeaFB5df316Be73EdE3bDC26571A773"
)

// Definitions is the chain and token table of a run. It is built once at startup,
// adjusted by configuration overrides and then only read.
type Definitions struct {
	Chains map[types.ChainName]*types.ChainConfig // Chain configurations by name.
	Tokens map[types.TokenSymbol]*types.Token     // Bridgeable tokens by symbol.
}

// Override replaces selected fields of a chain definition. Zero values keep the default.
type Override struct {
	RpcUrl             string  `yaml:"rpc_url"`
	TxType             *uint64 `yaml:"tx_type"`
	GasPriceMultiplier uint64  `yaml:"gas_price_multiplier"`
	SwapGasLimit       uint64  `yaml:"swap_gas_limit"`
	RouterAddress      string  `yaml:"router_address"`
	RefuelAddress      string  `yaml:"refuel_address"`
	ExplorerHost       string  `yaml:"explorer_host"`
}

// DefaultDefinitions returns a fresh copy of the built-in Stargate networks and tokens.
//
// Returns:
// - *Definitions: the table, safe to modify before it is shared.
func DefaultDefinitions() *Definitions {
	usdc := &types.Token{
		Symbol: types.USDC,
		PoolID: stargatePoolUSDC,
		Addresses: map[types.ChainName]string{
			types.Polygon:   "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
			types.Fantom:    "0x04068DA6C83AFCFA0e13ba15A6696662335D5B75",
			types.Avalanche: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
			types.Arbitrum:  "0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8",
			types.Optimism:  "0x7F5c764cBc14f9669B88837ca1490cCa17c31607",
			types.Base:      "0xd9aAEc86B65D86f6A7B5B1b0c42FFA531710b6CA",
		},
	}
	usdt := &types.Token{
		Symbol: types.USDT,
		PoolID: stargatePoolUSDT,
		Addresses: map[types.ChainName]string{
			types.Polygon:   "0xc2132D05D31c914a87C6611C10748AEb04B58e8F",
			types.Avalanche: "0x9702230A8Ea53601f5cD2dc00fDBc13d4dF4A8c7",
			types.BSC:       "0x55d398326f99059fF775485246999027B3197955",
			types.Arbitrum:  "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9",
		},
	}

	chains := []*types.ChainConfig{
		{
			Name:             types.Polygon,
			ChainID:          137,
			RpcUrl:           "https://polygon-rpc.com/",
			NativeSymbol:     "MATIC",
			RouterAddress:    "0x45A01E4e04F14f7A4a6702c74187c5F6222033cd",
			LayerZeroChainID: 109,
			SwapGasLimit:     500_000,
			ExplorerHost:     "polygonscan.com",
			BridgeToken:      types.USDC,
			RefuelAddress:    defaultRefuelAddress,
		},
		{
			Name:             types.Fantom,
			ChainID:          250,
			RpcUrl:           "https://rpc.ftm.tools/",
			NativeSymbol:     "FTM",
			RouterAddress:    "0xAf5191B0De278C7286d6C7CC6ab6BB8A73bA2Cd6",
			LayerZeroChainID: 112,
			SwapGasLimit:     600_000,
			ExplorerHost:     "ftmscan.com",
			BridgeToken:      types.USDC,
		},
		{
			Name:             types.Avalanche,
			ChainID:          43114,
			RpcUrl:           "https://api.avax.network/ext/bc/C/rpc",
			NativeSymbol:     "AVAX",
			RouterAddress:    "0x45A01E4e04F14f7A4a6702c74187c5F6222033cd",
			LayerZeroChainID: 106,
			SwapGasLimit:     500_000,
			ExplorerHost:     "snowtrace.io",
			BridgeToken:      types.USDC,
			RefuelAddress:    defaultRefuelAddress,
		},
		{
			Name:             types.BSC,
			ChainID:          56,
			RpcUrl:           "https://bsc-dataseed1.defibit.io/",
			NativeSymbol:     "BNB",
			RouterAddress:    "0x4a364f8c717cAAD9A442737Eb7b8A55cc6cf18D8",
			LayerZeroChainID: 102,
			SwapGasLimit:     400_000,
			ExplorerHost:     "bscscan.com",
			BridgeToken:      types.USDT,
			RefuelAddress:    defaultRefuelAddress,
		},
		{
			Name:             types.Arbitrum,
			ChainID:          42161,
			RpcUrl:           "https://arb1.arbitrum.io/rpc",
			NativeSymbol:     "ETH",
			RouterAddress:    "0x53Bf833A5d6c4ddA888F69c22C88C9f356a41614",
			LayerZeroChainID: 110,
			SwapGasLimit:     700_000,
			ExplorerHost:     "arbiscan.io",
			BridgeToken:      types.USDT,
			RefuelAddress:    defaultRefuelAddress,
		},
		{
			Name:             types.Optimism,
			ChainID:          10,
			RpcUrl:           "https://mainnet.optimism.io",
			NativeSymbol:     "ETH",
			RouterAddress:    "0xB0D502E938ed5f4df2E681fE6E419ff29631d62b",
			LayerZeroChainID: 111,
			SwapGasLimit:     500_000,
			ExplorerHost:     "optimistic.etherscan.io",
			BridgeToken:      types.USDC,
			RefuelAddress:    defaultRefuelAddress,
		},
		{
			Name:             types.Base,
			ChainID:          8453,
			RpcUrl:           "https://mainnet.base.org",
			NativeSymbol:     "ETH",
			RouterAddress:    "0x45f1A95A4D3f3836523F5c83673c797f4d4d263B",
			LayerZeroChainID: 184,
			SwapGasLimit:     500_000,
			ExplorerHost:     "basescan.org",
			BridgeToken:      types.USDC,
			RefuelAddress:    baseRefuelAddress,
		},
	}

	defs := &Definitions{
		Chains: make(map[types.ChainName]*types.ChainConfig, len(chains)),
		Tokens: map[types.TokenSymbol]*types.Token{types.USDC: usdc, types.USDT: usdt},
	}
	for _, c := range chains {
		c.ChainType = types.EVM
		c.TxType = types.LegacyTxType
		c.GasPriceMultiplier = 100
		c.Tokens = make(map[types.TokenSymbol]string)
		for symbol, token := range defs.Tokens {
			if addr, ok := token.AddressOn(c.Name); ok {
				c.Tokens[symbol] = addr
			}
		}
		defs.Chains[c.Name] = c
	}
	return defs
}

// Chain returns the configuration of a chain.
//
// Parameters:
// - name: the chain to look up.
//
// Returns:
// - *types.ChainConfig: the configuration.
// - error: ErrChainNotFound if the chain is unknown.
func (d *Definitions) Chain(name types.ChainName) (*types.ChainConfig, error) {
	cfg, ok := d.Chains[name]
	if !ok {
		return nil, errors.Wrapf(commonerrors.ErrChainNotFound, "chain %s", name)
	}
	return cfg, nil
}

// BridgeToken returns the token a chain sends and receives by default.
//
// Parameters:
// - name: the chain to look up.
//
// Returns:
// - *types.Token: the token.
// - string: the token contract on the chain.
// - error: ErrChainNotFound or ErrTokenNotSupported.
func (d *Definitions) BridgeToken(name types.ChainName) (*types.Token, string, error) {
	cfg, err := d.Chain(name)
	if err != nil {
		return nil, "", err
	}
	token, ok := d.Tokens[cfg.BridgeToken]
	if !ok {
		return nil, "", errors.Wrapf(commonerrors.ErrTokenNotSupported, "%s on %s", cfg.BridgeToken, name)
	}
	addr, ok := cfg.TokenAddress(token.Symbol)
	if !ok {
		return nil, "", errors.Wrapf(commonerrors.ErrTokenNotSupported, "%s on %s", token.Symbol, name)
	}
	return token, addr, nil
}

// Apply merges an override into a chain definition.
//
// Parameters:
// - name: the chain to modify.
// - o: the override; empty fields keep their current value.
//
// Returns:
// - error: ErrChainNotFound for unknown chains, ErrInvalidConfig for malformed addresses.
func (d *Definitions) Apply(name types.ChainName, o Override) error {
	cfg, err := d.Chain(name)
	if err != nil {
		return err
	}

	for _, addr := range []string{o.RouterAddress, o.RefuelAddress} {
		if addr != "" && !common.IsHexAddress(addr) {
			return errors.Wrapf(commonerrors.ErrInvalidConfig, "chain %s: bad address %q", name, addr)
		}
	}

	if o.RpcUrl != "" {
		cfg.RpcUrl = strings.TrimSpace(o.RpcUrl)
	}
	if o.TxType != nil {
		if *o.TxType != types.LegacyTxType && *o.TxType != types.DynamicFeeTxType {
			return errors.Wrapf(commonerrors.ErrInvalidConfig, "chain %s: tx type %d", name, *o.TxType)
		}
		cfg.TxType = *o.TxType
	}
	if o.GasPriceMultiplier != 0 {
		cfg.GasPriceMultiplier = o.GasPriceMultiplier
	}
	if o.SwapGasLimit != 0 {
		cfg.SwapGasLimit = o.SwapGasLimit
	}
	if o.RouterAddress != "" {
		cfg.RouterAddress = o.RouterAddress
	}
	if o.RefuelAddress != "" {
		cfg.RefuelAddress = o.RefuelAddress
	}
	if o.ExplorerHost != "" {
		cfg.ExplorerHost = o.ExplorerHost
	}
	return nil
}

// SetRPC applies the same client settings to every chain.
func (d *Definitions) SetRPC(settings types.RPCSettings) {
	for _, cfg := range d.Chains {
		cfg.RPC = settings
	}
}
