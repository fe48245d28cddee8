package types

import "strings"

// TokenSymbol names a bridgeable stablecoin.
type TokenSymbol string

const (
	USDC TokenSymbol = "USDC"
	USDT TokenSymbol = "USDT"
)

// Token describes a stablecoin and its Stargate liquidity pool.
//
// Fields:
// - Symbol: the token symbol.
// - PoolID: the Stargate pool identifier, shared by every chain holding the token.
// - Addresses: the token contract per chain. A chain missing from the map does not carry the token.
type Token struct {
	Symbol    TokenSymbol
	PoolID    uint64
	Addresses map[ChainName]string
}

// AddressOn returns the token contract on the given chain.
//
// Parameters:
// - chain: the chain to look up.
//
// Returns:
// - string: the contract address.
// - bool: false if the token is not deployed on the chain.
func (t *Token) AddressOn(chain ChainName) (string, bool) {
	addr, ok := t.Addresses[chain]
	return addr, ok && strings.TrimSpace(addr) != ""
}
