package types

import "strings"

// ChainType represents supported blockchain types
type ChainType string

const (
	// EVM represents Ethereum Virtual Machine based chains (e.g. Polygon, Avalanche, BSC, etc.)
	EVM ChainType = "EVM"
	// UNKNOWN represents unknown or unsupported chain type in the system.
	UNKNOWN ChainType = "UNKNOWN"
)

// String converts ChainType to string representation
func (t ChainType) String() string {
	return string(t)
}

// ParseChainType converts string to ChainType representation.
func ParseChainType(s string) ChainType {
	switch strings.ToUpper(s) {
	case EVM.String():
		return EVM
	default:
		return UNKNOWN
	}
}

// ChainName identifies a network served by the Stargate router.
type ChainName string

const (
	Polygon   ChainName = "polygon"
	Fantom    ChainName = "fantom"
	Avalanche ChainName = "avalanche"
	BSC       ChainName = "bsc"
	Arbitrum  ChainName = "arbitrum"
	Optimism  ChainName = "optimism"
	Base      ChainName = "base"
)

// AllChainNames lists every known network in a stable order.
var AllChainNames = []ChainName{Polygon, Fantom, Avalanche, BSC, Arbitrum, Optimism, Base}

// String converts ChainName to string representation
func (n ChainName) String() string {
	return string(n)
}

// ParseChainName converts a case-insensitive string to a known ChainName.
//
// Parameters:
// - s: the chain name, e.g. "Polygon" or "bsc".
//
// Returns:
// - ChainName: the parsed name.
// - bool: false if the name is not a known network.
func ParseChainName(s string) (ChainName, bool) {
	name := ChainName(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllChainNames {
		if known == name {
			return name, true
		}
	}
	return "", false
}
