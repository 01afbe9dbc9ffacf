// Package chain enumerates the EVM networks assay knows how to analyze and
// normalizes addresses to the canonical lowercase-hex form used everywhere
// downstream (findings, simulation output, recording bundles).
package chain

import (
	"fmt"
	"strings"
)

// Chain is a closed enum of the supported EVM networks.
type Chain string

const (
	Ethereum Chain = "ethereum"
	Base     Chain = "base"
	Arbitrum Chain = "arbitrum"
	Optimism Chain = "optimism"
	Polygon  Chain = "polygon"
)

// Info is the static metadata associated with a Chain.
type Info struct {
	Chain               Chain
	ChainID             int64
	DefaultRPCURL       string
	ExplorerBase        string
	VerificationChainID int64 // sourcify-style verification service chain id
}

var registry = map[Chain]Info{
	Ethereum: {Ethereum, 1, "https://eth.llamarpc.com", "https://etherscan.io", 1},
	Base:     {Base, 8453, "https://mainnet.base.org", "https://basescan.org", 8453},
	Arbitrum: {Arbitrum, 42161, "https://arb1.arbitrum.io/rpc", "https://arbiscan.io", 42161},
	Optimism: {Optimism, 10, "https://mainnet.optimism.io", "https://optimistic.etherscan.io", 10},
	Polygon:  {Polygon, 137, "https://polygon-rpc.com", "https://polygonscan.com", 137},
}

// Default is the chain used when a scan input does not name one.
const Default = Ethereum

// Parse validates a chain tag, rejecting anything not in the registry.
func Parse(s string) (Chain, error) {
	c := Chain(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := registry[c]; !ok {
		return "", fmt.Errorf("unknown chain %q", s)
	}
	return c, nil
}

// Lookup returns the static Info for a chain. Panics on an invalid Chain
// value since every Chain in circulation must have passed Parse.
func Lookup(c Chain) Info {
	info, ok := registry[c]
	if !ok {
		panic(fmt.Sprintf("chain: no registry entry for %q", c))
	}
	return info
}

// All returns every supported chain, in a fixed deterministic order.
func All() []Chain {
	return []Chain{Ethereum, Base, Arbitrum, Optimism, Polygon}
}

// FromChainID reverse-looks-up a Chain from the numeric chain id an
// upstream node's eth_chainId response carries — the proxy's §4.8 step 6
// "use it for chain inference when calldata lacks one".
func FromChainID(id int64) (Chain, bool) {
	for _, c := range All() {
		if registry[c].ChainID == id {
			return c, true
		}
	}
	return "", false
}

// NormalizeAddress lowercases and validates a 40-hex-digit address,
// tolerating an optional "0x" prefix on input and always emitting one.
func NormalizeAddress(addr string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(addr))
	a = strings.TrimPrefix(a, "0x")
	if len(a) != 40 {
		return "", fmt.Errorf("invalid address %q: want 40 hex digits, got %d", addr, len(a))
	}
	for _, r := range a {
		if !isHex(r) {
			return "", fmt.Errorf("invalid address %q: non-hex character %q", addr, r)
		}
	}
	return "0x" + a, nil
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')
}
