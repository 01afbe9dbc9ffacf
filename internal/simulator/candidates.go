package simulator

import "github.com/assay-gate/assay/internal/chain"

// wrappedNative is the §4.5 step 3 "curated WETH-class token per chain":
// the wrapped-native contract address, always included in the balance
// read candidate set since almost every swap/bridge path touches it even
// when it isn't the call target.
var wrappedNative = map[chain.Chain]string{
	chain.Ethereum: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
	chain.Base:     "0x4200000000000000000000000000000000000006",
	chain.Arbitrum: "0x82af49447d8a07e3bd95bd0d56f35241523fbab1",
	chain.Optimism: "0x4200000000000000000000000000000000000006",
	chain.Polygon:  "0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270",
}

// CandidateTokens implements §4.5 step 3: the curated wrapped-native
// token plus, when the call target looks like an ERC-20 standard call,
// the target itself.
func CandidateTokens(c chain.Chain, to string, targetIsERC20 bool) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(addr string) {
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		out = append(out, addr)
	}
	add(wrappedNative[c])
	if targetIsERC20 {
		add(to)
	}
	return out
}
