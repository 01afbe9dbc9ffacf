package abi

// LocalSelectorDB is the offline fallback of §4.3 step 2c: a small,
// bundled selector-to-signature map for common functions that aren't in
// KnownSignatures (because assay doesn't ship a full decode template for
// them) and weren't resolved via a verified contract ABI. Entries here
// carry only the signature string, not a parameter decode template —
// DecodedCall.Args is empty and the intent builder renders the call as
// "Call <signature>" (e.g. "Call balanceOf(address)").
var LocalSelectorDB = map[string]string{
	"0x70a08231": "balanceOf(address)",
	"0xdd62ed3e": "allowance(address,address)",
	"0x18160ddd": "totalSupply()",
	"0x06fdde03": "name()",
	"0x95d89b41": "symbol()",
	"0x313ce567": "decimals()",
	"0xe8e33700": "addLiquidity(address,address,uint256,uint256,uint256,uint256,address,uint256)",
	"0x7ff36ab5": "swapExactETHForTokens(uint256,address[],address,uint256)",
	"0x38ed1739": "swapExactTokensForTokens(uint256,uint256,address[],address,uint256)",
	"0x022c0d9f": "swap(uint256,uint256,address,bytes)",
	"0x5ae401dc": "multicall(uint256,bytes[])",
	"0x0902f1ac": "getReserves()",
}
