package simulator

import (
	"context"
	"strings"

	"github.com/assay-gate/assay/internal/abi"
)

var (
	symbolSelector   = abi.Selector("symbol()")
	decimalsSelector = abi.Selector("decimals()")
)

// TokenMetadata is the §4.5 step 10 enrichment: symbol/decimals, read
// string-ABI first then the legacy bytes32-return fallback, then give up
// (never treated as fatal to the rest of the simulation).
type TokenMetadata struct {
	Symbol      string
	Decimals    int
	HasDecimals bool
}

// ReadTokenMetadata implements §4.5 step 10. blockNumber == "" reads at
// latest; failures are swallowed into a zero-value TokenMetadata so a
// single unreadable token never fails the whole simulation.
func ReadTokenMetadata(ctx context.Context, node AnvilInstance, token, blockNumber string) TokenMetadata {
	var meta TokenMetadata

	if data, err := node.ReadContract(ctx, token, symbolSelector, blockNumber); err == nil {
		if s, ok := decodeStringReturn(data); ok {
			meta.Symbol = s
		} else if s, ok := decodeBytes32Return(data); ok {
			meta.Symbol = s
		}
	}

	if data, err := node.ReadContract(ctx, token, decimalsSelector, blockNumber); err == nil {
		if v, ok := decodeUint8Return(data); ok {
			meta.Decimals = v
			meta.HasDecimals = true
		}
	}

	return meta
}

func decodeStringReturn(data []byte) (string, bool) {
	values, _, err := abi.DecodeArgs(data, []abi.Param{{Name: "v", Type: abi.TString}})
	if err != nil {
		return "", false
	}
	return values["v"].Str, true
}

func decodeBytes32Return(data []byte) (string, bool) {
	values, _, err := abi.DecodeArgs(data, []abi.Param{{Name: "v", Type: abi.TBytes32}})
	if err != nil {
		return "", false
	}
	s := strings.TrimRight(string(values["v"].Bytes), "\x00")
	if s == "" {
		return "", false
	}
	return s, true
}

func decodeUint8Return(data []byte) (int, bool) {
	values, _, err := abi.DecodeArgs(data, []abi.Param{{Name: "v", Type: abi.TUint8}})
	if err != nil || values["v"].Uint == nil {
		return 0, false
	}
	return int(values["v"].Uint.Int64()), true
}

// EnrichAssetChanges fills in symbol/decimals on each ERC-20 change
// (native/721/1155 changes are left alone: §3 AssetChange only carries
// symbol/decimals meaningfully for fungible tokens).
func EnrichAssetChanges(ctx context.Context, node AnvilInstance, changes []AssetChange, cache map[string]TokenMetadata) []AssetChange {
	out := make([]AssetChange, len(changes))
	copy(out, changes)
	for i, c := range out {
		if c.AssetType != AssetERC20 || c.Address == "" {
			continue
		}
		meta, ok := cache[c.Address]
		if !ok {
			meta = ReadTokenMetadata(ctx, node, c.Address, "")
			cache[c.Address] = meta
		}
		out[i].Symbol = meta.Symbol
		out[i].Decimals = meta.Decimals
		out[i].HasDecimals = meta.HasDecimals
	}
	return out
}

// EnrichApprovalChanges is EnrichAssetChanges' counterpart for
// approvals: only erc20/permit2 entries carry a fungible token address.
func EnrichApprovalChanges(ctx context.Context, node AnvilInstance, changes []ApprovalChange, cache map[string]TokenMetadata) []ApprovalChange {
	out := make([]ApprovalChange, len(changes))
	copy(out, changes)
	for i, c := range out {
		if (c.Standard != ApprovalERC20 && c.Standard != ApprovalPermit2) || c.Token == "" {
			continue
		}
		meta, ok := cache[c.Token]
		if !ok {
			meta = ReadTokenMetadata(ctx, node, c.Token, "")
			cache[c.Token] = meta
		}
		out[i].Symbol = meta.Symbol
		out[i].Decimals = meta.Decimals
		out[i].HasDecimals = meta.HasDecimals
	}
	return out
}
