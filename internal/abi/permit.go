package abi

import "strings"

// TypedData is a minimal EIP-712 typed-data document: just enough of the
// structure assay needs to classify permit-like payloads and read the
// handful of fields its findings depend on (§9 Design Notes: classify by
// (domain.name?, primaryType, types[...]) rather than by inspecting
// values).
type TypedData struct {
	Domain      TypedDataDomain
	PrimaryType string
	Types       map[string][]TypedDataField
	Message     map[string]any
}

type TypedDataDomain struct {
	Name string
}

type TypedDataField struct {
	Name string
	Type string
}

// PermitSchema names a registered permit-like schema.
type PermitSchema string

const (
	SchemaEIP2612       PermitSchema = "eip2612-permit"
	SchemaPermit2Single  PermitSchema = "permit2-single"
	SchemaPermit2Batch   PermitSchema = "permit2-batch"
	SchemaNone           PermitSchema = ""
)

// ClassifyPermit matches (primaryType, types) against the small registry
// of known permit schemas.
func ClassifyPermit(td TypedData) PermitSchema {
	switch td.PrimaryType {
	case "Permit":
		if _, ok := td.Types["Permit"]; ok {
			return SchemaEIP2612
		}
	case "PermitSingle":
		if _, ok := td.Types["PermitSingle"]; ok {
			return SchemaPermit2Single
		}
	case "PermitBatch":
		if _, ok := td.Types["PermitBatch"]; ok {
			return SchemaPermit2Batch
		}
	}
	return SchemaNone
}

// IsPermitLike reports whether td matches one of the registered permit
// schemas; it is equivalent to ClassifyPermit(td) != SchemaNone. The
// domain name is not consulted.
func IsPermitLike(td TypedData) bool {
	if ClassifyPermit(td) == SchemaNone {
		return false
	}
	return true
}

// KnownSpenders returns the per-chain well-known router/permit contracts
// whitelisted as "not a drainer" for simulation-verdict heuristics
// (glossary: "Known spender"). Permit2 is first-class everywhere it is
// deployed at the same address.
func KnownSpenders(chainID int64) map[string]bool {
	permit2 := "0x000000000022d473030f116ddee9f6b43ac78ba3"
	universalRouter := "0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45"
	set := map[string]bool{
		permit2:         true,
		universalRouter: true,
	}
	switch chainID {
	case 1:
		set["0x7a250d5630b4cf539739df2c5dacb4c659f2488d"] = true // Uniswap V2 router
		set["0xe592427a0aece92de3edee1f18e0157c05861564"] = true // Uniswap V3 router
		set["0x7d2768de32b0b80b7a3454c06bdac94a69ddc7a9"] = true // Aave V2 lending pool
		set["0x87870bca3f3fd6335c3f4ce8392d69350b4fa4e2"] = true // Aave V3 pool
	}
	return set
}

func normalizeSpender(addr string) string {
	return strings.ToLower(addr)
}
