package abi

import (
	"encoding/json"
	"strings"
)

// ABIEntry is the slice of a Solidity JSON ABI entry the decoder needs:
// enough to build a canonical signature and a Param decode template for
// "function" entries. Sourcify and Etherscan both hand back this shape
// (Sourcify as parsed JSON, Etherscan as a JSON string assay parses the
// same way).
type ABIEntry struct {
	Type            string     `json:"type"`
	Name            string     `json:"name"`
	Inputs          []ABIInput `json:"inputs"`
	StateMutability string     `json:"stateMutability"`
}

type ABIInput struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Components []ABIInput `json:"components"`
}

// ParseABI unmarshals a verified contract's raw JSON ABI (as returned by
// the Sourcify and Etherscan adapters) into the entry list
// BuildSelectorIndex consumes.
func ParseABI(raw json.RawMessage) ([]ABIEntry, error) {
	var entries []ABIEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// BuildSelectorIndex computes the selector for every function entry in a
// verified ABI and returns a Signature map keyed the same way as
// KnownSignatures, so the decoder can try both with one lookup path
// (§4.3 step 2b: verified-contract ABI).
func BuildSelectorIndex(entries []ABIEntry) map[string]Signature {
	out := make(map[string]Signature, len(entries))
	for _, e := range entries {
		if e.Type != "" && e.Type != "function" {
			continue
		}
		if e.Name == "" {
			continue
		}
		sig := canonicalSignature(e.Name, e.Inputs)
		params, ok := toParams(e.Inputs)
		if !ok {
			// Parameter shape assay doesn't decode (deeply nested tuples,
			// fixed-size arrays, etc.) — still register the signature so
			// CALLDATA_SIGNATURES can name the call, just without args.
			out[Selector(sig)] = Signature{Selector: Selector(sig), Signature: sig, Name: e.Name, Standard: "verified"}
			continue
		}
		out[Selector(sig)] = Signature{Selector: Selector(sig), Signature: sig, Name: e.Name, Standard: "verified", Params: params}
	}
	return out
}

func canonicalSignature(name string, inputs []ABIInput) string {
	parts := make([]string, 0, len(inputs))
	for _, in := range inputs {
		parts = append(parts, in.Type)
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

// toParams converts ABI input types into the decoder's Param list; it
// reports ok=false if any input uses a type assay's decoder doesn't
// support, so the caller can still register the signature name-only.
func toParams(inputs []ABIInput) ([]Param, bool) {
	out := make([]Param, 0, len(inputs))
	for _, in := range inputs {
		pt, ok := mapParamType(in.Type)
		if !ok {
			return nil, false
		}
		out = append(out, Param{Name: in.Name, Type: pt})
	}
	return out, true
}

func mapParamType(t string) (ParamType, bool) {
	switch t {
	case "address":
		return TAddress, true
	case "uint256":
		return TUint256, true
	case "uint8":
		return TUint8, true
	case "bool":
		return TBool, true
	case "bytes32":
		return TBytes32, true
	case "bytes":
		return TBytes, true
	case "string":
		return TString, true
	case "address[]":
		return TAddressArr, true
	case "uint256[]":
		return TUint256Arr, true
	case "bytes[]":
		return TBytesArr, true
	default:
		return "", false
	}
}
