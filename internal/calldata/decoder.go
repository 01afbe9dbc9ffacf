// Package calldata implements §4.3's calldata decoder and intent
// builder: selector resolution against known, verified, and offline
// signature sources, standard-ABI argument decoding, recursive
// composite-call unwrapping (multicall / Universal Router execute / Safe
// execTransaction), and the decoder-layer findings those results feed
// into the analyzer (§4.4).
package calldata

import (
	"encoding/hex"
	"strings"

	"github.com/assay-gate/assay/internal/abi"
	"github.com/assay-gate/assay/internal/finding"
)

// Source names where a DecodedCall's signature came from.
type Source string

const (
	SourceKnown         Source = "known"
	SourceVerified       Source = "verified"
	SourceLocalSelector  Source = "local-selector"
	SourceUnknown        Source = "unknown"
	SourceEmpty          Source = "empty"
)

// DecodedCall is one decoded function call — the top-level call on a
// transaction, or one unwrapped from a composite call.
type DecodedCall struct {
	Selector  string
	Signature string
	Name      string
	Standard  string
	Source    Source
	Args      map[string]abi.Value
	ArgOrder  []string
	Inner     []DecodedCall // multicall/execute/execTransaction sub-calls
}

// Decode resolves and decodes calldata, returning the top-level decoded
// call and the findings its resolution implies. verifiedSelectors is the
// selector index built from a verified contract's ABI (via
// abi.BuildSelectorIndex), or nil when no verified ABI is available.
func Decode(data []byte, verifiedSelectors map[string]abi.Signature) (DecodedCall, []finding.Finding) {
	if len(data) == 0 {
		return DecodedCall{Source: SourceEmpty}, []finding.Finding{
			{Level: finding.LevelInfo, Code: "CALLDATA_EMPTY", Message: "transaction carries no calldata (plain value transfer or contract creation with no constructor args)"},
		}
	}
	if len(data) < 4 {
		return DecodedCall{Source: SourceUnknown}, []finding.Finding{
			{Level: finding.LevelInfo, Code: "CALLDATA_UNKNOWN_SELECTOR", Message: "calldata shorter than a 4-byte selector", Details: map[string]any{"length": len(data)}},
		}
	}

	selector := "0x" + hex.EncodeToString(data[:4])
	call, findings := decodeTop(selector, data[4:], verifiedSelectors)
	call.Inner = decodeInner(call, verifiedSelectors)
	return call, findings
}

func decodeTop(selector string, args []byte, verifiedSelectors map[string]abi.Signature) (DecodedCall, []finding.Finding) {
	if sig, ok := abi.KnownSignatures[selector]; ok {
		return decodeAgainst(selector, sig, args, SourceKnown)
	}
	if verifiedSelectors != nil {
		if sig, ok := verifiedSelectors[selector]; ok {
			return decodeAgainst(selector, sig, args, SourceVerified)
		}
	}
	if sig, ok := abi.LocalSelectorDB[selector]; ok {
		call := DecodedCall{Selector: selector, Signature: sig, Name: functionNameOf(sig), Source: SourceLocalSelector}
		return call, []finding.Finding{
			{Level: finding.LevelInfo, Code: "CALLDATA_SIGNATURES", Message: "calldata matched a known function signature without a full decode template: " + sig, Details: map[string]any{"signature": sig}},
		}
	}
	return DecodedCall{Selector: selector, Source: SourceUnknown}, []finding.Finding{
		{Level: finding.LevelWarning, Code: "CALLDATA_UNKNOWN_SELECTOR", Message: "calldata selector " + selector + " did not match any known, verified, or local signature", Details: map[string]any{"selector": selector}},
	}
}

func decodeAgainst(selector string, sig abi.Signature, args []byte, source Source) (DecodedCall, []finding.Finding) {
	call := DecodedCall{Selector: selector, Signature: sig.Signature, Name: sig.Name, Standard: sig.Standard, Source: source}
	if sig.Params == nil {
		return call, []finding.Finding{
			{Level: finding.LevelInfo, Code: "CALLDATA_SIGNATURES", Message: "calldata matched " + sig.Signature + " (no arguments)", Details: map[string]any{"signature": sig.Signature}},
		}
	}
	values, order, err := abi.DecodeArgs(args, sig.Params)
	if err != nil {
		return call, []finding.Finding{
			{Level: finding.LevelWarning, Code: "CALLDATA_UNKNOWN_SELECTOR", Message: "matched signature " + sig.Signature + " but argument decoding failed: " + err.Error(), Details: map[string]any{"signature": sig.Signature}},
		}
	}
	call.Args = values
	call.ArgOrder = order
	return call, []finding.Finding{
		{Level: finding.LevelInfo, Code: "CALLDATA_DECODED", Message: "decoded call to " + sig.Name + " (" + sig.Signature + ")", Details: map[string]any{"signature": sig.Signature, "standard": sig.Standard, "args": argDetails(values)}},
	}
}

// argDetails projects decoded args down to the plain-value map the §4.7
// allowlist evaluator reads spender/operator addresses from (and the scan
// response ultimately serializes): addresses as-is, uints as decimal
// strings, everything else via its own decimal/string rendering.
func argDetails(values map[string]abi.Value) map[string]any {
	out := make(map[string]any, len(values))
	for name, v := range values {
		switch v.Kind {
		case abi.KindAddress:
			out[name] = v.Address
		case abi.KindBool:
			out[name] = v.Bool
		default:
			out[name] = v.ToDecimalString()
		}
	}
	return out
}

func functionNameOf(signature string) string {
	if i := strings.Index(signature, "("); i > 0 {
		return signature[:i]
	}
	return signature
}

// decodeInner recurses into composite calls per §4.3 step 4: multicall's
// bytes[] payload, Universal Router's execute(bytes,bytes[],uint256)
// inputs, and Safe's execTransaction/legacy execute "data" field each
// wrap further calldata that gets decoded the same way, recursively (an
// inner composite call has its own inner calls unwrapped in turn).
func decodeInner(call DecodedCall, verifiedSelectors map[string]abi.Signature) []DecodedCall {
	switch {
	case call.Name == "multicall" && hasBytesArrayArg(call, "data"):
		return decodeBytesArray(call.Args["data"], verifiedSelectors)
	case call.Name == "execute" && call.Standard == "universal-router":
		return decodeBytesArray(call.Args["inputs"], verifiedSelectors)
	case call.Name == "execTransaction" || (call.Name == "execute" && call.Standard == "safe-exec-legacy"):
		if v, ok := call.Args["data"]; ok && v.Kind == abi.KindBytes {
			inner, _ := Decode(v.Bytes, verifiedSelectors)
			return []DecodedCall{inner}
		}
	}
	return nil
}

func hasBytesArrayArg(call DecodedCall, name string) bool {
	v, ok := call.Args[name]
	return ok && v.Kind == abi.KindArray
}

func decodeBytesArray(v abi.Value, verifiedSelectors map[string]abi.Signature) []DecodedCall {
	if v.Kind != abi.KindArray {
		return nil
	}
	out := make([]DecodedCall, 0, len(v.Array))
	for _, elem := range v.Array {
		if elem.Kind != abi.KindBytes {
			continue
		}
		inner, _ := Decode(elem.Bytes, verifiedSelectors)
		out = append(out, inner)
	}
	return out
}
