package simulator

import (
	"encoding/hex"
	"fmt"

	"github.com/assay-gate/assay/internal/abi"
)

// Well-known Solidity revert-encoding selectors, computed the same way
// as every other selector in this module rather than transcribed as
// literals (internal/abi's "no fake hashing" rule cuts both ways: get
// the real hash, but get it from the real algorithm, not from memory).
var (
	errorStringSelector  = abi.Selector("Error(string)")
	panicUint256Selector = abi.Selector("Panic(uint256)")
)

// DecodeRevertReason implements §4.5 step 5's revert-reason extraction:
// decode Error(string) or Panic(uint256), otherwise report the raw
// custom-error selector.
func DecodeRevertReason(data []byte) string {
	if len(data) < 4 {
		return "reverted with no reason"
	}
	selector := "0x" + hex.EncodeToString(data[:4])
	switch selector {
	case errorStringSelector:
		values, _, err := abi.DecodeArgs(data[4:], []abi.Param{{Name: "reason", Type: abi.TString}})
		if err == nil {
			if v, ok := values["reason"]; ok {
				return v.Str
			}
		}
		return "revert (unparseable Error(string) payload)"
	case panicUint256Selector:
		values, _, err := abi.DecodeArgs(data[4:], []abi.Param{{Name: "code", Type: abi.TUint256}})
		if err == nil {
			if v, ok := values["code"]; ok && v.Uint != nil {
				return fmt.Sprintf("panic: code 0x%x", v.Uint)
			}
		}
		return "panic (unparseable Panic(uint256) payload)"
	default:
		return "Custom error " + selector
	}
}
