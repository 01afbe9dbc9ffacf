package abi

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Selector computes the 4-byte function selector for a canonical
// signature string (e.g. "transfer(address,uint256)") the way the EVM
// does: the first 4 bytes of its Keccak-256 hash. Used to resolve
// verified-contract ABI entries (§4.3 step 2b) where the selector isn't
// already known statically.
func Selector(signature string) string {
	return "0x" + hex.EncodeToString(keccak256(signature)[:4])
}

// EventTopic computes the full 32-byte topic0 for a canonical event
// signature (e.g. "Transfer(address,address,uint256)"), the same way
// Selector derives a function selector, just without truncation. Used by
// the simulator's log parser instead of transcribing the well-known
// topic hashes as literals.
func EventTopic(signature string) string {
	return "0x" + hex.EncodeToString(keccak256(signature))
}

func keccak256(s string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(s))
	return h.Sum(nil)
}

// Signature names one known function: its canonical signature string,
// a human name, and the parameter list used to decode calldata against
// it (§4.3 step 2a: known-standard ABIs).
type Signature struct {
	Selector   string
	Signature  string // e.g. "approve(address,uint256)"
	Name       string
	Params     []Param
	Standard   string // "erc20" | "erc721" | "erc1155" | "permit2" | ...
}

// KnownSignatures is keyed by the real Keccak-256 selector (the standard
// ones are universally published; assay hardcodes them rather than
// computing Keccak at runtime).
var KnownSignatures = map[string]Signature{
	"0x095ea7b3": {
		Selector: "0x095ea7b3", Signature: "approve(address,uint256)", Name: "approve", Standard: "erc20",
		Params: []Param{{Name: "spender", Type: TAddress}, {Name: "amount", Type: TUint256}},
	},
	"0xa9059cbb": {
		Selector: "0xa9059cbb", Signature: "transfer(address,uint256)", Name: "transfer", Standard: "erc20",
		Params: []Param{{Name: "to", Type: TAddress}, {Name: "amount", Type: TUint256}},
	},
	"0x23b872dd": {
		Selector: "0x23b872dd", Signature: "transferFrom(address,address,uint256)", Name: "transferFrom", Standard: "erc20",
		Params: []Param{{Name: "from", Type: TAddress}, {Name: "to", Type: TAddress}, {Name: "amount", Type: TUint256}},
	},
	"0x42842e0e": {
		Selector: "0x42842e0e", Signature: "safeTransferFrom(address,address,uint256)", Name: "safeTransferFrom", Standard: "erc721",
		Params: []Param{{Name: "from", Type: TAddress}, {Name: "to", Type: TAddress}, {Name: "tokenId", Type: TUint256}},
	},
	"0xa22cb465": {
		Selector: "0xa22cb465", Signature: "setApprovalForAll(address,bool)", Name: "setApprovalForAll", Standard: "erc721",
		Params: []Param{{Name: "operator", Type: TAddress}, {Name: "approved", Type: TBool}},
	},
	"0xd505accf": {
		Selector: "0xd505accf", Signature: "permit(address,address,uint256,uint256,uint8,bytes32,bytes32)", Name: "permit", Standard: "eip2612",
		Params: []Param{
			{Name: "owner", Type: TAddress}, {Name: "spender", Type: TAddress}, {Name: "value", Type: TUint256},
			{Name: "deadline", Type: TUint256}, {Name: "v", Type: TUint8}, {Name: "r", Type: TBytes32}, {Name: "s", Type: TBytes32},
		},
	},
	"0x3593564c": {
		Selector: "0x3593564c", Signature: "execute(bytes,bytes[],uint256)", Name: "execute", Standard: "universal-router",
		Params: []Param{{Name: "commands", Type: TBytes}, {Name: "inputs", Type: TBytesArr}, {Name: "deadline", Type: TUint256}},
	},
	"0x6a761202": {
		Selector: "0x6a761202",
		Signature: "execTransaction(address,uint256,bytes,uint8,uint256,uint256,uint256,address,address,bytes)",
		Name:     "execTransaction", Standard: "safe",
		Params: []Param{
			{Name: "to", Type: TAddress}, {Name: "value", Type: TUint256}, {Name: "data", Type: TBytes},
			{Name: "operation", Type: TUint8}, {Name: "safeTxGas", Type: TUint256}, {Name: "baseGas", Type: TUint256},
			{Name: "gasPrice", Type: TUint256}, {Name: "gasToken", Type: TAddress}, {Name: "refundReceiver", Type: TAddress},
			{Name: "signatures", Type: TBytes},
		},
	},
	"0xab9c4b5d": {
		Selector: "0xab9c4b5d", Signature: "flashLoan(address,address[],uint256[],uint256[],address,bytes,uint16)", Name: "flashLoan", Standard: "aave",
		Params: []Param{
			{Name: "receiverAddress", Type: TAddress}, {Name: "assets", Type: TAddressArr}, {Name: "amounts", Type: TUint256Arr},
			{Name: "modes", Type: TUint256Arr}, {Name: "onBehalfOf", Type: TAddress}, {Name: "params", Type: TBytes}, {Name: "referralCode", Type: TUint8},
		},
	},
	"0xb61d27f6": {
		Selector: "0xb61d27f6", Signature: "execute(address,uint256,bytes)", Name: "execute", Standard: "safe-exec-legacy",
		Params: []Param{{Name: "to", Type: TAddress}, {Name: "value", Type: TUint256}, {Name: "data", Type: TBytes}},
	},
	"0x3644e515": {
		Selector: "0x3644e515", Signature: "DOMAIN_SEPARATOR()", Name: "DOMAIN_SEPARATOR", Standard: "eip2612",
		Params: nil,
	},
	"0xac9650d8": {
		Selector: "0xac9650d8", Signature: "multicall(bytes[])", Name: "multicall", Standard: "multicall",
		Params: []Param{{Name: "data", Type: TBytesArr}},
	},
}

// Multicall-style selectors whose sole argument is an array of encoded
// inner calls, recursively decoded per §4.3 step 4.
var MulticallSelectors = map[string]bool{
	"0xac9650d8": true, // multicall(bytes[])
}

func isMulticallSignature(sig string) bool {
	return strings.HasPrefix(sig, "multicall(")
}
