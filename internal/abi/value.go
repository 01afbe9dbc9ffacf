// Package abi implements just enough ABI decoding to serve assay's
// calldata decoder (§4.3, §9 Design Notes "ABI decoding <-> dynamic
// types"): a small sum type for decoded arguments, a standard-ABI word
// decoder for the argument shapes assay's known signatures actually use,
// and a registry of known function signatures plus an offline selector
// database fallback.
package abi

import (
	"encoding/hex"
	"math/big"
)

// Kind tags which arm of Value is populated.
type Kind string

const (
	KindAddress Kind = "address"
	KindUint    Kind = "uint"
	KindBool    Kind = "bool"
	KindBytes   Kind = "bytes"
	KindString  Kind = "string"
	KindArray   Kind = "array"
	KindStruct  Kind = "struct"
)

// Value is the recursive sum type every decoded argument (and inner-call
// argument) is expressed as.
type Value struct {
	Kind    Kind
	Address string
	Uint    *big.Int
	Bool    bool
	Bytes   []byte
	Str     string
	Array   []Value
	Struct  *StructValue
}

// StructValue names a struct-typed argument with its ordered fields.
type StructValue struct {
	Name   string
	Fields map[string]Value
	Order  []string
}

func Addr(a string) Value  { return Value{Kind: KindAddress, Address: a} }
func UintV(u *big.Int) Value { return Value{Kind: KindUint, Uint: u} }
func BoolV(b bool) Value    { return Value{Kind: KindBool, Bool: b} }
func BytesV(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }
func StringV(s string) Value { return Value{Kind: KindString, Str: s} }
func ArrayV(vs []Value) Value { return Value{Kind: KindArray, Array: vs} }

// ToDecimalString renders a Value the way the scan response requires
// (§4.3: "when serialized to the scan response, uint values become
// decimal strings").
func (v Value) ToDecimalString() string {
	switch v.Kind {
	case KindUint:
		if v.Uint == nil {
			return "0"
		}
		return v.Uint.String()
	case KindAddress:
		return v.Address
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindBytes:
		return "0x" + hex.EncodeToString(v.Bytes)
	case KindString:
		return v.Str
	default:
		return ""
	}
}
