package abi

import (
	"fmt"
	"math/big"
)

const wordSize = 32

// ParamType is the small set of standard-ABI types assay's known
// signatures and verified-contract ABIs actually use.
type ParamType string

const (
	TAddress   ParamType = "address"
	TUint256   ParamType = "uint256"
	TUint8     ParamType = "uint8"
	TBool      ParamType = "bool"
	TBytes32   ParamType = "bytes32"
	TBytes     ParamType = "bytes"
	TString    ParamType = "string"
	TAddressArr ParamType = "address[]"
	TUint256Arr ParamType = "uint256[]"
	TBytesArr   ParamType = "bytes[]"
	TTuple      ParamType = "tuple" // use Param.Components
)

// Param names one function parameter.
type Param struct {
	Name       string
	Type       ParamType
	Components []Param // for TTuple
}

func (t ParamType) isDynamic() bool {
	switch t {
	case TBytes, TString, TAddressArr, TUint256Arr, TBytesArr:
		return true
	default:
		return false
	}
}

// DecodeArgs decodes calldata (without the 4-byte selector) against
// params, returning a name->Value map plus the ordered names.
func DecodeArgs(data []byte, params []Param) (map[string]Value, []string, error) {
	result := make(map[string]Value, len(params))
	names := make([]string, 0, len(params))
	for i, p := range params {
		head := i * wordSize
		v, err := decodeOne(data, head, p)
		if err != nil {
			return nil, nil, fmt.Errorf("arg %d (%s): %w", i, p.Name, err)
		}
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		result[name] = v
		names = append(names, name)
	}
	return result, names, nil
}

// decodeOne decodes the word(s) at headOffset in the top-level head
// region; dynamic types store an offset (relative to the start of data)
// at headOffset and the real payload lives at that offset.
func decodeOne(data []byte, headOffset int, p Param) (Value, error) {
	if p.Type.isDynamic() {
		off, err := readUint(data, headOffset)
		if err != nil {
			return Value{}, err
		}
		return decodeDynamic(data, int(off.Int64()), p)
	}
	return decodeStatic(data, headOffset, p)
}

func decodeStatic(data []byte, offset int, p Param) (Value, error) {
	word, err := readWord(data, offset)
	if err != nil {
		return Value{}, err
	}
	switch p.Type {
	case TAddress:
		return Addr(fmt.Sprintf("0x%x", word[12:])), nil
	case TUint256, TUint8:
		return UintV(new(big.Int).SetBytes(word[:])), nil
	case TBool:
		return BoolV(word[31] != 0), nil
	case TBytes32:
		return BytesV(append([]byte(nil), word[:]...)), nil
	default:
		return Value{}, fmt.Errorf("unsupported static type %s", p.Type)
	}
}

func decodeDynamic(data []byte, offset int, p Param) (Value, error) {
	length, err := readUint(data, offset)
	if err != nil {
		return Value{}, err
	}
	n := int(length.Int64())
	elemsStart := offset + wordSize

	switch p.Type {
	case TBytes:
		b, err := slice(data, elemsStart, n)
		if err != nil {
			return Value{}, err
		}
		return BytesV(b), nil
	case TString:
		b, err := slice(data, elemsStart, n)
		if err != nil {
			return Value{}, err
		}
		return StringV(string(b)), nil
	case TAddressArr:
		out := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			v, err := decodeStatic(data, elemsStart+i*wordSize, Param{Type: TAddress})
			if err != nil {
				return Value{}, err
			}
			out = append(out, v)
		}
		return ArrayV(out), nil
	case TUint256Arr:
		out := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			v, err := decodeStatic(data, elemsStart+i*wordSize, Param{Type: TUint256})
			if err != nil {
				return Value{}, err
			}
			out = append(out, v)
		}
		return ArrayV(out), nil
	case TBytesArr:
		// Array of a dynamic type: each of the n head words is an offset,
		// relative to the start of this array's own data region, to that
		// element's length-prefixed bytes payload.
		out := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			elemOff, err := readUint(data, elemsStart+i*wordSize)
			if err != nil {
				return Value{}, err
			}
			v, err := decodeDynamic(data, elemsStart+int(elemOff.Int64()), Param{Type: TBytes})
			if err != nil {
				return Value{}, err
			}
			out = append(out, v)
		}
		return ArrayV(out), nil
	default:
		return Value{}, fmt.Errorf("unsupported dynamic type %s", p.Type)
	}
}

func readWord(data []byte, offset int) ([wordSize]byte, error) {
	var w [wordSize]byte
	if offset < 0 || offset+wordSize > len(data) {
		return w, fmt.Errorf("word read out of range at %d (len %d)", offset, len(data))
	}
	copy(w[:], data[offset:offset+wordSize])
	return w, nil
}

func readUint(data []byte, offset int) (*big.Int, error) {
	w, err := readWord(data, offset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w[:]), nil
}

func slice(data []byte, start, length int) ([]byte, error) {
	if start < 0 || length < 0 || start+length > len(data) {
		return nil, fmt.Errorf("slice out of range [%d:%d+%d] (len %d)", start, start, length, len(data))
	}
	return append([]byte(nil), data[start:start+length]...), nil
}

// MaxUint256 is 2^256 - 1, used to detect the "unlimited approval" amount.
var MaxUint256 = func() *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), 256)
	return v.Sub(v, big.NewInt(1))
}()

// MaxUint160 is 2^160 - 1, Permit2's unlimited-allowance sentinel.
var MaxUint160 = func() *big.Int {
	v := new(big.Int).Lsh(big.NewInt(1), 160)
	return v.Sub(v, big.NewInt(1))
}()
