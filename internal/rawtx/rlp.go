// Package rawtx decodes the signed transaction envelopes
// eth_sendRawTransaction hands the proxy (§4.8 step 4): legacy and
// EIP-155 transactions, EIP-2930 access-list transactions, EIP-1559
// dynamic-fee transactions, and EIP-7702 set-code (type 4) transactions
// with their authorization list intact.
//
// Grounded on the RLP/transaction-envelope conventions shared by the
// go-ethereum-derived chain clients in the example pack; the actual
// secp256k1 recovery math is delegated to
// github.com/decred/dcrd/dcrec/secp256k1/v4, the same recovery library
// those clients depend on, rather than hand-rolled curve arithmetic.
package rawtx

import (
	"errors"
	"fmt"
)

// rlpItem is either a byte string or an ordered list of rlpItems — the
// two shapes RLP ever produces.
type rlpItem struct {
	bytes []byte
	list  []rlpItem
	isList bool
}

// decodeRLP parses exactly one top-level RLP item from data, erroring if
// trailing bytes remain (every encoder here always produces one).
func decodeRLP(data []byte) (rlpItem, error) {
	item, rest, err := decodeOne(data)
	if err != nil {
		return rlpItem{}, err
	}
	if len(rest) != 0 {
		return rlpItem{}, fmt.Errorf("rawtx: %d trailing bytes after top-level RLP item", len(rest))
	}
	return item, nil
}

func decodeOne(data []byte) (rlpItem, []byte, error) {
	if len(data) == 0 {
		return rlpItem{}, nil, errors.New("rawtx: unexpected end of RLP data")
	}
	b0 := data[0]
	switch {
	case b0 < 0x80:
		return rlpItem{bytes: data[:1]}, data[1:], nil
	case b0 < 0xb8:
		n := int(b0 - 0x80)
		return takeBytes(data[1:], n)
	case b0 < 0xc0:
		lenLen := int(b0 - 0xb7)
		n, rest, err := takeLength(data[1:], lenLen)
		if err != nil {
			return rlpItem{}, nil, err
		}
		return takeBytes(rest, n)
	case b0 < 0xf8:
		n := int(b0 - 0xc0)
		return takeList(data[1:], n)
	default:
		lenLen := int(b0 - 0xf7)
		n, rest, err := takeLength(data[1:], lenLen)
		if err != nil {
			return rlpItem{}, nil, err
		}
		return takeList(rest, n)
	}
}

func takeLength(data []byte, lenLen int) (int, []byte, error) {
	if len(data) < lenLen {
		return 0, nil, errors.New("rawtx: truncated RLP length field")
	}
	n := 0
	for _, b := range data[:lenLen] {
		n = n<<8 | int(b)
	}
	return n, data[lenLen:], nil
}

func takeBytes(data []byte, n int) (rlpItem, []byte, error) {
	if len(data) < n {
		return rlpItem{}, nil, fmt.Errorf("rawtx: truncated RLP string: want %d bytes, have %d", n, len(data))
	}
	return rlpItem{bytes: data[:n]}, data[n:], nil
}

func takeList(data []byte, n int) (rlpItem, []byte, error) {
	if len(data) < n {
		return rlpItem{}, nil, fmt.Errorf("rawtx: truncated RLP list: want %d bytes, have %d", n, len(data))
	}
	body, rest := data[:n], data[n:]
	var items []rlpItem
	for len(body) > 0 {
		item, remainder, err := decodeOne(body)
		if err != nil {
			return rlpItem{}, nil, err
		}
		items = append(items, item)
		body = remainder
	}
	return rlpItem{list: items, isList: true}, rest, nil
}

func (it rlpItem) asUint64() uint64 {
	var n uint64
	for _, b := range it.bytes {
		n = n<<8 | uint64(b)
	}
	return n
}
