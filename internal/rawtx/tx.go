package rawtx

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// Type names the four envelope shapes assay decodes.
type Type string

const (
	TypeLegacy  Type = "legacy"
	TypeEIP2930 Type = "eip2930"
	TypeEIP1559 Type = "eip1559"
	TypeEIP7702 Type = "eip7702"
)

// Authorization is one EIP-7702 authorization tuple: "sender EOA
// delegates to Address on ChainID at Nonce" (§3 CalldataInput.authorizationList).
type Authorization struct {
	ChainID int64
	Address string
	Nonce   int64
}

// Transaction is the subset of a decoded raw transaction assay's scan
// path needs: enough to build a CalldataInput.
type Transaction struct {
	Type              Type
	ChainID           *big.Int
	Nonce             uint64
	To                string // "" for contract-creation transactions
	Value             *big.Int
	Data              []byte
	AuthorizationList []Authorization
	From              string
}

// Decode parses a signed raw transaction envelope and recovers its
// sender. It supports legacy (with or without EIP-155 chain replay
// protection), EIP-2930, EIP-1559, and EIP-7702 envelopes; any other
// leading type byte, or any structural RLP mismatch, is an error — the
// proxy's fail-closed posture (§7) means a raw tx assay cannot parse
// never reaches the upstream unexamined.
func Decode(raw []byte) (*Transaction, error) {
	if len(raw) == 0 {
		return nil, errors.New("rawtx: empty transaction")
	}

	var txType Type
	var item rlpItem
	var err error
	var typeByte byte

	if raw[0] >= 0xc0 {
		txType = TypeLegacy
		item, err = decodeRLP(raw)
	} else {
		typeByte = raw[0]
		switch typeByte {
		case 0x01:
			txType = TypeEIP2930
		case 0x02:
			txType = TypeEIP1559
		case 0x04:
			txType = TypeEIP7702
		default:
			return nil, fmt.Errorf("rawtx: unsupported transaction type 0x%02x", typeByte)
		}
		item, err = decodeRLP(raw[1:])
	}
	if err != nil {
		return nil, fmt.Errorf("rawtx: %w", err)
	}
	if !item.isList {
		return nil, errors.New("rawtx: envelope body is not an RLP list")
	}

	switch txType {
	case TypeLegacy:
		return decodeLegacy(item.list)
	case TypeEIP2930:
		return decodeEIP2930(item.list)
	case TypeEIP1559:
		return decodeEIP1559(item.list)
	case TypeEIP7702:
		return decodeEIP7702(item.list)
	}
	return nil, fmt.Errorf("rawtx: unreachable type %q", txType)
}

func decodeLegacy(fields []rlpItem) (*Transaction, error) {
	if len(fields) != 9 {
		return nil, fmt.Errorf("rawtx: legacy tx wants 9 fields, got %d", len(fields))
	}
	nonce := fields[0].asUint64()
	to := addressOf(fields[3])
	value := bigOf(fields[4])
	data := fields[5].bytes
	v := bigOf(fields[6])
	r := fields[7].bytes
	s := fields[8].bytes

	var chainID *big.Int
	var recoveryID int
	if v.Cmp(big.NewInt(35)) >= 0 {
		// EIP-155: v = chainId*2 + 35 + yParity
		chainID, recoveryID = chainIDFromV(v)
		signing := encodeItemList([]rlpItem{
			fields[0], fields[1], fields[2], fields[3], fields[4], fields[5],
			{bytes: chainID.Bytes()}, {bytes: nil}, {bytes: nil},
		})
		from, err := recoverSender(keccak256(signing), r, s, recoveryID)
		if err != nil {
			return nil, err
		}
		return &Transaction{Type: TypeLegacy, ChainID: chainID, Nonce: nonce, To: to, Value: value, Data: data, From: from}, nil
	}

	recoveryID = int(v.Int64() - 27)
	signing := encodeItemList(fields[:6])
	from, err := recoverSender(keccak256(signing), r, s, recoveryID)
	if err != nil {
		return nil, err
	}
	return &Transaction{Type: TypeLegacy, Nonce: nonce, To: to, Value: value, Data: data, From: from}, nil
}

func decodeEIP2930(fields []rlpItem) (*Transaction, error) {
	if len(fields) != 11 {
		return nil, fmt.Errorf("rawtx: eip2930 tx wants 11 fields, got %d", len(fields))
	}
	return decodeTyped(0x01, fields, 8, 9, 10)
}

func decodeEIP1559(fields []rlpItem) (*Transaction, error) {
	if len(fields) != 12 {
		return nil, fmt.Errorf("rawtx: eip1559 tx wants 12 fields, got %d", len(fields))
	}
	return decodeTyped(0x02, fields, 9, 10, 11)
}

// decodeTyped handles the EIP-2930/EIP-1559 shapes, which share a layout
// of [chainId, nonce, ...fees/gas..., to, value, data, accessList, v, r, s]
// and differ only in how many fee fields precede "to". The caller passes
// the indices of (yParity, r, s) since those sit at the tail either way.
func decodeTyped(typeByte byte, fields []rlpItem, yParityIdx, rIdx, sIdx int) (*Transaction, error) {
	chainID := bigOf(fields[0])
	nonce := fields[1].asUint64()
	toIdx := yParityIdx - 4 // to, value, data, accessList precede the signature triple
	to := addressOf(fields[toIdx])
	value := bigOf(fields[toIdx+1])
	data := fields[toIdx+2].bytes

	yParity := int(fields[yParityIdx].asUint64())
	r := fields[rIdx].bytes
	s := fields[sIdx].bytes

	signingBody := encodeItemList(fields[:yParityIdx])
	signing := append([]byte{typeByte}, signingBody...)

	from, err := recoverSender(keccak256(signing), r, s, yParity)
	if err != nil {
		return nil, err
	}
	t := TypeEIP2930
	if typeByte == 0x02 {
		t = TypeEIP1559
	}
	return &Transaction{Type: t, ChainID: chainID, Nonce: nonce, To: to, Value: value, Data: data, From: from}, nil
}

func decodeEIP7702(fields []rlpItem) (*Transaction, error) {
	if len(fields) != 13 {
		return nil, fmt.Errorf("rawtx: eip7702 tx wants 13 fields, got %d", len(fields))
	}
	chainID := bigOf(fields[0])
	nonce := fields[1].asUint64()
	to := addressOf(fields[5])
	value := bigOf(fields[6])
	data := fields[7].bytes
	authList := decodeAuthorizationList(fields[9])

	yParity := int(fields[10].asUint64())
	r := fields[11].bytes
	s := fields[12].bytes

	signingBody := encodeItemList(fields[:10])
	signing := append([]byte{0x04}, signingBody...)

	from, err := recoverSender(keccak256(signing), r, s, yParity)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Type: TypeEIP7702, ChainID: chainID, Nonce: nonce, To: to, Value: value, Data: data,
		AuthorizationList: authList, From: from,
	}, nil
}

// decodeAuthorizationList parses the EIP-7702 authorization_list field;
// per §4.8 step 3, malformed entries are dropped silently rather than
// failing the whole decode.
func decodeAuthorizationList(listItem rlpItem) []Authorization {
	if !listItem.isList {
		return nil
	}
	out := make([]Authorization, 0, len(listItem.list))
	for _, entry := range listItem.list {
		if !entry.isList || len(entry.list) < 3 {
			continue
		}
		addr := addressOf(entry.list[1])
		if addr == "" {
			continue
		}
		out = append(out, Authorization{
			ChainID: int64(entry.list[0].asUint64()),
			Address: addr,
			Nonce:   int64(entry.list[2].asUint64()),
		})
	}
	return out
}

func addressOf(it rlpItem) string {
	if len(it.bytes) != 20 {
		return ""
	}
	return "0x" + hex.EncodeToString(it.bytes)
}

func bigOf(it rlpItem) *big.Int {
	return new(big.Int).SetBytes(it.bytes)
}

func chainIDFromV(v *big.Int) (*big.Int, int) {
	// v = chainId*2 + 35 + yParity
	adjusted := new(big.Int).Sub(v, big.NewInt(35))
	yParity := new(big.Int)
	chainID := new(big.Int).DivMod(adjusted, big.NewInt(2), yParity)
	return chainID, int(yParity.Int64())
}
