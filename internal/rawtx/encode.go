package rawtx

// encodeString RLP-encodes a single byte string per the canonical
// minimal-length rules (no leading zero bytes, single bytes < 0x80
// encode as themselves).
func encodeString(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return append([]byte{}, b...)
	}
	if len(b) < 56 {
		return append([]byte{0x80 + byte(len(b))}, b...)
	}
	lenBytes := bigEndianTrimmed(uint64(len(b)))
	out := append([]byte{0xb7 + byte(len(lenBytes))}, lenBytes...)
	return append(out, b...)
}

// encodeItem RLP-encodes one rlpItem, recursing into lists.
func encodeItem(it rlpItem) []byte {
	if it.isList {
		return encodeItemList(it.list)
	}
	return encodeString(it.bytes)
}

// encodeItemList RLP-encodes an ordered sequence of items as a list —
// the shape a transaction's signing payload needs (§4.8 step 4).
func encodeItemList(items []rlpItem) []byte {
	var body []byte
	for _, it := range items {
		body = append(body, encodeItem(it)...)
	}
	if len(body) < 56 {
		return append([]byte{0xc0 + byte(len(body))}, body...)
	}
	lenBytes := bigEndianTrimmed(uint64(len(body)))
	out := append([]byte{0xf7 + byte(len(lenBytes))}, lenBytes...)
	return append(out, body...)
}

func bigEndianTrimmed(n uint64) []byte {
	if n == 0 {
		return nil
	}
	var buf [8]byte
	i := 8
	for n > 0 {
		i--
		buf[i] = byte(n)
		n >>= 8
	}
	return buf[i:]
}
