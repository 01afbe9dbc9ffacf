package rawtx

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// recoverSender recovers the 20-byte sender address from a transaction's
// signing hash and (r, s, recoveryID) triple. recoveryID is the raw
// yParity (0 or 1), already stripped of any EIP-155/legacy offset by the
// caller.
//
// Grounded on the decred secp256k1 library's compact-signature recovery,
// the same recovery primitive the go-ethereum-derived chain clients in
// the example pack depend on (mantlenetworkio-op-geth's go.mod pins the
// same module) rather than hand-rolled elliptic-curve arithmetic.
func recoverSender(hash, r, s []byte, recoveryID int) (string, error) {
	if recoveryID < 0 || recoveryID > 3 {
		return "", fmt.Errorf("rawtx: invalid recovery id %d", recoveryID)
	}
	if len(hash) != 32 {
		return "", errors.New("rawtx: signing hash must be 32 bytes")
	}

	if len(r) > 32 || len(s) > 32 {
		return "", errors.New("rawtx: signature component too long")
	}
	rPadded := leftPad32(r)
	sPadded := leftPad32(s)

	// decred's compact format is [recovery byte][R 32 bytes][S 32 bytes],
	// with the recovery byte biased by 27 the same way Bitcoin signatures
	// are, which lines up with an Ethereum yParity once the EIP-155/
	// legacy chain-id offset has already been removed by the caller.
	compact := make([]byte, 65)
	compact[0] = byte(27 + recoveryID)
	copy(compact[1:33], rPadded)
	copy(compact[33:65], sPadded)

	pub, _, err := secp256k1.RecoverCompact(compact, hash)
	if err != nil {
		return "", fmt.Errorf("rawtx: signature recovery failed: %w", err)
	}
	return addressFromPubkey(pub), nil
}

// addressFromPubkey derives the Ethereum address (last 20 bytes of
// keccak256 of the uncompressed public key's X||Y, no 0x04 prefix) from
// a recovered public key.
func addressFromPubkey(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed() // 0x04 || X(32) || Y(32)
	digest := keccak256(uncompressed[1:])
	addr := digest[len(digest)-20:]
	return "0x" + hex.EncodeToString(addr)
}

func leftPad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
