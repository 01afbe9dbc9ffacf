package calldata

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/assay-gate/assay/internal/abi"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("invalid hex fixture: %v", err)
	}
	return b
}

func encodeAddress(addr string) string {
	// left-pad a 20-byte address to a 32-byte word
	clean := addr[2:]
	return "000000000000000000000000" + clean
}

func encodeUint(n int64) string {
	v := new(big.Int).SetInt64(n)
	b := v.FillBytes(make([]byte, 32))
	return hex.EncodeToString(b)
}

func TestDecodeEmptyCalldata(t *testing.T) {
	call, findings := Decode(nil, nil)
	if call.Source != SourceEmpty {
		t.Fatalf("expected SourceEmpty, got %s", call.Source)
	}
	if len(findings) != 1 || findings[0].Code != "CALLDATA_EMPTY" {
		t.Fatalf("expected CALLDATA_EMPTY finding, got %+v", findings)
	}
}

func TestDecodeApproveKnownSignature(t *testing.T) {
	spender := "0x1111111111111111111111111111111111111111"
	data := mustHex(t, "095ea7b3"+encodeAddress(spender)+encodeUint(1000))

	call, findings := Decode(data, nil)
	if call.Source != SourceKnown {
		t.Fatalf("expected SourceKnown, got %s", call.Source)
	}
	if call.Name != "approve" {
		t.Fatalf("expected approve, got %s", call.Name)
	}
	if call.Args["spender"].Address != spender {
		t.Fatalf("expected spender %s, got %s", spender, call.Args["spender"].Address)
	}
	if call.Args["amount"].Uint.Int64() != 1000 {
		t.Fatalf("expected amount 1000, got %s", call.Args["amount"].Uint.String())
	}
	foundDecoded := false
	for _, f := range findings {
		if f.Code == "CALLDATA_DECODED" {
			foundDecoded = true
		}
	}
	if !foundDecoded {
		t.Fatalf("expected CALLDATA_DECODED finding, got %+v", findings)
	}
}

func TestDecodeUnlimitedApprovalFinding(t *testing.T) {
	spender := "0x2222222222222222222222222222222222222222"
	maxHex := hex.EncodeToString(abi.MaxUint256.FillBytes(make([]byte, 32)))
	data := mustHex(t, "095ea7b3"+encodeAddress(spender)+maxHex)

	call, _ := Decode(data, nil)
	risk := RiskFindings(call)
	if len(risk) != 1 || risk[0].Code != "UNLIMITED_APPROVAL" {
		t.Fatalf("expected UNLIMITED_APPROVAL finding, got %+v", risk)
	}
}

func TestDecodeLocalSelectorFallback(t *testing.T) {
	data := mustHex(t, "70a08231"+encodeAddress("0x3333333333333333333333333333333333333333"))
	call, findings := Decode(data, nil)
	if call.Source != SourceLocalSelector {
		t.Fatalf("expected SourceLocalSelector, got %s", call.Source)
	}
	if len(findings) != 1 || findings[0].Code != "CALLDATA_SIGNATURES" {
		t.Fatalf("expected CALLDATA_SIGNATURES finding, got %+v", findings)
	}
}

func TestDecodeUnknownSelector(t *testing.T) {
	data := mustHex(t, "deadbeef")
	call, findings := Decode(data, nil)
	if call.Source != SourceUnknown {
		t.Fatalf("expected SourceUnknown, got %s", call.Source)
	}
	if len(findings) != 1 || findings[0].Code != "CALLDATA_UNKNOWN_SELECTOR" {
		t.Fatalf("expected CALLDATA_UNKNOWN_SELECTOR finding, got %+v", findings)
	}
}

func TestDecodeVerifiedABIResolution(t *testing.T) {
	entries := []abi.ABIEntry{
		{Type: "function", Name: "stake", Inputs: []abi.ABIInput{{Name: "amount", Type: "uint256"}}},
	}
	index := abi.BuildSelectorIndex(entries)
	selector := abi.Selector("stake(uint256)")

	data := mustHex(t, selector[2:]+encodeUint(500))
	call, findings := Decode(data, index)
	if call.Source != SourceVerified {
		t.Fatalf("expected SourceVerified, got %s", call.Source)
	}
	if call.Args["amount"].Uint.Int64() != 500 {
		t.Fatalf("expected amount 500, got %v", call.Args["amount"])
	}
	foundDecoded := false
	for _, f := range findings {
		if f.Code == "CALLDATA_DECODED" {
			foundDecoded = true
		}
	}
	if !foundDecoded {
		t.Fatalf("expected CALLDATA_DECODED finding, got %+v", findings)
	}
}

func TestDecodeMulticallRecursion(t *testing.T) {
	spender := "0x4444444444444444444444444444444444444444"
	inner := mustHex(t, "095ea7b3"+encodeAddress(spender)+encodeUint(1))

	// multicall(bytes[]) with one inner call: offset(32) + arrayLen(1) +
	// elemOffset(32) + elemLen(len(inner)) + elemData(padded to 32).
	innerHex := hex.EncodeToString(inner)
	padded := innerHex
	for len(padded)%64 != 0 {
		padded += "00"
	}
	payload := "0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		encodeUint(int64(len(inner))) +
		padded

	data := mustHex(t, "ac9650d8"+payload)
	call, _ := Decode(data, nil)
	if call.Name != "multicall" {
		t.Fatalf("expected multicall, got %s", call.Name)
	}
	if len(call.Inner) != 1 {
		t.Fatalf("expected 1 inner call, got %d", len(call.Inner))
	}
	if call.Inner[0].Name != "approve" {
		t.Fatalf("expected inner approve, got %s", call.Inner[0].Name)
	}
}

func TestIntentApproveUnlimited(t *testing.T) {
	spender := "0x5555555555555555555555555555555555555555"
	maxHex := hex.EncodeToString(abi.MaxUint256.FillBytes(make([]byte, 32)))
	data := mustHex(t, "095ea7b3"+encodeAddress(spender)+maxHex)
	call, _ := Decode(data, nil)

	intent := Intent(call)
	if intent == "" {
		t.Fatal("expected non-empty intent")
	}
}
