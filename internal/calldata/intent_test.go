package calldata

import (
	"strings"
	"testing"
)

func TestIntentEmptyCalldata(t *testing.T) {
	call, _ := Decode(nil, nil)
	intent := Intent(call)
	if !strings.Contains(intent, "native currency") {
		t.Fatalf("expected native-currency intent, got %q", intent)
	}
}

func TestIntentUnknownSelector(t *testing.T) {
	data := mustHex(t, "deadbeef")
	call, _ := Decode(data, nil)
	intent := Intent(call)
	if !strings.Contains(intent, "unrecognized") {
		t.Fatalf("expected unrecognized-function intent, got %q", intent)
	}
}

func TestIntentTransferMentionsRecipient(t *testing.T) {
	to := "0x6666666666666666666666666666666666666666"
	data := mustHex(t, "a9059cbb"+encodeAddress(to)+encodeUint(42))
	call, _ := Decode(data, nil)
	intent := Intent(call)
	if !strings.Contains(intent, to) {
		t.Fatalf("expected intent to mention recipient %s, got %q", to, intent)
	}
}

func TestIntentApprovalForAllRevoke(t *testing.T) {
	operator := "0x7777777777777777777777777777777777777777"
	data := mustHex(t, "a22cb465"+encodeAddress(operator)+strings.Repeat("0", 64))
	call, _ := Decode(data, nil)
	intent := Intent(call)
	if !strings.Contains(strings.ToLower(intent), "revoke") {
		t.Fatalf("expected revoke intent, got %q", intent)
	}
}
