package abi

import "testing"

func TestSelectorMatchesKnownSignatures(t *testing.T) {
	for selector, sig := range KnownSignatures {
		if got := Selector(sig.Signature); got != selector {
			t.Errorf("Selector(%q) = %s, want %s", sig.Signature, got, selector)
		}
	}
}

func TestSelectorIsFourBytes(t *testing.T) {
	got := Selector("transfer(address,uint256)")
	if len(got) != 2+8 {
		t.Fatalf("selector %q is not 4 bytes (0x + 8 hex chars)", got)
	}
}

func TestEventTopicIsThirtyTwoBytes(t *testing.T) {
	got := EventTopic("Transfer(address,address,uint256)")
	if len(got) != 2+64 {
		t.Fatalf("topic %q is not 32 bytes (0x + 64 hex chars)", got)
	}
}

func TestEventTopicDeterministic(t *testing.T) {
	a := EventTopic("Approval(address,address,uint256)")
	b := EventTopic("Approval(address,address,uint256)")
	if a != b {
		t.Fatalf("EventTopic is not deterministic: %s != %s", a, b)
	}
	other := EventTopic("ApprovalForAll(address,address,bool)")
	if a == other {
		t.Fatalf("different signatures produced the same topic")
	}
}

func TestDecodeArgsStaticTypes(t *testing.T) {
	// approve(address,uint256): spender word then amount word.
	spenderWord := make([]byte, 32)
	spenderWord[31] = 0xaa
	amountWord := make([]byte, 32)
	amountWord[31] = 0x2a // 42
	data := append(append([]byte(nil), spenderWord...), amountWord...)

	values, names, err := DecodeArgs(data, []Param{
		{Name: "spender", Type: TAddress},
		{Name: "amount", Type: TUint256},
	})
	if err != nil {
		t.Fatalf("DecodeArgs failed: %v", err)
	}
	if len(names) != 2 || names[0] != "spender" || names[1] != "amount" {
		t.Fatalf("unexpected ordered names: %v", names)
	}
	if values["amount"].Uint == nil || values["amount"].Uint.Int64() != 42 {
		t.Fatalf("expected amount 42, got %v", values["amount"].Uint)
	}
	if values["spender"].Address == "" {
		t.Fatalf("expected a decoded address, got empty string")
	}
}

func TestDecodeArgsTruncatedDataErrors(t *testing.T) {
	if _, _, err := DecodeArgs([]byte{0x01}, []Param{{Name: "amount", Type: TUint256}}); err == nil {
		t.Fatal("expected an error decoding a single truncated byte as uint256")
	}
}

func TestClassifyPermit(t *testing.T) {
	cases := []struct {
		name string
		td   TypedData
		want PermitSchema
	}{
		{
			name: "eip2612 permit",
			td:   TypedData{PrimaryType: "Permit", Types: map[string][]TypedDataField{"Permit": nil}},
			want: SchemaEIP2612,
		},
		{
			name: "permit2 single",
			td:   TypedData{PrimaryType: "PermitSingle", Types: map[string][]TypedDataField{"PermitSingle": nil}},
			want: SchemaPermit2Single,
		},
		{
			name: "permit2 batch",
			td:   TypedData{PrimaryType: "PermitBatch", Types: map[string][]TypedDataField{"PermitBatch": nil}},
			want: SchemaPermit2Batch,
		},
		{
			name: "primary type named Permit but no matching type entry",
			td:   TypedData{PrimaryType: "Permit", Types: map[string][]TypedDataField{}},
			want: SchemaNone,
		},
		{
			name: "unrelated typed data",
			td:   TypedData{PrimaryType: "Mail", Types: map[string][]TypedDataField{"Mail": nil}},
			want: SchemaNone,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPermit(tc.td); got != tc.want {
				t.Errorf("ClassifyPermit() = %q, want %q", got, tc.want)
			}
			if got := IsPermitLike(tc.td); got != (tc.want != SchemaNone) {
				t.Errorf("IsPermitLike() = %v, want %v", got, tc.want != SchemaNone)
			}
		})
	}
}

func TestKnownSpendersIncludesPermit2OnEveryChain(t *testing.T) {
	permit2 := "0x000000000022d473030f116ddee9f6b43ac78ba3"
	for _, chainID := range []int64{1, 8453, 42161, 10, 137, 999999} {
		if !KnownSpenders(chainID)[permit2] {
			t.Errorf("chain %d: expected permit2 to be a known spender", chainID)
		}
	}
}

func TestKnownSpendersChainSpecific(t *testing.T) {
	uniV2 := "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
	if !KnownSpenders(1)[uniV2] {
		t.Error("expected Uniswap V2 router to be known on mainnet")
	}
	if KnownSpenders(8453)[uniV2] {
		t.Error("did not expect the mainnet-only Uniswap V2 router address on an unrelated chain id")
	}
}
