package calldata

import (
	"testing"
	"time"

	"github.com/assay-gate/assay/internal/abi"
)

func eip2612TypedData(value string, deadline string) abi.TypedData {
	return abi.TypedData{
		PrimaryType: "Permit",
		Types: map[string][]abi.TypedDataField{
			"Permit": {{Name: "owner", Type: "address"}, {Name: "spender", Type: "address"}, {Name: "value", Type: "uint256"}, {Name: "nonce", Type: "uint256"}, {Name: "deadline", Type: "uint256"}},
		},
		Message: map[string]any{"value": value, "deadline": deadline},
	}
}

func TestPermitFindingsUnlimitedAllowance(t *testing.T) {
	td := eip2612TypedData(abi.MaxUint256.String(), "9999999999")
	findings := PermitFindings(td, time.Unix(1700000000, 0))

	var codes []string
	for _, f := range findings {
		codes = append(codes, f.Code)
	}
	if !contains(codes, "PERMIT_SIGNATURE") {
		t.Fatalf("expected PERMIT_SIGNATURE, got %v", codes)
	}
	if !contains(codes, "PERMIT_UNLIMITED_ALLOWANCE") {
		t.Fatalf("expected PERMIT_UNLIMITED_ALLOWANCE, got %v", codes)
	}
}

func TestPermitFindingsExpiredDeadline(t *testing.T) {
	td := eip2612TypedData("1000", "100")
	findings := PermitFindings(td, time.Unix(1700000000, 0))

	var codes []string
	for _, f := range findings {
		codes = append(codes, f.Code)
	}
	if !contains(codes, "PERMIT_EXPIRED_DEADLINE") {
		t.Fatalf("expected PERMIT_EXPIRED_DEADLINE, got %v", codes)
	}
}

func TestPermitFindingsNoneWhenNotPermitLike(t *testing.T) {
	td := abi.TypedData{PrimaryType: "Order", Types: map[string][]abi.TypedDataField{"Order": {{Name: "maker", Type: "address"}}}}
	findings := PermitFindings(td, time.Now())
	if findings != nil {
		t.Fatalf("expected no findings for non-permit typed data, got %+v", findings)
	}
}

func TestEIP7702AuthorizationFinding(t *testing.T) {
	f := EIP7702AuthorizationFinding(2)
	if f.Code != "EIP7702_AUTHORIZATION" {
		t.Fatalf("expected EIP7702_AUTHORIZATION, got %s", f.Code)
	}
	if f.Details["authorizationCount"] != 2 {
		t.Fatalf("expected authorizationCount 2, got %v", f.Details["authorizationCount"])
	}
}

func contains(xs []string, target string) bool {
	for _, x := range xs {
		if x == target {
			return true
		}
	}
	return false
}
