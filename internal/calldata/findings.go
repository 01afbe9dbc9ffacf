package calldata

import (
	"math/big"
	"strconv"
	"time"

	"github.com/assay-gate/assay/internal/abi"
	"github.com/assay-gate/assay/internal/finding"
)

// RiskFindings emits the decoder-layer findings that depend on decoded
// argument *values* rather than just signature resolution (§4.3): unlimited
// ERC-20 approvals and approval-for-all grants. It inspects the top-level
// call and its direct inner calls; calls nested deeper are not inspected.
// Permit/Permit2 typed-data payloads are handled by PermitFindings.
func RiskFindings(call DecodedCall) []finding.Finding {
	var out []finding.Finding
	out = append(out, unlimitedApprovalFindings(call)...)
	for _, inner := range call.Inner {
		out = append(out, unlimitedApprovalFindings(inner)...)
	}
	return out
}

func unlimitedApprovalFindings(call DecodedCall) []finding.Finding {
	var out []finding.Finding
	switch {
	case call.Name == "approve" && call.Standard == "erc20" && isUnlimited(call, "amount"):
		out = append(out, finding.Finding{
			Level:   finding.LevelWarning,
			Code:    "UNLIMITED_APPROVAL",
			Message: "grants an unlimited, ongoing spending allowance to " + addrOf(call, "spender"),
			Details: map[string]any{"spender": addrOf(call, "spender")},
		})
	case call.Name == "setApprovalForAll":
		if v, ok := call.Args["approved"]; ok && v.Bool {
			out = append(out, finding.Finding{
				Level:   finding.LevelWarning,
				Code:    "UNLIMITED_APPROVAL",
				Message: "grants blanket transfer rights over every NFT in this collection to " + addrOf(call, "operator"),
				Details: map[string]any{"operator": addrOf(call, "operator")},
			})
		}
	}
	return out
}

// PermitFindings inspects an EIP-712 typed-data payload (the signing side
// of §4.3/§4.8 item 5, for eth_signTypedData_v4 requests rather than
// eth_sendTransaction) and emits the permit family of findings.
func PermitFindings(td abi.TypedData, now time.Time) []finding.Finding {
	schema := abi.ClassifyPermit(td)
	if schema == abi.SchemaNone {
		return nil
	}

	out := []finding.Finding{{
		Level:   finding.LevelInfo,
		Code:    "PERMIT_SIGNATURE",
		Message: "this signature authorizes a token allowance without an on-chain transaction",
		Details: map[string]any{"schema": string(schema)},
	}}

	switch schema {
	case abi.SchemaEIP2612:
		out = append(out, eip2612Findings(td, now)...)
	case abi.SchemaPermit2Single, abi.SchemaPermit2Batch:
		out = append(out, permit2Findings(td, now)...)
	}
	return out
}

func eip2612Findings(td abi.TypedData, now time.Time) []finding.Finding {
	var out []finding.Finding
	if valueStr, ok := td.Message["value"].(string); ok && isUnlimitedDecimalString(valueStr, abi.MaxUint256) {
		out = append(out, finding.Finding{
			Level:   finding.LevelWarning,
			Code:    "PERMIT_UNLIMITED_ALLOWANCE",
			Message: "signs an unlimited token allowance via EIP-2612 permit",
		})
	}
	if deadline, ok := numericField(td.Message["deadline"]); ok {
		out = append(out, deadlineFindings(deadline, now)...)
	}
	return out
}

func permit2Findings(td abi.TypedData, now time.Time) []finding.Finding {
	var out []finding.Finding
	details, _ := td.Message["details"].(map[string]any)
	if details == nil {
		details = td.Message
	}
	if amount, ok := details["amount"].(string); ok && isUnlimitedDecimalString(amount, abi.MaxUint160) {
		out = append(out, finding.Finding{
			Level:   finding.LevelWarning,
			Code:    "PERMIT_UNLIMITED_ALLOWANCE",
			Message: "signs an unlimited Permit2 allowance",
		})
	}
	if expiration, ok := numericField(details["expiration"]); ok {
		out = append(out, deadlineFindings(expiration, now)...)
	}
	return out
}

func deadlineFindings(deadline int64, now time.Time) []finding.Finding {
	var out []finding.Finding
	switch {
	case deadline == 0:
		out = append(out, finding.Finding{
			Level: finding.LevelInfo, Code: "PERMIT_ZERO_EXPIRY",
			Message: "permit deadline is zero; some tokens treat this as no expiry",
		})
	case deadline < now.Unix():
		out = append(out, finding.Finding{
			Level: finding.LevelInfo, Code: "PERMIT_EXPIRED_DEADLINE",
			Message: "permit deadline has already passed and would be rejected on-chain",
		})
	case deadline-now.Unix() > 180*24*60*60:
		out = append(out, finding.Finding{
			Level: finding.LevelInfo, Code: "PERMIT_LONG_EXPIRY",
			Message: "permit remains valid for more than 180 days",
		})
	}
	return out
}

// EIP7702AuthorizationFinding flags a 7702 authorizationList on a
// transaction request: an EOA delegating its code to a contract
// implementation is high-impact enough to always surface, regardless of
// the delegated address's own reputation (§4.3 supplement).
func EIP7702AuthorizationFinding(count int) finding.Finding {
	return finding.Finding{
		Level:   finding.LevelWarning,
		Code:    "EIP7702_AUTHORIZATION",
		Message: "transaction includes an EIP-7702 authorization delegating this account's code to a contract",
		Details: map[string]any{"authorizationCount": count},
	}
}

func numericField(v any) (int64, bool) {
	switch t := v.(type) {
	case string:
		return parseInt64(t)
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}

func parseInt64(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isUnlimitedDecimalString(s string, max *big.Int) bool {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return false
	}
	return n.Cmp(max) == 0
}
