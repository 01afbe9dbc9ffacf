// Package verdict implements §4.5's post-simulation drainer heuristics
// (applySimulationVerdict): it runs once a BalanceSimulationResult exists
// for a calldata scan, adding findings a static analysis of the calldata
// alone could never produce (observed transfer/approval counterparties),
// then clamps the recommendation.
package verdict

import (
	"strings"

	"github.com/assay-gate/assay/internal/abi"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/simulator"
)

// Apply implements §4.5 applySimulationVerdict: given the simulation
// result and the chain's known-spender set, returns the findings to
// append and the recommendation to use from here on (never lower than
// the one passed in — this only clamps upward).
func Apply(result simulator.Result, chainID int64, current finding.Recommendation) ([]finding.Finding, finding.Recommendation) {
	if !result.Success {
		return nil, finding.Max(current, finding.Caution)
	}

	known := abi.KnownSpenders(chainID)
	var findings []finding.Finding

	findings = append(findings, unknownSpenderFindings(result.Approvals.Changes, known)...)
	findings = append(findings, approvalForAllFindings(result.Approvals.Changes, known)...)
	if f, ok := outboundTransferFinding(result.Balances.Changes, known); ok {
		findings = append(findings, f)
	}

	rec := finding.Max(current, finding.FromFindings(findings))
	return findings, rec
}

// unknownSpenderFindings implements the unlimited-ERC20/Permit2-to-
// unknown-spender rule.
func unknownSpenderFindings(changes []simulator.ApprovalChange, known map[string]bool) []finding.Finding {
	var out []finding.Finding
	for _, c := range changes {
		if c.Amount == nil || known[strings.ToLower(c.Spender)] {
			continue
		}
		unlimited := false
		switch c.Standard {
		case simulator.ApprovalERC20:
			unlimited = c.Amount.Cmp(abi.MaxUint256) == 0
		case simulator.ApprovalPermit2:
			unlimited = c.Amount.Cmp(abi.MaxUint160) == 0
		}
		if !unlimited {
			continue
		}
		out = append(out, finding.Finding{
			Level:   finding.LevelWarning,
			Code:    "SIM_UNLIMITED_APPROVAL_UNKNOWN_SPENDER",
			Message: "simulation observed an unlimited approval granted to a spender not on the known-router allowlist",
			Details: map[string]any{"spender": c.Spender, "token": c.Token, "standard": string(c.Standard)},
		})
	}
	return out
}

// approvalForAllFindings implements the ERC-721/1155 setApprovalForAll
// rule.
func approvalForAllFindings(changes []simulator.ApprovalChange, known map[string]bool) []finding.Finding {
	var out []finding.Finding
	for _, c := range changes {
		if c.Scope != simulator.ScopeAll || !c.Approved {
			continue
		}
		if known[strings.ToLower(c.Spender)] {
			continue
		}
		out = append(out, finding.Finding{
			Level:   finding.LevelDanger,
			Code:    "SIM_APPROVAL_FOR_ALL_UNKNOWN_OPERATOR",
			Message: "simulation observed blanket (setApprovalForAll) transfer rights granted to an unrecognized operator",
			Details: map[string]any{"operator": c.Spender, "token": c.Token, "standard": string(c.Standard)},
		})
	}
	return out
}

// outboundTransferFinding implements the multiple-outbound-transfers
// rule: >=2 unknown counterparties, or >=3 total outgoing changes.
func outboundTransferFinding(changes []simulator.AssetChange, known map[string]bool) (finding.Finding, bool) {
	var outgoing int
	counterparties := make(map[string]bool)
	for _, c := range changes {
		if c.Direction != simulator.DirectionOut {
			continue
		}
		outgoing++
		if c.Counterparty != "" && !known[strings.ToLower(c.Counterparty)] {
			counterparties[strings.ToLower(c.Counterparty)] = true
		}
	}
	unknownCounterparties := len(counterparties)
	switch {
	case unknownCounterparties >= 2:
		return finding.Finding{
			Level:   finding.LevelDanger,
			Code:    "SIM_MULTIPLE_OUTBOUND_TRANSFERS",
			Message: "simulation observed outgoing transfers to multiple distinct counterparties",
			Details: map[string]any{"outgoing": outgoing, "counterparties": unknownCounterparties},
		}, true
	case outgoing >= 3:
		return finding.Finding{
			Level:   finding.LevelWarning,
			Code:    "SIM_MULTIPLE_OUTBOUND_TRANSFERS",
			Message: "simulation observed several outgoing transfers in a single transaction",
			Details: map[string]any{"outgoing": outgoing},
		}, true
	default:
		return finding.Finding{}, false
	}
}
