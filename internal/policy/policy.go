// Package policy implements §4.7: the recommendation-threshold decision
// function and the allowlist evaluator, composed into the proxy's
// forward/prompt/block outcome for one intercepted entry.
package policy

import (
	"strings"

	"github.com/assay-gate/assay/internal/finding"
)

// Decision is the §4.7/§4.8 policy outcome for one intercepted entry.
type Decision string

const (
	Forward Decision = "forward"
	Prompt  Decision = "prompt"
	Block   Decision = "block"
)

// OnRisk names what a risky-but-interactive decision falls back to.
type OnRisk string

const (
	OnRiskBlock  OnRisk = "block"
	OnRiskPrompt OnRisk = "prompt"
)

// Policy is the §4.7 decideRiskAction policy input.
type Policy struct {
	Threshold                     finding.Recommendation
	OnRisk                        OnRisk
	AllowPromptWhenSimulationFails bool
}

// Decide implements §4.7 decideRiskAction steps 1-5 (allowlist composition
// is layered on top by DecideWithAllowlist, since the spec keeps the two
// concerns separate: this function alone handles recommendation+
// simulation-success, unaware of allowlists).
func Decide(recommendation finding.Recommendation, simulationSuccess bool, p Policy, isInteractive bool) Decision {
	risky := finding.AtLeast(recommendation, p.Threshold)

	if !risky && simulationSuccess {
		return Forward
	}
	if !isInteractive {
		return Block
	}
	if !simulationSuccess && !p.AllowPromptWhenSimulationFails {
		return Block
	}
	return onRiskDecision(p.OnRisk)
}

func onRiskDecision(r OnRisk) Decision {
	if r == OnRiskPrompt {
		return Prompt
	}
	return Block
}

// ViolationKind tags which allowlist set a touched address failed to
// appear in.
type ViolationKind string

const (
	KindApprovalSpender ViolationKind = "approvalSpender"
	KindTarget          ViolationKind = "target"
)

// ViolationSource tags which part of the scan response a violating
// address was extracted from.
type ViolationSource string

const (
	SourceSimulation ViolationSource = "simulation"
	SourceCalldata   ViolationSource = "calldata"
	SourceTo         ViolationSource = "to"
)

// Violation is one allowlist mismatch (§4.7).
type Violation struct {
	Kind    ViolationKind
	Address string
	Source  ViolationSource
}

// Allowlist is the optional §6.4 allowlist config, lowercased for
// case-insensitive membership tests.
type Allowlist struct {
	Enabled  bool
	To       map[string]bool
	Spenders map[string]bool
}

// NewAllowlist builds an Allowlist from the raw config lists. Enabled is
// true iff at least one of the two lists is non-empty — an empty
// allowlist config means "no allowlist enforcement", not "allow nothing".
func NewAllowlist(to, spenders []string) Allowlist {
	al := Allowlist{To: toSet(to), Spenders: toSet(spenders)}
	al.Enabled = len(al.To) > 0 || len(al.Spenders) > 0
	return al
}

func toSet(addrs []string) map[string]bool {
	out := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		out[strings.ToLower(a)] = true
	}
	return out
}

// SpenderSource pairs a touched spender address with where it was found,
// the evaluator's raw input before allowlist comparison.
type SpenderSource struct {
	Address string
	Source  ViolationSource
}

// EvaluationInput is everything Evaluate needs to extract touched
// addresses: the simulation's approval spenders and the decoded
// calldata's spender/operator argument, plus the transaction's target.
type EvaluationInput struct {
	To              string
	SimSpenders     []string // simulation.approvals.changes[*].spender
	CalldataSpender string   // findings[code=CALLDATA_DECODED].details.args.spender|operator, if present
	SimulationRan   bool
	SimulationOK    bool
}

// Result is the §4.7 allowlist evaluation output.
type Result struct {
	Violations              []Violation
	UnknownApprovalSpenders bool
}

// Evaluate implements §4.7's allowlist evaluator. When the allowlist is
// disabled it always returns an empty, clean Result (no spenders/targets
// are ever checked).
func Evaluate(al Allowlist, in EvaluationInput) Result {
	if !al.Enabled {
		return Result{}
	}

	var out Result
	seen := make(map[string]bool)
	checkSpender := func(addr string, source ViolationSource) {
		addr = strings.ToLower(addr)
		if addr == "" || seen[addr+string(source)] {
			return
		}
		seen[addr+string(source)] = true
		if !al.Spenders[addr] {
			out.Violations = append(out.Violations, Violation{Kind: KindApprovalSpender, Address: addr, Source: source})
		}
	}

	discoveredAny := false
	for _, s := range in.SimSpenders {
		discoveredAny = true
		checkSpender(s, SourceSimulation)
	}
	if in.CalldataSpender != "" {
		discoveredAny = true
		checkSpender(in.CalldataSpender, SourceCalldata)
	}

	if len(al.To) > 0 && in.To != "" {
		to := strings.ToLower(in.To)
		if !al.To[to] {
			out.Violations = append(out.Violations, Violation{Kind: KindTarget, Address: to, Source: SourceTo})
		}
	}

	// §4.7 special case: allowlist enabled, simulation failed, and no
	// spenders were discovered from either source — the evaluator cannot
	// tell whether an approval would have touched an unknown spender.
	if len(al.Spenders) > 0 && in.SimulationRan && !in.SimulationOK && !discoveredAny {
		out.UnknownApprovalSpenders = true
	}

	return out
}

// DecideWithAllowlist layers §4.7's allowlist-upgrade rule on top of
// Decide: a forward decision with any violation present is upgraded to
// the policy's onRisk action (or block, if not interactive). The
// recommendation passed back out is clamped to at least Warning per the
// same paragraph ("Allowlist violations also clamp recommendation to at
// least warning before the block-reason metadata is built").
func DecideWithAllowlist(recommendation finding.Recommendation, simulationSuccess bool, p Policy, isInteractive bool, allowlistResult Result) (Decision, finding.Recommendation) {
	decision := Decide(recommendation, simulationSuccess, p, isInteractive)

	hasViolations := len(allowlistResult.Violations) > 0 || allowlistResult.UnknownApprovalSpenders
	if !hasViolations {
		return decision, recommendation
	}

	clamped := finding.Max(recommendation, finding.Warning)
	if decision == Forward {
		if isInteractive {
			decision = onRiskDecision(p.OnRisk)
		} else {
			decision = Block
		}
	}
	return decision, clamped
}
