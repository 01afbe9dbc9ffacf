package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/policy"
)

func defaultPolicy() policy.Policy {
	return policy.Policy{Threshold: finding.Caution, OnRisk: policy.OnRiskPrompt}
}

func TestDecide_NotRiskySimulationOkForwards(t *testing.T) {
	d := policy.Decide(finding.OK, true, defaultPolicy(), true)
	assert.Equal(t, policy.Forward, d)
}

func TestDecide_NotInteractiveBlocksWhenRisky(t *testing.T) {
	d := policy.Decide(finding.Danger, true, defaultPolicy(), false)
	assert.Equal(t, policy.Block, d)
}

func TestDecide_SimulationFailedBlocksUnlessAllowed(t *testing.T) {
	p := defaultPolicy()
	d := policy.Decide(finding.OK, false, p, true)
	assert.Equal(t, policy.Block, d)

	p.AllowPromptWhenSimulationFails = true
	d = policy.Decide(finding.OK, false, p, true)
	assert.Equal(t, policy.Prompt, d)
}

func TestDecide_RiskyInteractiveFallsBackToOnRisk(t *testing.T) {
	d := policy.Decide(finding.Danger, true, defaultPolicy(), true)
	assert.Equal(t, policy.Prompt, d)
}

func TestEvaluate_DisabledAllowlistNeverViolates(t *testing.T) {
	al := policy.NewAllowlist(nil, nil)
	result := policy.Evaluate(al, policy.EvaluationInput{SimSpenders: []string{"0xbad"}})
	assert.Empty(t, result.Violations)
}

func TestEvaluate_UnknownSpenderViolates(t *testing.T) {
	al := policy.NewAllowlist(nil, []string{"0x2222222222222222222222222222222222222222"})
	result := policy.Evaluate(al, policy.EvaluationInput{SimSpenders: []string{"0x1111111111111111111111111111111111111111"}})
	if assert.Len(t, result.Violations, 1) {
		assert.Equal(t, policy.KindApprovalSpender, result.Violations[0].Kind)
		assert.Equal(t, policy.SourceSimulation, result.Violations[0].Source)
	}
}

func TestEvaluate_TargetNotInAllowlistViolates(t *testing.T) {
	al := policy.NewAllowlist([]string{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}, nil)
	result := policy.Evaluate(al, policy.EvaluationInput{To: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"})
	if assert.Len(t, result.Violations, 1) {
		assert.Equal(t, policy.KindTarget, result.Violations[0].Kind)
	}
}

func TestEvaluate_SimulationFailedWithNoDiscoveredSpendersFlagsUnknown(t *testing.T) {
	al := policy.NewAllowlist(nil, []string{"0x2222222222222222222222222222222222222222"})
	result := policy.Evaluate(al, policy.EvaluationInput{SimulationRan: true, SimulationOK: false})
	assert.True(t, result.UnknownApprovalSpenders)
}

func TestDecideWithAllowlist_UpgradesForwardOnViolation(t *testing.T) {
	al := policy.NewAllowlist(nil, []string{"0x2222222222222222222222222222222222222222"})
	result := policy.Evaluate(al, policy.EvaluationInput{SimSpenders: []string{"0x1111111111111111111111111111111111111111"}})

	decision, rec := policy.DecideWithAllowlist(finding.OK, true, defaultPolicy(), true, result)
	assert.Equal(t, policy.Prompt, decision)
	assert.Equal(t, finding.Warning, rec)
}

func TestDecideWithAllowlist_NonInteractiveViolationBlocks(t *testing.T) {
	al := policy.NewAllowlist(nil, []string{"0x2222222222222222222222222222222222222222"})
	result := policy.Evaluate(al, policy.EvaluationInput{SimSpenders: []string{"0x1111111111111111111111111111111111111111"}})

	decision, _ := policy.DecideWithAllowlist(finding.OK, true, defaultPolicy(), false, result)
	assert.Equal(t, policy.Block, decision)
}

func TestAllowlistMonotonicity(t *testing.T) {
	// Adding an address to the allowlist can only turn block->prompt or
	// prompt->forward, never the reverse (spec §8 law).
	spender := "0x1111111111111111111111111111111111111111"
	alBlocking := policy.NewAllowlist(nil, []string{"0x9999999999999999999999999999999999999999"})
	alAllowing := policy.NewAllowlist(nil, []string{spender})

	before := policy.Evaluate(alBlocking, policy.EvaluationInput{SimSpenders: []string{spender}})
	after := policy.Evaluate(alAllowing, policy.EvaluationInput{SimSpenders: []string{spender}})

	decisionBefore, _ := policy.DecideWithAllowlist(finding.OK, true, defaultPolicy(), false, before)
	decisionAfter, _ := policy.DecideWithAllowlist(finding.OK, true, defaultPolicy(), false, after)

	assert.Equal(t, policy.Block, decisionBefore)
	assert.Equal(t, policy.Forward, decisionAfter)
}
