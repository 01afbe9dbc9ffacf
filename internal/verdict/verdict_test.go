package verdict_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-gate/assay/internal/abi"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/simulator"
	"github.com/assay-gate/assay/internal/verdict"
)

func TestApply_FailedSimulationClampsToCaution(t *testing.T) {
	result := simulator.Result{Success: false}
	findings, rec := verdict.Apply(result, 1, finding.OK)
	require.Empty(t, findings)
	assert.Equal(t, finding.Caution, rec)
}

func TestApply_UnlimitedApprovalToKnownSpenderIsQuiet(t *testing.T) {
	result := simulator.Result{
		Success: true,
		Approvals: simulator.ApprovalGroup{
			Changes: []simulator.ApprovalChange{
				{Standard: simulator.ApprovalERC20, Spender: "0x000000000022d473030f116ddee9f6b43ac78ba3", Amount: abi.MaxUint256},
			},
		},
	}
	findings, rec := verdict.Apply(result, 1, finding.OK)
	assert.Empty(t, findings)
	assert.Equal(t, finding.OK, rec)
}

func TestApply_UnlimitedApprovalToUnknownSpenderWarns(t *testing.T) {
	result := simulator.Result{
		Success: true,
		Approvals: simulator.ApprovalGroup{
			Changes: []simulator.ApprovalChange{
				{Standard: simulator.ApprovalERC20, Token: "0xtoken", Spender: "0xdeadbeef00000000000000000000000000dead", Amount: abi.MaxUint256},
			},
		},
	}
	findings, rec := verdict.Apply(result, 1, finding.OK)
	require.Len(t, findings, 1)
	assert.Equal(t, "SIM_UNLIMITED_APPROVAL_UNKNOWN_SPENDER", findings[0].Code)
	assert.Equal(t, finding.Warning, rec)
}

func TestApply_ApprovalForAllUnknownOperatorIsDanger(t *testing.T) {
	result := simulator.Result{
		Success: true,
		Approvals: simulator.ApprovalGroup{
			Changes: []simulator.ApprovalChange{
				{Standard: simulator.ApprovalERC721, Spender: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Scope: simulator.ScopeAll, Approved: true},
			},
		},
	}
	findings, rec := verdict.Apply(result, 1, finding.OK)
	require.Len(t, findings, 1)
	assert.Equal(t, "SIM_APPROVAL_FOR_ALL_UNKNOWN_OPERATOR", findings[0].Code)
	assert.Equal(t, finding.Danger, rec)
}

func TestApply_MultipleOutboundTransfersToDistinctCounterparties(t *testing.T) {
	result := simulator.Result{
		Success: true,
		Balances: simulator.BalanceGroup{
			Changes: []simulator.AssetChange{
				{Direction: simulator.DirectionOut, Amount: big.NewInt(1), Counterparty: "0x1111111111111111111111111111111111111111"},
				{Direction: simulator.DirectionOut, Amount: big.NewInt(1), Counterparty: "0x2222222222222222222222222222222222222222"},
			},
		},
	}
	findings, rec := verdict.Apply(result, 1, finding.OK)
	require.Len(t, findings, 1)
	assert.Equal(t, "SIM_MULTIPLE_OUTBOUND_TRANSFERS", findings[0].Code)
	assert.Equal(t, finding.Danger, rec)
}

func TestApply_NeverDowngradesIncomingRecommendation(t *testing.T) {
	result := simulator.Result{Success: true}
	_, rec := verdict.Apply(result, 1, finding.Danger)
	assert.Equal(t, finding.Danger, rec)
}
