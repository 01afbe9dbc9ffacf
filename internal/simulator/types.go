// Package simulator implements §4.5: forked-EVM pre-flight execution
// of a pending transaction, turning raw receipt logs into the signed
// balance/approval deltas the verdict layer reasons about.
package simulator

import (
	"math/big"

	"github.com/assay-gate/assay/internal/chain"
)

// Confidence is the §3 BalanceSimulationResult confidence scale. Unlike
// analyzer.Confidence it has a fourth "none" value: simulation was never
// attempted at all.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// confidenceRank orders confidence so downgrades (never upgrades) can be applied
// with a simple min.
var confidenceRank = map[Confidence]int{
	ConfidenceNone:   0,
	ConfidenceLow:    1,
	ConfidenceMedium: 2,
	ConfidenceHigh:   3,
}

// downgrade returns the lower of the two confidences, enforcing the §4.5
// "confidence never upgrades across the pipeline" rule.
func downgrade(a, b Confidence) Confidence {
	if confidenceRank[b] < confidenceRank[a] {
		return b
	}
	return a
}

// AssetType tags the token standard an AssetChange belongs to.
type AssetType string

const (
	AssetNative AssetType = "native"
	AssetERC20  AssetType = "erc20"
	AssetERC721 AssetType = "erc721"
	AssetERC1155 AssetType = "erc1155"
)

// Direction is relative to the simulated wallet.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// AssetChange is the §3 AssetChange record.
type AssetChange struct {
	AssetType    AssetType
	Address      string // token contract; empty for native
	TokenID      *big.Int
	Amount       *big.Int
	Direction    Direction
	Counterparty string
	Symbol       string
	Decimals     int
	HasDecimals  bool
}

// ApprovalStandard tags which approval shape an ApprovalChange records.
type ApprovalStandard string

const (
	ApprovalERC20    ApprovalStandard = "erc20"
	ApprovalERC721   ApprovalStandard = "erc721"
	ApprovalERC1155  ApprovalStandard = "erc1155"
	ApprovalPermit2  ApprovalStandard = "permit2"
)

// ApprovalScope distinguishes a single-token allowance from an
// operator-wide (setApprovalForAll-style) grant.
type ApprovalScope string

const (
	ScopeToken ApprovalScope = "token"
	ScopeAll   ApprovalScope = "all"
)

// ApprovalChange is the §3 ApprovalChange record.
type ApprovalChange struct {
	Standard         ApprovalStandard
	Token            string
	Owner            string
	Spender          string
	Amount           *big.Int
	PreviousAmount   *big.Int
	TokenID          *big.Int
	Scope            ApprovalScope
	Approved         bool
	PreviousApproved *bool
	PreviousSpender  string
	Symbol           string
	Decimals         int
	HasDecimals      bool
}

// BalanceGroup is the §3 `balances` field of BalanceSimulationResult.
type BalanceGroup struct {
	Changes    []AssetChange
	Confidence Confidence
}

// ApprovalGroup is the §3 `approvals` field.
type ApprovalGroup struct {
	Changes    []ApprovalChange
	Confidence Confidence
}

// Result is the §3 BalanceSimulationResult.
type Result struct {
	Success           bool
	RevertReason      string
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	NativeDiff        *big.Int
	Balances          BalanceGroup
	Approvals         ApprovalGroup
	Notes             []string
}

// Profile selects the §4.5 execution pipeline.
type Profile string

const (
	ProfileFull       Profile = "full"
	ProfileWalletFast Profile = "wallet-fast"
)

// Request is the simulator's input for one pre-signing call.
type Request struct {
	Chain      chain.Chain
	From       string
	To         string
	Data       []byte
	Value      *big.Int
	Profile    Profile
	BudgetMs   int64
	// TargetIsERC20 is true when the calldata decoder (§4.3) classified
	// To's call as a standard ERC-20 function, so To itself joins the
	// balance-read candidate set (§4.5 step 3).
	TargetIsERC20 bool
	// DirectERC20Approve carries an approval change decoded straight from
	// calldata. Neither profile reads it: approval changes come from
	// receipt logs only.
	DirectERC20Approve *ApprovalChange
}
