package simulator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/assay-gate/assay/internal/abi"
)

var balanceOfSelectorBytes = func() []byte {
	sel, _ := decodeHex(abi.Selector("balanceOf(address)"))
	return sel
}()

// impersonatedNativeBalance is the balance every impersonated sender is
// topped up to (§4.5 step 2: "so gas never limits analysis").
var impersonatedNativeBalance = new(big.Int).Lsh(big.NewInt(1), 74) // ~10^22

func balanceOfCalldata(holder string) ([]byte, error) {
	addrBytes, err := decodeHex(holder)
	if err != nil {
		return nil, err
	}
	word := make([]byte, 32)
	copy(word[32-len(addrBytes):], addrBytes)
	return append(append([]byte(nil), balanceOfSelectorBytes...), word...), nil
}

func readERC20Balance(ctx context.Context, node AnvilInstance, token, holder, blockNumber string) (*big.Int, error) {
	data, err := balanceOfCalldata(holder)
	if err != nil {
		return nil, err
	}
	out, err := node.Call(ctx, CallParams{To: token, Data: data, BlockNumber: blockNumber})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(out), nil
}

func readBalances(ctx context.Context, node AnvilInstance, tokens []string, holder, blockNumber string) (map[string]*big.Int, []string) {
	out := make(map[string]*big.Int, len(tokens))
	var notes []string
	for _, token := range tokens {
		bal, err := readERC20Balance(ctx, node, token, holder, blockNumber)
		if err != nil {
			notes = append(notes, fmt.Sprintf("balance read failed for token %s: %v", token, err))
			continue
		}
		out[token] = bal
	}
	return out, notes
}

// simulateFull implements §4.5's full profile, steps 1-11: snapshot,
// impersonate+fund, run the shared execution core, revert+
// stop-impersonating.
func simulateFull(ctx context.Context, node AnvilInstance, req Request) (Result, error) {
	snapshotID, err := node.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("simulator: snapshot: %w", err)
	}
	defer func() {
		_ = node.Revert(ctx, snapshotID)
		_ = node.StopImpersonatingAccount(ctx, req.From)
	}()

	if err := node.ImpersonateAccount(ctx, req.From); err != nil {
		return Result{}, fmt.Errorf("simulator: impersonate: %w", err)
	}
	if err := node.SetBalance(ctx, req.From, impersonatedNativeBalance); err != nil {
		return Result{}, fmt.Errorf("simulator: set balance: %w", err)
	}

	return runSimulation(ctx, node, req, false)
}

// runSimulation is §4.5 steps 3-10: the execution-and-diffing core
// shared by both profiles, once the caller has already arranged
// impersonation/funding and will handle its own revert/reset afterward.
// skipMetadata implements the wallet-fast "skip metadata lookups when
// budget <= 0" rule.
func runSimulation(ctx context.Context, node AnvilInstance, req Request, skipMetadata bool) (Result, error) {
	var notes []string

	candidates := CandidateTokens(req.Chain, req.To, req.TargetIsERC20)

	senderCode, err := node.GetCode(ctx, req.From)
	if err != nil {
		return Result{}, fmt.Errorf("simulator: sender code check: %w", err)
	}
	isContractSender := len(senderCode) > 0

	nativeBefore, err := node.GetBalance(ctx, req.From)
	if err != nil {
		return Result{}, fmt.Errorf("simulator: pre-balance: %w", err)
	}
	preBalances, preNotes := readBalances(ctx, node, candidates, req.From, "")
	notes = append(notes, preNotes...)

	hash, sendErr := node.SendUnsignedTransaction(ctx, UnsignedTx{From: req.From, To: req.To, Data: req.Data, Value: req.Value})
	if sendErr != nil {
		return failedResult(ctx, node, req, "send failed: "+sendErr.Error()), nil
	}
	receipt, waitErr := node.WaitForTransactionReceipt(ctx, hash)
	if waitErr != nil {
		return failedResult(ctx, node, req, "receipt wait failed: "+waitErr.Error()), nil
	}
	if receipt.Status == 0 {
		out, callErr := node.Call(ctx, CallParams{From: req.From, To: req.To, Data: req.Data, Value: req.Value})
		reason := "transaction reverted"
		if callErr == nil {
			reason = DecodeRevertReason(out)
		}
		return Result{
			Success:           false,
			RevertReason:      reason,
			GasUsed:           receipt.GasUsed,
			EffectiveGasPrice: receipt.EffectiveGasPrice,
			Balances:          BalanceGroup{Confidence: ConfidenceLow},
			Approvals:         ApprovalGroup{Confidence: ConfidenceLow},
			Notes:             notes,
		}, nil
	}

	transferEvents, approvalEvents := ParseLogs(receipt.Logs)

	tokenSet := make(map[string]bool, len(candidates))
	for _, t := range candidates {
		tokenSet[t] = true
	}
	var newTokens []string
	for _, e := range transferEvents {
		if e.AssetType == AssetERC20 && e.Token != "" && !tokenSet[e.Token] {
			tokenSet[e.Token] = true
			newTokens = append(newTokens, e.Token)
		}
	}
	candidates = append(candidates, newTokens...)

	if len(newTokens) > 0 && receipt.BlockNumber > 0 {
		preBlock := fmt.Sprintf("0x%x", receipt.BlockNumber-1)
		extra, extraNotes := readBalances(ctx, node, newTokens, req.From, preBlock)
		for k, v := range extra {
			preBalances[k] = v
		}
		notes = append(notes, extraNotes...)
	}

	nativeAfter, err := node.GetBalance(ctx, req.From)
	if err != nil {
		return Result{}, fmt.Errorf("simulator: post-balance: %w", err)
	}
	postBalances, postNotes := readBalances(ctx, node, candidates, req.From, "")
	notes = append(notes, postNotes...)

	gasCost := new(big.Int)
	if receipt.EffectiveGasPrice != nil {
		gasCost = new(big.Int).Mul(big.NewInt(int64(receipt.GasUsed)), receipt.EffectiveGasPrice)
	}
	nativeDiff := new(big.Int).Sub(nativeAfter, nativeBefore)
	nativeDiff.Add(nativeDiff, gasCost)

	assetChanges := BuildAssetChanges(req.From, transferEvents)
	hadPartialBalanceRead := len(preNotes) > 0 || len(postNotes) > 0
	for _, token := range candidates {
		before, hasBefore := preBalances[token]
		after, hasAfter := postBalances[token]
		if !hasBefore || !hasAfter {
			hadPartialBalanceRead = true
			continue
		}
		diff := new(big.Int).Sub(after, before)
		if diff.Sign() == 0 {
			continue
		}
		dir := DirectionIn
		if diff.Sign() < 0 {
			dir = DirectionOut
			diff = diff.Neg(diff)
		}
		assetChanges = append(assetChanges, AssetChange{AssetType: AssetERC20, Address: token, Amount: diff, Direction: dir})
	}
	if nativeDiff.Sign() != 0 {
		dir := DirectionIn
		amt := new(big.Int).Set(nativeDiff)
		if amt.Sign() < 0 {
			dir = DirectionOut
			amt = amt.Neg(amt)
		}
		assetChanges = append([]AssetChange{{AssetType: AssetNative, Amount: amt, Direction: dir, Counterparty: req.To}}, assetChanges...)
	}

	approvalChanges := FilterApprovalsByOwner(req.From, approvalEvents)

	if !skipMetadata {
		metaCache := make(map[string]TokenMetadata)
		assetChanges = EnrichAssetChanges(ctx, node, assetChanges, metaCache)
		approvalChanges = EnrichApprovalChanges(ctx, node, approvalChanges, metaCache)
	}

	return Result{
		Success:           true,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		NativeDiff:        nativeDiff,
		Balances:          BalanceGroup{Changes: assetChanges, Confidence: computeConfidence(isContractSender, hadPartialBalanceRead, len(assetChanges) > 0)},
		Approvals:         ApprovalGroup{Changes: approvalChanges, Confidence: computeConfidence(isContractSender, false, len(approvalChanges) > 0)},
		Notes:             notes,
	}, nil
}

func failedResult(ctx context.Context, node AnvilInstance, req Request, note string) Result {
	out, callErr := node.Call(ctx, CallParams{From: req.From, To: req.To, Data: req.Data, Value: req.Value})
	reason := note
	if callErr == nil {
		reason = DecodeRevertReason(out)
	}
	return Result{
		Success:      false,
		RevertReason: reason,
		Balances:     BalanceGroup{Confidence: ConfidenceLow},
		Approvals:    ApprovalGroup{Confidence: ConfidenceLow},
		Notes:        []string{note},
	}
}

// computeConfidence implements §4.5's confidence rules. The
// contract-sender-with-observable-deltas case resolves SPEC_FULL.md
// Open Question 4 in favor of not downgrading to "low" purely for being
// a contract once deltas were actually observed.
func computeConfidence(isContractSender, hadPartialRead, observedDeltas bool) Confidence {
	switch {
	case hadPartialRead:
		return ConfidenceMedium
	case isContractSender && !observedDeltas:
		return ConfidenceLow
	case isContractSender && observedDeltas:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}
