package simulator

import (
	"context"
	"fmt"
)

// simulateWalletFast implements §4.5's wallet-fast profile. Unlike the
// full profile's per-call snapshot-then-revert, it uses the instance's
// §6.3 warm-reset: ResetFork restores the node to its last clean
// baseline (reverting to a recorded snapshot, or falling back to
// anvil_reset the first time one hasn't been recorded yet) before the
// call runs, and the next call's ResetFork cleans up after this one —
// one round trip instead of two, plus skipping the full pipeline's
// metadata lookups (symbol/decimals for every candidate token) when
// req.BudgetMs <= 0, so a wallet's synchronous prompt has a fast yes/no.
func simulateWalletFast(ctx context.Context, inst *Instance, forkURL string, forkBlock int64, req Request) (Result, error) {
	if _, err := inst.ResetFork(ctx, forkURL, forkBlock); err != nil {
		return Result{}, fmt.Errorf("simulator: warm reset: %w", err)
	}

	node := inst.Client
	defer func() {
		_ = node.StopImpersonatingAccount(ctx, req.From)
	}()

	if err := node.ImpersonateAccount(ctx, req.From); err != nil {
		return Result{}, err
	}
	if err := node.SetBalance(ctx, req.From, impersonatedNativeBalance); err != nil {
		return Result{}, err
	}

	return runSimulation(ctx, node, req, req.BudgetMs <= 0)
}

// Run implements §4.5's entry point against a pooled fork instance:
// acquire the (chain, forkURL, forkBlock) instance, serialize the call
// through its per-instance task queue so concurrent scans against the
// same node never interleave, and dispatch to the profile's pipeline.
func Run(ctx context.Context, pool *Pool, forkURL string, forkBlock int64, req Request) (Result, error) {
	inst, err := pool.Acquire(InstanceKey{Chain: req.Chain, ForkURL: forkURL, ForkBlock: forkBlock})
	if err != nil {
		return Result{}, err
	}

	var result Result
	runErr := inst.RunExclusive(ctx, func(ctx context.Context) error {
		var simErr error
		if req.Profile == ProfileWalletFast {
			result, simErr = simulateWalletFast(ctx, inst, forkURL, forkBlock, req)
		} else {
			result, simErr = simulateFull(ctx, inst.Client, req)
		}
		return simErr
	})
	if runErr != nil {
		return Result{}, runErr
	}
	return result, nil
}
