package analyzer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/providers"
	"github.com/assay-gate/assay/internal/timebudget"
)

// mainFanOutResult holds one Step per §4.4 step 3 main-fanout provider, in
// the fixed MainFanOut order (proxy detection included; step 2 only ran
// the is-contract check).
type mainFanOutResult struct {
	sourcify  providers.Step[providers.VerificationResult]
	labels    providers.Step[map[string]struct{}]
	etherscan providers.Step[*providers.ExplorerResult]
	proxy     providers.Step[providers.ProxyInfo]
	protocol  providers.Step[providers.ProtocolMatch]
	tokenSec  providers.Step[providers.TokenSecurity]
}

type implFanOutResult struct {
	sourcifyImpl providers.Step[providers.VerificationResult]
	protocolImpl providers.Step[providers.ProtocolMatch]
}

// fanOutMain runs §4.4 step 3: at most 3 concurrent provider calls sharing
// the total budget, each timeboxed to min(per-provider budget, remaining).
func (a *Analyzer) fanOutMain(parent context.Context, c chain.Chain, address string, budget *timebudget.Budget, policy providers.AnalyzePolicy) mainFanOutResult {
	var result mainFanOutResult
	var g errgroup.Group
	g.SetLimit(3)

	if a.Sourcify != nil && policy.Providers[providers.Sourcify].Enabled {
		g.Go(func() error {
			result.sourcify = runStep(parent, budget, policy.Providers[providers.Sourcify].TimeoutMs, func(ctx context.Context) (providers.VerificationResult, error) {
				return a.Sourcify.Verify(ctx, chain.Lookup(c).ChainID, address, providers.RequestOptions{Ctx: ctx, Cache: true})
			})
			return nil
		})
	} else {
		result.sourcify = providers.Skipped[providers.VerificationResult]("disabled")
	}

	if a.PhishLabels != nil && policy.Providers[providers.EtherscanLabels].Enabled {
		g.Go(func() error {
			result.labels = runStep(parent, budget, policy.Providers[providers.EtherscanLabels].TimeoutMs, func(ctx context.Context) (map[string]struct{}, error) {
				return a.PhishLabels.Labels(ctx, chain.Lookup(c).ChainID, providers.RequestOptions{Ctx: ctx})
			})
			return nil
		})
	} else {
		result.labels = providers.Skipped[map[string]struct{}]("disabled")
	}

	if a.Etherscan != nil && a.Etherscan.Enabled() && policy.Providers[providers.Etherscan].Enabled {
		g.Go(func() error {
			result.etherscan = runStep(parent, budget, policy.Providers[providers.Etherscan].TimeoutMs, func(ctx context.Context) (*providers.ExplorerResult, error) {
				return a.Etherscan.Lookup(ctx, address, providers.RequestOptions{Ctx: ctx})
			})
			return nil
		})
	} else {
		result.etherscan = providers.Skipped[*providers.ExplorerResult]("disabled")
	}

	if a.ProxyDetect != nil && policy.Providers[providers.Proxy].Enabled {
		g.Go(func() error {
			result.proxy = runStep(parent, budget, policy.Providers[providers.Proxy].TimeoutMs, func(ctx context.Context) (providers.ProxyInfo, error) {
				return a.ProxyDetect.DetectProxy(ctx, address, providers.RequestOptions{Ctx: ctx})
			})
			return nil
		})
	} else {
		result.proxy = providers.Skipped[providers.ProxyInfo]("disabled")
	}

	if a.Protocol != nil && policy.Providers[providers.DefiLlama].Enabled {
		g.Go(func() error {
			result.protocol = runStep(parent, budget, policy.Providers[providers.DefiLlama].TimeoutMs, func(ctx context.Context) (providers.ProtocolMatch, error) {
				return a.Protocol.Match(ctx, c, address, true, providers.RequestOptions{Ctx: ctx, Cache: true})
			})
			return nil
		})
	} else {
		result.protocol = providers.Skipped[providers.ProtocolMatch]("disabled")
	}

	if a.TokenSecurity != nil && policy.Providers[providers.GoPlus].Enabled {
		g.Go(func() error {
			result.tokenSec = runStep(parent, budget, policy.Providers[providers.GoPlus].TimeoutMs, func(ctx context.Context) (providers.TokenSecurity, error) {
				return a.TokenSecurity.Check(ctx, chain.Lookup(c).ChainID, address, providers.RequestOptions{Ctx: ctx, Cache: true})
			})
			return nil
		})
	} else {
		result.tokenSec = providers.Skipped[providers.TokenSecurity]("disabled")
	}

	_ = g.Wait()
	return result
}

// fanOutImpl runs §4.4 step 5: bounded (<=2) follow-up on the proxy's
// implementation address. sourcifyImpl always runs; protocolImpl only if
// the main fan-out's protocol match was a miss.
func (a *Analyzer) fanOutImpl(parent context.Context, c chain.Chain, implAddress string, budget *timebudget.Budget, policy providers.AnalyzePolicy, mainProtocolMatched bool) implFanOutResult {
	var result implFanOutResult
	var g errgroup.Group
	g.SetLimit(2)

	if a.Sourcify != nil {
		g.Go(func() error {
			result.sourcifyImpl = runStep(parent, budget, policy.Providers[providers.SourcifyImpl].TimeoutMs, func(ctx context.Context) (providers.VerificationResult, error) {
				return a.Sourcify.Verify(ctx, chain.Lookup(c).ChainID, implAddress, providers.RequestOptions{Ctx: ctx, Cache: true})
			})
			return nil
		})
	}

	if !mainProtocolMatched && a.Protocol != nil && policy.Providers[providers.DefiLlamaImpl].Enabled {
		g.Go(func() error {
			result.protocolImpl = runStep(parent, budget, policy.Providers[providers.DefiLlamaImpl].TimeoutMs, func(ctx context.Context) (providers.ProtocolMatch, error) {
				return a.Protocol.Match(ctx, c, implAddress, true, providers.RequestOptions{Ctx: ctx, Cache: true})
			})
			return nil
		})
	} else {
		result.protocolImpl = providers.Skipped[providers.ProtocolMatch]("already matched or disabled")
	}

	_ = g.Wait()
	return result
}

// runStep executes fn under the timebudget runner and converts the
// Outcome into a providers.Step, absorbing timeouts/errors per §4.4's
// failure semantics rather than letting them propagate.
func runStep[T any](parent context.Context, budget *timebudget.Budget, providerTimeoutMs int64, fn timebudget.Task[T]) providers.Step[T] {
	remaining := budget.RemainingMs()
	if remaining <= 0 {
		return providers.Skipped[T]("skipped (budget exhausted)")
	}
	timeout := providerTimeoutMs
	if remaining < timeout {
		timeout = remaining
	}
	outcome := timebudget.RunWithTimeout(timebudget.Options{TimeoutMs: timeout, ParentCtx: parent}, fn)
	switch outcome.Reason {
	case timebudget.ReasonOK:
		return providers.Ok(outcome.Value)
	case timebudget.ReasonTimeout:
		return providers.Timeout[T]()
	case timebudget.ReasonAborted:
		return providers.Skipped[T]("skipped (parent cancelled)")
	default:
		return providers.Err[T](outcome.Err)
	}
}
