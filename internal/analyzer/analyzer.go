// Package analyzer implements §4.4: given (address, chain), fan out to
// the provider adapters under a shared time budget, assemble a
// deterministic set of findings and a display name, and compute the
// aggregate recommendation.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/providers"
	"github.com/assay-gate/assay/internal/timebudget"
)

// Confidence is the §4.4 step 7 contract.confidence value.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ContractInfo is the §3 Contract record the analyzer produces.
type ContractInfo struct {
	Address             string
	IsContract          bool
	Verified            bool
	VerificationKnown   bool
	Name                string
	ABI                 json.RawMessage
	Source              string
	IsProxy             bool
	ProxyType           providers.ProxyType
	Implementation      string
	ImplementationName  string
	Beacon              string
	ProtocolLabel       string
	AgeDays             int
	TxCount             int
	Creator             string
	Confidence          Confidence
	DisplayName         string
}

// Result is the §3 AnalysisResult.
type Result struct {
	Contract       ContractInfo
	Findings       []finding.Finding
	Recommendation finding.Recommendation
}

// Options configures one Analyze call.
type Options struct {
	Mode      providers.Mode
	Offline   bool
	ParentCtx context.Context
}

// Analyzer wires the provider adapters together (§9 Open Question 1:
// dependency-injected, not a singleton).
type Analyzer struct {
	RPC             *providers.HTTPEVMClient
	IsContract      *providers.IsContractAdapter
	ProxyDetect     *providers.ProxyDetectAdapter
	Sourcify        *providers.SourcifyAdapter
	Etherscan       *providers.EtherscanAdapter
	PhishLabels     *providers.PhishLabelsAdapter
	Protocol        *providers.ProtocolAdapter
	TokenSecurity   *providers.TokenSecurityAdapter
	HasEtherscanKey bool
}

// Analyze implements §4.4 steps 1-9.
func (a *Analyzer) Analyze(ctx context.Context, address string, c chain.Chain, opts Options) (Result, error) {
	address = strings.ToLower(address)
	policy := providers.DefaultPolicy(opts.Mode)
	budgetMs := int64(8000)
	if policy.BudgetMs != nil {
		budgetMs = *policy.BudgetMs
	}
	budget := timebudget.New(budgetMs)
	parent := opts.ParentCtx
	if parent == nil {
		parent = ctx
	}

	if opts.Offline && a.RPC == nil {
		return Result{}, fmt.Errorf("analyzer: offline mode requires a configured RPC URL for chain %s", c)
	}

	// Step 2: RPC contact-detector short-circuit.
	isContract, err := a.detectIsContract(parent, address, budget, policy)
	if err != nil {
		return Result{}, err
	}
	if !isContract {
		return Result{
			Contract:       ContractInfo{Address: address, IsContract: false, Confidence: ConfidenceLow, DisplayName: address},
			Findings:       []finding.Finding{{Level: finding.LevelWarning, Code: "LOW_ACTIVITY", Message: "address is not a contract (no bytecode)"}},
			Recommendation: finding.Caution,
		}, nil
	}

	if opts.Offline {
		// Offline mode skips every provider except rpc/proxy (§4.4 step 1);
		// "proxy" here is detectProxy, already an RPC-backed adapter.
		proxyInfo, _ := a.detectProxy(parent, address, budget, policy)
		info := ContractInfo{
			Address:           address,
			IsContract:        true,
			VerificationKnown: false,
			IsProxy:           proxyInfo.IsProxy,
			ProxyType:         proxyInfo.ProxyType,
			Implementation:    proxyInfo.Implementation,
			Beacon:            proxyInfo.Beacon,
			Confidence:        ConfidenceMedium,
		}
		findings := []finding.Finding{{Level: finding.LevelInfo, Code: "UNKNOWN_SECURITY", Message: "offline mode: verification status unknown"}}
		if info.IsProxy {
			findings = append(findings, finding.Finding{Level: finding.LevelInfo, Code: "PROXY", Message: "contract is a proxy"})
			findings = append(findings, finding.Finding{Level: finding.LevelWarning, Code: "UPGRADEABLE", Message: "proxy implementation may change without notice"})
		}
		info.DisplayName = displayName(info)
		return Result{Contract: info, Findings: findings, Recommendation: finding.FromFindings(findings)}, nil
	}

	steps := a.fanOutMain(parent, c, address, budget, policy)

	var proxyInfo providers.ProxyInfo
	if v, ok := steps.proxy.OkValue(); ok {
		proxyInfo = v
	}

	var implSteps implFanOutResult
	if proxyInfo.IsProxy && proxyInfo.Implementation != "" {
		mainProtocolMatched := false
		if v, ok := steps.protocol.OkValue(); ok {
			mainProtocolMatched = v.Matched
		}
		implSteps = a.fanOutImpl(parent, c, proxyInfo.Implementation, budget, policy, mainProtocolMatched)
	}

	info, findings := a.assemble(address, c, proxyInfo, steps, implSteps)
	info.DisplayName = displayName(info)
	return Result{Contract: info, Findings: findings, Recommendation: finding.FromFindings(findings)}, nil
}

func (a *Analyzer) detectIsContract(parent context.Context, address string, budget *timebudget.Budget, policy providers.AnalyzePolicy) (bool, error) {
	if a.IsContract == nil {
		return true, nil
	}
	p := policy.Providers[providers.RPC]
	if !p.Enabled {
		return true, nil
	}
	outcome := timebudget.RunWithTimeout(timebudget.Options{
		TimeoutMs: minMs(p.TimeoutMs, budget.RemainingMs()),
		ParentCtx: parent,
	}, func(ctx context.Context) (bool, error) {
		return a.IsContract.IsContract(ctx, address, providers.RequestOptions{Ctx: ctx})
	})
	if outcome.Reason == timebudget.ReasonOK {
		return outcome.Value, nil
	}
	// Treat a provider failure at this gating step as "assume contract" so
	// the rest of the pipeline still runs rather than silently no-opping.
	return true, nil
}

func (a *Analyzer) detectProxy(parent context.Context, address string, budget *timebudget.Budget, policy providers.AnalyzePolicy) (providers.ProxyInfo, error) {
	if a.ProxyDetect == nil {
		return providers.ProxyInfo{}, nil
	}
	p := policy.Providers[providers.Proxy]
	outcome := timebudget.RunWithTimeout(timebudget.Options{
		TimeoutMs: minMs(p.TimeoutMs, budget.RemainingMs()),
		ParentCtx: parent,
	}, func(ctx context.Context) (providers.ProxyInfo, error) {
		return a.ProxyDetect.DetectProxy(ctx, address, providers.RequestOptions{Ctx: ctx})
	})
	if outcome.Reason == timebudget.ReasonOK {
		return outcome.Value, nil
	}
	return providers.ProxyInfo{}, outcome.Err
}

func minMs(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
