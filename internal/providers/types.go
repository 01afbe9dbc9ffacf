// Package providers implements the uniform adapter surface of §4.2: one
// Go type per external signal source (RPC node, verification service,
// explorer, explorer labels, protocol matcher, token-security scanner),
// all accepting the same RequestOptions and surfacing network failures as
// errors rather than swallowing them, so the timebudget runner can tell a
// real timeout apart from "no data available".
package providers

import (
	"context"
)

// ID names a logical provider in the fixed iteration order the analyzer
// depends on for deterministic finding assembly (§4.4 step 4).
type ID string

const (
	RPC             ID = "rpc"
	Sourcify        ID = "sourcify"
	Etherscan       ID = "etherscan"
	EtherscanLabels ID = "etherscanLabels"
	Proxy           ID = "proxy"
	DefiLlama       ID = "defillama"
	GoPlus          ID = "goplus"
	SourcifyImpl    ID = "sourcifyImpl"
	DefiLlamaImpl   ID = "defillamaImpl"
)

// MainFanOut is the fixed, ordered tuple of providers considered during the
// primary (non-implementation) fan-out (§4.4 step 3/4). Order here is the
// order findings are assembled in, independent of completion order.
var MainFanOut = []ID{Sourcify, EtherscanLabels, Etherscan, Proxy, DefiLlama, GoPlus}

// ImplFanOut is the fixed tuple considered for the proxy-implementation
// follow-up (§4.4 step 5).
var ImplFanOut = []ID{SourcifyImpl, DefiLlamaImpl}

// RequestOptions is passed to every adapter call (§4.2).
type RequestOptions struct {
	TimeoutMs int64
	Ctx       context.Context // carries cancellation; nil means context.Background()
	Cache     bool            // false bypasses in-module memoization (wallet mode)
}

func (o RequestOptions) ctx() context.Context {
	if o.Ctx != nil {
		return o.Ctx
	}
	return context.Background()
}

// Policy is the (enabled, timeoutMs) pair for one provider in one mode.
type Policy struct {
	Enabled   bool
	TimeoutMs int64
}

// AnalyzePolicy composes a total budget with the per-provider map (§3).
type AnalyzePolicy struct {
	BudgetMs  *int64
	Providers map[ID]Policy
}

// Mode selects between the "default" and "wallet" policy profiles.
type Mode string

const (
	ModeDefault Mode = "default"
	ModeWallet  Mode = "wallet"
)

// DefaultPolicy returns the built-in policy for a mode. "wallet" uses
// tighter timeouts, fewer providers (no etherscan, no defillama implementation
// follow-up), and disables caching by convention (callers set
// RequestOptions.Cache = false alongside this policy).
func DefaultPolicy(mode Mode) AnalyzePolicy {
	budget := int64(8000)
	switch mode {
	case ModeWallet:
		walletBudget := int64(1500)
		return AnalyzePolicy{
			BudgetMs: &walletBudget,
			Providers: map[ID]Policy{
				RPC:             {Enabled: true, TimeoutMs: 300},
				Sourcify:        {Enabled: true, TimeoutMs: 400},
				Etherscan:       {Enabled: false, TimeoutMs: 0},
				EtherscanLabels: {Enabled: true, TimeoutMs: 300},
				Proxy:           {Enabled: true, TimeoutMs: 300},
				DefiLlama:       {Enabled: true, TimeoutMs: 300},
				GoPlus:          {Enabled: true, TimeoutMs: 400},
				SourcifyImpl:    {Enabled: true, TimeoutMs: 300},
				DefiLlamaImpl:   {Enabled: false, TimeoutMs: 0},
			},
		}
	default:
		return AnalyzePolicy{
			BudgetMs: &budget,
			Providers: map[ID]Policy{
				RPC:             {Enabled: true, TimeoutMs: 1500},
				Sourcify:        {Enabled: true, TimeoutMs: 2500},
				Etherscan:       {Enabled: true, TimeoutMs: 2500},
				EtherscanLabels: {Enabled: true, TimeoutMs: 1500},
				Proxy:           {Enabled: true, TimeoutMs: 1000},
				DefiLlama:       {Enabled: true, TimeoutMs: 2000},
				GoPlus:          {Enabled: true, TimeoutMs: 2500},
				SourcifyImpl:    {Enabled: true, TimeoutMs: 2000},
				DefiLlamaImpl:   {Enabled: true, TimeoutMs: 1500},
			},
		}
	}
}
