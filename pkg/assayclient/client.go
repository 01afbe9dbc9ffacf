// Package assayclient provides §4.9's embeddable client transport: the
// same policy+block semantics as the JSON-RPC proxy, exposed as a
// synchronous wrapper around an upstream transport function instead of
// an HTTP server in front of it.
//
// Three integration shapes mirror the proxy's own, just one layer down
// in the stack:
//
//  1. Direct: client.Request(ctx, method, params) in place of your
//     wallet provider's own send call.
//  2. A drop-in eth_sendTransaction/eth_signTypedData_v4 interceptor for
//     any ethers.js-style JSON-RPC transport ported to Go.
//  3. Point an existing proxy.Server.Upstream at a node and never touch
//     the client at all — assayclient exists for embedders who cannot
//     run a local proxy process.
package assayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/assay-gate/assay/internal/abi"
	"github.com/assay-gate/assay/internal/calldata"
	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/policy"
	"github.com/assay-gate/assay/internal/providers"
	"github.com/assay-gate/assay/internal/scan"
)

// Transport is the upstream call a Client wraps: send one JSON-RPC
// method and get back its raw "result" payload.
type Transport func(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)

// Reason is the §4.9 AssayTransportError.reason enum.
type Reason string

const (
	ReasonRisky            Reason = "risky"
	ReasonSimulationFailed Reason = "simulation_failed"
	ReasonAnalysisError    Reason = "analysis_error"
	ReasonInvalidParams    Reason = "invalid_params"
)

// TransportError is thrown in place of forwarding an interceptable
// request whenever the decision is not "forward" (§4.9).
type TransportError struct {
	Reason          Reason
	AnalyzeResponse *scan.Response
	RenderedSummary string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("assayclient: request blocked (%s): %s", e.Reason, e.RenderedSummary)
}

// Config wires a Client's dependencies. Every field is set once at
// construction (no package globals).
type Config struct {
	Orchestrator *scan.Orchestrator
	Upstream     Transport
	DefaultChain chain.Chain
	Mode         providers.Mode
	Offline      bool
	Policy       policy.Policy
	Allowlist    policy.Allowlist
	Interactive  bool
	Now          func() time.Time

	// OnRisk is invoked with the analyze response before a risky decision
	// is thrown as a TransportError, letting the embedder render its own
	// warning UI (§4.9: "invokes a user-provided onRisk callback before
	// throwing").
	OnRisk func(resp *scan.Response)
}

// Client is the embeddable interception point (§4.9).
type Client struct {
	cfg Config
}

// New builds a Client from its dependencies.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) now() time.Time {
	if c.cfg.Now != nil {
		return c.cfg.Now()
	}
	return time.Now()
}

// Request implements §4.9's request({method, params}): interceptable
// methods are scanned and decided before ever reaching the upstream
// transport; everything else passes straight through.
func (c *Client) Request(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	switch method {
	case "eth_sendTransaction", "eth_sendRawTransaction":
		return c.requestTransaction(ctx, method, params)
	case "eth_signTypedData_v4":
		return c.requestTypedData(ctx, params)
	default:
		return c.cfg.Upstream(ctx, method, params)
	}
}

func (c *Client) requestTransaction(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	in, chainHint, err := buildScanInput(method, params, c.cfg.DefaultChain)
	if err != nil {
		return nil, &TransportError{Reason: ReasonInvalidParams, RenderedSummary: err.Error()}
	}

	resp, err := c.cfg.Orchestrator.Run(ctx, in, scan.Options{
		Chain:             &chainHint,
		Mode:              c.cfg.Mode,
		Offline:           c.cfg.Offline,
		SimulationEnabled: true,
		ParentCtx:         ctx,
	})
	if err != nil {
		return nil, &TransportError{Reason: ReasonAnalysisError, RenderedSummary: err.Error()}
	}

	simSuccess := resp.Scan.Simulation == nil || resp.Scan.Simulation.Success
	decision, recommendation := policy.DecideWithAllowlist(resp.Scan.Recommendation, simSuccess, c.cfg.Policy, c.cfg.Interactive, policy.Result{})
	return c.finish(ctx, method, params, resp, decision, recommendation, simSuccess)
}

func (c *Client) requestTypedData(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var raw []string
	if err := json.Unmarshal(params, &raw); err != nil || len(raw) < 2 {
		return nil, &TransportError{Reason: ReasonInvalidParams, RenderedSummary: "eth_signTypedData_v4 requires params[0], params[1]"}
	}
	td, err := abi.ParseTypedDataJSON([]byte(raw[1]))
	if err != nil {
		return nil, &TransportError{Reason: ReasonInvalidParams, RenderedSummary: err.Error()}
	}

	findings := calldata.PermitFindings(td, c.now())
	recommendation := finding.FromFindings(findings)
	resp := &scan.Response{Scan: scan.Scan{Recommendation: recommendation, Findings: findings}}

	decision := policy.Decide(recommendation, true, c.cfg.Policy, c.cfg.Interactive)
	return c.finishTypedData(ctx, raw[0], raw[1], resp, decision, recommendation)
}

func (c *Client) finish(ctx context.Context, method string, params json.RawMessage, resp scan.Response, decision policy.Decision, recommendation finding.Recommendation, simSuccess bool) (json.RawMessage, error) {
	if decision == policy.Forward {
		return c.cfg.Upstream(ctx, method, params)
	}
	if c.cfg.OnRisk != nil {
		c.cfg.OnRisk(&resp)
	}
	reason := ReasonRisky
	if !simSuccess {
		reason = ReasonSimulationFailed
	}
	return nil, &TransportError{
		Reason:          reason,
		AnalyzeResponse: &resp,
		RenderedSummary: fmt.Sprintf("recommendation=%s", recommendation),
	}
}

func (c *Client) finishTypedData(ctx context.Context, signer, rawJSON string, resp *scan.Response, decision policy.Decision, recommendation finding.Recommendation) (json.RawMessage, error) {
	if decision == policy.Forward {
		params, _ := json.Marshal([]string{signer, rawJSON})
		return c.cfg.Upstream(ctx, "eth_signTypedData_v4", params)
	}
	if c.cfg.OnRisk != nil {
		c.cfg.OnRisk(resp)
	}
	return nil, &TransportError{
		Reason:          ReasonRisky,
		AnalyzeResponse: resp,
		RenderedSummary: fmt.Sprintf("recommendation=%s", recommendation),
	}
}
