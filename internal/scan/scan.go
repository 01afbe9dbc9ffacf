// Package scan implements §4.6, the scan orchestrator: the single entry
// point (scanWithAnalysis) that normalizes a raw address-or-calldata
// input, runs the analyzer and the calldata decoder, runs the fork
// simulator when enabled, applies the simulation verdict, and assembles
// the canonical response the proxy and the embeddable transport both
// return to their callers.
package scan

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assay-gate/assay/internal/abi"
	"github.com/assay-gate/assay/internal/analyzer"
	"github.com/assay-gate/assay/internal/apperr"
	"github.com/assay-gate/assay/internal/calldata"
	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/providers"
	"github.com/assay-gate/assay/internal/simulator"
	"github.com/assay-gate/assay/internal/verdict"
)

// Authorization is the §3 CalldataInput.authorizationList entry (EIP-7702).
type Authorization struct {
	Address string
	ChainID int64
	Nonce   int64
}

// CalldataInput is the §3 CalldataInput record.
type CalldataInput struct {
	To                string
	From              string
	Data              []byte
	Value             *big.Int
	Chain             *chain.Chain
	AuthorizationList []Authorization
}

// Input is scanWithAnalysis's top-level input: either a bare address or a
// full calldata payload (§4.6 step 1: "if input.address set, ignore
// calldata branch").
type Input struct {
	Address  string
	Calldata *CalldataInput
}

// Options configures one scan call.
type Options struct {
	Chain             *chain.Chain
	Mode              providers.Mode
	Offline           bool
	RequestID         string
	SimulationEnabled bool
	SimulationProfile simulator.Profile
	ParentCtx         context.Context
}

// Simulate abstracts the fork-simulator call a scan needs, so the
// orchestrator doesn't depend on a concrete AnvilInstance/Pool — tests
// substitute a stub, production wiring passes a closure over
// simulator.Pool (see cmd/assayd).
type Simulate func(ctx context.Context, req simulator.Request) (simulator.Result, error)

// Orchestrator wires the analyzer and an optional simulator together.
type Orchestrator struct {
	Analyzer *analyzer.Analyzer
	Simulate Simulate // nil disables simulation entirely regardless of Options
	Now      func() time.Time
}

// Response is the §4.6 step 7 / §6.2 canonical scan response.
type Response struct {
	SchemaVersion int    `json:"schemaVersion"`
	RequestID     string `json:"requestId"`
	Scan          Scan   `json:"scan"`
}

// Scan is the §6.2 response's nested "scan" object.
type Scan struct {
	Input          EchoedInput            `json:"input"`
	Intent         string                 `json:"intent,omitempty"`
	Recommendation finding.Recommendation `json:"recommendation"`
	Findings       []finding.Finding      `json:"findings"`
	Contract       analyzer.ContractInfo  `json:"contract"`
	Simulation     *simulator.Result      `json:"simulation,omitempty"`
}

// EchoedInput is the normalized input the response echoes back.
type EchoedInput struct {
	Address string         `json:"address,omitempty"`
	Chain   chain.Chain    `json:"chain"`
	To      string         `json:"to,omitempty"`
	From    string         `json:"from,omitempty"`
	Data    string         `json:"data,omitempty"`
	Value   string         `json:"value,omitempty"`
}

// Run implements scanWithAnalysis, §4.6 steps 1-7.
func (o *Orchestrator) Run(ctx context.Context, in Input, opts Options) (Response, error) {
	c, err := resolveChain(in, opts)
	if err != nil {
		return Response{}, err
	}

	targetAddr, err := targetAddress(in)
	if err != nil {
		return Response{}, err
	}
	targetAddr = strings.ToLower(targetAddr)

	result, err := o.Analyzer.Analyze(ctx, targetAddr, c, analyzer.Options{Mode: opts.Mode, Offline: opts.Offline, ParentCtx: opts.ParentCtx})
	if err != nil {
		return Response{}, err
	}

	findings := append([]finding.Finding(nil), result.Findings...)
	var intent string
	var simReq *simulator.Request

	if in.Calldata != nil {
		var verifiedSelectors map[string]abi.Signature
		if len(result.Contract.ABI) > 0 {
			if entries, parseErr := abi.ParseABI(result.Contract.ABI); parseErr == nil {
				verifiedSelectors = abi.BuildSelectorIndex(entries)
			}
		}
		decoded, decodedFindings := calldata.Decode(in.Calldata.Data, verifiedSelectors)
		findings = append(findings, decodedFindings...)
		findings = append(findings, calldata.RiskFindings(decoded)...)
		intent = calldata.Intent(decoded)

		if len(in.Calldata.AuthorizationList) > 0 {
			findings = append(findings, calldata.EIP7702AuthorizationFinding(len(in.Calldata.AuthorizationList)))
			intent += eip7702IntentSuffix(in.Calldata.AuthorizationList)
		}

		req := simulator.Request{
			Chain:         c,
			From:          strings.ToLower(in.Calldata.From),
			To:            targetAddr,
			Data:          in.Calldata.Data,
			Value:         valueOrZero(in.Calldata.Value),
			Profile:       simulationProfile(opts),
			TargetIsERC20: decoded.Standard == "erc20",
		}
		simReq = &req
	} else if result.Contract.Address != "" {
		// Plain address scan with no calldata: no intent to build, no
		// simulation to run (nothing to simulate against).
	}

	if result.Contract.ProtocolLabel == "" && in.Calldata != nil && len(in.Calldata.Data) == 0 {
		// §4.6 step 4: "decoded plain-ETH-transfer label" beats an absent
		// analyzer-provided label.
		result.Contract.ProtocolLabel = "Plain ETH transfer"
	}

	recommendation := finding.FromFindings(findings)

	var simResult *simulator.Result
	if opts.SimulationEnabled && o.Simulate != nil && simReq != nil {
		r, simErr := o.Simulate(ctx, *simReq)
		if simErr == nil {
			simResult = &r
			verdictFindings, clamped := verdict.Apply(r, chain.Lookup(c).ChainID, recommendation)
			findings = append(findings, verdictFindings...)
			recommendation = clamped
		} else {
			findings = append(findings, finding.Finding{
				Level:   finding.LevelWarning,
				Code:    "SIMULATION_UNAVAILABLE",
				Message: "fork simulation could not run: " + simErr.Error(),
			})
			recommendation = finding.Max(recommendation, finding.Caution)
		}
	}

	requestID := opts.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	return Response{
		SchemaVersion: 2,
		RequestID:     requestID,
		Scan: Scan{
			Input:          echoInput(in, c),
			Intent:         intent,
			Recommendation: recommendation,
			Findings:       findings,
			Contract:       result.Contract,
			Simulation:     simResult,
		},
	}, nil
}

func resolveChain(in Input, opts Options) (chain.Chain, error) {
	if in.Calldata != nil && in.Calldata.Chain != nil {
		return *in.Calldata.Chain, nil
	}
	if opts.Chain != nil {
		return *opts.Chain, nil
	}
	return chain.Default, nil
}

func targetAddress(in Input) (string, error) {
	if in.Address != "" {
		return in.Address, nil
	}
	if in.Calldata != nil && in.Calldata.To != "" {
		return in.Calldata.To, nil
	}
	return "", apperr.Validation("scan: missing scan input (neither address nor calldata.to provided)")
}

func simulationProfile(opts Options) simulator.Profile {
	if opts.SimulationProfile != "" {
		return opts.SimulationProfile
	}
	if opts.Mode == providers.ModeWallet {
		return simulator.ProfileWalletFast
	}
	return simulator.ProfileFull
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func eip7702IntentSuffix(auths []Authorization) string {
	if len(auths) == 0 {
		return ""
	}
	return fmt.Sprintf("; Delegate sender EOA to %s via EIP-7702", auths[0].Address)
}

func echoInput(in Input, c chain.Chain) EchoedInput {
	out := EchoedInput{Chain: c}
	if in.Address != "" {
		out.Address = strings.ToLower(in.Address)
		return out
	}
	if in.Calldata == nil {
		return out
	}
	out.To = strings.ToLower(in.Calldata.To)
	out.From = strings.ToLower(in.Calldata.From)
	out.Data = "0x" + fmt.Sprintf("%x", in.Calldata.Data)
	if in.Calldata.Value != nil {
		out.Value = in.Calldata.Value.String()
	}
	return out
}
