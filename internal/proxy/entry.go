package proxy

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strings"
	"time"

	"github.com/assay-gate/assay/internal/abi"
	"github.com/assay-gate/assay/internal/apperr"
	"github.com/assay-gate/assay/internal/calldata"
	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/policy"
	"github.com/assay-gate/assay/internal/rawtx"
	"github.com/assay-gate/assay/internal/recording"
	"github.com/assay-gate/assay/internal/scan"
)

// sendTxParams is the wire shape of eth_sendTransaction's params[0]
// (§4.8 step 3).
type sendTxParams struct {
	To                string           `json:"to"`
	From              string           `json:"from"`
	Data              string           `json:"data"`
	Input             string           `json:"input"` // some clients use "input" instead of "data"
	Value             string           `json:"value"`
	AuthorizationList []authorizationT `json:"authorizationList"`
}

type authorizationT struct {
	Address string `json:"address"`
	ChainID int64  `json:"chainId"`
	Nonce   int64  `json:"nonce"`
}

// interceptEntry implements §4.8 steps 3-10 for one interceptable
// method. Once its params parse it writes a recording bundle (step 9)
// and returns a decision-shaped response; malformed params get an
// invalid-params error and no bundle. A notification never gets a
// response (the second return value is false).
func (s *Server) interceptEntry(ctx context.Context, req request) (response, bool) {
	startedAt := s.now()

	if req.Method == "eth_signTypedData_v4" {
		return s.interceptTypedData(ctx, req, startedAt)
	}
	return s.interceptTransaction(ctx, req, startedAt)
}

func (s *Server) interceptTransaction(ctx context.Context, req request, startedAt time.Time) (response, bool) {
	c := s.resolveChain(ctx)

	var in scan.Input
	var recTo, recFrom string
	var err error
	switch req.Method {
	case "eth_sendTransaction":
		in, recTo, recFrom, err = buildFromSendTransaction(req, c)
	case "eth_sendRawTransaction":
		in, c, recTo, recFrom, err = buildFromRawTransaction(req, c)
	default:
		return s.forwardPassthrough(ctx, req)
	}
	if err != nil {
		return errorResponse(req.ID, codeInvalidParams, err.Error(), nil), !req.isNotification()
	}

	bundle, recErr := recording.Open(s.RecordDir, req.Method, string(c), recTo, recFrom, req, in.Calldata, startedAt)
	if recErr != nil && s.Metrics != nil {
		s.Metrics.RecordingErrors.Inc()
	}

	scanStart := s.now()
	resp, scanErr := s.Orchestrator.Run(ctx, in, scan.Options{
		Chain:             &c,
		Mode:              s.Mode,
		Offline:           s.Offline,
		SimulationEnabled: true,
		ParentCtx:         ctx,
	})
	if s.Metrics != nil {
		s.Metrics.RecordScanPhase("proxy.scan", time.Since(scanStart).Seconds())
	}
	// A scan-orchestrator error must still fail closed: it is treated as
	// a risky-but-handled outcome (caution, simulation not successful)
	// and run through the normal decide-then-finalize path rather than
	// short-circuited to a bare JSON-RPC error, so a caller still gets
	// the documented block/4001 shape instead of an undocumented one.
	if scanErr != nil {
		s.logger().Warn("assay: scan failed, failing closed", "method", req.Method, "error", scanErr)
		recommendation := finding.Caution
		simulationSuccess := false
		decision := policy.Decide(recommendation, simulationSuccess, s.Policy, s.Interactive)
		if decision == policy.Prompt {
			decision = s.resolvePrompt(req, recommendation)
		}
		if s.Metrics != nil {
			s.Metrics.RecordDecision(string(decision))
		}
		return s.finalizeDecision(ctx, req, recTo, decision, recommendation, simulationSuccess, policy.Result{}, bundle, startedAt)
	}
	if bundle != nil {
		bundle.WriteAnalyzeResponse(resp)
	}

	simulationSuccess := resp.Scan.Simulation == nil || resp.Scan.Simulation.Success
	allowlistResult := s.evaluateAllowlist(resp)
	decision, recommendation := policy.DecideWithAllowlist(resp.Scan.Recommendation, simulationSuccess, s.Policy, s.Interactive, allowlistResult)
	if decision == policy.Prompt {
		decision = s.resolvePrompt(req, recommendation)
	}
	if s.Metrics != nil {
		s.Metrics.RecordDecision(string(decision))
	}

	return s.finalizeDecision(ctx, req, recTo, decision, recommendation, simulationSuccess, allowlistResult, bundle, startedAt)
}

// interceptTypedData implements §4.8 step 5: classify, build synthetic
// findings, and decide — with no analyzer or simulator involved, since
// there is no on-chain call to analyze or simulate yet.
func (s *Server) interceptTypedData(ctx context.Context, req request, startedAt time.Time) (response, bool) {
	var params []string
	if err := json.Unmarshal(req.Params, &params); err != nil || len(params) < 2 {
		return errorResponse(req.ID, codeInvalidParams, "eth_signTypedData_v4 requires params[0], params[1]", nil), !req.isNotification()
	}
	signer := params[0]
	td, err := abi.ParseTypedDataJSON([]byte(params[1]))
	if err != nil {
		return errorResponse(req.ID, codeInvalidParams, "malformed typed data: "+err.Error(), nil), !req.isNotification()
	}

	findings := calldata.PermitFindings(td, s.now())
	recommendation := finding.FromFindings(findings)

	c := s.resolveChain(ctx)
	bundle, recErr := recording.Open(s.RecordDir, req.Method, string(c), "", signer, req, map[string]any{"signer": signer, "primaryType": td.PrimaryType}, startedAt)
	if recErr != nil && s.Metrics != nil {
		s.Metrics.RecordingErrors.Inc()
	}
	if bundle != nil {
		bundle.WriteAnalyzeResponse(map[string]any{"recommendation": recommendation, "findings": findings})
	}

	// No simulation applies to a signature; treat it as trivially
	// "succeeded" so Decide's simulation-failure branch never fires here.
	decision := policy.Decide(recommendation, true, s.Policy, s.Interactive)
	if decision == policy.Prompt {
		decision = s.resolvePrompt(req, recommendation)
	}
	if s.Metrics != nil {
		s.Metrics.RecordDecision(string(decision))
	}

	simSuccess := true
	return s.finalizeDecision(ctx, req, signer, decision, recommendation, simSuccess, policy.Result{}, bundle, startedAt)
}

// resolvePrompt implements §4.8 step 10's interactive y/N prompt;
// notifications never prompt (nothing to reply to) and default to "no".
func (s *Server) resolvePrompt(req request, recommendation finding.Recommendation) policy.Decision {
	if req.isNotification() || promptYesNo == nil {
		return policy.Block
	}
	if promptYesNo(string(recommendation)) {
		return policy.Forward
	}
	return policy.Block
}

func (s *Server) finalizeDecision(ctx context.Context, req request, to string, decision policy.Decision, recommendation finding.Recommendation, simSuccess bool, allowlistResult policy.Result, bundle *recording.Bundle, startedAt time.Time) (response, bool) {
	s.publish(DecisionEvent{
		Type:           string(decision),
		RequestID:      string(req.ID),
		Method:         req.Method,
		To:             to,
		Recommendation: string(recommendation),
	})

	if decision == policy.Forward {
		if bundle != nil {
			bundle.Finalize(recording.StatusForwarded, "forward", string(recommendation), &simSuccess, startedAt, s.now())
		}
		return s.forwardPassthrough(ctx, req)
	}

	if bundle != nil {
		bundle.Finalize(recording.StatusBlocked, "block", string(recommendation), &simSuccess, startedAt, s.now())
	}
	if req.isNotification() {
		return response{}, false
	}
	data := blockData{Recommendation: string(recommendation), SimulationSuccess: simSuccess}
	if len(allowlistResult.Violations) > 0 || allowlistResult.UnknownApprovalSpenders {
		data.Allowlist = allowlistResult
	}
	return errorResponse(req.ID, codeBlocked, "Transaction blocked by assay", data), true
}

func buildFromSendTransaction(req request, c chain.Chain) (scan.Input, string, string, error) {
	var params []sendTxParams
	if err := json.Unmarshal(req.Params, &params); err != nil || len(params) == 0 {
		return scan.Input{}, "", "", apperr.Validation("proxy: eth_sendTransaction requires params[0]")
	}
	p := params[0]
	dataHex := p.Data
	if dataHex == "" {
		dataHex = p.Input
	}
	data, err := decodeHexData(dataHex)
	if err != nil {
		return scan.Input{}, "", "", apperr.Validation("proxy: eth_sendTransaction malformed data: %v", err)
	}

	in := scan.Input{Calldata: &scan.CalldataInput{
		To:                p.To,
		From:              p.From,
		Data:              data,
		Value:             parseBigHexOrDecimal(p.Value),
		Chain:             &c,
		AuthorizationList: toScanAuthorizations(p.AuthorizationList),
	}}
	return in, p.To, p.From, nil
}

func buildFromRawTransaction(req request, c chain.Chain) (scan.Input, chain.Chain, string, string, error) {
	var raws []string
	if err := json.Unmarshal(req.Params, &raws); err != nil || len(raws) == 0 {
		return scan.Input{}, c, "", "", apperr.Validation("proxy: eth_sendRawTransaction requires params[0]")
	}
	rawBytes, err := decodeHexData(raws[0])
	if err != nil {
		return scan.Input{}, c, "", "", apperr.Validation("proxy: eth_sendRawTransaction malformed envelope: %v", err)
	}
	tx, err := rawtx.Decode(rawBytes)
	if err != nil {
		return scan.Input{}, c, "", "", apperr.Validation("proxy: could not decode raw transaction: %v", err)
	}

	txChain := c
	if tx.ChainID != nil && tx.ChainID.Sign() > 0 {
		if resolved, ok := chain.FromChainID(tx.ChainID.Int64()); ok {
			txChain = resolved
		}
	}

	in := scan.Input{Calldata: &scan.CalldataInput{
		To:                tx.To,
		From:              tx.From,
		Data:              tx.Data,
		Value:             tx.Value,
		Chain:             &txChain,
		AuthorizationList: toScanAuthorizationsFromRaw(tx.AuthorizationList),
	}}
	return in, txChain, tx.To, tx.From, nil
}

func toScanAuthorizations(in []authorizationT) []scan.Authorization {
	if len(in) == 0 {
		return nil
	}
	out := make([]scan.Authorization, 0, len(in))
	for _, a := range in {
		if len(strings.TrimPrefix(a.Address, "0x")) != 40 {
			continue
		}
		out = append(out, scan.Authorization{Address: a.Address, ChainID: a.ChainID, Nonce: a.Nonce})
	}
	return out
}

func toScanAuthorizationsFromRaw(in []rawtx.Authorization) []scan.Authorization {
	if len(in) == 0 {
		return nil
	}
	out := make([]scan.Authorization, 0, len(in))
	for _, a := range in {
		out = append(out, scan.Authorization{Address: a.Address, ChainID: a.ChainID, Nonce: a.Nonce})
	}
	return out
}

func decodeHexData(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, nil
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

func parseBigHexOrDecimal(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return big.NewInt(0)
		}
		return n
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

func (s *Server) evaluateAllowlist(resp scan.Response) policy.Result {
	if !s.Allowlist.Enabled {
		return policy.Result{}
	}
	var spenders []string
	simRan := resp.Scan.Simulation != nil
	simOK := simRan && resp.Scan.Simulation.Success
	if simRan {
		for _, a := range resp.Scan.Simulation.Approvals.Changes {
			spenders = append(spenders, a.Spender)
		}
	}
	return policy.Evaluate(s.Allowlist, policy.EvaluationInput{
		To:              resp.Scan.Input.To,
		SimSpenders:     spenders,
		CalldataSpender: calldataSpender(resp.Scan.Findings),
		SimulationRan:   simRan,
		SimulationOK:    simOK,
	})
}

func calldataSpender(findings []finding.Finding) string {
	for _, f := range findings {
		if f.Code != "CALLDATA_DECODED" {
			continue
		}
		args, ok := f.Details["args"].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := args["spender"].(string); ok && v != "" {
			return v
		}
		if v, ok := args["operator"].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// promptYesNo is a package-level hook so the interactive y/N prompt
// (§4.8 step 10) can be swapped out in tests; cmd/assayd wires the real
// stdin/stdout implementation only when both are a TTY.
var promptYesNo func(recommendation string) bool

// SetPromptHook installs the interactive y/N prompt callback. Passing
// nil restores the default behavior of blocking instead of prompting.
func SetPromptHook(fn func(recommendation string) bool) {
	promptYesNo = fn
}
