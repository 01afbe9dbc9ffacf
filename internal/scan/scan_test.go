package scan_test

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-gate/assay/internal/analyzer"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/scan"
	"github.com/assay-gate/assay/internal/simulator"
)

func TestRun_AddressOnlyNoCalldataNoSimulation(t *testing.T) {
	o := &scan.Orchestrator{Analyzer: &analyzer.Analyzer{}}
	resp, err := o.Run(context.Background(), scan.Input{Address: "0x1111111111111111111111111111111111111111"}, scan.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.SchemaVersion)
	assert.NotEmpty(t, resp.RequestID)
	assert.Empty(t, resp.Scan.Intent)
	assert.Nil(t, resp.Scan.Simulation)
}

func TestRun_MissingInputErrors(t *testing.T) {
	o := &scan.Orchestrator{Analyzer: &analyzer.Analyzer{}}
	_, err := o.Run(context.Background(), scan.Input{}, scan.Options{})
	assert.Error(t, err)
}

func TestRun_CalldataDecodesAndBuildsIntent(t *testing.T) {
	o := &scan.Orchestrator{Analyzer: &analyzer.Analyzer{}}
	// approve(spender, amount) selector 0x095ea7b3
	data := mustHex("095ea7b3" + padAddress("000000000022d473030f116ddee9f6b43ac78ba3") + padUint("1"))
	in := scan.Input{Calldata: &scan.CalldataInput{
		To:   "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		From: "0x2222222222222222222222222222222222222222",
		Data: data,
	}}
	resp, err := o.Run(context.Background(), in, scan.Options{})
	require.NoError(t, err)
	assert.Contains(t, resp.Scan.Intent, "Grant")
	found := false
	for _, f := range resp.Scan.Findings {
		if f.Code == "CALLDATA_DECODED" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRun_EIP7702AuthorizationListSurfacesFinding(t *testing.T) {
	o := &scan.Orchestrator{Analyzer: &analyzer.Analyzer{}}
	in := scan.Input{Calldata: &scan.CalldataInput{
		To:   "0x1111111111111111111111111111111111111111",
		From: "0x2222222222222222222222222222222222222222",
		Data: []byte{},
		AuthorizationList: []scan.Authorization{
			{Address: "0x1234000000000000000000000000000000005678", ChainID: 1, Nonce: 7},
		},
	}}
	resp, err := o.Run(context.Background(), in, scan.Options{})
	require.NoError(t, err)
	var found *finding.Finding
	for i := range resp.Scan.Findings {
		if resp.Scan.Findings[i].Code == "EIP7702_AUTHORIZATION" {
			found = &resp.Scan.Findings[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 1, found.Details["authorizationCount"])
	assert.Contains(t, resp.Scan.Intent, "EIP-7702")
	assert.True(t, finding.AtLeast(resp.Scan.Recommendation, finding.Caution))
}

func TestRun_SimulationFailureClampsRecommendation(t *testing.T) {
	o := &scan.Orchestrator{
		Analyzer: &analyzer.Analyzer{},
		Simulate: func(ctx context.Context, req simulator.Request) (simulator.Result, error) {
			return simulator.Result{Success: false, RevertReason: "boom"}, nil
		},
	}
	in := scan.Input{Calldata: &scan.CalldataInput{
		To:   "0x1111111111111111111111111111111111111111",
		From: "0x2222222222222222222222222222222222222222",
		Data: []byte{0x12, 0x34, 0x56, 0x78},
	}}
	resp, err := o.Run(context.Background(), in, scan.Options{SimulationEnabled: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Scan.Simulation)
	assert.False(t, resp.Scan.Simulation.Success)
	assert.True(t, finding.AtLeast(resp.Scan.Recommendation, finding.Caution))
}

func mustHex(s string) []byte {
	out, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return out
}

func padUint(s string) string {
	n := new(big.Int)
	n.SetString(s, 10)
	return padAddress(n.Text(16))
}

func padAddress(hexDigits string) string {
	for len(hexDigits) < 64 {
		hexDigits = "0" + hexDigits
	}
	return hexDigits
}
