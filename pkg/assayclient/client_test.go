package assayclient_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-gate/assay/internal/analyzer"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/policy"
	"github.com/assay-gate/assay/internal/scan"
	"github.com/assay-gate/assay/pkg/assayclient"
)

func TestRequest_ForwardsSafeTransaction(t *testing.T) {
	forwarded := false
	c := assayclient.New(assayclient.Config{
		Orchestrator: &scan.Orchestrator{Analyzer: &analyzer.Analyzer{}},
		Upstream: func(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
			forwarded = true
			return json.RawMessage(`"0xhash"`), nil
		},
		Policy: policy.Policy{Threshold: finding.Danger, OnRisk: policy.OnRiskBlock},
	})

	params, _ := json.Marshal([]map[string]string{{"to": "0x2222222222222222222222222222222222222222", "from": "0x3333333333333333333333333333333333333333", "value": "0x1"}})
	result, err := c.Request(context.Background(), "eth_sendTransaction", params)
	require.NoError(t, err)
	assert.True(t, forwarded)
	assert.Equal(t, `"0xhash"`, string(result))
}

func TestRequest_BlocksRiskyTransactionAndInvokesOnRisk(t *testing.T) {
	var onRiskCalled bool
	c := assayclient.New(assayclient.Config{
		Orchestrator: &scan.Orchestrator{Analyzer: &analyzer.Analyzer{}},
		Upstream: func(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
			t.Fatal("upstream should not be called when the decision blocks")
			return nil, nil
		},
		Policy: policy.Policy{Threshold: finding.OK, OnRisk: policy.OnRiskBlock},
		OnRisk: func(resp *scan.Response) { onRiskCalled = true },
	})

	params, _ := json.Marshal([]map[string]string{{"to": "0x2222222222222222222222222222222222222222", "from": "0x3333333333333333333333333333333333333333", "value": "0x1"}})
	_, err := c.Request(context.Background(), "eth_sendTransaction", params)
	require.Error(t, err)
	assert.True(t, onRiskCalled)

	var transportErr *assayclient.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, assayclient.ReasonRisky, transportErr.Reason)
}

func TestRequest_PassesThroughNonInterceptableMethod(t *testing.T) {
	forwarded := false
	c := assayclient.New(assayclient.Config{
		Orchestrator: &scan.Orchestrator{Analyzer: &analyzer.Analyzer{}},
		Upstream: func(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
			forwarded = true
			assert.Equal(t, "eth_blockNumber", method)
			return json.RawMessage(`"0x1"`), nil
		},
	})

	_, err := c.Request(context.Background(), "eth_blockNumber", nil)
	require.NoError(t, err)
	assert.True(t, forwarded)
}

func TestRequest_InvalidParamsRejected(t *testing.T) {
	c := assayclient.New(assayclient.Config{
		Orchestrator: &scan.Orchestrator{Analyzer: &analyzer.Analyzer{}},
		Upstream: func(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
			t.Fatal("upstream should not be called on malformed params")
			return nil, nil
		},
	})

	_, err := c.Request(context.Background(), "eth_sendTransaction", json.RawMessage(`not json`))
	require.Error(t, err)
	var transportErr *assayclient.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, assayclient.ReasonInvalidParams, transportErr.Reason)
}
