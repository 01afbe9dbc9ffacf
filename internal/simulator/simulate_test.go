package simulator

import (
	"context"
	"testing"

	"github.com/assay-gate/assay/internal/chain"
)

const (
	testWallet      = "0x111111111111111111111111111111111111111a"
	testCounterpart = "0x222222222222222222222222222222222222222b"
	testToken       = "0xfeedfeedfeedfeedfeedfeedfeedfeedfeedfeed"
)

func baseRequest() Request {
	return Request{
		Chain: chain.Ethereum,
		From:  testWallet,
		To:    testCounterpart,
		Value: nil,
	}
}

// TestRunSimulationSkipsMetadataForWalletFast is the regression test for
// the wallet-fast profile's metadata-skip promise: runSimulation must not
// touch ReadContract at all when skipMetadata is true, and must enrich
// every ERC-20 asset change when it's false.
func TestRunSimulationSkipsMetadataForWalletFast(t *testing.T) {
	cases := []struct {
		name         string
		skipMetadata bool
		wantCalls    bool
	}{
		{name: "full profile enriches metadata", skipMetadata: false, wantCalls: true},
		{name: "wallet-fast profile skips metadata", skipMetadata: true, wantCalls: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			node := &fakeNode{
				receiptLogs: []Log{erc20TransferLog(testToken, testWallet, testCounterpart, 500)},
			}
			req := baseRequest()

			result, err := runSimulation(context.Background(), node, req, tc.skipMetadata)
			if err != nil {
				t.Fatalf("runSimulation failed: %v", err)
			}
			if !result.Success {
				t.Fatalf("expected a successful simulation, got %+v", result)
			}

			called := node.readContractCalls > 0
			if called != tc.wantCalls {
				t.Fatalf("ReadContract called = %v (count %d), want called = %v", called, node.readContractCalls, tc.wantCalls)
			}

			var sawOutgoingERC20 bool
			for _, c := range result.Balances.Changes {
				if c.AssetType == AssetERC20 && c.Direction == DirectionOut {
					sawOutgoingERC20 = true
				}
			}
			if !sawOutgoingERC20 {
				t.Fatal("expected the wallet's outgoing ERC-20 transfer to appear in Balances.Changes")
			}
		})
	}
}

func TestSimulateFullSnapshotsAndReverts(t *testing.T) {
	node := &fakeNode{}
	req := baseRequest()

	if _, err := simulateFull(context.Background(), node, req); err != nil {
		t.Fatalf("simulateFull failed: %v", err)
	}
	if node.snapshotCalls != 1 {
		t.Fatalf("expected exactly one Snapshot call, got %d", node.snapshotCalls)
	}
	if node.revertCalls != 1 {
		t.Fatalf("expected exactly one Revert call (deferred), got %d", node.revertCalls)
	}
}

func TestComputeConfidence(t *testing.T) {
	cases := []struct {
		name             string
		isContractSender bool
		hadPartialRead   bool
		observedDeltas   bool
		want             Confidence
	}{
		{"eoa with deltas", false, false, true, ConfidenceHigh},
		{"eoa without deltas", false, false, false, ConfidenceHigh},
		{"partial read always downgrades", false, true, true, ConfidenceMedium},
		{"contract without observed deltas is low", true, false, false, ConfidenceLow},
		{"contract with observed deltas is medium", true, false, true, ConfidenceMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := computeConfidence(tc.isContractSender, tc.hadPartialRead, tc.observedDeltas); got != tc.want {
				t.Errorf("computeConfidence(%v, %v, %v) = %s, want %s", tc.isContractSender, tc.hadPartialRead, tc.observedDeltas, got, tc.want)
			}
		})
	}
}
