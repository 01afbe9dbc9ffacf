package simulator

import (
	"context"
	"errors"
	"testing"

	"github.com/assay-gate/assay/internal/chain"
)

func TestResetForkFallsBackToAnvilResetWithNoBaseline(t *testing.T) {
	node := &fakeNode{}
	inst := newInstance(node)

	result, err := inst.ResetFork(context.Background(), "https://rpc.example", 100)
	if err != nil {
		t.Fatalf("ResetFork failed: %v", err)
	}
	if !result.UsedAnvilReset {
		t.Fatal("expected the first ResetFork (no baseline yet) to fall back to anvil_reset")
	}
	if node.resetCalls != 1 {
		t.Fatalf("expected exactly one anvil_reset call, got %d", node.resetCalls)
	}
	if node.snapshotCalls != 1 {
		t.Fatalf("expected a re-snapshot after anvil_reset, got %d snapshot calls", node.snapshotCalls)
	}
}

func TestResetForkRevertsWarmWhenBaselineExists(t *testing.T) {
	node := &fakeNode{}
	inst := newInstance(node)

	if _, err := inst.ResetFork(context.Background(), "https://rpc.example", 100); err != nil {
		t.Fatalf("first ResetFork failed: %v", err)
	}
	resetCallsAfterFirst := node.resetCalls

	result, err := inst.ResetFork(context.Background(), "https://rpc.example", 100)
	if err != nil {
		t.Fatalf("second ResetFork failed: %v", err)
	}
	if result.UsedAnvilReset {
		t.Fatal("expected the second ResetFork to revert the recorded baseline, not fall back to anvil_reset")
	}
	if node.resetCalls != resetCallsAfterFirst {
		t.Fatalf("expected no additional anvil_reset calls, got %d (was %d)", node.resetCalls, resetCallsAfterFirst)
	}
	if node.revertCalls != 1 {
		t.Fatalf("expected exactly one Revert call, got %d", node.revertCalls)
	}
}

func TestResetForkFallsBackWhenRevertFails(t *testing.T) {
	node := &fakeNode{revertErr: errors.New("snapshot consumed")}
	inst := newInstance(node)

	if _, err := inst.ResetFork(context.Background(), "https://rpc.example", 100); err != nil {
		t.Fatalf("first ResetFork failed: %v", err)
	}

	result, err := inst.ResetFork(context.Background(), "https://rpc.example", 100)
	if err != nil {
		t.Fatalf("second ResetFork failed: %v", err)
	}
	if !result.UsedAnvilReset {
		t.Fatal("expected a failed Revert to fall back to anvil_reset")
	}
}

func TestResetForkPropagatesAnvilResetFailure(t *testing.T) {
	node := &fakeNode{resetErr: errors.New("rpc unreachable")}
	inst := newInstance(node)

	if _, err := inst.ResetFork(context.Background(), "https://rpc.example", 100); err == nil {
		t.Fatal("expected ResetFork to surface the anvil_reset failure")
	}
}

func TestInstanceRunExclusiveSerializesTasks(t *testing.T) {
	node := &fakeNode{}
	inst := newInstance(node)

	const n = 20
	results := make(chan int, n)
	var active int32
	for i := 0; i < n; i++ {
		go func() {
			_ = inst.RunExclusive(context.Background(), func(ctx context.Context) error {
				if active != 0 {
					results <- -1
					return nil
				}
				active = 1
				defer func() { active = 0 }()
				results <- 1
				return nil
			})
		}()
	}
	for i := 0; i < n; i++ {
		if got := <-results; got != 1 {
			t.Fatal("observed an interleaved RunExclusive call: tasks were not serialized")
		}
	}
}

func TestPoolAcquireReusesInstanceForSameKey(t *testing.T) {
	var builds int
	pool := NewPool(func(key InstanceKey) (AnvilInstance, error) {
		builds++
		return &fakeNode{}, nil
	})

	key := InstanceKey{Chain: chain.Ethereum, ForkURL: "https://rpc.example", ForkBlock: 100}
	first, err := pool.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	second, err := pool.Acquire(key)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if first != second {
		t.Fatal("expected the same (chain, forkUrl, forkBlock) key to reuse one Instance")
	}
	if builds != 1 {
		t.Fatalf("expected the factory to run once, got %d", builds)
	}
}

func TestPoolAcquirePropagatesFactoryError(t *testing.T) {
	pool := NewPool(func(key InstanceKey) (AnvilInstance, error) {
		return nil, errors.New("anvil failed to start")
	})
	if _, err := pool.Acquire(InstanceKey{Chain: chain.Ethereum}); err == nil {
		t.Fatal("expected the factory error to propagate")
	}
}
