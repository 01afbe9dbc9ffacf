package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/assay-gate/assay/internal/chain"
)

// InstanceKey is the §3 Lifecycles fork-instance multiplexing key:
// "keyed by (chain, forkUrl, forkBlock?)".
type InstanceKey struct {
	Chain     chain.Chain
	ForkURL   string
	ForkBlock int64 // 0 means "latest" at fork time
}

func (k InstanceKey) String() string {
	return fmt.Sprintf("%s@%s#%d", k.Chain, k.ForkURL, k.ForkBlock)
}

// task is one unit of work submitted to an Instance's serializing queue.
type task struct {
	fn   func(context.Context) error
	done chan error
}

// Instance wraps one forked-EVM node with the serialization and
// warm-reset behavior §6.3 requires of it: "serialize via a per-instance
// task queue" and resetFork's revert-then-resnapshot-with-fallback.
//
// Grounded on the teacher's ghostpool.PoolManager: a background worker
// goroutine draining a buffered channel is the same shape as that
// package's pre-warmed-container channel, applied here to serialize
// tasks against a single node instead of handing out pooled containers.
type Instance struct {
	Client AnvilInstance

	tasks chan task

	baselineMu sync.Mutex
	baselineID string
}

func newInstance(client AnvilInstance) *Instance {
	in := &Instance{Client: client, tasks: make(chan task, 64)}
	go in.worker()
	return in
}

func (in *Instance) worker() {
	for t := range in.tasks {
		t.done <- t.fn(context.Background())
	}
}

// RunExclusive serializes fn against every other task queued on this
// instance, so concurrent scans sharing a fork never interleave calls
// against the same node.
func (in *Instance) RunExclusive(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	select {
	case in.tasks <- task{fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResetResult reports how ResetFork recovered the instance to a clean
// baseline state.
type ResetResult struct {
	UsedAnvilReset bool
	Elapsed        time.Duration
}

// ResetFork implements §6.3's warm-reset: try reverting to the recorded
// baseline snapshot and re-snapshotting; if that fails (e.g. the
// snapshot was consumed or the node restarted), fall back to
// anvil_reset and re-snapshot from there.
func (in *Instance) ResetFork(ctx context.Context, forkURL string, forkBlock int64) (ResetResult, error) {
	in.baselineMu.Lock()
	defer in.baselineMu.Unlock()

	start := time.Now()
	if in.baselineID != "" {
		if err := in.Client.Revert(ctx, in.baselineID); err == nil {
			id, err := in.Client.Snapshot(ctx)
			if err == nil {
				in.baselineID = id
				return ResetResult{UsedAnvilReset: false, Elapsed: time.Since(start)}, nil
			}
		}
	}

	params := map[string]any{"forking": map[string]any{"jsonRpcUrl": forkURL}}
	if forkBlock > 0 {
		params["forking"].(map[string]any)["blockNumber"] = forkBlock
	}
	if _, err := in.Client.Request(ctx, "anvil_reset", []any{params}); err != nil {
		return ResetResult{}, fmt.Errorf("simulator: anvil_reset fallback failed: %w", err)
	}
	id, err := in.Client.Snapshot(ctx)
	if err != nil {
		return ResetResult{}, fmt.Errorf("simulator: re-snapshot after anvil_reset failed: %w", err)
	}
	in.baselineID = id
	return ResetResult{UsedAnvilReset: true, Elapsed: time.Since(start)}, nil
}

// Pool multiplexes Instances by InstanceKey so concurrent scans against
// the same (chain, forkUrl, forkBlock) share one forked node (§3
// Lifecycles invariant).
type Pool struct {
	mu        sync.Mutex
	instances map[InstanceKey]*Instance
	factory   func(InstanceKey) (AnvilInstance, error)
}

func NewPool(factory func(InstanceKey) (AnvilInstance, error)) *Pool {
	return &Pool{instances: make(map[InstanceKey]*Instance), factory: factory}
}

func (p *Pool) Acquire(key InstanceKey) (*Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if in, ok := p.instances[key]; ok {
		return in, nil
	}
	client, err := p.factory(key)
	if err != nil {
		return nil, fmt.Errorf("simulator: instance factory for %s: %w", key, err)
	}
	in := newInstance(client)
	p.instances[key] = in
	return in, nil
}
