// Package timebudget implements per-call deadlines with parent cancellation
// propagation: a Budget tracks how much of a total allowance remains, and
// RunWithTimeout races a task against both a per-call timeout and an
// optional parent cancellation signal.
package timebudget

import (
	"context"
	"time"
)

// Budget captures a start timestamp and a total allowance. It is not safe
// for concurrent mutation, but RemainingMs is safe to call concurrently
// since it only reads the clock and the immutable total.
type Budget struct {
	start    time.Time
	totalMs  int64
	nowFn    func() time.Time
}

// New starts a budget of totalMs milliseconds from now.
func New(totalMs int64) *Budget {
	return &Budget{start: time.Now(), totalMs: totalMs, nowFn: time.Now}
}

// RemainingMs returns the milliseconds left in the budget; never negative.
func (b *Budget) RemainingMs() int64 {
	elapsed := b.nowFn().Sub(b.start).Milliseconds()
	remaining := b.totalMs - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reason classifies how RunWithTimeout's outcome resolved.
type Reason string

const (
	ReasonOK      Reason = "ok"
	ReasonTimeout Reason = "timeout"
	ReasonAborted Reason = "aborted"
	ReasonError   Reason = "error"
)

// Outcome is the tagged-union result of RunWithTimeout.
type Outcome[T any] struct {
	Reason    Reason
	Value     T
	Err       error
	ElapsedMs int64
}

// Options configures a single RunWithTimeout call.
type Options struct {
	TimeoutMs    int64
	ParentCtx    context.Context // optional; nil means "no parent cancellation"
}

// Task is cooperative: it must observe ctx.Done() to exit promptly on
// cancellation. The runner never forcibly kills work — it only stops
// waiting for it.
type Task[T any] func(ctx context.Context) (T, error)

// RunWithTimeout races task against a deadline of opts.TimeoutMs and, if
// opts.ParentCtx is set, against that context's cancellation. Per §4.1:
// timeoutMs <= 0 returns ReasonTimeout immediately without invoking task.
// Parent cancellation propagates exactly once via a one-shot subscription
// (context.WithTimeout derived from opts.ParentCtx, cancelled on any exit).
func RunWithTimeout[T any](opts Options, task Task[T]) Outcome[T] {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	var zero T
	if opts.TimeoutMs <= 0 {
		return Outcome[T]{Reason: ReasonTimeout, Value: zero, ElapsedMs: elapsed()}
	}

	parent := opts.ParentCtx
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithTimeout(parent, time.Duration(opts.TimeoutMs)*time.Millisecond)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	go func() {
		v, err := task(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return Outcome[T]{Reason: ReasonError, Err: r.err, ElapsedMs: elapsed()}
		}
		return Outcome[T]{Reason: ReasonOK, Value: r.val, ElapsedMs: elapsed()}
	case <-ctx.Done():
		// Distinguish "our own deadline fired" from "parent cancelled us
		// first" by checking the parent directly; both unblock ctx.Done()
		// since ctx is derived from parent.
		select {
		case <-parent.Done():
			return Outcome[T]{Reason: ReasonAborted, ElapsedMs: elapsed()}
		default:
			return Outcome[T]{Reason: ReasonTimeout, ElapsedMs: elapsed()}
		}
	}
}
