package timebudget

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunWithTimeoutZeroIsImmediateTimeout(t *testing.T) {
	called := false
	out := RunWithTimeout(Options{TimeoutMs: 0}, func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})
	if out.Reason != ReasonTimeout {
		t.Fatalf("reason = %v, want timeout", out.Reason)
	}
	if called {
		t.Fatal("task must not be invoked when timeoutMs <= 0")
	}
}

func TestRunWithTimeoutOk(t *testing.T) {
	out := RunWithTimeout(Options{TimeoutMs: 1000}, func(ctx context.Context) (string, error) {
		return "hi", nil
	})
	if out.Reason != ReasonOK || out.Value != "hi" {
		t.Fatalf("got %+v", out)
	}
}

func TestRunWithTimeoutDeadline(t *testing.T) {
	out := RunWithTimeout(Options{TimeoutMs: 20}, func(ctx context.Context) (int, error) {
		select {
		case <-time.After(time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})
	if out.Reason != ReasonTimeout {
		t.Fatalf("reason = %v, want timeout", out.Reason)
	}
}

func TestRunWithTimeoutAborted(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()
	out := RunWithTimeout(Options{TimeoutMs: 5000, ParentCtx: parent}, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if out.Reason != ReasonAborted {
		t.Fatalf("reason = %v, want aborted", out.Reason)
	}
}

func TestRunWithTimeoutError(t *testing.T) {
	wantErr := errors.New("boom")
	out := RunWithTimeout(Options{TimeoutMs: 1000}, func(ctx context.Context) (int, error) {
		return 0, wantErr
	})
	if out.Reason != ReasonError || !errors.Is(out.Err, wantErr) {
		t.Fatalf("got %+v", out)
	}
}

func TestBudgetRemainingNeverNegative(t *testing.T) {
	b := New(10)
	time.Sleep(20 * time.Millisecond)
	if b.RemainingMs() != 0 {
		t.Fatalf("remaining = %d, want 0", b.RemainingMs())
	}
}
