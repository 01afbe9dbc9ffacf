package cache

import (
	"errors"
	"os"
	"sync/atomic"
	"testing"
)

func TestMemoDeduplicatesConcurrentCalls(t *testing.T) {
	m := NewMemo[int]()
	var calls int32
	fn := func() (int, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}

	done := make(chan int, 10)
	for i := 0; i < 10; i++ {
		go func() {
			v, _ := m.Get("k", fn)
			done <- v
		}()
	}
	for i := 0; i < 10; i++ {
		if got := <-done; got != 42 {
			t.Errorf("got %d, want 42", got)
		}
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestMemoDoesNotCacheFailure(t *testing.T) {
	m := NewMemo[int]()
	attempt := 0
	fn := func() (int, error) {
		attempt++
		if attempt == 1 {
			return 0, errors.New("boom")
		}
		return 7, nil
	}
	if _, err := m.Get("k", fn); err == nil {
		t.Fatal("expected first call to fail")
	}
	v, err := m.Get("k", fn)
	if err != nil || v != 7 {
		t.Fatalf("second call should succeed and recompute: got %d, %v", v, err)
	}
}

func TestPhishStoreIdempotentWrite(t *testing.T) {
	dir := t.TempDir()
	s := NewPhishStore(dir)
	addrs := []string{"0xbbb", "0xaaa", "0xccc"}

	if err := s.Store(1, addrs); err != nil {
		t.Fatal(err)
	}
	first, ok := s.Load(1)
	if !ok {
		t.Fatal("expected load to succeed")
	}

	if err := s.Store(1, addrs); err != nil {
		t.Fatal(err)
	}
	second, ok := s.Load(1)
	if !ok {
		t.Fatal("expected second load to succeed")
	}

	if len(first) != len(second) {
		t.Fatalf("set sizes differ: %d vs %d", len(first), len(second))
	}
	for a := range first {
		if _, ok := second[a]; !ok {
			t.Errorf("address %s missing after second write", a)
		}
	}
}

func TestPhishStoreTornFileIsCold(t *testing.T) {
	dir := t.TempDir()
	s := NewPhishStore(dir)
	if err := s.Store(5, []string{"0xaaa"}); err != nil {
		t.Fatal(err)
	}
	// Corrupt the file.
	if err := os.WriteFile(s.path(5), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Load(5); ok {
		t.Fatal("torn file must not load as a valid (even empty) set")
	}
}
