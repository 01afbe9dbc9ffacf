package cache

import (
	"os"
	"testing"
	"time"
)

func TestPhishStoreStateTransitions(t *testing.T) {
	dir := t.TempDir()
	s := NewPhishStore(dir)

	if got := s.State(1); got != PhishCold {
		t.Fatalf("fresh store: State() = %s, want %s", got, PhishCold)
	}

	if err := s.StoreAt(1, []string{"0xaaa"}, time.Now()); err != nil {
		t.Fatalf("StoreAt failed: %v", err)
	}
	if got := s.State(1); got != PhishWarm {
		t.Fatalf("just-written entry: State() = %s, want %s", got, PhishWarm)
	}

	if err := s.StoreAt(1, []string{"0xaaa"}, time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatalf("StoreAt failed: %v", err)
	}
	if got := s.State(1); got != PhishStale {
		t.Fatalf("expired in-memory entry with a file on disk: State() = %s, want %s", got, PhishStale)
	}
}

func TestPhishStoreStateIsColdWhenOnlyOtherChainsAreWarm(t *testing.T) {
	dir := t.TempDir()
	s := NewPhishStore(dir)
	if err := s.Store(1, []string{"0xaaa"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if got := s.State(8453); got != PhishCold {
		t.Fatalf("unrelated chain id: State() = %s, want %s", got, PhishCold)
	}
}

func TestPhishStoreLoadTornFileIsTreatedAsMiss(t *testing.T) {
	dir := t.TempDir()
	s := NewPhishStore(dir)
	if err := s.Store(5, []string{"0xaaa", "0xbbb"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := os.WriteFile(s.path(5), []byte(`{"addresses": [`), 0o644); err != nil {
		t.Fatalf("failed to corrupt the file: %v", err)
	}

	set, ok := s.Load(5)
	if ok {
		t.Fatalf("torn file must not load, got %v", set)
	}
	if set != nil {
		t.Fatalf("a cache miss must return a nil set, not an empty one: %v", set)
	}
}

func TestPhishStoreLoadMissingFileIsAMiss(t *testing.T) {
	dir := t.TempDir()
	s := NewPhishStore(dir)
	if _, ok := s.Load(999); ok {
		t.Fatal("expected Load to report a miss for a chain id that was never stored")
	}
}

func TestPhishStoreStoreAtIsDeterministicForTheSameInputs(t *testing.T) {
	dir := t.TempDir()
	s := NewPhishStore(dir)
	at := time.Unix(1_700_000_000, 0).UTC()

	if err := s.StoreAt(1, []string{"0xccc", "0xaaa", "0xbbb"}, at); err != nil {
		t.Fatalf("StoreAt failed: %v", err)
	}
	first, err := os.ReadFile(s.path(1))
	if err != nil {
		t.Fatalf("failed reading the written file: %v", err)
	}

	if err := s.StoreAt(1, []string{"0xbbb", "0xccc", "0xaaa"}, at); err != nil {
		t.Fatalf("StoreAt failed: %v", err)
	}
	second, err := os.ReadFile(s.path(1))
	if err != nil {
		t.Fatalf("failed reading the rewritten file: %v", err)
	}

	if string(first) != string(second) {
		t.Fatalf("writing the same address set (different input order) twice at the same timestamp must produce identical bytes:\n%s\nvs\n%s", first, second)
	}
}

func TestMarkRefreshingIsSingleFlightPerChain(t *testing.T) {
	s := NewPhishStore(t.TempDir())

	if !s.MarkRefreshing(1) {
		t.Fatal("expected the first MarkRefreshing call to claim the slot")
	}
	if s.MarkRefreshing(1) {
		t.Fatal("expected a second concurrent MarkRefreshing call for the same chain to be refused")
	}
	if !s.MarkRefreshing(2) {
		t.Fatal("a different chain id must claim its own independent slot")
	}

	s.DoneRefreshing(1)
	if !s.MarkRefreshing(1) {
		t.Fatal("expected MarkRefreshing to succeed again after DoneRefreshing released the slot")
	}
}

func TestRefreshTimeoutMsClampsToRange(t *testing.T) {
	cases := []struct {
		in, want int64
	}{
		{100, 500},
		{500, 500},
		{1000, 1000},
		{2000, 2000},
		{5000, 2000},
	}
	for _, tc := range cases {
		if got := RefreshTimeoutMs(tc.in); got != tc.want {
			t.Errorf("RefreshTimeoutMs(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
