package providers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// staticClient is a fake HTTPClient returning a fixed status/body on every
// call and counting how many times Do was invoked.
type staticClient struct {
	status int
	body   string
	calls  int
}

func (c *staticClient) Do(req *http.Request) (*http.Response, error) {
	c.calls++
	return &http.Response{
		StatusCode: c.status,
		Body:       io.NopCloser(strings.NewReader(c.body)),
	}, nil
}

// sequenceClient returns a different canned response on each successive
// call, for exercising retry paths.
type sequenceClient struct {
	responses []struct {
		status int
		body   string
	}
	calls int
}

func (c *sequenceClient) Do(req *http.Request) (*http.Response, error) {
	i := c.calls
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	c.calls++
	r := c.responses[i]
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(strings.NewReader(r.body)),
	}, nil
}

func TestTokenSecurityAdapterRetriesOnRateLimitThenSucceeds(t *testing.T) {
	client := &sequenceClient{responses: []struct {
		status int
		body   string
	}{
		{http.StatusTooManyRequests, ""},
		{http.StatusOK, `{"result":{"0xtoken":{"is_honeypot":"1","buy_tax":"0.05","sell_tax":"0.1"}}}`},
	}}

	a := NewTokenSecurityAdapter("http://unused.invalid")
	a.Client = client
	a.sleep = func(time.Duration) {} // don't actually wait in a test

	result, err := a.Check(context.Background(), 1, "0xtoken", RequestOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsHoneypot {
		t.Fatal("expected IsHoneypot to decode true")
	}
	if result.BuyTax != 0.05 || result.SellTax != 0.1 {
		t.Fatalf("unexpected tax fields: %+v", result)
	}
	if client.calls != 2 {
		t.Fatalf("expected exactly one retry (2 calls), got %d", client.calls)
	}
}

func TestTokenSecurityAdapterGivesUpAfterMaxRetries(t *testing.T) {
	client := &staticClient{status: http.StatusTooManyRequests}
	a := NewTokenSecurityAdapter("http://unused.invalid")
	a.Client = client
	a.sleep = func(time.Duration) {}

	if _, err := a.Check(context.Background(), 1, "0xtoken", RequestOptions{}); err == nil {
		t.Fatal("expected an error once retries are exhausted")
	}
	if client.calls != maxRetries {
		t.Fatalf("expected %d attempts, got %d", maxRetries, client.calls)
	}
}

func TestTokenSecurityAdapterNonRetryableStatusFailsFast(t *testing.T) {
	client := &staticClient{status: http.StatusBadRequest}
	a := NewTokenSecurityAdapter("http://unused.invalid")
	a.Client = client
	a.sleep = func(time.Duration) {}

	if _, err := a.Check(context.Background(), 1, "0xtoken", RequestOptions{}); err == nil {
		t.Fatal("expected an error for a non-retryable status")
	}
	if client.calls != 1 {
		t.Fatalf("expected no retries on a 400, got %d calls", client.calls)
	}
}

func TestTokenSecurityAdapterCachesByChainAndAddress(t *testing.T) {
	client := &staticClient{status: http.StatusOK, body: `{"result":{"0xtoken":{"is_mintable":"1"}}}`}
	a := NewTokenSecurityAdapter("http://unused.invalid")
	a.Client = client
	a.sleep = func(time.Duration) {}

	if _, err := a.Check(context.Background(), 1, "0xtoken", RequestOptions{Cache: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.Check(context.Background(), 1, "0xtoken", RequestOptions{Cache: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected the memoized result to be reused, got %d calls", client.calls)
	}
}
