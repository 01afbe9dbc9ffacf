package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/assay-gate/assay/internal/cache"
)

// TokenSecurity is the §3 record returned by the token-security scanner.
type TokenSecurity struct {
	IsHoneypot          bool
	IsMintable          bool
	Selfdestruct        bool
	OwnerCanChangeBalance bool
	IsBlacklisted       bool
	BuyTax              float64
	SellTax             float64
}

// TokenSecurityAdapter implements §4.2 item 6: GET token-security,
// retrying 429/5xx with a growing backoff of 250*(n+1) ms, at most 3
// attempts, memoized per (chain, address) so concurrent scans share one
// in-flight call.
type TokenSecurityAdapter struct {
	BaseURL string
	Client  HTTPClient
	memo    *cache.Memo[TokenSecurity]
	sleep   func(time.Duration)

	// limiter self-throttles outbound calls to GoPlus independent of the
	// retry backoff below, so a burst of concurrent scans against the
	// same process doesn't hammer the upstream faster than it tolerates.
	limiter *rate.Limiter
}

func NewTokenSecurityAdapter(baseURL string) *TokenSecurityAdapter {
	return &TokenSecurityAdapter{
		BaseURL: baseURL,
		Client:  &http.Client{},
		memo:    cache.NewMemo[TokenSecurity](),
		sleep:   time.Sleep,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
}

// UseRedis wires a shared backing store behind the in-process memo, so
// a token flagged as a honeypot by one assayd instance doesn't cost a
// second GoPlus round trip from every other instance behind the same
// redis.
func (a *TokenSecurityAdapter) UseRedis(b *cache.RedisBacking) {
	a.memo.UseRedis(b, "token-security:", time.Hour)
}

func (a *TokenSecurityAdapter) Check(ctx context.Context, chainID int64, address string, opts RequestOptions) (TokenSecurity, error) {
	fetch := func() (TokenSecurity, error) {
		return a.fetchWithRetry(ctx, chainID, address, opts)
	}
	if !opts.Cache {
		return fetch()
	}
	key := fmt.Sprintf("%d:%s", chainID, address)
	return a.memo.Get(key, fetch)
}

const maxRetries = 3

func (a *TokenSecurityAdapter) fetchWithRetry(ctx context.Context, chainID int64, address string, opts RequestOptions) (TokenSecurity, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := a.limiter.Wait(opts.ctx()); err != nil {
			return TokenSecurity{}, err
		}
		result, retryable, err := a.fetchOnce(chainID, address, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable || attempt == maxRetries-1 {
			break
		}
		select {
		case <-opts.ctx().Done():
			return TokenSecurity{}, opts.ctx().Err()
		default:
		}
		a.sleep(time.Duration(250*(attempt+1)) * time.Millisecond)
	}
	return TokenSecurity{}, lastErr
}

func (a *TokenSecurityAdapter) fetchOnce(chainID int64, address string, opts RequestOptions) (TokenSecurity, bool, error) {
	url := fmt.Sprintf("%s/token_security/%d?contract_addresses=%s", a.BaseURL, chainID, address)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return TokenSecurity{}, false, err
	}
	resp, err := fetchWithTimeout(a.Client, req, opts)
	if err != nil {
		return TokenSecurity{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return TokenSecurity{}, true, fmt.Errorf("token-security: status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TokenSecurity{}, false, fmt.Errorf("token-security: status %d", resp.StatusCode)
	}

	body, err := readBody(resp, maxBodyBytes)
	if err != nil {
		return TokenSecurity{}, false, err
	}

	var raw struct {
		Result map[string]struct {
			IsHoneypot            string `json:"is_honeypot"`
			IsMintable            string `json:"is_mintable"`
			SelfdestructFlag      string `json:"selfdestruct"`
			OwnerChangeBalance    string `json:"owner_change_balance"`
			IsBlacklisted         string `json:"is_blacklisted"`
			BuyTax                string `json:"buy_tax"`
			SellTax               string `json:"sell_tax"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return TokenSecurity{}, false, fmt.Errorf("token-security: invalid response: %w", err)
	}

	var entry TokenSecurity
	for _, v := range raw.Result {
		entry = TokenSecurity{
			IsHoneypot:            v.IsHoneypot == "1",
			IsMintable:            v.IsMintable == "1",
			Selfdestruct:          v.SelfdestructFlag == "1",
			OwnerCanChangeBalance: v.OwnerChangeBalance == "1",
			IsBlacklisted:         v.IsBlacklisted == "1",
			BuyTax:                parseFloatOrZero(v.BuyTax),
			SellTax:               parseFloatOrZero(v.SellTax),
		}
		break // single contract_address query, one entry expected
	}
	return entry, false, nil
}

func parseFloatOrZero(s string) float64 {
	var f float64
	if s == "" {
		return 0
	}
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return 0
	}
	return f
}
