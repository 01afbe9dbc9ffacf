package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/assay-gate/assay/internal/cache"
)

// VerificationResult is the §4.2 item 2 Sourcify-equivalent response.
type VerificationResult struct {
	Verified          bool
	VerificationKnown bool // true once a 404 or 2xx was actually observed
	Name              string
	ABI               json.RawMessage
	Source            string
}

// SourcifyAdapter implements the verification-service adapter: GET
// /files/any/{chainId}/{address}; 404 means verified=false with
// verificationKnown=true; a 2xx parses metadata.json for name/ABI and the
// first .sol source outside node_modules; any other failure, when called
// under a timeout/signal, is re-thrown so the caller sees Timeout/Error
// instead of misreading it as "unverified".
type SourcifyAdapter struct {
	BaseURL string
	Client  HTTPClient
	memo    *cache.Memo[VerificationResult]
}

func NewSourcifyAdapter(baseURL string) *SourcifyAdapter {
	return &SourcifyAdapter{
		BaseURL: baseURL,
		Client:  &http.Client{},
		memo:    cache.NewMemo[VerificationResult](),
	}
}

// UseRedis wires a shared backing store behind the in-process memo, so
// verification results survive process restarts and are shared across
// assayd instances behind the same redis.
func (a *SourcifyAdapter) UseRedis(b *cache.RedisBacking) {
	a.memo.UseRedis(b, "sourcify:", 24*time.Hour)
}

func (a *SourcifyAdapter) Verify(ctx context.Context, chainID int64, address string, opts RequestOptions) (VerificationResult, error) {
	fetch := func() (VerificationResult, error) {
		return a.fetch(ctx, chainID, address, opts)
	}
	if !opts.Cache {
		return fetch()
	}
	key := fmt.Sprintf("%d:%s", chainID, address)
	return a.memo.Get(key, fetch)
}

func (a *SourcifyAdapter) fetch(ctx context.Context, chainID int64, address string, opts RequestOptions) (VerificationResult, error) {
	url := fmt.Sprintf("%s/files/any/%d/%s", a.BaseURL, chainID, address)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return VerificationResult{}, err
	}

	resp, err := fetchWithTimeout(a.Client, req, opts)
	if err != nil {
		return VerificationResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return VerificationResult{Verified: false, VerificationKnown: true}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// A non-404 failure while timeboxed must propagate so the runner
		// can classify it as Error, not as "unverified".
		return VerificationResult{}, fmt.Errorf("sourcify: unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := readBody(resp, maxBodyBytes)
	if err != nil {
		return VerificationResult{}, err
	}

	var files struct {
		Files []struct {
			Name    string          `json:"name"`
			Path    string          `json:"path"`
			Content json.RawMessage `json:"content"`
		} `json:"files"`
	}
	if err := json.Unmarshal(body, &files); err != nil {
		return VerificationResult{}, fmt.Errorf("sourcify: invalid response: %w", err)
	}

	result := VerificationResult{Verified: true, VerificationKnown: true}
	for _, f := range files.Files {
		if f.Name == "metadata.json" {
			var meta struct {
				Output struct {
					ABI json.RawMessage `json:"abi"`
				} `json:"output"`
				Settings struct {
					CompilationTarget map[string]string `json:"compilationTarget"`
				} `json:"settings"`
			}
			var content string
			_ = json.Unmarshal(f.Content, &content)
			if content != "" {
				_ = json.Unmarshal([]byte(content), &meta)
			} else {
				_ = json.Unmarshal(f.Content, &meta)
			}
			result.ABI = meta.Output.ABI
			for _, name := range meta.Settings.CompilationTarget {
				result.Name = name
			}
			continue
		}
		if strings.HasSuffix(f.Path, ".sol") && !strings.Contains(f.Path, "node_modules") && result.Source == "" {
			var content string
			if err := json.Unmarshal(f.Content, &content); err == nil {
				result.Source = content
			}
		}
	}
	return result, nil
}
