package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/assay-gate/assay/internal/cache"
	"github.com/assay-gate/assay/internal/chain"
)

// wellKnownProtocols is the static (chain, address) -> label map consulted
// before any network call (§4.2 item 5). A small, realistic seed; assay
// ships this list and updates it independent of the live /protocols feed.
var wellKnownProtocols = map[string]string{
	chainKey(chain.Ethereum, "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"): "Uniswap V2 Router",
	chainKey(chain.Ethereum, "0xe592427a0aece92de3edee1f18e0157c05861564"): "Uniswap V3 Router",
	chainKey(chain.Ethereum, "0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45"): "Uniswap Universal Router",
	chainKey(chain.Ethereum, "0x000000000022d473030f116ddee9f6b43ac78ba3"): "Permit2",
	chainKey(chain.Ethereum, "0x7d2768de32b0b80b7a3454c06bdac94a69ddc7a9"): "Aave V2 LendingPool",
	chainKey(chain.Ethereum, "0x87870bca3f3fd6335c3f4ce8392d69350b4fa4e2"): "Aave V3 Pool",
}

func chainKey(c chain.Chain, address string) string {
	return string(c) + ":" + strings.ToLower(address)
}

// ProtocolMatch is the §3 result of matching an address to a known
// protocol label.
type ProtocolMatch struct {
	Matched bool
	Label   string
}

// ProtocolAdapter implements §4.2 item 5. allowNetwork=false restricts it
// to the static map (used by offline mode and the implementation
// follow-up's "skip if already matched" rule).
type ProtocolAdapter struct {
	ListURL string
	Client  HTTPClient
	ttl     *cache.TTL[[]protocolEntry]
}

type protocolEntry struct {
	Name      string   `json:"name"`
	Addresses []string `json:"address"` // may carry "chain:0x..." or bare "0x..."
}

func NewProtocolAdapter(listURL string) *ProtocolAdapter {
	return &ProtocolAdapter{
		ListURL: listURL,
		Client:  &http.Client{},
		ttl:     cache.NewTTL[[]protocolEntry](time.Hour),
	}
}

// UseRedis wires a shared backing store behind the in-process TTL cache,
// so every assayd instance behind the same redis shares one fetch of the
// protocol list instead of each polling it on its own hourly cadence.
func (a *ProtocolAdapter) UseRedis(b *cache.RedisBacking) {
	a.ttl.UseRedis(b, "protocols:")
}

// Match implements the (chain match OR unprefixed-defaults-to-ethereum)
// AND address-equality rule of §4.2 item 5.
func (a *ProtocolAdapter) Match(ctx context.Context, c chain.Chain, address string, allowNetwork bool, opts RequestOptions) (ProtocolMatch, error) {
	address = strings.ToLower(address)
	if label, ok := wellKnownProtocols[chainKey(c, address)]; ok {
		return ProtocolMatch{Matched: true, Label: label}, nil
	}

	if !allowNetwork {
		return ProtocolMatch{}, nil
	}

	entries, err := a.list(ctx, opts)
	if err != nil {
		return ProtocolMatch{}, err
	}
	for _, e := range entries {
		for _, tagged := range e.Addresses {
			tagChain, tagAddr, hasChain := strings.Cut(tagged, ":")
			if !hasChain {
				tagChain, tagAddr = "ethereum", tagged
			}
			if strings.ToLower(tagAddr) != address {
				continue
			}
			if strings.EqualFold(tagChain, string(c)) || (!hasChain && c == chain.Ethereum) {
				return ProtocolMatch{Matched: true, Label: e.Name}, nil
			}
		}
	}
	return ProtocolMatch{}, nil
}

func (a *ProtocolAdapter) list(ctx context.Context, opts RequestOptions) ([]protocolEntry, error) {
	fetch := func() ([]protocolEntry, error) {
		req, err := http.NewRequest(http.MethodGet, a.ListURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := fetchWithTimeout(a.Client, req, opts)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("protocol list: status %d", resp.StatusCode)
		}
		body, err := readBody(resp, maxBodyBytes)
		if err != nil {
			return nil, err
		}
		var entries []protocolEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("protocol list: invalid response: %w", err)
		}
		return entries, nil
	}
	if !opts.Cache {
		return fetch()
	}
	return a.ttl.Get("protocols", fetch)
}
