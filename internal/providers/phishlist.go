package providers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/assay-gate/assay/internal/cache"
)

// PhishLabelsAdapter implements §4.2 item 4: fetch the public phish/hack
// CSV export (export-link JSON, then the CSV itself), backed by a
// per-chain on-disk TTL cache with cold/warm/stale states. Transient
// fetch failures never poison the in-memory set.
type PhishLabelsAdapter struct {
	ExportLinkURL string // returns {"csvUrl": "..."}
	Client        HTTPClient
	Store         *cache.PhishStore
}

func NewPhishLabelsAdapter(exportLinkURL string, store *cache.PhishStore) *PhishLabelsAdapter {
	return &PhishLabelsAdapter{ExportLinkURL: exportLinkURL, Client: &http.Client{}, Store: store}
}

// Labels returns the current phish/hack address set for chainID, per the
// cold/warm/stale state machine of §4.2 item 4.
func (a *PhishLabelsAdapter) Labels(ctx context.Context, chainID int64, opts RequestOptions) (map[string]struct{}, error) {
	switch a.Store.State(chainID) {
	case cache.PhishWarm:
		set, _ := a.Store.InMemory(chainID)
		return set, nil

	case cache.PhishStale:
		set, ok := a.Store.Load(chainID)
		if a.Store.MarkRefreshing(chainID) {
			go a.refreshInBackground(chainID, opts.TimeoutMs)
		}
		if !ok {
			// Torn disk file: treat as cold, fall through to inline fetch.
			return a.fetchAndStore(ctx, chainID, opts)
		}
		return set, nil

	default: // cold
		return a.fetchAndStore(ctx, chainID, opts)
	}
}

func (a *PhishLabelsAdapter) refreshInBackground(chainID int64, normalTimeoutMs int64) {
	defer a.Store.DoneRefreshing(chainID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := RequestOptions{Ctx: ctx, TimeoutMs: cache.RefreshTimeoutMs(normalTimeoutMs)}
	// Best-effort: a failed background refresh leaves the stale disk copy
	// in place, it is never allowed to poison the in-memory set.
	_, _ = a.fetchAndStore(ctx, chainID, opts)
}

func (a *PhishLabelsAdapter) fetchAndStore(ctx context.Context, chainID int64, opts RequestOptions) (map[string]struct{}, error) {
	addresses, err := a.fetch(ctx, chainID, opts)
	if err != nil {
		return nil, err
	}
	if err := a.Store.Store(chainID, addresses); err != nil {
		return nil, fmt.Errorf("phishlist: store: %w", err)
	}
	set := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		set[addr] = struct{}{}
	}
	return set, nil
}

func (a *PhishLabelsAdapter) fetch(ctx context.Context, chainID int64, opts RequestOptions) ([]string, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?chainId=%d", a.ExportLinkURL, chainID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := fetchWithTimeout(a.Client, req, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("phishlist: export-link status %d", resp.StatusCode)
	}
	body, err := readBody(resp, maxBodyBytes)
	if err != nil {
		return nil, err
	}
	var link struct {
		CSVUrl string `json:"csvUrl"`
	}
	if err := json.Unmarshal(body, &link); err != nil {
		return nil, fmt.Errorf("phishlist: invalid export-link response: %w", err)
	}

	csvReq, err := http.NewRequest(http.MethodGet, link.CSVUrl, nil)
	if err != nil {
		return nil, err
	}
	csvResp, err := fetchWithTimeout(a.Client, csvReq, opts)
	if err != nil {
		return nil, err
	}
	defer csvResp.Body.Close()
	if csvResp.StatusCode < 200 || csvResp.StatusCode >= 300 {
		return nil, fmt.Errorf("phishlist: csv fetch status %d", csvResp.StatusCode)
	}

	r := csv.NewReader(csvResp.Body)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("phishlist: malformed csv: %w", err)
	}

	var addresses []string
	for i, row := range records {
		if i == 0 || len(row) == 0 {
			continue // header row
		}
		addr := strings.ToLower(strings.TrimSpace(row[0]))
		if strings.HasPrefix(addr, "0x") {
			addresses = append(addresses, addr)
		}
	}
	return addresses, nil
}
