package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/assay-gate/assay/internal/apperr"
	"github.com/assay-gate/assay/internal/chain"
)

// readBody caps and reads the incoming HTTP request body.
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 10<<20))
}

// parseEntries decodes a JSON-RPC body as either a single request object
// or a batch array (§4.8: "accepts single objects and batches").
func parseEntries(body []byte) ([]request, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, apperr.Validation("proxy: empty request body")
	}
	if trimmed[0] == '[' {
		var batch []request
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, true, err
		}
		return batch, true, nil
	}
	var single request
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, false, err
	}
	return []request{single}, false, nil
}

func writeSingle(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeBatch(w http.ResponseWriter, resps []response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resps)
}

// forwardPassthrough implements §4.8 step 2's non-interceptable-method
// path and the step-8 forward action: relay the entry verbatim to the
// configured upstream RPC endpoint and hand back whatever it returns.
//
// Offline mode (§4.8 closing paragraph) refuses any upstream whose host is
// neither localhost nor the host of the resolved chain's built-in default
// RPC URL (see checkOfflineTarget).
func (s *Server) forwardPassthrough(ctx context.Context, req request) (response, bool) {
	if err := s.checkOfflineTarget(ctx); err != nil {
		return errorResponse(req.ID, codeInternal, err.Error(), nil), !req.isNotification()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return errorResponse(req.ID, codeInternal, "proxy: could not encode upstream request", nil), !req.isNotification()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Upstream, bytes.NewReader(body))
	if err != nil {
		return errorResponse(req.ID, codeInternal, apperr.Upstream("building upstream request", err).Error(), nil), !req.isNotification()
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.httpClient().Do(httpReq)
	if err != nil {
		return errorResponse(req.ID, codeInternal, apperr.Upstream("upstream request failed", err).Error(), nil), !req.isNotification()
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return errorResponse(req.ID, codeInternal, apperr.Upstream("reading upstream response", err).Error(), nil), !req.isNotification()
	}

	if req.isNotification() {
		return response{}, false
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return errorResponse(req.ID, codeInternal, apperr.Upstream("upstream returned malformed JSON-RPC", err).Error(), nil), true
	}
	return out, true
}

func (s *Server) httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// checkOfflineTarget implements the offline mode enforcement paragraph:
// the proxy's only permitted upstream is either localhost (the local
// fork) or a URL on the same host as chain.Lookup(c).DefaultRPCURL for the
// resolved chain. rpcUrls entries from the config file are not consulted,
// so a custom RPC host is refused in offline mode.
func (s *Server) checkOfflineTarget(ctx context.Context) error {
	if !s.Offline {
		return nil
	}
	u, err := url.Parse(s.Upstream)
	if err != nil {
		return apperr.Validation("proxy: offline mode: malformed upstream URL %q", s.Upstream)
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return nil
	}

	c := s.resolveChain(ctx)
	want, err := url.Parse(chain.Lookup(c).DefaultRPCURL)
	if err == nil && host == want.Hostname() {
		return nil
	}
	return apperr.Validation("proxy: offline mode forbids upstream %q (expected the configured RPC URL or localhost)", s.Upstream)
}

// resolveChain implements §4.8 step 6: the upstream's eth_chainId is
// fetched and cached the first time it is needed, then reused for every
// later entry whose calldata does not carry its own chain hint.
func (s *Server) resolveChain(ctx context.Context) chain.Chain {
	s.chainIDOnce.Do(func() {
		c := s.fetchChainID(ctx)
		s.cachedChain = &c
	})
	if s.cachedChain != nil && *s.cachedChain != "" {
		return *s.cachedChain
	}
	if s.DefaultChain != "" {
		return s.DefaultChain
	}
	return chain.Default
}

func (s *Server) fetchChainID(ctx context.Context) chain.Chain {
	body, _ := json.Marshal(request{JSONRPC: "2.0", ID: json.RawMessage("1"), Method: "eth_chainId"})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Upstream, bytes.NewReader(body))
	if err != nil {
		return s.DefaultChain
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.httpClient().Do(httpReq)
	if err != nil {
		s.logger().Warn("proxy: eth_chainId probe failed", "error", err)
		return s.DefaultChain
	}
	defer httpResp.Body.Close()

	var out response
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil || out.Result == nil {
		return s.DefaultChain
	}
	var hexID string
	if err := json.Unmarshal(out.Result, &hexID); err != nil {
		return s.DefaultChain
	}
	id := parseBigHexOrDecimal(strings.TrimSpace(hexID))
	if id == nil || id.Sign() == 0 {
		return s.DefaultChain
	}
	resolved, ok := chain.FromChainID(id.Int64())
	if !ok {
		return s.DefaultChain
	}
	return resolved
}
