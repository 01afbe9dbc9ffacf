package providers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// EVMClient is the minimal on-chain JSON-RPC surface the RPC/proxy
// adapters need (§1: "raw on-chain RPC client... treated as a black
// box"). It is a thin, independent collaborator from the fork's
// AnvilInstance (§6.3) — this one talks to the live chain over whatever
// URL config.RPCUrls names, the fork only ever talks to the local anvil
// process.
type EVMClient interface {
	GetCode(ctx context.Context, address string) ([]byte, error)
	GetStorageAt(ctx context.Context, address, slot string) ([32]byte, error)
}

// HTTPEVMClient implements EVMClient over JSON-RPC HTTP, the only
// concrete implementation assay ships (the fork's black-box transport is
// a separate, externally-supplied collaborator per §1).
type HTTPEVMClient struct {
	URL    string
	Client HTTPClient
}

func NewHTTPEVMClient(url string) *HTTPEVMClient {
	return &HTTPEVMClient{URL: url, Client: &http.Client{}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPEVMClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := fetchWithTimeout(c.Client, req, RequestOptions{Ctx: ctx})
	if err != nil {
		return nil, err
	}
	data, err := readBody(resp, maxBodyBytes)
	if err != nil {
		return nil, err
	}
	var rr rpcResponse
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("rpc: invalid JSON from %s: %w", c.URL, err)
	}
	if rr.Error != nil {
		return nil, fmt.Errorf("rpc: %s returned error %d: %s", method, rr.Error.Code, rr.Error.Message)
	}
	return rr.Result, nil
}

func (c *HTTPEVMClient) GetCode(ctx context.Context, address string) ([]byte, error) {
	raw, err := c.call(ctx, "eth_getCode", []any{address, "latest"})
	if err != nil {
		return nil, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, err
	}
	return decodeHex(hexStr)
}

func (c *HTTPEVMClient) GetStorageAt(ctx context.Context, address, slot string) ([32]byte, error) {
	var out [32]byte
	raw, err := c.call(ctx, "eth_getStorageAt", []any{address, slot, "latest"})
	if err != nil {
		return out, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return out, err
	}
	b, err := decodeHex(hexStr)
	if err != nil {
		return out, err
	}
	copy(out[32-len(b):], b)
	return out, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// IsContractAdapter implements §4.2 item 1's contact-detector: a single
// eth_getCode call, true iff code length > 0.
type IsContractAdapter struct {
	Client EVMClient
}

func (a *IsContractAdapter) IsContract(ctx context.Context, address string, opts RequestOptions) (bool, error) {
	code, err := withCtx(ctx, opts, func(ctx context.Context) ([]byte, error) {
		return a.Client.GetCode(ctx, address)
	})
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// EIP-1967 implementation/beacon slots and the ERC-1822 (UUPS) slot, all
// well-known constants.
const (
	eip1967ImplSlot   = "0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc"
	eip1967BeaconSlot = "0xa3f0ad74e5423aebfd80d3ef4346578335a9a72aeaee59ff6cb3582b35133d50"
	uupsSlot          = "0xc5f16f0fcc639fa48a6947836d9850f504798523bf8c9a3a87d5876cf622bcf7"
)

var minimalProxyPrefix = []byte{0x36, 0x3d, 0x3d, 0x37, 0x3d, 0x3d, 0x3d, 0x36, 0x3d, 0x73}

// ProxyType is closed per SPEC_FULL.md Open Question 2.
type ProxyType string

const (
	ProxyEIP1967 ProxyType = "eip1967"
	ProxyUUPS    ProxyType = "uups"
	ProxyBeacon  ProxyType = "beacon"
	ProxyMinimal ProxyType = "minimal"
	ProxyUnknown ProxyType = "unknown"
)

// ProxyInfo is the §3 ProxyInfo record.
type ProxyInfo struct {
	IsProxy        bool
	ProxyType      ProxyType
	Implementation string
	Beacon         string
}

// ProxyDetectAdapter implements §4.2 item 1's detectProxy: probes the
// EIP-1967 implementation slot, EIP-1967 beacon slot, UUPS/ERC-1822 slot,
// and a minimal-proxy bytecode prefix, returning the first match.
type ProxyDetectAdapter struct {
	Client EVMClient
}

func (a *ProxyDetectAdapter) DetectProxy(ctx context.Context, address string, opts RequestOptions) (ProxyInfo, error) {
	return withCtx(ctx, opts, func(ctx context.Context) (ProxyInfo, error) {
		if impl, ok, err := a.slotAddress(ctx, address, eip1967ImplSlot); err != nil {
			return ProxyInfo{}, err
		} else if ok {
			return ProxyInfo{IsProxy: true, ProxyType: ProxyEIP1967, Implementation: impl}, nil
		}
		if beacon, ok, err := a.slotAddress(ctx, address, eip1967BeaconSlot); err != nil {
			return ProxyInfo{}, err
		} else if ok {
			return ProxyInfo{IsProxy: true, ProxyType: ProxyBeacon, Beacon: beacon}, nil
		}
		if impl, ok, err := a.slotAddress(ctx, address, uupsSlot); err != nil {
			return ProxyInfo{}, err
		} else if ok {
			return ProxyInfo{IsProxy: true, ProxyType: ProxyUUPS, Implementation: impl}, nil
		}
		code, err := a.Client.GetCode(ctx, address)
		if err != nil {
			return ProxyInfo{}, err
		}
		if impl, ok := minimalProxyTarget(code); ok {
			return ProxyInfo{IsProxy: true, ProxyType: ProxyMinimal, Implementation: impl}, nil
		}
		return ProxyInfo{IsProxy: false}, nil
	})
}

func (a *ProxyDetectAdapter) slotAddress(ctx context.Context, address, slot string) (string, bool, error) {
	word, err := a.Client.GetStorageAt(ctx, address, slot)
	if err != nil {
		return "", false, err
	}
	for _, b := range word[:12] {
		if b != 0 {
			// Non-zero beyond the low 20 bytes means this slot does not
			// hold a plain address; treat as not-set rather than error.
			return "", false, nil
		}
	}
	addr := "0x" + hex.EncodeToString(word[12:])
	if addr == "0x0000000000000000000000000000000000000000" {
		return "", false, nil
	}
	return addr, true, nil
}

// minimalProxyTarget recognizes the EIP-1167 minimal proxy bytecode
// pattern and extracts the 20-byte target address embedded in it.
func minimalProxyTarget(code []byte) (string, bool) {
	if len(code) < 45 || !bytes.HasPrefix(code, minimalProxyPrefix) {
		return "", false
	}
	target := code[10:30]
	return "0x" + hex.EncodeToString(target), true
}

// withCtx runs fn against opts' context, falling back to the ctx argument
// when opts carries none. The deadline itself is
// enforced by the timebudget runner one layer up (§4.1); adapters only
// need to honor cancellation, not impose their own timeout.
func withCtx[T any](ctx context.Context, opts RequestOptions, fn func(context.Context) (T, error)) (T, error) {
	if opts.Ctx == nil {
		opts.Ctx = ctx
	}
	return fn(opts.ctx())
}
