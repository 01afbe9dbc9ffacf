package simulator

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/assay-gate/assay/internal/providers"
)

// HTTPAnvilInstance implements AnvilInstance over anvil's JSON-RPC
// surface, the same call-then-decode shape as providers.HTTPEVMClient
// but against a local fork rather than a live chain (§1: "a thin,
// independent collaborator").
type HTTPAnvilInstance struct {
	URL    string
	Client providers.HTTPClient
}

func NewHTTPAnvilInstance(url string) *HTTPAnvilInstance {
	return &HTTPAnvilInstance{URL: url, Client: &http.Client{}}
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

func (h *HTTPAnvilInstance) Request(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anvil: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("anvil: %s: invalid JSON response: %w", method, err)
	}
	if rr.Error != nil {
		return nil, fmt.Errorf("anvil: %s returned error %d: %s", method, rr.Error.Code, rr.Error.Message)
	}
	return rr.Result, nil
}

func (h *HTTPAnvilInstance) Snapshot(ctx context.Context) (string, error) {
	raw, err := h.Request(ctx, "evm_snapshot", nil)
	if err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", err
	}
	return id, nil
}

func (h *HTTPAnvilInstance) Revert(ctx context.Context, id string) error {
	_, err := h.Request(ctx, "evm_revert", []any{id})
	return err
}

func (h *HTTPAnvilInstance) ImpersonateAccount(ctx context.Context, address string) error {
	_, err := h.Request(ctx, "anvil_impersonateAccount", []any{address})
	return err
}

func (h *HTTPAnvilInstance) StopImpersonatingAccount(ctx context.Context, address string) error {
	_, err := h.Request(ctx, "anvil_stopImpersonatingAccount", []any{address})
	return err
}

func (h *HTTPAnvilInstance) SetBalance(ctx context.Context, address string, value *big.Int) error {
	_, err := h.Request(ctx, "anvil_setBalance", []any{address, "0x" + value.Text(16)})
	return err
}

func (h *HTTPAnvilInstance) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	raw, err := h.Request(ctx, "eth_getBalance", []any{address, "latest"})
	if err != nil {
		return nil, err
	}
	return decodeQuantity(raw)
}

func (h *HTTPAnvilInstance) GetCode(ctx context.Context, address string) ([]byte, error) {
	raw, err := h.Request(ctx, "eth_getCode", []any{address, "latest"})
	if err != nil {
		return nil, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, err
	}
	return decodeHex(hexStr)
}

func (h *HTTPAnvilInstance) SendUnsignedTransaction(ctx context.Context, tx UnsignedTx) (string, error) {
	params := map[string]any{
		"from": tx.From,
		"to":   tx.To,
		"data": "0x" + hex.EncodeToString(tx.Data),
	}
	if tx.Value != nil {
		params["value"] = "0x" + tx.Value.Text(16)
	}
	raw, err := h.Request(ctx, "eth_sendTransaction", []any{params})
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// WaitForTransactionReceipt polls eth_getTransactionReceipt until a
// receipt appears or ctx is done. Anvil mines synchronously under
// automine, so this is expected to resolve on the first or second poll.
func (h *HTTPAnvilInstance) WaitForTransactionReceipt(ctx context.Context, hash string) (TxReceipt, error) {
	for {
		raw, err := h.Request(ctx, "eth_getTransactionReceipt", []any{hash})
		if err != nil {
			return TxReceipt{}, err
		}
		if string(raw) != "null" && len(raw) > 0 {
			return parseReceipt(raw)
		}
		select {
		case <-ctx.Done():
			return TxReceipt{}, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (h *HTTPAnvilInstance) Call(ctx context.Context, call CallParams) ([]byte, error) {
	params := map[string]any{"to": call.To, "data": "0x" + hex.EncodeToString(call.Data)}
	if call.From != "" {
		params["from"] = call.From
	}
	if call.Value != nil {
		params["value"] = "0x" + call.Value.Text(16)
	}
	block := call.BlockNumber
	if block == "" {
		block = "latest"
	}
	raw, err := h.Request(ctx, "eth_call", []any{params, block})
	if err != nil {
		return nil, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, err
	}
	return decodeHex(hexStr)
}

func (h *HTTPAnvilInstance) ReadContract(ctx context.Context, address, selector, blockNumber string) ([]byte, error) {
	data, err := decodeHex(selector)
	if err != nil {
		return nil, err
	}
	return h.Call(ctx, CallParams{To: address, Data: data, BlockNumber: blockNumber})
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func decodeQuantity(raw json.RawMessage) (*big.Int, error) {
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(strings.TrimPrefix(hexStr, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("anvil: invalid quantity %q", hexStr)
	}
	return v, nil
}

func parseReceipt(raw json.RawMessage) (TxReceipt, error) {
	var r struct {
		Status            string `json:"status"`
		BlockNumber       string `json:"blockNumber"`
		GasUsed           string `json:"gasUsed"`
		EffectiveGasPrice string `json:"effectiveGasPrice"`
		Logs              []struct {
			Address string   `json:"address"`
			Topics  []string `json:"topics"`
			Data    string   `json:"data"`
		} `json:"logs"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return TxReceipt{}, err
	}
	status, _ := decodeQuantity(json.RawMessage(`"` + r.Status + `"`))
	blockNumber, _ := decodeQuantity(json.RawMessage(`"` + r.BlockNumber + `"`))
	gasUsed, _ := decodeQuantity(json.RawMessage(`"` + r.GasUsed + `"`))
	effectiveGasPrice, _ := decodeQuantity(json.RawMessage(`"` + r.EffectiveGasPrice + `"`))

	out := TxReceipt{
		EffectiveGasPrice: effectiveGasPrice,
	}
	if status != nil {
		out.Status = status.Uint64()
	}
	if blockNumber != nil {
		out.BlockNumber = blockNumber.Uint64()
	}
	if gasUsed != nil {
		out.GasUsed = gasUsed.Uint64()
	}
	for _, lg := range r.Logs {
		data, err := decodeHex(lg.Data)
		if err != nil {
			continue
		}
		out.Logs = append(out.Logs, Log{Address: lg.Address, Topics: lg.Topics, Data: data})
	}
	return out, nil
}
