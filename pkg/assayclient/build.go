package assayclient

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/rawtx"
	"github.com/assay-gate/assay/internal/scan"
)

type sendTxParams struct {
	To    string `json:"to"`
	From  string `json:"from"`
	Data  string `json:"data"`
	Input string `json:"input"`
	Value string `json:"value"`
}

// buildScanInput mirrors the proxy's own request-to-scan.Input mapping
// for eth_sendTransaction/eth_sendRawTransaction (§4.8 steps 3-4), kept
// as its own small copy here since the client transport has no HTTP
// request/response of its own to share the proxy package's types with.
func buildScanInput(method string, params json.RawMessage, defaultChain chain.Chain) (scan.Input, chain.Chain, error) {
	switch method {
	case "eth_sendTransaction":
		return buildFromSendTransaction(params, defaultChain)
	case "eth_sendRawTransaction":
		return buildFromRawTransaction(params, defaultChain)
	default:
		return scan.Input{}, defaultChain, fmt.Errorf("assayclient: unsupported method %s", method)
	}
}

func buildFromSendTransaction(params json.RawMessage, c chain.Chain) (scan.Input, chain.Chain, error) {
	var args []sendTxParams
	if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 {
		return scan.Input{}, c, fmt.Errorf("assayclient: eth_sendTransaction requires params[0]")
	}
	p := args[0]
	dataHex := p.Data
	if dataHex == "" {
		dataHex = p.Input
	}
	data, err := decodeHexData(dataHex)
	if err != nil {
		return scan.Input{}, c, fmt.Errorf("assayclient: eth_sendTransaction malformed data: %w", err)
	}
	return scan.Input{Calldata: &scan.CalldataInput{
		To:    p.To,
		From:  p.From,
		Data:  data,
		Value: parseBigHexOrDecimal(p.Value),
		Chain: &c,
	}}, c, nil
}

func buildFromRawTransaction(params json.RawMessage, c chain.Chain) (scan.Input, chain.Chain, error) {
	var raws []string
	if err := json.Unmarshal(params, &raws); err != nil || len(raws) == 0 {
		return scan.Input{}, c, fmt.Errorf("assayclient: eth_sendRawTransaction requires params[0]")
	}
	rawBytes, err := decodeHexData(raws[0])
	if err != nil {
		return scan.Input{}, c, fmt.Errorf("assayclient: eth_sendRawTransaction malformed envelope: %w", err)
	}
	tx, err := rawtx.Decode(rawBytes)
	if err != nil {
		return scan.Input{}, c, fmt.Errorf("assayclient: could not decode raw transaction: %w", err)
	}

	txChain := c
	if tx.ChainID != nil && tx.ChainID.Sign() > 0 {
		if resolved, ok := chain.FromChainID(tx.ChainID.Int64()); ok {
			txChain = resolved
		}
	}

	return scan.Input{Calldata: &scan.CalldataInput{
		To:    tx.To,
		From:  tx.From,
		Data:  tx.Data,
		Value: tx.Value,
		Chain: &txChain,
	}}, txChain, nil
}

func decodeHexData(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, nil
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

func parseBigHexOrDecimal(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return big.NewInt(0)
		}
		return n
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}
