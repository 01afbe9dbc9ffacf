package analyzer

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/providers"
)

type fakeEVMClient struct {
	code    []byte
	codeErr error
}

func (f *fakeEVMClient) GetCode(ctx context.Context, address string) ([]byte, error) {
	return f.code, f.codeErr
}

func (f *fakeEVMClient) GetStorageAt(ctx context.Context, address, slot string) ([32]byte, error) {
	return [32]byte{}, nil // no proxy slots set
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(body))}
}

func TestAnalyzeNonContractShortCircuit(t *testing.T) {
	client := &fakeEVMClient{code: nil}
	a := &Analyzer{IsContract: &providers.IsContractAdapter{Client: client}}

	result, err := a.Analyze(context.Background(), "0x1111111111111111111111111111111111111111", chain.Ethereum, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Contract.IsContract {
		t.Fatal("expected IsContract=false")
	}
	if result.Recommendation != finding.Caution {
		t.Fatalf("expected caution, got %s", result.Recommendation)
	}
	if len(result.Findings) != 1 || result.Findings[0].Code != "LOW_ACTIVITY" {
		t.Fatalf("expected single LOW_ACTIVITY finding, got %+v", result.Findings)
	}
}

func TestAnalyzeOfflineWithoutRPCErrors(t *testing.T) {
	a := &Analyzer{}
	_, err := a.Analyze(context.Background(), "0x1111111111111111111111111111111111111111", chain.Ethereum, Options{Offline: true})
	if err == nil {
		t.Fatal("expected an error for offline mode with no RPC configured")
	}
}

func TestAnalyzeVerifiedContractProducesSafeFinding(t *testing.T) {
	address := "0x2222222222222222222222222222222222222222"
	evm := &fakeEVMClient{code: []byte{0x60, 0x80}}

	sourcifyHTTP := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		body := `{"files":[{"name":"metadata.json","path":"metadata.json","content":"{\"output\":{\"abi\":[]},\"settings\":{\"compilationTarget\":{\"src/Token.sol\":\"Token\"}}}"}]}`
		return jsonResponse(200, body), nil
	})

	sourcify := providers.NewSourcifyAdapter("http://sourcify.test")
	sourcify.Client = sourcifyHTTP

	a := &Analyzer{
		IsContract:  &providers.IsContractAdapter{Client: evm},
		ProxyDetect: &providers.ProxyDetectAdapter{Client: evm},
		Sourcify:    sourcify,
	}

	result, err := a.Analyze(context.Background(), address, chain.Ethereum, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Contract.Verified {
		t.Fatal("expected contract to be verified")
	}
	if result.Contract.Name != "Token" {
		t.Fatalf("expected name Token, got %q", result.Contract.Name)
	}
	found := false
	for _, f := range result.Findings {
		if f.Code == "VERIFIED" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected VERIFIED finding, got %+v", result.Findings)
	}
}

func TestAnalyzeUnverifiedProducesDangerFinding(t *testing.T) {
	address := "0x3333333333333333333333333333333333333333"
	evm := &fakeEVMClient{code: []byte{0x60, 0x80}}

	sourcifyHTTP := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(404, `{}`), nil
	})

	sourcify := providers.NewSourcifyAdapter("http://sourcify.test")
	sourcify.Client = sourcifyHTTP

	a := &Analyzer{
		IsContract:  &providers.IsContractAdapter{Client: evm},
		ProxyDetect: &providers.ProxyDetectAdapter{Client: evm},
		Sourcify:    sourcify,
	}

	result, err := a.Analyze(context.Background(), address, chain.Ethereum, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Contract.Verified {
		t.Fatal("expected contract to be unverified")
	}
	if result.Recommendation != finding.Danger {
		t.Fatalf("expected danger recommendation, got %s", result.Recommendation)
	}
}

func TestDisplayNameResolution(t *testing.T) {
	cases := []struct {
		name string
		info ContractInfo
		want string
	}{
		{"not proxy with name", ContractInfo{Name: "Token"}, "Token"},
		{"not proxy falls back to address", ContractInfo{Address: "0xabc"}, "0xabc"},
		{"proxy protocol+impl dedup", ContractInfo{IsProxy: true, ProtocolLabel: "Uniswap", ImplementationName: "Uniswap V3 Pool"}, "Uniswap V3 Pool"},
		{"proxy protocol+impl no dedup", ContractInfo{IsProxy: true, ProtocolLabel: "Aave", ImplementationName: "Pool"}, "Aave Pool"},
		{"proxy protocol only", ContractInfo{IsProxy: true, ProtocolLabel: "Aave"}, "Aave"},
		{"proxy impl only", ContractInfo{IsProxy: true, ImplementationName: "Impl"}, "Impl"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := displayName(c.info)
			if got != c.want {
				t.Fatalf("displayName(%+v) = %q, want %q", c.info, got, c.want)
			}
		})
	}
}

func TestTokenSecurityFindings(t *testing.T) {
	t.Run("honeypot and high tax", func(t *testing.T) {
		findings := tokenSecurityFindings(providers.TokenSecurity{IsHoneypot: true, BuyTax: 0.2})
		var codes []string
		for _, f := range findings {
			codes = append(codes, f.Code)
		}
		if !strings.Contains(strings.Join(codes, ","), "HONEYPOT") {
			t.Fatalf("expected HONEYPOT, got %v", codes)
		}
		if !strings.Contains(strings.Join(codes, ","), "HIGH_TAX") {
			t.Fatalf("expected HIGH_TAX, got %v", codes)
		}
	})
	t.Run("clean token has no findings", func(t *testing.T) {
		findings := tokenSecurityFindings(providers.TokenSecurity{})
		if len(findings) != 0 {
			t.Fatalf("expected no findings, got %+v", findings)
		}
	})
}
