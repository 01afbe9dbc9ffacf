// assayd runs the JSON-RPC interception proxy: it sits in front of a
// wallet's node RPC, scans every eth_sendTransaction,
// eth_sendRawTransaction and eth_signTypedData_v4 call, and only
// forwards the ones the configured policy clears.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/assay-gate/assay/internal/analyzer"
	"github.com/assay-gate/assay/internal/cache"
	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/config"
	"github.com/assay-gate/assay/internal/finding"
	"github.com/assay-gate/assay/internal/metrics"
	"github.com/assay-gate/assay/internal/policy"
	"github.com/assay-gate/assay/internal/proxy"
	"github.com/assay-gate/assay/internal/providers"
	"github.com/assay-gate/assay/internal/scan"
	"github.com/assay-gate/assay/internal/simulator"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("assayd: no .env file found, continuing with process environment")
	}

	var (
		configPath  = flag.String("config", "", "path to assay.config.json (overrides ASSAY_CONFIG and discovery)")
		upstream    = flag.String("upstream", "", "upstream JSON-RPC URL this proxy forwards cleared requests to")
		chainFlag   = flag.String("chain", string(chain.Default), "default chain when a request doesn't name one")
		once        = flag.Bool("once", false, "handle exactly one intercepted entry, then shut down")
		offline     = flag.Bool("offline", false, "refuse any upstream target other than localhost or the chain's configured RPC")
		recordDir   = flag.String("record-dir", "", "directory to write audit bundles into (disabled if empty)")
		walletMode  = flag.Bool("wallet-mode", false, "use the tighter wallet-signing provider budget instead of the default analysis budget")
		interactive = flag.Bool("interactive", true, "prompt on the terminal for risky-but-not-blocked decisions (disable for unattended use)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *upstream == "" {
		log.Fatal("assayd: -upstream is required")
	}
	defaultChain, err := chain.Parse(*chainFlag)
	if err != nil {
		log.Fatalf("assayd: %v", err)
	}

	cfg, err := config.Load(config.Discover(*configPath))
	if err != nil {
		log.Fatalf("assayd: %v", err)
	}

	mode := providers.ModeDefault
	if *walletMode {
		mode = providers.ModeWallet
	}

	an := buildAnalyzer(cfg, defaultChain, logger)

	var launcher *anvilLauncher
	var simulate scan.Simulate
	if cfg.Simulation.EnabledOrDefault() && cfg.Simulation.Backend != "heuristic" {
		launcher = newAnvilLauncher(cfg.Simulation, logger, 9545)
		pool := simulator.NewPool(launcher.factory)
		simulate = func(ctx context.Context, req simulator.Request) (simulator.Result, error) {
			return simulator.Run(ctx, pool, cfg.Simulation.RPCURL, cfg.Simulation.ForkBlock, req)
		}
	} else {
		logger.Info("assayd: fork simulation disabled", "backend", cfg.Simulation.Backend)
	}

	orchestrator := &scan.Orchestrator{Analyzer: an, Simulate: simulate, Now: time.Now}

	allowlist := policy.NewAllowlist(cfg.Allowlist.To, cfg.Allowlist.Spenders)
	pol := policy.Policy{Threshold: finding.Danger, OnRisk: policy.OnRiskPrompt, AllowPromptWhenSimulationFails: false}

	srv := &proxy.Server{
		Orchestrator: orchestrator,
		Upstream:     *upstream,
		RecordDir:    *recordDir,
		DefaultChain: defaultChain,
		Mode:         mode,
		Offline:      *offline,
		Policy:       pol,
		Allowlist:    allowlist,
		Metrics:      metrics.New(),
		Once:         *once,
		Interactive:  *interactive,
		Logger:       logger,
		Now:          time.Now,
		Streamer:     proxy.NewDecisionStreamer(logger),
	}

	if *interactive && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		wirePromptYesNo()
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Interface, cfg.Server.Port),
		Handler: srv.Router(),
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	srv.SetShutdown(cancel)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-shutdownCtx.Done():
		}

		timeout := time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Error("assayd: shutdown error", "error", err)
		}
	}()

	logger.Info("assayd: listening", "addr", httpSrv.Addr, "upstream", *upstream, "once", *once, "offline", *offline)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("assayd: %v", err)
	}
	if launcher != nil {
		launcher.shutdown()
	}
	logger.Info("assayd: stopped")
}

func buildAnalyzer(cfg *config.Config, defaultChain chain.Chain, logger *slog.Logger) *analyzer.Analyzer {
	info := chain.Lookup(defaultChain)
	rpcURL := cfg.RPCUrls[string(defaultChain)]
	if rpcURL == "" {
		rpcURL = info.DefaultRPCURL
	}

	etherscanKey := cfg.EtherscanKeys[string(defaultChain)]

	phishStore := cache.NewPhishStore(cfg.Cache.Dir)

	rpc := providers.NewHTTPEVMClient(rpcURL)
	sourcify := providers.NewSourcifyAdapter("https://sourcify.dev/server")
	protocol := providers.NewProtocolAdapter("https://raw.githubusercontent.com/ethereum-lists/contracts/main/contracts.json")
	tokenSecurity := providers.NewTokenSecurityAdapter("https://api.gopluslabs.io/api/v1")

	if cfg.Redis.Addr != "" {
		redisBacking, err := cache.NewRedisBacking(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "assay")
		if err != nil {
			logger.Warn("assayd: redis backing unavailable, continuing with in-process caches only", "error", err)
		} else {
			sourcify.UseRedis(redisBacking)
			protocol.UseRedis(redisBacking)
			tokenSecurity.UseRedis(redisBacking)
		}
	}

	return &analyzer.Analyzer{
		RPC:             rpc,
		IsContract:      &providers.IsContractAdapter{Client: rpc},
		ProxyDetect:     &providers.ProxyDetectAdapter{Client: rpc},
		Sourcify:        sourcify,
		Etherscan:       providers.NewEtherscanAdapter("https://api.etherscan.io/v2/api", etherscanKey),
		PhishLabels:     providers.NewPhishLabelsAdapter("https://raw.githubusercontent.com/MetaMask/eth-phishing-detect/main/src/config.json", phishStore),
		Protocol:        protocol,
		TokenSecurity:   tokenSecurity,
		HasEtherscanKey: etherscanKey != "",
	}
}

// wirePromptYesNo replaces the proxy package's default
// always-block prompt hook with one that actually reads a y/N answer
// from the controlling terminal, mirroring how an interactive CLI tool
// confirms a destructive action before proceeding.
func wirePromptYesNo() {
	reader := bufio.NewReader(os.Stdin)
	proxy.SetPromptHook(func(recommendation string) bool {
		fmt.Fprintf(os.Stderr, "assayd: recommendation=%s - forward this request anyway? [y/N] ", recommendation)
		line, _ := reader.ReadString('\n')
		line = strings.ToLower(strings.TrimSpace(line))
		return line == "y" || line == "yes"
	})
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
