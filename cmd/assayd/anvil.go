package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/config"
	"github.com/assay-gate/assay/internal/simulator"
)

// anvilLauncher starts one anvil subprocess per (chain, forkURL, forkBlock)
// fork instance key on demand and waits for its JSON-RPC port to accept
// connections before handing the instance back to the pool factory.
// Not grounded on internal/probe (that package is an unrelated eBPF
// verdict cache); this is a plain os/exec + dial-poll readiness check,
// the same shape ghostpool.PoolManager uses to wait for a sandboxed
// container to come up.
type anvilLauncher struct {
	cfg    config.SimulationConfig
	logger *slog.Logger

	mu    sync.Mutex
	procs map[simulator.InstanceKey]*exec.Cmd
	ports map[simulator.InstanceKey]int
	next  int
}

func newAnvilLauncher(cfg config.SimulationConfig, logger *slog.Logger, basePort int) *anvilLauncher {
	return &anvilLauncher{
		cfg:    cfg,
		logger: logger,
		procs:  make(map[simulator.InstanceKey]*exec.Cmd),
		ports:  make(map[simulator.InstanceKey]int),
		next:   basePort,
	}
}

// factory is the simulator.Pool constructor callback: given an instance
// key, launch (or reuse) the anvil process forking the requested chain
// at the requested block, and return an AnvilInstance pointed at it.
func (a *anvilLauncher) factory(key simulator.InstanceKey) (simulator.AnvilInstance, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if port, ok := a.ports[key]; ok {
		return simulator.NewHTTPAnvilInstance(fmt.Sprintf("http://127.0.0.1:%d", port)), nil
	}

	port := a.next
	a.next++

	forkURL := key.ForkURL
	if forkURL == "" {
		forkURL = chain.Lookup(key.Chain).DefaultRPCURL
	}

	args := []string{
		"--port", strconv.Itoa(port),
		"--fork-url", forkURL,
		"--silent",
	}
	if key.ForkBlock > 0 {
		args = append(args, "--fork-block-number", strconv.FormatInt(key.ForkBlock, 10))
	}

	binary := a.cfg.AnvilPath
	if binary == "" {
		binary = "anvil"
	}

	cmd := exec.Command(binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("anvil: start %s@%d: %w", key.Chain, key.ForkBlock, err)
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	if err := waitForPort(addr, 15*time.Second); err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("anvil: %s never became ready: %w", addr, err)
	}

	a.logger.Info("anvil instance ready", "chain", key.Chain, "forkBlock", key.ForkBlock, "addr", addr)
	a.procs[key] = cmd
	a.ports[key] = port
	return simulator.NewHTTPAnvilInstance("http://" + addr), nil
}

func (a *anvilLauncher) shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, cmd := range a.procs {
		if cmd.Process == nil {
			continue
		}
		if err := cmd.Process.Kill(); err != nil {
			a.logger.Warn("anvil: kill failed", "chain", key.Chain, "error", err)
		}
	}
}

func waitForPort(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}
	return context.DeadlineExceeded
}
