// Package recording implements §4.8 step 9 / §6.5: the on-disk bundle
// every intercepted JSON-RPC entry gets, written in two passes — a stub
// written before the scan promise resolves (so a client disconnect or
// server kill still leaves an artifact) and an enrichment write once the
// scan finalizes or errors.
package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the §6.5 meta.json status progression.
type Status string

const (
	StatusPending   Status = "pending"
	StatusForwarded Status = "forwarded"
	StatusBlocked   Status = "blocked"
	StatusError     Status = "error"
)

// Meta is the §4.8 step 9 meta.json document.
type Meta struct {
	Status            Status    `json:"status"`
	Action            string    `json:"action,omitempty"`
	Recommendation    string    `json:"recommendation,omitempty"`
	SimulationSuccess *bool     `json:"simulationSuccess,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
}

// Bundle is one intercepted entry's on-disk directory, keyed and written
// per §6.5's layout: meta.json, rpc.json, calldata.json always; the
// analyzeResponse/rendered files only once a scan has actually produced
// them (§3 invariant 5).
type Bundle struct {
	dir string
}

// Open creates the bundle directory (ISO8601__method__chain__to__from__uuid8
// per §4.8 step 9) and writes the three stub files. The stub write
// happens synchronously, before the caller starts the scan, so a
// disconnect or crash mid-scan still leaves an artifact on disk.
func Open(recordDir, method, chainTag, to, from string, rpcRequest, calldataInput any, at time.Time) (*Bundle, error) {
	name := dirName(method, chainTag, to, from, at)
	dir := filepath.Join(recordDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recording: mkdir %s: %w", dir, err)
	}
	b := &Bundle{dir: dir}

	if err := b.writeJSON("meta.json", Meta{Status: StatusPending, CreatedAt: at}); err != nil {
		return nil, err
	}
	if err := b.writeJSON("rpc.json", rpcRequest); err != nil {
		return nil, err
	}
	if err := b.writeJSON("calldata.json", calldataInput); err != nil {
		return nil, err
	}
	return b, nil
}

func dirName(method, chainTag, to, from string, at time.Time) string {
	uuid8 := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	parts := []string{at.UTC().Format("2006-01-02T15-04-05.000Z"), method, chainTag, safePart(to), safePart(from), uuid8}
	return strings.Join(parts, "__")
}

func safePart(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// Dir returns the bundle's directory path, for logging/debugging.
func (b *Bundle) Dir() string { return b.dir }

// WriteAnalyzeResponse writes analyzeResponse.json; only called when a
// scan actually produced a response (§3 invariant 5).
func (b *Bundle) WriteAnalyzeResponse(resp any) error {
	return b.writeJSON("analyzeResponse.json", resp)
}

// WriteRendered writes rendered.txt; only called in non-quiet mode when
// the scan produced renderable text.
func (b *Bundle) WriteRendered(text string) error {
	return os.WriteFile(filepath.Join(b.dir, "rendered.txt"), []byte(text), 0o644)
}

// Finalize overwrites meta.json with the terminal status, completing the
// §6.5 pending -> (forwarded|blocked|error) progression.
func (b *Bundle) Finalize(status Status, action, recommendation string, simulationSuccess *bool, createdAt, completedAt time.Time) error {
	meta := Meta{
		Status:            status,
		Action:            action,
		Recommendation:    recommendation,
		SimulationSuccess: simulationSuccess,
		CreatedAt:         createdAt,
		CompletedAt:       &completedAt,
	}
	return b.writeJSON("meta.json", meta)
}

func (b *Bundle) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("recording: marshal %s: %w", name, err)
	}
	return os.WriteFile(filepath.Join(b.dir, name), data, 0o644)
}
