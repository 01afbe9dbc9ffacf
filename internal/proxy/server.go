// Package proxy implements §4.8: the JSON-RPC interception proxy that
// sits between a wallet and its upstream RPC endpoint, scanning
// send-transaction and typed-data-signing requests before they reach the
// chain.
//
// Grounded on the teacher's internal/api/server.go: a gorilla/mux router
// with an inline CORS middleware wrapping every route, adapted from REST
// endpoints to a single JSON-RPC entry point plus a liveness GET.
package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assay-gate/assay/internal/chain"
	"github.com/assay-gate/assay/internal/metrics"
	"github.com/assay-gate/assay/internal/policy"
	"github.com/assay-gate/assay/internal/providers"
	"github.com/assay-gate/assay/internal/recording"
	"github.com/assay-gate/assay/internal/scan"
)

// Server is the proxy's HTTP entry point. Every field is set once at
// construction (§9 Open Question 1: dependency-injected); the interactive
// prompt hook is the one package-level setting (see SetPromptHook).
type Server struct {
	Orchestrator *scan.Orchestrator
	Upstream     string // configured upstream RPC URL
	RecordDir    string
	DefaultChain chain.Chain
	Mode         providers.Mode
	Offline      bool
	Policy       policy.Policy
	Allowlist    policy.Allowlist
	Metrics      *metrics.Metrics
	Once         bool
	Interactive  bool
	Logger       *slog.Logger
	Now          func() time.Time

	// Streamer optionally fans every decision out to connected /ws
	// clients (a live feed for an attached UI). Nil disables the route
	// entirely rather than serving an always-empty stream.
	Streamer *DecisionStreamer

	shutdown func()

	mu          sync.Mutex // per-instance task queue (§4.8 step 7)
	onceFired   bool
	chainIDOnce sync.Once
	cachedChain *chain.Chain
}

// SetShutdown wires the callback Once mode invokes after the first
// intercepted entry's response has flushed.
func (s *Server) SetShutdown(fn func()) { s.shutdown = fn }

// Router builds the mux.Router serving this proxy.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware)
	r.HandleFunc("/", s.handleRPC).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/", s.handleLiveness).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if s.Streamer != nil {
		r.HandleFunc("/ws", s.Streamer.HandleWebSocket).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) publish(event DecisionEvent) {
	if s.Streamer != nil {
		s.Streamer.Publish(event)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"upstream": s.Upstream,
		"once":     s.Once,
		"offline":  s.Offline,
	})
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// handleRPC implements the §4.8 top-level request/response cycle: decode
// single-or-batch, process every entry (with bounded concurrency across
// independent entries disallowed — §4.8 step 7 requires entries to
// observe a strict per-instance queue against the single forked node),
// and reply 204 for an all-notification batch.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeBatch(w, []response{errorResponse(nil, codeInvalidRequest, "could not read request body", nil)})
		return
	}

	entries, batch, err := parseEntries(body)
	if err != nil {
		writeBatch(w, []response{errorResponse(nil, codeInvalidRequest, "invalid JSON-RPC request", nil)})
		return
	}

	var out []response
	for _, entry := range entries {
		resp, hasResp := s.processEntry(r.Context(), entry)
		if hasResp {
			out = append(out, resp)
		}
	}

	if len(out) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !batch && len(out) == 1 {
		writeSingle(w, out[0])
		return
	}
	writeBatch(w, out)
}

// processEntry runs §4.8 steps 1-10 for one JSON-RPC entry. The second
// return value is false for notifications that resolve to a no-op
// (§4.8 step 10's prompt=deny-on-notification case).
func (s *Server) processEntry(ctx context.Context, req request) (response, bool) {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "malformed JSON-RPC request", nil), !req.isNotification()
	}

	if !interceptable[req.Method] {
		return s.forwardPassthrough(ctx, req)
	}

	total := time.Now()
	s.mu.Lock()
	queueWait := time.Since(total)
	defer s.mu.Unlock()
	if s.Metrics != nil {
		s.Metrics.ScanDuration.WithLabelValues("proxy.queueWait").Observe(queueWait.Seconds())
	}

	resp, ok := s.interceptEntry(ctx, req)

	if s.Metrics != nil {
		s.Metrics.RecordScanPhase("proxy.total", time.Since(total).Seconds())
	}

	if s.Once {
		s.maybeScheduleShutdown()
	}
	return resp, ok
}

func (s *Server) maybeScheduleShutdown() {
	if s.onceFired || s.shutdown == nil {
		return
	}
	s.onceFired = true
	go s.shutdown()
}
