package proxy

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DecisionEvent is one entry in the optional live feed a connected UI can
// subscribe to over /ws: the outcome of one intercepted JSON-RPC entry,
// emitted by finalizeDecision before it finalizes the recording bundle.
type DecisionEvent struct {
	Type           string    `json:"type"` // "forward", "prompt", "block"
	RequestID      string    `json:"requestId"`
	Method         string    `json:"method"`
	To             string    `json:"to,omitempty"`
	Recommendation string    `json:"recommendation"`
	Timestamp      time.Time `json:"timestamp"`
}

// DecisionStreamer fans one DecisionEvent out to every connected /ws
// client. Entirely optional: a Server with a nil Streamer just skips
// broadcasting, the same way Orchestrator.Simulate being nil skips
// simulation.
type DecisionStreamer struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan DecisionEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewDecisionStreamer builds a streamer and starts its broadcast loop.
func NewDecisionStreamer(logger *slog.Logger) *DecisionStreamer {
	if logger == nil {
		logger = slog.Default()
	}
	ds := &DecisionStreamer{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan DecisionEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
	go ds.run()
	return ds
}

func (ds *DecisionStreamer) run() {
	for {
		select {
		case client := <-ds.register:
			ds.mu.Lock()
			ds.clients[client] = true
			ds.mu.Unlock()
			ds.logger.Debug("proxy: /ws client connected", "total", len(ds.clients))

		case client := <-ds.unregister:
			ds.mu.Lock()
			if _, ok := ds.clients[client]; ok {
				delete(ds.clients, client)
				client.Close()
			}
			ds.mu.Unlock()

		case event := <-ds.broadcast:
			ds.mu.RLock()
			for client := range ds.clients {
				if err := client.WriteJSON(event); err != nil {
					client.Close()
					delete(ds.clients, client)
				}
			}
			ds.mu.RUnlock()
		}
	}
}

// HandleWebSocket upgrades one incoming request and holds the connection
// open until the client disconnects (we never expect inbound messages,
// only the upgrade handshake and its close frame).
func (ds *DecisionStreamer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ds.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ds.logger.Warn("proxy: /ws upgrade failed", "error", err)
		return
	}
	ds.register <- conn
	go func() {
		defer func() { ds.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish broadcasts one decision to every connected client. Never blocks
// the caller beyond the channel send; a full buffer drops the event
// rather than stalling the JSON-RPC response path.
func (ds *DecisionStreamer) Publish(event DecisionEvent) {
	event.Timestamp = time.Now()
	select {
	case ds.broadcast <- event:
	default:
		ds.logger.Warn("proxy: /ws broadcast buffer full, dropping event", "requestId", event.RequestID)
	}
}
