package fanout

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parthchandak02/ibkr-cloud-run/internal/events"
	"github.com/parthchandak02/ibkr-cloud-run/internal/telemetry"
)

const (
	clientSendBuf = 256
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type watchClient struct {
	symbol string // empty = all symbols
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
}

// Server fans out bus events to connected watch WebSocket clients.
type Server struct {
	mu      sync.Mutex
	clients map[*watchClient]struct{}
}

func NewServer(bus *events.Bus) *Server {
	s := &Server{
		clients: make(map[*watchClient]struct{}),
	}
	bus.Subscribe(events.EventTradeOutcome, s.forward)
	bus.Subscribe(events.EventBatchComplete, s.forward)
	return s
}

// forward is called on the publisher's goroutine. It serializes the event
// and enqueues it to matching clients' send channels (non-blocking).
// Batch completions go to every client; trade outcomes honor the
// client's symbol filter.
func (s *Server) forward(evt events.Event) error {
	data, err := MarshalEvent(evt)
	if err != nil {
		telemetry.Warnf("fanout: marshal error: %v", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.clients {
		if evt.Type == events.EventTradeOutcome && c.symbol != "" && c.symbol != evt.Symbol {
			continue
		}
		select {
		case c.send <- data:
		default:
			telemetry.Warnf("fanout: dropping message for slow client %s", clientLabel(c))
		}
	}
	return nil
}

// HandleWS is the HTTP handler for WebSocket upgrade requests.
// Watchers connect with an optional ?symbol=TSLA filter.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("fanout: upgrade failed: %v", err)
		return
	}

	c := &watchClient{
		symbol: symbol,
		conn:   conn,
		send:   make(chan []byte, clientSendBuf),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	telemetry.Metrics.WatchClients.Inc()

	telemetry.Plainf("Fanout: Client Connected [%s]", clientLabel(c))

	go s.writePump(c)
	go s.readPump(c)
}

// writePump drains the client's send channel and writes to the WS connection.
// It owns the client lifecycle: on exit it removes the client from the map
// (so forward never sends to a stale channel) and closes the connection.
func (s *Server) writePump(c *watchClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				telemetry.Warnf("fanout: write error %s: %v", clientLabel(c), err)
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the connection alive by reading pongs / close frames.
// No upstream messages are expected from watchers.
// On exit it signals writePump via c.done (never closes c.send).
func (s *Server) readPump(c *watchClient) {
	defer close(c.done)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *watchClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	telemetry.Metrics.WatchClients.Dec()
	telemetry.Plainf("Fanout: Client Disconnected [%s]", clientLabel(c))
}

func clientLabel(c *watchClient) string {
	if c.symbol == "" {
		return "all"
	}
	return c.symbol
}
