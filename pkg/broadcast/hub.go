package broadcast

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pradapjackie/super-pancake-orchestrator/pkg/logger"
)

// CompletionMarker is the literal progress line that tells viewers to
// stop expecting further output for the run.
const CompletionMarker = "=== ALL TESTS COMPLETED ==="

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Hub fans orchestrator progress lines out to every connected viewer.
// Viewers are read-only: anything a client sends is discarded. A
// client that cannot keep up is disconnected rather than ever blocking
// the orchestrator.
type Hub struct {
	mu       sync.RWMutex
	viewers  map[*viewer]bool
	upgrader websocket.Upgrader
}

type viewer struct {
	conn *websocket.Conn
	send chan string
	once sync.Once
}

// NewHub creates an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{
		viewers: make(map[*viewer]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Reports are viewed from file:// and localhost alike
				return true
			},
		},
	}
}

// HandleWebSocket upgrades an HTTP request into a viewer connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("Failed to upgrade websocket connection: %v", err)
		return
	}

	v := &viewer{
		conn: conn,
		send: make(chan string, 256),
	}

	h.mu.Lock()
	h.viewers[v] = true
	h.mu.Unlock()

	logger.Debugf("Viewer connected from %s", r.RemoteAddr)

	go h.writePump(v)
	go h.readPump(v)
}

// Publish sends one progress line to every connected viewer. Full
// client buffers cause that client to be dropped, never the line.
func (h *Hub) Publish(line string) {
	h.mu.RLock()
	var stale []*viewer
	for v := range h.viewers {
		select {
		case v.send <- line:
		default:
			stale = append(stale, v)
		}
	}
	h.mu.RUnlock()

	for _, v := range stale {
		logger.Warnf("Dropping slow viewer")
		h.remove(v)
	}
}

// ViewerCount returns the number of attached viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	delete(h.viewers, v)
	h.mu.Unlock()

	v.once.Do(func() {
		close(v.send)
		v.conn.Close()
	})
}

// writePump drains the viewer's send channel onto the connection and
// keeps it alive with pings.
func (h *Hub) writePump(v *viewer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(v)
	}()

	for {
		select {
		case line, ok := <-v.send:
			if !ok {
				v.conn.SetWriteDeadline(time.Now().Add(writeWait))
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards anything the client sends and notices closed
// connections.
func (h *Hub) readPump(v *viewer) {
	defer h.remove(v)

	v.conn.SetReadLimit(512)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("Viewer read error: %v", err)
			}
			return
		}
	}
}
