package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dnldd/orb/shared"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = time.Second * 10
	// pingPeriod is the interval between keepalive pings.
	pingPeriod = time.Second * 30
	// clientBufferSize is the per client outbound buffer.
	clientBufferSize = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient is a connected event subscriber.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub streams events to connected websocket clients.
type Hub struct {
	clients    map[*wsClient]struct{}
	clientsMtx sync.RWMutex
	logger     *zerolog.Logger
}

// NewHub initializes a new websocket hub.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger,
	}
}

// Name identifies the sink.
func (h *Hub) Name() string {
	return "websocket"
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMtx.RLock()
	defer h.clientsMtx.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket event stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Msgf("upgrading event stream: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, clientBufferSize)}

	h.clientsMtx.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.clientsMtx.Unlock()

	h.logger.Info().Msgf("event stream client connected (%d total)", count)

	go h.writePump(client)
	go h.readPump(client)
}

// remove disconnects the provided client.
func (h *Hub) remove(client *wsClient) {
	h.clientsMtx.Lock()
	defer h.clientsMtx.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
}

// writePump writes queued events and keepalive pings to the client.
func (h *Hub) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(client)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(client)
				return
			}
		}
	}
}

// readPump discards client messages until the connection closes.
func (h *Hub) readPump(client *wsClient) {
	defer h.remove(client)

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Deliver broadcasts the provided event to every connected client. Clients that cannot keep
// up are disconnected.
func (h *Hub) Deliver(ctx context.Context, event shared.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", event.Name, err)
	}

	var slow []*wsClient
	h.clientsMtx.RLock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.clientsMtx.RUnlock()

	for _, client := range slow {
		h.logger.Warn().Msg("disconnecting slow event stream client")
		h.remove(client)
	}

	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.clientsMtx.Lock()
	defer h.clientsMtx.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}
