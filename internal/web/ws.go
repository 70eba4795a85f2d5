package web

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vikar/fx_cascade_trader/internal/domain"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TradeHub broadcasts trade records to connected websocket clients. A
// client that cannot keep up is dropped rather than blocking the rest.
type TradeHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan *domain.TradeRecord
	closed  bool
	logger  *zap.Logger
}

func NewTradeHub(logger *zap.Logger) *TradeHub {
	return &TradeHub{
		clients: make(map[*websocket.Conn]chan *domain.TradeRecord),
		logger:  logger,
	}
}

func (h *TradeHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", zap.Error(err))
		return
	}

	ch := make(chan *domain.TradeRecord, 32)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = ch
	h.mu.Unlock()

	go h.writeLoop(conn, ch)

	// Drain reads so close frames and pings are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
}

func (h *TradeHub) writeLoop(conn *websocket.Conn, ch chan *domain.TradeRecord) {
	for rec := range ch {
		if err := conn.WriteJSON(rec); err != nil {
			h.remove(conn)
			return
		}
	}
	conn.Close()
}

func (h *TradeHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
	conn.Close()
}

// Broadcast fans a record out to every client without blocking.
func (h *TradeHub) Broadcast(rec *domain.TradeRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- rec:
		default:
			delete(h.clients, conn)
			close(ch)
			conn.Close()
		}
	}
}

func (h *TradeHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for conn, ch := range h.clients {
		delete(h.clients, conn)
		close(ch)
		conn.Close()
	}
}
