// Package wsbus is the dashboard's real-time push layer: a websocket
// Hub that fans out typed event messages (new signal, trade opened/
// closed, stop adjusted, take profit executed, scanner status,
// emergency stop) to every connected browser client.
//
// Generalized from a websocket Hub's register/unregister/broadcast
// channel trio and its sync.Pool-backed JSON buffer reuse, retargeted
// from pair/balance/stats update messages to this package's event set.
package wsbus

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"spotscan/internal/models"
	"spotscan/internal/risk"
	"spotscan/internal/scanner"
	"spotscan/internal/trading"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub manages every connected dashboard websocket client and fans out
// broadcast messages to all of them. It also implements
// trading.Broadcaster, risk.Broadcaster, and scanner.StatusBroadcaster,
// so it can be wired directly into those packages' SetBroadcaster calls.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	log *zap.SugaredLogger
}

var (
	_ trading.Broadcaster       = (*Hub)(nil)
	_ risk.Broadcaster          = (*Hub)(nil)
	_ scanner.StatusBroadcaster = (*Hub)(nil)
)

// NewHub builds a Hub. Call Run in its own goroutine before connecting
// clients.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run drives the hub's register/unregister/broadcast loop until ctx is
// cancelled via a plain select on a done channel supplied by the
// caller — in practice callers just `go hub.Run(ctx.Done())`.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debugw("dashboard client connected", "total", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debugw("dashboard client disconnected", "total", h.ClientCount())

		case message := <-h.broadcast:
			// Copy the client list under a short RLock, then send
			// without holding it, so register/unregister never block
			// on a slow broadcast fanout.
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			var slow []*Client
			for _, c := range clients {
				select {
				case c.send <- message:
				default:
					slow = append(slow, c)
				}
			}

			if len(slow) > 0 {
				h.mu.Lock()
				for _, c := range slow {
					if _, ok := h.clients[c]; ok {
						delete(h.clients, c)
						close(c.send)
					}
				}
				h.mu.Unlock()
				h.log.Warnw("dropped slow dashboard clients", "count", len(slow))
			}
		}
	}
}

// Broadcast JSON-encodes message through a pooled buffer and enqueues
// it for every connected client.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	enc := jsonAPI.NewEncoder(buf)
	if err := enc.Encode(message); err != nil {
		h.log.Errorw("failed to marshal broadcast message", "error", err)
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// ClientCount reports the number of currently connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscribeSignals drains sigCh (typically a signalbus.Bus subscriber
// channel) and broadcasts each signal as a NewSignalMessage until the
// channel closes or ctx is cancelled.
func (h *Hub) SubscribeSignals(done <-chan struct{}, sigCh <-chan models.Signal) {
	for {
		select {
		case <-done:
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			h.Broadcast(&NewSignalMessage{Type: "new_signal", Signal: sig})
		}
	}
}

// TradeOpened implements trading.Broadcaster.
func (h *Hub) TradeOpened(trade models.Trade) {
	h.Broadcast(&TradeOpenedMessage{Type: "trade_opened", Trade: trade})
}

// TradeCancelled implements trading.Broadcaster. Cancelled trades never
// reached OPEN, so the dashboard treats them as a closed-with-no-fill
// notice rather than a distinct event type.
func (h *Hub) TradeCancelled(trade models.Trade) {
	h.Broadcast(&TradeClosedMessage{Type: "trade_closed", Trade: trade})
}

// TradeClosed implements risk.Broadcaster.
func (h *Hub) TradeClosed(trade models.Trade) {
	h.Broadcast(&TradeClosedMessage{Type: "trade_closed", Trade: trade})
}

// StopAdjusted implements risk.Broadcaster.
func (h *Hub) StopAdjusted(trade models.Trade) {
	h.Broadcast(&StopAdjustedMessage{Type: "stop_adjusted", Trade: trade})
}

// TakeProfitExecuted implements risk.Broadcaster.
func (h *Hub) TakeProfitExecuted(trade models.Trade, level int) {
	h.Broadcast(&TakeProfitExecutedMessage{Type: "take_profit_executed", Trade: trade, Level: level})
}

// Emergency implements risk.Broadcaster.
func (h *Hub) Emergency(reason string) {
	h.Broadcast(&EmergencyMessage{Type: "emergency", Reason: reason})
}

// ScannerStatus implements scanner.StatusBroadcaster.
func (h *Hub) ScannerStatus(mode string, symbolsScanned int) {
	h.Broadcast(&ScannerStatusMessage{Type: "scanner_status", Mode: mode, SymbolsScanned: symbolsScanned})
}
