// Package presentation consumes batched indicator results and renders them
// to connected dashboards over websocket: a client registry guarded by a
// mutex, a per-client buffered send channel, and a write pump that
// coalesces queued frames into one websocket write.
package presentation

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"candledash/internal/metrics"
	"candledash/internal/model"
)

// Sink is the contract the Engine's flush targets: a vector of
// (slot-index, tagged value). Any renderer — websocket, log line, in-memory
// test double — can satisfy it.
type Sink interface {
	Publish(batch []model.Slot)
}

// Hub is a websocket broadcast Sink. It keeps the latest value per slot so
// a newly connected client can be caught up immediately.
type Hub struct {
	m   *metrics.Metrics
	log *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool
	latest  map[int]model.IndicatorValue
}

// NewHub constructs an empty Hub.
func NewHub(m *metrics.Metrics, log *slog.Logger) *Hub {
	return &Hub{
		m:   m,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
		latest:  make(map[int]model.IndicatorValue),
	}
}

// Publish implements Sink: it records the new per-slot values and fans the
// batch out to every connected client, dropping rather than blocking a
// client whose send buffer is full — a lagging dashboard must never stall
// indicator emission upstream of it.
func (h *Hub) Publish(batch []model.Slot) {
	if len(batch) == 0 {
		return
	}

	h.mu.Lock()
	for _, slot := range batch {
		h.latest[slot.Index] = slot.Value
	}
	h.mu.Unlock()

	frame := encodeBatch(batch)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.log.Warn("presentation: client send buffer full, dropping batch")
		}
	}
}

// ServeHTTP upgrades the connection and registers a client. Mount at the
// websocket endpoint the dashboard frontend dials.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("presentation: upgrade failed", "error", err)
		return
	}
	h.register(conn)
}

func (h *Hub) register(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 256), hub: h}

	h.mu.Lock()
	h.clients[c] = true
	snapshot := make([]model.Slot, 0, len(h.latest))
	for idx, v := range h.latest {
		snapshot = append(snapshot, model.Slot{Index: idx, Value: v})
	}
	h.mu.Unlock()

	h.log.Info("presentation: client connected", "total", h.ClientCount())

	if len(snapshot) > 0 {
		select {
		case c.send <- encodeBatch(snapshot):
		default:
		}
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
}

// ClientCount reports the number of connected presentation clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// batchFrame is the wire shape of one published batch.
type batchFrame struct {
	Type  string     `json:"type"`
	TS    int64      `json:"ts"`
	Slots []slotJSON `json:"slots"`
}

type slotJSON struct {
	Index int     `json:"index"`
	Kind  string  `json:"kind"`
	Value float32 `json:"value"`
}

func encodeBatch(batch []model.Slot) []byte {
	frame := batchFrame{Type: "indicators", TS: time.Now().UnixMilli(), Slots: make([]slotJSON, len(batch))}
	for i, slot := range batch {
		sj := slotJSON{Index: slot.Index, Kind: slot.Value.Kind.String()}
		if slot.Value.Kind == model.RSI {
			sj.Value = slot.Value.RSI
		} else {
			sj.Value = slot.Value.Volatility
		}
		frame.Slots[i] = sj
	}
	raw, _ := json.Marshal(frame)
	return raw
}
