package www

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"boxworks/engine"
)

// SSEEvent is one frame on the stream. ID carries the engine event
// sequence; keepalives have none.
type SSEEvent struct {
	ID    uint64
	Event string
	Data  string
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- evt:
				default:
					// drop if full
				}
			}
			h.mu.RUnlock()
		case <-keepalive.C:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- SSEEvent{Event: "keepalive", Data: "ping"}:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *EventHub) Broadcast(id uint64, event, data string) {
	select {
	case h.broadcast <- SSEEvent{ID: id, Event: event, Data: data}:
	default:
	}
}

func (h *EventHub) AddClient() chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SetupEngineListeners forwards every engine event to SSE clients. Board
// views refresh on order and task events; connection changes go out as
// system-status.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.Subscribe(func(evt engine.Event) {
		name, data := sseMessage(evt)
		if name == "" {
			return
		}
		b, err := json.Marshal(data)
		if err != nil {
			eng.Logger().WithError(err).Warnf("sse: encode %s", evt.Type)
			return
		}
		h.Broadcast(evt.Seq, name, string(b))
	})
}

func sseMessage(evt engine.Event) (string, any) {
	switch ev := evt.Payload.(type) {
	case engine.OrderEvent:
		return evt.Type.String(), map[string]any{
			"order_id":     ev.Order.ID,
			"order_number": ev.Order.OrderNumber,
			"old_status":   ev.OldStatus,
			"new_status":   ev.NewStatus,
			"version":      ev.Order.Version,
		}
	case engine.OrderDeletedEvent:
		return evt.Type.String(), map[string]any{"order_id": ev.OrderID, "order_number": ev.OrderNumber}
	case engine.TaskEvent:
		return evt.Type.String(), map[string]any{
			"task_id":    ev.Task.ID,
			"order_id":   ev.Task.OrderID,
			"old_status": ev.OldStatus,
			"new_status": ev.NewStatus,
		}
	case engine.MaterialEvent:
		return evt.Type.String(), map[string]any{
			"material_id":   ev.Material.ID,
			"name":          ev.Material.Name,
			"current_stock": ev.Material.CurrentStock,
		}
	case engine.MovementEvent:
		return evt.Type.String(), map[string]any{
			"movement_id": ev.Movement.ID,
			"material_id": ev.Movement.MaterialID,
			"type":        ev.Movement.Type,
			"stock_after": ev.Movement.StockAfter,
		}
	case engine.AlertEvent:
		return evt.Type.String(), map[string]any{
			"alert_id":    ev.Alert.ID,
			"material_id": ev.Alert.MaterialID,
			"status":      ev.NewStatus,
		}
	case engine.QualityCheckEvent:
		return evt.Type.String(), map[string]any{
			"check_id":       ev.Check.ID,
			"order_id":       ev.Check.OrderID,
			"overall_status": ev.Check.OverallStatus,
		}
	case engine.ConnectionEvent:
		state := "connected"
		if evt.Type == engine.EventMessagingDisconnected {
			state = "disconnected"
		}
		return "system-status", map[string]string{"messaging": state}
	}
	return "", nil
}

// SSEHandler serves the SSE endpoint.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.AddClient()
	defer h.RemoveClient(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if evt.ID > 0 {
				fmt.Fprintf(w, "id: %d\n", evt.ID)
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				logrus.WithError(err).Debug("sse: write")
				return
			}
			flusher.Flush()
		}
	}
}
