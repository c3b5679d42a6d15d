package websocket

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2/log"

	"github.com/orbitlabs/orbit-api/internal/model"
)

// Hub fans workflow progress out to websocket subscribers keyed by order id.
// Slow or dead connections are dropped on write failure; clients reconnect
// and re-subscribe.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]bool)}
}

// Register subscribes a connection to one order's events.
func (h *Hub) Register(orderID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[orderID] == nil {
		h.conns[orderID] = make(map[*websocket.Conn]bool)
	}
	h.conns[orderID][conn] = true
}

// Unregister removes a connection.
func (h *Hub) Unregister(orderID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.conns[orderID]; set != nil {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, orderID)
		}
	}
}

// SubscriberCount reports how many connections watch an order.
func (h *Hub) SubscriberCount(orderID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[orderID])
}

func (h *Hub) broadcast(orderID string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[orderID] {
		if err := conn.WriteJSON(payload); err != nil {
			log.Debugf("drop websocket subscriber for order %s: %v", orderID, err)
			conn.Close()
			delete(h.conns[orderID], conn)
		}
	}
	if len(h.conns[orderID]) == 0 {
		delete(h.conns, orderID)
	}
}

// Progress implements the workflow progress sink.
func (h *Hub) Progress(orderID string, percentage int, message string) {
	h.broadcast(orderID, model.WSProgressMessage{
		Type:        model.WSMessageTypeProgress,
		OrderID:     orderID,
		Stage:       model.StageProcessing,
		Progress:    percentage,
		CurrentStep: message,
	})
}

// Completed implements the workflow progress sink.
func (h *Hub) Completed(orderID string, results *model.WorkflowResults) {
	h.broadcast(orderID, model.WSCompleteMessage{
		Type:    model.WSMessageTypeComplete,
		OrderID: orderID,
		Result:  results,
	})
}

// Failed implements the workflow progress sink.
func (h *Hub) Failed(orderID string, message string) {
	h.broadcast(orderID, model.WSErrorMessage{
		Type:    model.WSMessageTypeError,
		OrderID: orderID,
		Error: model.WSError{
			Code:    "WORKFLOW_FAILED",
			Message: message,
		},
	})
}
