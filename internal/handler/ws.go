package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/orbitlabs/orbit-api/internal/model"
	ws "github.com/orbitlabs/orbit-api/internal/websocket"
)

// WSHandler streams live workflow progress per order.
type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Upgrade gates the HTTP-to-websocket upgrade.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleOrderSocket subscribes one connection to an order's events and
// keeps it alive until the client disconnects.
// GET /ws/orders/:orderId
func (h *WSHandler) HandleOrderSocket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		orderID := conn.Params("orderId")
		if orderID == "" {
			conn.Close()
			return
		}

		h.hub.Register(orderID, conn)
		defer h.hub.Unregister(orderID, conn)

		for {
			var msg model.WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == model.WSMessageTypePing {
				if err := conn.WriteJSON(model.WSMessage{Type: model.WSMessageTypePong}); err != nil {
					return
				}
			}
		}
	})
}
