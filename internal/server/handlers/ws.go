package handlers

import (
	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"manifesthub/internal/services"
)

// WebSocketUpgrade rejects plain HTTP requests to the push channel.
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebSocket streams hub events to one client until either side closes.
// Clients only listen; anything they send is discarded. The reader goroutine
// is joined before returning since the connection goes back to a pool.
func WebSocket(hub *services.Hub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		id, events := hub.Subscribe()
		log.Debug("listener connected", "listener", id, "remote", conn.RemoteAddr())

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					hub.Unsubscribe(id)
					return
				}
			}
		}()

		for ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				break
			}
		}
		hub.Unsubscribe(id)
		// unblocks ReadMessage
		_ = conn.Close()
		<-done
		log.Debug("listener disconnected", "listener", id)
	})
}
