package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/maumercado/queuectl/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The admin surface binds to loopback by default and is not meant to
	// be exposed cross-origin; accept any origin rather than maintain an
	// allow-list no deployment will configure.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request to a WebSocket connection and registers a
// new Client with hub, then blocks servicing reads until the client
// disconnects.
func ServeWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := NewClient(hub, conn)
		hub.Register(client)

		go client.WritePump()
		client.ReadPump()
	}
}
