package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/autodock-deploy/progress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler streams live deployment progress events over websockets
type WSHandler struct {
	hub *progress.Hub
}

func NewWSHandler(hub *progress.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Stream subscribes the connection to one deployment's events. The
// special id "all" subscribes to every deployment.
func (h *WSHandler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("Websocket upgrade failed:", err)
		return
	}

	deploymentID := c.Param("id")
	if deploymentID == "all" {
		deploymentID = ""
	}

	client := progress.NewWSClient(conn)
	h.hub.Register(deploymentID, client)

	// Block reading until the peer goes away, then unsubscribe
	go func() {
		defer func() {
			h.hub.Unregister(deploymentID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
