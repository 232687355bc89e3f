package progress

import (
	"log"

	"github.com/gorilla/websocket"
)

// WSClient adapts a websocket connection to the Subscriber interface
type WSClient struct {
	conn *websocket.Conn
}

func NewWSClient(conn *websocket.Conn) *WSClient {
	return &WSClient{conn: conn}
}

// Send writes one event frame to the connection
func (c *WSClient) Send(payload []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Println("Websocket send failed:", err)
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the connection
func (c *WSClient) Close() {
	_ = c.conn.Close()
}
