package relay

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

func (h *Hub) sendPing(c *Connection) error {
	if c.Conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (h *Hub) handlePong(c *Connection) {
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		h.mutex.Lock()
		c.LastSeen = time.Now()
		h.mutex.Unlock()
		return nil
	})
}
