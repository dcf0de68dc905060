package relay

import (
	"time"

	"github.com/IamAkshayKaushik/DirectDrop/internal/codec"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
	"github.com/gorilla/websocket"
)

// maxMessageSize leaves room for the chunk record header on top of the largest frame body.
const maxMessageSize = codec.MaxFrameSize + 64

func (h *Hub) ReadPump(c *Connection) {
	defer func() {
		h.leave(c)
		c.disconnect()
		logger.Log.Debug("Read pump stopped", "role", c.Role, "remote", c.RemoteAddr)
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	h.handlePong(c)
	for {
		kind, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket error", "role", c.Role, "remote", c.RemoteAddr, "err", err)
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		h.mutex.Lock()
		c.LastSeen = time.Now()
		h.mutex.Unlock()
		h.forward(c, kind, data)
	}
}

func (h *Hub) WritePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.disconnect()
		logger.Log.Debug("Write pump stopped", "role", c.Role, "remote", c.RemoteAddr)
	}()
	for {
		select {
		case f := <-c.SendCh:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(f.kind, f.data); err != nil {
				logger.Log.Error("Failed to write frame", "role", c.Role, "remote", c.RemoteAddr, "err", err)
				return
			}
		case <-ticker.C:
			if err := h.sendPing(c); err != nil {
				logger.Log.Warn("Ping failed", "role", c.Role, "remote", c.RemoteAddr, "err", err)
				return
			}
		case <-c.DisconnectCh:
			return
		}
	}
}
