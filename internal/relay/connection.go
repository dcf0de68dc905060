package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
	"github.com/gorilla/websocket"
)

const sendBuffer = 256

type frame struct {
	kind int
	data []byte
}

// Connection is one websocket peer attached to the hub.
type Connection struct {
	Role         string
	Conn         *websocket.Conn
	RemoteAddr   string
	LastSeen     time.Time
	DisconnectCh chan struct{}
	SendCh       chan frame

	session   *Session
	closeOnce sync.Once
}

func NewConnection(role string, conn *websocket.Conn, remoteAddr string) *Connection {
	return &Connection{
		Role:         role,
		Conn:         conn,
		RemoteAddr:   remoteAddr,
		LastSeen:     time.Now(),
		DisconnectCh: make(chan struct{}),
		SendCh:       make(chan frame, sendBuffer),
	}
}

// enqueue hands a frame to the write pump without blocking the caller.
func (c *Connection) enqueue(f frame) bool {
	select {
	case <-c.DisconnectCh:
		return false
	default:
	}
	select {
	case c.SendCh <- f:
		return true
	default:
		logger.Log.Warn("Send channel full, dropping frame", "role", c.Role)
		return false
	}
}

func (c *Connection) sendControl(msgType string, payload any) bool {
	data, err := controlFrame(msgType, payload)
	if err != nil {
		logger.Log.Error("Failed to marshal control frame", "type", msgType, "err", err)
		return false
	}
	return c.enqueue(frame{kind: websocket.TextMessage, data: data})
}

func (c *Connection) disconnect() {
	c.closeOnce.Do(func() {
		close(c.DisconnectCh)
		c.Conn.Close()
	})
}

func controlFrame(msgType string, payload any) ([]byte, error) {
	body, err := json.Marshal(models.Envelope{Type: msgType, Payload: payload})
	if err != nil {
		return nil, err
	}
	return append([]byte(models.RelayControlPrefix), body...), nil
}
