// Package relay pairs a sharing peer with a joining peer by connection id and
// forwards their transfer frames unchanged. It never stores file data.
package relay

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrUnknownPeer = errors.New("no sharer with that connection id")
	ErrPeerBusy    = errors.New("sharer is already paired")
	ErrUnknownRole = errors.New("unknown role")
)

// Session is one sharer and, while a transfer runs, its joiner.
type Session struct {
	ID        string
	Sharer    *Connection
	Joiner    *Connection
	CreatedAt time.Time
}

type Hub struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Share registers a sharer and tells it its connection id.
func (h *Hub) Share(conn *websocket.Conn, remoteAddr string) *Session {
	c := NewConnection(models.RoleShare, conn, remoteAddr)
	s := &Session{ID: uuid.New().String(), Sharer: c, CreatedAt: time.Now()}
	c.session = s

	h.mutex.Lock()
	h.sessions[s.ID] = s
	h.mutex.Unlock()

	logger.Log.Info("Sharer registered", "connection_id", s.ID, "remote", remoteAddr)
	c.sendControl(models.RelayMsgRegistered, models.RegisteredPayload{ConnectionID: s.ID})
	h.runPumps(c)
	return s
}

// Join pairs a joiner with the sharer registered under id. On failure the
// joiner is told why and disconnected.
func (h *Hub) Join(id string, conn *websocket.Conn, remoteAddr string) error {
	h.mutex.Lock()
	s, ok := h.sessions[id]
	var err error
	switch {
	case !ok:
		err = ErrUnknownPeer
	case s.Joiner != nil:
		err = ErrPeerBusy
	}
	if err != nil {
		h.mutex.Unlock()
		logger.Log.Warn("Rejecting joiner", "connection_id", id, "remote", remoteAddr, "err", err)
		reject(conn, err)
		return err
	}
	c := NewConnection(models.RoleJoin, conn, remoteAddr)
	c.session = s
	s.Joiner = c
	sharer := s.Sharer
	h.mutex.Unlock()

	logger.Log.Info("Peers paired", "connection_id", id, "joiner", remoteAddr)
	// The joiner must see its open before anything the sharer sends in reply.
	c.sendControl(models.RelayMsgPaired, nil)
	h.runPumps(c)
	sharer.sendControl(models.RelayMsgPaired, nil)
	return nil
}

// Sessions lists registered sharers, oldest first.
func (h *Hub) Sessions() []models.SessionInfo {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	out := make([]models.SessionInfo, 0, len(h.sessions))
	for id, s := range h.sessions {
		out = append(out, models.SessionInfo{
			ConnectionID: id,
			Paired:       s.Joiner != nil,
			CreatedAt:    s.CreatedAt,
			PublicAddr:   s.Sharer.RemoteAddr,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.sessions)
}

// Close disconnects every peer.
func (h *Hub) Close() {
	h.mutex.Lock()
	var conns []*Connection
	for id, s := range h.sessions {
		conns = append(conns, s.Sharer)
		if s.Joiner != nil {
			conns = append(conns, s.Joiner)
		}
		delete(h.sessions, id)
	}
	h.mutex.Unlock()
	for _, c := range conns {
		c.disconnect()
	}
}

// forward relays a data frame to the other side of the session.
func (h *Hub) forward(from *Connection, kind int, data []byte) {
	h.mutex.RLock()
	var to *Connection
	if s := from.session; s != nil {
		if from == s.Sharer {
			to = s.Joiner
		} else if from == s.Joiner {
			to = s.Sharer
		}
	}
	h.mutex.RUnlock()
	if to == nil {
		logger.Log.Debug("Dropping frame with no peer attached", "role", from.Role)
		return
	}
	to.enqueue(frame{kind: kind, data: data})
}

// leave detaches c from its session and tells the other side.
func (h *Hub) leave(c *Connection) {
	h.mutex.Lock()
	s := c.session
	c.session = nil
	var other *Connection
	if s != nil {
		switch c {
		case s.Sharer:
			delete(h.sessions, s.ID)
			if s.Joiner != nil {
				other = s.Joiner
				other.session = nil
			}
		case s.Joiner:
			s.Joiner = nil
			other = s.Sharer
		}
	}
	h.mutex.Unlock()

	if s == nil {
		return
	}
	logger.Log.Info("Peer left", "connection_id", s.ID, "role", c.Role)
	if other != nil {
		other.sendControl(models.RelayMsgPeerLeft, nil)
	}
}

func (h *Hub) runPumps(c *Connection) {
	go h.ReadPump(c)
	go h.WritePump(c)
}

func reject(conn *websocket.Conn, reason error) {
	if data, err := controlFrame(models.RelayMsgError, reason.Error()); err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.TextMessage, data)
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason.Error()),
		time.Now().Add(writeWait))
	conn.Close()
}
