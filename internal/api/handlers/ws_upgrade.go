package handlers

import (
	"net/http"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/internal/relay"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/links"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	Hub *relay.Hub
}

func NewWebSocketHandler(hub *relay.Hub) *WebSocketHandler {
	return &WebSocketHandler{Hub: hub}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// UpgradeHandler attaches a sharer (role=share) or a joiner (role=join&peer=<id>).
func (wsh *WebSocketHandler) UpgradeHandler(c *gin.Context) {
	role := c.Query("role")
	peerID := c.Query(links.PeerParam)
	switch role {
	case models.RoleShare:
	case models.RoleJoin:
		if peerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing peer id"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": relay.ErrUnknownRole.Error()})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade WebSocket", "role", role, "err", err)
		return
	}
	remote := c.ClientIP()
	logger.Log.Info("New connection", "role", role, "peer", peerID, "remote", remote)
	if role == models.RoleShare {
		wsh.Hub.Share(conn, remote)
		return
	}
	_ = wsh.Hub.Join(peerID, conn, remote)
}
