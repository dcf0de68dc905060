package handlers

import (
	"net/http"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/internal/service"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(s *service.Service) *Handler {
	return &Handler{
		Service: s,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	resp := models.Envelope{
		Type:    "health_check",
		Payload: h.Service.Health(),
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListSessions(c *gin.Context) {
	resp := models.Envelope{
		Type:    "session_list",
		Payload: h.Service.Sessions(),
	}
	c.JSON(http.StatusOK, resp)
}
