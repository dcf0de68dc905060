package routers

import (
	"github.com/IamAkshayKaushik/DirectDrop/internal/api/handlers"
	"github.com/IamAkshayKaushik/DirectDrop/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

type Router struct {
	Handler   *handlers.Handler
	WSHandler *handlers.WebSocketHandler
}

func NewRouter(handler *handlers.Handler, wsh *handlers.WebSocketHandler) *Router {
	return &Router{
		Handler:   handler,
		WSHandler: wsh,
	}
}

func (rtr *Router) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CorsMiddleware())

	router.GET("/health", rtr.Handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/sessions", rtr.Handler.ListSessions)
	}
	router.GET("/ws", rtr.WSHandler.UpgradeHandler)

	return router
}
