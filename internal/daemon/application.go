package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/IamAkshayKaushik/DirectDrop/internal/api/handlers"
	"github.com/IamAkshayKaushik/DirectDrop/internal/api/routers"
	"github.com/IamAkshayKaushik/DirectDrop/internal/config"
	"github.com/IamAkshayKaushik/DirectDrop/internal/relay"
	"github.com/IamAkshayKaushik/DirectDrop/internal/service"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// Application is the relay server: hub, HTTP API and websocket endpoint.
type Application struct {
	config *config.Config
	hub    *relay.Hub
	router *gin.Engine
}

func NewApplication(cfg *config.Config) *Application {
	gin.SetMode(gin.ReleaseMode)
	hub := relay.NewHub()
	svc := service.NewService(hub)
	router := routers.NewRouter(handlers.NewHandler(svc), handlers.NewWebSocketHandler(hub)).SetupRouter()
	return &Application{
		config: cfg,
		hub:    hub,
		router: router,
	}
}

func (app *Application) Handler() http.Handler {
	return app.router
}

// Run serves until ctx is cancelled, then drains HTTP and drops every peer.
func (app *Application) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + app.config.ListenPort(),
		Handler: app.router,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Relay started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		app.hub.Close()
		return err
	case <-ctx.Done():
	}
	app.Shutdown(srv)
	return nil
}

func (app *Application) Shutdown(srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Error shutting down relay", "err", err)
	}
	app.hub.Close()
	logger.Log.Info("Relay stopped")
}
