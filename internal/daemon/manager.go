package daemon

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/IamAkshayKaushik/DirectDrop/internal/config"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
	kardianos "github.com/kardianos/service"
)

// DaemonManager runs the relay under the OS service manager, or in the foreground.
type DaemonManager struct {
	cfg       *config.Config
	app       *Application
	appCtx    context.Context
	appCancel context.CancelFunc
	done      sync.WaitGroup
}

func NewDaemonManager(cfg *config.Config, app *Application) *DaemonManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &DaemonManager{
		cfg:       cfg,
		app:       app,
		appCtx:    ctx,
		appCancel: cancel,
	}
}

func (m *DaemonManager) newService() (kardianos.Service, error) {
	if m.app == nil {
		return nil, fmt.Errorf("application cannot be nil")
	}
	return kardianos.New(m, &kardianos.Config{
		Name:        m.cfg.ServiceName(),
		DisplayName: m.cfg.ServiceDisplayName(),
		Description: m.cfg.ServiceDescription(),
		Arguments:   []string{"relay", "run"},
		Option: kardianos.KeyValue{
			"Restart": "on-failure",
		},
	})
}

// kardianos.Interface implementation
func (m *DaemonManager) Start(s kardianos.Service) error {
	logger.Log.Info("Kardianos starting service", "service", s.String(), "platform", s.Platform())
	m.done.Add(1)
	go func() {
		defer m.done.Done()
		if err := m.app.Run(m.appCtx); err != nil {
			logger.Log.Error("Relay failed", "err", err)
		}
	}()
	return nil
}

func (m *DaemonManager) Stop(s kardianos.Service) error {
	logger.Log.Info("Kardianos stopping service", "service", s.String())
	m.appCancel()
	m.done.Wait()
	return nil
}

func (m *DaemonManager) InstallDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		if runtime.GOOS == "windows" {
			return fmt.Errorf("failed to install Windows service (requires administrator privileges): %w", err)
		}
		return fmt.Errorf("failed to install service: %w", err)
	}
	return nil
}

func (m *DaemonManager) UninstallDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Stop(); err != nil {
		logger.Log.Warn("Failed to stop service before uninstall", "err", err)
	}
	return s.Uninstall()
}

func (m *DaemonManager) RestartDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Restart()
}

func (m *DaemonManager) StartDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Start()
}

func (m *DaemonManager) StopDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Stop()
}

// RunDaemon blocks under the service manager, or until interrupted when run interactively.
func (m *DaemonManager) RunDaemon() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Run()
}

// Control dispatches a CLI verb to the service manager.
func (m *DaemonManager) Control(action string) error {
	switch action {
	case "install":
		return m.InstallDaemon()
	case "uninstall":
		return m.UninstallDaemon()
	case "start":
		return m.StartDaemon()
	case "stop":
		return m.StopDaemon()
	case "restart":
		return m.RestartDaemon()
	case "run", "":
		return m.RunDaemon()
	default:
		return fmt.Errorf("unknown relay action %q", action)
	}
}
