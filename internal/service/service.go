package service

import (
	"time"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/internal/relay"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Service backs the relay's HTTP API.
type Service struct {
	Hub       *relay.Hub
	startTime time.Time
}

func NewService(hub *relay.Hub) *Service {
	return &Service{
		Hub:       hub,
		startTime: time.Now(),
	}
}

// Uptime is the relay process uptime in seconds.
func (s *Service) Uptime() int64 {
	return int64(time.Since(s.startTime).Seconds())
}

func (s *Service) Sessions() []models.SessionInfo {
	return s.Hub.Sessions()
}

func (s *Service) Health() models.HealthCheck {
	return models.HealthCheck{
		Status:   "Healthy",
		Uptime:   s.Uptime(),
		Sessions: s.Hub.Count(),
		Host:     GetHostMetrics(),
	}
}

// GetHostMetrics samples the machine the relay runs on. Fields it cannot read stay zero.
func GetHostMetrics() *models.HostMetrics {
	m := &models.HostMetrics{}
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		m.CPUUsage = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		m.MemoryUsage = memStat.UsedPercent
	}
	if diskStat, err := disk.Usage("/"); err == nil {
		m.DiskUsage = diskStat.UsedPercent
	}
	if hostInfo, err := host.Info(); err == nil {
		m.Hostname = hostInfo.Hostname
		m.OS = hostInfo.OS
		m.Uptime = hostInfo.Uptime
	}
	return m
}
