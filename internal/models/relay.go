package models

import "time"

// Relay control frames. They travel as text frames prefixed with RelayControlPrefix
// so they never collide with transfer protocol strings.
const (
	RelayControlPrefix = "\x00relay:"

	RelayMsgRegistered = "relay_registered"
	RelayMsgPaired     = "relay_paired"
	RelayMsgPeerLeft   = "relay_peer_left"
	RelayMsgError      = "relay_error"
)

const (
	RoleShare = "share"
	RoleJoin  = "join"
)

type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type RegisteredPayload struct {
	ConnectionID string `json:"connection_id"`
}

type HealthCheck struct {
	Status   string       `json:"sys_status"`
	Uptime   int64        `json:"uptime"`
	Sessions int          `json:"sessions"`
	Host     *HostMetrics `json:"host_metrics,omitempty"`
}

type HostMetrics struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskUsage   float64 `json:"disk_usage"`
	Hostname    string  `json:"hostname"`
	OS          string  `json:"os"`
	Uptime      uint64  `json:"uptime"`
}

type SessionInfo struct {
	ConnectionID string    `json:"connection_id"`
	Paired       bool      `json:"paired"`
	CreatedAt    time.Time `json:"created_at"`
	PublicAddr   string    `json:"public_addr,omitempty"`
}
