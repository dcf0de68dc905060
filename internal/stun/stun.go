package stun

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
	"github.com/pion/stun/v2"
)

const (
	DefaultServer = "stun.l.google.com:19302"
	queryTimeout  = 5 * time.Second
)

// Client discovers the public address this host is seen from.
type Client struct {
	serverAddr      string
	currentEndpoint string
	mu              sync.RWMutex
	lastQuery       time.Time
}

type EndpointInfo struct {
	PublicEndpoint string
	IP             string
	Port           int
	Changed        bool
}

func NewClient(serverAddr string) *Client {
	if serverAddr == "" {
		serverAddr = DefaultServer
	}
	return &Client{
		serverAddr: serverAddr,
	}
}

func (s *Client) CurrentEndpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentEndpoint
}

func (s *Client) QueryEndpoint(ctx context.Context) (*EndpointInfo, error) {
	dialer := net.Dialer{Timeout: queryTimeout}
	conn, err := dialer.DialContext(ctx, "udp", s.serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial STUN server: %w", err)
	}
	defer conn.Close()
	client, err := stun.NewClient(conn, stun.WithTimeoutRate(queryTimeout/10))
	if err != nil {
		return nil, fmt.Errorf("failed to create STUN client: %w", err)
	}
	defer client.Close()
	if deadline, ok := ctx.Deadline(); ok {
		client.SetRTO(time.Until(deadline))
	}
	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	var xorAddr stun.XORMappedAddress
	var queryErr error
	err = client.Do(message, func(res stun.Event) {
		if res.Error != nil {
			queryErr = res.Error
			return
		}
		if err := xorAddr.GetFrom(res.Message); err != nil {
			queryErr = fmt.Errorf("failed to get XOR mapped address: %w", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("STUN query failed: %w", err)
	}
	if queryErr != nil {
		return nil, queryErr
	}
	endpoint := net.JoinHostPort(xorAddr.IP.String(), strconv.Itoa(xorAddr.Port))
	s.mu.Lock()
	changed := s.currentEndpoint != endpoint
	if changed {
		s.currentEndpoint = endpoint
		logger.Log.Info("STUN endpoint discovered", "endpoint", endpoint)
	}
	s.lastQuery = time.Now()
	s.mu.Unlock()

	return &EndpointInfo{
		PublicEndpoint: endpoint,
		IP:             xorAddr.IP.String(),
		Port:           xorAddr.Port,
		Changed:        changed,
	}, nil
}

// AdvertiseAddr picks the host:port a joiner should dial for a listener on
// listenAddr: the STUN-discovered public IP when available, else the local
// outbound IP.
func (s *Client) AdvertiseAddr(ctx context.Context, listenAddr net.Addr) string {
	_, port, err := net.SplitHostPort(listenAddr.String())
	if err != nil {
		return listenAddr.String()
	}
	info, err := s.QueryEndpoint(ctx)
	if err != nil {
		logger.Log.Warn("STUN query failed, advertising local address", "err", err)
		return net.JoinHostPort(LocalIP(), port)
	}
	return net.JoinHostPort(info.IP, port)
}

// LocalIP is the address of the interface used for outbound traffic.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
