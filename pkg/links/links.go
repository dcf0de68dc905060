package links

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	PeerParam = "peer"
	AddrParam = "addr"
	// DirectPeer is the peer id carried by direct-mode links, which need no relay.
	DirectPeer = "direct"
)

var ErrNoPeer = errors.New("link has no peer parameter")

// Join is what a receiver needs to reach a sharer.
type Join struct {
	PeerID string
	Addr   string // direct mode only
}

// RelayWebSocketURL turns the relay's http(s) base URL into its websocket endpoint.
func RelayWebSocketURL(baseURL, role, peerID string) string {
	wsURL := strings.Replace(baseURL, "https", "wss", 1)
	wsURL = strings.Replace(wsURL, "http", "ws", 1)
	wsURL = strings.TrimRight(wsURL, "/")
	q := url.Values{}
	q.Set("role", role)
	if peerID != "" {
		q.Set(PeerParam, peerID)
	}
	return fmt.Sprintf("%s/ws?%s", wsURL, q.Encode())
}

// ShareLink builds the link a sharer hands out. addr is set for direct mode.
func ShareLink(origin, connectionID, addr string) string {
	q := url.Values{}
	q.Set(PeerParam, connectionID)
	if addr != "" {
		q.Set(AddrParam, addr)
	}
	return fmt.Sprintf("%s?%s", strings.TrimRight(origin, "/"), q.Encode())
}

// ParseJoin extracts the peer id from a share link. A bare id is accepted too.
func ParseJoin(raw string) (Join, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Join{}, ErrNoPeer
	}
	if !strings.Contains(raw, "?") && !strings.Contains(raw, "://") {
		return Join{PeerID: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Join{}, fmt.Errorf("invalid share link: %w", err)
	}
	q := u.Query()
	peer := q.Get(PeerParam)
	if peer == "" {
		return Join{}, ErrNoPeer
	}
	return Join{PeerID: peer, Addr: q.Get(AddrParam)}, nil
}
