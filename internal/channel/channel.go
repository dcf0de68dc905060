// Package channel provides TransferChannel implementations: an ordered,
// reliable message channel between two peers.
package channel

import (
	"errors"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
)

type EventKind int

const (
	// EventOpen fires when a peer is connected and messages can flow.
	EventOpen EventKind = iota
	// EventData delivers one message from the peer.
	EventData
	// EventClose fires when the peer went away. Some transports (the relay
	// sharer side, a direct listener) may open again for the next peer.
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventData:
		return "data"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Msg  models.Message
}

// Channel is the TransferChannel consumed by transfer sessions. The events
// channel is closed when the transport itself is gone.
type Channel interface {
	Send(msg models.Message) error
	Events() <-chan Event
	Close() error
}

var (
	ErrClosed     = errors.New("channel closed")
	ErrBufferFull = errors.New("send buffer full")
	ErrNotOpen    = errors.New("no peer connected")
)
