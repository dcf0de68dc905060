package transfer

import (
	"errors"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
)

// State is the TransferState of one session.
type State int

const (
	StateIdle State = iota
	StateAnnouncing
	StateAwaitingMetadata
	StateWaitingForPull
	StateSendingChunk
	StateReceivingChunks
	StateCompleted
	StateReset
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnnouncing:
		return "announcing"
	case StateAwaitingMetadata:
		return "awaiting_metadata"
	case StateWaitingForPull:
		return "waiting_for_pull"
	case StateSendingChunk:
		return "sending_chunk"
	case StateReceivingChunks:
		return "receiving_chunks"
	case StateCompleted:
		return "completed"
	case StateReset:
		return "reset"
	default:
		return "unknown"
	}
}

var (
	// ErrAborted wraps every failure that ends a transfer on the receiving side.
	ErrAborted            = errors.New("transfer aborted")
	ErrMalformedMetadata  = errors.New("malformed size announce")
	ErrChannelWrite       = errors.New("channel write failed")
	ErrChannelClosed      = errors.New("channel closed before completion")
	ErrChunkOutOfRange    = errors.New("chunk index out of range")
	ErrDuplicateChunk     = errors.New("chunk already received")
	ErrIncompleteTransfer = errors.New("completion before all chunks arrived")
	ErrNotReady           = errors.New("transfer metadata not established")
	ErrBusy               = errors.New("transfer in progress")
)

// Outbound is the sending half of a TransferChannel.
type Outbound interface {
	Send(msg models.Message) error
}
