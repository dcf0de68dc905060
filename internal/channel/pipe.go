package channel

import (
	"sync"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
)

const pipeBuffer = 256

type pipeShared struct {
	mu     sync.Mutex
	closed bool
}

// PipeEnd is one side of an in-memory channel pair.
type PipeEnd struct {
	shared *pipeShared
	events chan Event
	peer   *PipeEnd
}

// Pipe returns two connected ends. Both are already open.
func Pipe() (*PipeEnd, *PipeEnd) {
	shared := &pipeShared{}
	a := &PipeEnd{shared: shared, events: make(chan Event, pipeBuffer)}
	b := &PipeEnd{shared: shared, events: make(chan Event, pipeBuffer)}
	a.peer, b.peer = b, a
	a.events <- Event{Kind: EventOpen}
	b.events <- Event{Kind: EventOpen}
	return a, b
}

func (p *PipeEnd) Send(msg models.Message) error {
	p.shared.mu.Lock()
	defer p.shared.mu.Unlock()
	if p.shared.closed {
		return ErrClosed
	}
	select {
	case p.peer.events <- Event{Kind: EventData, Msg: msg}:
		return nil
	default:
		return ErrBufferFull
	}
}

func (p *PipeEnd) Events() <-chan Event {
	return p.events
}

// Close tears down both ends. Queued messages are still delivered before
// the events channels report closure.
func (p *PipeEnd) Close() error {
	p.shared.mu.Lock()
	defer p.shared.mu.Unlock()
	if p.shared.closed {
		return nil
	}
	p.shared.closed = true
	close(p.events)
	close(p.peer.events)
	return nil
}
