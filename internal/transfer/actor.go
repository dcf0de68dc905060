package transfer

import (
	"context"
	"errors"
	"sync"

	"github.com/IamAkshayKaushik/DirectDrop/internal/channel"
	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
)

// Session is the protocol side driven by channel events.
type Session interface {
	HandleOpen() error
	HandleData(msg models.Message) error
	HandleClose()
}

// Actor serializes channel events and user actions onto one goroutine, so a
// session never needs its own locking.
type Actor struct {
	ch       channel.Channel
	session  Session
	actions  chan func() error
	stop     chan struct{}
	stopOnce sync.Once
}

func NewActor(ch channel.Channel, session Session) *Actor {
	return &Actor{
		ch:      ch,
		session: session,
		actions: make(chan func() error, 16),
		stop:    make(chan struct{}),
	}
}

// Do queues fn to run on the actor goroutine. It is dropped once the actor stopped.
func (a *Actor) Do(fn func() error) {
	select {
	case a.actions <- fn:
	case <-a.stop:
	}
}

// Stop ends Run with a nil error. Safe to call from hooks.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
}

// Run dispatches until the channel goes away, the session aborts, Stop is
// called or ctx ends. The caller owns the channel and closes it.
func (a *Actor) Run(ctx context.Context) error {
	defer a.Stop()
	events := a.ch.Events()
	for {
		select {
		case <-ctx.Done():
			a.session.HandleClose()
			return ctx.Err()
		case <-a.stop:
			return nil
		case fn := <-a.actions:
			if err := fn(); fatal(err) {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				logger.Log.Debug("Channel events closed")
				a.session.HandleClose()
				return nil
			}
			if err := a.dispatch(ev); fatal(err) {
				return err
			}
		}
	}
}

func (a *Actor) dispatch(ev channel.Event) error {
	switch ev.Kind {
	case channel.EventOpen:
		return a.session.HandleOpen()
	case channel.EventData:
		return a.session.HandleData(ev.Msg)
	case channel.EventClose:
		a.session.HandleClose()
	}
	return nil
}

// fatal reports whether err ends the actor. A sender write failure only resets
// the session, so the sharer keeps serving.
func fatal(err error) bool {
	return err != nil && errors.Is(err, ErrAborted)
}
