package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/IamAkshayKaushik/DirectDrop/internal/codec"
	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
)

const (
	ConnectionTimeout = 10 * time.Second
	directBuffer      = 256
)

// DirectChannel is a TransferChannel over a plain TCP connection between the
// peers. A listening channel serves one peer at a time and opens again for the next.
type DirectChannel struct {
	compress bool
	listener net.Listener

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	conn      net.Conn
	closeOnce sync.Once
}

func newDirect(parentCtx context.Context, compress bool) *DirectChannel {
	ctx, cancel := context.WithCancel(parentCtx)
	return &DirectChannel{
		compress: compress,
		events:   make(chan Event, directBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ListenDirect waits for peers on addr.
func ListenDirect(ctx context.Context, addr string, compress bool) (*DirectChannel, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	d := newDirect(ctx, compress)
	d.listener = ln
	d.wg.Add(1)
	go d.acceptLoop()
	d.closeEventsWhenDone()
	logger.Log.Info("Waiting for direct connections", "addr", ln.Addr().String())
	return d, nil
}

// DialDirect connects to a listening sharer.
func DialDirect(ctx context.Context, addr string, compress bool) (*DirectChannel, error) {
	logger.Log.Info("Attempting direct connection", "target", addr)
	dialer := net.Dialer{Timeout: ConnectionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		logger.Log.Warn("Direct connection failed", "target", addr, "error", err)
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	logger.Log.Info("Direct connection established", "target", addr)
	d := newDirect(ctx, compress)
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
	d.wg.Add(1)
	go d.serve(conn)
	d.closeEventsWhenDone()
	return d, nil
}

// Addr is the listening address, or nil for a dialed channel.
func (d *DirectChannel) Addr() net.Addr {
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

func (d *DirectChannel) Events() <-chan Event {
	return d.events
}

// Send writes the frame synchronously so write failures reach the caller.
func (d *DirectChannel) Send(msg models.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx.Err() != nil {
		return ErrClosed
	}
	if d.conn == nil {
		return ErrNotOpen
	}
	d.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return codec.WriteFrame(d.conn, msg, d.compress)
}

func (d *DirectChannel) Close() error {
	d.closeOnce.Do(func() {
		d.cancel()
		if d.listener != nil {
			d.listener.Close()
		}
		d.mu.Lock()
		if d.conn != nil {
			d.conn.Close()
		}
		d.mu.Unlock()
		logger.Log.Info("Direct channel closed")
	})
	return nil
}

func (d *DirectChannel) closeEventsWhenDone() {
	go func() {
		d.wg.Wait()
		close(d.events)
	}()
}

func (d *DirectChannel) emit(ev Event) {
	select {
	case d.events <- ev:
	case <-d.ctx.Done():
	}
}

func (d *DirectChannel) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if d.ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				logger.Log.Error("Accept failed", "err", err)
			}
			return
		}
		d.mu.Lock()
		busy := d.conn != nil
		if !busy {
			d.conn = conn
		}
		d.mu.Unlock()
		if busy {
			logger.Log.Warn("Rejecting direct connection, transfer in progress", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}
		logger.Log.Info("Direct peer connected", "remote", conn.RemoteAddr().String())
		d.wg.Add(1)
		go d.serve(conn)
	}
}

func (d *DirectChannel) serve(conn net.Conn) {
	defer d.wg.Done()
	d.emit(Event{Kind: EventOpen})
	for {
		msg, err := codec.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && d.ctx.Err() == nil {
				logger.Log.Warn("Direct connection read failed", "remote", conn.RemoteAddr().String(), "err", err)
			}
			break
		}
		d.emit(Event{Kind: EventData, Msg: msg})
	}
	d.mu.Lock()
	if d.conn == conn {
		d.conn = nil
	}
	d.mu.Unlock()
	conn.Close()
	d.emit(Event{Kind: EventClose})
	if d.listener == nil {
		d.Close()
	}
}
