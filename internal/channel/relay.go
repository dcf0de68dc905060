package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IamAkshayKaushik/DirectDrop/internal/codec"
	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/links"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	readDeadline = 70 * time.Second
	writeWait    = 10 * time.Second
	relayBuffer  = 256
)

var ErrRelayRejected = errors.New("relay rejected connection")

type outbound struct {
	kind int
	data []byte
}

// RelayChannel is a TransferChannel carried over the relay's websocket.
// Text frames carry protocol strings, binary frames carry chunk records.
type RelayChannel struct {
	Conn     *websocket.Conn
	role     string
	compress bool

	sendCh chan outbound
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	connectionID string
	registered   chan struct{}
	paired       bool
	err          error
	closeOnce    sync.Once
	regOnce      sync.Once
}

// DialRelay connects to the relay. role is models.RoleShare or models.RoleJoin;
// peerID names the sharer when joining.
func DialRelay(parentCtx context.Context, relayURL, role, peerID string, compress bool) (*RelayChannel, error) {
	wsURL := links.RelayWebSocketURL(relayURL, role, peerID)
	logger.Log.Info("Attempting relay connection", "url", wsURL, "role", role)
	conn, _, err := websocket.DefaultDialer.DialContext(parentCtx, wsURL, nil)
	if err != nil {
		logger.Log.Error("Relay connection error", "err", err)
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}
	ctx, cancel := context.WithCancel(parentCtx)
	r := &RelayChannel{
		Conn:       conn,
		role:       role,
		compress:   compress,
		sendCh:     make(chan outbound, relayBuffer),
		events:     make(chan Event, relayBuffer),
		ctx:        ctx,
		cancel:     cancel,
		registered: make(chan struct{}),
	}
	if role == models.RoleJoin {
		r.connectionID = peerID
	}
	r.runPumps()
	logger.Log.Info("Connected to relay", "url", wsURL)
	return r, nil
}

// WaitRegistered blocks until the relay assigned this sharer a connection id.
func (r *RelayChannel) WaitRegistered(ctx context.Context) (string, error) {
	select {
	case <-r.registered:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.connectionID, nil
	case <-r.ctx.Done():
		return "", r.Err()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *RelayChannel) ConnectionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectionID
}

func (r *RelayChannel) Events() <-chan Event {
	return r.events
}

func (r *RelayChannel) Send(msg models.Message) error {
	out := outbound{kind: websocket.TextMessage, data: []byte(msg.Text)}
	if msg.IsChunk() {
		encoded, err := codec.EncodeChunk(*msg.Chunk, r.compress)
		if err != nil {
			return err
		}
		out = outbound{kind: websocket.BinaryMessage, data: encoded}
	}
	r.mu.Lock()
	paired := r.paired
	r.mu.Unlock()
	if !paired {
		return ErrNotOpen
	}
	select {
	case <-r.ctx.Done():
		return ErrClosed
	case r.sendCh <- out:
		return nil
	default:
		logger.Log.Warn("Send buffer full, dropping message", "kind", msg.Kind())
		return ErrBufferFull
	}
}

// Err reports why the channel shut down, if it did so because of a failure.
func (r *RelayChannel) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.ctx.Err() != nil {
		return ErrClosed
	}
	return nil
}

func (r *RelayChannel) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.cancel()
		_ = r.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = r.Conn.Close()
	})
	return err
}

func (r *RelayChannel) fail(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
	r.Close()
}

func (r *RelayChannel) emit(ev Event) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

// connectionMonitor keeps the read deadline alive on relay pings.
func (r *RelayChannel) connectionMonitor() {
	r.Conn.SetReadDeadline(time.Now().Add(readDeadline))
	r.Conn.SetPingHandler(func(appData string) error {
		r.Conn.SetReadDeadline(time.Now().Add(readDeadline))
		return r.Conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})
}

// readPump turns websocket frames into channel events.
func (r *RelayChannel) readPump() {
	defer func() {
		r.mu.Lock()
		r.paired = false
		r.mu.Unlock()
		r.Close()
		// Consumers treat a closed events channel as the final close.
		close(r.events)
		logger.Log.Debug("Relay read pump stopped")
	}()
	for {
		kind, data, err := r.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && r.ctx.Err() == nil {
				logger.Log.Warn("Relay connection lost", "err", err)
				r.mu.Lock()
				if r.err == nil {
					r.err = err
				}
				r.mu.Unlock()
			}
			return
		}
		r.Conn.SetReadDeadline(time.Now().Add(readDeadline))
		switch kind {
		case websocket.BinaryMessage:
			c, err := codec.DecodeChunk(data)
			if err != nil {
				logger.Log.Warn("Failed to decode chunk record", "err", err)
				continue
			}
			r.emit(Event{Kind: EventData, Msg: models.ChunkRecord(c)})
		case websocket.TextMessage:
			text := string(data)
			if strings.HasPrefix(text, models.RelayControlPrefix) {
				if !r.handleControl(strings.TrimPrefix(text, models.RelayControlPrefix)) {
					return
				}
				continue
			}
			r.emit(Event{Kind: EventData, Msg: models.Text(text)})
		}
	}
}

// handleControl processes a relay envelope. It returns false when the channel must stop.
func (r *RelayChannel) handleControl(raw string) bool {
	var env models.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		logger.Log.Warn("Failed to parse relay control frame", "warn", err)
		return true
	}
	switch env.Type {
	case models.RelayMsgRegistered:
		payload, _ := env.Payload.(map[string]interface{})
		id, _ := payload["connection_id"].(string)
		r.regOnce.Do(func() {
			r.mu.Lock()
			r.connectionID = id
			r.mu.Unlock()
			close(r.registered)
			logger.Log.Info("Registered with relay", "connection_id", id)
		})
	case models.RelayMsgPaired:
		r.mu.Lock()
		r.paired = true
		r.mu.Unlock()
		logger.Log.Info("Peer connected through relay", "connection_id", r.ConnectionID())
		r.emit(Event{Kind: EventOpen})
	case models.RelayMsgPeerLeft:
		r.mu.Lock()
		wasPaired := r.paired
		r.paired = false
		r.mu.Unlock()
		r.drainSends()
		logger.Log.Info("Peer left relay session", "connection_id", r.ConnectionID())
		if wasPaired {
			r.emit(Event{Kind: EventClose})
		}
		// A joiner has nothing left to talk to.
		return r.role == models.RoleShare
	case models.RelayMsgError:
		reason := fmt.Sprint(env.Payload)
		logger.Log.Error("Relay refused session", "reason", reason)
		r.mu.Lock()
		r.err = fmt.Errorf("%w: %s", ErrRelayRejected, reason)
		r.mu.Unlock()
		return false
	default:
		logger.Log.Warn("Unknown relay control frame", "type", env.Type)
	}
	return true
}

// drainSends drops frames queued for a peer that is gone so they never reach the next one.
func (r *RelayChannel) drainSends() {
	for {
		select {
		case <-r.sendCh:
		default:
			return
		}
	}
}

// writePump is the only writer of data frames on the websocket.
func (r *RelayChannel) writePump() {
	defer logger.Log.Debug("Relay write pump stopped")
	for {
		select {
		case out := <-r.sendCh:
			r.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := r.Conn.WriteMessage(out.kind, out.data); err != nil {
				logger.Log.Error("Relay write failed", "err", err)
				r.fail(err)
				return
			}
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *RelayChannel) runPumps() {
	r.connectionMonitor()
	go r.readPump()
	go r.writePump()
}
