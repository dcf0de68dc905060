package transfer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/IamAkshayKaushik/DirectDrop/internal/chunker"
	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/internal/progress"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
)

type ReceiverHooks struct {
	OnProgress progress.Reporter
	// OnMetadata fires once the size announce is accepted. Call Start to begin downloading.
	OnMetadata func(t models.Transfer)
	// OnFile receives the reassembled file, at most once per transfer.
	OnFile func(filename string, data []byte)
	// OnReset fires when the transfer is abandoned; no file is produced.
	OnReset func(err error)
}

// Receiver owns the inbound side of a transfer: it stores chunks by index and
// paces the sender with one pull per chunk.
type Receiver struct {
	out      Outbound
	transfer models.Transfer
	buffer   [][]byte
	received int
	started  bool
	emitted  bool
	state    State
	tracker  *progress.Tracker
	hooks    ReceiverHooks
}

func NewReceiver(out Outbound, hooks ReceiverHooks) *Receiver {
	return &Receiver{
		out:     out,
		state:   StateAwaitingMetadata,
		tracker: progress.NewTracker(hooks.OnProgress),
		hooks:   hooks,
	}
}

func (r *Receiver) State() State              { return r.state }
func (r *Receiver) Received() int             { return r.received }
func (r *Receiver) Transfer() models.Transfer { return r.transfer }
func (r *Receiver) Progress() float64         { return r.tracker.Value() }

// Buffered reports whether a ReceiveBuffer is currently allocated.
func (r *Receiver) Buffered() bool { return r.buffer != nil }

func (r *Receiver) HandleOpen() error {
	if r.state == StateReceivingChunks {
		logger.Log.Warn("Channel reopened mid-transfer, discarding partial data")
		r.discard()
	}
	r.beginTransfer()
	r.tracker.Show()
	return nil
}

func (r *Receiver) HandleData(msg models.Message) error {
	if msg.IsChunk() {
		return r.handleChunk(*msg.Chunk)
	}
	if name, ok := msg.ParseFilename(); ok {
		r.handleFilename(name)
		return nil
	}
	if raw, ok := msg.SizeField(); ok {
		return r.handleSize(raw)
	}
	if msg.IsDone() {
		return r.handleDone()
	}
	logger.Log.Warn("Ignoring message on receiver", "kind", msg.Kind())
	return nil
}

// HandleClose discards anything received so far unless the file was already delivered.
func (r *Receiver) HandleClose() {
	switch r.state {
	case StateCompleted, StateReset:
		return
	}
	logger.Log.Info("Channel closed before completion", "filename", r.transfer.Filename, "received", r.received, "total_chunks", r.transfer.TotalChunks)
	r.discard()
	r.state = StateReset
	r.tracker.Reset()
	if r.hooks.OnReset != nil {
		r.hooks.OnReset(ErrChannelClosed)
	}
}

// Start is the user's "start download" action: it issues the first pull.
func (r *Receiver) Start() error {
	if r.state != StateReceivingChunks {
		return ErrNotReady
	}
	if r.started {
		return nil
	}
	r.started = true
	if r.transfer.TotalChunks == 0 {
		return nil
	}
	logger.Log.Info("Starting download", "filename", r.transfer.Filename, "total_chunks", r.transfer.TotalChunks)
	if err := r.out.Send(models.Pull()); err != nil {
		return r.abort(fmt.Errorf("%w: %w", ErrChannelWrite, err))
	}
	return nil
}

func (r *Receiver) handleFilename(name string) {
	switch r.state {
	case StateReceivingChunks:
		logger.Log.Warn("Ignoring filename announce during transfer", "filename", name)
		return
	case StateCompleted, StateReset:
		r.beginTransfer()
	}
	r.transfer.Filename = name
	logger.Log.Info("Incoming file", "filename", name)
}

func (r *Receiver) handleSize(raw string) error {
	switch r.state {
	case StateReceivingChunks:
		logger.Log.Warn("Ignoring size announce during transfer", "size", raw)
		return nil
	case StateCompleted, StateReset:
		r.beginTransfer()
	}
	total, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || total < 0 {
		return r.abort(fmt.Errorf("%w: %q", ErrMalformedMetadata, raw))
	}
	r.transfer.TotalChunks = total
	r.buffer = make([][]byte, total)
	r.received = 0
	r.started = false
	r.state = StateReceivingChunks
	logger.Log.Info("Transfer metadata received", "filename", r.transfer.Filename, "total_chunks", total)
	if r.hooks.OnMetadata != nil {
		r.hooks.OnMetadata(r.transfer)
	}
	return nil
}

func (r *Receiver) handleChunk(c models.Chunk) error {
	if r.state != StateReceivingChunks {
		logger.Log.Warn("Ignoring chunk outside of transfer", "index", c.Index, "state", r.state.String())
		return nil
	}
	if c.Index < 0 || c.Index >= len(r.buffer) {
		return r.abort(fmt.Errorf("%w: %d of %d", ErrChunkOutOfRange, c.Index, len(r.buffer)))
	}
	if r.buffer[c.Index] != nil {
		return r.abort(fmt.Errorf("%w: %d", ErrDuplicateChunk, c.Index))
	}
	// A nil slot marks a missing chunk.
	data := c.Data
	if data == nil {
		data = []byte{}
	}
	r.buffer[c.Index] = data
	r.received++
	r.tracker.Update(c.Index, r.transfer.TotalChunks)
	logger.Log.Debug("Received chunk", "index", c.Index, "bytes", len(data), "total_chunks", r.transfer.TotalChunks)
	if r.received < r.transfer.TotalChunks {
		if err := r.out.Send(models.Pull()); err != nil {
			return r.abort(fmt.Errorf("%w: %w", ErrChannelWrite, err))
		}
	}
	return nil
}

func (r *Receiver) handleDone() error {
	if r.emitted {
		logger.Log.Debug("Ignoring duplicate completion", "filename", r.transfer.Filename)
		return nil
	}
	switch r.state {
	case StateReceivingChunks:
	case StateAwaitingMetadata:
		logger.Log.Warn("Ignoring completion before metadata", "filename", r.transfer.Filename)
		return nil
	default:
		logger.Log.Debug("Ignoring completion", "state", r.state.String())
		return nil
	}
	data, err := chunker.Reassemble(r.buffer)
	if err != nil {
		return r.abort(fmt.Errorf("%w: %w", ErrIncompleteTransfer, err))
	}
	r.emitted = true
	name := r.transfer.Filename
	r.discard()
	r.state = StateCompleted
	r.tracker.Reset()
	logger.Log.Info("File reassembled", "filename", name, "bytes", len(data), "total_chunks", r.transfer.TotalChunks)
	if r.hooks.OnFile != nil {
		r.hooks.OnFile(name, data)
	}
	return nil
}

// abort ends the transfer visibly. The returned error wraps ErrAborted.
func (r *Receiver) abort(cause error) error {
	logger.Log.Error("Transfer aborted", "filename", r.transfer.Filename, "err", cause)
	r.discard()
	r.state = StateReset
	r.tracker.Reset()
	err := fmt.Errorf("%w: %w", ErrAborted, cause)
	if r.hooks.OnReset != nil {
		r.hooks.OnReset(err)
	}
	return err
}

// beginTransfer clears everything left from a previous transfer, including the one-shot guard.
func (r *Receiver) beginTransfer() {
	r.discard()
	r.transfer = models.Transfer{}
	r.emitted = false
	r.state = StateAwaitingMetadata
}

func (r *Receiver) discard() {
	r.buffer = nil
	r.received = 0
	r.started = false
}
