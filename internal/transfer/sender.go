package transfer

import (
	"fmt"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/internal/progress"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
)

type SenderHooks struct {
	OnProgress progress.Reporter
	OnComplete func(t models.Transfer)
	// OnReset fires when a transfer is abandoned. err is nil for a plain close.
	OnReset func(err error)
}

// Sender owns the outbound side of one shared file. It serves exactly one
// chunk per pull and never sends ahead of the receiver.
type Sender struct {
	out      Outbound
	transfer models.Transfer
	chunks   []models.Chunk
	current  int
	state    State
	tracker  *progress.Tracker
	hooks    SenderHooks
}

func NewSender(out Outbound, filename string, chunks []models.Chunk, chunkSize int, hooks SenderHooks) *Sender {
	return &Sender{
		out: out,
		transfer: models.Transfer{
			Filename:    filename,
			TotalChunks: len(chunks),
			ChunkSize:   chunkSize,
		},
		chunks:  chunks,
		state:   StateIdle,
		tracker: progress.NewTracker(hooks.OnProgress),
		hooks:   hooks,
	}
}

// Load replaces the shared file. Only allowed between transfers.
func (s *Sender) Load(filename string, chunks []models.Chunk, chunkSize int) error {
	if s.active() {
		return ErrBusy
	}
	s.transfer = models.Transfer{Filename: filename, TotalChunks: len(chunks), ChunkSize: chunkSize}
	s.chunks = chunks
	s.current = 0
	logger.Log.Info("Shared file loaded", "filename", filename, "total_chunks", len(chunks))
	return nil
}

func (s *Sender) State() State              { return s.state }
func (s *Sender) Current() int              { return s.current }
func (s *Sender) Transfer() models.Transfer { return s.transfer }
func (s *Sender) Progress() float64         { return s.tracker.Value() }

func (s *Sender) active() bool {
	switch s.state {
	case StateAnnouncing, StateWaitingForPull, StateSendingChunk:
		return true
	}
	return false
}

// HandleOpen announces the file to a freshly connected receiver.
func (s *Sender) HandleOpen() error {
	if s.active() {
		logger.Log.Warn("Channel reopened mid-transfer, resetting", "state", s.state.String())
		s.reset(nil)
	}
	s.state = StateAnnouncing
	s.current = 0
	s.tracker.Show()
	logger.Log.Info("Announcing file", "filename", s.transfer.Filename, "total_chunks", s.transfer.TotalChunks)
	if err := s.out.Send(models.FilenameAnnounce(s.transfer.Filename)); err != nil {
		return s.fault(err)
	}
	if err := s.out.Send(models.SizeAnnounce(s.transfer.TotalChunks)); err != nil {
		return s.fault(err)
	}
	if s.transfer.TotalChunks == 0 {
		return s.finish()
	}
	s.state = StateWaitingForPull
	return nil
}

// HandleData reacts to pulls. Anything else from the receiver is ignored.
func (s *Sender) HandleData(msg models.Message) error {
	if !msg.IsPull() {
		logger.Log.Debug("Ignoring message on sender", "kind", msg.Kind())
		return nil
	}
	if s.state != StateWaitingForPull {
		logger.Log.Debug("Ignoring pull", "state", s.state.String())
		return nil
	}
	return s.servePull()
}

// HandleClose abandons an unfinished transfer.
func (s *Sender) HandleClose() {
	switch s.state {
	case StateIdle, StateCompleted, StateReset:
		return
	}
	logger.Log.Info("Channel closed during transfer", "filename", s.transfer.Filename, "sent", s.current, "total_chunks", s.transfer.TotalChunks)
	s.reset(nil)
}

func (s *Sender) servePull() error {
	s.state = StateSendingChunk
	chunk := s.chunks[s.current]
	if err := s.out.Send(models.ChunkRecord(chunk)); err != nil {
		return s.fault(err)
	}
	s.current++
	s.tracker.Update(s.current, s.transfer.TotalChunks)
	logger.Log.Debug("Sent chunk", "index", chunk.Index, "bytes", len(chunk.Data), "total_chunks", s.transfer.TotalChunks)
	if s.current == s.transfer.TotalChunks {
		return s.finish()
	}
	s.state = StateWaitingForPull
	return nil
}

// finish sends the completion sentinel and readies the session for reuse.
func (s *Sender) finish() error {
	if err := s.out.Send(models.Done()); err != nil {
		return s.fault(err)
	}
	s.state = StateCompleted
	s.current = 0
	s.tracker.Reset()
	logger.Log.Info("Transfer completed", "filename", s.transfer.Filename, "total_chunks", s.transfer.TotalChunks)
	if s.hooks.OnComplete != nil {
		s.hooks.OnComplete(s.transfer)
	}
	return nil
}

func (s *Sender) fault(err error) error {
	logger.Log.Error("An error occurred during the file transfer", "filename", s.transfer.Filename, "index", s.current, "err", err)
	s.reset(err)
	return fmt.Errorf("%w: %w", ErrChannelWrite, err)
}

func (s *Sender) reset(err error) {
	s.current = 0
	s.state = StateReset
	s.tracker.Reset()
	if s.hooks.OnReset != nil {
		s.hooks.OnReset(err)
	}
}
