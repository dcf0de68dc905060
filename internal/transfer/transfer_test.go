package transfer

import (
	"context"
	"crypto/rand"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/IamAkshayKaushik/DirectDrop/internal/channel"
	"github.com/IamAkshayKaushik/DirectDrop/internal/chunker"
	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitDiscard()
	os.Exit(m.Run())
}

// recorder is an Outbound that keeps everything sent and can be told to fail.
type recorder struct {
	mu     sync.Mutex
	sent   []models.Message
	failAt int // fail the n-th send (1-based); 0 never fails
}

var errWrite = errors.New("write refused")

func (r *recorder) Send(msg models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAt > 0 && len(r.sent)+1 == r.failAt {
		return errWrite
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.sent {
		if m.IsChunk() {
			out = append(out, "chunk")
			continue
		}
		out = append(out, m.Text)
	}
	return out
}

func (r *recorder) pulls() int {
	n := 0
	for _, t := range r.texts() {
		if t == models.MsgPull {
			n++
		}
	}
	return n
}

func randomFile(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func newTestSender(t *testing.T, out Outbound, data []byte, hooks SenderHooks) *Sender {
	t.Helper()
	chunks, err := chunker.Split(data, chunker.DefaultChunkSize)
	require.NoError(t, err)
	return NewSender(out, "report.pdf", chunks, chunker.DefaultChunkSize, hooks)
}

func TestSenderAnnouncesOnOpen(t *testing.T) {
	out := &recorder{}
	s := newTestSender(t, out, randomFile(t, 32*1024), SenderHooks{})

	require.NoError(t, s.HandleOpen())
	assert.Equal(t, []string{"bbb.report.pdf", "size:2"}, out.texts())
	assert.Equal(t, StateWaitingForPull, s.State())
}

func TestSenderServesOneChunkPerPull(t *testing.T) {
	out := &recorder{}
	var completed []models.Transfer
	s := newTestSender(t, out, randomFile(t, 32*1024), SenderHooks{
		OnComplete: func(tr models.Transfer) { completed = append(completed, tr) },
	})
	require.NoError(t, s.HandleOpen())

	require.NoError(t, s.HandleData(models.Pull()))
	assert.Equal(t, []string{"bbb.report.pdf", "size:2", "chunk"}, out.texts())
	assert.Equal(t, 1, s.Current())
	assert.InDelta(t, 0.5, s.Progress(), 1e-9)

	require.NoError(t, s.HandleData(models.Pull()))
	assert.Equal(t, []string{"bbb.report.pdf", "size:2", "chunk", "chunk", "done"}, out.texts())
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, 0, s.Current())
	assert.Zero(t, s.Progress())
	require.Len(t, completed, 1)
	assert.Equal(t, 2, completed[0].TotalChunks)
}

func TestSenderIgnoresPullsOutsideWaiting(t *testing.T) {
	out := &recorder{}
	s := newTestSender(t, out, randomFile(t, 100), SenderHooks{})

	require.NoError(t, s.HandleData(models.Pull()))
	assert.Empty(t, out.texts())

	require.NoError(t, s.HandleOpen())
	require.NoError(t, s.HandleData(models.Pull()))
	require.Equal(t, StateCompleted, s.State())
	before := len(out.texts())
	require.NoError(t, s.HandleData(models.Pull()))
	assert.Len(t, out.texts(), before)
}

func TestSenderEmptyFile(t *testing.T) {
	out := &recorder{}
	s := newTestSender(t, out, nil, SenderHooks{})

	require.NoError(t, s.HandleOpen())
	assert.Equal(t, []string{"bbb.report.pdf", "size:0", "done"}, out.texts())
	assert.Equal(t, StateCompleted, s.State())
}

func TestSenderWriteFailureResets(t *testing.T) {
	out := &recorder{failAt: 3}
	var resetErr error
	s := newTestSender(t, out, randomFile(t, 40*1024), SenderHooks{
		OnReset: func(err error) { resetErr = err },
	})
	require.NoError(t, s.HandleOpen())

	err := s.HandleData(models.Pull())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChannelWrite)
	assert.NotErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, resetErr, errWrite)
	assert.Equal(t, StateReset, s.State())
	assert.Equal(t, 0, s.Current())
	assert.Zero(t, s.Progress())
}

func TestSenderCloseMidTransfer(t *testing.T) {
	out := &recorder{}
	resets := 0
	s := newTestSender(t, out, randomFile(t, 40*1024), SenderHooks{
		OnReset: func(error) { resets++ },
	})
	s.HandleClose()
	assert.Equal(t, StateIdle, s.State(), "close before open is a no-op")

	require.NoError(t, s.HandleOpen())
	require.NoError(t, s.HandleData(models.Pull()))
	s.HandleClose()
	assert.Equal(t, StateReset, s.State())
	assert.Equal(t, 0, s.Current())
	assert.Equal(t, 1, resets)

	s.HandleClose()
	assert.Equal(t, 1, resets)
}

func TestSenderLoadOnlyBetweenTransfers(t *testing.T) {
	out := &recorder{}
	s := newTestSender(t, out, randomFile(t, 40*1024), SenderHooks{})
	require.NoError(t, s.HandleOpen())

	assert.ErrorIs(t, s.Load("other.bin", nil, chunker.DefaultChunkSize), ErrBusy)

	s.HandleClose()
	require.NoError(t, s.Load("other.bin", nil, chunker.DefaultChunkSize))
	assert.Equal(t, "other.bin", s.Transfer().Filename)
	assert.Equal(t, 0, s.Transfer().TotalChunks)
}

func TestSenderRestartsAfterClose(t *testing.T) {
	out := &recorder{}
	data := randomFile(t, 40*1024)
	completed := 0
	s := newTestSender(t, out, data, SenderHooks{
		OnComplete: func(models.Transfer) { completed++ },
	})
	require.NoError(t, s.HandleOpen())
	require.NoError(t, s.HandleData(models.Pull()))
	s.HandleClose()
	require.Equal(t, StateReset, s.State())

	mark := len(out.texts())
	require.NoError(t, s.HandleOpen())
	for s.State() == StateWaitingForPull {
		require.NoError(t, s.HandleData(models.Pull()))
	}
	assert.Equal(t, []string{"bbb.report.pdf", "size:3", "chunk", "chunk", "chunk", "done"}, out.texts()[mark:])
	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, 1, completed)

	var joined []byte
	for i, m := range out.sent[mark:] {
		if m.IsChunk() {
			assert.Equal(t, i-2, m.Chunk.Index)
			joined = append(joined, m.Chunk.Data...)
		}
	}
	assert.Equal(t, data, joined)
}

func TestReceiverMetadataThenStart(t *testing.T) {
	out := &recorder{}
	var meta models.Transfer
	r := NewReceiver(out, ReceiverHooks{OnMetadata: func(tr models.Transfer) { meta = tr }})
	require.NoError(t, r.HandleOpen())

	assert.ErrorIs(t, r.Start(), ErrNotReady)

	require.NoError(t, r.HandleData(models.FilenameAnnounce("photo.jpg")))
	require.NoError(t, r.HandleData(models.SizeAnnounce(3)))
	assert.Equal(t, "photo.jpg", meta.Filename)
	assert.Equal(t, 3, meta.TotalChunks)
	assert.Equal(t, StateReceivingChunks, r.State())
	assert.Empty(t, out.texts(), "no pull before the download is started")

	require.NoError(t, r.Start())
	require.NoError(t, r.Start())
	assert.Equal(t, 1, out.pulls())
}

func TestReceiverMalformedSize(t *testing.T) {
	for _, raw := range []string{"-1", "abc", "", "1.5"} {
		t.Run(raw, func(t *testing.T) {
			out := &recorder{}
			var resetErr error
			r := NewReceiver(out, ReceiverHooks{OnReset: func(err error) { resetErr = err }})
			require.NoError(t, r.HandleOpen())
			require.NoError(t, r.HandleData(models.FilenameAnnounce("a.txt")))

			err := r.HandleData(models.Text(models.SizePrefix + raw))
			assert.ErrorIs(t, err, ErrAborted)
			assert.ErrorIs(t, err, ErrMalformedMetadata)
			assert.ErrorIs(t, resetErr, ErrMalformedMetadata)
			assert.Equal(t, StateReset, r.State())
			assert.False(t, r.Buffered())
			assert.Zero(t, out.pulls())
		})
	}
}

func TestReceiverChunkProgressAndPulls(t *testing.T) {
	out := &recorder{}
	var fractions []float64
	r := NewReceiver(out, ReceiverHooks{
		OnProgress: func(f float64, visible bool) {
			if visible {
				fractions = append(fractions, f)
			}
		},
	})
	require.NoError(t, r.HandleOpen())
	require.NoError(t, r.HandleData(models.FilenameAnnounce("a.bin")))
	require.NoError(t, r.HandleData(models.SizeAnnounce(4)))
	require.NoError(t, r.Start())

	for i := 0; i < 4; i++ {
		require.NoError(t, r.HandleData(models.ChunkRecord(models.Chunk{Index: i, Data: []byte{byte(i)}})))
	}
	// One pull from Start, then one after every chunk but the last.
	assert.Equal(t, 4, out.pulls())
	assert.Equal(t, []float64{0, 0, 0.25, 0.5, 0.75}, fractions)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
}

func TestReceiverRejectsBadChunks(t *testing.T) {
	tests := []struct {
		name   string
		chunks []models.Chunk
		want   error
	}{
		{"negative index", []models.Chunk{{Index: -1, Data: []byte("x")}}, ErrChunkOutOfRange},
		{"past the end", []models.Chunk{{Index: 2, Data: []byte("x")}}, ErrChunkOutOfRange},
		{"duplicate", []models.Chunk{{Index: 0, Data: []byte("x")}, {Index: 0, Data: []byte("y")}}, ErrDuplicateChunk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReceiver(&recorder{}, ReceiverHooks{})
			require.NoError(t, r.HandleOpen())
			require.NoError(t, r.HandleData(models.SizeAnnounce(2)))
			var err error
			for _, c := range tt.chunks {
				err = r.HandleData(models.ChunkRecord(c))
			}
			assert.ErrorIs(t, err, ErrAborted)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, StateReset, r.State())
			assert.False(t, r.Buffered())
		})
	}
}

func TestReceiverDoneWithMissingChunks(t *testing.T) {
	files := 0
	r := NewReceiver(&recorder{}, ReceiverHooks{OnFile: func(string, []byte) { files++ }})
	require.NoError(t, r.HandleOpen())
	require.NoError(t, r.HandleData(models.SizeAnnounce(2)))
	require.NoError(t, r.HandleData(models.ChunkRecord(models.Chunk{Index: 0, Data: []byte("x")})))

	err := r.HandleData(models.Done())
	assert.ErrorIs(t, err, ErrIncompleteTransfer)
	assert.Zero(t, files)
}

func TestReceiverDuplicateDoneEmitsOnce(t *testing.T) {
	var files [][]byte
	r := NewReceiver(&recorder{}, ReceiverHooks{OnFile: func(_ string, data []byte) { files = append(files, data) }})
	require.NoError(t, r.HandleOpen())
	require.NoError(t, r.HandleData(models.FilenameAnnounce("x.txt")))
	require.NoError(t, r.HandleData(models.SizeAnnounce(1)))
	require.NoError(t, r.Start())
	require.NoError(t, r.HandleData(models.ChunkRecord(models.Chunk{Index: 0, Data: []byte("hello")})))

	require.NoError(t, r.HandleData(models.Done()))
	require.NoError(t, r.HandleData(models.Done()))
	require.Len(t, files, 1)
	assert.Equal(t, []byte("hello"), files[0])
	assert.Equal(t, StateCompleted, r.State())
	assert.Zero(t, r.Received())
}

func TestReceiverEmptyFile(t *testing.T) {
	out := &recorder{}
	var got []byte
	var name string
	r := NewReceiver(out, ReceiverHooks{OnFile: func(n string, data []byte) { name, got = n, data }})
	require.NoError(t, r.HandleOpen())
	require.NoError(t, r.HandleData(models.FilenameAnnounce("empty.txt")))
	require.NoError(t, r.HandleData(models.SizeAnnounce(0)))
	require.NoError(t, r.Start())
	require.NoError(t, r.HandleData(models.Done()))

	assert.Equal(t, "empty.txt", name)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, out.pulls())
}

func TestReceiverCloseDiscardsPartialData(t *testing.T) {
	var resetErr error
	files := 0
	r := NewReceiver(&recorder{}, ReceiverHooks{
		OnReset: func(err error) { resetErr = err },
		OnFile:  func(string, []byte) { files++ },
	})
	require.NoError(t, r.HandleOpen())
	require.NoError(t, r.HandleData(models.SizeAnnounce(3)))
	require.NoError(t, r.HandleData(models.ChunkRecord(models.Chunk{Index: 0, Data: []byte("a")})))

	r.HandleClose()
	assert.Equal(t, StateReset, r.State())
	assert.False(t, r.Buffered())
	assert.Zero(t, r.Received())
	assert.ErrorIs(t, resetErr, ErrChannelClosed)
	assert.Zero(t, files)
}

func TestReceiverCloseAfterCompletionKeepsState(t *testing.T) {
	resets := 0
	r := NewReceiver(&recorder{}, ReceiverHooks{OnReset: func(error) { resets++ }})
	require.NoError(t, r.HandleOpen())
	require.NoError(t, r.HandleData(models.SizeAnnounce(0)))
	require.NoError(t, r.HandleData(models.Done()))

	r.HandleClose()
	assert.Equal(t, StateCompleted, r.State())
	assert.Zero(t, resets)
}

func TestReceiverNewTransferAfterCompletion(t *testing.T) {
	var names []string
	r := NewReceiver(&recorder{}, ReceiverHooks{OnFile: func(n string, _ []byte) { names = append(names, n) }})
	require.NoError(t, r.HandleOpen())
	for _, name := range []string{"first.txt", "second.txt"} {
		require.NoError(t, r.HandleData(models.FilenameAnnounce(name)))
		require.NoError(t, r.HandleData(models.SizeAnnounce(1)))
		require.NoError(t, r.Start())
		require.NoError(t, r.HandleData(models.ChunkRecord(models.Chunk{Index: 0, Data: []byte(name)})))
		require.NoError(t, r.HandleData(models.Done()))
	}
	assert.Equal(t, []string{"first.txt", "second.txt"}, names)
}

func TestReceiverIgnoresDoneBeforeMetadata(t *testing.T) {
	resets := 0
	var files []string
	r := NewReceiver(&recorder{}, ReceiverHooks{
		OnReset: func(error) { resets++ },
		OnFile:  func(n string, _ []byte) { files = append(files, n) },
	})
	require.NoError(t, r.HandleOpen())

	require.NoError(t, r.HandleData(models.Done()))
	assert.Equal(t, StateAwaitingMetadata, r.State())
	assert.Zero(t, resets)
	assert.Empty(t, files)

	require.NoError(t, r.HandleData(models.FilenameAnnounce("late.txt")))
	require.NoError(t, r.HandleData(models.SizeAnnounce(1)))
	require.NoError(t, r.Start())
	require.NoError(t, r.HandleData(models.ChunkRecord(models.Chunk{Index: 0, Data: []byte("ok")})))
	require.NoError(t, r.HandleData(models.Done()))
	assert.Equal(t, []string{"late.txt"}, files)
	assert.Zero(t, resets)
}

func TestReceiverRestartsAfterClose(t *testing.T) {
	out := &recorder{}
	var files []received
	r := NewReceiver(out, ReceiverHooks{
		OnFile: func(n string, data []byte) { files = append(files, received{n, data}) },
	})
	require.NoError(t, r.HandleOpen())
	require.NoError(t, r.HandleData(models.FilenameAnnounce("draft.txt")))
	require.NoError(t, r.HandleData(models.SizeAnnounce(2)))
	require.NoError(t, r.Start())
	require.NoError(t, r.HandleData(models.ChunkRecord(models.Chunk{Index: 0, Data: []byte("stale")})))
	r.HandleClose()
	require.Equal(t, StateReset, r.State())

	require.NoError(t, r.HandleData(models.FilenameAnnounce("final.txt")))
	require.NoError(t, r.HandleData(models.SizeAnnounce(2)))
	require.Equal(t, StateReceivingChunks, r.State())
	assert.Zero(t, r.Received())
	require.NoError(t, r.Start())
	require.NoError(t, r.HandleData(models.ChunkRecord(models.Chunk{Index: 0, Data: []byte("fresh ")})))
	require.NoError(t, r.HandleData(models.ChunkRecord(models.Chunk{Index: 1, Data: []byte("copy")})))
	require.NoError(t, r.HandleData(models.Done()))

	require.Len(t, files, 1)
	assert.Equal(t, "final.txt", files[0].name)
	assert.Equal(t, []byte("fresh copy"), files[0].data)
	assert.Equal(t, StateCompleted, r.State())
}

type received struct {
	name string
	data []byte
}

// runPair drives a sender and a receiver over an in-memory pipe until the file arrives.
func runPair(t *testing.T, data []byte) (received, *Sender, *Receiver) {
	t.Helper()
	sendEnd, recvEnd := channel.Pipe()
	t.Cleanup(func() { sendEnd.Close() })

	var senderProgress []float64
	sender := newTestSender(t, sendEnd, data, SenderHooks{
		OnProgress: func(f float64, visible bool) {
			if visible {
				senderProgress = append(senderProgress, f)
			}
		},
	})

	files := make(chan received, 2)
	var receiver *Receiver
	var recvActor *Actor
	receiver = NewReceiver(recvEnd, ReceiverHooks{
		OnMetadata: func(models.Transfer) {
			recvActor.Do(receiver.Start)
		},
		OnFile: func(name string, data []byte) {
			files <- received{name: name, data: data}
			recvActor.Stop()
		},
	})
	recvActor = NewActor(recvEnd, receiver)
	sendActor := NewActor(sendEnd, sender)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sendDone := make(chan error, 1)
	go func() { sendDone <- sendActor.Run(ctx) }()
	require.NoError(t, recvActor.Run(ctx))

	var got received
	select {
	case got = <-files:
	default:
		t.Fatal("receiver stopped without a file")
	}
	sendEnd.Close()
	require.NoError(t, <-sendDone)

	for i := 1; i < len(senderProgress); i++ {
		assert.GreaterOrEqual(t, senderProgress[i], senderProgress[i-1])
	}
	return got, sender, receiver
}

func TestEndToEndOverPipe(t *testing.T) {
	sizes := []int{0, 1, 16 * 1024, 32 * 1024, 50*1024 + 3}
	for _, size := range sizes {
		data := randomFile(t, size)
		got, sender, receiver := runPair(t, data)
		assert.Equal(t, "report.pdf", got.name, "size %d", size)
		assert.Equal(t, data, got.data, "size %d", size)
		assert.Equal(t, StateCompleted, sender.State(), "size %d", size)
		assert.Equal(t, StateCompleted, receiver.State(), "size %d", size)
	}
}

func TestActorStopsOnAbort(t *testing.T) {
	a, b := channel.Pipe()
	defer a.Close()
	r := NewReceiver(b, ReceiverHooks{})
	actor := NewActor(b, r)

	require.NoError(t, a.Send(models.Text(models.SizePrefix+"nope")))
	err := actor.Run(context.Background())
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, StateReset, r.State())
}

func TestActorClosedChannelResetsSession(t *testing.T) {
	a, b := channel.Pipe()
	s := newTestSender(t, b, randomFile(t, 40*1024), SenderHooks{})
	actor := NewActor(b, s)

	done := make(chan error, 1)
	go func() { done <- actor.Run(context.Background()) }()

	// Wait for the announce, then disconnect mid-transfer.
	for ev := range a.Events() {
		if ev.Kind == channel.EventData {
			if _, ok := ev.Msg.SizeField(); ok {
				break
			}
		}
	}
	require.NoError(t, a.Close())
	require.NoError(t, <-done)
	assert.Equal(t, StateReset, s.State())
	assert.Equal(t, 0, s.Current())
}

func TestActorContextCancel(t *testing.T) {
	_, b := channel.Pipe()
	defer b.Close()
	actor := NewActor(b, NewReceiver(b, ReceiverHooks{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, actor.Run(ctx), context.Canceled)
}
