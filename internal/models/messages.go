package models

import (
	"strconv"
	"strings"
)

// Wire vocabulary carried over a TransferChannel.
const (
	FilenamePrefix = "bbb."
	SizePrefix     = "size:"
	MsgPull        = "next"
	MsgDone        = "done"
)

// Chunk is a contiguous slice of a file tagged with its position.
type Chunk struct {
	Index int    `json:"index"`
	Data  []byte `json:"data"`
}

// Message is either a tagged string or an indexed chunk record.
type Message struct {
	Text  string
	Chunk *Chunk
}

func (m Message) IsChunk() bool {
	return m.Chunk != nil
}

func Text(s string) Message {
	return Message{Text: s}
}

func ChunkRecord(c Chunk) Message {
	return Message{Chunk: &c}
}

func FilenameAnnounce(name string) Message {
	return Text(FilenamePrefix + name)
}

func SizeAnnounce(total int) Message {
	return Text(SizePrefix + strconv.Itoa(total))
}

func Pull() Message {
	return Text(MsgPull)
}

func Done() Message {
	return Text(MsgDone)
}

// ParseFilename reports the announced name if m is a filename announce.
func (m Message) ParseFilename() (string, bool) {
	if m.IsChunk() || !strings.HasPrefix(m.Text, FilenamePrefix) {
		return "", false
	}
	return strings.TrimPrefix(m.Text, FilenamePrefix), true
}

// SizeField returns the raw text after the size tag, unparsed.
func (m Message) SizeField() (string, bool) {
	if m.IsChunk() || !strings.HasPrefix(m.Text, SizePrefix) {
		return "", false
	}
	return strings.TrimPrefix(m.Text, SizePrefix), true
}

func (m Message) IsPull() bool {
	return !m.IsChunk() && m.Text == MsgPull
}

func (m Message) IsDone() bool {
	return !m.IsChunk() && m.Text == MsgDone
}

// Kind is a short label used in logs.
func (m Message) Kind() string {
	switch {
	case m.IsChunk():
		return "chunk"
	case m.IsPull():
		return "pull"
	case m.IsDone():
		return "done"
	case strings.HasPrefix(m.Text, FilenamePrefix):
		return "filename"
	case strings.HasPrefix(m.Text, SizePrefix):
		return "size"
	default:
		return "unknown"
	}
}
