// Package codec encodes transfer protocol messages for network channels.
//
// Chunk records are encoded as
//
//	flags(1) | index(4, big endian) | payload
//
// where flag bit 0 marks an lz4 compressed payload. Stream transports wrap every
// message in a frame:
//
//	kind(1) | length(4, big endian) | body
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/pierrec/lz4/v4"
)

const (
	FrameText  byte = 't'
	FrameChunk byte = 'c'

	flagLZ4 byte = 1 << 0

	chunkHeaderLen = 5
	frameHeaderLen = 5

	// MaxFrameSize bounds a single frame body and a decompressed payload.
	MaxFrameSize = 16 << 20
)

var (
	ErrShortChunk    = errors.New("chunk record too short")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrUnknownFrame  = errors.New("unknown frame kind")
	ErrBadIndex      = errors.New("chunk index out of range")
)

// EncodeChunk serializes a chunk record. With compress set the payload is lz4
// compressed, unless that would not make it smaller.
func EncodeChunk(c models.Chunk, compress bool) ([]byte, error) {
	if c.Index < 0 || uint64(c.Index) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", ErrBadIndex, c.Index)
	}
	payload := c.Data
	var flags byte
	if compress && len(c.Data) > 0 {
		compressed, err := compressPayload(c.Data)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(c.Data) {
			payload = compressed
			flags |= flagLZ4
		}
	}
	out := make([]byte, chunkHeaderLen+len(payload))
	out[0] = flags
	binary.BigEndian.PutUint32(out[1:chunkHeaderLen], uint32(c.Index))
	copy(out[chunkHeaderLen:], payload)
	return out, nil
}

func DecodeChunk(b []byte) (models.Chunk, error) {
	if len(b) < chunkHeaderLen {
		return models.Chunk{}, ErrShortChunk
	}
	flags := b[0]
	index := binary.BigEndian.Uint32(b[1:chunkHeaderLen])
	payload := b[chunkHeaderLen:]
	if flags&flagLZ4 != 0 {
		decompressed, err := decompressPayload(payload)
		if err != nil {
			return models.Chunk{}, err
		}
		payload = decompressed
	} else {
		payload = bytes.Clone(payload)
	}
	return models.Chunk{Index: int(index), Data: payload}, nil
}

// WriteFrame writes one message as a length-prefixed frame.
func WriteFrame(w io.Writer, msg models.Message, compress bool) error {
	kind := FrameText
	body := []byte(msg.Text)
	if msg.IsChunk() {
		encoded, err := EncodeChunk(*msg.Chunk, compress)
		if err != nil {
			return err
		}
		kind = FrameChunk
		body = encoded
	}
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	frame := make([]byte, frameHeaderLen+len(body))
	frame[0] = kind
	binary.BigEndian.PutUint32(frame[1:frameHeaderLen], uint32(len(body)))
	copy(frame[frameHeaderLen:], body)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame written by WriteFrame.
func ReadFrame(r io.Reader) (models.Message, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return models.Message{}, err
	}
	length := binary.BigEndian.Uint32(header[1:])
	if length > MaxFrameSize {
		return models.Message{}, ErrFrameTooLarge
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return models.Message{}, err
	}
	switch header[0] {
	case FrameText:
		return models.Text(string(body)), nil
	case FrameChunk:
		c, err := DecodeChunk(body)
		if err != nil {
			return models.Message{}, err
		}
		return models.ChunkRecord(c), nil
	default:
		return models.Message{}, fmt.Errorf("%w: %q", ErrUnknownFrame, header[0])
	}
}

func compressPayload(data []byte) ([]byte, error) {
	var compressed bytes.Buffer
	writer := lz4.NewWriter(&compressed)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("compression failed: %w", err)
	}
	return compressed.Bytes(), nil
}

func decompressPayload(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(io.LimitReader(reader, MaxFrameSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	if len(out) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return out, nil
}
