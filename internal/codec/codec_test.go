package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEncoding(t *testing.T) {
	compressible := bytes.Repeat([]byte("directdrop "), 2000)
	tests := []struct {
		name     string
		data     []byte
		compress bool
		wantLZ4  bool
	}{
		{"raw", []byte("hello"), false, false},
		{"empty", []byte{}, true, false},
		{"compressible", compressible, true, true},
		{"incompressible stays raw", []byte{0x01, 0x9f, 0x33}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeChunk(models.Chunk{Index: 7, Data: tt.data}, tt.compress)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLZ4, encoded[0]&flagLZ4 != 0)
			if tt.wantLZ4 {
				assert.Less(t, len(encoded), len(tt.data))
			}
			decoded, err := DecodeChunk(encoded)
			require.NoError(t, err)
			assert.Equal(t, 7, decoded.Index)
			assert.Equal(t, tt.data, decoded.Data)
		})
	}
}

func TestDecodeChunkShort(t *testing.T) {
	_, err := DecodeChunk([]byte{0, 0, 0})
	assert.ErrorIs(t, err, ErrShortChunk)
}

func TestDecodeChunkEmptyPayloadNotNil(t *testing.T) {
	decoded, err := DecodeChunk([]byte{0, 0, 0, 0, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Index)
	assert.NotNil(t, decoded.Data)
	assert.Empty(t, decoded.Data)

	var stream bytes.Buffer
	require.NoError(t, WriteFrame(&stream, models.ChunkRecord(models.Chunk{Index: 0, Data: []byte{}}), false))
	msg, err := ReadFrame(&stream)
	require.NoError(t, err)
	require.True(t, msg.IsChunk())
	assert.NotNil(t, msg.Chunk.Data)
}

func TestEncodeChunkNegativeIndex(t *testing.T) {
	_, err := EncodeChunk(models.Chunk{Index: -1}, false)
	assert.ErrorIs(t, err, ErrBadIndex)
}

func TestFrameStream(t *testing.T) {
	var stream bytes.Buffer
	msgs := []models.Message{
		models.FilenameAnnounce("a.txt"),
		models.SizeAnnounce(2),
		models.ChunkRecord(models.Chunk{Index: 0, Data: bytes.Repeat([]byte("x"), 4096)}),
		models.ChunkRecord(models.Chunk{Index: 1, Data: []byte("tail")}),
		models.Done(),
	}
	for _, m := range msgs {
		require.NoError(t, WriteFrame(&stream, m, true))
	}
	for _, want := range msgs {
		got, err := ReadFrame(&stream)
		require.NoError(t, err)
		assert.Equal(t, want.Text, got.Text)
		if want.IsChunk() {
			require.True(t, got.IsChunk())
			assert.Equal(t, want.Chunk.Index, got.Chunk.Index)
			assert.Equal(t, want.Chunk.Data, got.Chunk.Data)
		}
	}
	_, err := ReadFrame(&stream)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var header [frameHeaderLen]byte
	header[0] = FrameText
	binary.BigEndian.PutUint32(header[1:], MaxFrameSize+1)
	_, err := ReadFrame(bytes.NewReader(header[:]))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameUnknownKind(t *testing.T) {
	frame := []byte{'z', 0, 0, 0, 1, 'a'}
	_, err := ReadFrame(bytes.NewReader(frame))
	assert.ErrorIs(t, err, ErrUnknownFrame)
}

func TestReadFrameTruncatedBody(t *testing.T) {
	frame := []byte{FrameText, 0, 0, 0, 5, 'a'}
	_, err := ReadFrame(bytes.NewReader(frame))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
