package chunker

import (
	"errors"
	"fmt"

	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
)

// DefaultChunkSize is the size of each file chunk in bytes.
const DefaultChunkSize = 16 * 1024

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrMissingChunk     = errors.New("missing chunk")
)

// TotalChunks returns ceil(size/chunkSize).
func TotalChunks(size, chunkSize int) int {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return (size + chunkSize - 1) / chunkSize
}

// Split partitions fully-buffered file content into ordered chunks. The last
// chunk is truncated to the remainder; empty input yields no chunks.
// Chunks share the backing array of data, which must not be modified afterwards.
func Split(data []byte, chunkSize int) ([]models.Chunk, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	total := TotalChunks(len(data), chunkSize)
	chunks := make([]models.Chunk, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(data))
		chunks = append(chunks, models.Chunk{
			Index: i,
			Data:  data[start:end:end],
		})
	}
	return chunks, nil
}

// Reassemble concatenates slots in index order. A nil slot means the chunk
// never arrived and the result would be partial, so it is an error.
func Reassemble(slots [][]byte) ([]byte, error) {
	size := 0
	for i, s := range slots {
		if s == nil {
			return nil, fmt.Errorf("%w at index %d", ErrMissingChunk, i)
		}
		size += len(s)
	}
	out := make([]byte, 0, size)
	for _, s := range slots {
		out = append(out, s...)
	}
	return out, nil
}
