// Package source reads the file a sharer offers and keeps it current.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/IamAkshayKaushik/DirectDrop/internal/chunker"
	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
)

// File is a fully buffered, already chunked file ready to be served.
type File struct {
	Name      string
	Path      string
	Size      int
	ChunkSize int
	Chunks    []models.Chunk
}

type Result struct {
	File *File
	Err  error
}

// Load reads path and splits it into chunkSize pieces.
func Load(path string, chunkSize int) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	chunks, err := chunker.Split(data, chunkSize)
	if err != nil {
		return nil, err
	}
	f := &File{
		Name:      filepath.Base(path),
		Path:      path,
		Size:      len(data),
		ChunkSize: chunkSize,
		Chunks:    chunks,
	}
	logger.Log.Info("File loaded", "path", path, "bytes", f.Size, "total_chunks", len(chunks))
	return f, nil
}

// LoadAsync reads the file on its own goroutine. The channel yields exactly one result.
func LoadAsync(ctx context.Context, path string, chunkSize int) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		f, err := Load(path, chunkSize)
		if ctx.Err() != nil {
			out <- Result{Err: ctx.Err()}
			return
		}
		out <- Result{File: f, Err: err}
	}()
	return out
}
