// Package sink writes received files to the download directory.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
)

var ErrInvalidName = errors.New("invalid file name")

const maxDuplicates = 1000

type Saver struct {
	dir string
}

func NewSaver(dir string) *Saver {
	return &Saver{dir: dir}
}

// SafeName reduces an announced name to a single path element inside the download directory.
func SafeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "" || base == "." || base == ".." || base == "/" || base == string(os.PathSeparator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}

// Save writes data under the download directory and returns the final path.
// An existing file is never overwritten; a numbered name is picked instead.
func (s *Saver) Save(name string, data []byte) (string, error) {
	base, err := SafeName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	dirClean := filepath.Clean(s.dir)

	tmp, err := os.CreateTemp(dirClean, ".directdrop-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 0; i < maxDuplicates; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		target := filepath.Join(dirClean, candidate)
		// Link fails if target exists, which rename would silently replace.
		if err := os.Link(tmpName, target); err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			os.Remove(tmpName)
			return "", fmt.Errorf("failed to save file: %w", err)
		}
		os.Remove(tmpName)
		logger.Log.Info("File saved", "path", target, "bytes", len(data))
		return target, nil
	}
	os.Remove(tmpName)
	return "", fmt.Errorf("too many files named %q in %s", base, dirClean)
}
