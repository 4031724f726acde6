package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/boobootoo2/medbilldozer-sub000/internal/worker"
)

// LocalSource reads a file, or every supported file under a directory
type LocalSource struct {
	path string
}

// NewLocalSource creates a source for path
func NewLocalSource(path string) *LocalSource {
	return &LocalSource{path: path}
}

// Load reads the file or walks the directory in lexical order. A single file
// is read regardless of extension.
func (s *LocalSource) Load(ctx context.Context) ([]worker.Input, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	if !info.IsDir() {
		in, err := readLocal(s.path)
		if err != nil {
			return nil, err
		}
		return []worker.Input{in}, nil
	}

	var paths []string
	err = filepath.WalkDir(s.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && supported(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.path, err)
	}
	sort.Strings(paths)

	inputs := make([]worker.Input, 0, len(paths))
	for _, p := range paths {
		in, err := readLocal(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// Close is a no-op
func (s *LocalSource) Close() error {
	return nil
}

func readLocal(p string) (worker.Input, error) {
	body, err := os.ReadFile(p)
	if err != nil {
		return worker.Input{}, fmt.Errorf("read %s: %w", p, err)
	}
	text, err := decode(p, "", body)
	if err != nil {
		return worker.Input{}, err
	}
	return worker.Input{Name: filepath.Base(p), Text: text}, nil
}
