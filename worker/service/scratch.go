package service

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch is a per-batch working area under a unique root, so concurrent
// batches never share staging or output directories.
type Scratch struct {
	Root   string
	Input  string
	Output string
}

func NewScratch(base string) (*Scratch, error) {
	if base == "" {
		base = os.TempDir()
	}

	root := filepath.Join(base, uuid.New().String())
	s := &Scratch{
		Root:   root,
		Input:  filepath.Join(root, "input"),
		Output: filepath.Join(root, "output"),
	}

	for _, dir := range []string{s.Input, s.Output} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			os.RemoveAll(root)
			return nil, fmt.Errorf("create scratch directory: %w", err)
		}
	}

	return s, nil
}

func (s *Scratch) Close() error {
	return os.RemoveAll(s.Root)
}
