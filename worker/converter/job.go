package converter

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Source is where a job reads its encoded image from.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return filepath.Base(s.Path) }

func (s FileSource) Open() (io.ReadCloser, error) { return os.Open(s.Path) }

type BytesSource struct {
	Filename string
	Data     []byte
}

func (s BytesSource) Name() string { return s.Filename }

func (s BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

// Job converts one source image into Dest. RelPath is the slash-separated
// path the result keeps inside the output archive.
type Job struct {
	RelPath string
	Source  Source
	Dest    string
}

func NewJob(src Source, relPath, outputRoot string) Job {
	return Job{
		RelPath: relPath,
		Source:  src,
		Dest:    filepath.Join(outputRoot, filepath.FromSlash(relPath)),
	}
}
