package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"canvasConverter/worker/archive"
	"canvasConverter/worker/converter"
)

var (
	ErrNoPayloads     = errors.New("no files uploaded")
	ErrEmptyBatch     = errors.New("no images found")
	ErrInvalidArchive = errors.New("unreadable archive")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

const archiveExtension = ".zip"

// Payload is one uploaded file: a standalone image or a zip archive.
type Payload = converter.Source

func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

func IsArchive(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == archiveExtension
}

type Collector struct {
	logger *zap.Logger
}

func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{logger: logger}
}

// Collect turns payloads into image jobs writing under outputRoot. A single
// zip payload is extracted into inputRoot and walked; anything else is taken
// as a flat list of images. Jobs are returned sorted by relative path.
func (c *Collector) Collect(ctx context.Context, payloads []Payload, inputRoot, outputRoot string) ([]converter.Job, error) {
	if len(payloads) == 0 {
		return nil, ErrNoPayloads
	}

	var (
		jobs []converter.Job
		err  error
	)
	if len(payloads) == 1 && IsArchive(payloads[0].Name()) {
		jobs, err = c.fromArchive(ctx, payloads[0], inputRoot, outputRoot)
	} else {
		jobs, err = c.fromFiles(ctx, payloads, outputRoot)
	}
	if err != nil {
		return nil, err
	}

	if len(jobs) == 0 {
		return nil, ErrEmptyBatch
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].RelPath < jobs[j].RelPath })

	c.logger.Info("Collected images",
		zap.Int("payloads", len(payloads)),
		zap.Int("jobs", len(jobs)),
	)

	return jobs, nil
}

func (c *Collector) fromArchive(ctx context.Context, p Payload, inputRoot, outputRoot string) ([]converter.Job, error) {
	staged := filepath.Join(inputRoot, "upload"+archiveExtension)
	if err := stage(p, staged); err != nil {
		return nil, err
	}

	f, err := os.Open(staged)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	extractRoot := filepath.Join(inputRoot, "extracted")
	n, err := archive.Extract(f, info.Size(), extractRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArchive, p.Name(), err)
	}

	c.logger.Info("Archive extracted",
		zap.String("archive", p.Name()),
		zap.Int("files", n),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	var jobs []converter.Job
	err = filepath.WalkDir(extractRoot, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !IsImage(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(extractRoot, file)
		if err != nil {
			return err
		}
		jobs = append(jobs, converter.NewJob(converter.FileSource{Path: file}, filepath.ToSlash(rel), outputRoot))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk extracted archive: %w", err)
	}

	return jobs, nil
}

// fromFiles keeps every payload, even one with an unrecognized extension; such
// a job fails on its own instead of being dropped silently. Payloads are read
// directly by their jobs and are not staged to disk.
func (c *Collector) fromFiles(ctx context.Context, payloads []Payload, outputRoot string) ([]converter.Job, error) {
	seen := make(map[string]int, len(payloads))
	jobs := make([]converter.Job, 0, len(payloads))

	for _, p := range payloads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := uniqueName(sanitizeFilename(p.Name()), seen)
		if !IsImage(name) {
			c.logger.Warn("Unrecognized image extension", zap.String("filename", name))
		}
		jobs = append(jobs, converter.NewJob(p, name, outputRoot))
	}

	return jobs, nil
}

func stage(p Payload, dst string) error {
	src, err := p.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", p.Name(), err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("stage %s: %w", p.Name(), err)
	}
	return out.Close()
}

func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return "image"
	}
	return base
}

// uniqueName appends -1, -2, ... before the extension when a flat upload
// repeats a filename, so every job keeps a distinct output path.
func uniqueName(name string, seen map[string]int) string {
	key := strings.ToLower(name)
	n := seen[key]
	seen[key] = n + 1
	if n == 0 {
		return name
	}

	ext := filepath.Ext(name)
	candidate := fmt.Sprintf("%s-%s%s", strings.TrimSuffix(name, ext), strconv.Itoa(n), ext)
	return uniqueName(candidate, seen)
}
