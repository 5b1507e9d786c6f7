// Package archive extracts uploaded zip archives and packs converted output
// trees back into a single deflate-compressed zip.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

var (
	ErrInvalidArchive = errors.New("invalid archive")
	ErrUnsafePath     = errors.New("archive entry escapes destination")
	ErrPackaging      = errors.New("failed to package output")
)

// Extract unpacks every regular file in the archive into dst and returns the
// number of files written.
func Extract(ra io.ReaderAt, size int64, dst string) (int, error) {
	// Insecure entry names still yield a usable reader; they are rejected
	// per entry below.
	zr, err := zip.NewReader(ra, size)
	if zr == nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	root, err := filepath.Abs(dst)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, f := range zr.File {
		target, err := entryPath(root, f.Name)
		if err != nil {
			return count, err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}

		if err := extractFile(f, target); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func entryPath(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	target := filepath.Join(root, clean)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrInvalidArchive, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("%w: read %s: %v", ErrInvalidArchive, f.Name, err)
	}
	return out.Close()
}

// Pack zips every file under root. Entry names are slash-separated paths
// relative to root; directories are implied and not stored.
func Pack(root string) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTo(&buf, root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func WriteTo(w io.Writer, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrPackaging, root)
	}

	zw := zip.NewWriter(w)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, filepath.ToSlash(rel))
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("%w: %v", ErrPackaging, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrPackaging, err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}
