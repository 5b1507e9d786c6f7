package validation

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

type FileType string

const (
	FileTypePNG  FileType = "png"
	FileTypeJPEG FileType = "jpeg"
	FileTypeWebP FileType = "webp"
	FileTypeZIP  FileType = "zip"
)

var magicBytes = map[FileType][][]byte{
	FileTypePNG:  {{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	FileTypeJPEG: {{0xFF, 0xD8, 0xFF}},
	FileTypeZIP:  {{0x50, 0x4B, 0x03, 0x04}, {0x50, 0x4B, 0x05, 0x06}},
}

var extensions = map[string]FileType{
	".png":  FileTypePNG,
	".jpg":  FileTypeJPEG,
	".jpeg": FileTypeJPEG,
	".webp": FileTypeWebP,
	".zip":  FileTypeZIP,
}

// DetectFileType sniffs the leading bytes of r and rewinds it.
func DetectFileType(r io.ReadSeeker) (FileType, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	head := buffer[:n]
	if isWebP(head) {
		return FileTypeWebP, nil
	}
	for fileType, signatures := range magicBytes {
		for _, signature := range signatures {
			if bytes.HasPrefix(head, signature) {
				return fileType, nil
			}
		}
	}

	return "", ErrInvalidFileType
}

func isWebP(head []byte) bool {
	return len(head) >= 12 && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP"))
}

// ExtensionType maps a filename to the type its extension promises.
func ExtensionType(filename string) (FileType, bool) {
	t, ok := extensions[strings.ToLower(filepath.Ext(filename))]
	return t, ok
}

// ValidatePayload checks that filename has an accepted extension and that the
// content of r matches it.
func ValidatePayload(filename string, r io.ReadSeeker) (FileType, error) {
	want, ok := ExtensionType(filename)
	if !ok {
		return "", ErrUnsupportedFormat
	}

	got, err := DetectFileType(r)
	if err != nil {
		return "", err
	}
	if got != want {
		return "", ErrExtensionMismatch
	}

	return got, nil
}
