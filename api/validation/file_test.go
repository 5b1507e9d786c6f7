package validation

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

var (
	pngHeader  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}
	webpHeader = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
	zipHeader  = []byte{0x50, 0x4B, 0x03, 0x04, 0x14}
	emptyZip   = []byte{0x50, 0x4B, 0x05, 0x06, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
)

func TestDetectFileType(t *testing.T) {
	cases := map[string]struct {
		data []byte
		want FileType
	}{
		"png":       {pngHeader, FileTypePNG},
		"jpeg":      {jpegHeader, FileTypeJPEG},
		"webp":      {webpHeader, FileTypeWebP},
		"zip":       {zipHeader, FileTypeZIP},
		"empty zip": {emptyZip, FileTypeZIP},
	}

	for name, tc := range cases {
		r := bytes.NewReader(tc.data)
		got, err := DetectFileType(r)
		if err != nil {
			t.Errorf("%s: DetectFileType failed: %v", name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: expected %s, got %s", name, tc.want, got)
		}

		pos, _ := r.Seek(0, io.SeekCurrent)
		if pos != 0 {
			t.Errorf("%s: expected reader rewound, at %d", name, pos)
		}
	}
}

func TestDetectFileType_Unknown(t *testing.T) {
	if _, err := DetectFileType(bytes.NewReader([]byte("GIF89a"))); !errors.Is(err, ErrInvalidFileType) {
		t.Errorf("Expected ErrInvalidFileType, got %v", err)
	}
	if _, err := DetectFileType(bytes.NewReader(nil)); !errors.Is(err, ErrInvalidFileType) {
		t.Errorf("Expected ErrInvalidFileType for empty input, got %v", err)
	}
}

func TestValidatePayload(t *testing.T) {
	if _, err := ValidatePayload("photo.JPG", bytes.NewReader(jpegHeader)); err != nil {
		t.Errorf("Expected jpeg to validate, got %v", err)
	}
	if _, err := ValidatePayload("bundle.zip", bytes.NewReader(zipHeader)); err != nil {
		t.Errorf("Expected zip to validate, got %v", err)
	}
	if _, err := ValidatePayload("photo.png", bytes.NewReader(jpegHeader)); !errors.Is(err, ErrExtensionMismatch) {
		t.Errorf("Expected ErrExtensionMismatch, got %v", err)
	}
	if _, err := ValidatePayload("anim.gif", bytes.NewReader(jpegHeader)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}
