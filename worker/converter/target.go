package converter

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"strings"
)

type Resolution string

const (
	ResolutionSquare   Resolution = "1080x1080"
	ResolutionPortrait Resolution = "1080x1920"
)

var resolutions = map[Resolution][2]int{
	ResolutionSquare:   {1080, 1080},
	ResolutionPortrait: {1080, 1920},
}

func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.TrimSpace(s))
	if _, ok := resolutions[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	return r, nil
}

// Size returns the canvas width and height for r. Unknown values yield 0x0.
func (r Resolution) Size() (int, int) {
	dims := resolutions[r]
	return dims[0], dims[1]
}

// TargetSpec is the canvas every image in a batch is fitted onto.
type TargetSpec struct {
	Width      int
	Height     int
	Background color.NRGBA
}

func NewTargetSpec(resolution, background string) (TargetSpec, error) {
	r, err := ParseResolution(resolution)
	if err != nil {
		return TargetSpec{}, err
	}

	bg, err := ParseHexColor(background)
	if err != nil {
		return TargetSpec{}, err
	}

	w, h := r.Size()
	return TargetSpec{Width: w, Height: h, Background: bg}, nil
}

func (t TargetSpec) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidTarget, t.Width, t.Height)
	}
	return nil
}

// ParseHexColor accepts "rrggbb" with or without a leading '#'.
func ParseHexColor(s string) (color.NRGBA, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(raw) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	b, err := hex.DecodeString(raw)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}

	return color.NRGBA{R: b[0], G: b[1], B: b[2], A: 0xff}, nil
}
