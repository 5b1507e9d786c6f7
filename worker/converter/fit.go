package converter

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// FitAndPad scales img to fit inside the target canvas without cropping and
// centers it on a canvas filled with the target background.
//
// Transparency is dropped before scaling rather than composited over the
// background, so fully transparent regions keep whatever color data the source
// stored for them.
func FitAndPad(img image.Image, target TargetSpec) (*image.NRGBA, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrDecode)
	}

	b := img.Bounds()
	nw, nh, err := ScaledSize(b.Dx(), b.Dy(), target)
	if err != nil {
		return nil, err
	}

	resized := imaging.Resize(Flatten(img), nw, nh, imaging.Lanczos)
	setOpaque(resized)

	canvas := imaging.New(target.Width, target.Height, target.Background)
	return imaging.Paste(canvas, resized, Offset(nw, nh, target)), nil
}

// ScaledSize returns the largest size with the source aspect ratio that fits
// the target. The constraining axis always matches the target exactly; the
// other axis is floored.
func ScaledSize(w, h int, target TargetSpec) (int, int, error) {
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: source %dx%d", ErrDegenerateImage, w, h)
	}

	W, H := int64(target.Width), int64(target.Height)
	sw, sh := int64(w), int64(h)

	var nw, nh int64
	if W*sh <= H*sw {
		nw = W
		nh = sh * W / sw
	} else {
		nh = H
		nw = sw * H / sh
	}

	if nw == 0 || nh == 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d scales to %dx%d", ErrDegenerateImage, w, h, nw, nh)
	}

	return int(nw), int(nh), nil
}

// Offset centers a nw x nh image on the target. Odd leftovers go to the
// right and bottom edges.
func Offset(nw, nh int, target TargetSpec) image.Point {
	return image.Pt((target.Width-nw)/2, (target.Height-nh)/2)
}

// Flatten returns an opaque copy of img with its origin at (0, 0).
func Flatten(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	setOpaque(dst)
	return dst
}

func setOpaque(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}
