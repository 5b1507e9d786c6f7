package converter

import "errors"

var (
	ErrInvalidResolution = errors.New("invalid resolution")
	ErrInvalidColor      = errors.New("invalid background color")
	ErrInvalidTarget     = errors.New("invalid target size")

	ErrDecode          = errors.New("failed to decode image")
	ErrDegenerateImage = errors.New("degenerate image dimensions")
	ErrEncode          = errors.New("failed to encode image")
	ErrWrite           = errors.New("failed to write image")
)
