package converter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

const JPEGQuality = 90

type Converter struct {
	logger *zap.Logger
}

func NewConverter(logger *zap.Logger) *Converter {
	return &Converter{logger: logger}
}

// Convert decodes job.Source, fits it onto the target canvas and writes the
// encoded result to job.Dest. The context is checked between stages.
func (c *Converter) Convert(ctx context.Context, job Job, target TargetSpec) error {
	c.logger.Debug("Starting conversion",
		zap.String("path", job.RelPath),
		zap.String("output", job.Dest),
		zap.Int("width", target.Width),
		zap.Int("height", target.Height),
	)

	src, err := c.decode(job.Source)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	canvas, err := FitAndPad(src, target)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(job.Dest), ".webp") {
		c.logger.Debug("Encoding webp destination as JPEG",
			zap.String("path", job.RelPath),
		)
	}

	var buf bytes.Buffer
	if err := encode(&buf, canvas, job.Dest); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(job.Dest), 0755); err != nil {
		return fmt.Errorf("%w: create directory: %v", ErrWrite, err)
	}
	if err := os.WriteFile(job.Dest, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	c.logger.Debug("Conversion completed",
		zap.String("path", job.RelPath),
		zap.Int("bytes", buf.Len()),
	)

	return nil
}

func (c *Converter) decode(src Source) (image.Image, error) {
	r, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDecode, src.Name(), err)
	}
	defer r.Close()

	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, src.Name(), err)
	}

	return img, nil
}

// encode picks the output format from the destination extension. There is no
// webp encoder available, so .webp destinations carry JPEG data.
func encode(buf *bytes.Buffer, img image.Image, dest string) error {
	var err error
	switch strings.ToLower(filepath.Ext(dest)) {
	case ".png":
		err = imaging.Encode(buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case ".jpg", ".jpeg", ".webp":
		err = imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
	default:
		return fmt.Errorf("%w: unsupported format: %s", ErrEncode, filepath.Ext(dest))
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}
