package codec

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"

	// Source formats accepted from photos and image documents
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"shrinkbot/pkg/errors"
)

// DefaultMaxPixels caps decoded image area (about 10000x10000)
const DefaultMaxPixels = 100_000_000

// JPEG decodes any registered image format and re-encodes it as baseline JPEG
type JPEG struct {
	maxPixels int
}

// NewJPEG creates a JPEG codec; maxPixels <= 0 selects DefaultMaxPixels
func NewJPEG(maxPixels int) *JPEG {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &JPEG{maxPixels: maxPixels}
}

// Decode parses src, refusing images whose area exceeds the pixel cap
func (c *JPEG) Decode(ctx context.Context, src []byte) (image.Image, error) {
	if len(src) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty image")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, errors.Wrap(err, "unrecognized image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > c.maxPixels {
		return nil, errors.Newf("%s image %dx%d exceeds %d pixels", format, cfg.Width, cfg.Height, c.maxPixels)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", format)
	}

	return flatten(img), nil
}

// Encode writes img as JPEG at quality
func (c *JPEG) Encode(ctx context.Context, img image.Image, quality int, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// flatten composites images with an alpha channel onto white; JPEG has no transparency
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst
}
