package compression

import (
	"context"
	"image"
	"io"
)

// Codec is the image encoding capability used by the engine
type Codec interface {
	// Decode parses source bytes into an image
	Decode(ctx context.Context, src []byte) (image.Image, error)

	// Encode writes img as a lossy JPEG at the given quality
	Encode(ctx context.Context, img image.Image, quality int, w io.Writer) error
}
