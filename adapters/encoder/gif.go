package encoder

import (
	"bytes"
	"context"
	"image"
	"image/gif"

	"github.com/redfin/dirpy/core"
	apperrors "github.com/redfin/dirpy/errors"
)

// GIF encodes images to GIF format using the standard library's
// quantizing encoder.
//
// opts.GIFTransIdx (§4.3.4 "trans") selects the palette index to treat
// as transparent, but image/gif's Encode exposes no way to set the
// Graphic Control Extension's transparent-color flag — only
// EncodeAll on a pre-built gif.GIF does, and that requires a palette
// already quantized by us rather than by the encoder. Encode therefore
// ignores GIFTransIdx, and the GIF it produces has no transparent
// palette index.
type GIF struct{}

func NewGIF() *GIF { return &GIF{} }

func (g *GIF) CanEncode(format core.Format) bool { return format == core.FormatGIF }

func (g *GIF) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "gif.encode", err)
	}

	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "gif.encode", apperrors.ErrEmptyInput)
	}

	var buf bytes.Buffer
	if err := gif.Encode(&buf, src, &gif.Options{NumColors: 256}); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "gif.encode", err)
	}
	return buf.Bytes(), nil
}
