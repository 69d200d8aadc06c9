package encoder

import (
	"context"
	"fmt"
	"image"

	vipsadapter "github.com/redfin/dirpy/adapters/vips"
	"github.com/redfin/dirpy/core"
	apperrors "github.com/redfin/dirpy/errors"
)

// WebP encodes images to WebP via libvips (adapters/vips), the only
// in-pack backend with real WebP output — neither the standard library
// nor x/image has a WebP encoder. If libvips hasn't been started (see
// vips.Startup, called by the server at process start), Encode fails
// rather than silently emitting a mislabeled JPEG.
type WebP struct {
	DefaultQuality int
}

func NewWebP(defaultQuality int) *WebP {
	if defaultQuality <= 0 {
		defaultQuality = 85
	}
	return &WebP{DefaultQuality: defaultQuality}
}

func (w *WebP) CanEncode(format core.Format) bool { return format == core.FormatWebP }

func (w *WebP) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "webp.encode", err)
	}

	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "webp.encode", apperrors.ErrEmptyInput)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = w.DefaultQuality
	}

	out, available, err := vipsadapter.EncodeWebP(src, quality, opts.Lossless)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "webp.encode", err)
	}
	if !available {
		return nil, apperrors.New(apperrors.CategoryEncode, "webp.encode",
			fmt.Errorf("libvips not started; webp encoding unavailable"))
	}
	return out, nil
}