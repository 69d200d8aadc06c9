package decoder

import (
	"context"
	"image/color"
	"image/gif"
	"io"

	"github.com/redfin/dirpy/core"
	apperrors "github.com/redfin/dirpy/errors"
)

func paletteHasTransparency(p color.Palette) bool {
	for _, c := range p {
		_, _, _, a := c.RGBA()
		if a != 0xffff {
			return true
		}
	}
	return false
}

// GIF decodes GIF images using the standard library. Only the first
// frame of an animated GIF is kept; dirpy's pipeline operates on a
// single still image (spec §3 "Non-goals").
type GIF struct{}

func NewGIF() *GIF { return &GIF{} }

func (g *GIF) CanDecode(format core.Format) bool {
	return format == core.FormatGIF
}

func (g *GIF) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "gif.decode", err)
	}

	anim, err := gif.DecodeAll(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "gif.decode", err)
	}
	if len(anim.Image) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, "gif.decode", apperrors.ErrEmptyInput)
	}
	img := anim.Image[0]

	bounds := img.Bounds()
	meta := core.Metadata{
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Format:     core.FormatGIF,
		ColorSpace: core.ColorSpaceRGB,
		HasAlpha:   paletteHasTransparency(img.Palette),
	}

	return &core.ImageData{
		Image:     img,
		Format:    core.FormatGIF,
		InFormat:  core.FormatGIF,
		OutFormat: core.FormatGIF,
		OutWidth:  bounds.Dx(),
		OutHeight: bounds.Dy(),
		MetaInfo:  meta,
	}, nil
}
