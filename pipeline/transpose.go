package pipeline

import (
	"context"
	"image"

	"github.com/redfin/dirpy/core"
	apperrors "github.com/redfin/dirpy/errors"
)

// TransposeOp implements the transpose command (§4.3.5): exactly one of
// flipvert, fliphorz, rotate90, rotate180, rotate270.
type TransposeOp struct{}

func (TransposeOp) Apply(ctx context.Context, img *core.PipelineImage, opts core.Options) (*core.PipelineImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Fatal(0, err)
	}

	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.Fatal(0, apperrors.ErrEmptyInput)
	}

	modes := []string{"flipvert", "fliphorz", "rotate90", "rotate180", "rotate270"}
	set := ""
	count := 0
	for _, m := range modes {
		if opts.Has(m) {
			set = m
			count++
		}
	}
	if count != 1 {
		return nil, apperrors.User("transpose: exactly one of flipvert/fliphorz/rotate90/rotate180/rotate270 is required")
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	switch set {
	case "flipvert":
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(w-1-x, y, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	case "fliphorz":
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(x, h-1-y, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	case "rotate180":
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(w-1-x, h-1-y, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	case "rotate90":
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(h-1-y, x, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	case "rotate270":
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(y, w-1-x, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}

	img.Image = dst
	img.OutWidth = dst.Bounds().Dx()
	img.OutHeight = dst.Bounds().Dy()
	img.Modified = true
	return img, nil
}
