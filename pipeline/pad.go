package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	"github.com/redfin/dirpy/core"
	"github.com/redfin/dirpy/dims"
	apperrors "github.com/redfin/dirpy/errors"
)

// PadOp implements the pad command (§4.3.4).
type PadOp struct{}

func (PadOp) Apply(ctx context.Context, img *core.PipelineImage, opts core.Options) (*core.PipelineImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Fatal(0, err)
	}

	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.Fatal(0, apperrors.ErrEmptyInput)
	}

	reqDims, numDims, err := parseDims(opts)
	if err != nil {
		return nil, err
	}
	img.ReqDims, img.NumDims = reqDims, numDims
	if numDims != 2 {
		return nil, apperrors.User("pad: requires exactly 2 dimensions")
	}

	b := src.Bounds()
	outX, outY := b.Dx(), b.Dy()
	padX, padY := reqDims[0], reqDims[1]
	if padX <= outX || padY <= outY {
		return nil, apperrors.User("pad: target dimensions must exceed the current size")
	}

	g, err := gravityOf(opts, img.Gravity)
	if err != nil {
		return nil, err
	}
	img.Gravity = g

	trans := -1
	if opts.Has("trans") {
		t, terr := parseIntStrict(opts.Get("trans"))
		if terr != nil || t < 0 || t > 255 {
			return nil, apperrors.User("pad: trans must be an integer in 0..255")
		}
		trans = t
	}

	bg := normalizeHexColor(opts.Get("bg"))
	bgColor, cerr := parseColor(bg)
	if cerr != nil {
		return nil, cerr
	}

	x0, y0, x1, y1 := dims.GravityBox(g, outX, outY, padX, padY)

	dst := image.NewRGBA(image.Rect(0, 0, padX, padY))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bgColor}, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(x0, y0, x1, y1), src, b.Min, draw.Src)

	if trans >= 0 {
		padArea := image.Rect(x0, y0, x1, y1)
		for y := dst.Bounds().Min.Y; y < dst.Bounds().Max.Y; y++ {
			for x := dst.Bounds().Min.X; x < dst.Bounds().Max.X; x++ {
				if (image.Point{X: x, Y: y}).In(padArea) {
					continue
				}
				r, g, b, _ := dst.At(x, y).RGBA()
				dst.Set(x, y, color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(trans)})
			}
		}
		img.Trans = trans
	}

	img.Image = dst
	img.OutWidth = padX
	img.OutHeight = padY
	img.Modified = true
	return img, nil
}

func parseColor(name string) (color.Color, error) {
	if len(name) == 7 && name[0] == '#' {
		var r, g, b uint8
		if _, err := parseHexByte(name[1:3], &r); err != nil {
			return nil, apperrors.User("pad: malformed bg color %q", name)
		}
		if _, err := parseHexByte(name[3:5], &g); err != nil {
			return nil, apperrors.User("pad: malformed bg color %q", name)
		}
		if _, err := parseHexByte(name[5:7], &b); err != nil {
			return nil, apperrors.User("pad: malformed bg color %q", name)
		}
		return color.RGBA{R: r, G: g, B: b, A: 255}, nil
	}
	switch name {
	case "white":
		return color.White, nil
	case "black":
		return color.Black, nil
	default:
		return nil, apperrors.User("pad: unrecognized bg color %q", name)
	}
}

func parseHexByte(s string, out *uint8) (bool, error) {
	n, err := hexToInt(s)
	if err != nil {
		return false, err
	}
	*out = uint8(n)
	return true, nil
}

func hexToInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		n <<= 4
		switch {
		case r >= '0' && r <= '9':
			n |= int(r - '0')
		case r >= 'a' && r <= 'f':
			n |= int(r-'a') + 10
		case r >= 'A' && r <= 'F':
			n |= int(r-'A') + 10
		default:
			return 0, apperrors.User("malformed hex digit %q", string(r))
		}
	}
	return n, nil
}
