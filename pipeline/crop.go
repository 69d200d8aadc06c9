package pipeline

import (
	"context"
	"image"
	"image/draw"

	"github.com/redfin/dirpy/core"
	"github.com/redfin/dirpy/dims"
	apperrors "github.com/redfin/dirpy/errors"
)

// defaultFuzz is the border auto-crop fuzz default (§4.3.3 mode 1).
const defaultFuzz = 100

// CropOp implements the crop command's three modes: border auto-crop,
// gravity crop, and coordinate crop (§4.3.3).
type CropOp struct{}

func (CropOp) Apply(ctx context.Context, img *core.PipelineImage, opts core.Options) (*core.PipelineImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Fatal(0, err)
	}

	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.Fatal(0, apperrors.ErrEmptyInput)
	}

	switch {
	case opts.Has("border"):
		return cropBorder(img, src, opts)
	default:
		reqDims, numDims, err := parseDims(opts)
		if err != nil {
			return nil, err
		}
		img.ReqDims, img.NumDims = reqDims, numDims
		if numDims == 4 {
			return cropCoordinate(img, src, opts, reqDims)
		}
		return cropGravity(img, src, opts, reqDims)
	}
}

// cropBorder implements mode 1 (§4.3.3, §9 "Open question"): per-channel
// absolute difference against a constant image painted with the top-left
// pixel, scaled by 2 and reduced by fuzz; the bounding box of the remaining
// non-zero region is the crop box. Treated as definitive at the algorithmic
// level per the spec's design note.
func cropBorder(img *core.PipelineImage, src image.Image, opts core.Options) (*core.PipelineImage, error) {
	fuzz := defaultFuzz
	if v := opts.Get("border"); v != "" {
		n, err := parseFuzz(v)
		if err != nil {
			return nil, err
		}
		fuzz = n
	}

	b := src.Bounds()
	bg := src.At(b.Min.X, b.Min.Y)
	bgR, bgG, bgB, _ := bg.RGBA()

	x0, y0, x1, y1 := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	found := false

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			// A pixel counts as content if any single channel survives
			// the x2-minus-fuzz step, so take the largest channel diff.
			d := channelDiff(r, bgR)
			if dg := channelDiff(g, bgG); dg > d {
				d = dg
			}
			if db := channelDiff(bl, bgB); db > d {
				d = db
			}
			d = d*2 - fuzz
			if d > 0 {
				found = true
				if x < x0 {
					x0 = x
				}
				if y < y0 {
					y0 = y
				}
				if x+1 > x1 {
					x1 = x + 1
				}
				if y+1 > y1 {
					y1 = y + 1
				}
			}
		}
	}
	if !found {
		x0, y0, x1, y1 = b.Min.X, b.Min.Y, b.Max.X, b.Max.Y
	}

	outX, outY := b.Dx(), b.Dy()
	if opts.Has("symmetric") {
		if x0 > outX-x1 {
			x0 = outX - x1
		} else if x1 < outX-x0 {
			x1 = outX - x0
		}
		if y0 > outY-y1 {
			y0 = outY - y1
		} else if y1 < outY-y0 {
			y1 = outY - y0
		}
	}

	return applyCrop(img, src, x0, y0, x1, y1)
}

func parseFuzz(raw string) (int, error) {
	n, err := parseIntStrict(raw)
	if err != nil || n < 1 || n > 254 {
		return 0, apperrors.User("crop: border fuzz must be an integer in 1..254")
	}
	return n, nil
}

func channelDiff(a, b uint32) int {
	ai, bi := int(a>>8), int(b>>8)
	if ai > bi {
		return ai - bi
	}
	return bi - ai
}

// cropGravity implements mode 2: exactly 2 dims, clamped to out-dims, placed
// by the current gravity (§4.2, §4.3.3 mode 2).
func cropGravity(img *core.PipelineImage, src image.Image, opts core.Options, reqDims [4]int) (*core.PipelineImage, error) {
	b := src.Bounds()
	outX, outY := b.Dx(), b.Dy()

	reqX := clampInt(reqDims[0], 0, outX)
	reqY := clampInt(reqDims[1], 0, outY)
	if reqX == 0 {
		reqX = outX
	}
	if reqY == 0 {
		reqY = outY
	}

	if reqX == outX && reqY == outY {
		return img, nil // no-op crop: must not set Modified (§8 "No-op crop")
	}

	g, err := gravityOf(opts, img.Gravity)
	if err != nil {
		return nil, err
	}
	img.Gravity = g

	x0, y0, x1, y1 := dims.GravityBox(g, reqX, reqY, outX, outY)
	return applyCrop(img, src, x0, y0, x1, y1)
}

// cropCoordinate implements mode 3: exactly 4 dims, x0<x1, y0<y1, box fully
// inside the source image; gravity is forbidden (§4.3.3 mode 3).
func cropCoordinate(img *core.PipelineImage, src image.Image, opts core.Options, reqDims [4]int) (*core.PipelineImage, error) {
	if opts.Has("gravity") {
		return nil, apperrors.User("crop: gravity is forbidden with coordinate crop")
	}
	x0, y0, x1, y1 := reqDims[0], reqDims[1], reqDims[2], reqDims[3]
	if x0 >= x1 || y0 >= y1 {
		return nil, apperrors.User("crop: coordinate box requires x0<x1 and y0<y1")
	}
	b := src.Bounds()
	if x0 < 0 || y0 < 0 || x1 > b.Dx() || y1 > b.Dy() {
		return nil, apperrors.User("Crop corners must be inside source image border")
	}
	return applyCrop(img, src, x0, y0, x1, y1)
}

func applyCrop(img *core.PipelineImage, src image.Image, x0, y0, x1, y1 int) (*core.PipelineImage, error) {
	b := src.Bounds()
	rect := image.Rect(b.Min.X+x0, b.Min.Y+y0, b.Min.X+x1, b.Min.Y+y1)
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return nil, apperrors.User("crop: computed box is empty")
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)

	img.Image = dst
	img.OutWidth = w
	img.OutHeight = h
	img.Modified = true
	return img, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseIntStrict parses a plain non-negative integer.
func parseIntStrict(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, apperrors.User("expected an integer, got empty string")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, apperrors.User("expected an integer, got %q", s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
