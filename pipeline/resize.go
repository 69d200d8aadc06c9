// Package pipeline implements the image-operation state machine (C3, spec
// §4.3): load, resize, crop, pad, transpose, save, dispatched by name from a
// closed core.OpRegistry.
package pipeline

import (
	"context"
	"image"

	"github.com/redfin/dirpy/core"
	apperrors "github.com/redfin/dirpy/errors"
	xdraw "golang.org/x/image/draw"
)

// filterSampler maps the resize "filter" option to a resampling kernel
// (§4.3.2). The default, when filter is unset, is CatmullRom — a
// high-quality antialiasing kernel, matching the spec's "high-quality
// antialiasing" default.
func filterSampler(name string) xdraw.Interpolator {
	switch name {
	case "nearest":
		return xdraw.NearestNeighbor
	case "bilinear":
		return xdraw.ApproxBiLinear
	case "bicubic":
		return xdraw.CatmullRom
	case "":
		return xdraw.CatmullRom
	default:
		return xdraw.CatmullRom
	}
}

// ResizeOp implements the resize command (§4.3.2).
type ResizeOp struct{}

func (ResizeOp) Apply(ctx context.Context, img *core.PipelineImage, opts core.Options) (*core.PipelineImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Fatal(0, err)
	}

	reqDims, numDims, err := parseDims(opts)
	if err != nil {
		return nil, err
	}
	img.ReqDims, img.NumDims = reqDims, numDims

	pct := opts.Get("pct")
	unlock := opts.Has("unlock")
	fill := opts.Has("fill")
	landscape := opts.Has("landscape")
	portrait := opts.Has("portrait")
	shrink := opts.Has("shrink")
	grow := opts.Has("grow")

	aspectModes := boolCount(unlock, fill, landscape, portrait)
	hasDims := numDims == 2 && (reqDims[0] != 0 || reqDims[1] != 0)

	if pct != "" {
		if aspectModes > 0 || shrink || grow || hasDims {
			return nil, apperrors.User("resize: pct is incompatible with dimension tokens, aspect modes, or directional guards")
		}
	} else if !hasDims {
		return nil, apperrors.User("resize: exactly one of pct or dimension tokens is required")
	}
	if aspectModes > 1 {
		return nil, apperrors.User("resize: unlock/fill/landscape/portrait are mutually exclusive")
	}
	if shrink && grow {
		return nil, apperrors.User("resize: shrink and grow are mutually exclusive")
	}
	if (unlock || fill || landscape) && (reqDims[0] == 0 || reqDims[1] == 0) {
		return nil, apperrors.User("resize: unlock/fill/landscape require both width and height")
	}

	outX, outY := img.OutWidth, img.OutHeight
	var ratio float64
	var newX, newY int
	dimsSet := false

	switch {
	case pct != "":
		p, perr := parsePercent(pct)
		if perr != nil {
			return nil, perr
		}
		ratio = p / 100
	case unlock:
		rx := float64(reqDims[0]) / float64(outX)
		ry := float64(reqDims[1]) / float64(outY)
		ratio = minF(rx, ry)
		newX, newY = reqDims[0], reqDims[1]
		dimsSet = true
	case fill:
		ratio = maxF(ratioOf(reqDims[0], outX), ratioOf(reqDims[1], outY))
	case landscape:
		rx, ry := ratioOf(reqDims[0], outX), ratioOf(reqDims[1], outY)
		if outX > outY {
			ratio = maxF(rx, ry)
		} else {
			ratio = minF(rx, ry)
		}
	case portrait:
		rx, ry := ratioOf(reqDims[0], outX), ratioOf(reqDims[1], outY)
		if outX > outY {
			ratio = minF(rx, ry)
		} else {
			ratio = maxF(rx, ry)
		}
	case reqDims[0] != 0 && reqDims[1] != 0:
		ratio = minF(ratioOf(reqDims[0], outX), ratioOf(reqDims[1], outY))
	case reqDims[0] != 0:
		ratio = ratioOf(reqDims[0], outX)
	default:
		ratio = ratioOf(reqDims[1], outY)
	}

	if shrink && ratio > 1 {
		return img, nil
	}
	if grow && ratio < 1 {
		return img, nil
	}

	if !dimsSet {
		newX = int(float64(outX) * ratio)
		newY = int(float64(outY) * ratio)
	}
	if newX <= 0 || newY <= 0 {
		return nil, apperrors.User("resize: computed target dimensions must be positive")
	}

	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.Fatal(0, apperrors.ErrEmptyInput)
	}

	sampler := filterSampler(opts.Get("filter"))
	dst := image.NewRGBA(image.Rect(0, 0, newX, newY))
	sampler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	img.Image = dst
	img.OutWidth = newX
	img.OutHeight = newY
	img.Modified = true
	return img, nil
}

func boolCount(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

func ratioOf(req, out int) float64 {
	if req == 0 {
		return 1
	}
	return float64(req) / float64(out)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
