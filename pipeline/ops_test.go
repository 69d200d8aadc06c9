package pipeline

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/redfin/dirpy/core"
)

func testImage(w, h int, fill color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	return img
}

func newPipelineImage(img image.Image) *core.PipelineImage {
	b := img.Bounds()
	pi := core.NewPipelineImage()
	pi.Image = img
	pi.OutWidth = b.Dx()
	pi.OutHeight = b.Dy()
	pi.InFormat = core.FormatJPEG
	return pi
}

func mustOptions(kv map[string]string, flags ...string) core.Options {
	o := core.Options{}
	for k, v := range kv {
		o[k] = core.OptionValue{Str: v}
	}
	for _, f := range flags {
		o[f] = core.OptionValue{True: true}
	}
	return o
}

func TestResizeOp_PctShrinks(t *testing.T) {
	img := newPipelineImage(testImage(200, 100, color.White))
	out, err := (ResizeOp{}).Apply(context.Background(), img, mustOptions(map[string]string{"pct": "50"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.OutWidth != 100 || out.OutHeight != 50 {
		t.Fatalf("expected 100x50, got %dx%d", out.OutWidth, out.OutHeight)
	}
	if !out.Modified {
		t.Fatalf("expected Modified=true after resize")
	}
}

func TestResizeOp_RequiresPctOrDims(t *testing.T) {
	img := newPipelineImage(testImage(200, 100, color.White))
	_, err := (ResizeOp{}).Apply(context.Background(), img, mustOptions(nil))
	if err == nil {
		t.Fatalf("expected error when neither pct nor dimension tokens are set")
	}
}

func TestResizeOp_ShrinkGuardSkipsUpscale(t *testing.T) {
	img := newPipelineImage(testImage(100, 100, color.White))
	out, err := (ResizeOp{}).Apply(context.Background(), img, mustOptions(map[string]string{"200x200": ""}, "shrink"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.OutWidth != 100 || out.OutHeight != 100 {
		t.Fatalf("expected no-op (shrink guard blocks upscale), got %dx%d", out.OutWidth, out.OutHeight)
	}
	if out.Modified {
		t.Fatalf("shrink guard no-op must not set Modified")
	}
}

func TestResizeOp_UnlockRequiresBothDims(t *testing.T) {
	img := newPipelineImage(testImage(200, 100, color.White))
	opts := core.Options{"200x": core.OptionValue{True: true}, "unlock": core.OptionValue{True: true}}
	_, err := (ResizeOp{}).Apply(context.Background(), img, opts)
	if err == nil {
		t.Fatalf("expected error: unlock requires both width and height")
	}
}

func TestCropOp_NoOpLeavesModifiedFalse(t *testing.T) {
	img := newPipelineImage(testImage(100, 100, color.White))
	out, err := (CropOp{}).Apply(context.Background(), img, mustOptions(map[string]string{"100x100": ""}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Modified {
		t.Fatalf("expected no-op crop to leave Modified=false")
	}
}

func TestCropOp_GravityCrop(t *testing.T) {
	img := newPipelineImage(testImage(100, 100, color.White))
	out, err := (CropOp{}).Apply(context.Background(), img, mustOptions(map[string]string{"50x50": "", "gravity": "nw"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.OutWidth != 50 || out.OutHeight != 50 {
		t.Fatalf("expected 50x50 crop, got %dx%d", out.OutWidth, out.OutHeight)
	}
	if !out.Modified {
		t.Fatalf("expected Modified=true")
	}
}

func TestCropOp_CoordinateForbidsGravity(t *testing.T) {
	img := newPipelineImage(testImage(100, 100, color.White))
	opts := core.Options{
		"10x10x60x60": core.OptionValue{True: true},
		"gravity":     core.OptionValue{Str: "nw"},
	}
	_, err := (CropOp{}).Apply(context.Background(), img, opts)
	if err == nil {
		t.Fatalf("expected error: coordinate crop forbids gravity")
	}
}

func TestCropOp_CoordinateOutOfBoundsRejected(t *testing.T) {
	img := newPipelineImage(testImage(100, 100, color.White))
	out, err := (CropOp{}).Apply(context.Background(), img, mustOptions(map[string]string{"0x0x150x150": ""}))
	if err == nil {
		t.Fatalf("expected error: crop box extends past source bounds, got %+v", out)
	}
}

func TestCropOp_CoordinateRequiresOrderedCorners(t *testing.T) {
	img := newPipelineImage(testImage(100, 100, color.White))
	_, err := (CropOp{}).Apply(context.Background(), img, mustOptions(map[string]string{"60x60x10x10": ""}))
	if err == nil {
		t.Fatalf("expected error: x0>=x1")
	}
}

func TestPadOp_GrowsCanvas(t *testing.T) {
	img := newPipelineImage(testImage(50, 50, color.White))
	out, err := (PadOp{}).Apply(context.Background(), img, mustOptions(map[string]string{"100x100": ""}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.OutWidth != 100 || out.OutHeight != 100 {
		t.Fatalf("expected 100x100 canvas, got %dx%d", out.OutWidth, out.OutHeight)
	}
	if !out.Modified {
		t.Fatalf("expected Modified=true")
	}
}

func TestTransposeOp_Rotate90SwapsDims(t *testing.T) {
	img := newPipelineImage(testImage(200, 100, color.White))
	out, err := (TransposeOp{}).Apply(context.Background(), img, mustOptions(nil, "rotate90"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.OutWidth != 100 || out.OutHeight != 200 {
		t.Fatalf("expected dims swapped to 100x200, got %dx%d", out.OutWidth, out.OutHeight)
	}
}

func TestTransposeOp_RequiresExactlyOneMode(t *testing.T) {
	img := newPipelineImage(testImage(100, 100, color.White))
	_, err := (TransposeOp{}).Apply(context.Background(), img, mustOptions(nil))
	if err == nil {
		t.Fatalf("expected error: no transpose mode selected")
	}

	_, err = (TransposeOp{}).Apply(context.Background(), img, mustOptions(nil, "flipvert", "fliphorz"))
	if err == nil {
		t.Fatalf("expected error: more than one transpose mode selected")
	}
}

func TestTransposeOp_FlipHorzPreservesPixelAtMirroredPos(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	pi := newPipelineImage(img)
	out, err := (TransposeOp{}).Apply(context.Background(), pi, mustOptions(nil, "fliphorz"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dst := out.Image.(*image.RGBA)
	r, g, b, a := dst.At(0, 3).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 || a>>8 != 255 {
		t.Fatalf("expected red pixel mirrored to (0,3), got (%d,%d,%d,%d)", r>>8, g>>8, b>>8, a>>8)
	}
}
