// Package vips wires libvips (via govips) into dirpy's resize fast path:
// a shrink-on-load "draft" decode for progressive JPEGs that are about to
// be downscaled, avoiding a full-resolution decode only to immediately
// throw most of it away (spec §4.3.2, "permit a decoder-level draft hint
// ... prior to the high-quality resample").
//
// Unlike the source this system was distilled from — which holds a lazy
// PIL image object and calls Image.draft() just before its own resample —
// dirpy's Go pipeline decodes the source eagerly at load time. So the
// draft hint is applied one step earlier, in the loader, using the first
// resize command's target dimensions when one heads the pipeline.
package vips

import (
	"bytes"
	"image"
	"image/png"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	apperrors "github.com/redfin/dirpy/errors"
)

var started bool

// Startup initializes libvips once per process. Safe to call multiple
// times; only the first call takes effect. Shutdown releases resources at
// process exit.
func Startup(concurrency int) {
	if started {
		return
	}
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{ConcurrencyLevel: concurrency, CollectStats: false})
	started = true
}

// Shutdown releases libvips resources. Call once at process exit.
func Shutdown() {
	if started {
		govips.Shutdown()
		started = false
	}
}

// DraftDecode shrink-loads raw into an image no smaller than (targetW,
// targetH) using libvips's thumbnail-from-buffer path, which performs
// JPEG shrink-on-load rather than decoding at full resolution. Returns
// ok=false if libvips isn't available or the decode fails, in which case
// the caller should fall back to the standard full-resolution decoder.
func DraftDecode(raw []byte, targetW, targetH int) (img image.Image, ok bool, err error) {
	if !started || targetW <= 0 || targetH <= 0 {
		return nil, false, nil
	}

	ref, derr := govips.NewThumbnailFromBuffer(raw, targetW, targetH, govips.InterestingNone)
	if derr != nil {
		return nil, false, apperrors.Fatal(500, derr)
	}
	defer ref.Close()

	buf, _, eerr := ref.ExportPng(govips.NewPngExportParams())
	if eerr != nil {
		return nil, false, apperrors.Fatal(500, eerr)
	}

	decoded, derr2 := png.Decode(bytes.NewReader(buf))
	if derr2 != nil {
		return nil, false, apperrors.Fatal(500, derr2)
	}
	return decoded, true, nil
}
