package vips

import (
	"bytes"
	"image"
	"image/png"

	govips "github.com/davidbyttow/govips/v2/vips"

	apperrors "github.com/redfin/dirpy/errors"
)

// EncodeWebP encodes src to WebP via libvips, the same backend DraftDecode
// uses for shrink-on-load. Go has no pure-library WebP encoder in the
// standard library or x/image, so this is the only in-pack path to real
// WebP output. src is re-encoded to PNG first since govips takes an
// encoded buffer, not a raw image.Image, as input.
func EncodeWebP(src image.Image, quality int, lossless bool) (data []byte, ok bool, err error) {
	if !started {
		return nil, false, nil
	}

	var pngBuf bytes.Buffer
	if perr := png.Encode(&pngBuf, src); perr != nil {
		return nil, false, apperrors.Fatal(500, perr)
	}

	ref, derr := govips.NewImageFromBuffer(pngBuf.Bytes())
	if derr != nil {
		return nil, false, apperrors.Fatal(500, derr)
	}
	defer ref.Close()

	params := govips.NewWebpExportParams()
	params.Quality = quality
	params.Lossless = lossless

	out, _, eerr := ref.ExportWebp(params)
	if eerr != nil {
		return nil, false, apperrors.Fatal(500, eerr)
	}
	return out, true, nil
}
