package pipeline

import (
	"bytes"
	"context"
	"image"
	"io"
	"strings"
	"time"

	"github.com/redfin/dirpy/core"
	apperrors "github.com/redfin/dirpy/errors"
)

// SaverConfig carries the configuration knobs the save command needs
// (§4.3.6, §6).
type SaverConfig struct {
	DefaultQuality      int
	MinRecompressPixels int64
	AllowToDisk         bool
	AllowOverwrite      bool
	AllowMkdir          bool
	ToDiskRoot          string
}

// Saver implements the save argument bag (§4.3.6). It is invoked directly
// by the Runner rather than through the Op registry, like Loader — "load"
// and "save" are reserved bags, never positional commands (§3, §9).
type Saver struct {
	cfg      SaverConfig
	registry core.Registry
	storage  core.StorageAdapter // nil disables todisk persistence
}

// NewSaver binds a Saver to its config, encoder registry, and (optional)
// storage adapter for the todisk option.
func NewSaver(cfg SaverConfig, registry core.Registry, storage core.StorageAdapter) *Saver {
	return &Saver{cfg: cfg, registry: registry, storage: storage}
}

// Save applies the format/quality/ICC/recompression policy of §4.3.6 and
// fills OutBuffer, OutFormat, and the out_fmt_*/time_save telemetry.
func (s *Saver) Save(ctx context.Context, img *core.PipelineImage, opts core.Options) (*core.PipelineImage, error) {
	start := time.Now()
	img.SaveOptions = opts

	outFmt := resolveFormat(opts.Get("fmt"), img.InFormat)
	img.OutFormat = outFmt

	if outFmt == core.FormatJPEG && img.InFormat == core.FormatJPEG && !img.Modified {
		// JPEG pass-through (§4.3.6, §8 "JPEG pass-through"): re-emit the
		// original bytes untouched to preserve subsampling and avoid
		// generation loss.
		img.OutBuffer = img.Data
		return s.finish(ctx, img, opts, start)
	}

	quality, err := resolveQuality(opts, s.cfg.DefaultQuality)
	if err != nil {
		return nil, err
	}
	if (outFmt == core.FormatJPEG || outFmt == core.FormatWebP) &&
		s.cfg.MinRecompressPixels > 0 &&
		int64(img.OutWidth)*int64(img.OutHeight) < s.cfg.MinRecompressPixels {
		quality = 95
	}

	encOpts := core.EncodeOptions{
		Quality:     quality,
		Progressive: opts.Has("progressive"),
		Optimize:    opts.Has("optimize"),
		StripICC:    img.InFormat != core.FormatJPEG || opts.Has("noicc"),
		GIFTransIdx: -1,
	}
	if outFmt == core.FormatGIF && img.Trans > 0 {
		encOpts.GIFTransIdx = 0
	}
	if encOpts.Progressive || encOpts.Optimize {
		scratch := img.InWidth * img.InHeight
		if v := img.OutWidth * img.OutHeight; v > scratch {
			scratch = v
		}
		if scratch < 2097152 {
			scratch = 2097152
		}
		encOpts.ScratchPixel = scratch
	}

	if outFmt == core.FormatJPEG {
		if p, ok := img.Image.(*image.Paletted); ok {
			img.Image = paletteToRGB(p)
		}
	}

	enc, ok := s.registry.EncoderFor(outFmt)
	if !ok {
		return nil, apperrors.User("save: unsupported output format %q", outFmt)
	}
	data, err := enc.Encode(ctx, img, encOpts)
	if err != nil {
		return nil, apperrors.Fatal(500, err)
	}
	img.OutBuffer = data

	return s.finish(ctx, img, opts, start)
}

func (s *Saver) finish(ctx context.Context, img *core.PipelineImage, opts core.Options, start time.Time) (*core.PipelineImage, error) {
	if raw, ok := opts["todisk"]; ok {
		if err := s.writeToDisk(ctx, raw.Str, img.OutBuffer); err != nil {
			return nil, err
		}
	}

	if img.Meta == nil {
		img.Meta = core.NewMeta()
	}
	img.Meta.Incr("out_fmt_"+string(img.OutFormat), 1)
	img.Meta.Time("time_save", time.Since(start))

	if opts.Has("noshow") {
		img.OutBuffer = nil
	}
	return img, nil
}

func (s *Saver) writeToDisk(ctx context.Context, relPath string, data []byte) error {
	if !s.cfg.AllowToDisk {
		return apperrors.UserCode(403, "todisk is disabled (allow_todisk=false)")
	}
	if s.storage == nil {
		return apperrors.Fatal(500, io.ErrClosedPipe)
	}
	key := core.StorageKey{Path: relPath}
	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return apperrors.Fatal(500, err)
	}
	if exists && !s.cfg.AllowOverwrite {
		return apperrors.UserCode(403, "todisk: destination exists and allow_overwrite=false")
	}
	meta := map[string]string{"allow_mkdir": boolStr(s.cfg.AllowMkdir)}
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), meta); err != nil {
		return apperrors.Fatal(500, err)
	}
	return nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// resolveFormat applies the "fmt" default/aliasing rule (§4.3.6): defaults
// to in-format, else jpeg; "jpg" is rewritten to "jpeg".
func resolveFormat(raw string, inFormat core.Format) core.Format {
	raw = strings.ToLower(raw)
	switch raw {
	case "":
		if inFormat != "" && inFormat != core.FormatUnknown {
			return inFormat
		}
		return core.FormatJPEG
	case "jpg":
		return core.FormatJPEG
	default:
		return core.Format(raw)
	}
}

func resolveQuality(opts core.Options, defaultQuality int) (int, error) {
	raw := opts.Get("qual")
	if raw == "" {
		return defaultQuality, nil
	}
	n, err := parseIntStrict(raw)
	if err != nil || n < 1 || n > 100 {
		return 0, apperrors.User("save: qual must be an integer in 1..100")
	}
	return n, nil
}

func paletteToRGB(p *image.Paletted) image.Image {
	b := p.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, p.At(x, y))
		}
	}
	return dst
}
