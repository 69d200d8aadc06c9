// Package dirpy is the façade that wires the leaf packages (query, dims,
// pipeline, adapters/*, hooks) into a ready-to-run image
// transformation pipeline, mirroring the teacher's imageprocessor.go entry
// point.
package dirpy

import (
	"context"
	"io"

	"github.com/redfin/dirpy/adapters/decoder"
	"github.com/redfin/dirpy/adapters/encoder"
	"github.com/redfin/dirpy/adapters/loader"
	"github.com/redfin/dirpy/adapters/storage"
	"github.com/redfin/dirpy/config"
	"github.com/redfin/dirpy/core"
	"github.com/redfin/dirpy/hooks"
	"github.com/redfin/dirpy/pipeline"
	"github.com/redfin/dirpy/query"
)

// NewCodecRegistry builds the codec registry with all four built-in
// formats (jpeg/png/webp/gif) registered for both decode and encode.
func NewCodecRegistry(cfg config.Config) core.Registry {
	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterDecoder(core.FormatWebP, decoder.NewWebP())
	reg.RegisterDecoder(core.FormatGIF, decoder.NewGIF())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(cfg.DefQuality))
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	reg.RegisterEncoder(core.FormatWebP, encoder.NewWebP(cfg.DefQuality))
	reg.RegisterEncoder(core.FormatGIF, encoder.NewGIF())
	return reg
}

// New wires a full Runner (C1-C4, C3 save) from cfg: codec registry,
// HTTP/local/POST source loader, and save policy, with a TelemetryHook
// already attached. The caller may attach further hooks via AddHook
// before serving requests. No cache adapter is wired here: caching, the
// HTTP front end and the worker pool live in package server.
func New(cfg config.Config) (*pipeline.Runner, error) {
	reg := NewCodecRegistry(cfg)

	ld := loader.New(loader.Config{
		HTTPRoot:  cfg.HTTPRoot,
		MaxPixels: cfg.MaxPixels,
	}, reg)

	var store core.StorageAdapter
	if cfg.AllowToDisk {
		local, err := storage.NewLocal(cfg.ToDiskRoot, 0o644)
		if err != nil {
			return nil, err
		}
		store = local
	}

	saver := pipeline.NewSaver(pipeline.SaverConfig{
		DefaultQuality:      cfg.DefQuality,
		MinRecompressPixels: cfg.MinRecompressPixels,
		AllowToDisk:         cfg.AllowToDisk,
		AllowOverwrite:      cfg.AllowOverwrite,
		AllowMkdir:          cfg.AllowMkdir,
		ToDiskRoot:          cfg.ToDiskRoot,
	}, reg, store)

	runner := pipeline.NewRunner(pipeline.BuildRegistry(), ld, saver)
	runner.AddHook(hooks.NewTelemetryHook())
	return runner, nil
}

// Run parses rawQuery, resolves sourcePath against the runner's loader,
// and executes the full load -> N ops -> save pipeline (C1-C3). postBody
// supplies the POST-uploaded image, if any.
func Run(ctx context.Context, runner *pipeline.Runner, sourcePath, rawQuery string, postBody io.Reader) (*core.PipelineImage, *core.Request, error) {
	req, err := query.ParseQuery(rawQuery)
	if err != nil {
		return nil, nil, err
	}
	req.SourcePath = sourcePath
	img, err := runner.Run(ctx, req, postBody)
	return img, req, err
}
