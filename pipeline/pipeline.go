package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/redfin/dirpy/core"
	apperrors "github.com/redfin/dirpy/errors"
)

// SourceLoader resolves and decodes a request's source bytes; implemented
// by adapters/loader.Loader.
type SourceLoader interface {
	Load(ctx context.Context, relPath string, loadOpts core.Options, ops []core.Command, postBody io.Reader) (*core.PipelineImage, error)
}

// Runner executes the full load -> N ops -> save state machine for one
// request (C3, §4.3). A Runner is stateless and safe for concurrent use;
// all mutable state lives in the per-request PipelineImage.
type Runner struct {
	ops    *core.OpRegistry
	loader SourceLoader
	saver  *Saver
	hooks  []core.Hook
}

// NewRunner assembles a Runner from its dependencies.
func NewRunner(ops *core.OpRegistry, loader SourceLoader, saver *Saver) *Runner {
	return &Runner{ops: ops, loader: loader, saver: saver}
}

// AddHook registers an observer invoked around every op (used by the
// logging/metrics hooks package).
func (r *Runner) AddHook(h core.Hook) { r.hooks = append(r.hooks, h) }

// Run executes req's pipeline: load, then each positional command in URL
// order, then save. Command names are rejected if they begin with "_" or
// are not in the closed op set (§4.3, §9).
func (r *Runner) Run(ctx context.Context, req *core.Request, postBody io.Reader) (*core.PipelineImage, error) {
	loadStart := time.Now()
	img, err := r.loader.Load(ctx, req.SourcePath, req.LoadOpts, req.Pipeline, postBody)
	if err != nil {
		return nil, err
	}
	if img.Meta == nil {
		img.Meta = core.NewMeta()
	}
	img.Meta.Time("load_time", time.Since(loadStart))

	for _, cmd := range req.Pipeline {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Fatal(0, err)
		}
		op, ok := r.ops.Lookup(cmd.Name)
		if !ok {
			return nil, apperrors.User("unknown or reserved command %q", cmd.Name)
		}

		r.before(ctx, cmd.Name, img)
		start := time.Now()
		next, opErr := op.Apply(ctx, img, cmd.Options)
		elapsed := time.Since(start)
		r.after(ctx, cmd.Name, next, elapsed, opErr)
		if opErr != nil {
			return nil, opErr
		}
		img = next
		img.Meta.Time("time_"+cmd.Name, elapsed)
	}

	final, err := r.saver.Save(ctx, img, req.SaveOpts)
	if err != nil {
		return nil, err
	}
	return final, nil
}

func (r *Runner) before(ctx context.Context, name string, img *core.PipelineImage) {
	for _, h := range r.hooks {
		h.BeforeStep(ctx, name, img)
	}
}

func (r *Runner) after(ctx context.Context, name string, img *core.PipelineImage, d time.Duration, err error) {
	for _, h := range r.hooks {
		h.AfterStep(ctx, name, img, d, err)
	}
}
