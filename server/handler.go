// Package server implements the C7 HTTP front end and pre-forked worker
// pool (spec §4.7): request dispatch, cache-coherent request path, and
// the Dirpy-Data / Content-Type / Content-Length response contract.
package server

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/redfin/dirpy/adapters/loader"
	"github.com/redfin/dirpy/cache"
	"github.com/redfin/dirpy/config"
	"github.com/redfin/dirpy/core"
	apperrors "github.com/redfin/dirpy/errors"
	"github.com/redfin/dirpy/pipeline"
	"github.com/redfin/dirpy/query"
	"github.com/redfin/dirpy/telemetry"
	"github.com/redfin/dirpy/utils"
)

const responseChunkSize = 4096

// Handler dispatches GET/HEAD/POST requests through the full request
// pipeline: C1 parse -> C5 lookup (cache hit short-circuits) -> C4/C3
// load+ops+save (miss path) -> C5 store -> C6 telemetry -> response
// (§2 "Request data flow").
type Handler struct {
	Runner *pipeline.Runner
	Cfg    config.Config
	Cache  *cache.Store    // nil disables caching entirely (§3 "cacheable")
	Sink   *telemetry.Sink // nil disables the UDP metrics sink
	Logger core.Logger
	Stats  *core.WorkerStats

	// Limiter bounds how many pipeline runs (cache lookup through save)
	// may execute concurrently inside this worker (§5 "resource guard").
	// nil means unbounded, matching a Handler built outside server.buildHandler.
	Limiter *core.Limiter
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost:
	default:
		h.writeError(w, nil, apperrors.UserCode(405, "method %s not allowed", r.Method))
		return
	}

	if query.IsFavicon(r.URL.Path) {
		h.writeNoContent(w, core.NewMeta())
		return
	}

	req, err := query.ParseQuery(r.URL.RawQuery)
	if err != nil {
		h.writeError(w, nil, err)
		return
	}
	req.SourcePath = r.URL.Path

	if req.Status {
		h.writeNoContent(w, core.NewMeta())
		return
	}

	var postBody io.Reader
	if r.Method == http.MethodPost {
		if !h.Cfg.AllowPost {
			h.writeError(w, nil, apperrors.UserCode(403, "POST is disabled (allow_post=false)"))
			return
		}
		body, ferr := extractFilePart(r)
		if ferr != nil {
			h.writeError(w, nil, ferr)
			return
		}
		postBody = body
	}

	cacheable := postBody == nil && h.Cache != nil
	ctx := r.Context()

	if h.Limiter != nil {
		if lerr := h.Limiter.Acquire(ctx); lerr != nil {
			h.writeError(w, nil, apperrors.Fatal(0, lerr))
			return
		}
		defer h.Limiter.Release()
	}

	if cacheable && h.tryCacheHit(ctx, w, r, req) {
		h.recordOutcome(true)
		return
	}

	img, err := h.Runner.Run(ctx, req, postBody)
	if err != nil {
		h.recordOutcome(false)
		h.writeError(w, nil, err)
		return
	}

	if cacheable {
		h.storeCache(ctx, req.SourcePath, r.URL.RawQuery, img)
	}

	h.recordOutcome(true)
	h.writeSuccess(w, r, img, req)
}

// tryCacheHit performs the single C5 lookup for a cacheable request. On
// hit it writes the full response (including replaying the cached
// Content-Type/Content-Length/body byte-for-byte, §8 "Cache replay") and
// returns true. A miss or lookup failure returns false without touching
// the response writer — the caller falls through to the miss path
// (§4.5 "a failed lookup must never fail the request").
func (h *Handler) tryCacheHit(ctx context.Context, w http.ResponseWriter, r *http.Request, req *core.Request) bool {
	start := time.Now()
	fp := cache.Fingerprint(h.Cfg.RedisPrefix, req.SourcePath, r.URL.RawQuery)
	entry, hit, err := h.Cache.Get(ctx, fp)
	if err != nil {
		h.Logger.Debug("cache.lookup.error", "error", err.Error())
		return false
	}
	if !hit {
		return false
	}

	meta, err := cache.DecodeEntry(*entry)
	if err != nil {
		h.Logger.Debug("cache.decode.error", "error", err.Error())
		return false
	}
	// §4.5 "Read path": discard accumulated timings in favor of a single
	// time_cache_read, set cache_hit=1, but keep the cached counters
	// (out_fmt_*, total, ...) the stored entry carried.
	meta.Timings = map[string]time.Duration{"time_cache_read": time.Since(start)}
	meta.Incr("cache_hit", 1)

	img := &core.PipelineImage{
		OutFormat: entry.OutFormat,
		OutBuffer: entry.OutBuffer,
		Meta:      meta,
	}
	h.writeSuccess(w, r, img, req)
	return true
}

// storeCache writes the write-back entry after a successful miss-path
// save (§4.5 "Write path"). Failures are logged and never fail the
// response.
func (h *Handler) storeCache(ctx context.Context, sourcePath, rawQuery string, img *core.PipelineImage) {
	start := time.Now()
	entry, err := cache.EncodeEntry(img)
	if err != nil {
		h.Logger.Debug("cache.encode.error", "error", err.Error())
		return
	}
	fp := cache.Fingerprint(h.Cfg.RedisPrefix, sourcePath, rawQuery)
	if err := h.Cache.Put(ctx, fp, entry); err != nil {
		h.Logger.Debug("cache.write.error", "error", err.Error())
		return
	}
	img.Meta.Incr("cache_write", 1)
	img.Meta.Time("time_cache_write", time.Since(start))
}

func (h *Handler) recordOutcome(ok bool) {
	if h.Stats == nil {
		return
	}
	if ok {
		h.Stats.RecordSuccess()
	} else {
		h.Stats.RecordFailure()
	}
}

// writeSuccess renders the Dirpy-Data header plus, unless the save step
// discarded the buffer (noshow), the image body (§4.7, §6). "noshow"
// renders 204 per §6's status table ("204 ... noshow save"); status and
// favicon probes go through writeNoContent instead.
func (h *Handler) writeSuccess(w http.ResponseWriter, r *http.Request, img *core.PipelineImage, req *core.Request) {
	h.flushTelemetry(img.Meta)

	header, err := telemetry.RenderHeader(img.Meta)
	if err == nil {
		w.Header().Set("Dirpy-Data", header)
	}
	w.Header().Set("Server", "Dirpy/"+loader.Version)

	if len(img.OutBuffer) == 0 && req.SaveOpts.Has("noshow") {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "image/"+string(img.OutFormat))
	w.Header().Set("Content-Length", strconv.Itoa(len(img.OutBuffer)))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	cw := &utils.ChunkedWriter{W: w, ChunkSize: responseChunkSize}
	if _, err := cw.Write(img.OutBuffer); err != nil {
		// A broken client connection mid-transfer is not an application
		// error (§4.7 "broken connections are silently swallowed").
		h.Logger.Debug("response.write.aborted", "error", err.Error())
	}
}

// writeNoContent handles the status-probe and favicon special cases,
// which always return 204 with a Dirpy-Data header regardless of query
// (§4.1, §6, §8 "Favicon").
func (h *Handler) writeNoContent(w http.ResponseWriter, m *core.Meta) {
	h.flushTelemetry(m)
	header, err := telemetry.RenderHeader(m)
	if err == nil {
		w.Header().Set("Dirpy-Data", header)
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps a RequestError (or any other error, treated as
// Uncaught per §7) to its HTTP status and body, always attaching a
// Dirpy-Data header even on failure (§6).
func (h *Handler) writeError(w http.ResponseWriter, m *core.Meta, err error) {
	if m == nil {
		m = core.NewMeta()
	}
	h.flushTelemetry(m)
	header, herr := telemetry.RenderHeader(m)
	if herr == nil {
		w.Header().Set("Dirpy-Data", header)
	}
	code := apperrors.StatusCode(err)
	msg := apperrors.ClientMessage(err)
	if !apperrors.IsUser(err) && !apperrors.IsFatal(err) {
		h.Logger.Warn("request.uncaught", "error", err.Error())
	} else if apperrors.IsFatal(err) {
		h.Logger.Warn("request.fatal", "error", err.Error())
	}
	http.Error(w, msg, code)
}

func (h *Handler) flushTelemetry(m *core.Meta) {
	if h.Sink == nil || m == nil {
		return
	}
	if err := h.Sink.Flush(m); err != nil {
		h.Logger.Debug("telemetry.flush.error", "error", err.Error())
	}
}

// extractFilePart decodes a multipart/form-data body and returns the
// single "file" part's bytes, per §4.7 "POST decodes multipart/form-data
// with a single file part" and Design Note "POST body handling" (a
// straightforward multipart reader, not the legacy parser the original
// used).
func extractFilePart(r *http.Request) (io.Reader, error) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, apperrors.User("POST body must be multipart/form-data")
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, apperrors.User("multipart/form-data: missing boundary")
	}

	mr := multipart.NewReader(r.Body, boundary)
	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			return nil, apperrors.User("multipart/form-data: no \"file\" part present")
		}
		if perr != nil {
			return nil, apperrors.User("malformed multipart body: %v", perr)
		}
		if part.FormName() != "file" {
			continue
		}
		data, rerr := io.ReadAll(part)
		if rerr != nil {
			return nil, apperrors.Fatal(500, rerr)
		}
		return bytes.NewReader(data), nil
	}
}
