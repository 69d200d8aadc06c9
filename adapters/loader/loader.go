// Package loader resolves the source bytes for a request from a POST body,
// an upstream origin, or a local file (C4, spec §4.3.1/§4.4).
package loader

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	vipsadapter "github.com/redfin/dirpy/adapters/vips"
	"github.com/redfin/dirpy/core"
	"github.com/redfin/dirpy/dims"
	apperrors "github.com/redfin/dirpy/errors"
	"github.com/redfin/dirpy/utils"
)

// Version is reported in the upstream User-Agent header.
const Version = "1.0"

// Config carries the subset of server configuration the loader needs.
type Config struct {
	HTTPRoot  string
	MaxPixels int64
	Client    *http.Client // upstream fetch client; a default is used if nil
}

// Loader resolves and decodes source bytes per the §4.3.1 decision table.
type Loader struct {
	cfg      Config
	registry core.Registry
}

// New returns a Loader bound to cfg and a Decoder registry used to turn the
// resolved bytes into a PipelineImage.
func New(cfg Config, registry core.Registry) *Loader {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{cfg: cfg, registry: registry}
}

// Load implements the decision table in §4.3.1:
//
//	post set and POST body present        -> read POST body (requires allow-post, checked by caller)
//	proxy set and (!fallback OR local absent) -> GET <proxy><relative-path>
//	otherwise                              -> open local file under http-root
func (l *Loader) Load(ctx context.Context, relPath string, loadOpts core.Options, ops []core.Command, postBody io.Reader) (*core.PipelineImage, error) {
	var (
		raw []byte
		err error
	)

	proxy := loadOpts.Get("proxy")
	fallback := loadOpts.Has("fallback")
	post := loadOpts.Has("post")

	localPath, perr := normalizePath(l.cfg.HTTPRoot, relPath)
	if perr != nil {
		return nil, perr
	}

	switch {
	case post && postBody != nil:
		raw, err = io.ReadAll(postBody)
		if err != nil {
			return nil, apperrors.Fatal(500, err)
		}
	case proxy != "" && (!fallback || !fileExists(localPath)):
		raw, err = l.fetchUpstream(ctx, proxy, relPath)
		if err != nil {
			return nil, err
		}
	default:
		raw, err = os.ReadFile(localPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, apperrors.Fatal(500, err)
			}
			return nil, apperrors.Fatal(500, err)
		}
	}

	dw, dh, dok := draftDims(ops)
	return l.decode(ctx, raw, dw, dh, dok)
}

// draftDims reports the target (width, height) to shrink-load for, taken
// from a leading resize command's dimension tokens, if any (§4.3.2
// "permit a decoder-level draft hint ... prior to the high-quality
// resample"). Only a resize heading the pipeline qualifies: anything
// later may depend on a crop/pad applied first, which a shrink-on-load
// decode would make impossible to honor precisely.
func draftDims(ops []core.Command) (w, h int, ok bool) {
	if len(ops) == 0 || ops[0].Name != "resize" {
		return 0, 0, false
	}
	reqDims, _, err := dims.ParseDimTokens(ops[0].Options)
	if err != nil || reqDims[0] <= 0 || reqDims[1] <= 0 {
		return 0, 0, false
	}
	return reqDims[0], reqDims[1], true
}

// fetchUpstream performs the upstream GET, propagating non-2xx status codes
// verbatim as the response's error code (§4.3.1 "upstream HTTP errors
// surface the upstream status code").
func (l *Loader) fetchUpstream(ctx context.Context, proxy, relPath string) ([]byte, error) {
	target := strings.TrimSuffix(proxy, "/") + "/" + strings.TrimPrefix(relPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperrors.Fatal(500, err)
	}
	req.Header.Set("User-Agent", "Dirpy/"+Version)

	resp, err := l.cfg.Client.Do(req)
	if err != nil {
		return nil, apperrors.Fatal(502, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.UserCode(resp.StatusCode, "upstream returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// decode turns raw bytes into a PipelineImage, recording in-format/width/
// height/bytes and enforcing max-pixels (§4.3.1). When draftW/draftH are
// set and the source is a JPEG, it first tries a libvips shrink-on-load
// decode (adapters/vips) and only falls back to the registry's own
// full-resolution decoder if that is unavailable or fails.
func (l *Loader) decode(ctx context.Context, raw []byte, draftW, draftH int, draftOK bool) (*core.PipelineImage, error) {
	if len(raw) == 0 {
		return nil, apperrors.User("empty source image")
	}

	format := core.Format(utils.DetectFormat(raw))

	var (
		decoded  *core.ImageData
		drafted  bool
		draftErr error
	)
	if draftOK && format == core.FormatJPEG {
		if img, ok, err := vipsadapter.DraftDecode(raw, draftW, draftH); err == nil && ok {
			bounds := img.Bounds()
			decoded = &core.ImageData{
				Image:     img,
				Format:    core.FormatJPEG,
				OutWidth:  bounds.Dx(),
				OutHeight: bounds.Dy(),
				MetaInfo: core.Metadata{
					Width:      bounds.Dx(),
					Height:     bounds.Dy(),
					Format:     core.FormatJPEG,
					ColorSpace: core.ColorSpaceRGB,
				},
			}
			drafted = true
		} else {
			draftErr = err
		}
	}

	if !drafted {
		dec, ok := l.registry.DecoderFor(format)
		if !ok {
			return nil, apperrors.User("unsupported image format %q", format)
		}
		d, err := dec.Decode(ctx, bytes.NewReader(raw))
		if err != nil {
			if draftErr != nil {
				return nil, apperrors.User("failed to decode image: %v (draft attempt: %v)", err, draftErr)
			}
			return nil, apperrors.User("failed to decode image: %v", err)
		}
		decoded = d
	}

	decoded.Data = raw
	decoded.InFormat = format
	decoded.InWidth = decoded.OutWidth
	decoded.InHeight = decoded.OutHeight
	decoded.InBytes = int64(len(raw))
	decoded.OutFormat = format

	if l.cfg.MaxPixels > 0 && int64(decoded.InWidth)*int64(decoded.InHeight) > l.cfg.MaxPixels {
		return nil, apperrors.User("image exceeds max_pixels (%dx%d)", decoded.InWidth, decoded.InHeight)
	}

	if decoded.Meta == nil {
		decoded.Meta = core.NewMeta()
	}
	decoded.Meta.Incr("in_fmt_"+string(format), 1)
	decoded.Meta.Incr("total", 1)
	decoded.Meta.Incr("cache_hit", 0)
	return decoded, nil
}

// normalizePath resolves relPath against root, rejecting any traversal
// above it (§4.3.1 "Path normalization must prevent traversal above
// http-root").
func normalizePath(root, relPath string) (string, error) {
	decoded, err := url.PathUnescape(relPath)
	if err != nil {
		return "", apperrors.User("malformed path %q", relPath)
	}
	joined := filepath.Join(root, filepath.Join("/", decoded))
	cleanRoot := filepath.Clean(root)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", apperrors.User("path escapes http_root")
	}
	return joined, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
