package core

import (
	"context"
	"io"
)

// Decoder converts raw bytes / a reader into an in-memory PipelineImage.
// Implementations live in adapters/decoder/.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) (*PipelineImage, error)
	CanDecode(format Format) bool
}

// Encoder serialises a PipelineImage to bytes in a target format.
// Implementations live in adapters/encoder/.
type Encoder interface {
	Encode(ctx context.Context, img *PipelineImage, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters, expanded from
// the codec backend's options to cover the save policy of §4.3.6.
type EncodeOptions struct {
	Quality      int  // 1-100; 0 = use encoder default
	Lossless     bool // WebP lossless mode
	StripICC     bool // "noicc"
	Progressive  bool // JPEG progressive / PNG interlaced
	Optimize     bool // Huffman-table / palette optimization, codec-dependent
	GIFTransIdx  int  // GIF transparent palette index; -1 = none
	ScratchPixel int  // minimum scratch-buffer sizing hint (§4.3.6 last bullet)
}

// StorageAdapter persists bytes under a key and retrieves them later. Used
// by the todisk save option (§4.3.6); implementations live in
// adapters/storage/.
type StorageAdapter interface {
	Put(ctx context.Context, key StorageKey, r io.Reader, meta map[string]string) error
	Get(ctx context.Context, key StorageKey) (io.ReadCloser, error)
	Delete(ctx context.Context, key StorageKey) error
	Exists(ctx context.Context, key StorageKey) (bool, error)
}

// Logger is a minimal structured logging interface satisfied by
// hooks.SlogLogger.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Registry maps Format values to Decoder/Encoder implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
}

// Op is one dispatchable pipeline operation (load, resize, crop, pad,
// transpose, save). Implementations live in package pipeline. Dispatch is
// by name from a closed registry (§9 "Dispatch by name"): names beginning
// with "_" and names outside the registered set are user errors.
type Op interface {
	// Apply executes the operation against img using the per-command
	// option bag opts, returning the (possibly same) mutated image.
	Apply(ctx context.Context, img *PipelineImage, opts Options) (*PipelineImage, error)
}

// OpFunc adapts a plain function to the Op interface.
type OpFunc func(ctx context.Context, img *PipelineImage, opts Options) (*PipelineImage, error)

// Apply implements Op.
func (f OpFunc) Apply(ctx context.Context, img *PipelineImage, opts Options) (*PipelineImage, error) {
	return f(ctx, img, opts)
}

// OpRegistry is the closed set of positional-pipeline operations dirpy
// recognizes. It is populated once at startup and never mutated per
// request, so lookups need no locking.
type OpRegistry struct {
	ops map[string]Op
}

// NewOpRegistry returns an empty registry.
func NewOpRegistry() *OpRegistry { return &OpRegistry{ops: make(map[string]Op)} }

// Register adds an operation under name. name must not begin with "_" and
// must not be "load" or "save" (those are reserved argument bags, never
// positional commands).
func (r *OpRegistry) Register(name string, op Op) {
	r.ops[name] = op
}

// Lookup returns the Op registered for name, honoring the "_"-prefix and
// reserved-name rejection rules from §4.3 and §9.
func (r *OpRegistry) Lookup(name string) (Op, bool) {
	if name == "" || name[0] == '_' || name == "load" || name == "save" || name == "status" {
		return nil, false
	}
	op, ok := r.ops[name]
	return op, ok
}
