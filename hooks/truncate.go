package hooks

import (
	"context"
	"log/slog"
)

// TruncatingHandler wraps a slog.Handler and truncates any record whose
// message exceeds maxLine characters, matching the original's
// DirpyLogFilter/log_max_line behavior: malformed query strings can
// otherwise produce runaway log lines (SPEC_FULL §4 supplemented feature
// 1).
type TruncatingHandler struct {
	next    slog.Handler
	maxLine int
}

// NewTruncatingHandler wraps next, truncating messages longer than
// maxLine. maxLine <= 0 disables truncation.
func NewTruncatingHandler(next slog.Handler, maxLine int) *TruncatingHandler {
	return &TruncatingHandler{next: next, maxLine: maxLine}
}

func (h *TruncatingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *TruncatingHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.maxLine > 0 && len(r.Message) > h.maxLine {
		truncated := r.Message[:h.maxLine] + "...(truncated)"
		nr := slog.NewRecord(r.Time, r.Level, truncated, r.PC)
		r.Attrs(func(a slog.Attr) bool {
			nr.AddAttrs(a)
			return true
		})
		r = nr
	}
	return h.next.Handle(ctx, r)
}

func (h *TruncatingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TruncatingHandler{next: h.next.WithAttrs(attrs), maxLine: h.maxLine}
}

func (h *TruncatingHandler) WithGroup(name string) slog.Handler {
	return &TruncatingHandler{next: h.next.WithGroup(name), maxLine: h.maxLine}
}
