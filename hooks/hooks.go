// Package hooks provides production-ready core.Hook and core.Logger
// implementations: structured logging and per-request telemetry capture
// around each pipeline step (§4.6).
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redfin/dirpy/core"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) {
	s.log.Debug(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Info(msg string, fields ...interface{}) {
	s.log.Info(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Warn(msg string, fields ...interface{}) {
	s.log.Warn(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Error(msg string, fields ...interface{}) {
	s.log.Error(msg, toAttrs(fields)...)
}

func toAttrs(fields []interface{}) []any { return fields }

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each pipeline step.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStep(_ context.Context, stepName string, img *core.ImageData) {
	h.logger.Debug("pipeline.step.start",
		"step", stepName,
		"format", img.OutFormat,
		"width", img.OutWidth,
		"height", img.OutHeight,
	)
}

func (h *LoggingHook) AfterStep(_ context.Context, stepName string, img *core.ImageData, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("pipeline.step.error",
			"step", stepName,
			"duration_ms", d.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	out := "nil"
	if img != nil {
		out = fmt.Sprintf("%dx%d %s %dB", img.OutWidth, img.OutHeight, img.OutFormat, len(img.OutBuffer))
	}
	h.logger.Debug("pipeline.step.done",
		"step", stepName,
		"duration_ms", d.Milliseconds(),
		"output", out,
	)
}

// ── Telemetry hook ─────────────────────────────────────────────────────────────

// TelemetryHook records per-step gauges and counters directly onto the
// request's core.Meta (§4.6), feeding the Dirpy-Data header and statsd
// emitter without a separate metrics-collector indirection: the
// PipelineImage already carries its own Meta through the whole run.
type TelemetryHook struct{}

// NewTelemetryHook creates a TelemetryHook.
func NewTelemetryHook() *TelemetryHook { return &TelemetryHook{} }

func (h *TelemetryHook) BeforeStep(_ context.Context, _ string, _ *core.ImageData) {}

func (h *TelemetryHook) AfterStep(_ context.Context, stepName string, img *core.ImageData, d time.Duration, err error) {
	if img == nil || img.Meta == nil {
		return
	}
	if err != nil {
		img.Meta.Incr("err_"+stepName, 1)
		return
	}
	img.Meta.Gauge("width", float64(img.OutWidth))
	img.Meta.Gauge("height", float64(img.OutHeight))
	img.Meta.Incr("op_"+stepName, 1)
}
