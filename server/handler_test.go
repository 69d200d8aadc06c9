package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/redfin/dirpy"
	"github.com/redfin/dirpy/config"
	"github.com/redfin/dirpy/hooks"
)

func writeTestPNG(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func newTestHandler(t *testing.T, httpRoot string) *Handler {
	t.Helper()
	cfg := config.Default()
	cfg.HTTPRoot = httpRoot
	runner, err := dirpy.New(cfg)
	if err != nil {
		t.Fatalf("dirpy.New: %v", err)
	}
	logger := hooks.NewSlogLogger(slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil)))
	return &Handler{Runner: runner, Cfg: cfg, Logger: logger}
}

func TestHandler_Favicon(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	req := httptest.NewRequest(http.MethodGet, "/favicon.ico?resize=640x480", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Dirpy-Data") == "" {
		t.Fatalf("expected Dirpy-Data header on favicon response")
	}
}

func TestHandler_Status(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	req := httptest.NewRequest(http.MethodGet, "/a.png?status&resize=640x480", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_ResizeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, dir, "a.png", 200, 100)
	h := newTestHandler(t, dir)

	req := httptest.NewRequest(http.MethodGet, "/a.png?resize=100x50&save=fmt:png", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected non-empty body")
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("expected 100x50, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestHandler_MissingFileIsFatal(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	req := httptest.NewRequest(http.MethodGet, "/nope.png?save", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for missing local file, got %d", rec.Code)
	}
}

func TestHandler_PostDisallowedByDefault(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	req := httptest.NewRequest(http.MethodPost, "/a.png?save", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, t.TempDir())
	req := httptest.NewRequest(http.MethodPut, "/a.png?save", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
