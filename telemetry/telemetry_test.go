package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/redfin/dirpy/core"
)

func TestRenderHeader_TimingsAsMilliseconds(t *testing.T) {
	m := core.NewMeta()
	m.Incr("total", 1)
	m.Gauge("in_width", 200)
	m.Time("time_resize", 250*time.Millisecond)

	header, err := RenderHeader(m)
	if err != nil {
		t.Fatalf("RenderHeader: %v", err)
	}

	var doc struct {
		G  map[string]float64 `json:"g"`
		C  map[string]float64 `json:"c"`
		MS map[string]int64   `json:"ms"`
	}
	if err := json.Unmarshal([]byte(header), &doc); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if doc.MS["time_resize"] != 250 {
		t.Fatalf("expected time_resize=250ms, got %v", doc.MS["time_resize"])
	}
	if doc.C["total"] != 1 {
		t.Fatalf("expected total=1, got %v", doc.C["total"])
	}
	if doc.G["in_width"] != 200 {
		t.Fatalf("expected in_width=200, got %v", doc.G["in_width"])
	}
}

func TestRenderHeader_NilMetaIsEmptyObject(t *testing.T) {
	header, err := RenderHeader(nil)
	if err != nil {
		t.Fatalf("RenderHeader(nil): %v", err)
	}
	if header != "{}" {
		t.Fatalf("expected empty object, got %q", header)
	}
}

func TestSink_RendersOneLinePerMetric(t *testing.T) {
	m := core.NewMeta()
	m.Incr("total", 1)
	m.Incr("cache_hit", 0)
	m.Time("time_save", 10*time.Millisecond)

	s := &Sink{prefix: "dirpy"}
	lines := s.lines(m)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(lines), lines)
	}
	for _, l := range lines {
		if len(l) > maxDatagramBytes {
			t.Fatalf("line exceeds datagram limit: %q", l)
		}
	}
}

func TestSink_LineFormat(t *testing.T) {
	s := &Sink{prefix: "dirpy"}
	line := s.line(string(core.MetaCounter), "in_fmt_jpeg", "1")
	want := "dirpy.c.in.fmt_jpeg:1|c\n"
	if line != want {
		t.Fatalf("expected %q, got %q", want, line)
	}
}
