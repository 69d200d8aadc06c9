// Package telemetry implements the C6 metrics emitter: rendering the
// Dirpy-Data response header and packing UDP statsd-style datagrams from
// a request's accumulated core.Meta (spec §4.6).
package telemetry

import (
	"encoding/json"

	"github.com/redfin/dirpy/core"
)

// dataDoc is the shape serialized into the Dirpy-Data header: the union
// of the three keyed groups, timings converted from time.Duration to
// integer milliseconds (§3 "meta-data", §4.6).
type dataDoc struct {
	G map[string]float64 `json:"g,omitempty"`
	C map[string]float64 `json:"c,omitempty"`
	MS map[string]int64  `json:"ms,omitempty"`
}

// RenderHeader serializes m's three groups into the JSON object sent as
// the Dirpy-Data header on every response, including 204s and error
// responses (§6). A nil m renders an empty object.
func RenderHeader(m *core.Meta) (string, error) {
	doc := dataDoc{}
	if m != nil {
		if len(m.Gauges) > 0 {
			doc.G = m.Gauges
		}
		if len(m.Counters) > 0 {
			doc.C = m.Counters
		}
		if len(m.Timings) > 0 {
			doc.MS = make(map[string]int64, len(m.Timings))
			for k, v := range m.Timings {
				doc.MS[k] = v.Milliseconds()
			}
		}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
