package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/redfin/dirpy/core"
)

// metaWire is the gob-serializable form of core.Meta (§4.5 "meta_data
// ... opaque blob containing the counter/gauge map"). Its wire form
// need only be reversible by this implementation, not interoperable
// with any other (spec §4.5 "Serialization").
type metaWire struct {
	Gauges   map[string]float64
	Counters map[string]float64
	TimingsNs map[string]int64
}

// EncodeEntry serializes img's output buffer and telemetry into a
// core.CacheEntry ready to write to the store.
func EncodeEntry(img *core.PipelineImage) (core.CacheEntry, error) {
	metaBlob, err := encodeMeta(img.Meta)
	if err != nil {
		return core.CacheEntry{}, err
	}
	return core.CacheEntry{
		OutFormat: img.OutFormat,
		OutSize:   int64(len(img.OutBuffer)),
		OutBuffer: img.OutBuffer,
		MetaData:  metaBlob,
	}, nil
}

// DecodeEntry reverses EncodeEntry, rehydrating a core.Meta from its
// serialized form.
func DecodeEntry(entry core.CacheEntry) (*core.Meta, error) {
	return decodeMeta(entry.MetaData)
}

func encodeMeta(m *core.Meta) ([]byte, error) {
	if m == nil {
		m = core.NewMeta()
	}
	wire := metaWire{
		Gauges:    m.Gauges,
		Counters:  m.Counters,
		TimingsNs: make(map[string]int64, len(m.Timings)),
	}
	for k, v := range m.Timings {
		wire.TimingsNs[k] = int64(v)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, fmt.Errorf("cache: encode meta: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeMeta(blob []byte) (*core.Meta, error) {
	var wire metaWire
	if len(blob) > 0 {
		if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&wire); err != nil {
			return nil, fmt.Errorf("cache: decode meta: %w", err)
		}
	}
	m := core.NewMeta()
	for k, v := range wire.Gauges {
		m.Gauges[k] = v
	}
	for k, v := range wire.Counters {
		m.Counters[k] = v
	}
	for k, ns := range wire.TimingsNs {
		m.Timings[k] = time.Duration(ns)
	}
	return m, nil
}
