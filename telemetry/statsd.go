package telemetry

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redfin/dirpy/core"
)

// maxDatagramBytes is the packing limit from §4.6/§6: lines are packed
// greedily into UDP datagrams of at most this many bytes.
const maxDatagramBytes = 512

// Sink emits statsd-style lines over UDP (§4.6). A Sink is created once
// per worker at startup and reused across requests; send failures are
// logged by the caller and never fail the response (§7 "Cache and
// metrics failures are always swallowed").
//
// The exact wire format pinned by §4.6 —
// "<prefix>.<group>.<name>:<value>|<group>\n", datagrams packed greedily
// up to 512 bytes — is not something any published statsd client
// exposes (they send one metric per call, one line per datagram); this
// sink is hand-rolled directly over net.Conn to hit that format exactly,
// per the DESIGN.md note on the telemetry dependency.
type Sink struct {
	conn   net.Conn
	prefix string
}

// NewSink dials addr (host:port) over UDP. Dialing UDP never blocks on
// the network (no handshake), so this is safe to call synchronously at
// worker startup.
func NewSink(addr, prefix string) (*Sink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial %s: %w", addr, err)
	}
	return &Sink{conn: conn, prefix: prefix}, nil
}

// Close releases the underlying UDP socket.
func (s *Sink) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Flush renders m's three groups into lines and packs/sends them as one
// or more UDP datagrams (§4.6, §6). A nil Sink or empty Meta is a no-op.
func (s *Sink) Flush(m *core.Meta) error {
	if s == nil || m == nil {
		return nil
	}
	lines := s.lines(m)
	if len(lines) == 0 {
		return nil
	}
	return s.send(lines)
}

// lines renders every counter/gauge/timing into one statsd line each,
// formatted "<prefix>.<group>.<name-with-first-underscore-as-dot>:<value>|<group>".
func (s *Sink) lines(m *core.Meta) []string {
	var out []string
	for name, v := range m.Counters {
		out = append(out, s.line(string(core.MetaCounter), name, formatNum(v)))
	}
	for name, v := range m.Gauges {
		out = append(out, s.line(string(core.MetaGauge), name, formatNum(v)))
	}
	for name, d := range m.Timings {
		out = append(out, s.line(string(core.MetaTiming), name, strconv.FormatInt(d.Milliseconds(), 10)))
	}
	return out
}

func (s *Sink) line(group, name, value string) string {
	// The spec names the metric as "<group>.<name-with-first-underscore-
	// replaced-by-dot>", so e.g. counter "in_fmt_jpeg" renders as
	// "c.in.fmt_jpeg", timing "time_resize" as "ms.time.resize".
	dotted := strings.Replace(name, "_", ".", 1)
	return fmt.Sprintf("%s.%s.%s:%s|%s\n", s.prefix, group, dotted, value, group)
}

// send packs lines greedily into datagrams of at most maxDatagramBytes:
// append the next line if it still fits, otherwise flush the current
// datagram and start a new one (§4.6).
func (s *Sink) send(lines []string) error {
	var batch strings.Builder
	for _, line := range lines {
		if batch.Len() > 0 && batch.Len()+len(line) > maxDatagramBytes {
			if err := s.write(batch.String()); err != nil {
				return err
			}
			batch.Reset()
		}
		if len(line) > maxDatagramBytes {
			// A single line that alone exceeds the datagram limit is sent
			// on its own; there's no smaller unit to split it into.
			if err := s.write(line); err != nil {
				return err
			}
			continue
		}
		batch.WriteString(line)
	}
	if batch.Len() > 0 {
		return s.write(batch.String())
	}
	return nil
}

func (s *Sink) write(payload string) error {
	_, err := s.conn.Write([]byte(payload))
	return err
}

func formatNum(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteDeadline is exposed for tests that want to bound a Flush call
// against a slow or unreachable sink without changing Sink's default
// fire-and-forget behavior.
func (s *Sink) WriteDeadline(d time.Duration) error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.SetWriteDeadline(time.Now().Add(d))
}
