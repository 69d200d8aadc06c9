package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/redfin/dirpy/core"
)

// Store reads and writes cache entries keyed by fingerprint (§4.5 "Read
// path"/"Write path"). Both lookup and store failures are the caller's
// responsibility to swallow-and-log; Store itself returns errors so the
// caller can decide — never failing the response is a server-layer
// policy, not a cache-layer one.
type Store struct {
	client redisClient
}

// redisClient is satisfied by the single-host and cluster adapters below,
// each wrapping *redis.Client / *redis.ClusterClient behind the same raw
// get/set surface so Store doesn't care which topology it's holding.
type redisClient interface {
	rawGet(ctx context.Context, key string) ([]byte, error)
	rawSet(ctx context.Context, key string, val []byte) error
}

// Config selects single-host or cluster topology (§4.5 "Topology").
type Config struct {
	Hosts   []string
	Cluster bool
	Prefix  string
}

// NewStore builds a Store from cfg. Multiple hosts with Cluster=false is
// a configuration error, matching §4.5's "non-cluster mode, multiple
// hosts is a configuration error".
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.New("cache: at least one redis host is required")
	}
	if !cfg.Cluster && len(cfg.Hosts) > 1 {
		return nil, errors.New("cache: multiple redis_hosts requires redis_cluster=true")
	}

	if cfg.Cluster {
		rc := redis.NewClusterClient(&redis.ClusterOptions{Addrs: normalizeHosts(cfg.Hosts)})
		return &Store{client: clusterAdapter{rc}}, nil
	}
	rc := redis.NewClient(&redis.Options{Addr: normalizeHosts(cfg.Hosts)[0]})
	return &Store{client: singleAdapter{rc}}, nil
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		if !strings.Contains(h, ":") {
			h += ":6379"
		}
		out[i] = h
	}
	return out
}

// Get looks up fingerprint and, on hit, returns the decoded entry.
func (s *Store) Get(ctx context.Context, fingerprint string) (*core.CacheEntry, bool, error) {
	raw, err := s.client.rawGet(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get %s: %w", fingerprint, err)
	}
	entry, err := unmarshalEntry(raw)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// Put writes entry under fingerprint with no expiration, matching the
// original's unbounded-TTL cache semantics.
func (s *Store) Put(ctx context.Context, fingerprint string, entry core.CacheEntry) error {
	raw := marshalEntry(entry)
	if err := s.client.rawSet(ctx, fingerprint, raw); err != nil {
		return fmt.Errorf("cache: put %s: %w", fingerprint, err)
	}
	return nil
}

// marshalEntry/unmarshalEntry implement the flat record described in
// §4.5 "Serialization" as a length-prefixed byte stream: this
// implementation's own wire format, not required to interoperate with
// any other implementation.
func marshalEntry(e core.CacheEntry) []byte {
	fmtBytes := []byte(e.OutFormat)
	buf := make([]byte, 0, 4+len(fmtBytes)+8+4+len(e.OutBuffer)+4+len(e.MetaData))
	buf = appendLP(buf, fmtBytes)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.OutSize))
	buf = appendLP(buf, e.OutBuffer)
	buf = appendLP(buf, e.MetaData)
	return buf
}

func unmarshalEntry(raw []byte) (*core.CacheEntry, error) {
	fmtBytes, rest, err := readLP(raw)
	if err != nil {
		return nil, err
	}
	if len(rest) < 8 {
		return nil, errors.New("cache: corrupt entry (size)")
	}
	size := int64(binary.LittleEndian.Uint64(rest[:8]))
	rest = rest[8:]
	outBuf, rest, err := readLP(rest)
	if err != nil {
		return nil, err
	}
	metaBlob, _, err := readLP(rest)
	if err != nil {
		return nil, err
	}
	return &core.CacheEntry{
		OutFormat: core.Format(fmtBytes),
		OutSize:   size,
		OutBuffer: outBuf,
		MetaData:  metaBlob,
	}, nil
}

func appendLP(buf []byte, data []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func readLP(buf []byte) (data []byte, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, errors.New("cache: corrupt entry (length prefix)")
	}
	n := binary.LittleEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, errors.New("cache: corrupt entry (truncated)")
	}
	return buf[:n:n], buf[n:], nil
}

// ── client adapters ────────────────────────────────────────────────────────

type singleAdapter struct{ c *redis.Client }

func (a singleAdapter) rawGet(ctx context.Context, key string) ([]byte, error) {
	return a.c.Get(ctx, key).Bytes()
}
func (a singleAdapter) rawSet(ctx context.Context, key string, val []byte) error {
	return a.c.Set(ctx, key, val, 0).Err()
}

type clusterAdapter struct{ c *redis.ClusterClient }

func (a clusterAdapter) rawGet(ctx context.Context, key string) ([]byte, error) {
	return a.c.Get(ctx, key).Bytes()
}
func (a clusterAdapter) rawSet(ctx context.Context, key string, val []byte) error {
	return a.c.Set(ctx, key, val, 0).Err()
}
