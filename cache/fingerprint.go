// Package cache implements the C5 cache adapter: fingerprinting, entry
// serialization, and a Redis-backed (single-host or cluster) store
// (spec §4.5).
package cache

import (
	"crypto/sha1"
	"encoding/hex"
)

// Fingerprint computes the cache key for one request: SHA1(prefix ||
// path || '/' || rawQuery) hex-encoded. rawQuery must be used verbatim,
// pre-normalization — "640x480,quality:90" and "quality:90,640x480"
// fingerprint to different keys even though they're semantically
// equivalent (§4.5 "Fingerprint").
func Fingerprint(prefix, path, rawQuery string) string {
	h := sha1.New()
	h.Write([]byte(prefix))
	h.Write([]byte(path))
	h.Write([]byte("/"))
	h.Write([]byte(rawQuery))
	return hex.EncodeToString(h.Sum(nil))
}
