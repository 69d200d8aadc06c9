package pipeline

import (
	"strconv"
	"strings"

	"github.com/redfin/dirpy/core"
	"github.com/redfin/dirpy/dims"
	apperrors "github.com/redfin/dirpy/errors"
)

// parseDims resolves the dimension tokens for one command's option bag via
// the C2 resolver and returns them as a flat [4]int plus how many of the
// leading positions were touched (§4.2).
func parseDims(opts core.Options) ([4]int, int, error) {
	reqDims, numDims, err := dims.ParseDimTokens(opts)
	if err != nil {
		return [4]int{}, 0, err
	}
	return reqDims, numDims, nil
}

// parsePercent parses the resize "pct" option, a bare integer percentage.
func parsePercent(raw string) (float64, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.User("resize: malformed pct %q", raw)
	}
	return float64(n), nil
}

// gravityOf resolves the "gravity" option against the image's current
// gravity, defaulting to core.DefaultGravity (§3).
func gravityOf(opts core.Options, current core.Gravity) (core.Gravity, error) {
	raw := opts.Get("gravity")
	if raw == "" {
		if !opts.Has("gravity") {
			if current == "" {
				return core.DefaultGravity, nil
			}
			return current, nil
		}
	}
	switch core.Gravity(raw) {
	case core.GravityN, core.GravityNE, core.GravityE, core.GravitySE,
		core.GravityS, core.GravitySW, core.GravityW, core.GravityNW, core.GravityC:
		return core.Gravity(raw), nil
	default:
		return "", apperrors.User("invalid gravity %q", raw)
	}
}

// normalizeHexColor auto-prefixes bare 3- or 6-hex-digit color strings with
// "#" and expands the 3-digit shorthand to the full 6-digit form (§4.3.4/
// §4.3.6 "3- or 6-hex-digit strings are auto-prefixed with #").
func normalizeHexColor(s string) string {
	if s == "" {
		return "white"
	}
	digits := strings.TrimPrefix(s, "#")
	if isHex(digits) && len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	if isHex(digits) && len(digits) == 6 {
		return "#" + digits
	}
	return s
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return len(s) > 0
}
