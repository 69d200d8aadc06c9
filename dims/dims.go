// Package dims implements the dimension-token parser and gravity-box
// arithmetic (C2, spec §4.2).
package dims

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/redfin/dirpy/core"
	apperrors "github.com/redfin/dirpy/errors"
)

// tokenPattern matches an option key encoding 1-4 "x"-separated integers,
// with empty fields meaning "unspecified" (§4.2): "640x480", "640x", "x480",
// "0x0x100x100".
var tokenPattern = regexp.MustCompile(`^[0-9]*x[0-9]*(x[0-9]*x[0-9]*)?$`)

// unset marks a ReqDims position that was never explicitly provided.
const unset = -1

// ParseDimTokens scans opts for dimension-token keys and merges them into
// req-dims (§3, §4.2). Positions may each be set at most once across all
// matching keys in the bag; setting the same position twice is a user
// error. The result length is always 4; NumDims reports how many leading
// positions (2 or 4) were touched by the largest token seen.
func ParseDimTokens(opts core.Options) (reqDims [4]int, numDims int, err error) {
	slots := [4]int{unset, unset, unset, unset}
	touched := [4]bool{}
	maxPos := 0

	for key := range opts {
		if !tokenPattern.MatchString(key) {
			continue
		}
		parts := strings.Split(key, "x")
		if len(parts) < 2 || len(parts) > 4 {
			return reqDims, 0, apperrors.User("malformed dimension token %q", key)
		}
		for i, p := range parts {
			if p == "" {
				continue
			}
			n, convErr := strconv.Atoi(p)
			if convErr != nil {
				return reqDims, 0, apperrors.User("malformed dimension token %q", key)
			}
			if touched[i] {
				return reqDims, 0, apperrors.User("dimension position %d set more than once", i)
			}
			slots[i] = n
			touched[i] = true
			if i+1 > maxPos {
				maxPos = i + 1
			}
		}
	}

	numDims = 2
	if maxPos > 2 {
		numDims = 4
	}
	for i := 0; i < 4; i++ {
		if slots[i] == unset {
			reqDims[i] = 0
		} else {
			reqDims[i] = slots[i]
		}
	}
	return reqDims, numDims, nil
}

// box is the [x0, y0, x1, y1] rectangle produced by GravityBox.
type box struct{ X0, Y0, X1, Y1 int }

// GravityBox computes the placement rectangle for a req-sized rectangle
// inside an out-sized canvas, anchored by gravity (§4.2 "_get_new_dims").
// Unspecified reqX/reqY (0) default to the corresponding outX/outY.
func GravityBox(gravity core.Gravity, reqX, reqY, outX, outY int) (x0, y0, x1, y1 int) {
	if reqX <= 0 {
		reqX = outX
	}
	if reqY <= 0 {
		reqY = outY
	}

	g := string(gravity)

	switch {
	case strings.Contains(g, "w"):
		x0 = 0
	case strings.Contains(g, "e"):
		x0 = absInt(outX - reqX)
	default:
		x0 = absInt(outX-reqX) / 2
	}

	switch {
	case strings.Contains(g, "n"):
		y0 = 0
	case strings.Contains(g, "s"):
		y0 = absInt(outY - reqY)
	default:
		y0 = absInt(outY-reqY) / 2
	}

	x1 = x0 + minInt(reqX, outX)
	y1 = y0 + minInt(reqY, outY)
	return x0, y0, x1, y1
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
