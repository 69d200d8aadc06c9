package dims

import (
	"testing"

	"github.com/redfin/dirpy/core"
)

func opts(kv map[string]string, flags ...string) core.Options {
	o := core.Options{}
	for k, v := range kv {
		o[k] = core.OptionValue{Str: v}
	}
	for _, f := range flags {
		o[f] = core.OptionValue{True: true}
	}
	return o
}

func TestParseDimTokens_TwoDims(t *testing.T) {
	reqDims, numDims, err := ParseDimTokens(core.Options{"640x480": core.OptionValue{True: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if numDims != 2 {
		t.Fatalf("expected numDims=2, got %d", numDims)
	}
	if reqDims[0] != 640 || reqDims[1] != 480 {
		t.Fatalf("expected [640 480 0 0], got %v", reqDims)
	}
}

func TestParseDimTokens_FourDims(t *testing.T) {
	reqDims, numDims, err := ParseDimTokens(core.Options{"0x0x100x200": core.OptionValue{True: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if numDims != 4 {
		t.Fatalf("expected numDims=4, got %d", numDims)
	}
	if reqDims != [4]int{0, 0, 100, 200} {
		t.Fatalf("expected [0 0 100 200], got %v", reqDims)
	}
}

func TestParseDimTokens_PartialToken(t *testing.T) {
	reqDims, numDims, err := ParseDimTokens(core.Options{"640x": core.OptionValue{True: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if numDims != 2 {
		t.Fatalf("expected numDims=2, got %d", numDims)
	}
	if reqDims[0] != 640 || reqDims[1] != 0 {
		t.Fatalf("expected [640 0 0 0], got %v", reqDims)
	}
}

func TestParseDimTokens_DoubleSetIsError(t *testing.T) {
	o := core.Options{
		"640x480": core.OptionValue{True: true},
		"x600":    core.OptionValue{True: true}, // sets position 1 again
	}
	_, _, err := ParseDimTokens(o)
	if err == nil {
		t.Fatalf("expected error for a dimension position set twice")
	}
}

func TestParseDimTokens_NoTokensIsZeroValue(t *testing.T) {
	reqDims, numDims, err := ParseDimTokens(core.Options{"gravity": core.OptionValue{Str: "nw"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if numDims != 2 {
		t.Fatalf("expected default numDims=2, got %d", numDims)
	}
	if reqDims != [4]int{0, 0, 0, 0} {
		t.Fatalf("expected all-zero dims, got %v", reqDims)
	}
}

func TestGravityBox_Corners(t *testing.T) {
	cases := []struct {
		gravity                core.Gravity
		wantX0, wantY0         int
	}{
		{core.GravityNW, 0, 0},
		{core.GravityNE, 100, 0},
		{core.GravitySW, 0, 100},
		{core.GravitySE, 100, 100},
	}
	for _, c := range cases {
		x0, y0, x1, y1 := GravityBox(c.gravity, 50, 50, 150, 150)
		if x0 != c.wantX0 || y0 != c.wantY0 {
			t.Errorf("gravity %s: got (x0=%d,y0=%d), want (x0=%d,y0=%d)", c.gravity, x0, y0, c.wantX0, c.wantY0)
		}
		if x1-x0 != 50 || y1-y0 != 50 {
			t.Errorf("gravity %s: box size = (%d,%d), want (50,50)", c.gravity, x1-x0, y1-y0)
		}
	}
}

func TestGravityBox_CenterDefault(t *testing.T) {
	x0, y0, x1, y1 := GravityBox(core.GravityC, 50, 50, 150, 150)
	if x0 != 50 || y0 != 50 {
		t.Fatalf("expected centered box at (50,50), got (%d,%d)", x0, y0)
	}
	if x1-x0 != 50 || y1-y0 != 50 {
		t.Fatalf("expected 50x50 box, got (%d,%d)", x1-x0, y1-y0)
	}
}

func TestGravityBox_UnspecifiedReqDefaultsToOut(t *testing.T) {
	x0, y0, x1, y1 := GravityBox(core.GravityC, 0, 0, 200, 100)
	if x0 != 0 || y0 != 0 || x1 != 200 || y1 != 100 {
		t.Fatalf("expected full-canvas box (0,0,200,100), got (%d,%d,%d,%d)", x0, y0, x1, y1)
	}
}
