package pipeline

import "github.com/redfin/dirpy/core"

// BuildRegistry returns the closed set of positional pipeline operations
// dirpy recognizes (§4.3, §9 "Dispatch by name"). load and save are
// deliberately absent — they are reserved argument bags handled directly by
// Runner, never positional commands.
func BuildRegistry() *core.OpRegistry {
	reg := core.NewOpRegistry()
	reg.Register("resize", ResizeOp{})
	reg.Register("crop", CropOp{})
	reg.Register("pad", PadOp{})
	reg.Register("transpose", TransposeOp{})
	return reg
}
