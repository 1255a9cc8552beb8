package assembler

import (
	"kansoc/internal/ir"
)

const (
	// FrameBase is the first memory offset used for values. Lower memory is
	// scratch space for return data.
	FrameBase = 0x80
	wordSize  = 32
)

// frame maps every value name of one function to its own memory word.
// Frames of different functions never overlap, so an internal call cannot
// clobber its caller's values.
type frame struct {
	slots map[string]uint64
}

// layoutFrames assigns memory words to every value of every function,
// functions after one another in declaration order
func layoutFrames(program *ir.IntermediateRepresentation) map[string]*frame {
	frames := make(map[string]*frame, len(program.Functions))
	next := uint64(FrameBase)

	for _, fn := range program.Functions {
		f := &frame{slots: make(map[string]uint64)}
		assign := func(id *ir.Identifier) {
			if id == nil {
				return
			}
			if _, ok := f.slots[id.Key()]; ok {
				return
			}
			f.slots[id.Key()] = next
			next += wordSize
		}

		for _, p := range fn.Parameters {
			assign(p)
		}
		for _, b := range fn.Blocks {
			for _, p := range b.Parameters {
				assign(p)
			}
			for _, inst := range b.Instructions {
				assign(inst.Result())
			}
		}
		frames[fn.Name.Key()] = f
	}
	return frames
}

func (f *frame) slot(name string) (uint64, bool) {
	s, ok := f.slots[name]
	return s, ok
}
