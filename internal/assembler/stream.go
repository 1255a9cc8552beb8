package assembler

import (
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

// MaxCodeSize is the largest code whose offsets fit a PUSH2 jump target
const MaxCodeSize = 0xffff

// labelReference is a PUSH2 whose two operand bytes wait for a label offset
type labelReference struct {
	position int // offset of the PUSH2 opcode
	label    string
}

// opStream accumulates bytecode. Jump targets are written as zero
// placeholders and patched by resolveLabels once every label is placed.
type opStream struct {
	out             []byte
	labels          map[string]int
	labelReferences []labelReference
	sourceMap       map[int]ir.SourceSpan
	span            ir.SourceSpan
}

func newOpStream() *opStream {
	return &opStream{
		labels:    make(map[string]int),
		sourceMap: make(map[int]ir.SourceSpan),
	}
}

// at sets the source span attached to the following opcodes
func (ops *opStream) at(span ir.SourceSpan) {
	ops.span = span
}

func (ops *opStream) record() {
	if !ops.span.IsZero() {
		ops.sourceMap[len(ops.out)] = ops.span
	}
}

// op writes opcodes without immediates
func (ops *opStream) op(codes ...vm.OpCode) {
	for _, c := range codes {
		ops.record()
		ops.out = append(ops.out, byte(c))
	}
}

// push writes the shortest PUSHn for v. Zero is PUSH1 0 so the code runs
// on interpreters without PUSH0.
func (ops *opStream) push(v *uint256.Int) {
	b := v.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	ops.pushBytes(b)
}

// pushBytes writes PUSHn with exactly the given immediate bytes
func (ops *opStream) pushBytes(b []byte) {
	ops.record()
	ops.out = append(ops.out, byte(vm.PUSH1)+byte(len(b)-1))
	ops.out = append(ops.out, b...)
}

func (ops *opStream) pushUint(v uint64) {
	ops.push(uint256.NewInt(v))
}

// pushLabel writes PUSH2 with a placeholder for the label's offset
func (ops *opStream) pushLabel(label string) {
	ops.labelReferences = append(ops.labelReferences, labelReference{position: len(ops.out), label: label})
	ops.record()
	// zero bytes will get replaced with actual offset in resolveLabels()
	ops.out = append(ops.out, byte(vm.PUSH2), 0, 0)
}

// jump writes an unconditional jump to label
func (ops *opStream) jump(label string) {
	ops.pushLabel(label)
	ops.op(vm.JUMP)
}

// jumpIf writes a jump to label taken when the top of stack is non-zero
func (ops *opStream) jumpIf(label string) {
	ops.pushLabel(label)
	ops.op(vm.JUMPI)
}

// revert writes REVERT with empty return data
func (ops *opStream) revert() {
	ops.pushUint(0)
	ops.op(vm.DUP1, vm.REVERT)
}

// createLabel places label at the current offset and writes its JUMPDEST
func (ops *opStream) createLabel(label string) error {
	if _, exists := ops.labels[label]; exists {
		return errors.DuplicateLabel(label)
	}
	ops.labels[label] = len(ops.out)
	ops.op(vm.JUMPDEST)
	return nil
}

// resolveLabels patches every label reference with the label's offset
func (ops *opStream) resolveLabels() error {
	if len(ops.out) > MaxCodeSize {
		return errors.CodeTooLarge(len(ops.out))
	}
	for _, lr := range ops.labelReferences {
		dest, ok := ops.labels[lr.label]
		if !ok {
			return errors.UnresolvedLabel(lr.label)
		}
		ops.out[lr.position+1] = uint8(dest >> 8)
		ops.out[lr.position+2] = uint8(dest & 0x0ff)
	}
	return nil
}
