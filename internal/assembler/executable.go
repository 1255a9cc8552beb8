package assembler

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"

	"kansoc/internal/ir"
)

// Executable is the finished output of the assembler. It is never modified
// after Assemble returns.
type Executable struct {
	Bytecode       []byte
	LabelPositions map[string]int
	// SourceMap holds the originating span of each emitted opcode that has
	// one. Opcodes without a span have no entry.
	SourceMap map[int]ir.SourceSpan
}

// CodeHash is the Keccak-256 hash of the runtime bytecode
func (e *Executable) CodeHash() common.Hash {
	return crypto.Keccak256Hash(e.Bytecode)
}

// Label returns the offset of a label
func (e *Executable) Label(name string) (int, bool) {
	pos, ok := e.LabelPositions[name]
	return pos, ok
}

// Labels lists label names ordered by offset
func (e *Executable) Labels() []string {
	names := make([]string, 0, len(e.LabelPositions))
	for name := range e.LabelPositions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := e.LabelPositions[names[i]], e.LabelPositions[names[j]]
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}

// SpanAt returns the source span of the opcode at offset
func (e *Executable) SpanAt(offset int) (ir.SourceSpan, bool) {
	span, ok := e.SourceMap[offset]
	return span, ok
}

// initCodeSize is the length of the constructor DeploymentCode prepends
const initCodeSize = 13

// DeploymentCode wraps the runtime bytecode in a constructor that copies it
// to memory and returns it, for deployment through a create transaction
func (e *Executable) DeploymentCode() []byte {
	n := len(e.Bytecode)
	code := make([]byte, 0, initCodeSize+n)
	code = append(code,
		byte(vm.PUSH2), byte(n>>8), byte(n),
		byte(vm.DUP1),
		byte(vm.PUSH2), byte(initCodeSize>>8), byte(initCodeSize),
		byte(vm.PUSH1), 0,
		byte(vm.CODECOPY),
		byte(vm.PUSH1), 0,
		byte(vm.RETURN),
	)
	return append(code, e.Bytecode...)
}
