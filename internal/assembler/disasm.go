package assembler

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/vm"
)

// Instruction is one decoded opcode
type Instruction struct {
	Offset    int
	Op        vm.OpCode
	Immediate []byte
}

func (i Instruction) String() string {
	if len(i.Immediate) == 0 {
		return i.Op.String()
	}
	return fmt.Sprintf("%s 0x%s", i.Op.String(), hex.EncodeToString(i.Immediate))
}

// Decode splits bytecode into instructions. A push truncated by the end of
// the code keeps the bytes that are present.
func Decode(code []byte) []Instruction {
	var out []Instruction
	for pc := 0; pc < len(code); {
		op := vm.OpCode(code[pc])
		inst := Instruction{Offset: pc, Op: op}
		pc++
		if op >= vm.PUSH1 && op <= vm.PUSH32 {
			n := int(op) - int(vm.PUSH0)
			end := pc + n
			if end > len(code) {
				end = len(code)
			}
			inst.Immediate = code[pc:end]
			pc = end
		}
		out = append(out, inst)
	}
	return out
}

// Disassemble renders bytecode one instruction per line
func Disassemble(code []byte) string {
	var sb strings.Builder
	for _, inst := range Decode(code) {
		fmt.Fprintf(&sb, "%04x: %s\n", inst.Offset, inst)
	}
	return sb.String()
}

// Disassemble renders the executable with its labels and source positions
func (e *Executable) Disassemble() string {
	byOffset := make(map[int][]string)
	for _, name := range e.Labels() {
		pos := e.LabelPositions[name]
		byOffset[pos] = append(byOffset[pos], name)
	}

	var sb strings.Builder
	for _, inst := range Decode(e.Bytecode) {
		for _, label := range byOffset[inst.Offset] {
			fmt.Fprintf(&sb, "%s:\n", label)
		}
		line := fmt.Sprintf("    %04x: %s", inst.Offset, inst)
		if span, ok := e.SourceMap[inst.Offset]; ok {
			line = fmt.Sprintf("%-40s ; %d:%d", line, span.Line, span.Column)
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}
