package assembler

import (
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kansoc/internal/abi"
	"kansoc/internal/errors"
	"kansoc/internal/ir"
	"kansoc/internal/passes"
)

func compile(t *testing.T, program *ir.IntermediateRepresentation) *Executable {
	t.Helper()
	require.NoError(t, passes.NewDefaultManager().Run(program))
	table, err := abi.NewTable(program)
	require.NoError(t, err)
	exe, err := Assemble(program, table)
	require.NoError(t, err)
	return exe
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	ce, ok := errors.As(err)
	require.True(t, ok, "expected a compiler error, got %v", err)
	assert.Equal(t, code, ce.Code, ce.Error())
}

// checkJumps asserts every PUSH2 feeding a jump lands on a JUMPDEST that
// carries a label
func checkJumps(t *testing.T, exe *Executable) {
	t.Helper()
	targets := make(map[int]bool)
	for _, pos := range exe.LabelPositions {
		targets[pos] = true
	}
	insts := Decode(exe.Bytecode)
	for i := 0; i+1 < len(insts); i++ {
		if insts[i].Op != vm.PUSH2 {
			continue
		}
		next := insts[i+1].Op
		if next != vm.JUMP && next != vm.JUMPI {
			continue
		}
		dest := int(insts[i].Immediate[0])<<8 | int(insts[i].Immediate[1])
		require.Less(t, dest, len(exe.Bytecode))
		assert.Equal(t, byte(vm.JUMPDEST), exe.Bytecode[dest], "jump at %#x", insts[i].Offset)
		assert.True(t, targets[dest], "jump at %#x has no label", insts[i].Offset)
	}
}

func hello() *ir.IntermediateRepresentation {
	b := ir.NewBuilder("Hello")
	b.Field("welcome", "Uint64")
	b.Function("setHello", ir.Transition).Param("msg", "Uint64").
		Block("entry").Store("welcome", "msg").Return("")
	return b.MustBuild()
}

func TestAssembleHello(t *testing.T) {
	exe := compile(t, hello())

	sel, err := abi.SelectorOf("setHello", "Uint64")
	require.NoError(t, err)

	expected := []byte{
		// dispatcher
		byte(vm.PUSH1), 4, byte(vm.CALLDATASIZE), byte(vm.LT),
		byte(vm.PUSH2), 0x00, 0x19, byte(vm.JUMPI),
		byte(vm.PUSH1), 0, byte(vm.CALLDATALOAD), byte(vm.PUSH1), 0xe0, byte(vm.SHR),
		byte(vm.DUP1), byte(vm.PUSH4), sel[0], sel[1], sel[2], sel[3], byte(vm.EQ),
		byte(vm.PUSH2), 0x00, 0x1e, byte(vm.JUMPI),
		// $dispatch_revert
		byte(vm.JUMPDEST), byte(vm.PUSH1), 0, byte(vm.DUP1), byte(vm.REVERT),
		// setHello
		byte(vm.JUMPDEST), byte(vm.POP),
		byte(vm.PUSH1), 4, byte(vm.CALLDATALOAD), byte(vm.PUSH1), 0x80, byte(vm.MSTORE),
		// setHello::entry
		byte(vm.JUMPDEST),
		byte(vm.PUSH1), 0x80, byte(vm.MLOAD), byte(vm.PUSH1), 0, byte(vm.SSTORE),
		byte(vm.STOP),
	}
	assert.Equal(t, expected, exe.Bytecode)

	pos, ok := exe.Label(dispatchRevert)
	require.True(t, ok)
	assert.Equal(t, 0x19, pos)
	pos, ok = exe.Label("setHello")
	require.True(t, ok)
	assert.Equal(t, 0x1e, pos)
	pos, ok = exe.Label(BlockLabel("setHello", "entry"))
	require.True(t, ok)
	assert.Equal(t, 0x26, pos)

	assert.Equal(t, []string{dispatchRevert, "setHello", "setHello::entry"}, exe.Labels())
	assert.Empty(t, exe.SourceMap, "builder programs carry no spans")
	checkJumps(t, exe)
}

func TestSourceMapOnlyForSpannedInstructions(t *testing.T) {
	span := ir.SourceSpan{Start: 10, End: 20, Line: 3, Column: 5}
	b := ir.NewBuilder("Hello")
	b.Field("welcome", "Uint64")
	b.Function("setHello", ir.Transition).Param("msg", "Uint64").
		Block("entry").Store("welcome", "msg").At(span).Return("")
	exe := compile(t, b.MustBuild())

	entry, ok := exe.Label(BlockLabel("setHello", "entry"))
	require.True(t, ok)

	// PUSH1 0x80, MLOAD, PUSH1 0, SSTORE
	require.Len(t, exe.SourceMap, 4)
	for _, offset := range []int{entry + 1, entry + 3, entry + 4, entry + 6} {
		got, ok := exe.SpanAt(offset)
		require.True(t, ok, "offset %#x", offset)
		assert.Equal(t, span, got)
	}
	_, ok = exe.SpanAt(entry + 7)
	assert.False(t, ok, "return has no span")
}

func TestAssembleLoopResolvesJumps(t *testing.T) {
	b := ir.NewBuilder("Counter")
	b.Field("total", "Uint64")
	b.Function("count", ir.Transition).Param("n", "Uint64").Returns("Uint64").
		Block("entry").
		Const("%zero", "Uint64", "0").
		Jump("loop", "%zero").
		Next("loop").Param("i", "Uint64").
		Binary("%done", ir.OpGe, "i", "n").
		Branch("%done", ir.Target("exit"), ir.Target("body")).
		Next("body").
		Const("%one", "Uint64", "1").
		Binary("%next", ir.OpAdd, "i", "%one").
		Jump("loop", "%next").
		Next("exit").
		Store("total", "i").
		Return("i")
	exe := compile(t, b.MustBuild())

	for _, label := range []string{"count", "count::entry", "count::loop", "count::body", "count::exit"} {
		_, ok := exe.Label(label)
		assert.True(t, ok, label)
	}
	checkJumps(t, exe)

	entry, _ := exe.Label("count::entry")
	loop, _ := exe.Label("count::loop")
	assert.Less(t, entry, loop, "entry is laid out first")
}

func TestBranchEdgeWithArgumentsUsesTrampoline(t *testing.T) {
	b := ir.NewBuilder("Pick")
	b.Function("pick", ir.Transition).Param("c", "Bool").Param("x", "Uint64").Returns("Uint64").
		Block("entry").
		Const("%one", "Uint64", "1").
		Branch("c", ir.Target("done", "x"), ir.Target("done", "%one")).
		Next("done").Param("r", "Uint64").
		Return("r")
	exe := compile(t, b.MustBuild())

	found := false
	for _, label := range exe.Labels() {
		if label == "$pick::entry::edge__0" {
			found = true
		}
	}
	assert.True(t, found, "labels: %v", exe.Labels())
	checkJumps(t, exe)
}

func TestNarrowArithmeticIsMasked(t *testing.T) {
	b := ir.NewBuilder("Wrap")
	b.Function("inc", ir.Transition).Param("x", "Uint8").Returns("Uint8").
		Block("entry").
		Const("%one", "Uint8", "1").
		Binary("%y", ir.OpAdd, "x", "%one").
		Return("%y")
	exe := compile(t, b.MustBuild())

	insts := Decode(exe.Bytecode)
	masked := false
	for i := 0; i+2 < len(insts); i++ {
		if insts[i].Op == vm.ADD && insts[i+1].Op == vm.PUSH1 &&
			insts[i+1].Immediate[0] == 0xff && insts[i+2].Op == vm.AND {
			masked = true
		}
	}
	assert.True(t, masked, Disassemble(exe.Bytecode))
}

func TestInternalCall(t *testing.T) {
	b := ir.NewBuilder("Calls")
	b.Function("double", ir.Pure).Param("x", "Uint64").Returns("Uint64").
		Block("entry").Binary("%d", ir.OpAdd, "x", "x").Return("%d")
	b.Function("run", ir.Transition).Param("v", "Uint64").Returns("Uint64").
		Block("entry").Call("%r", "double", "v").Return("%r")
	exe := compile(t, b.MustBuild())

	_, ok := exe.Label("$run::ret__0")
	assert.True(t, ok, "labels: %v", exe.Labels())
	checkJumps(t, exe)
}

func TestGeneratedLabelsDoNotClashWithBlocks(t *testing.T) {
	b := ir.NewBuilder("Clash")
	b.Function("one", ir.Pure).Returns("Uint64").
		Block("entry").Const("%one", "Uint64", "1").Return("%one")
	b.Function("f", ir.Transition).Returns("Uint64").
		Block("entry").Jump("ret__0").
		Next("ret__0").Call("%r", "one").Return("%r")
	exe := compile(t, b.MustBuild())

	block, ok := exe.Label(BlockLabel("f", "ret__0"))
	require.True(t, ok)
	ret, ok := exe.Label("$f::ret__0")
	require.True(t, ok, "labels: %v", exe.Labels())
	assert.NotEqual(t, block, ret)
	checkJumps(t, exe)
}

func TestRejectsMatchOnPayloadVariant(t *testing.T) {
	b := ir.NewBuilder("Shapes")
	b.Type(ir.Variant("Shape", ir.Ctor("Dot"), ir.Ctor("Line", "Uint64")))
	b.Function("f", ir.Procedure).Param("s", "Shape").
		Block("entry").
		Match("s", ir.Target("done"), ir.Case("Dot", "done")).
		Next("done").
		Return("")
	program := b.MustBuild()
	require.NoError(t, passes.NewDefaultManager().Run(program))

	_, err := Assemble(program, abi.NewEmptyTable())
	requireCode(t, err, errors.ErrorUnsupported)
}

func TestRejectsRecursion(t *testing.T) {
	b := ir.NewBuilder("Loop")
	b.Function("spin", ir.Procedure).
		Block("entry").Call("", "spin").Return("")
	program := b.MustBuild()

	_, err := Assemble(program, abi.NewEmptyTable())
	requireCode(t, err, errors.ErrorUnsupported)
}

func TestRejectsCallToTransition(t *testing.T) {
	b := ir.NewBuilder("Calls")
	b.Function("pub", ir.Transition).Block("entry").Return("")
	b.Function("helper", ir.Procedure).Block("entry").Call("", "pub").Return("")
	program := b.MustBuild()

	_, err := Assemble(program, abi.NewEmptyTable())
	requireCode(t, err, errors.ErrorUnsupported)
}

func TestRejectsUnbalancedPrograms(t *testing.T) {
	t.Run("operand from another block", func(t *testing.T) {
		b := ir.NewBuilder("Leak")
		b.Function("f", ir.Pure).Returns("Uint64").
			Block("entry").Const("%one", "Uint64", "1").Jump("next").
			Next("next").Return("%one")
		_, err := Assemble(b.MustBuild(), abi.NewEmptyTable())
		requireCode(t, err, errors.ErrorUnboundOperand)
	})

	t.Run("missing edge argument", func(t *testing.T) {
		b := ir.NewBuilder("Short")
		b.Function("f", ir.Pure).Returns("Uint64").
			Block("entry").Jump("next").
			Next("next").Param("i", "Uint64").Return("i")
		_, err := Assemble(b.MustBuild(), abi.NewEmptyTable())
		requireCode(t, err, errors.ErrorUnbalancedArgument)
	})

	t.Run("entry with parameters", func(t *testing.T) {
		b := ir.NewBuilder("Entry")
		b.Function("f", ir.Pure).
			Block("entry").Param("i", "Uint64").Return("")
		_, err := Assemble(b.MustBuild(), abi.NewEmptyTable())
		requireCode(t, err, errors.ErrorEntryLiveIn)
	})

	t.Run("unallocated field", func(t *testing.T) {
		b := ir.NewBuilder("Fields")
		b.Function("f", ir.Procedure).Param("v", "Uint64").
			Block("entry").Store("ghost", "v").Return("")
		_, err := Assemble(b.MustBuild(), abi.NewEmptyTable())
		requireCode(t, err, errors.ErrorUnresolvedStorage)
	})
}

func TestSignatureWithoutFunction(t *testing.T) {
	table := abi.NewEmptyTable()
	sig, err := abi.NewSignature("ghost", nil, "")
	require.NoError(t, err)
	require.NoError(t, table.Add(sig))

	_, err = Assemble(ir.New("Empty"), table)
	requireCode(t, err, errors.ErrorUnsupported)
}

func TestOpStreamForwardReference(t *testing.T) {
	ops := newOpStream()
	ops.jump("later")
	ops.op(vm.STOP)
	require.NoError(t, ops.createLabel("later"))
	ops.op(vm.STOP)
	require.NoError(t, ops.resolveLabels())

	assert.Equal(t, []byte{
		byte(vm.PUSH2), 0x00, 0x05, byte(vm.JUMP),
		byte(vm.STOP),
		byte(vm.JUMPDEST), byte(vm.STOP),
	}, ops.out)
}

func TestOpStreamErrors(t *testing.T) {
	ops := newOpStream()
	ops.jump("nowhere")
	requireCode(t, ops.resolveLabels(), errors.ErrorUnresolvedLabel)

	ops = newOpStream()
	require.NoError(t, ops.createLabel("twice"))
	requireCode(t, ops.createLabel("twice"), errors.ErrorDuplicateLabel)

	ops = newOpStream()
	ops.out = make([]byte, MaxCodeSize+1)
	requireCode(t, ops.resolveLabels(), errors.ErrorCodeTooLarge)
}

func TestPushIsMinimal(t *testing.T) {
	ops := newOpStream()
	ops.pushUint(0)
	ops.pushUint(0xff)
	ops.pushUint(0x100)
	assert.Equal(t, []byte{
		byte(vm.PUSH1), 0,
		byte(vm.PUSH1), 0xff,
		byte(vm.PUSH2), 0x01, 0x00,
	}, ops.out)
}

func TestDisassemble(t *testing.T) {
	code := []byte{byte(vm.PUSH1), 0x2a, byte(vm.STOP), byte(vm.PUSH2), 0x01}
	assert.Equal(t, "0000: PUSH1 0x2a\n0002: STOP\n0003: PUSH2 0x01\n", Disassemble(code))
}

func TestDeploymentCode(t *testing.T) {
	exe := &Executable{Bytecode: []byte{byte(vm.STOP)}}
	code := exe.DeploymentCode()
	require.Len(t, code, initCodeSize+1)
	assert.Equal(t, byte(vm.CODECOPY), code[9])
	assert.Equal(t, byte(vm.STOP), code[initCodeSize])
}
