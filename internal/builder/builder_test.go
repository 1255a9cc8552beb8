package builder

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kansoc/internal/abi"
	"kansoc/internal/compiler"
	"kansoc/internal/errors"
	"kansoc/internal/executor"
	"kansoc/internal/ir"
)

func load(t *testing.T, path string) *ir.IntermediateRepresentation {
	t.Helper()
	source, err := os.ReadFile(path)
	require.NoError(t, err)
	program, err := BuildString(path, string(source))
	require.NoError(t, err)
	return program
}

func TestBuildHello(t *testing.T) {
	program := load(t, "../../examples/hello.kir")

	assert.Equal(t, "Hello", program.Contract)
	assert.Equal(t, []string{"welcome"}, program.FieldNames())
	assert.Equal(t, []string{"setHello", "greeting"}, program.FunctionNames())

	set, ok := program.Function("setHello")
	require.True(t, ok)
	assert.Equal(t, ir.Transition, set.Kind)
	require.Len(t, set.Parameters, 1)
	assert.Equal(t, "Uint64", set.Parameters[0].Type.UnresolvedName)
	assert.Equal(t, "entry", set.Entry)

	store, ok := set.Blocks[0].Instructions[0].(*ir.StoreField)
	require.True(t, ok)
	assert.Equal(t, "welcome", store.Field.UnresolvedName)
	assert.Equal(t, 8, store.Span().Line)
	assert.Equal(t, 5, store.Span().Column)
	assert.Equal(t, 8, store.Value.Span.Line)
	assert.Equal(t, 20, store.Value.Span.Column)
	assert.Equal(t, ir.KindLocal, store.Value.Kind)

	get, ok := program.Function("greeting")
	require.True(t, ok)
	require.NotNil(t, get.ReturnType)
	read, ok := get.Blocks[0].Instructions[0].(*ir.LoadField)
	require.True(t, ok)
	assert.Equal(t, ir.KindIntermediate, read.Dest.Kind)
	assert.True(t, read.Dest.IsDefinition)
}

func TestBuildInstructionForms(t *testing.T) {
	program, err := BuildString("forms.kir", `contract Forms;
type Pair = (Uint8, Uint8);
type Color = Red | Green(Uint8);
procedure f(c: Color) {
entry:
    %s = const "hi";
    %u = const 7;
    %t = const Uint8 0xff;
    match c { Red => red, _ => other };
red:
    call f(c);
    throw;
other:
    return;
}
`)
	require.NoError(t, err)

	require.Len(t, program.Types, 2)
	pair, ok := program.Types[0].(*ir.TupleType)
	require.True(t, ok)
	assert.Len(t, pair.Fields, 2)
	color, ok := program.Types[1].(*ir.VariantType)
	require.True(t, ok)
	require.Len(t, color.Constructors, 2)
	assert.Len(t, color.Constructors[1].Payload, 1)

	fn, ok := program.Function("f")
	require.True(t, ok)
	assert.Equal(t, ir.Procedure, fn.Kind)
	entry := fn.Blocks[0].Instructions

	str := entry[0].(*ir.Literal)
	assert.True(t, str.IsString)
	assert.Equal(t, "hi", str.Value)

	untyped := entry[1].(*ir.Literal)
	assert.Nil(t, untyped.LitType)
	assert.Equal(t, "7", untyped.Value)

	typed := entry[2].(*ir.Literal)
	require.NotNil(t, typed.LitType)
	assert.Equal(t, "0xff", typed.Value)

	match := entry[3].(*ir.Match)
	require.Len(t, match.Cases, 1)
	assert.Equal(t, "Red", match.Cases[0].Tag)
	require.NotNil(t, match.Default)
	assert.Equal(t, "other", match.Default.Label.UnresolvedName)

	call := fn.Blocks[1].Instructions[0].(*ir.Call)
	assert.Nil(t, call.Dest)
	assert.Equal(t, "f", call.Callee.UnresolvedName)
	_, ok = fn.Blocks[1].Instructions[1].(*ir.Throw)
	assert.True(t, ok)
}

func TestBuildNamesGeneratedValues(t *testing.T) {
	program, err := BuildString("gen.kir", `contract Gen;
field pair: (Uint8, Uint64);
field total: Uint64;
pure one() -> Uint64 {
entry:
    %one = const Uint64 1;
    return %one;
}
transition poke() {
entry:
    call one();
    call one();
    %kept = call one();
    store total, %kept;
    return;
}
`)
	require.NoError(t, err)

	require.Len(t, program.Types, 1)
	pair, ok := program.Types[0].(*ir.TupleType)
	require.True(t, ok)
	assert.Equal(t, "__anon_type_0", pair.Name.Key())
	assert.Equal(t, []string{"Uint8", "Uint64"}, []string{pair.Fields[0].UnresolvedName, pair.Fields[1].UnresolvedName})
	assert.Equal(t, "__anon_type_0", program.Fields[0].Name.Type.UnresolvedName)

	poke, ok := program.Function("poke")
	require.True(t, ok)
	calls := poke.Blocks[0].Instructions
	assert.Equal(t, "%__t0", calls[0].(*ir.Call).Dest.Key())
	assert.Equal(t, "%__t1", calls[1].(*ir.Call).Dest.Key())
	assert.Equal(t, "%kept", calls[2].(*ir.Call).Dest.Key())
	assert.Equal(t, 11, calls[0].(*ir.Call).Dest.Span.Line)

	out, err := compiler.Compile(program, compiler.Options{})
	require.NoError(t, err)
	res, err := executor.New(out.Executable, out.Table, executor.Config{}).Execute("poke")
	require.NoError(t, err)
	require.True(t, res.Succeeded(), "call failed: %v", res.Failure)
	total := res.ChangeSet[executor.StorageKey(res.Contract, 1)]
	require.NotNil(t, total)
	assert.Equal(t, byte(1), total[31])
}

func TestBuildRejectsDuplicates(t *testing.T) {
	_, err := BuildString("dup.kir", `contract Dup;
pure f() {
entry:
    return;
}
pure f() {
entry:
    return;
}
`)
	require.Error(t, err)
	ce, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorDuplicateDefinition, ce.Code)
	assert.Equal(t, 6, ce.Position.Line)

	_, err = BuildString("dup.kir", `contract Dup;
pure f() {
entry:
    jump entry;
entry:
    return;
}
`)
	require.Error(t, err)
	ce, ok = errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorDuplicateDefinition, ce.Code)
}

func TestPipelineErrorsCarrySourcePositions(t *testing.T) {
	program, err := BuildString("ghost.kir", `contract Ghost;
field welcome: Uint64;
transition set(msg: Uint64) {
entry:
    store welcom, msg;
    return;
}
`)
	require.NoError(t, err)

	_, err = compiler.Compile(program, compiler.Options{})
	require.Error(t, err)
	ce, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorUnresolvedStorage, ce.Code)
	assert.Equal(t, "storage-allocation", ce.Pass)
	assert.Equal(t, 5, ce.Position.Line)
	assert.Equal(t, 11, ce.Position.Column)
}

func TestPrintedProgramRebuilds(t *testing.T) {
	program := load(t, "../../examples/counter.kir")
	printed := ir.Print(program)

	again, err := BuildString("printed.kir", printed)
	require.NoError(t, err, printed)
	assert.Equal(t, printed, ir.Print(again))

	// A balanced program prints with explicit block parameters and still
	// parses and compiles
	_, err = compiler.Compile(program, compiler.Options{})
	require.NoError(t, err)
	balanced := ir.Print(program)
	rebuilt, err := BuildString("balanced.kir", balanced)
	require.NoError(t, err, balanced)
	_, err = compiler.Compile(rebuilt, compiler.Options{})
	require.NoError(t, err, balanced)
}

func TestCounterExample(t *testing.T) {
	out, err := compiler.Compile(load(t, "../../examples/counter.kir"), compiler.Options{})
	require.NoError(t, err)
	e := executor.New(out.Executable, out.Table, executor.Config{})

	res, err := e.Execute("sum", abi.NewUint(5), abi.Bool(true))
	require.NoError(t, err)
	require.True(t, res.Succeeded(), "call failed: %v", res.Failure)
	w, err := res.ReturnWord()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), w.Uint64())

	total := res.ChangeSet[executor.StorageKey(res.Contract, 0)]
	require.NotNil(t, total)
	assert.Equal(t, byte(20), total[31])

	res, err = e.Execute("sum", abi.NewUint(4), abi.Bool(false))
	require.NoError(t, err)
	w, err = res.ReturnWord()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), w.Uint64())
}

func TestHelloExample(t *testing.T) {
	out, err := compiler.Compile(load(t, "../../examples/hello.kir"), compiler.Options{})
	require.NoError(t, err)
	e := executor.New(out.Executable, out.Table, executor.Config{})

	res, err := e.Execute("setHello", abi.NewUint(42))
	require.NoError(t, err)
	require.Len(t, res.ChangeSet, 1)

	res, err = e.Execute("greeting")
	require.NoError(t, err)
	w, err := res.ReturnWord()
	require.NoError(t, err)
	assert.True(t, w.IsZero(), "each call starts from empty storage")
}
