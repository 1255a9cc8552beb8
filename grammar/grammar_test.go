package grammar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kansoc/grammar"
	"kansoc/internal/errors"
)

const helloSource = `// greeting contract
contract Hello;

type Pair = (Uint64, Uint64);
type Flag = Off | On;

field welcome: Uint64;

transition setHello(msg: Uint64) {
entry:
    %flag = construct True;
    match %flag { True => store_it, False => done };
store_it:
    store welcome, msg;
    jump done;
done:
    return;
}

pure sum(n: Uint64) -> Uint64 {
entry:
    %zero = const Uint64 0;
    jump loop(%zero, %zero);
loop(i: Uint64, acc):
    %done = ge i, n;
    branch %done, exit, body;
body:
    %one = const Uint64 0x1;
    %ni = add i, %one;
    %na = add acc, i;
    jump loop(%ni, %na);
exit:
    %s = const "hi";
    %r = call helper(acc);
    call helper(acc);
    return acc;
}
`

func TestParseProgram(t *testing.T) {
	program, err := grammar.ParseString("hello.kir", helloSource)
	require.NoError(t, err)

	assert.Equal(t, "Hello", program.Contract.Value)

	require.Len(t, program.Types, 2)
	assert.Equal(t, "Pair", program.Types[0].Name.Value)
	require.NotNil(t, program.Types[0].Tuple)
	assert.Len(t, program.Types[0].Tuple.Fields, 2)
	assert.Equal(t, "Flag", program.Types[1].Name.Value)
	require.Len(t, program.Types[1].Variant, 2)
	assert.Equal(t, "On", program.Types[1].Variant[1].Tag.Value)

	require.Len(t, program.Fields, 1)
	assert.Equal(t, "welcome", program.Fields[0].Name.Value)
	assert.Equal(t, "Uint64", program.Fields[0].Type.Value)

	require.Len(t, program.Functions, 2)
	set := program.Functions[0]
	assert.Equal(t, "transition", set.Kind)
	assert.Equal(t, "setHello", set.Name.Value)
	assert.Nil(t, set.Return)
	require.Len(t, set.Blocks, 3)
	assert.Equal(t, []string{"entry", "store_it", "done"},
		[]string{set.Blocks[0].Label.Value, set.Blocks[1].Label.Value, set.Blocks[2].Label.Value})

	match := set.Blocks[0].Instructions[1].Match
	require.NotNil(t, match)
	assert.Equal(t, "%flag", match.Subject.Value)
	require.Len(t, match.Arms, 2)
	assert.Equal(t, "False", match.Arms[1].Tag.Value)
	assert.Equal(t, "done", match.Arms[1].Target.Label.Value)

	sum := program.Functions[1]
	assert.Equal(t, "pure", sum.Kind)
	require.NotNil(t, sum.Return)
	assert.Equal(t, "Uint64", sum.Return.Value)

	loop := sum.Blocks[1]
	require.Len(t, loop.Params, 2)
	assert.Equal(t, "Uint64", loop.Params[0].Type.Value)
	assert.Nil(t, loop.Params[1].Type, "block parameter types are optional")

	jump := sum.Blocks[0].Instructions[1].Jump
	require.NotNil(t, jump)
	assert.Len(t, jump.Target.Args, 2)

	exit := sum.Blocks[3].Instructions
	require.Len(t, exit, 4)
	require.NotNil(t, exit[0].Assign.Const.String)
	assert.Equal(t, "hi", *exit[0].Assign.Const.String)
	require.NotNil(t, exit[1].Assign.Call)
	assert.Equal(t, "helper", exit[1].Assign.Call.Callee.Value)
	require.NotNil(t, exit[2].Call, "call without destination")
	require.NotNil(t, exit[3].Return.Value)
}

func TestParsePositions(t *testing.T) {
	program, err := grammar.ParseString("hello.kir", helloSource)
	require.NoError(t, err)

	field := program.Fields[0]
	assert.Equal(t, 7, field.Pos.Line)
	assert.Equal(t, 1, field.Pos.Column)
	assert.Equal(t, 7, field.Name.Pos.Line)
	assert.Equal(t, 7, field.Name.Pos.Column)
}

func TestPrinterRoundTrip(t *testing.T) {
	program, err := grammar.ParseString("hello.kir", helloSource)
	require.NoError(t, err)

	printed := program.String()
	again, err := grammar.ParseString("printed.kir", printed)
	require.NoError(t, err, printed)
	assert.Equal(t, printed, again.String())
	assert.Contains(t, printed, "    match %flag { True => store_it, False => done };\n")
	assert.Contains(t, printed, "loop(i: Uint64, acc):\n")
	assert.Contains(t, printed, `    %s = const "hi";`)
}

func TestSyntaxError(t *testing.T) {
	_, err := grammar.ParseString("bad.kir", "contract Bad;\nfield x Uint64;\n")
	require.Error(t, err)

	ce, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorSyntax, ce.Code)
	assert.Equal(t, 2, ce.Position.Line)
}

func TestParseFileMissing(t *testing.T) {
	_, err := grammar.ParseFile("does-not-exist.kir")
	assert.Error(t, err)
}
