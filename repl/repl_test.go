package repl

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kansoc/internal/executor"
)

const hello = "../examples/hello.kir"

func TestParseCall(t *testing.T) {
	tests := []struct {
		line string
		name string
		args []string
	}{
		{"greeting", "greeting", []string{}},
		{"greeting()", "greeting", nil},
		{"setHello(42)", "setHello", []string{"42"}},
		{"sum( 5 , true )", "sum", []string{"5", "true"}},
		{"sum 5 true", "sum", []string{"5", "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, args, err := parseCall(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}

	_, _, err := parseCall("sum(5")
	assert.Error(t, err)
	_, _, err = parseCall("(5)")
	assert.Error(t, err)
}

func TestSessionLoadAndCall(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(&out)

	assert.False(t, s.Eval("setHello(42)"))
	assert.Contains(t, out.String(), "no program loaded")

	out.Reset()
	assert.False(t, s.Eval(":load "+hello))
	assert.Contains(t, out.String(), "loaded "+hello+": contract Hello, 2 transitions")
	assert.ElementsMatch(t, []string{"setHello", "greeting"}, s.Functions())

	out.Reset()
	s.Eval("setHello(42)")
	assert.Contains(t, out.String(), "success")
	contract := crypto.CreateAddress(executor.DefaultCaller, 0)
	assert.Contains(t, out.String(), executor.StorageKey(contract, 0)+" = "+common.BigToHash(big.NewInt(42)).Hex())

	out.Reset()
	s.Eval("greeting")
	assert.Contains(t, out.String(), "return 0 (0x")

	out.Reset()
	s.Eval("missing()")
	assert.Contains(t, out.String(), "no external function named 'missing'")
}

func TestSessionCommands(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(&out)

	s.Eval(":abi")
	assert.Contains(t, out.String(), "no program loaded")

	out.Reset()
	s.Eval(":reload")
	assert.Contains(t, out.String(), "no program loaded")

	s.Eval(":load " + hello)

	out.Reset()
	s.Eval(":abi")
	assert.Contains(t, out.String(), "setHello(uint64)")

	out.Reset()
	s.Eval(":ir")
	assert.Contains(t, out.String(), "contract Hello;")

	out.Reset()
	s.Eval(":disasm")
	assert.Contains(t, out.String(), "CALLDATALOAD")

	out.Reset()
	s.Eval(":gas 21000")
	assert.Contains(t, out.String(), "gas limit 21000")
	s.Eval(":gas nope")
	assert.Contains(t, out.String(), "invalid gas limit 'nope'")

	out.Reset()
	s.Eval(":frobnicate")
	assert.Contains(t, out.String(), "unknown command :frobnicate")

	assert.True(t, s.Eval(":quit"))
	assert.False(t, s.Eval("   "))
}

func TestFailedLoadKeepsPreviousProgram(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(&out)
	require.NoError(t, s.Load(hello))

	broken := filepath.Join(t.TempDir(), "ghost.kir")
	require.NoError(t, os.WriteFile(broken, []byte(`contract Ghost;
field welcome: Uint64;
transition set(msg: Uint64) {
entry:
    store welcom, msg;
    return;
}
`), 0o600))

	out.Reset()
	s.Eval(":load " + broken)
	assert.Contains(t, out.String(), "E1201")
	assert.Contains(t, out.String(), "ghost.kir:5:11")
	assert.ElementsMatch(t, []string{"setHello", "greeting"}, s.Functions())

	out.Reset()
	s.Eval(":load does-not-exist.kir")
	assert.Contains(t, out.String(), "does-not-exist.kir")
}

func TestFormatResult(t *testing.T) {
	contract := common.HexToAddress("0x01")
	value := common.HexToHash("0x07")
	res := &executor.Result{
		Contract: contract,
		ChangeSet: map[string]*common.Hash{
			executor.StorageKey(contract, 0): &value,
			contract.Hex():                    nil,
		},
		Failure: fmt.Errorf("execution reverted"),
		GasUsed: 21,
	}

	text := FormatResult(res)
	assert.Contains(t, text, "reverted")
	assert.Contains(t, text, "execution reverted")
	assert.Contains(t, text, "(21 gas)")
	assert.Contains(t, text, contract.Hex()+" ")
	assert.Contains(t, text, "deleted")
	assert.Contains(t, text, executor.StorageKey(contract, 0)+" = "+value.Hex())
}
