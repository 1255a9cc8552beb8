package abi

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

func TestSelectorKnownValues(t *testing.T) {
	sel, err := SelectorOf("transfer", "Address", "Uint256")
	require.NoError(t, err)
	assert.Equal(t, "0xa9059cbb", sel.String())

	sel, err = SelectorOf("balanceOf", "Address")
	require.NoError(t, err)
	assert.Equal(t, "0x70a08231", sel.String())
}

func TestSelectorDeterminismAndOrder(t *testing.T) {
	first, err := SelectorOf("transfer", "Uint256", "Address")
	require.NoError(t, err)
	second, err := SelectorOf("transfer", "Uint256", "Address")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	swapped, err := SelectorOf("transfer", "Address", "Uint256")
	require.NoError(t, err)
	assert.NotEqual(t, first, swapped)
}

func TestCanonicalSignature(t *testing.T) {
	sig, err := NewSignature("setHello", []string{"Uint64", "Bool", "String"}, "")
	require.NoError(t, err)
	assert.Equal(t, "setHello(uint64,bool,string)", sig.Canonical())

	_, err = NewSignature("bad", []string{"Pair"}, "")
	assert.Error(t, err)
}

func TestGenerateTransactionData(t *testing.T) {
	sig, err := NewSignature("setHello", []string{"Uint64"}, "")
	require.NoError(t, err)

	data, err := GenerateTransactionData(sig, NewUint(42))
	require.NoError(t, err)
	require.Len(t, data, 36)
	assert.Equal(t, sig.Selector[:], data[:4])
	assert.Equal(t,
		"000000000000000000000000000000000000000000000000000000000000002a",
		hex.EncodeToString(data[4:]))
}

func TestEncodeValues(t *testing.T) {
	word, err := Bool(true).Encode("bool")
	require.NoError(t, err)
	assert.Equal(t, byte(1), word[31])

	addr := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	word, err = Address(addr).Encode("address")
	require.NoError(t, err)
	assert.Equal(t, addr.Bytes(), word[12:])

	word, err = String("hi").Encode("string")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), word[30:])
	assert.Equal(t, make([]byte, 30), word[:30])

	_, err = String("this string is much longer than thirty-two bytes").Encode("string")
	assert.Error(t, err)

	_, err = NewUint(256).Encode("uint8")
	assert.Error(t, err)

	_, err = NewUint(1).Encode("bool")
	assert.Error(t, err)
}

func TestGenerateTransactionDataArity(t *testing.T) {
	sig, err := NewSignature("pair", []string{"Uint8", "Uint8"}, "")
	require.NoError(t, err)

	_, err = GenerateTransactionData(sig, NewUint(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindExecution))
}

func TestTableFromProgram(t *testing.T) {
	b := ir.NewBuilder("Token")
	b.Function("transfer", ir.Transition).Param("to", "Address").Param("amount", "Uint256").
		Block("entry").Return("")
	b.Function("helper", ir.Procedure).Block("entry").Return("")
	b.Function("total", ir.Transition).Returns("Uint256").
		Block("entry").Const("%z", "Uint256", "0").Return("%z")
	program := b.MustBuild()

	table, err := NewTable(program)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len(), "only transitions are external")

	sig, ok := table.Lookup("transfer")
	require.True(t, ok)
	assert.Equal(t, "0xa9059cbb", sig.Selector.String())

	found, ok := table.LookupSelector(sig.Selector)
	require.True(t, ok)
	assert.Equal(t, "transfer", found.Name)

	_, ok = table.Lookup("helper")
	assert.False(t, ok)

	_, err = table.GenerateTransactionData("missing")
	assert.Error(t, err)
}

func TestTableRejectsCollisions(t *testing.T) {
	table := NewEmptyTable()
	sig, err := NewSignature("f", nil, "")
	require.NoError(t, err)
	require.NoError(t, table.Add(sig))

	clash := &Signature{Name: "g", Selector: sig.Selector}
	err = table.Add(clash)
	require.Error(t, err)
	ce, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindAssembly, ce.Kind)
	assert.Equal(t, errors.ErrorSelectorCollision, ce.Code)
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue("uint64", "42")
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())

	v, err = ParseValue("bool", "true")
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)

	v, err = ParseValue("string", `"hello"`)
	require.NoError(t, err)
	assert.Equal(t, String("hello"), v)

	_, err = ParseValue("address", "nope")
	assert.Error(t, err)
}

func TestParseArguments(t *testing.T) {
	sig, err := NewSignature("set", []string{"Uint64", "Bool"}, "")
	require.NoError(t, err)

	values, err := ParseArguments(sig, []string{"7", "false"})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "7", values[0].String())
	assert.Equal(t, Bool(false), values[1])

	_, err = ParseArguments(sig, []string{"7"})
	assert.True(t, errors.Is(err, errors.KindOf(errors.ErrorInvalidCall)))

	_, err = ParseArguments(sig, []string{"7", "maybe"})
	assert.Error(t, err)
}
