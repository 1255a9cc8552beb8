package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorReporter(t *testing.T) {
	source := `field counter: Uint64;

transition bump() {
  entry:
    %v = load countr;
    return;
}`

	reporter := NewErrorReporter("test.kir", source)

	err := UnresolvedStorage("countr", Position{Line: 5, Column: 15}, []string{"counter"}).InPass("storage-allocation")
	formatted := reporter.FormatError(err)

	assert.Contains(t, formatted, "error["+ErrorUnresolvedStorage+"]")
	assert.Contains(t, formatted, "unresolved storage identifier 'countr'")
	assert.Contains(t, formatted, "test.kir:5:15")
	assert.Contains(t, formatted, "storage-allocation")
	assert.Contains(t, formatted, "did you mean 'counter'?")
	assert.Contains(t, formatted, "available fields: counter")
}

func TestErrorReporterWithoutPosition(t *testing.T) {
	reporter := NewErrorReporter("test.kir", "")

	formatted := reporter.FormatError(UnresolvedLabel("done"))

	assert.Contains(t, formatted, "reference to undefined label 'done'")
	assert.NotContains(t, formatted, "-->")
}

func TestCompilerErrorKinds(t *testing.T) {
	pos := Position{Line: 1, Column: 1}

	cases := []struct {
		err  CompilerError
		kind Kind
	}{
		{DuplicateType("Bool", pos), KindResolution},
		{UnresolvedType("Uint6", pos, nil), KindResolution},
		{MalformedType("Empty", fmt.Errorf("no fields"), pos), KindResolution},
		{CannotInferType("%x", "untyped literal", pos), KindTypeInference},
		{UnresolvedStorage("f", pos, nil), KindStorageLayout},
		{UseBeforeDefinition("%x", "entry", pos), KindDependency},
		{EntryLiveIn("f", []string{"%x"}, pos), KindDependency},
		{UnbalancedArgument("%x", "a", "b", pos), KindBalancing},
		{UnresolvedLabel("l"), KindAssembly},
		{DuplicateLabel("l"), KindAssembly},
		{SelectorCollision("0x00000000", "a", "b"), KindAssembly},
		{InvalidCall("bad"), KindExecution},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.kind, tc.err.Kind, tc.err.Code)
		assert.NotEqual(t, "Unknown error code", GetErrorDescription(tc.err.Code), tc.err.Code)
	}
}

func TestCompilerErrorUnwrap(t *testing.T) {
	base := UnbalancedArgument("%v", "loop", "exit", Position{Line: 3, Column: 2}).InPass("block-argument-balancing")
	wrapped := fmt.Errorf("compile: %w", base)

	ce, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "block-argument-balancing", ce.Pass)
	assert.Equal(t, "%v", ce.Identifier)
	assert.True(t, Is(wrapped, KindBalancing))
	assert.False(t, Is(wrapped, KindAssembly))
	assert.Contains(t, wrapped.Error(), "[block-argument-balancing] BalancingError[E1401]")
}

func TestInPassKeepsFirstPass(t *testing.T) {
	err := DuplicateType("Pair", Position{}).InPass("type-collection").InPass("pipeline")
	assert.Equal(t, "type-collection", err.Pass)
}

func TestUnresolvedTypeSuggestions(t *testing.T) {
	err := UnresolvedType("Uint46", Position{Line: 1, Column: 1}, []string{"Uint64", "String", "Bool"})
	require.Len(t, err.Suggestions, 1)
	assert.Contains(t, err.Suggestions[0].Message, "did you mean 'Uint64'?")

	err = UnresolvedType("Zzz", Position{Line: 1, Column: 1}, []string{"Uint64"})
	assert.Empty(t, err.Suggestions)
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("slot", "slot"))
	assert.Equal(t, 1, levenshteinDistance("slot", "slat"))
	assert.Equal(t, 3, levenshteinDistance("", "abc"))
	assert.Equal(t, 2, levenshteinDistance("Uint46", "Uint64"))
}
