package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Position is a location in the IR source text
type Position struct {
	Offset int
	Line   int
	Column int
}

// CompilerErrorBuilder provides a fluent interface for creating compiler errors with suggestions
type CompilerErrorBuilder struct {
	err CompilerError
}

// NewCompilerError creates a new compiler error builder
func NewCompilerError(code, message string, pos Position) *CompilerErrorBuilder {
	return &CompilerErrorBuilder{
		err: CompilerError{
			Level:    Error,
			Kind:     KindOf(code),
			Code:     code,
			Message:  message,
			Position: pos,
			Length:   1,
		},
	}
}

// WithLength sets the length of the error span
func (b *CompilerErrorBuilder) WithLength(length int) *CompilerErrorBuilder {
	b.err.Length = length
	return b
}

// WithIdentifier records the offending identifier
func (b *CompilerErrorBuilder) WithIdentifier(name string) *CompilerErrorBuilder {
	b.err.Identifier = name
	if b.err.Length <= 1 && len(name) > 1 {
		b.err.Length = len(name)
	}
	return b
}

// WithSuggestion adds a suggestion to the error
func (b *CompilerErrorBuilder) WithSuggestion(message string) *CompilerErrorBuilder {
	b.err.Suggestions = append(b.err.Suggestions, Suggestion{Message: message})
	return b
}

// WithNote adds a note to the error
func (b *CompilerErrorBuilder) WithNote(note string) *CompilerErrorBuilder {
	b.err.Notes = append(b.err.Notes, note)
	return b
}

// WithHelp adds help text to the error
func (b *CompilerErrorBuilder) WithHelp(help string) *CompilerErrorBuilder {
	b.err.HelpText = help
	return b
}

// Build returns the completed compiler error
func (b *CompilerErrorBuilder) Build() CompilerError {
	return b.err
}

// Error renders the error on one line: "[pass] Kind[code]: message (identifier)"
func (e CompilerError) Error() string {
	var sb strings.Builder
	if e.Pass != "" {
		sb.WriteString("[" + e.Pass + "] ")
	}
	sb.WriteString(fmt.Sprintf("%s[%s]: %s", e.Kind, e.Code, e.Message))
	if e.Position.Line > 0 {
		sb.WriteString(fmt.Sprintf(" at %d:%d", e.Position.Line, e.Position.Column))
	}
	return sb.String()
}

// InPass returns a copy of the error attributed to the named pass
func (e CompilerError) InPass(pass string) CompilerError {
	if e.Pass == "" {
		e.Pass = pass
	}
	return e
}

// As extracts a CompilerError from an error chain
func As(err error) (CompilerError, bool) {
	var ce CompilerError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return CompilerError{}, false
}

// Is reports whether err carries a CompilerError of the given kind
func Is(err error, kind Kind) bool {
	ce, ok := As(err)
	return ok && ce.Kind == kind
}

// Common compiler error constructors with suggestions

// DuplicateType creates an error for a type name declared twice
func DuplicateType(name string, pos Position) CompilerError {
	return NewCompilerError(ErrorDuplicateType, fmt.Sprintf("duplicate type '%s'", name), pos).
		WithIdentifier(name).
		WithSuggestion(fmt.Sprintf("rename one of the '%s' declarations", name)).
		WithNote("built-in types cannot be redeclared").
		Build()
}

// UnresolvedType creates an error for a reference to an unknown type
func UnresolvedType(name string, pos Position, known []string) CompilerError {
	builder := NewCompilerError(ErrorUnresolvedType, fmt.Sprintf("unresolved type '%s'", name), pos).
		WithIdentifier(name)
	return withSimilar(builder, name, known).Build()
}

// ResolvedTwice creates an error for an attempt to rename an already resolved identifier
func ResolvedTwice(name, previous, next string, pos Position) CompilerError {
	return NewCompilerError(ErrorResolvedTwice,
		fmt.Sprintf("identifier '%s' already resolved to '%s', cannot resolve to '%s'", name, previous, next), pos).
		WithIdentifier(name).
		Build()
}

// DuplicateDefinition creates an error for a name defined twice in one scope
func DuplicateDefinition(name, scope string, pos Position) CompilerError {
	return NewCompilerError(ErrorDuplicateDefinition, fmt.Sprintf("duplicate definition of '%s' in %s", name, scope), pos).
		WithIdentifier(name).
		WithNote("identifiers must be unique within their scope").
		Build()
}

// UndefinedFunction creates an error for calls to unknown functions
func UndefinedFunction(name string, pos Position, known []string) CompilerError {
	builder := NewCompilerError(ErrorUndefinedFunction, fmt.Sprintf("function '%s' is not defined", name), pos).
		WithIdentifier(name)
	return withSimilar(builder, name, known).Build()
}

// UnknownConstructor creates an error for a tag no variant declares
func UnknownConstructor(tag string, pos Position) CompilerError {
	return NewCompilerError(ErrorUnknownConstructor, fmt.Sprintf("constructor '%s' does not belong to any variant type", tag), pos).
		WithIdentifier(tag).
		Build()
}

// MalformedType creates an error for a type declaration that fails validation
func MalformedType(name string, reason error, pos Position) CompilerError {
	return NewCompilerError(ErrorMalformedType, reason.Error(), pos).
		WithIdentifier(name).
		Build()
}

// CannotInferType creates an error for an identifier no inference rule covers
func CannotInferType(name, reason string, pos Position) CompilerError {
	return NewCompilerError(ErrorCannotInferType, fmt.Sprintf("cannot infer type of '%s': %s", name, reason), pos).
		WithIdentifier(name).
		WithHelp("types flow forward from definitions to uses; annotate literals and parameters").
		Build()
}

// TypeMismatch creates an error for operands of incompatible types
func TypeMismatch(name, expected, actual string, pos Position) CompilerError {
	return NewCompilerError(ErrorTypeMismatch,
		fmt.Sprintf("type mismatch for '%s': expected %s, found %s", name, expected, actual), pos).
		WithIdentifier(name).
		Build()
}

// UnresolvedStorage creates an error for a field without an allocated slot
func UnresolvedStorage(name string, pos Position, fields []string) CompilerError {
	builder := NewCompilerError(ErrorUnresolvedStorage, fmt.Sprintf("unresolved storage identifier '%s'", name), pos).
		WithIdentifier(name)
	builder = withSimilar(builder, name, fields)
	if len(fields) > 0 {
		builder = builder.WithNote(fmt.Sprintf("available fields: %s", strings.Join(fields, ", ")))
	}
	return builder.Build()
}

// DuplicateField creates an error for a contract field declared twice
func DuplicateField(name string, pos Position) CompilerError {
	return NewCompilerError(ErrorDuplicateField, fmt.Sprintf("duplicate field '%s'", name), pos).
		WithIdentifier(name).
		Build()
}

// UseBeforeDefinition creates an error for a use with no reaching definition
func UseBeforeDefinition(name, block string, pos Position) CompilerError {
	return NewCompilerError(ErrorUseBeforeDefinition,
		fmt.Sprintf("'%s' is used in block '%s' without a reaching definition", name, block), pos).
		WithIdentifier(name).
		Build()
}

// EntryLiveIn creates an internal-consistency error for values flowing into an entry block
func EntryLiveIn(function string, names []string, pos Position) CompilerError {
	return NewCompilerError(ErrorEntryLiveIn,
		fmt.Sprintf("entry block of '%s' requires undefined values: %s", function, strings.Join(names, ", ")), pos).
		WithIdentifier(names[0]).
		WithNote("the entry block has no predecessors, so these values are used before they are defined").
		Build()
}

// UnknownBlock creates an error for a jump to a label the function does not own
func UnknownBlock(label, function string, pos Position) CompilerError {
	return NewCompilerError(ErrorUnknownBlock, fmt.Sprintf("block '%s' is not defined in '%s'", label, function), pos).
		WithIdentifier(label).
		Build()
}

// UnbalancedArgument creates an error for an edge that cannot supply a block parameter
func UnbalancedArgument(name, from, to string, pos Position) CompilerError {
	return NewCompilerError(ErrorUnbalancedArgument,
		fmt.Sprintf("unbalanced block argument '%s': block '%s' cannot supply it to '%s'", name, from, to), pos).
		WithIdentifier(name).
		Build()
}

// UnresolvedLabel creates an error for a jump to a label that was never placed
func UnresolvedLabel(label string) CompilerError {
	return NewCompilerError(ErrorUnresolvedLabel, fmt.Sprintf("reference to undefined label '%s'", label), Position{}).
		WithIdentifier(label).
		Build()
}

// DuplicateLabel creates an error for a label the assembler places twice
func DuplicateLabel(label string) CompilerError {
	return NewCompilerError(ErrorDuplicateLabel, fmt.Sprintf("label '%s' is placed twice", label), Position{}).
		WithIdentifier(label).
		Build()
}

// SelectorCollision creates an error for two functions sharing a selector
func SelectorCollision(selector, first, second string) CompilerError {
	return NewCompilerError(ErrorSelectorCollision,
		fmt.Sprintf("selector %s of '%s' collides with '%s'", selector, second, first), Position{}).
		WithIdentifier(second).
		WithSuggestion("rename one of the functions").
		Build()
}

// CodeTooLarge creates an error for bytecode that cannot be addressed by PUSH2 targets
func CodeTooLarge(size int) CompilerError {
	return NewCompilerError(ErrorCodeTooLarge, fmt.Sprintf("bytecode size %d exceeds 65535 bytes", size), Position{}).
		Build()
}

// Unsupported creates an error for IR the assembler cannot lower
func Unsupported(what string, pos Position) CompilerError {
	return NewCompilerError(ErrorUnsupported, fmt.Sprintf("unsupported: %s", what), pos).Build()
}

// UnboundOperand creates an error for an operand not available in its block
func UnboundOperand(name, block string, pos Position) CompilerError {
	return NewCompilerError(ErrorUnboundOperand,
		fmt.Sprintf("operand '%s' is neither a parameter nor defined earlier in block '%s'", name, block), pos).
		WithIdentifier(name).
		WithNote("block arguments must be balanced before assembly").
		Build()
}

// InvalidCall creates an error for a transaction that does not match the signature table
func InvalidCall(message string) CompilerError {
	return NewCompilerError(ErrorInvalidCall, message, Position{}).Build()
}

// Interpreter creates an error for an interpreter that refused to run
func Interpreter(err error) CompilerError {
	return NewCompilerError(ErrorInterpreter, err.Error(), Position{}).Build()
}

// Syntax creates an error for malformed IR text
func Syntax(message string, pos Position) CompilerError {
	return NewCompilerError(ErrorSyntax, message, pos).Build()
}

// Helper functions

func withSimilar(builder *CompilerErrorBuilder, target string, candidates []string) *CompilerErrorBuilder {
	similar := findSimilarNames(target, candidates)
	switch len(similar) {
	case 0:
		return builder
	case 1:
		return builder.WithSuggestion(fmt.Sprintf("did you mean '%s'?", similar[0]))
	default:
		return builder.WithSuggestion(fmt.Sprintf("did you mean one of: '%s'?", strings.Join(similar, "', '")))
	}
}

func findSimilarNames(target string, candidates []string) []string {
	var similar []string

	for _, candidate := range candidates {
		if candidate != target && levenshteinDistance(target, candidate) <= 2 && len(candidate) > 2 {
			similar = append(similar, candidate)
		}
	}

	return similar
}

// Simple Levenshtein distance implementation for finding similar names
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}

	for i := 0; i <= len(a); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}
