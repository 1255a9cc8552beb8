package lsp

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"kansoc/grammar"
	"kansoc/internal/builder"
	"kansoc/internal/compiler"
	"kansoc/internal/errors"
)

// Analyze parses, builds and compiles a document. The parse tree is
// returned whenever parsing succeeded, even if a later stage failed. The
// diagnostics slice is never nil so that publishing it clears stale
// results in the client.
func Analyze(path, text string) (*grammar.Program, []protocol.Diagnostic) {
	tree, err := grammar.ParseString(path, text)
	if err != nil {
		return nil, ConvertError(err)
	}

	program, err := builder.Build(tree)
	if err != nil {
		return tree, ConvertError(err)
	}

	if err := compiler.Check(program); err != nil {
		return tree, ConvertError(err)
	}
	return tree, []protocol.Diagnostic{}
}

// ConvertError turns a compiler error into a diagnostic anchored at its
// source position. Errors without a position land on the first character.
func ConvertError(err error) []protocol.Diagnostic {
	ce, ok := errors.As(err)
	if !ok {
		return []protocol.Diagnostic{{
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("kansoc"),
			Message:  err.Error(),
		}}
	}

	line := uint32(max(ce.Position.Line-1, 0))
	start := uint32(max(ce.Position.Column-1, 0))
	length := uint32(max(ce.Length, 1))

	source := "kansoc"
	if ce.Pass != "" {
		source += "/" + ce.Pass
	}

	return []protocol.Diagnostic{{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: start},
			End:   protocol.Position{Line: line, Character: start + length},
		},
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Code:     &protocol.IntegerOrString{Value: ce.Code},
		Source:   ptrString(source),
		Message:  diagnosticMessage(ce),
	}}
}

func diagnosticMessage(ce errors.CompilerError) string {
	lines := []string{ce.Message}
	for _, s := range ce.Suggestions {
		lines = append(lines, "help: "+s.Message)
	}
	for _, n := range ce.Notes {
		lines = append(lines, "note: "+n)
	}
	if ce.HelpText != "" {
		lines = append(lines, "help: "+ce.HelpText)
	}
	return strings.Join(lines, "\n")
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
