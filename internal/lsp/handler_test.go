package lsp_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"kansoc/internal/lsp"
)

const ghostSource = `contract Ghost;
field welcome: Uint64;
transition set(msg: Uint64) {
entry:
    store welcom, msg;
    return;
}
`

func exampleURI(t *testing.T, name string) string {
	t.Helper()
	absPath, err := filepath.Abs(filepath.Join("../../examples", name))
	require.NoError(t, err, "Failed to get absolute path")
	return "file://" + filepath.ToSlash(absPath)
}

func recordingContext(published *[]*protocol.PublishDiagnosticsParams) *glsp.Context {
	return &glsp.Context{
		Notify: func(method string, params any) {
			if p, ok := params.(*protocol.PublishDiagnosticsParams); ok {
				*published = append(*published, p)
			}
		},
	}
}

func TestTextDocumentSemanticTokensFull(t *testing.T) {
	handler := lsp.NewKirHandler()

	ctx := &glsp.Context{}
	params := &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: exampleURI(t, "hello.kir")},
	}

	tokens, err := handler.TextDocumentSemanticTokensFull(ctx, params)
	require.NoError(t, err, "TextDocumentSemanticTokensFull returned error")
	require.NotNil(t, tokens, "Returned tokens should not be nil")

	decoded, err := decodeSemanticTokens(tokens.Data)
	require.NoError(t, err, "Failed to decode semantic tokens")
	require.Len(t, decoded, 22)

	assertToken(t, &decoded[0], 2, 1, 8, "keyword", nil)
	assertToken(t, &decoded[1], 2, 10, 5, "namespace", []string{"declaration"})
	assertToken(t, &decoded[2], 4, 1, 5, "keyword", nil)
	assertToken(t, &decoded[3], 4, 7, 7, "property", []string{"declaration"})
	assertToken(t, &decoded[4], 4, 16, 6, "type", nil)
	assertToken(t, &decoded[5], 6, 1, 10, "modifier", nil)
	assertToken(t, &decoded[6], 6, 12, 8, "function", []string{"declaration"})
	assertToken(t, &decoded[7], 6, 21, 3, "parameter", []string{"declaration"})
	assertToken(t, &decoded[8], 6, 26, 6, "type", nil)
	assertToken(t, &decoded[9], 7, 1, 5, "namespace", []string{"declaration"})
	assertToken(t, &decoded[10], 8, 5, 5, "keyword", nil)
	assertToken(t, &decoded[11], 8, 11, 7, "property", nil)
	assertToken(t, &decoded[12], 8, 20, 3, "parameter", nil)
	assertToken(t, &decoded[13], 9, 5, 6, "keyword", nil)
	assertToken(t, &decoded[14], 12, 1, 10, "modifier", nil)
	assertToken(t, &decoded[15], 12, 12, 8, "function", []string{"declaration"})
	assertToken(t, &decoded[16], 12, 26, 6, "type", nil)
	assertToken(t, &decoded[17], 13, 1, 5, "namespace", []string{"declaration"})
	assertToken(t, &decoded[18], 14, 5, 2, "variable", []string{"declaration"})
	assertToken(t, &decoded[19], 14, 15, 7, "property", nil)
	assertToken(t, &decoded[20], 15, 5, 6, "keyword", nil)
	assertToken(t, &decoded[21], 15, 12, 2, "variable", nil)
}

func TestDidOpenPublishesPipelineDiagnostics(t *testing.T) {
	handler := lsp.NewKirHandler()
	var published []*protocol.PublishDiagnosticsParams
	ctx := recordingContext(&published)
	uri := "file:///tmp/ghost.kir"

	err := handler.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "kir", Text: ghostSource},
	})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, uri, published[0].URI)

	diagnostics := published[0].Diagnostics
	require.Len(t, diagnostics, 1)
	d := diagnostics[0]
	assert.Equal(t, uint32(4), d.Range.Start.Line)
	assert.Equal(t, uint32(10), d.Range.Start.Character)
	assert.Equal(t, uint32(16), d.Range.End.Character)
	require.NotNil(t, d.Source)
	assert.Equal(t, "kansoc/storage-allocation", *d.Source)
	require.NotNil(t, d.Code)
	assert.Equal(t, "E1201", d.Code.Value)
	assert.Contains(t, d.Message, "welcom")

	// A fixed document clears the diagnostics
	fixed := strings.Replace(ghostSource, "store welcom,", "store welcome,", 1)
	err = handler.TextDocumentDidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri}},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: fixed}},
	})
	require.NoError(t, err)
	require.Len(t, published, 2)
	assert.NotNil(t, published[1].Diagnostics)
	assert.Empty(t, published[1].Diagnostics)
}

func TestSyntaxErrorKeepsLastParse(t *testing.T) {
	handler := lsp.NewKirHandler()
	var published []*protocol.PublishDiagnosticsParams
	ctx := recordingContext(&published)
	uri := "file:///tmp/ghost.kir"

	require.NoError(t, handler.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, Text: ghostSource},
	}))
	require.NoError(t, handler.TextDocumentDidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri}},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "contract Ghost;\nfield x Uint64;\n"}},
	}))
	require.Len(t, published, 2)
	require.Len(t, published[1].Diagnostics, 1)
	assert.Equal(t, uint32(1), published[1].Diagnostics[0].Range.Start.Line)
	assert.Equal(t, "kansoc", *published[1].Diagnostics[0].Source)

	result, err := handler.TextDocumentCompletion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		},
	})
	require.NoError(t, err)
	list, ok := result.(*protocol.CompletionList)
	require.True(t, ok)

	labels := make([]string, len(list.Items))
	for i, item := range list.Items {
		labels[i] = item.Label
	}
	assert.Contains(t, labels, "store")
	assert.Contains(t, labels, "welcome", "declarations come from the last good parse")
	assert.Contains(t, labels, "set")
}

func TestDocumentSymbols(t *testing.T) {
	handler := lsp.NewKirHandler()

	result, err := handler.TextDocumentDocumentSymbol(&glsp.Context{}, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: exampleURI(t, "counter.kir")},
	})
	require.NoError(t, err)
	symbols, ok := result.([]protocol.DocumentSymbol)
	require.True(t, ok)

	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"Mode", "total", "mode", "double", "sum"}, names)
	assert.Equal(t, protocol.SymbolKindEnum, symbols[0].Kind)

	sum := symbols[4]
	assert.Equal(t, protocol.SymbolKindFunction, sum.Kind)
	require.Len(t, sum.Children, 6)
	assert.Equal(t, "loop", sum.Children[1].Name)
	assert.Equal(t, uint32(20), sum.Children[1].SelectionRange.Start.Line)
}

func TestAnalyzeExamplesCompileCleanly(t *testing.T) {
	for _, name := range []string{"hello.kir", "counter.kir"} {
		t.Run(name, func(t *testing.T) {
			handler := lsp.NewKirHandler()
			var published []*protocol.PublishDiagnosticsParams
			ctx := recordingContext(&published)

			_, err := handler.TextDocumentSemanticTokensFull(ctx, &protocol.SemanticTokensParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: exampleURI(t, name)},
			})
			require.NoError(t, err)
			require.Len(t, published, 1)
			assert.Empty(t, published[0].Diagnostics)
		})
	}
}

func TestConvertPlainError(t *testing.T) {
	diagnostics := lsp.ConvertError(fmt.Errorf("boom"))
	require.Len(t, diagnostics, 1)
	assert.Equal(t, "boom", diagnostics[0].Message)
	assert.Equal(t, uint32(0), diagnostics[0].Range.Start.Line)
}

type DecodedToken struct {
	Index     int
	Line      uint32
	Char      uint32
	Length    uint32
	Type      string
	Modifiers []string
}

func decodeSemanticTokens(raw []uint32) ([]DecodedToken, error) {
	if len(raw)%5 != 0 {
		return nil, fmt.Errorf("raw token data length %d is not a multiple of 5", len(raw))
	}

	var (
		decoded []DecodedToken
		line    uint32
		char    uint32
	)

	for i := 0; i < len(raw); i += 5 {
		deltaLine := raw[i]
		deltaStart := raw[i+1]
		length := raw[i+2]
		tokenTypeIdx := raw[i+3]
		tokenModMask := raw[i+4]

		if deltaLine == 0 {
			char += deltaStart
		} else {
			line += deltaLine
			char = deltaStart
		}

		var modifiers []string
		for j, name := range lsp.SemanticTokenModifiers {
			if tokenModMask&(1<<j) != 0 {
				modifiers = append(modifiers, name)
			}
		}

		decoded = append(decoded, DecodedToken{
			Index:     i / 5,
			Line:      line + 1, // LSP uses 0-based indexing
			Char:      char + 1, // LSP uses 0-based indexing
			Length:    length,
			Type:      lsp.SemanticTokenTypes[tokenTypeIdx],
			Modifiers: modifiers,
		})
	}

	return decoded, nil
}

func assertToken(t *testing.T, token *DecodedToken, expectedLine, expectedChar, expectedLength uint32, expectedType string, expectedModifiers []string) {
	require.Equal(t, expectedLine, token.Line, "line mismatch (expected line %d)", expectedLine)
	require.Equal(t, expectedChar, token.Char, "char mismatch (expected char %d)", expectedChar)
	require.Equal(t, expectedLength, token.Length, "length mismatch")
	require.Equal(t, expectedType, token.Type, "type mismatch")
	require.ElementsMatch(t, expectedModifiers, token.Modifiers, "modifiers mismatch")
}
