package lsp

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"kansoc/grammar"
)

var log = commonlog.GetLogger("kansoc.lsp")

// SemanticTokenTypes is the legend advertised to clients; token types are
// encoded as indexes into it
var SemanticTokenTypes = []string{
	"namespace",
	"type",
	"typeParameter",
	"function",
	"variable",
	"parameter",
	"property",
	"keyword",
	"number",
	"operator",
	"modifier",
	"enumMember",
	"string",
}

// SemanticTokenModifiers is the modifier legend; modifiers are a bitmask
// over it
var SemanticTokenModifiers = []string{
	"declaration",
	"definition",
	"readonly",
	"static",
	"deprecated",
	"abstract",
}

// KirHandler implements the LSP server handlers for .kir documents
type KirHandler struct {
	mu       sync.RWMutex
	content  map[string]string
	programs map[string]*grammar.Program
}

// NewKirHandler creates and returns a new KirHandler instance
func NewKirHandler() *KirHandler {
	return &KirHandler{
		content:  make(map[string]string),
		programs: make(map[string]*grammar.Program),
	}
}

// Initialize advertises the server's capabilities
func (h *KirHandler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initialize")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			CompletionProvider: &protocol.CompletionOptions{
				ResolveProvider: ptrBool(false),
			},
			DocumentSymbolProvider: true,
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
	}, nil
}

func (h *KirHandler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Info("initialized")
	return nil
}

func (h *KirHandler) Shutdown(ctx *glsp.Context) error {
	log.Info("shutdown")
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (h *KirHandler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// TextDocumentDidOpen compiles the opened document and publishes its
// diagnostics
func (h *KirHandler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	log.Debugf("opened %s", params.TextDocument.URI)

	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}

	sendDiagnosticNotification(ctx, params.TextDocument.URI, h.update(path, params.TextDocument.Text))
	return nil
}

// TextDocumentDidChange recompiles the document from the last full-text
// change, falling back to the file on disk
func (h *KirHandler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	log.Debugf("changed %s", params.TextDocument.URI)

	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}

	text, ok := lastWholeChange(params.ContentChanges)
	if !ok {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", path, err)
		}
		text = string(content)
	}

	sendDiagnosticNotification(ctx, params.TextDocument.URI, h.update(path, text))
	return nil
}

func (h *KirHandler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	log.Debugf("closed %s", params.TextDocument.URI)

	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.content, path)
	delete(h.programs, path)

	return nil
}

// TextDocumentCompletion offers instruction keywords plus the fields,
// functions and constructors declared in the document
func (h *KirHandler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	items := keywordCompletions()

	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	program := h.programs[path]
	h.mu.RUnlock()

	items = append(items, declarationCompletions(program)...)
	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}, nil
}

func (h *KirHandler) TextDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	program, err := h.getOrUpdate(ctx, path, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return documentSymbols(program), nil
}

// TextDocumentSemanticTokensFull handles semantic token requests for the
// entire document
func (h *KirHandler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	program, err := h.getOrUpdate(ctx, path, params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	return &protocol.SemanticTokens{Data: encodeTokens(collectSemanticTokens(program))}, nil
}

// encodeTokens sorts tokens by position and applies the delta-line,
// delta-start compression of the wire format
func encodeTokens(tokens []SemanticToken) []uint32 {
	slices.SortStableFunc(tokens, func(a, b SemanticToken) int {
		if a.Line != b.Line {
			return int(a.Line) - int(b.Line)
		}
		return int(a.StartChar) - int(b.StartChar)
	})

	data := make([]uint32, 0, len(tokens)*5)
	var prevLine, prevStart uint32
	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		deltaStart := token.StartChar
		if deltaLine == 0 {
			deltaStart = token.StartChar - prevStart
		}

		data = append(data, deltaLine, deltaStart, token.Length, uint32(token.TokenType), uint32(token.TokenModifiers))

		prevLine = token.Line
		prevStart = token.StartChar
	}
	return data
}

// getOrUpdate returns the cached parse of path, loading it from disk when
// the document was never opened
func (h *KirHandler) getOrUpdate(ctx *glsp.Context, path string, rawURI protocol.DocumentUri) (*grammar.Program, error) {
	h.mu.RLock()
	program, ok := h.programs[path]
	h.mu.RUnlock()
	if ok {
		return program, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	sendDiagnosticNotification(ctx, rawURI, h.update(path, string(content)))

	h.mu.RLock()
	program = h.programs[path]
	h.mu.RUnlock()
	return program, nil
}

// update re-parses and re-compiles the document. The last successful parse
// stays cached so tokens and symbols survive a transient syntax error.
func (h *KirHandler) update(path, text string) []protocol.Diagnostic {
	program, diagnostics := Analyze(path, text)

	h.mu.Lock()
	h.content[path] = text
	if program != nil {
		h.programs[path] = program
	}
	h.mu.Unlock()

	return diagnostics
}

func lastWholeChange(changes []any) (string, bool) {
	for i := len(changes) - 1; i >= 0; i-- {
		switch change := changes[i].(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			return change.Text, true
		case *protocol.TextDocumentContentChangeEventWhole:
			return change.Text, true
		}
	}
	return "", false
}

// Convert URI to platform-local file path
func uriToPath(rawURI string) (string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}

	path := u.Path

	// /C:/... on Windows
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path), nil
}

func sendDiagnosticNotification(ctx *glsp.Context, uri protocol.URI, diagnostics []protocol.Diagnostic) {
	if ctx == nil || ctx.Notify == nil {
		return
	}

	log.Debugf("publishing %d diagnostics for %s", len(diagnostics), uri)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool {
	return &b
}

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
