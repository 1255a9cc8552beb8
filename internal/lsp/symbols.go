package lsp

import (
	"github.com/alecthomas/participle/v2/lexer"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"kansoc/grammar"
)

var instructionKeywords = []string{
	"add", "sub", "mul", "div", "mod", "eq", "lt", "gt", "le", "ge", "and", "or",
	"const", "construct", "load", "store", "call",
	"jump", "branch", "match", "return", "throw",
}

var declarationKeywords = []string{"contract", "type", "field", "transition", "procedure", "pure"}

func keywordCompletions() []protocol.CompletionItem {
	kind := protocol.CompletionItemKindKeyword
	items := make([]protocol.CompletionItem, 0, len(declarationKeywords)+len(instructionKeywords))
	for _, list := range [][]string{declarationKeywords, instructionKeywords} {
		for _, kw := range list {
			items = append(items, protocol.CompletionItem{Label: kw, Kind: &kind})
		}
	}
	return items
}

func declarationCompletions(program *grammar.Program) []protocol.CompletionItem {
	if program == nil {
		return nil
	}

	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		items = append(items, protocol.CompletionItem{Label: label, Kind: &kind, Detail: ptrString(detail)})
	}

	for _, t := range program.Types {
		add(t.Name.Value, protocol.CompletionItemKindStruct, "type")
		for _, c := range t.Variant {
			add(c.Tag.Value, protocol.CompletionItemKindEnumMember, t.Name.Value)
		}
	}
	for _, f := range program.Fields {
		add(f.Name.Value, protocol.CompletionItemKindField, f.TypeText())
	}
	for _, f := range program.Functions {
		add(f.Name.Value, protocol.CompletionItemKindFunction, f.Kind)
	}
	return items
}

// documentSymbols lists declarations as an outline; functions nest their
// blocks
func documentSymbols(program *grammar.Program) []protocol.DocumentSymbol {
	symbols := []protocol.DocumentSymbol{}
	if program == nil {
		return symbols
	}

	for _, t := range program.Types {
		kind := protocol.SymbolKindStruct
		if len(t.Variant) > 0 {
			kind = protocol.SymbolKindEnum
		}
		symbols = append(symbols, symbol(t.Name.Value, "type", kind, t.Pos, t.EndPos, &t.Name))
	}
	for _, f := range program.Fields {
		symbols = append(symbols, symbol(f.Name.Value, f.TypeText(), protocol.SymbolKindField, f.Pos, f.EndPos, &f.Name))
	}
	for _, f := range program.Functions {
		fn := symbol(f.Name.Value, f.Kind, protocol.SymbolKindFunction, f.Pos, f.EndPos, &f.Name)
		for _, b := range f.Blocks {
			fn.Children = append(fn.Children, symbol(b.Label.Value, "block", protocol.SymbolKindKey, b.Pos, b.EndPos, &b.Label))
		}
		symbols = append(symbols, fn)
	}
	return symbols
}

func symbol(name, detail string, kind protocol.SymbolKind, start, end lexer.Position, id *grammar.PosIdent) protocol.DocumentSymbol {
	return protocol.DocumentSymbol{
		Name:           name,
		Detail:         ptrString(detail),
		Kind:           kind,
		Range:          rangeOf(start, end),
		SelectionRange: rangeOf(id.Pos, id.EndPos),
	}
}

func rangeOf(start, end lexer.Position) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(max(start.Line-1, 0)), Character: uint32(max(start.Column-1, 0))},
		End:   protocol.Position{Line: uint32(max(end.Line-1, 0)), Character: uint32(max(end.Column-1, 0))},
	}
}
