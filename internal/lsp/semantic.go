package lsp

import (
	"github.com/alecthomas/participle/v2/lexer"

	"kansoc/grammar"
)

// SemanticToken represents a single LSP semantic token entry
// Line and StartChar are 0-based positions
// TokenType is an index into SemanticTokenTypes
// TokenModifiers is a bitmask based on SemanticTokenModifiers
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

// tokenWalker collects tokens for one function at a time; params lets
// operand references to function parameters be told apart from locals
type tokenWalker struct {
	tokens []SemanticToken
	params map[string]bool
}

func collectSemanticTokens(program *grammar.Program) []SemanticToken {
	if program == nil {
		return nil
	}

	w := &tokenWalker{}
	w.keyword(program.Pos, "contract")
	w.ident(&program.Contract, "namespace", true)

	for _, t := range program.Types {
		w.keyword(t.Pos, "type")
		w.ident(&t.Name, "type", true)
		if t.Tuple != nil {
			for _, f := range t.Tuple.Fields {
				w.ident(f, "type", false)
			}
		}
		for _, c := range t.Variant {
			w.ident(&c.Tag, "enumMember", true)
			for _, p := range c.Payload {
				w.ident(p, "type", false)
			}
		}
	}

	for _, f := range program.Fields {
		w.keyword(f.Pos, "field")
		w.ident(&f.Name, "property", true)
		if f.Tuple != nil {
			for _, t := range f.Tuple.Fields {
				w.ident(t, "type", false)
			}
			continue
		}
		w.ident(f.Type, "type", false)
	}

	for _, f := range program.Functions {
		w.function(f)
	}
	return w.tokens
}

func (w *tokenWalker) function(f *grammar.FunctionDef) {
	w.params = make(map[string]bool)
	w.token(f.Pos, len(f.Kind), "modifier", false)
	w.ident(&f.Name, "function", true)
	for _, p := range f.Params {
		w.params[p.Name.Value] = true
		w.param(p, "parameter")
	}
	if f.Return != nil {
		w.ident(f.Return, "type", false)
	}

	for _, b := range f.Blocks {
		w.ident(&b.Label, "namespace", true)
		for _, p := range b.Params {
			w.param(p, "variable")
		}
		for _, inst := range b.Instructions {
			w.instruction(inst)
		}
	}
}

func (w *tokenWalker) param(p *grammar.Param, kind string) {
	w.ident(&p.Name, kind, true)
	if p.Type != nil {
		w.ident(p.Type, "type", false)
	}
}

func (w *tokenWalker) instruction(i *grammar.Instruction) {
	switch {
	case i.Store != nil:
		w.keyword(i.Pos, "store")
		w.ident(&i.Store.Field, "property", false)
		w.operand(&i.Store.Value)
	case i.Call != nil:
		w.call(i.Call)
	case i.Jump != nil:
		w.keyword(i.Pos, "jump")
		w.target(i.Jump.Target)
	case i.Branch != nil:
		w.keyword(i.Pos, "branch")
		w.operand(&i.Branch.Cond)
		w.target(i.Branch.Then)
		w.target(i.Branch.Else)
	case i.Match != nil:
		w.keyword(i.Pos, "match")
		w.operand(&i.Match.Subject)
		for _, arm := range i.Match.Arms {
			if arm.Tag.Value != "_" {
				w.ident(&arm.Tag, "enumMember", false)
			}
			w.target(arm.Target)
		}
	case i.Return != nil:
		w.keyword(i.Pos, "return")
		if i.Return.Value != nil {
			w.operand(i.Return.Value)
		}
	case i.Throw:
		w.keyword(i.Pos, "throw")
	case i.Assign != nil:
		w.assign(i.Assign)
	}
}

func (w *tokenWalker) assign(a *grammar.AssignInst) {
	w.ident(&a.Dest, "variable", true)

	switch {
	case a.Const != nil:
		w.keyword(a.Const.Pos, "const")
		if a.Const.Type != nil {
			w.ident(a.Const.Type, "type", false)
		}
		if a.Const.String == nil {
			// the literal is the last token of the expression
			w.token(lexer.Position{
				Offset: a.Const.EndPos.Offset - len(a.Const.Integer),
				Line:   a.Const.EndPos.Line,
				Column: a.Const.EndPos.Column - len(a.Const.Integer),
			}, len(a.Const.Integer), "number", false)
		}
	case a.Construct != nil:
		w.ident(a.Construct, "enumMember", false)
	case a.Load != nil:
		w.ident(a.Load, "property", false)
	case a.Call != nil:
		w.call(a.Call)
	case a.Binary != nil:
		w.token(a.Binary.Pos, len(a.Binary.Op), "operator", false)
		w.operand(&a.Binary.Left)
		w.operand(&a.Binary.Right)
	}
}

func (w *tokenWalker) call(c *grammar.CallExpr) {
	w.keyword(c.Pos, "call")
	w.ident(&c.Callee, "function", false)
	for _, arg := range c.Args {
		w.operand(arg)
	}
}

func (w *tokenWalker) target(t *grammar.Target) {
	w.ident(&t.Label, "namespace", false)
	for _, arg := range t.Args {
		w.operand(arg)
	}
}

func (w *tokenWalker) operand(id *grammar.PosIdent) {
	if w.params[id.Value] {
		w.ident(id, "parameter", false)
		return
	}
	w.ident(id, "variable", false)
}

func (w *tokenWalker) keyword(pos lexer.Position, word string) {
	w.token(pos, len(word), "keyword", false)
}

func (w *tokenWalker) ident(id *grammar.PosIdent, tokenType string, declaration bool) {
	if id.Value == "" {
		return
	}
	length := id.EndPos.Offset - id.Pos.Offset
	if length <= 0 {
		length = len(id.Value)
	}
	w.token(id.Pos, length, tokenType, declaration)
}

// token records a token; a zero position means the node was never parsed
func (w *tokenWalker) token(pos lexer.Position, length int, tokenType string, declaration bool) {
	if pos.Line == 0 || length <= 0 {
		return
	}

	modifiers := 0
	if declaration {
		modifiers = 1 << indexOf("declaration", SemanticTokenModifiers)
	}

	w.tokens = append(w.tokens, SemanticToken{
		Line:           uint32(pos.Line - 1),
		StartChar:      uint32(pos.Column - 1),
		Length:         uint32(length),
		TokenType:      indexOf(tokenType, SemanticTokenTypes),
		TokenModifiers: modifiers,
	})
}

// indexOf returns the index of a string in a slice, or 0 if not found
func indexOf(target string, list []string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return 0
}
