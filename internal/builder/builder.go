package builder

import (
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"

	"kansoc/grammar"
	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

// Build converts a parsed .kir program into the IR the pass pipeline
// consumes. Every identifier and instruction carries the span it was
// parsed from.
func Build(tree *grammar.Program) (*ir.IntermediateRepresentation, error) {
	program := ir.New(tree.Contract.Value)

	for _, t := range tree.Types {
		program.AddType(buildType(t))
	}

	for _, f := range tree.Fields {
		if f.Tuple != nil {
			addInlineField(program, f)
			continue
		}
		field := program.AddField(f.Name.Value, f.Type.Value)
		field.Span = span(f.Pos, f.EndPos)
		field.Name.Span = identSpan(&f.Name)
		field.Name.Type.Span = identSpan(f.Type)
	}

	seen := make(map[string]bool)
	for _, f := range tree.Functions {
		if seen[f.Name.Value] {
			return nil, errors.DuplicateDefinition(f.Name.Value, "contract "+program.Contract, identSpan(&f.Name).Position())
		}
		seen[f.Name.Value] = true

		fn, err := buildFunction(f)
		if err != nil {
			return nil, err
		}
		program.AddFunction(fn)
	}

	nameDiscardedResults(program)
	return program, nil
}

// nameDiscardedResults gives a call statement whose callee returns a value a
// fresh register, so every produced value has a name and a frame slot
func nameDiscardedResults(program *ir.IntermediateRepresentation) {
	for _, fn := range program.Functions {
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions {
				c, ok := inst.(*ir.Call)
				if !ok || c.Dest != nil {
					continue
				}
				callee, ok := program.Function(c.Callee.Key())
				if !ok || callee.ReturnType == nil {
					continue
				}
				c.Dest = ir.NewDefinition(program.Names.Register(), ir.KindIntermediate)
				c.Dest.Span = c.Span()
			}
		}
	}
}

// BuildString parses and builds .kir source in one step
func BuildString(filename, source string) (*ir.IntermediateRepresentation, error) {
	tree, err := grammar.ParseString(filename, source)
	if err != nil {
		return nil, err
	}
	return Build(tree)
}

func span(start, end lexer.Position) ir.SourceSpan {
	return ir.SourceSpan{
		Start:  start.Offset,
		End:    end.Offset,
		Line:   start.Line,
		Column: start.Column,
	}
}

func identSpan(id *grammar.PosIdent) ir.SourceSpan {
	return span(id.Pos, id.EndPos)
}

func typeRef(id *grammar.PosIdent) *ir.Identifier {
	ref := ir.TypeRef(id.Value)
	ref.Span = identSpan(id)
	return ref
}

func def(id *grammar.PosIdent) *ir.Identifier {
	d := ir.Def(id.Value)
	d.Span = identSpan(id)
	return d
}

func ref(id *grammar.PosIdent) *ir.Identifier {
	r := ir.Ref(id.Value)
	r.Span = identSpan(id)
	return r
}

func refs(ids []*grammar.PosIdent) []*ir.Identifier {
	out := make([]*ir.Identifier, len(ids))
	for i, id := range ids {
		out[i] = ref(id)
	}
	return out
}

func buildType(t *grammar.TypeDecl) ir.ConcreteType {
	name := ir.NewDefinition(t.Name.Value, ir.KindTypeName)
	name.Span = identSpan(&t.Name)

	if t.Tuple != nil {
		fields := make([]*ir.Identifier, len(t.Tuple.Fields))
		for i, f := range t.Tuple.Fields {
			fields[i] = typeRef(f)
		}
		return &ir.TupleType{Name: name, Fields: fields}
	}

	ctors := make([]ir.Constructor, len(t.Variant))
	for i, c := range t.Variant {
		payload := make([]*ir.Identifier, len(c.Payload))
		for j, p := range c.Payload {
			payload[j] = typeRef(p)
		}
		ctors[i] = ir.Constructor{Tag: c.Tag.Value, Payload: payload}
	}
	return &ir.VariantType{Name: name, Constructors: ctors}
}

// addInlineField declares the field's tuple under a fresh anonymous type name
func addInlineField(program *ir.IntermediateRepresentation, f *grammar.FieldDecl) {
	tupleSpan := span(f.Tuple.Pos, f.Tuple.EndPos)
	name := ir.NewDefinition(program.Names.AnonymousType(), ir.KindTypeName)
	name.Span = tupleSpan

	fields := make([]*ir.Identifier, len(f.Tuple.Fields))
	for i, t := range f.Tuple.Fields {
		fields[i] = typeRef(t)
	}
	program.AddType(&ir.TupleType{Name: name, Fields: fields})

	field := program.AddField(f.Name.Value, name.Key())
	field.Span = span(f.Pos, f.EndPos)
	field.Name.Span = identSpan(&f.Name)
	field.Name.Type.Span = tupleSpan
}

func param(p *grammar.Param) *ir.Identifier {
	d := def(&p.Name)
	if p.Type != nil {
		d.Type = typeRef(p.Type)
	}
	return d
}

func buildFunction(f *grammar.FunctionDef) (*ir.ConcreteFunction, error) {
	kind, ok := ir.ParseFunctionKind(f.Kind)
	if !ok {
		return nil, errors.Syntax(fmt.Sprintf("unknown function kind '%s'", f.Kind), span(f.Pos, f.EndPos).Position())
	}

	fn := ir.NewFunction(f.Name.Value, kind)
	fn.Name.Span = identSpan(&f.Name)
	fn.Span = span(f.Pos, f.EndPos)
	for _, p := range f.Params {
		fn.Parameters = append(fn.Parameters, param(p))
	}
	if f.Return != nil {
		fn.ReturnType = typeRef(f.Return)
	}

	for _, b := range f.Blocks {
		block, err := buildBlock(b)
		if err != nil {
			return nil, err
		}
		if err := fn.AddBlock(block); err != nil {
			return nil, errors.DuplicateDefinition(b.Label.Value, "function "+f.Name.Value, identSpan(&b.Label).Position())
		}
	}
	return fn, nil
}

func buildBlock(b *grammar.BlockDef) (*ir.FunctionBlock, error) {
	block := ir.NewBlock(b.Label.Value)
	block.Label.Span = identSpan(&b.Label)
	for _, p := range b.Params {
		block.Parameters = append(block.Parameters, param(p))
	}

	for _, i := range b.Instructions {
		inst, err := buildInstruction(i)
		if err != nil {
			return nil, err
		}
		ir.SetSpan(inst, span(i.Pos, i.EndPos))
		block.Append(inst)
	}
	return block, nil
}

func target(t *grammar.Target) *ir.BlockTarget {
	label := ir.Label(t.Label.Value)
	label.Span = identSpan(&t.Label)
	return &ir.BlockTarget{Label: label, Args: refs(t.Args)}
}

func call(dest *ir.Identifier, c *grammar.CallExpr) *ir.Call {
	callee := ir.NewIdentifier(c.Callee.Value, ir.KindGlobal)
	callee.Span = identSpan(&c.Callee)
	return &ir.Call{Dest: dest, Callee: callee, Args: refs(c.Args)}
}

func buildInstruction(i *grammar.Instruction) (ir.Instruction, error) {
	switch {
	case i.Store != nil:
		field := ir.NewIdentifier(i.Store.Field.Value, ir.KindGlobal)
		field.Span = identSpan(&i.Store.Field)
		return &ir.StoreField{Field: field, Value: ref(&i.Store.Value)}, nil

	case i.Call != nil:
		return call(nil, i.Call), nil

	case i.Jump != nil:
		return &ir.Jump{Target: target(i.Jump.Target)}, nil

	case i.Branch != nil:
		return &ir.Branch{
			Cond: ref(&i.Branch.Cond),
			Then: target(i.Branch.Then),
			Else: target(i.Branch.Else),
		}, nil

	case i.Match != nil:
		return buildMatch(i.Match)

	case i.Return != nil:
		r := &ir.Return{}
		if i.Return.Value != nil {
			r.Value = ref(i.Return.Value)
		}
		return r, nil

	case i.Throw:
		return &ir.Throw{}, nil

	case i.Assign != nil:
		return buildAssign(i.Assign)
	}
	return nil, errors.Syntax("empty instruction", span(i.Pos, i.EndPos).Position())
}

func buildMatch(m *grammar.MatchInst) (ir.Instruction, error) {
	match := &ir.Match{Subject: ref(&m.Subject)}
	tags := make(map[string]bool)
	for _, arm := range m.Arms {
		if tags[arm.Tag.Value] {
			return nil, errors.DuplicateDefinition(arm.Tag.Value, "match on "+m.Subject.Value, identSpan(&arm.Tag).Position())
		}
		tags[arm.Tag.Value] = true

		if arm.Tag.Value == "_" {
			match.Default = target(arm.Target)
			continue
		}
		match.Cases = append(match.Cases, ir.MatchCase{Tag: arm.Tag.Value, Target: target(arm.Target)})
	}
	return match, nil
}

func buildAssign(a *grammar.AssignInst) (ir.Instruction, error) {
	dest := def(&a.Dest)

	switch {
	case a.Const != nil:
		lit := &ir.Literal{Dest: dest}
		switch {
		case a.Const.String != nil:
			lit.Value = *a.Const.String
			lit.IsString = true
		default:
			lit.Value = a.Const.Integer
			if a.Const.Type != nil {
				lit.LitType = typeRef(a.Const.Type)
			}
		}
		return lit, nil

	case a.Construct != nil:
		return &ir.Construct{Dest: dest, Tag: a.Construct.Value}, nil

	case a.Load != nil:
		field := ir.NewIdentifier(a.Load.Value, ir.KindGlobal)
		field.Span = identSpan(a.Load)
		return &ir.LoadField{Dest: dest, Field: field}, nil

	case a.Call != nil:
		return call(dest, a.Call), nil

	case a.Binary != nil:
		op, ok := ir.ParseBinaryOperator(a.Binary.Op)
		if !ok {
			return nil, errors.Syntax(fmt.Sprintf("unknown operator '%s'", a.Binary.Op), span(a.Binary.Pos, a.Binary.EndPos).Position())
		}
		return &ir.BinaryOp{Dest: dest, Op: op, Left: ref(&a.Binary.Left), Right: ref(&a.Binary.Right)}, nil
	}
	return nil, errors.Syntax("assignment without a value", span(a.Pos, a.EndPos).Position())
}
