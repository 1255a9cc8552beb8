package passes

import (
	"fmt"

	"kansoc/internal/builtins"
	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

// TypeAnnotator gives every value identifier a type. Definitions are typed
// from their instruction's rule, uses from their definition. Inference only
// flows forward from definitions to uses; there is no unification.
type TypeAnnotator struct {
	BasePass
	program *ir.IntermediateRepresentation
	fn      *ir.ConcreteFunction
	env     map[string]string
}

func NewTypeAnnotator() *TypeAnnotator {
	return &TypeAnnotator{}
}

func (p *TypeAnnotator) Name() string { return "type-annotation" }

func (p *TypeAnnotator) VisitIR(mode TreeVisitMode, program *ir.IntermediateRepresentation) (TraversalResult, error) {
	if mode == Begin {
		p.program = program
	}
	return Continue, nil
}

func (p *TypeAnnotator) VisitFunction(mode TreeVisitMode, fn *ir.ConcreteFunction) (TraversalResult, error) {
	if mode == End {
		p.fn = nil
		p.env = nil
		return Continue, nil
	}

	p.fn = fn
	p.env = make(map[string]string)
	for _, param := range fn.Parameters {
		if param.Type == nil {
			return Continue, errors.CannotInferType(param.Key(), "function parameters must declare a type", param.Span.Position())
		}
		p.env[param.Key()] = param.TypeName()
	}
	return Continue, p.infer(fn)
}

// infer applies the definition rules until no new value gets a type. Each
// round can only add entries, so the loop ends after at most one round per
// definition.
func (p *TypeAnnotator) infer(fn *ir.ConcreteFunction) error {
	for changed := true; changed; {
		changed = false
		for _, b := range fn.Blocks {
			for i, param := range b.Parameters {
				if _, ok := p.env[param.Key()]; ok {
					continue
				}
				if t := p.paramType(fn, b, i); t != "" {
					p.env[param.Key()] = t
					changed = true
				}
			}
			for _, inst := range b.Instructions {
				dest := inst.Result()
				if dest == nil {
					continue
				}
				if _, ok := p.env[dest.Key()]; ok {
					continue
				}
				t, _, err := p.rule(inst)
				if err != nil {
					return err
				}
				if t != "" {
					p.env[dest.Key()] = t
					changed = true
				}
			}
		}
	}

	// Anything still untyped has no applicable rule
	for _, b := range fn.Blocks {
		for _, param := range b.Parameters {
			if _, ok := p.env[param.Key()]; !ok {
				return errors.CannotInferType(param.Key(),
					fmt.Sprintf("no edge into '%s' passes an argument of known type", b.Label.Key()),
					param.Span.Position())
			}
		}
		for _, inst := range b.Instructions {
			dest := inst.Result()
			if dest == nil {
				continue
			}
			if _, ok := p.env[dest.Key()]; !ok {
				_, reason, _ := p.rule(inst)
				return errors.CannotInferType(dest.Key(), reason, inst.Span().Position())
			}
		}
	}
	return nil
}

// paramType types a block parameter from its declaration or from the first
// incoming edge argument with a known type
func (p *TypeAnnotator) paramType(fn *ir.ConcreteFunction, block *ir.FunctionBlock, index int) string {
	if t := block.Parameters[index].TypeName(); t != "" {
		return t
	}
	label := block.Label.Key()
	for _, pred := range fn.Blocks {
		for _, target := range pred.Successors() {
			if target.Label.Key() != label || index >= len(target.Args) {
				continue
			}
			if t := p.typeOf(target.Args[index]); t != "" {
				return t
			}
		}
	}
	return ""
}

func (p *TypeAnnotator) typeOf(id *ir.Identifier) string {
	if t := id.TypeName(); t != "" {
		return t
	}
	return p.env[id.Key()]
}

// rule returns the type an instruction produces. An empty type with a
// reason means an operand is not typed yet; err reports a hard failure.
func (p *TypeAnnotator) rule(inst ir.Instruction) (string, string, error) {
	switch i := inst.(type) {
	case *ir.BinaryOp:
		left, right := p.typeOf(i.Left), p.typeOf(i.Right)
		if left == "" {
			return "", fmt.Sprintf("operand '%s' has no known type", i.Left.Key()), nil
		}
		if right == "" {
			return "", fmt.Sprintf("operand '%s' has no known type", i.Right.Key()), nil
		}
		if left != right {
			return "", "", errors.TypeMismatch(i.Dest.Key(), left, right, i.Span().Position())
		}
		switch {
		case i.Op.IsArithmetic():
			if !builtins.IsIntegerType(left) {
				return "", "", errors.TypeMismatch(i.Dest.Key(), "an unsigned integer", left, i.Span().Position())
			}
			return left, "", nil
		case i.Op == ir.OpEq:
			return string(builtins.Bool), "", nil
		case i.Op.IsComparison():
			if !builtins.IsIntegerType(left) {
				return "", "", errors.TypeMismatch(i.Dest.Key(), "an unsigned integer", left, i.Span().Position())
			}
			return string(builtins.Bool), "", nil
		case i.Op.IsLogical():
			if !ir.IsBool(left) {
				return "", "", errors.TypeMismatch(i.Dest.Key(), string(builtins.Bool), left, i.Span().Position())
			}
			return string(builtins.Bool), "", nil
		}
		return "", "", errors.CannotInferType(i.Dest.Key(), fmt.Sprintf("unknown operator '%s'", i.Op), i.Span().Position())

	case *ir.Literal:
		if i.IsString {
			if _, err := ir.StringWord(i.Value); err != nil {
				return "", "", errors.CannotInferType(i.Dest.Key(), err.Error(), i.Span().Position())
			}
			return string(builtins.String), "", nil
		}
		if i.LitType == nil {
			return "", "", errors.CannotInferType(i.Dest.Key(), "integer literal has no type annotation", i.Span().Position())
		}
		typeName := i.LitType.Key()
		if !builtins.IsIntegerType(typeName) && typeName != string(builtins.Address) {
			return "", "", errors.TypeMismatch(i.Dest.Key(), "an unsigned integer or Address", typeName, i.Span().Position())
		}
		word, err := ir.ParseInteger(i.Value)
		if err != nil {
			return "", "", errors.CannotInferType(i.Dest.Key(), err.Error(), i.Span().Position())
		}
		if word.BitLen() > builtins.Bits(typeName) {
			return "", "", errors.CannotInferType(i.Dest.Key(),
				fmt.Sprintf("literal %s does not fit in %s", i.Value, typeName), i.Span().Position())
		}
		return typeName, "", nil

	case *ir.Construct:
		owner, idx, ok := p.program.Symbols.LookupConstructor(i.Tag)
		if !ok {
			return "", "", errors.UnknownConstructor(i.Tag, i.Span().Position())
		}
		if len(owner.Constructors[idx].Payload) > 0 {
			return "", "", errors.CannotInferType(i.Dest.Key(),
				fmt.Sprintf("constructor '%s' carries a payload", i.Tag), i.Span().Position())
		}
		return owner.Name.Key(), "", nil

	case *ir.LoadField:
		field, ok := p.program.Field(i.Field.Key())
		if !ok {
			return "", "", errors.UnresolvedStorage(i.Field.Key(), i.Span().Position(), p.program.FieldNames())
		}
		return field.Name.TypeName(), "", nil

	case *ir.Call:
		callee, ok := p.program.Function(i.Callee.Key())
		if !ok {
			return "", "", errors.UndefinedFunction(i.Callee.Key(), i.Span().Position(), p.program.FunctionNames())
		}
		if callee.ReturnType == nil {
			return "", "", errors.CannotInferType(i.Dest.Key(),
				fmt.Sprintf("function '%s' returns nothing", callee.Name.Key()), i.Span().Position())
		}
		return callee.ReturnTypeName(), "", nil

	case *ir.StoreField, *ir.Jump, *ir.Branch, *ir.Match, *ir.Return, *ir.Throw:
		return "", "instruction defines no value", nil
	}
	return "", "", fmt.Errorf("unknown instruction %T", inst)
}

func (p *TypeAnnotator) VisitInstruction(mode TreeVisitMode, inst ir.Instruction) (TraversalResult, error) {
	if mode == End || p.fn == nil {
		return Continue, nil
	}
	pos := inst.Span().Position()

	switch i := inst.(type) {
	case *ir.StoreField:
		field, ok := p.program.Field(i.Field.Key())
		if !ok {
			return Continue, errors.UnresolvedStorage(i.Field.Key(), pos, p.program.FieldNames())
		}
		if err := p.expect(i.Value, field.Name.TypeName(), pos); err != nil {
			return Continue, err
		}

	case *ir.Call:
		callee, ok := p.program.Function(i.Callee.Key())
		if !ok {
			return Continue, errors.UndefinedFunction(i.Callee.Key(), pos, p.program.FunctionNames())
		}
		if callee.Kind == ir.Transition {
			return Continue, errors.Unsupported(fmt.Sprintf("internal call to transition '%s'", callee.Name.Key()), pos)
		}
		if len(i.Args) != len(callee.Parameters) {
			return Continue, errors.TypeMismatch(callee.Name.Key(),
				fmt.Sprintf("%d arguments", len(callee.Parameters)),
				fmt.Sprintf("%d arguments", len(i.Args)), pos)
		}
		for n, arg := range i.Args {
			if err := p.expect(arg, callee.Parameters[n].TypeName(), pos); err != nil {
				return Continue, err
			}
		}

	case *ir.Branch:
		if err := p.expect(i.Cond, string(builtins.Bool), pos); err != nil {
			return Continue, err
		}

	case *ir.Match:
		subject := p.typeOf(i.Subject)
		t, ok := p.program.Symbols.Lookup(subject)
		variant, isVariant := t.(*ir.VariantType)
		if !ok || !isVariant {
			return Continue, errors.TypeMismatch(i.Subject.Key(), "a variant type", subject, pos)
		}
		for _, c := range i.Cases {
			if _, ok := variant.TagIndex(c.Tag); !ok {
				return Continue, errors.TypeMismatch(c.Tag, "a constructor of "+subject, "unknown tag", pos)
			}
		}

	case *ir.Return:
		want := p.fn.ReturnTypeName()
		switch {
		case i.Value == nil && want != "":
			return Continue, errors.TypeMismatch(p.fn.Name.Key(), want, "no value", pos)
		case i.Value != nil && want == "":
			return Continue, errors.TypeMismatch(p.fn.Name.Key(), "no value", p.typeOf(i.Value), pos)
		case i.Value != nil:
			if err := p.expect(i.Value, want, pos); err != nil {
				return Continue, err
			}
		}

	case *ir.BinaryOp, *ir.Literal, *ir.Construct, *ir.LoadField, *ir.Jump, *ir.Throw:
	}

	for _, target := range inst.Targets() {
		if err := p.checkEdge(target, pos); err != nil {
			return Continue, err
		}
	}
	return Continue, nil
}

// checkEdge matches edge arguments against the target's parameters
func (p *TypeAnnotator) checkEdge(target *ir.BlockTarget, pos errors.Position) error {
	block, ok := p.fn.Block(target.Label.Key())
	if !ok {
		return errors.UnknownBlock(target.Label.Key(), p.fn.Name.Key(), pos)
	}
	if len(target.Args) != len(block.Parameters) {
		return errors.TypeMismatch(target.Label.Key(),
			fmt.Sprintf("%d block arguments", len(block.Parameters)),
			fmt.Sprintf("%d block arguments", len(target.Args)), pos)
	}
	for n, arg := range target.Args {
		if err := p.expect(arg, p.typeOf(block.Parameters[n]), pos); err != nil {
			return err
		}
	}
	return nil
}

func (p *TypeAnnotator) expect(id *ir.Identifier, want string, pos errors.Position) error {
	got := p.typeOf(id)
	if got == "" {
		return errors.CannotInferType(id.Key(), "value has no known type", pos)
	}
	if got != want {
		return errors.TypeMismatch(id.Key(), want, got, pos)
	}
	return nil
}

func (p *TypeAnnotator) VisitIdentifier(mode TreeVisitMode, id *ir.Identifier) (TraversalResult, error) {
	if mode == End || p.fn == nil {
		return Continue, nil
	}
	if id.Kind != ir.KindLocal && id.Kind != ir.KindIntermediate {
		return SkipChildren, nil
	}

	known, ok := p.env[id.Key()]
	if !ok {
		return Continue, errors.CannotInferType(id.Key(), "value is never defined", id.Span.Position())
	}
	if id.Type == nil {
		id.SetType(known)
		return SkipChildren, nil
	}
	if id.TypeName() != known {
		return Continue, errors.TypeMismatch(id.Key(), known, id.TypeName(), id.Span.Position())
	}
	return Continue, nil
}
