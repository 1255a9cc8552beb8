package passes

import (
	"kansoc/internal/ir"
)

// Walk runs one depth-first traversal of the program for pass. Children are
// visited in declaration order: types, fields, then functions; inside a
// function its name, parameters, return type and blocks; inside a block its
// label, parameters and instructions; inside an instruction every
// identifier it mentions.
func Walk(program *ir.IntermediateRepresentation, pass Pass) error {
	return visit(func(m TreeVisitMode) (TraversalResult, error) {
		return pass.VisitIR(m, program)
	}, func() error {
		for i := 0; i < len(program.Types); i++ {
			if err := walkType(pass, program.Types[i]); err != nil {
				return err
			}
		}
		for i := 0; i < len(program.Fields); i++ {
			if err := walkField(pass, program.Fields[i]); err != nil {
				return err
			}
		}
		for i := 0; i < len(program.Functions); i++ {
			if err := walkFunction(pass, program.Functions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// visit calls the Begin visit, the children unless skipped, then End
func visit(node func(TreeVisitMode) (TraversalResult, error), children func() error) error {
	result, err := node(Begin)
	if err != nil {
		return err
	}
	if result == SkipChildren {
		return nil
	}
	if err := children(); err != nil {
		return err
	}
	_, err = node(End)
	return err
}

func walkIdentifiers(pass Pass, ids ...*ir.Identifier) error {
	for _, id := range ids {
		if id == nil {
			continue
		}
		err := visit(func(m TreeVisitMode) (TraversalResult, error) {
			return pass.VisitIdentifier(m, id)
		}, func() error {
			return walkIdentifiers(pass, id.Type)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func walkType(pass Pass, t ir.ConcreteType) error {
	return visit(func(m TreeVisitMode) (TraversalResult, error) {
		return pass.VisitType(m, t)
	}, func() error {
		if err := walkIdentifiers(pass, t.TypeName()); err != nil {
			return err
		}
		switch t := t.(type) {
		case *ir.TupleType:
			return walkIdentifiers(pass, t.Fields...)
		case *ir.VariantType:
			for _, c := range t.Constructors {
				if err := walkIdentifiers(pass, c.Payload...); err != nil {
					return err
				}
			}
		case *ir.PrimitiveType:
		}
		return nil
	})
}

func walkField(pass Pass, field *ir.Field) error {
	return visit(func(m TreeVisitMode) (TraversalResult, error) {
		return pass.VisitField(m, field)
	}, func() error {
		return walkIdentifiers(pass, field.Name)
	})
}

func walkFunction(pass Pass, fn *ir.ConcreteFunction) error {
	return visit(func(m TreeVisitMode) (TraversalResult, error) {
		return pass.VisitFunction(m, fn)
	}, func() error {
		if err := walkIdentifiers(pass, fn.Name); err != nil {
			return err
		}
		if err := walkIdentifiers(pass, fn.Parameters...); err != nil {
			return err
		}
		if err := walkIdentifiers(pass, fn.ReturnType); err != nil {
			return err
		}
		for i := 0; i < len(fn.Blocks); i++ {
			if err := walkBlock(pass, fn.Blocks[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func walkBlock(pass Pass, block *ir.FunctionBlock) error {
	return visit(func(m TreeVisitMode) (TraversalResult, error) {
		return pass.VisitBlock(m, block)
	}, func() error {
		if err := walkIdentifiers(pass, block.Label); err != nil {
			return err
		}
		if err := walkIdentifiers(pass, block.Parameters...); err != nil {
			return err
		}
		for i := 0; i < len(block.Instructions); i++ {
			if err := walkInstruction(pass, block.Instructions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func walkInstruction(pass Pass, inst ir.Instruction) error {
	return visit(func(m TreeVisitMode) (TraversalResult, error) {
		return pass.VisitInstruction(m, inst)
	}, func() error {
		return walkIdentifiers(pass, Identifiers(inst)...)
	})
}

// Identifiers lists every identifier an instruction mentions: its result,
// operands, field and callee names, literal type and edge labels
func Identifiers(inst ir.Instruction) []*ir.Identifier {
	var ids []*ir.Identifier
	if r := inst.Result(); r != nil {
		ids = append(ids, r)
	}
	switch i := inst.(type) {
	case *ir.Literal:
		if i.LitType != nil {
			ids = append(ids, i.LitType)
		}
	case *ir.LoadField:
		ids = append(ids, i.Field)
	case *ir.StoreField:
		ids = append(ids, i.Field)
	case *ir.Call:
		ids = append(ids, i.Callee)
	case *ir.BinaryOp, *ir.Construct, *ir.Jump, *ir.Branch, *ir.Match, *ir.Return, *ir.Throw:
	}
	ids = append(ids, inst.Operands()...)
	for _, t := range inst.Targets() {
		ids = append(ids, t.Label)
	}
	return ids
}
