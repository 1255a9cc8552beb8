package passes

import (
	"fmt"

	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

// TypeCollector registers every declared type in the symbol table and
// resolves every type reference against it. All declarations are collected
// before any reference is resolved, so types may refer to later types.
type TypeCollector struct {
	BasePass
	program *ir.IntermediateRepresentation
}

func NewTypeCollector() *TypeCollector {
	return &TypeCollector{}
}

func (p *TypeCollector) Name() string { return "type-collection" }

func (p *TypeCollector) VisitIR(mode TreeVisitMode, program *ir.IntermediateRepresentation) (TraversalResult, error) {
	if mode == End {
		return Continue, nil
	}
	p.program = program

	for _, t := range program.Types {
		if err := p.collect(t); err != nil {
			return Continue, err
		}
	}
	return Continue, nil
}

func (p *TypeCollector) collect(t ir.ConcreteType) error {
	name := t.TypeName()
	key := name.Key()

	// Already collected on an earlier run
	if name.IsResolved() {
		if existing, ok := p.program.Symbols.Lookup(key); ok && existing == t {
			return nil
		}
	}

	if err := t.Validate(); err != nil {
		return errors.MalformedType(key, err, name.Span.Position())
	}

	if v, ok := t.(*ir.VariantType); ok {
		for _, c := range v.Constructors {
			if owner, _, taken := p.program.Symbols.LookupConstructor(c.Tag); taken {
				return errors.DuplicateDefinition(c.Tag, fmt.Sprintf("constructors (already in '%s')", owner.Name.Key()), c.Span.Position())
			}
		}
	}

	if !p.program.Symbols.Declare(t) {
		return errors.DuplicateType(key, name.Span.Position())
	}
	log.Debugf("collected type %s = %s", key, t)
	return name.Resolve(key)
}

func (p *TypeCollector) VisitIdentifier(mode TreeVisitMode, id *ir.Identifier) (TraversalResult, error) {
	if mode == End || id.Kind != ir.KindTypeName || id.IsDefinition {
		return Continue, nil
	}
	key := id.Key()
	if _, ok := p.program.Symbols.Lookup(key); !ok {
		return Continue, errors.UnresolvedType(key, id.Span.Position(), p.program.Symbols.Names())
	}
	return Continue, id.Resolve(key)
}
