package passes

import (
	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

// StorageAllocator gives every contract field a storage slot in declaration
// order, starting at zero, and resolves field references in loads and
// stores
type StorageAllocator struct {
	BasePass
	program *ir.IntermediateRepresentation
	seen    map[string]bool
}

func NewStorageAllocator() *StorageAllocator {
	return &StorageAllocator{}
}

func (p *StorageAllocator) Name() string { return "storage-allocation" }

func (p *StorageAllocator) VisitIR(mode TreeVisitMode, program *ir.IntermediateRepresentation) (TraversalResult, error) {
	if mode == Begin {
		p.program = program
		p.seen = make(map[string]bool)
	}
	return Continue, nil
}

func (p *StorageAllocator) VisitField(mode TreeVisitMode, field *ir.Field) (TraversalResult, error) {
	if mode == End {
		return Continue, nil
	}
	name := field.Name.Key()
	if p.seen[name] {
		return Continue, errors.DuplicateField(name, field.Span.Position())
	}
	p.seen[name] = true

	slot := p.program.Storage.Allocate(name)
	log.Debugf("field %s -> slot %d", name, slot)
	return SkipChildren, field.Name.Resolve(name)
}

func (p *StorageAllocator) VisitInstruction(mode TreeVisitMode, inst ir.Instruction) (TraversalResult, error) {
	if mode == End {
		return Continue, nil
	}
	var field *ir.Identifier
	switch i := inst.(type) {
	case *ir.LoadField:
		field = i.Field
	case *ir.StoreField:
		field = i.Field
	default:
		return SkipChildren, nil
	}

	name := field.Key()
	if _, ok := p.program.Storage.Slot(name); !ok {
		return Continue, errors.UnresolvedStorage(name, field.Span.Position(), p.program.Storage.Names())
	}
	return SkipChildren, field.Resolve(name)
}
