package ir

import "fmt"

// Field is a persistent contract variable
type Field struct {
	Name *Identifier // definition, Type holds the declared type
	Span SourceSpan
}

// StorageLayout maps contract fields to storage slots in allocation order
type StorageLayout struct {
	slots map[string]uint64
	order []string
}

// NewStorageLayout creates an empty layout
func NewStorageLayout() *StorageLayout {
	return &StorageLayout{slots: make(map[string]uint64)}
}

// Allocate gives the field the next free slot. A field that already has a
// slot keeps it.
func (s *StorageLayout) Allocate(name string) uint64 {
	if slot, ok := s.slots[name]; ok {
		return slot
	}
	slot := uint64(len(s.order))
	s.slots[name] = slot
	s.order = append(s.order, name)
	return slot
}

// Slot returns the slot allocated to a field
func (s *StorageLayout) Slot(name string) (uint64, bool) {
	slot, ok := s.slots[name]
	return slot, ok
}

// Names lists the allocated fields in slot order
func (s *StorageLayout) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len is the number of allocated slots
func (s *StorageLayout) Len() int {
	return len(s.order)
}

// IntermediateRepresentation is the single mutable program model threaded
// through the pass pipeline
type IntermediateRepresentation struct {
	Contract  string
	Types     []ConcreteType
	Fields    []*Field
	Functions []*ConcreteFunction
	Storage   *StorageLayout
	Symbols   *SymbolTable
	Names     *NameGenerator
}

// New creates an empty IR with fresh symbol table, layout and counters
func New(contract string) *IntermediateRepresentation {
	return &IntermediateRepresentation{
		Contract: contract,
		Storage:  NewStorageLayout(),
		Symbols:  NewSymbolTable(),
		Names:    NewNameGenerator(),
	}
}

// Function finds a function by name
func (p *IntermediateRepresentation) Function(name string) (*ConcreteFunction, bool) {
	for _, fn := range p.Functions {
		if fn.Name.Key() == name {
			return fn, true
		}
	}
	return nil, false
}

// Field finds a contract field by name
func (p *IntermediateRepresentation) Field(name string) (*Field, bool) {
	for _, f := range p.Fields {
		if f.Name.Key() == name {
			return f, true
		}
	}
	return nil, false
}

// FieldNames lists the declared fields in declaration order
func (p *IntermediateRepresentation) FieldNames() []string {
	out := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		out[i] = f.Name.Key()
	}
	return out
}

// FunctionNames lists the declared functions in declaration order
func (p *IntermediateRepresentation) FunctionNames() []string {
	out := make([]string, len(p.Functions))
	for i, fn := range p.Functions {
		out[i] = fn.Name.Key()
	}
	return out
}

// AddField declares a contract field of the named type
func (p *IntermediateRepresentation) AddField(name, typeName string) *Field {
	def := NewDefinition(name, KindGlobal)
	def.Type = TypeRef(typeName)
	f := &Field{Name: def}
	p.Fields = append(p.Fields, f)
	return f
}

// AddType declares a user type
func (p *IntermediateRepresentation) AddType(t ConcreteType) {
	p.Types = append(p.Types, t)
}

// AddFunction declares a function
func (p *IntermediateRepresentation) AddFunction(fn *ConcreteFunction) {
	p.Functions = append(p.Functions, fn)
}

// ResolveType returns the definition behind a type reference
func (p *IntermediateRepresentation) ResolveType(ref *Identifier) (ConcreteType, error) {
	if ref == nil {
		return nil, fmt.Errorf("missing type reference")
	}
	t, ok := p.Symbols.Lookup(ref.Key())
	if !ok {
		return nil, fmt.Errorf("unknown type '%s'", ref.Key())
	}
	return t, nil
}
