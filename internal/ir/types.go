package ir

import (
	"fmt"
	"strings"

	"kansoc/internal/builtins"
)

// ConcreteType is a named type definition. The set of implementations is
// closed: *TupleType, *VariantType and *PrimitiveType.
type ConcreteType interface {
	TypeName() *Identifier
	Validate() error
	String() string
	isConcreteType()
}

// TupleType is a product of ordered field types
type TupleType struct {
	Name   *Identifier
	Fields []*Identifier // type references
}

// Constructor is one alternative of a variant
type Constructor struct {
	Tag     string
	Payload []*Identifier // type references
	Span    SourceSpan
}

// VariantType is a tagged union. A constructor's position is its runtime tag.
type VariantType struct {
	Name         *Identifier
	Constructors []Constructor
}

// PrimitiveType is a machine-word base type
type PrimitiveType struct {
	Name    *Identifier
	Bits    int
	ABIName string
}

func (t *TupleType) TypeName() *Identifier     { return t.Name }
func (t *VariantType) TypeName() *Identifier   { return t.Name }
func (t *PrimitiveType) TypeName() *Identifier { return t.Name }

func (*TupleType) isConcreteType()     {}
func (*VariantType) isConcreteType()   {}
func (*PrimitiveType) isConcreteType() {}

// Validate checks that the tuple has at least one field
func (t *TupleType) Validate() error {
	if len(t.Fields) == 0 {
		return fmt.Errorf("tuple type '%s' has no fields", t.Name.Key())
	}
	return nil
}

// Validate checks that the variant has at least one constructor with unique tags
func (v *VariantType) Validate() error {
	if len(v.Constructors) == 0 {
		return fmt.Errorf("variant type '%s' has no constructors", v.Name.Key())
	}
	seen := make(map[string]bool, len(v.Constructors))
	for _, c := range v.Constructors {
		if seen[c.Tag] {
			return fmt.Errorf("variant type '%s' declares constructor '%s' twice", v.Name.Key(), c.Tag)
		}
		seen[c.Tag] = true
	}
	return nil
}

func (p *PrimitiveType) Validate() error { return nil }

// TagIndex returns the runtime tag of a constructor
func (v *VariantType) TagIndex(tag string) (int, bool) {
	for i, c := range v.Constructors {
		if c.Tag == tag {
			return i, true
		}
	}
	return 0, false
}

// HasPayloads reports whether any constructor carries values
func (v *VariantType) HasPayloads() bool {
	for _, c := range v.Constructors {
		if len(c.Payload) > 0 {
			return true
		}
	}
	return false
}

func (t *TupleType) String() string {
	return fmt.Sprintf("(%s)", strings.Join(keys(t.Fields), ", "))
}

func (v *VariantType) String() string {
	parts := make([]string, len(v.Constructors))
	for i, c := range v.Constructors {
		if len(c.Payload) == 0 {
			parts[i] = c.Tag
			continue
		}
		parts[i] = fmt.Sprintf("%s(%s)", c.Tag, strings.Join(keys(c.Payload), ", "))
	}
	return strings.Join(parts, " | ")
}

func (p *PrimitiveType) String() string { return p.Name.Key() }

// SymbolTable maps type names to their definitions and constructor tags to
// their owning variant
type SymbolTable struct {
	types        map[string]ConcreteType
	order        []string
	constructors map[string]*VariantType
}

// NewSymbolTable creates a table seeded with the built-in types
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{
		types:        make(map[string]ConcreteType),
		constructors: make(map[string]*VariantType),
	}
	for _, name := range builtins.Ordered {
		st.Declare(builtinType(name))
	}
	return st
}

func builtinType(name builtins.BuiltinType) ConcreteType {
	typeName := NewDefinition(string(name), KindTypeName)
	typeName.ResolvedName = string(name)

	if name == builtins.Bool {
		return &VariantType{
			Name: typeName,
			Constructors: []Constructor{
				{Tag: builtins.BoolFalse},
				{Tag: builtins.BoolTrue},
			},
		}
	}

	info := builtins.BuiltinTypes[string(name)]
	return &PrimitiveType{Name: typeName, Bits: info.Bits, ABIName: info.ABIName}
}

// Declare registers a type under its name. It returns false when the name is
// already taken, leaving the table unchanged.
func (st *SymbolTable) Declare(t ConcreteType) bool {
	name := t.TypeName().Key()
	if _, exists := st.types[name]; exists {
		return false
	}
	st.types[name] = t
	st.order = append(st.order, name)
	if v, ok := t.(*VariantType); ok {
		for _, c := range v.Constructors {
			if _, taken := st.constructors[c.Tag]; !taken {
				st.constructors[c.Tag] = v
			}
		}
	}
	return true
}

// Lookup finds a type by name
func (st *SymbolTable) Lookup(name string) (ConcreteType, bool) {
	t, ok := st.types[name]
	return t, ok
}

// LookupConstructor finds the variant owning a constructor tag
func (st *SymbolTable) LookupConstructor(tag string) (*VariantType, int, bool) {
	v, ok := st.constructors[tag]
	if !ok {
		return nil, 0, false
	}
	idx, _ := v.TagIndex(tag)
	return v, idx, true
}

// Names lists the registered type names in declaration order
func (st *SymbolTable) Names() []string {
	out := make([]string, len(st.order))
	copy(out, st.order)
	return out
}

// IsBool reports whether the named type is the built-in boolean
func IsBool(typeName string) bool {
	return typeName == string(builtins.Bool)
}
