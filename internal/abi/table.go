package abi

import (
	"fmt"

	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

// Table holds the signatures of every externally callable function
type Table struct {
	signatures []*Signature
	byName     map[string]*Signature
	bySelector map[Selector]*Signature
}

// NewEmptyTable creates a table without signatures
func NewEmptyTable() *Table {
	return &Table{
		byName:     make(map[string]*Signature),
		bySelector: make(map[Selector]*Signature),
	}
}

// NewTable builds the table from the transitions of a program
func NewTable(program *ir.IntermediateRepresentation) (*Table, error) {
	table := NewEmptyTable()
	for _, fn := range program.Functions {
		if !fn.IsExternal() {
			continue
		}
		argTypes := make([]string, len(fn.Parameters))
		for i, p := range fn.Parameters {
			argTypes[i] = p.TypeName()
		}
		sig, err := NewSignature(fn.Name.Key(), argTypes, fn.ReturnTypeName())
		if err != nil {
			return nil, errors.Unsupported(err.Error(), fn.Span.Position())
		}
		if err := table.Add(sig); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// Add registers a signature, rejecting duplicate names and selectors
func (t *Table) Add(sig *Signature) error {
	if _, exists := t.byName[sig.Name]; exists {
		return errors.DuplicateDefinition(sig.Name, "the ABI table", errors.Position{})
	}
	if other, exists := t.bySelector[sig.Selector]; exists {
		return errors.SelectorCollision(sig.Selector.String(), other.Canonical(), sig.Canonical())
	}
	t.signatures = append(t.signatures, sig)
	t.byName[sig.Name] = sig
	t.bySelector[sig.Selector] = sig
	return nil
}

// Lookup finds a signature by function name
func (t *Table) Lookup(name string) (*Signature, bool) {
	sig, ok := t.byName[name]
	return sig, ok
}

// LookupSelector finds a signature by selector
func (t *Table) LookupSelector(sel Selector) (*Signature, bool) {
	sig, ok := t.bySelector[sel]
	return sig, ok
}

// Signatures lists the table in declaration order
func (t *Table) Signatures() []*Signature {
	out := make([]*Signature, len(t.signatures))
	copy(out, t.signatures)
	return out
}

// Len is the number of signatures
func (t *Table) Len() int {
	return len(t.signatures)
}

// GenerateTransactionData encodes a call to the named function
func (t *Table) GenerateTransactionData(name string, args ...Value) ([]byte, error) {
	sig, ok := t.Lookup(name)
	if !ok {
		return nil, errors.InvalidCall(fmt.Sprintf("no external function named '%s'", name))
	}
	return GenerateTransactionData(sig, args...)
}
