package ir

import (
	"fmt"
)

// FunctionKind distinguishes externally callable transitions from internal
// helpers
type FunctionKind int

const (
	Transition FunctionKind = iota // external entry point, dispatched by selector
	Procedure                      // internal, may touch storage
	Pure                           // internal, no storage access
)

func (k FunctionKind) String() string {
	switch k {
	case Transition:
		return "transition"
	case Procedure:
		return "procedure"
	case Pure:
		return "pure"
	default:
		return fmt.Sprintf("FunctionKind(%d)", int(k))
	}
}

// ParseFunctionKind maps a keyword to its FunctionKind
func ParseFunctionKind(s string) (FunctionKind, bool) {
	switch s {
	case "transition":
		return Transition, true
	case "procedure":
		return Procedure, true
	case "pure":
		return Pure, true
	}
	return 0, false
}

// FunctionBlock is a straight-line sequence of instructions ending in a
// terminator. Values cross block boundaries only through Parameters.
type FunctionBlock struct {
	Label        *Identifier
	Parameters   []*Identifier
	Instructions []Instruction
	// LiveIn is the dependency analysis result: values the block reads but
	// does not define, in first-discovered order
	LiveIn []*Identifier
}

// NewBlock creates an empty block
func NewBlock(label string) *FunctionBlock {
	return &FunctionBlock{Label: NewDefinition(label, KindBlockLabel)}
}

// Terminator returns the last instruction if it is a terminator
func (b *FunctionBlock) Terminator() Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

// Successors lists outgoing edges in stored order
func (b *FunctionBlock) Successors() []*BlockTarget {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	return term.Targets()
}

// SuccessorLabels lists distinct successor labels in first-seen order
func (b *FunctionBlock) SuccessorLabels() []string {
	var labels []string
	seen := make(map[string]bool)
	for _, t := range b.Successors() {
		key := t.Label.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		labels = append(labels, key)
	}
	return labels
}

// HasParameter reports whether the block already binds the named value
func (b *FunctionBlock) HasParameter(name string) bool {
	return b.ParameterIndex(name) >= 0
}

// ParameterIndex returns the position of the named parameter or -1
func (b *FunctionBlock) ParameterIndex(name string) int {
	for i, p := range b.Parameters {
		if p.Key() == name {
			return i
		}
	}
	return -1
}

// IsExit reports whether the block leaves the function
func (b *FunctionBlock) IsExit() bool {
	switch b.Terminator().(type) {
	case *Return, *Throw:
		return true
	}
	return false
}

// Append adds an instruction to the end of the block
func (b *FunctionBlock) Append(inst Instruction) {
	b.Instructions = append(b.Instructions, inst)
}

// ConcreteFunction owns its blocks in an arena indexed by label
type ConcreteFunction struct {
	Name       *Identifier
	Kind       FunctionKind
	Parameters []*Identifier
	ReturnType *Identifier // nil for functions returning nothing
	Entry      string
	Blocks     []*FunctionBlock
	Span       SourceSpan

	index map[string]int
}

// NewFunction creates a function without blocks
func NewFunction(name string, kind FunctionKind) *ConcreteFunction {
	return &ConcreteFunction{
		Name:  NewDefinition(name, KindGlobal),
		Kind:  kind,
		index: make(map[string]int),
	}
}

// AddBlock appends a block to the arena. The first block added becomes the
// entry unless Entry is already set.
func (f *ConcreteFunction) AddBlock(b *FunctionBlock) error {
	if f.index == nil {
		f.reindex()
	}
	label := b.Label.Key()
	if _, exists := f.index[label]; exists {
		return fmt.Errorf("block '%s' is defined twice in function '%s'", label, f.Name.Key())
	}
	f.index[label] = len(f.Blocks)
	f.Blocks = append(f.Blocks, b)
	if f.Entry == "" {
		f.Entry = label
	}
	return nil
}

func (f *ConcreteFunction) reindex() {
	f.index = make(map[string]int, len(f.Blocks))
	for i, b := range f.Blocks {
		f.index[b.Label.Key()] = i
	}
}

// RetainBlocks keeps the blocks for which keep returns true, preserving
// arena order, and returns how many were removed
func (f *ConcreteFunction) RetainBlocks(keep func(*FunctionBlock) bool) int {
	kept := f.Blocks[:0]
	for _, b := range f.Blocks {
		if keep(b) {
			kept = append(kept, b)
		}
	}
	removed := len(f.Blocks) - len(kept)
	for i := len(kept); i < len(f.Blocks); i++ {
		f.Blocks[i] = nil
	}
	f.Blocks = kept
	f.reindex()
	return removed
}

// Block looks up a block by label
func (f *ConcreteFunction) Block(label string) (*FunctionBlock, bool) {
	idx, ok := f.BlockIndex(label)
	if !ok {
		return nil, false
	}
	return f.Blocks[idx], true
}

// BlockIndex returns the arena position of a block
func (f *ConcreteFunction) BlockIndex(label string) (int, bool) {
	if f.index == nil || len(f.index) != len(f.Blocks) {
		f.reindex()
	}
	idx, ok := f.index[label]
	return idx, ok
}

// EntryBlock returns the block execution starts in
func (f *ConcreteFunction) EntryBlock() *FunctionBlock {
	b, _ := f.Block(f.Entry)
	return b
}

// Predecessors maps each block label to the labels of the blocks with an
// edge into it, in arena order
func (f *ConcreteFunction) Predecessors() map[string][]string {
	preds := make(map[string][]string, len(f.Blocks))
	for _, b := range f.Blocks {
		preds[b.Label.Key()] = nil
	}
	for _, b := range f.Blocks {
		for _, succ := range b.SuccessorLabels() {
			preds[succ] = append(preds[succ], b.Label.Key())
		}
	}
	return preds
}

// IsExternal reports whether the function is reachable through the dispatcher
func (f *ConcreteFunction) IsExternal() bool {
	return f.Kind == Transition
}

// ReturnTypeName returns the return type key or "" for void functions
func (f *ConcreteFunction) ReturnTypeName() string {
	if f.ReturnType == nil {
		return ""
	}
	return f.ReturnType.Key()
}
