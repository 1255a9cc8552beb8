package ir

import (
	"fmt"
	"strings"
)

// Builder assembles an IntermediateRepresentation programmatically. Errors
// are collected and reported once by Build so call chains stay flat.
type Builder struct {
	program *IntermediateRepresentation
	err     error
}

// NewBuilder starts a new contract
func NewBuilder(contract string) *Builder {
	return &Builder{program: New(contract)}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Type declares a user type
func (b *Builder) Type(t ConcreteType) *Builder {
	b.program.AddType(t)
	return b
}

// Field declares a persistent contract field
func (b *Builder) Field(name, typeName string) *Builder {
	b.program.AddField(name, typeName)
	return b
}

// Function starts a new function and registers it with the program
func (b *Builder) Function(name string, kind FunctionKind) *FunctionBuilder {
	fn := NewFunction(name, kind)
	b.program.AddFunction(fn)
	return &FunctionBuilder{parent: b, fn: fn}
}

// Build returns the program or the first construction error
func (b *Builder) Build() (*IntermediateRepresentation, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.program, nil
}

// MustBuild is Build for tests and fixtures known to be well formed
func (b *Builder) MustBuild() *IntermediateRepresentation {
	program, err := b.Build()
	if err != nil {
		panic(err)
	}
	return program
}

// FunctionBuilder adds parameters and blocks to one function
type FunctionBuilder struct {
	parent *Builder
	fn     *ConcreteFunction
}

// Function exposes the function under construction
func (f *FunctionBuilder) Function() *ConcreteFunction {
	return f.fn
}

// Param declares a function parameter
func (f *FunctionBuilder) Param(name, typeName string) *FunctionBuilder {
	f.fn.Parameters = append(f.fn.Parameters, typedDefinition(name, typeName))
	return f
}

// Returns sets the return type
func (f *FunctionBuilder) Returns(typeName string) *FunctionBuilder {
	f.fn.ReturnType = TypeRef(typeName)
	return f
}

// Block appends a new block. The first block is the entry.
func (f *FunctionBuilder) Block(label string) *BlockBuilder {
	block := NewBlock(label)
	if err := f.fn.AddBlock(block); err != nil {
		f.parent.fail(err)
	}
	return &BlockBuilder{fn: f, block: block}
}

// End returns to the program builder
func (f *FunctionBuilder) End() *Builder {
	return f.parent
}

// BlockBuilder appends instructions to one block
type BlockBuilder struct {
	fn    *FunctionBuilder
	block *FunctionBlock
}

// Block exposes the block under construction
func (b *BlockBuilder) Block() *FunctionBlock {
	return b.block
}

// Param declares a block parameter. An empty type leaves it untyped.
func (b *BlockBuilder) Param(name, typeName string) *BlockBuilder {
	b.block.Parameters = append(b.block.Parameters, typedDefinition(name, typeName))
	return b
}

// At sets the source span of the most recently appended instruction
func (b *BlockBuilder) At(span SourceSpan) *BlockBuilder {
	if n := len(b.block.Instructions); n > 0 {
		SetSpan(b.block.Instructions[n-1], span)
	}
	return b
}

func (b *BlockBuilder) add(inst Instruction) *BlockBuilder {
	b.block.Append(inst)
	return b
}

// Binary appends dest = op left, right
func (b *BlockBuilder) Binary(dest string, op BinaryOperator, left, right string) *BlockBuilder {
	return b.add(&BinaryOp{Dest: Def(dest), Op: op, Left: Ref(left), Right: Ref(right)})
}

// Const appends a typed integer literal. An empty type produces an untyped
// literal.
func (b *BlockBuilder) Const(dest, typeName, value string) *BlockBuilder {
	lit := &Literal{Dest: Def(dest), Value: value}
	if typeName != "" {
		lit.LitType = TypeRef(typeName)
	}
	return b.add(lit)
}

// ConstString appends a string literal
func (b *BlockBuilder) ConstString(dest, value string) *BlockBuilder {
	return b.add(&Literal{Dest: Def(dest), Value: value, IsString: true})
}

// Construct appends a payload-less variant construction
func (b *BlockBuilder) Construct(dest, tag string) *BlockBuilder {
	return b.add(&Construct{Dest: Def(dest), Tag: tag})
}

// Load appends a field read
func (b *BlockBuilder) Load(dest, field string) *BlockBuilder {
	return b.add(&LoadField{Dest: Def(dest), Field: NewIdentifier(field, KindGlobal)})
}

// Store appends a field write
func (b *BlockBuilder) Store(field, value string) *BlockBuilder {
	return b.add(&StoreField{Field: NewIdentifier(field, KindGlobal), Value: Ref(value)})
}

// Call appends a call. An empty dest discards the result.
func (b *BlockBuilder) Call(dest, callee string, args ...string) *BlockBuilder {
	call := &Call{Callee: NewIdentifier(callee, KindGlobal), Args: Refs(args...)}
	if dest != "" {
		call.Dest = Def(dest)
	}
	return b.add(call)
}

// Jump terminates the block with an unconditional edge
func (b *BlockBuilder) Jump(label string, args ...string) *BlockBuilder {
	return b.add(&Jump{Target: Target(label, args...)})
}

// Branch terminates the block with a two-way edge on a Bool
func (b *BlockBuilder) Branch(cond string, then, els *BlockTarget) *BlockBuilder {
	return b.add(&Branch{Cond: Ref(cond), Then: then, Else: els})
}

// Match terminates the block with a multi-way edge on a variant tag
func (b *BlockBuilder) Match(subject string, def *BlockTarget, cases ...MatchCase) *BlockBuilder {
	return b.add(&Match{Subject: Ref(subject), Cases: cases, Default: def})
}

// Return terminates the block, returning value unless it is empty
func (b *BlockBuilder) Return(value string) *BlockBuilder {
	ret := &Return{}
	if value != "" {
		ret.Value = Ref(value)
	}
	return b.add(ret)
}

// Throw terminates the block by reverting
func (b *BlockBuilder) Throw() *BlockBuilder {
	return b.add(&Throw{})
}

// Next starts another block in the same function
func (b *BlockBuilder) Next(label string) *BlockBuilder {
	return b.fn.Block(label)
}

// End returns to the function builder
func (b *BlockBuilder) End() *FunctionBuilder {
	return b.fn
}

// ValueKind classifies a value name: a leading % marks a virtual register
func ValueKind(name string) IdentifierKind {
	if strings.HasPrefix(name, "%") {
		return KindIntermediate
	}
	return KindLocal
}

// Def creates a defining identifier for a value
func Def(name string) *Identifier {
	return NewDefinition(name, ValueKind(name))
}

// Ref creates a use of a value
func Ref(name string) *Identifier {
	return NewIdentifier(name, ValueKind(name))
}

// Refs creates uses for a list of values
func Refs(names ...string) []*Identifier {
	out := make([]*Identifier, len(names))
	for i, n := range names {
		out[i] = Ref(n)
	}
	return out
}

// Target creates an edge to label passing args
func Target(label string, args ...string) *BlockTarget {
	return &BlockTarget{Label: Label(label), Args: Refs(args...)}
}

// Case creates a match arm
func Case(tag, label string, args ...string) MatchCase {
	return MatchCase{Tag: tag, Target: Target(label, args...)}
}

// Tuple creates a tuple type definition
func Tuple(name string, fields ...string) *TupleType {
	refs := make([]*Identifier, len(fields))
	for i, f := range fields {
		refs[i] = TypeRef(f)
	}
	return &TupleType{Name: NewDefinition(name, KindTypeName), Fields: refs}
}

// Variant creates a variant type definition
func Variant(name string, constructors ...Constructor) *VariantType {
	return &VariantType{Name: NewDefinition(name, KindTypeName), Constructors: constructors}
}

// Ctor creates a variant constructor
func Ctor(tag string, payload ...string) Constructor {
	refs := make([]*Identifier, len(payload))
	for i, p := range payload {
		refs[i] = TypeRef(p)
	}
	return Constructor{Tag: tag, Payload: refs}
}

func typedDefinition(name, typeName string) *Identifier {
	def := Def(name)
	if typeName != "" {
		def.Type = TypeRef(typeName)
	}
	return def
}

// Validate checks the structural shape every pass relies on: each function
// has blocks, an existing entry, and every block ends in exactly one
// terminator whose targets exist. Function and block names may not start
// with the $ the assembler reserves for its own labels.
func (p *IntermediateRepresentation) Validate() error {
	for _, fn := range p.Functions {
		if strings.HasPrefix(fn.Name.Key(), "$") {
			return fmt.Errorf("function name '%s' starts with a reserved '$'", fn.Name.Key())
		}
		if len(fn.Blocks) == 0 {
			return fmt.Errorf("function '%s' has no blocks", fn.Name.Key())
		}
		if fn.EntryBlock() == nil {
			return fmt.Errorf("function '%s' has no entry block '%s'", fn.Name.Key(), fn.Entry)
		}
		for _, b := range fn.Blocks {
			if strings.HasPrefix(b.Label.Key(), "$") {
				return fmt.Errorf("block label '%s' in function '%s' starts with a reserved '$'", b.Label.Key(), fn.Name.Key())
			}
			if b.Terminator() == nil {
				return fmt.Errorf("block '%s' in function '%s' does not end in a terminator", b.Label.Key(), fn.Name.Key())
			}
			for _, inst := range b.Instructions[:len(b.Instructions)-1] {
				if inst.IsTerminator() {
					return fmt.Errorf("block '%s' in function '%s' has a terminator before its end", b.Label.Key(), fn.Name.Key())
				}
			}
			for _, t := range b.Successors() {
				if _, ok := fn.Block(t.Label.Key()); !ok {
					return fmt.Errorf("block '%s' in function '%s' jumps to unknown block '%s'", b.Label.Key(), fn.Name.Key(), t.Label.Key())
				}
			}
		}
	}
	return nil
}
