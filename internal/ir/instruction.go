package ir

import (
	"fmt"
	"strings"
)

// Instruction is one operation inside a block. The set of implementations is
// closed; passes switch over the concrete types below.
type Instruction interface {
	// Result is the defined value, nil for void operations
	Result() *Identifier
	// Operands are the values read, in evaluation order. Field and label
	// identifiers are never operands.
	Operands() []*Identifier
	// Targets are the outgoing edges of a terminator in stored order
	Targets() []*BlockTarget
	Span() SourceSpan
	IsTerminator() bool
	String() string
	isInstruction()
}

// BinaryOperator names an arithmetic, comparison or logical operation
type BinaryOperator string

const (
	OpAdd BinaryOperator = "add"
	OpSub BinaryOperator = "sub"
	OpMul BinaryOperator = "mul"
	OpDiv BinaryOperator = "div"
	OpMod BinaryOperator = "mod"
	OpEq  BinaryOperator = "eq"
	OpLt  BinaryOperator = "lt"
	OpGt  BinaryOperator = "gt"
	OpLe  BinaryOperator = "le"
	OpGe  BinaryOperator = "ge"
	OpAnd BinaryOperator = "and"
	OpOr  BinaryOperator = "or"
)

// BinaryOperators lists every operator the IR knows
var BinaryOperators = []BinaryOperator{OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpLt, OpGt, OpLe, OpGe, OpAnd, OpOr}

// IsArithmetic reports whether the operator produces a number of its operands' type
func (op BinaryOperator) IsArithmetic() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return true
	}
	return false
}

// IsComparison reports whether the operator produces a Bool from two numbers
func (op BinaryOperator) IsComparison() bool {
	switch op {
	case OpEq, OpLt, OpGt, OpLe, OpGe:
		return true
	}
	return false
}

// IsLogical reports whether the operator combines two Bools
func (op BinaryOperator) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// ParseBinaryOperator maps an operator mnemonic to its constant
func ParseBinaryOperator(s string) (BinaryOperator, bool) {
	for _, op := range BinaryOperators {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// BlockTarget is an edge to a block together with the arguments bound to
// the target's parameters
type BlockTarget struct {
	Label *Identifier
	Args  []*Identifier
}

func (t *BlockTarget) String() string {
	if len(t.Args) == 0 {
		return t.Label.Key()
	}
	return fmt.Sprintf("%s(%s)", t.Label.Key(), strings.Join(keys(t.Args), ", "))
}

// MatchCase sends control to Target when the subject carries Tag
type MatchCase struct {
	Tag    string
	Target *BlockTarget
}

type instruction struct {
	Loc SourceSpan
}

func (i *instruction) Span() SourceSpan        { return i.Loc }
func (i *instruction) Targets() []*BlockTarget { return nil }
func (i *instruction) IsTerminator() bool      { return false }
func (i *instruction) isInstruction()          {}

// BinaryOp computes Dest = Left Op Right
type BinaryOp struct {
	instruction
	Dest  *Identifier
	Op    BinaryOperator
	Left  *Identifier
	Right *Identifier
}

// Literal constructs an integer or string constant. LitType is nil for
// untyped integer literals, which type annotation rejects.
type Literal struct {
	instruction
	Dest     *Identifier
	Value    string
	IsString bool
	LitType  *Identifier
}

// Construct builds a payload-less variant value
type Construct struct {
	instruction
	Dest *Identifier
	Tag  string
}

// LoadField reads a persistent contract field
type LoadField struct {
	instruction
	Dest  *Identifier
	Field *Identifier
}

// StoreField writes a persistent contract field
type StoreField struct {
	instruction
	Field *Identifier
	Value *Identifier
}

// Call invokes another function of the contract. Dest is nil when the
// result is discarded or the callee returns nothing.
type Call struct {
	instruction
	Dest   *Identifier
	Callee *Identifier
	Args   []*Identifier
}

// Jump transfers control unconditionally
type Jump struct {
	instruction
	Target *BlockTarget
}

// Branch transfers control on a Bool
type Branch struct {
	instruction
	Cond *Identifier
	Then *BlockTarget
	Else *BlockTarget
}

// Match transfers control on the tag of a variant value. Default is taken
// when no case matches and may be nil.
type Match struct {
	instruction
	Subject *Identifier
	Cases   []MatchCase
	Default *BlockTarget
}

// Return leaves the function, optionally with a value
type Return struct {
	instruction
	Value *Identifier
}

// Throw aborts the call and reverts its effects
type Throw struct {
	instruction
}

// Result implementations

func (b *BinaryOp) Result() *Identifier   { return b.Dest }
func (l *Literal) Result() *Identifier    { return l.Dest }
func (c *Construct) Result() *Identifier  { return c.Dest }
func (l *LoadField) Result() *Identifier  { return l.Dest }
func (s *StoreField) Result() *Identifier { return nil }
func (c *Call) Result() *Identifier       { return c.Dest }
func (j *Jump) Result() *Identifier       { return nil }
func (b *Branch) Result() *Identifier     { return nil }
func (m *Match) Result() *Identifier      { return nil }
func (r *Return) Result() *Identifier     { return nil }
func (t *Throw) Result() *Identifier      { return nil }

// Operand implementations

func (b *BinaryOp) Operands() []*Identifier   { return []*Identifier{b.Left, b.Right} }
func (l *Literal) Operands() []*Identifier    { return nil }
func (c *Construct) Operands() []*Identifier  { return nil }
func (l *LoadField) Operands() []*Identifier  { return nil }
func (s *StoreField) Operands() []*Identifier { return []*Identifier{s.Value} }
func (c *Call) Operands() []*Identifier       { return c.Args }
func (j *Jump) Operands() []*Identifier       { return j.Target.Args }
func (b *Branch) Operands() []*Identifier {
	ops := []*Identifier{b.Cond}
	ops = append(ops, b.Then.Args...)
	return append(ops, b.Else.Args...)
}
func (m *Match) Operands() []*Identifier {
	ops := []*Identifier{m.Subject}
	for _, c := range m.Cases {
		ops = append(ops, c.Target.Args...)
	}
	if m.Default != nil {
		ops = append(ops, m.Default.Args...)
	}
	return ops
}
func (r *Return) Operands() []*Identifier {
	if r.Value == nil {
		return nil
	}
	return []*Identifier{r.Value}
}
func (t *Throw) Operands() []*Identifier { return nil }

// Terminator implementations

func (j *Jump) Targets() []*BlockTarget   { return []*BlockTarget{j.Target} }
func (b *Branch) Targets() []*BlockTarget { return []*BlockTarget{b.Then, b.Else} }
func (m *Match) Targets() []*BlockTarget {
	targets := make([]*BlockTarget, 0, len(m.Cases)+1)
	for _, c := range m.Cases {
		targets = append(targets, c.Target)
	}
	if m.Default != nil {
		targets = append(targets, m.Default)
	}
	return targets
}

func (j *Jump) IsTerminator() bool   { return true }
func (b *Branch) IsTerminator() bool { return true }
func (m *Match) IsTerminator() bool  { return true }
func (r *Return) IsTerminator() bool { return true }
func (t *Throw) IsTerminator() bool  { return true }

// String implementations render the textual IR form

func (b *BinaryOp) String() string {
	return fmt.Sprintf("%s = %s %s, %s", b.Dest, b.Op, b.Left, b.Right)
}

func (l *Literal) String() string {
	if l.IsString {
		return fmt.Sprintf("%s = const %q", l.Dest, l.Value)
	}
	if l.LitType == nil {
		return fmt.Sprintf("%s = const %s", l.Dest, l.Value)
	}
	return fmt.Sprintf("%s = const %s %s", l.Dest, l.LitType.Key(), l.Value)
}

func (c *Construct) String() string  { return fmt.Sprintf("%s = construct %s", c.Dest, c.Tag) }
func (l *LoadField) String() string  { return fmt.Sprintf("%s = load %s", l.Dest, l.Field) }
func (s *StoreField) String() string { return fmt.Sprintf("store %s, %s", s.Field, s.Value) }

func (c *Call) String() string {
	call := fmt.Sprintf("call %s(%s)", c.Callee, strings.Join(keys(c.Args), ", "))
	if c.Dest == nil {
		return call
	}
	return fmt.Sprintf("%s = %s", c.Dest, call)
}

func (j *Jump) String() string { return fmt.Sprintf("jump %s", j.Target) }

func (b *Branch) String() string {
	return fmt.Sprintf("branch %s, %s, %s", b.Cond, b.Then, b.Else)
}

func (m *Match) String() string {
	arms := make([]string, 0, len(m.Cases)+1)
	for _, c := range m.Cases {
		arms = append(arms, fmt.Sprintf("%s => %s", c.Tag, c.Target))
	}
	if m.Default != nil {
		arms = append(arms, fmt.Sprintf("_ => %s", m.Default))
	}
	return fmt.Sprintf("match %s { %s }", m.Subject, strings.Join(arms, ", "))
}

func (r *Return) String() string {
	if r.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", r.Value)
}

func (t *Throw) String() string { return "throw" }

// SetSpan records the source location of an instruction
func SetSpan(inst Instruction, span SourceSpan) {
	switch i := inst.(type) {
	case *BinaryOp:
		i.Loc = span
	case *Literal:
		i.Loc = span
	case *Construct:
		i.Loc = span
	case *LoadField:
		i.Loc = span
	case *StoreField:
		i.Loc = span
	case *Call:
		i.Loc = span
	case *Jump:
		i.Loc = span
	case *Branch:
		i.Loc = span
	case *Match:
		i.Loc = span
	case *Return:
		i.Loc = span
	case *Throw:
		i.Loc = span
	}
}
