package passes

import (
	"kansoc/internal/ir"
)

// TreeVisitMode tells a visit method whether it runs before or after the
// node's children
type TreeVisitMode int

const (
	Begin TreeVisitMode = iota
	End
)

func (m TreeVisitMode) String() string {
	if m == Begin {
		return "begin"
	}
	return "end"
}

// TraversalResult directs the walker after a Begin visit
type TraversalResult int

const (
	// Continue descends into the node's children
	Continue TraversalResult = iota
	// SkipChildren skips the children and the node's End visit
	SkipChildren
)

// Pass is one stage of the pipeline. Every method is called twice per node,
// once with Begin and once with End, unless Begin returns SkipChildren.
type Pass interface {
	Name() string
	VisitIR(mode TreeVisitMode, program *ir.IntermediateRepresentation) (TraversalResult, error)
	VisitType(mode TreeVisitMode, t ir.ConcreteType) (TraversalResult, error)
	VisitField(mode TreeVisitMode, field *ir.Field) (TraversalResult, error)
	VisitFunction(mode TreeVisitMode, fn *ir.ConcreteFunction) (TraversalResult, error)
	VisitBlock(mode TreeVisitMode, block *ir.FunctionBlock) (TraversalResult, error)
	VisitInstruction(mode TreeVisitMode, inst ir.Instruction) (TraversalResult, error)
	VisitIdentifier(mode TreeVisitMode, id *ir.Identifier) (TraversalResult, error)
}

// BasePass continues through every node. Passes embed it and override the
// methods they care about.
type BasePass struct{}

func (BasePass) VisitIR(TreeVisitMode, *ir.IntermediateRepresentation) (TraversalResult, error) {
	return Continue, nil
}

func (BasePass) VisitType(TreeVisitMode, ir.ConcreteType) (TraversalResult, error) {
	return Continue, nil
}

func (BasePass) VisitField(TreeVisitMode, *ir.Field) (TraversalResult, error) {
	return Continue, nil
}

func (BasePass) VisitFunction(TreeVisitMode, *ir.ConcreteFunction) (TraversalResult, error) {
	return Continue, nil
}

func (BasePass) VisitBlock(TreeVisitMode, *ir.FunctionBlock) (TraversalResult, error) {
	return Continue, nil
}

func (BasePass) VisitInstruction(TreeVisitMode, ir.Instruction) (TraversalResult, error) {
	return Continue, nil
}

func (BasePass) VisitIdentifier(TreeVisitMode, *ir.Identifier) (TraversalResult, error) {
	return Continue, nil
}
