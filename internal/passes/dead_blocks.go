package passes

import (
	"kansoc/internal/ir"
)

// DeadBlockElimination removes blocks that no path from the entry block
// reaches. It is not part of the default pipeline: unreachable blocks are
// still checked there.
type DeadBlockElimination struct {
	BasePass
	Removed int
}

func NewDeadBlockElimination() *DeadBlockElimination {
	return &DeadBlockElimination{}
}

func (p *DeadBlockElimination) Name() string {
	return "dead-block-elimination"
}

func (p *DeadBlockElimination) VisitFunction(mode TreeVisitMode, fn *ir.ConcreteFunction) (TraversalResult, error) {
	if mode != Begin || fn.EntryBlock() == nil {
		return SkipChildren, nil
	}

	reachable := make(map[string]bool, len(fn.Blocks))
	markReachable(fn, fn.Entry, reachable)

	removed := fn.RetainBlocks(func(b *ir.FunctionBlock) bool {
		return reachable[b.Label.Key()]
	})
	if removed > 0 {
		log.Debugf("removed %d unreachable blocks from %s", removed, fn.Name.Key())
	}
	p.Removed += removed
	return SkipChildren, nil
}

func markReachable(fn *ir.ConcreteFunction, label string, reachable map[string]bool) {
	if reachable[label] {
		return
	}
	block, ok := fn.Block(label)
	if !ok {
		return
	}
	reachable[label] = true
	for _, succ := range block.SuccessorLabels() {
		markReachable(fn, succ, reachable)
	}
}
