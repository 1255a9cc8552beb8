package passes

import (
	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

// blockInfo is the local summary of one block
type blockInfo struct {
	block   *ir.FunctionBlock
	used    []*ir.Identifier // read before any local definition, first use first
	defined map[string]bool  // parameters and instruction results
	live    []*ir.Identifier
	inLive  map[string]bool
}

func (b *blockInfo) addLive(id *ir.Identifier) bool {
	if b.inLive[id.Key()] {
		return false
	}
	b.inLive[id.Key()] = true
	use := id.Use()
	use.Span = id.Span
	b.live = append(b.live, use)
	return true
}

// DependencyAnalysis computes the live-in set of every block: the values a
// block reads that must arrive from its predecessors. Blocks are summarised
// on their Begin visit; the sets are propagated backwards over the block
// graph on the function's End visit until nothing changes, then each list is
// ordered as local uses first, then successors in stored order.
type DependencyAnalysis struct {
	BasePass
	fn     *ir.ConcreteFunction
	blocks map[string]*blockInfo
}

func NewDependencyAnalysis() *DependencyAnalysis {
	return &DependencyAnalysis{}
}

func (p *DependencyAnalysis) Name() string { return "block-dependency-analysis" }

func (p *DependencyAnalysis) VisitFunction(mode TreeVisitMode, fn *ir.ConcreteFunction) (TraversalResult, error) {
	if mode == Begin {
		if fn.EntryBlock() == nil {
			return Continue, errors.UnknownBlock(fn.Entry, fn.Name.Key(), fn.Span.Position())
		}
		p.fn = fn
		p.blocks = make(map[string]*blockInfo, len(fn.Blocks))
		return Continue, nil
	}

	if err := p.checkDefinitions(); err != nil {
		return Continue, err
	}
	rounds := p.propagate()
	log.Debugf("%s: live-in sets stable after %d rounds", fn.Name.Key(), rounds)
	p.order()

	for _, b := range fn.Blocks {
		b.LiveIn = p.blocks[b.Label.Key()].live
	}

	entry := fn.EntryBlock()
	if len(entry.LiveIn) > 0 {
		names := make([]string, len(entry.LiveIn))
		for i, id := range entry.LiveIn {
			names[i] = id.Key()
		}
		return Continue, errors.EntryLiveIn(fn.Name.Key(), names, entry.LiveIn[0].Span.Position())
	}
	if err := p.checkUnreachable(); err != nil {
		return Continue, err
	}

	p.fn = nil
	p.blocks = nil
	return Continue, nil
}

func (p *DependencyAnalysis) VisitBlock(mode TreeVisitMode, block *ir.FunctionBlock) (TraversalResult, error) {
	if mode == End {
		return Continue, nil
	}

	info := &blockInfo{
		block:   block,
		defined: make(map[string]bool),
		inLive:  make(map[string]bool),
	}
	if block.Label.Key() == p.fn.Entry {
		for _, param := range p.fn.Parameters {
			info.defined[param.Key()] = true
		}
	}
	for _, param := range block.Parameters {
		info.defined[param.Key()] = true
	}

	// A value read before its local definition still comes from outside
	seenUse := make(map[string]bool)
	for _, inst := range block.Instructions {
		for _, op := range inst.Operands() {
			key := op.Key()
			if info.defined[key] || seenUse[key] {
				continue
			}
			seenUse[key] = true
			info.used = append(info.used, op)
		}
		if dest := inst.Result(); dest != nil {
			info.defined[dest.Key()] = true
		}
	}

	for _, target := range block.Successors() {
		if _, ok := p.fn.Block(target.Label.Key()); !ok {
			return Continue, errors.UnknownBlock(target.Label.Key(), p.fn.Name.Key(), target.Label.Span.Position())
		}
	}

	p.blocks[block.Label.Key()] = info
	return SkipChildren, nil
}

// checkDefinitions rejects values that no block of the function defines
func (p *DependencyAnalysis) checkDefinitions() error {
	everywhere := make(map[string]bool)
	for _, info := range p.blocks {
		for name := range info.defined {
			everywhere[name] = true
		}
	}
	for _, param := range p.fn.Parameters {
		everywhere[param.Key()] = true
	}
	for _, b := range p.fn.Blocks {
		for _, use := range p.blocks[b.Label.Key()].used {
			if !everywhere[use.Key()] {
				return errors.UseBeforeDefinition(use.Key(), b.Label.Key(), use.Span.Position())
			}
		}
	}
	return nil
}

// propagate computes live_in(B) = used(B) ∪ (⋃ live_in(S) − defined(B)) by
// backward sweeps until a sweep changes nothing. Sets only grow. The order
// entries are appended in depends on the block list and is fixed by order.
func (p *DependencyAnalysis) propagate() int {
	for _, b := range p.fn.Blocks {
		info := p.blocks[b.Label.Key()]
		for _, use := range info.used {
			info.addLive(use)
		}
	}

	rounds := 0
	for changed := true; changed; {
		changed = false
		rounds++
		for i := len(p.fn.Blocks) - 1; i >= 0; i-- {
			info := p.blocks[p.fn.Blocks[i].Label.Key()]
			for _, label := range info.block.SuccessorLabels() {
				succ := p.blocks[label]
				for _, id := range succ.live {
					if info.defined[id.Key()] {
						continue
					}
					if info.addLive(id) {
						changed = true
					}
				}
			}
		}
	}
	return rounds
}

// order rebuilds every live-in list from the converged sets: used(B), then
// each successor's list in stored order, minus defined(B). Blocks are visited
// in postorder from the entry, so on an acyclic graph every successor is
// final before a predecessor reads it. A successor still open on a loop
// contributes its converged order, and values still missing follow last.
func (p *DependencyAnalysis) order() {
	visited := make(map[string]bool, len(p.blocks))
	var post []*blockInfo
	var visit func(label string)
	visit = func(label string) {
		info, ok := p.blocks[label]
		if !ok || visited[label] {
			return
		}
		visited[label] = true
		for _, succ := range info.block.SuccessorLabels() {
			visit(succ)
		}
		post = append(post, info)
	}
	visit(p.fn.Entry)
	for _, b := range p.fn.Blocks {
		visit(b.Label.Key())
	}

	final := make(map[string][]*ir.Identifier, len(post))
	for _, info := range post {
		own := make(map[string]*ir.Identifier, len(info.live))
		for _, id := range info.live {
			own[id.Key()] = id
		}

		ordered := make([]*ir.Identifier, 0, len(info.live))
		add := func(ids []*ir.Identifier) {
			for _, id := range ids {
				if mine, ok := own[id.Key()]; ok {
					ordered = append(ordered, mine)
					delete(own, id.Key())
				}
			}
		}

		add(info.used)
		for _, label := range info.block.SuccessorLabels() {
			next, ok := final[label]
			if !ok {
				next = p.blocks[label].live
			}
			add(next)
		}
		add(info.live)
		final[info.block.Label.Key()] = ordered
	}

	for label, ordered := range final {
		p.blocks[label].live = ordered
	}
}

// checkUnreachable rejects reads in blocks no path from the entry reaches:
// nothing can ever supply their live-in values
func (p *DependencyAnalysis) checkUnreachable() error {
	reachable := make(map[string]bool, len(p.fn.Blocks))
	markReachable(p.fn, p.fn.Entry, reachable)
	for _, b := range p.fn.Blocks {
		if reachable[b.Label.Key()] {
			continue
		}
		if live := p.blocks[b.Label.Key()].live; len(live) > 0 {
			return errors.UseBeforeDefinition(live[0].Key(), b.Label.Key(), live[0].Span.Position())
		}
	}
	return nil
}
