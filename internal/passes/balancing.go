package passes

import (
	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

// ArgumentBalancer turns live-in sets into block parameters and extends
// every edge into a block so that argument i supplies parameter i. Running
// it again appends nothing.
type ArgumentBalancer struct {
	BasePass
}

func NewArgumentBalancer() *ArgumentBalancer {
	return &ArgumentBalancer{}
}

func (p *ArgumentBalancer) Name() string { return "block-argument-balancing" }

func (p *ArgumentBalancer) VisitFunction(mode TreeVisitMode, fn *ir.ConcreteFunction) (TraversalResult, error) {
	if mode == End {
		return Continue, nil
	}

	entry := fn.EntryBlock()
	if entry == nil {
		return SkipChildren, errors.UnknownBlock(fn.Entry, fn.Name.Key(), fn.Span.Position())
	}
	if len(entry.LiveIn) > 0 {
		names := make([]string, len(entry.LiveIn))
		for i, id := range entry.LiveIn {
			names[i] = id.Key()
		}
		return SkipChildren, errors.EntryLiveIn(fn.Name.Key(), names, entry.LiveIn[0].Span.Position())
	}

	// Parameters first, so every block's final signature is known before
	// any edge is extended
	added := 0
	for _, b := range fn.Blocks {
		for _, live := range b.LiveIn {
			if b.HasParameter(live.Key()) {
				continue
			}
			b.Parameters = append(b.Parameters, live.AsDefinition())
			added++
		}
	}

	for _, pred := range fn.Blocks {
		available := availableAtExit(fn, pred)
		for _, target := range pred.Successors() {
			succ, ok := fn.Block(target.Label.Key())
			if !ok {
				return SkipChildren, errors.UnknownBlock(target.Label.Key(), fn.Name.Key(), target.Label.Span.Position())
			}
			for i := len(target.Args); i < len(succ.Parameters); i++ {
				param := succ.Parameters[i]
				if !available[param.Key()] {
					return SkipChildren, errors.UnbalancedArgument(param.Key(), pred.Label.Key(), succ.Label.Key(), param.Span.Position())
				}
				target.Args = append(target.Args, param.Use())
			}
		}
	}

	if added > 0 {
		log.Debugf("%s: added %d block parameters", fn.Name.Key(), added)
	}
	return SkipChildren, nil
}

// availableAtExit lists the values a block can pass along its outgoing
// edges: its parameters, its live-in values and everything it defines
func availableAtExit(fn *ir.ConcreteFunction, b *ir.FunctionBlock) map[string]bool {
	available := make(map[string]bool)
	if b.Label.Key() == fn.Entry {
		for _, param := range fn.Parameters {
			available[param.Key()] = true
		}
	}
	for _, param := range b.Parameters {
		available[param.Key()] = true
	}
	for _, live := range b.LiveIn {
		available[live.Key()] = true
	}
	for _, inst := range b.Instructions {
		if dest := inst.Result(); dest != nil {
			available[dest.Key()] = true
		}
	}
	return available
}
