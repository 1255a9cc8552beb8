package assembler

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/tliron/commonlog"

	"kansoc/internal/abi"
	"kansoc/internal/builtins"
	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

var log = commonlog.GetLogger("kansoc.assembler")

// dispatchRevert is the label every unmatched call ends at
const dispatchRevert = generatedPrefix + "dispatch_revert"

// generatedPrefix starts every label the assembler invents. Function and
// block names are identifiers, so they never start with it.
const generatedPrefix = "$"

// FunctionLabel is the label of a function's first instruction
func FunctionLabel(fn string) string {
	return fn
}

// BlockLabel is the label of a block's first instruction
func BlockLabel(fn, block string) string {
	return fn + "::" + block
}

// Assembler lowers a balanced program into bytecode. Every value lives in a
// memory word of its function's frame; the stack only carries operands
// within one instruction and the return address of internal calls.
type Assembler struct {
	program *ir.IntermediateRepresentation
	table   *abi.Table
	ops     *opStream
	frames  map[string]*frame
}

// trampoline is an edge that copies block arguments before jumping
type trampoline struct {
	label  string
	target *ir.BlockTarget
	span   ir.SourceSpan
}

// blockContext is the lowering state of one block
type blockContext struct {
	fn      *ir.ConcreteFunction
	frame   *frame
	block   *ir.FunctionBlock
	bound   map[string]bool
	pending []trampoline
}

// Assemble lowers the program and its signature table into an Executable
func Assemble(program *ir.IntermediateRepresentation, table *abi.Table) (*Executable, error) {
	a := &Assembler{
		program: program,
		table:   table,
		ops:     newOpStream(),
	}

	if err := a.checkCalls(); err != nil {
		return nil, err
	}
	a.frames = layoutFrames(program)

	if err := a.dispatcher(); err != nil {
		return nil, err
	}
	for _, fn := range program.Functions {
		if err := a.function(fn); err != nil {
			return nil, err
		}
	}
	if err := a.ops.resolveLabels(); err != nil {
		return nil, err
	}

	labels := make(map[string]int, len(a.ops.labels))
	for name, pos := range a.ops.labels {
		labels[name] = pos
	}
	exe := &Executable{
		Bytecode:       a.ops.out,
		LabelPositions: labels,
		SourceMap:      a.ops.sourceMap,
	}
	log.Infof("assembled %s: %d bytes, %d labels, %d source map entries",
		program.Contract, len(exe.Bytecode), len(labels), len(exe.SourceMap))
	return exe, nil
}

// checkCalls rejects calls the static frame layout cannot serve: calls to
// unknown functions, to transitions, and recursion
func (a *Assembler) checkCalls() error {
	callees := make(map[string][]string)
	for _, fn := range a.program.Functions {
		for _, b := range fn.Blocks {
			for _, inst := range b.Instructions {
				call, ok := inst.(*ir.Call)
				if !ok {
					continue
				}
				callee, ok := a.program.Function(call.Callee.Key())
				if !ok {
					return errors.UndefinedFunction(call.Callee.Key(), call.Span().Position(), a.program.FunctionNames())
				}
				if callee.IsExternal() {
					return errors.Unsupported(fmt.Sprintf("internal call to transition '%s'", callee.Name.Key()), call.Span().Position())
				}
				callees[fn.Name.Key()] = append(callees[fn.Name.Key()], callee.Name.Key())
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return errors.Unsupported(fmt.Sprintf("recursive call to '%s'", name), errors.Position{})
		case done:
			return nil
		}
		state[name] = visiting
		for _, callee := range callees[name] {
			if err := visit(callee); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for _, fn := range a.program.Functions {
		if err := visit(fn.Name.Key()); err != nil {
			return err
		}
	}
	return nil
}

// dispatcher reads the selector from call data and jumps to the matching
// transition. Short call data and unknown selectors revert.
func (a *Assembler) dispatcher() error {
	a.ops.at(ir.SourceSpan{})

	a.ops.pushUint(abi.SelectorSize)
	a.ops.op(vm.CALLDATASIZE, vm.LT)
	a.ops.jumpIf(dispatchRevert)

	a.ops.pushUint(0)
	a.ops.op(vm.CALLDATALOAD)
	a.ops.pushUint(0xe0)
	a.ops.op(vm.SHR)

	for _, sig := range a.table.Signatures() {
		fn, ok := a.program.Function(sig.Name)
		if !ok || !fn.IsExternal() {
			return errors.Unsupported(fmt.Sprintf("signature %s has no transition", sig.Canonical()), errors.Position{})
		}
		a.ops.op(vm.DUP1)
		a.ops.pushBytes(sig.Selector[:])
		a.ops.op(vm.EQ)
		a.ops.jumpIf(FunctionLabel(sig.Name))
	}

	if err := a.ops.createLabel(dispatchRevert); err != nil {
		return err
	}
	a.ops.revert()
	return nil
}

func (a *Assembler) function(fn *ir.ConcreteFunction) error {
	f := a.frames[fn.Name.Key()]
	entry := fn.EntryBlock()
	if entry == nil {
		return errors.UnknownBlock(fn.Entry, fn.Name.Key(), fn.Span.Position())
	}
	if len(entry.Parameters) > 0 {
		names := make([]string, len(entry.Parameters))
		for i, p := range entry.Parameters {
			names[i] = p.Key()
		}
		return errors.EntryLiveIn(fn.Name.Key(), names, entry.Parameters[0].Span.Position())
	}

	a.ops.at(fn.Span)
	if err := a.ops.createLabel(FunctionLabel(fn.Name.Key())); err != nil {
		return err
	}

	if fn.IsExternal() {
		// Drop the selector the dispatcher left behind, then copy call data
		a.ops.op(vm.POP)
		for i, p := range fn.Parameters {
			slot, _ := f.slot(p.Key())
			a.ops.pushUint(uint64(abi.SelectorSize + abi.WordSize*i))
			a.ops.op(vm.CALLDATALOAD)
			a.ops.pushUint(slot)
			a.ops.op(vm.MSTORE)
		}
	} else {
		// Stack: return address, then arguments with the last on top
		for i := len(fn.Parameters) - 1; i >= 0; i-- {
			slot, _ := f.slot(fn.Parameters[i].Key())
			a.ops.pushUint(slot)
			a.ops.op(vm.MSTORE)
		}
	}

	// Entry first so the prologue falls through into it
	if err := a.block(fn, f, entry); err != nil {
		return err
	}
	for _, b := range fn.Blocks {
		if b == entry {
			continue
		}
		if err := a.block(fn, f, b); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) block(fn *ir.ConcreteFunction, f *frame, b *ir.FunctionBlock) error {
	ctx := &blockContext{fn: fn, frame: f, block: b, bound: make(map[string]bool)}
	if b.Label.Key() == fn.Entry {
		for _, p := range fn.Parameters {
			ctx.bound[p.Key()] = true
		}
	}
	for _, p := range b.Parameters {
		ctx.bound[p.Key()] = true
	}

	a.ops.at(ir.SourceSpan{})
	if err := a.ops.createLabel(BlockLabel(fn.Name.Key(), b.Label.Key())); err != nil {
		return err
	}
	if b.Terminator() == nil {
		return errors.Unsupported(fmt.Sprintf("block '%s' of '%s' has no terminator", b.Label.Key(), fn.Name.Key()), fn.Span.Position())
	}

	for _, inst := range b.Instructions {
		a.ops.at(inst.Span())
		if err := a.instruction(ctx, inst); err != nil {
			return err
		}
	}

	for _, t := range ctx.pending {
		a.ops.at(t.span)
		if err := a.ops.createLabel(t.label); err != nil {
			return err
		}
		if err := a.edge(ctx, t.target); err != nil {
			return err
		}
	}
	return nil
}

// load pushes the value of id
func (a *Assembler) load(ctx *blockContext, id *ir.Identifier) error {
	key := id.Key()
	if !ctx.bound[key] {
		return errors.UnboundOperand(key, ctx.block.Label.Key(), id.Span.Position())
	}
	slot, ok := ctx.frame.slot(key)
	if !ok {
		return errors.UnboundOperand(key, ctx.block.Label.Key(), id.Span.Position())
	}
	a.ops.pushUint(slot)
	a.ops.op(vm.MLOAD)
	return nil
}

// store pops the top of stack into the word of id
func (a *Assembler) store(ctx *blockContext, id *ir.Identifier) {
	slot, _ := ctx.frame.slot(id.Key())
	a.ops.pushUint(slot)
	a.ops.op(vm.MSTORE)
	ctx.bound[id.Key()] = true
}

// loadPair pushes second then first, leaving first on top
func (a *Assembler) loadPair(ctx *blockContext, first, second *ir.Identifier) error {
	if err := a.load(ctx, second); err != nil {
		return err
	}
	return a.load(ctx, first)
}

// mask truncates the top of stack to the width of a narrow integer type
func (a *Assembler) mask(typeName string) {
	if !builtins.IsIntegerType(typeName) {
		return
	}
	bits := builtins.Bits(typeName)
	if bits >= 256 {
		return
	}
	m := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits))
	m.SubUint64(m, 1)
	a.ops.push(m)
	a.ops.op(vm.AND)
}

func (a *Assembler) instruction(ctx *blockContext, inst ir.Instruction) error {
	switch i := inst.(type) {
	case *ir.BinaryOp:
		if err := a.binary(ctx, i); err != nil {
			return err
		}
		a.store(ctx, i.Dest)

	case *ir.Literal:
		var word *uint256.Int
		var err error
		if i.IsString {
			word, err = ir.StringWord(i.Value)
		} else {
			word, err = ir.ParseInteger(i.Value)
		}
		if err != nil {
			return errors.Unsupported(err.Error(), i.Span().Position())
		}
		a.ops.push(word)
		a.store(ctx, i.Dest)

	case *ir.Construct:
		_, tag, ok := a.program.Symbols.LookupConstructor(i.Tag)
		if !ok {
			return errors.UnknownConstructor(i.Tag, i.Span().Position())
		}
		a.ops.pushUint(uint64(tag))
		a.store(ctx, i.Dest)

	case *ir.LoadField:
		slot, err := a.storageSlot(i.Field)
		if err != nil {
			return err
		}
		a.ops.pushUint(slot)
		a.ops.op(vm.SLOAD)
		a.store(ctx, i.Dest)

	case *ir.StoreField:
		slot, err := a.storageSlot(i.Field)
		if err != nil {
			return err
		}
		if err := a.load(ctx, i.Value); err != nil {
			return err
		}
		a.ops.pushUint(slot)
		a.ops.op(vm.SSTORE)

	case *ir.Call:
		return a.call(ctx, i)

	case *ir.Jump:
		return a.edge(ctx, i.Target)

	case *ir.Branch:
		if err := a.load(ctx, i.Cond); err != nil {
			return err
		}
		if err := a.conditionalEdge(ctx, i.Then, i.Span()); err != nil {
			return err
		}
		return a.edge(ctx, i.Else)

	case *ir.Match:
		return a.match(ctx, i)

	case *ir.Return:
		return a.ret(ctx, i)

	case *ir.Throw:
		a.ops.revert()

	default:
		return errors.Unsupported(fmt.Sprintf("instruction %T", inst), inst.Span().Position())
	}
	return nil
}

func (a *Assembler) binary(ctx *blockContext, i *ir.BinaryOp) error {
	typeName := i.Dest.TypeName()
	if typeName == "" {
		typeName = i.Left.TypeName()
	}

	// The EVM takes the left operand from the top of stack
	if err := a.loadPair(ctx, i.Left, i.Right); err != nil {
		return err
	}

	switch i.Op {
	case ir.OpAdd:
		a.ops.op(vm.ADD)
		a.mask(typeName)
	case ir.OpSub:
		a.ops.op(vm.SUB)
		a.mask(typeName)
	case ir.OpMul:
		a.ops.op(vm.MUL)
		a.mask(typeName)
	case ir.OpDiv:
		a.ops.op(vm.DIV)
	case ir.OpMod:
		a.ops.op(vm.MOD)
	case ir.OpEq:
		a.ops.op(vm.EQ)
	case ir.OpLt:
		a.ops.op(vm.LT)
	case ir.OpGt:
		a.ops.op(vm.GT)
	case ir.OpLe:
		a.ops.op(vm.GT, vm.ISZERO)
	case ir.OpGe:
		a.ops.op(vm.LT, vm.ISZERO)
	case ir.OpAnd:
		a.ops.op(vm.AND)
	case ir.OpOr:
		a.ops.op(vm.OR)
	default:
		return errors.Unsupported(fmt.Sprintf("operator '%s'", i.Op), i.Span().Position())
	}
	return nil
}

// generatedLabel returns a fresh label outside the function and block label
// namespace
func (a *Assembler) generatedLabel(prefix string) string {
	return generatedPrefix + a.program.Names.Label(prefix)
}

func (a *Assembler) storageSlot(field *ir.Identifier) (uint64, error) {
	slot, ok := a.program.Storage.Slot(field.Key())
	if !ok {
		return 0, errors.UnresolvedStorage(field.Key(), field.Span.Position(), a.program.Storage.Names())
	}
	return slot, nil
}

// call pushes a return label and the arguments, then jumps into the callee.
// The callee returns to the label with its result, if any, on the stack.
func (a *Assembler) call(ctx *blockContext, i *ir.Call) error {
	callee, ok := a.program.Function(i.Callee.Key())
	if !ok {
		return errors.UndefinedFunction(i.Callee.Key(), i.Span().Position(), a.program.FunctionNames())
	}
	if len(i.Args) != len(callee.Parameters) {
		return errors.Unsupported(fmt.Sprintf("call to '%s' with %d arguments, expected %d",
			callee.Name.Key(), len(i.Args), len(callee.Parameters)), i.Span().Position())
	}
	if i.Dest != nil && callee.ReturnType == nil {
		return errors.Unsupported(fmt.Sprintf("result of '%s', which returns nothing", callee.Name.Key()), i.Span().Position())
	}

	ret := a.generatedLabel(FunctionLabel(ctx.fn.Name.Key()) + "::ret")
	a.ops.pushLabel(ret)
	for _, arg := range i.Args {
		if err := a.load(ctx, arg); err != nil {
			return err
		}
	}
	a.ops.jump(FunctionLabel(callee.Name.Key()))

	if err := a.ops.createLabel(ret); err != nil {
		return err
	}
	switch {
	case i.Dest != nil:
		a.store(ctx, i.Dest)
	case callee.ReturnType != nil:
		a.ops.op(vm.POP)
	}
	return nil
}

func (a *Assembler) match(ctx *blockContext, i *ir.Match) error {
	subject := i.Subject.TypeName()
	t, ok := a.program.Symbols.Lookup(subject)
	variant, isVariant := t.(*ir.VariantType)
	if !ok || !isVariant {
		return errors.Unsupported(fmt.Sprintf("match on '%s' of type '%s'", i.Subject.Key(), subject), i.Span().Position())
	}
	// a value word holds only the tag
	if variant.HasPayloads() {
		return errors.Unsupported(fmt.Sprintf("match on '%s': variant '%s' carries payloads", i.Subject.Key(), subject), i.Span().Position())
	}

	for _, c := range i.Cases {
		tag, ok := variant.TagIndex(c.Tag)
		if !ok {
			return errors.UnknownConstructor(c.Tag, i.Span().Position())
		}
		if err := a.load(ctx, i.Subject); err != nil {
			return err
		}
		a.ops.pushUint(uint64(tag))
		a.ops.op(vm.EQ)
		if err := a.conditionalEdge(ctx, c.Target, i.Span()); err != nil {
			return err
		}
	}

	if i.Default == nil {
		a.ops.revert()
		return nil
	}
	return a.edge(ctx, i.Default)
}

func (a *Assembler) ret(ctx *blockContext, i *ir.Return) error {
	if ctx.fn.IsExternal() {
		if i.Value == nil {
			a.ops.op(vm.STOP)
			return nil
		}
		if err := a.load(ctx, i.Value); err != nil {
			return err
		}
		a.ops.pushUint(0)
		a.ops.op(vm.MSTORE)
		a.ops.pushUint(abi.WordSize)
		a.ops.pushUint(0)
		a.ops.op(vm.RETURN)
		return nil
	}

	// The return address sits below the result
	if i.Value != nil {
		if err := a.load(ctx, i.Value); err != nil {
			return err
		}
		a.ops.op(vm.SWAP1)
	}
	a.ops.op(vm.JUMP)
	return nil
}

// edgeTarget checks an edge against its target's parameters
func (a *Assembler) edgeTarget(ctx *blockContext, target *ir.BlockTarget) (*ir.FunctionBlock, error) {
	succ, ok := ctx.fn.Block(target.Label.Key())
	if !ok {
		return nil, errors.UnknownBlock(target.Label.Key(), ctx.fn.Name.Key(), target.Label.Span.Position())
	}
	if len(target.Args) < len(succ.Parameters) {
		missing := succ.Parameters[len(target.Args)]
		return nil, errors.UnbalancedArgument(missing.Key(), ctx.block.Label.Key(), succ.Label.Key(), target.Label.Span.Position())
	}
	if len(target.Args) > len(succ.Parameters) {
		return nil, errors.Unsupported(fmt.Sprintf("%d arguments for block '%s' with %d parameters",
			len(target.Args), succ.Label.Key(), len(succ.Parameters)), target.Label.Span.Position())
	}
	return succ, nil
}

// needsCopy reports whether any argument differs from the parameter it binds
func needsCopy(target *ir.BlockTarget, succ *ir.FunctionBlock) bool {
	for n, arg := range target.Args {
		if arg.Key() != succ.Parameters[n].Key() {
			return true
		}
	}
	return false
}

// edge copies block arguments into the target's parameters and jumps. All
// arguments are read before any parameter is written, so arguments that
// name other parameters of the target see their old values.
func (a *Assembler) edge(ctx *blockContext, target *ir.BlockTarget) error {
	succ, err := a.edgeTarget(ctx, target)
	if err != nil {
		return err
	}

	var moved []int
	for n, arg := range target.Args {
		if arg.Key() == succ.Parameters[n].Key() {
			if err := a.checkBound(ctx, arg); err != nil {
				return err
			}
			continue
		}
		if err := a.load(ctx, arg); err != nil {
			return err
		}
		moved = append(moved, n)
	}
	for k := len(moved) - 1; k >= 0; k-- {
		slot, _ := ctx.frame.slot(succ.Parameters[moved[k]].Key())
		a.ops.pushUint(slot)
		a.ops.op(vm.MSTORE)
	}

	a.ops.jump(BlockLabel(ctx.fn.Name.Key(), succ.Label.Key()))
	return nil
}

// conditionalEdge jumps to target when the top of stack is non-zero. Edges
// that copy arguments go through a trampoline emitted after the block.
func (a *Assembler) conditionalEdge(ctx *blockContext, target *ir.BlockTarget, span ir.SourceSpan) error {
	succ, err := a.edgeTarget(ctx, target)
	if err != nil {
		return err
	}
	if !needsCopy(target, succ) {
		for _, arg := range target.Args {
			if err := a.checkBound(ctx, arg); err != nil {
				return err
			}
		}
		a.ops.jumpIf(BlockLabel(ctx.fn.Name.Key(), succ.Label.Key()))
		return nil
	}

	label := a.generatedLabel(BlockLabel(ctx.fn.Name.Key(), ctx.block.Label.Key()) + "::edge")
	a.ops.jumpIf(label)
	ctx.pending = append(ctx.pending, trampoline{label: label, target: target, span: span})
	return nil
}

func (a *Assembler) checkBound(ctx *blockContext, id *ir.Identifier) error {
	if !ctx.bound[id.Key()] {
		return errors.UnboundOperand(id.Key(), ctx.block.Label.Key(), id.Span.Position())
	}
	return nil
}
