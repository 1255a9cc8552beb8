package ir

import (
	"fmt"
	"strings"
)

// Printer renders an IR in the textual .kir form the grammar package reads
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter creates a new IR printer
func NewPrinter() *Printer {
	return &Printer{indent: 0}
}

// Print returns the textual form of an IR program
func Print(program *IntermediateRepresentation) string {
	p := NewPrinter()
	p.printProgram(program)
	return p.output.String()
}

// PrintFunction returns the textual form of a single function
func PrintFunction(fn *ConcreteFunction) string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.output.String()
}

// Helper methods

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("    ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printProgram(program *IntermediateRepresentation) {
	p.writeLine("contract %s;", program.Contract)

	if len(program.Types) > 0 {
		p.writeLine("")
		for _, t := range program.Types {
			p.writeLine("type %s = %s;", t.TypeName().Key(), t.String())
		}
	}

	if len(program.Fields) > 0 {
		p.writeLine("")
		for _, f := range program.Fields {
			if slot, ok := program.Storage.Slot(f.Name.Key()); ok {
				p.writeLine("field %s: %s; // slot %d", f.Name.Key(), f.Name.TypeName(), slot)
				continue
			}
			p.writeLine("field %s: %s;", f.Name.Key(), f.Name.TypeName())
		}
	}

	for _, fn := range program.Functions {
		p.writeLine("")
		p.printFunction(fn)
	}
}

func (p *Printer) printFunction(fn *ConcreteFunction) {
	header := fmt.Sprintf("%s %s(%s)", fn.Kind, fn.Name.Key(), typedList(fn.Parameters))
	if fn.ReturnType != nil {
		header += " -> " + fn.ReturnType.Key()
	}
	p.writeLine("%s {", header)

	for _, b := range fn.Blocks {
		p.printBlock(b)
	}
	p.writeLine("}")
}

func (p *Printer) printBlock(b *FunctionBlock) {
	if len(b.Parameters) > 0 {
		p.writeLine("%s(%s):", b.Label.Key(), typedList(b.Parameters))
	} else {
		p.writeLine("%s:", b.Label.Key())
	}

	p.indent++
	for _, inst := range b.Instructions {
		p.writeLine("%s;", inst.String())
	}
	p.indent--
}

// typedList renders "name: Type" pairs, leaving the type off untyped names
func typedList(ids []*Identifier) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		if id.Type == nil {
			parts[i] = id.Key()
			continue
		}
		parts[i] = fmt.Sprintf("%s: %s", id.Key(), id.TypeName())
	}
	return strings.Join(parts, ", ")
}
