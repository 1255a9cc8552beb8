package grammar

import (
	"fmt"
	"strconv"
	"strings"
)

func indent(level int) string {
	return strings.Repeat("    ", level)
}

func idents(ids []*PosIdent) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.Value
	}
	return strings.Join(parts, ", ")
}

func params(ps []*Param) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

// String renders the program in canonical .kir layout
func (p *Program) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("contract %s;\n", p.Contract.Value))

	if len(p.Types) > 0 {
		b.WriteString("\n")
		for _, t := range p.Types {
			b.WriteString(t.String() + "\n")
		}
	}
	if len(p.Fields) > 0 {
		b.WriteString("\n")
		for _, f := range p.Fields {
			b.WriteString(f.String() + "\n")
		}
	}
	for _, f := range p.Functions {
		b.WriteString("\n")
		b.WriteString(f.StringWithIndent(0))
	}
	return b.String()
}

func (t *TypeDecl) String() string {
	if t.Tuple != nil {
		return fmt.Sprintf("type %s = (%s);", t.Name.Value, idents(t.Tuple.Fields))
	}
	ctors := make([]string, len(t.Variant))
	for i, c := range t.Variant {
		ctors[i] = c.String()
	}
	return fmt.Sprintf("type %s = %s;", t.Name.Value, strings.Join(ctors, " | "))
}

func (c *Constructor) String() string {
	if len(c.Payload) == 0 {
		return c.Tag.Value
	}
	return fmt.Sprintf("%s(%s)", c.Tag.Value, idents(c.Payload))
}

// TypeText is the field's type as written
func (f *FieldDecl) TypeText() string {
	if f.Tuple != nil {
		return fmt.Sprintf("(%s)", idents(f.Tuple.Fields))
	}
	return f.Type.Value
}

func (f *FieldDecl) String() string {
	return fmt.Sprintf("field %s: %s;", f.Name.Value, f.TypeText())
}

func (p *Param) String() string {
	if p.Type == nil {
		return p.Name.Value
	}
	return fmt.Sprintf("%s: %s", p.Name.Value, p.Type.Value)
}

func (f *FunctionDef) StringWithIndent(level int) string {
	var b strings.Builder
	header := fmt.Sprintf("%s %s(%s)", f.Kind, f.Name.Value, params(f.Params))
	if f.Return != nil {
		header += " -> " + f.Return.Value
	}
	b.WriteString(indent(level) + header + " {\n")
	for _, blk := range f.Blocks {
		b.WriteString(blk.StringWithIndent(level))
	}
	b.WriteString(indent(level) + "}\n")
	return b.String()
}

func (blk *BlockDef) StringWithIndent(level int) string {
	var b strings.Builder
	if len(blk.Params) > 0 {
		b.WriteString(fmt.Sprintf("%s%s(%s):\n", indent(level), blk.Label.Value, params(blk.Params)))
	} else {
		b.WriteString(fmt.Sprintf("%s%s:\n", indent(level), blk.Label.Value))
	}
	for _, inst := range blk.Instructions {
		b.WriteString(indent(level+1) + inst.String() + ";\n")
	}
	return b.String()
}

func (t *Target) String() string {
	if len(t.Args) == 0 {
		return t.Label.Value
	}
	return fmt.Sprintf("%s(%s)", t.Label.Value, idents(t.Args))
}

func (c *CallExpr) String() string {
	return fmt.Sprintf("call %s(%s)", c.Callee.Value, idents(c.Args))
}

func (i *Instruction) String() string {
	switch {
	case i.Store != nil:
		return fmt.Sprintf("store %s, %s", i.Store.Field.Value, i.Store.Value.Value)
	case i.Call != nil:
		return i.Call.String()
	case i.Jump != nil:
		return "jump " + i.Jump.Target.String()
	case i.Branch != nil:
		return fmt.Sprintf("branch %s, %s, %s", i.Branch.Cond.Value, i.Branch.Then, i.Branch.Else)
	case i.Match != nil:
		arms := make([]string, len(i.Match.Arms))
		for n, arm := range i.Match.Arms {
			arms[n] = fmt.Sprintf("%s => %s", arm.Tag.Value, arm.Target)
		}
		return fmt.Sprintf("match %s { %s }", i.Match.Subject.Value, strings.Join(arms, ", "))
	case i.Return != nil:
		if i.Return.Value == nil {
			return "return"
		}
		return "return " + i.Return.Value.Value
	case i.Throw:
		return "throw"
	case i.Assign != nil:
		return i.Assign.String()
	}
	return ""
}

func (a *AssignInst) String() string {
	var rhs string
	switch {
	case a.Const != nil:
		switch {
		case a.Const.String != nil:
			rhs = "const " + strconv.Quote(*a.Const.String)
		case a.Const.Type != nil:
			rhs = fmt.Sprintf("const %s %s", a.Const.Type.Value, a.Const.Integer)
		default:
			rhs = "const " + a.Const.Integer
		}
	case a.Construct != nil:
		rhs = "construct " + a.Construct.Value
	case a.Load != nil:
		rhs = "load " + a.Load.Value
	case a.Call != nil:
		rhs = a.Call.String()
	case a.Binary != nil:
		rhs = fmt.Sprintf("%s %s, %s", a.Binary.Op, a.Binary.Left.Value, a.Binary.Right.Value)
	}
	return fmt.Sprintf("%s = %s", a.Dest.Value, rhs)
}
