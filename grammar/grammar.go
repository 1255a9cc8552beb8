package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Program is one .kir file: a contract header followed by declarations
type Program struct {
	Pos       lexer.Position
	EndPos    lexer.Position
	Contract  PosIdent       `"contract" @@ ";"`
	Types     []*TypeDecl    `( @@`
	Fields    []*FieldDecl   `| @@`
	Functions []*FunctionDef `| @@ )*`
}

type PosIdent struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Value  string `@Ident`
}

type TypeDecl struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Name    PosIdent       `"type" @@ "="`
	Tuple   *TupleBody     `( @@`
	Variant []*Constructor `| @@ { "|" @@ } ) ";"`
}

type TupleBody struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Fields []*PosIdent `"(" @@ { "," @@ } ")"`
}

type Constructor struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Tag     PosIdent    `@@`
	Payload []*PosIdent `[ "(" @@ { "," @@ } ")" ]`
}

// FieldDecl names its type or spells out an inline tuple, which the builder
// declares as an anonymous type
type FieldDecl struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Name   PosIdent   `"field" @@ ":"`
	Type   *PosIdent  `( @@`
	Tuple  *TupleBody ` | @@ ) ";"`
}

type FunctionDef struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Kind   string      `@("transition" | "procedure" | "pure")`
	Name   PosIdent    `@@ "("`
	Params []*Param    `[ @@ { "," @@ } ] ")"`
	Return *PosIdent   `[ "->" @@ ]`
	Blocks []*BlockDef `"{" @@+ "}"`
}

// Param is a function or block parameter. The type may be omitted for
// block parameters; type annotation infers it.
type Param struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Name   PosIdent  `@@`
	Type   *PosIdent `[ ":" @@ ]`
}

type BlockDef struct {
	Pos          lexer.Position
	EndPos       lexer.Position
	Label        PosIdent       `@@`
	Params       []*Param       `[ "(" [ @@ { "," @@ } ] ")" ]`
	Instructions []*Instruction `":" @@*`
}

type Instruction struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Store  *StoreInst  `(  @@`
	Call   *CallExpr   ` | @@`
	Jump   *JumpInst   ` | @@`
	Branch *BranchInst ` | @@`
	Match  *MatchInst  ` | @@`
	Return *ReturnInst ` | @@`
	Throw  bool        ` | @"throw"`
	Assign *AssignInst ` | @@ ) ";"`
}

type AssignInst struct {
	Pos       lexer.Position
	EndPos    lexer.Position
	Dest      PosIdent    `@@ "="`
	Const     *ConstExpr  `(  @@`
	Construct *PosIdent   ` | "construct" @@`
	Load      *PosIdent   ` | "load" @@`
	Call      *CallExpr   ` | @@`
	Binary    *BinaryExpr ` | @@ )`
}

type ConstExpr struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	String  *string   `"const" ( @String`
	Type    *PosIdent `| [ @@ ]`
	Integer string    `@Integer )`
}

type BinaryExpr struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Op     string   `@("add" | "sub" | "mul" | "div" | "mod" | "eq" | "lt" | "gt" | "le" | "ge" | "and" | "or")`
	Left   PosIdent `@@ ","`
	Right  PosIdent `@@`
}

type CallExpr struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Callee PosIdent    `"call" @@ "("`
	Args   []*PosIdent `[ @@ { "," @@ } ] ")"`
}

type StoreInst struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Field  PosIdent `"store" @@ ","`
	Value  PosIdent `@@`
}

type Target struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Label  PosIdent    `@@`
	Args   []*PosIdent `[ "(" [ @@ { "," @@ } ] ")" ]`
}

type JumpInst struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Target *Target `"jump" @@`
}

type BranchInst struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Cond   PosIdent `"branch" @@ ","`
	Then   *Target  `@@ ","`
	Else   *Target  `@@`
}

// MatchInst arms are tried in order; the tag "_" marks the default arm
type MatchInst struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Subject PosIdent    `"match" @@ "{"`
	Arms    []*MatchArm `@@ { "," @@ } [ "," ] "}"`
}

type MatchArm struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Tag    PosIdent `@@ "=>"`
	Target *Target  `@@`
}

type ReturnInst struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Value  *PosIdent `"return" [ @@ ]`
}
