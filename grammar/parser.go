package grammar

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"kansoc/internal/errors"
)

func buildParser() (*participle.Parser[Program], error) {
	return participle.Build[Program](
		participle.Lexer(KirLexer),
		participle.Elide("Whitespace", "Comment"),
		participle.Unquote("String"),
		participle.UseLookahead(3),
	)
}

// ParseFile reads and parses a .kir file, printing a caret diagnostic on
// syntax errors
func ParseFile(path string) (*Program, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	program, err := ParseString(path, string(source))
	if err != nil {
		reportParseError(path, string(source), err)
		return nil, err
	}
	return program, nil
}

// ParseString parses .kir source. Syntax errors are returned as
// SyntaxError compiler errors carrying the offending position.
func ParseString(filename, source string) (*Program, error) {
	parser, err := buildParser()
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}

	program, err := parser.ParseString(filename, source)
	if err != nil {
		pe, ok := err.(participle.Error)
		if !ok {
			return nil, err
		}
		pos := pe.Position()
		return nil, errors.Syntax(pe.Message(), errors.Position{
			Offset: pos.Offset,
			Line:   pos.Line,
			Column: pos.Column,
		})
	}
	return program, nil
}

// reportParseError prints a friendly caret-style parse error message.
func reportParseError(path, src string, err error) {
	ce, ok := errors.As(err)
	if !ok {
		color.Red("Unexpected error: %s", err)
		return
	}

	pos := ce.Position
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("Syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("❌ Syntax error in %s at line %d, column %d:", path, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("→ %s\n", ce.Message)
}
