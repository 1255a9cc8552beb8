package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

var KirLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments
		{"Comment", `//[^\n]*`, nil},

		// String literals, at most one word long once unquoted
		{"String", `"(\\.|[^"\\])*"`, nil},

		// Integer literals
		{"Integer", `0x[0-9a-fA-F]+|[0-9]+`, nil},

		// Identifiers. A leading % marks a virtual register.
		{"Ident", `%?[a-zA-Z_][a-zA-Z0-9_]*`, nil},

		// Arrows must come before "="
		{"Operator", `->|=>|=`, nil},

		// Punctuation
		{"Punctuation", `[{}():;,|]`, nil},

		// Whitespace
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
