// Package muasm loads the textual .muasm assembly format: one instruction
// per line, optionally label-prefixed, operating on named word-width
// registers plus a flat byte-addressed memory. The concrete syntax is this
// port's own invention — the original's muasm_parser crate is an external
// dependency whose grammar never appears in the retrieval pack — built with
// participle/v2 in the style of grammar/{lexer,grammar,parser}.go.
package muasm

import "github.com/alecthomas/participle/v2/lexer"

// Lexer tokenizes .muasm source. Binary/unary operators are spelled as
// call-style keywords (add(a, b), neg(a)) rather than symbolic operators
// with precedence, sidestepping the precedence-climbing grammar the
// original's external parser crate presumably has but this pack never
// captured.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `#[^\n]*`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Integer", `0x[0-9a-fA-F]+|[0-9]+`, nil},
		{"Punct", `[:,\[\]=?()]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
