package muasm

// Program is a sequence of lines, each optionally label-prefixed, executed
// in textual order. Addresses are the sequential zero-based line index —
// the format has no explicit numeric addresses (muasm.rs's ir::Program,
// adapted: that crate assigns addresses from its own external lexer state
// this pack never captured).
type Program struct {
	Lines []*Line `@@*`
}

type Line struct {
	Label       *string      `( @Ident ":" )?`
	Instruction *Instruction `@@`
}

// Instruction is every muasm opcode this port implements, grounded on
// ir::Operation's variants (skip, barrier, flush, assignment,
// conditional_assignment, load, store, jump, branch_if_zero).
type Instruction struct {
	Skip    *SkipInstruction         `  @@`
	Barrier *BarrierInstruction      `| @@`
	Flush   *FlushInstruction        `| @@`
	Jump    *JumpInstruction         `| @@`
	Beqz    *BranchIfZeroInstruction `| @@`
	Store   *StoreInstruction        `| @@`
	Assign  *AssignInstruction       `| @@`
}

type SkipInstruction struct {
	Keyword string `@"skip"`
}

type BarrierInstruction struct {
	Keyword string `@"barrier"`
}

// FlushInstruction resets the cache to empty — the ir::Operation::Flush
// variant.
type FlushInstruction struct {
	Keyword string `@"flush"`
}

type JumpInstruction struct {
	Target *Target `"jmp" @@`
}

type BranchIfZeroInstruction struct {
	Register string  `"beqz" @Ident ","`
	Target   *Target `@@`
}

// Target is a jump/branch destination: a label to resolve against the
// program's labels, or a raw line-index location.
type Target struct {
	Label    *string `  @Ident`
	Location *string `| @Integer`
}

type StoreInstruction struct {
	Address  *Expression `"store" "[" @@ "]" "="`
	Register string      `@Ident`
}

// AssignInstruction covers both ir::Operation::Assignment and
// ConditionalAssignment, plus Load: `reg = load[addr]`, `reg = expr`,
// `reg = expr if cond`.
type AssignInstruction struct {
	Register  string        `@Ident "="`
	Source    *AssignSource `@@`
	Condition *Expression   `[ "if" @@ ]`
}

type AssignSource struct {
	Load  *LoadSource `  @@`
	Value *Expression `| @@`
}

type LoadSource struct {
	Address *Expression `"load" "[" @@ "]"`
}

// Expression is a ternary: a base term, optionally followed by a "? then :
// else" branch. Nested ternaries recurse through Then/Else, which are full
// Expressions; Cond is restricted to Term to avoid left recursion.
type Expression struct {
	Cond *Term        `@@`
	Rest *TernaryRest `@@?`
}

type TernaryRest struct {
	Then *Expression `"?" @@`
	Else *Expression `":" @@`
}

// Term is a register, an integer literal, a parenthesized expression, or a
// call-style unary/binary application. Every binary/unary operator is
// spelled as a keyword applied like a function call (add(a, b), neg(a))
// instead of a symbolic operator with precedence — this port's deliberate
// simplification of the uncaptured external grammar, documented in
// DESIGN.md.
type Term struct {
	Binary   *BinaryApplication `  @@`
	Unary    *UnaryApplication  `| @@`
	Number   *string            `| @Integer`
	Register *string            `| @Ident`
	Paren    *Expression        `| "(" @@ ")"`
}

// UnaryApplication covers ir::UnaryOperator (Neg, Not, SExt, ZExt).
type UnaryApplication struct {
	Op  string      `@("neg" | "not" | "sext" | "zext") "("`
	Arg *Expression `@@ ")"`
}

// BinaryApplication covers every ir::BinaryOperator variant.
type BinaryApplication struct {
	Op    string      `@("add" | "sub" | "mul" | "udiv" | "urem" | "srem" | "smod" | "and" | "or" | "xor" | "shl" | "ashr" | "lshr" | "ule" | "ult" | "uge" | "ugt" | "sle" | "slt" | "sge" | "sgt" | "eq" | "neq") "("`
	Left  *Expression `@@ ","`
	Right *Expression `@@ ")"`
}
