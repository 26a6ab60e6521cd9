package expr

import (
	"fmt"
	"strings"

	perr "specbmc/internal/errors"
)

// Op is the operator tag of the single Expr variant (DESIGN NOTES §9).
type Op int

const (
	OpVariable Op = iota
	OpConstant
	OpIte
	OpEqual
	OpNondet
	OpCast

	// Boolean family
	OpNot
	OpAnd
	OpOr
	OpXor
	OpImplies

	// Integer family
	OpIntAdd
	OpIntSub
	OpIntMul
	OpIntDiv
	OpIntMod
	OpIntAbs
	OpIntNeg
	OpIntLt
	OpIntLe
	OpIntGt
	OpIntGe

	// BitVector family
	OpBVAdd
	OpBVSub
	OpBVMul
	OpBVUDiv
	OpBVSDiv
	OpBVURem
	OpBVSRem
	OpBVAnd
	OpBVOr
	OpBVXor
	OpBVNot
	OpBVNeg
	OpBVShl
	OpBVLShr
	OpBVAShr
	OpBVConcat
	OpBVExtract
	OpBVZExt
	OpBVSExt
	OpBVULt
	OpBVULe
	OpBVUGt
	OpBVUGe
	OpBVSLt
	OpBVSLe
	OpBVSGt
	OpBVSGe

	// Array family
	OpArraySelect
	OpArrayStore

	// List family
	OpListNil
	OpListInsert
	OpListHead
	OpListTail

	// Tuple family
	OpTupleMake
	OpTupleGet

	// Memory family — first operand is always the Memory-sorted state.
	OpMemLoad
	OpMemStore

	// Cache family — first operand is always the Cache-sorted state.
	OpCacheFetch
	OpCacheEvict

	// BranchTargetBuffer family — first operand is the BTB state.
	OpBTBTrack
	OpBTBLookup

	// PatternHistoryTable family — first operand is the PHT state.
	OpPHTTaken
	OpPHTNotTaken
	OpPHTLookup

	// Predictor family (uninterpreted oracle) — first operand is the
	// Predictor state, second is a program-counter BitVector.
	OpPredictorSpeculate
	OpPredictorTaken
	OpPredictorWindow
)

var opNames = map[Op]string{
	OpVariable: "var", OpConstant: "const", OpIte: "ite", OpEqual: "=",
	OpNondet: "nondet", OpCast: "cast",
	OpNot: "not", OpAnd: "and", OpOr: "or", OpXor: "xor", OpImplies: "=>",
	OpIntAdd: "+", OpIntSub: "-", OpIntMul: "*", OpIntDiv: "div", OpIntMod: "mod",
	OpIntAbs: "abs", OpIntNeg: "neg", OpIntLt: "<", OpIntLe: "<=", OpIntGt: ">", OpIntGe: ">=",
	OpBVAdd: "bvadd", OpBVSub: "bvsub", OpBVMul: "bvmul", OpBVUDiv: "bvudiv", OpBVSDiv: "bvsdiv",
	OpBVURem: "bvurem", OpBVSRem: "bvsrem", OpBVAnd: "bvand", OpBVOr: "bvor", OpBVXor: "bvxor",
	OpBVNot: "bvnot", OpBVNeg: "bvneg", OpBVShl: "bvshl", OpBVLShr: "bvlshr", OpBVAShr: "bvashr",
	OpBVConcat: "concat", OpBVExtract: "extract", OpBVZExt: "zero_extend", OpBVSExt: "sign_extend",
	OpBVULt: "bvult", OpBVULe: "bvule", OpBVUGt: "bvugt", OpBVUGe: "bvuge",
	OpBVSLt: "bvslt", OpBVSLe: "bvsle", OpBVSGt: "bvsgt", OpBVSGe: "bvsge",
	OpArraySelect: "select", OpArrayStore: "store",
	OpListNil: "nil", OpListInsert: "insert", OpListHead: "head", OpListTail: "tail",
	OpTupleMake: "tuple", OpTupleGet: "get",
	OpMemLoad: "mem-load", OpMemStore: "mem-store",
	OpCacheFetch: "cache-fetch", OpCacheEvict: "cache-evict",
	OpBTBTrack: "btb-track", OpBTBLookup: "btb-lookup",
	OpPHTTaken: "pht-taken", OpPHTNotTaken: "pht-not-taken", OpPHTLookup: "pht-lookup",
	OpPredictorSpeculate: "predictor-speculate", OpPredictorTaken: "predictor-taken",
	OpPredictorWindow: "speculation-window",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "?op"
}

// Expr is the single tagged-variant expression node (§4.A). Constructors
// below are the only way to build one; they validate operand sorts and
// compute ResultSort, matching the original's total-constructor contract.
type Expr struct {
	Op         Op
	Operands   []*Expr
	ResultSort Sort

	Var    *Variable // OpVariable
	Const  Constant  // OpConstant
	CastTo Sort      // OpCast
	Hi, Lo int       // OpBVExtract bounds, OpTupleGet field index (Hi only)
}

func (e *Expr) Sort() Sort { return e.ResultSort }

func leaf(op Op, sort Sort) *Expr { return &Expr{Op: op, ResultSort: sort} }

// VariableExpr wraps a Variable reference as a leaf expression.
func VariableExpr(v *Variable) *Expr {
	return &Expr{Op: OpVariable, ResultSort: v.VarSort, Var: v}
}

// ConstantExpr wraps a Constant as a leaf expression.
func ConstantExpr(c Constant) *Expr {
	return &Expr{Op: OpConstant, ResultSort: c.Sort(), Const: c}
}

// Nondet denotes havoc (§4.A): emitted by the solver driver as
// `declare-const` rather than `define-const`.
func Nondet(sort Sort) *Expr { return leaf(OpNondet, sort) }

// Ite requires a Boolean condition and branches of identical sort; the
// result sort is the branch sort (§4.A).
func Ite(cond, then, els *Expr) (*Expr, error) {
	if !cond.Sort().IsBoolean() {
		return nil, perr.Sortf("ite: condition must be Boolean, got %s", cond.Sort())
	}
	if !then.Sort().Equal(els.Sort()) {
		return nil, perr.Sortf("ite: branches must share a sort, got %s and %s", then.Sort(), els.Sort())
	}
	return &Expr{Op: OpIte, Operands: []*Expr{cond, then, els}, ResultSort: then.Sort()}, nil
}

// Equal requires operands of identical sort; result is Boolean (§4.A).
func Equal(lhs, rhs *Expr) (*Expr, error) {
	if !lhs.Sort().Equal(rhs.Sort()) {
		return nil, perr.Sortf("equal: operands must share a sort, got %s and %s", lhs.Sort(), rhs.Sort())
	}
	return &Expr{Op: OpEqual, Operands: []*Expr{lhs, rhs}, ResultSort: BooleanSort()}, nil
}

// Cast converts an expression to another sort. Only BitVector<->BitVector
// (zero-extend/truncate consistent with the target width) and
// BitVector<->Integer casts are modeled; anything else is a sort error.
func Cast(to Sort, e *Expr) (*Expr, error) {
	from := e.Sort()
	switch {
	case from.IsBitVector() && to.IsBitVector():
	case from.IsBitVector() && to.IsInteger():
	case from.IsInteger() && to.IsBitVector():
	default:
		return nil, perr.Sortf("cast: unsupported cast from %s to %s", from, to)
	}
	return &Expr{Op: OpCast, Operands: []*Expr{e}, ResultSort: to, CastTo: to}, nil
}

func expectBoolean(e *Expr, who string) error {
	if !e.Sort().IsBoolean() {
		return perr.Sortf("%s: expected Boolean operand, got %s", who, e.Sort())
	}
	return nil
}

func expectSort(e *Expr, s Sort, who string) error {
	if !e.Sort().Equal(s) {
		return perr.Sortf("%s: expected %s operand, got %s", who, s, e.Sort())
	}
	return nil
}

// --- Boolean family ---

func Not(e *Expr) (*Expr, error) {
	if err := expectBoolean(e, "not"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpNot, Operands: []*Expr{e}, ResultSort: BooleanSort()}, nil
}

func boolBinary(op Op, lhs, rhs *Expr) (*Expr, error) {
	if err := expectBoolean(lhs, op.String()); err != nil {
		return nil, err
	}
	if err := expectBoolean(rhs, op.String()); err != nil {
		return nil, err
	}
	return &Expr{Op: op, Operands: []*Expr{lhs, rhs}, ResultSort: BooleanSort()}, nil
}

func And(lhs, rhs *Expr) (*Expr, error)     { return boolBinary(OpAnd, lhs, rhs) }
func Or(lhs, rhs *Expr) (*Expr, error)      { return boolBinary(OpOr, lhs, rhs) }
func Xor(lhs, rhs *Expr) (*Expr, error)     { return boolBinary(OpXor, lhs, rhs) }
func Implies(lhs, rhs *Expr) (*Expr, error) { return boolBinary(OpImplies, lhs, rhs) }

// Conjunction/Disjunction build n-ary and/or trees, folding to the identity
// on an empty input (mirrors original_source/src/expr/boolean.rs).
func Conjunction(es []*Expr) (*Expr, error) { return foldBool(OpAnd, es, true) }
func Disjunction(es []*Expr) (*Expr, error) { return foldBool(OpOr, es, false) }

func foldBool(op Op, es []*Expr, identity bool) (*Expr, error) {
	if len(es) == 0 {
		return ConstantExpr(BoolConstant(identity)), nil
	}
	acc := es[0]
	if err := expectBoolean(acc, op.String()); err != nil {
		return nil, err
	}
	for _, e := range es[1:] {
		var err error
		if op == OpAnd {
			acc, err = And(acc, e)
		} else {
			acc, err = Or(acc, e)
		}
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// --- Integer family ---

func intUnary(op Op, e *Expr) (*Expr, error) {
	if !e.Sort().IsInteger() {
		return nil, perr.Sortf("%s: expected Integer operand, got %s", op, e.Sort())
	}
	return &Expr{Op: op, Operands: []*Expr{e}, ResultSort: IntegerSort()}, nil
}

func intBinary(op Op, resultIsBoolean bool, lhs, rhs *Expr) (*Expr, error) {
	if !lhs.Sort().IsInteger() {
		return nil, perr.Sortf("%s: expected Integer operand, got %s", op, lhs.Sort())
	}
	if !rhs.Sort().IsInteger() {
		return nil, perr.Sortf("%s: expected Integer operand, got %s", op, rhs.Sort())
	}
	result := IntegerSort()
	if resultIsBoolean {
		result = BooleanSort()
	}
	return &Expr{Op: op, Operands: []*Expr{lhs, rhs}, ResultSort: result}, nil
}

func IntAbs(e *Expr) (*Expr, error) { return intUnary(OpIntAbs, e) }
func IntNeg(e *Expr) (*Expr, error) { return intUnary(OpIntNeg, e) }
func IntAdd(l, r *Expr) (*Expr, error) { return intBinary(OpIntAdd, false, l, r) }
func IntSub(l, r *Expr) (*Expr, error) { return intBinary(OpIntSub, false, l, r) }
func IntMul(l, r *Expr) (*Expr, error) { return intBinary(OpIntMul, false, l, r) }
func IntDiv(l, r *Expr) (*Expr, error) { return intBinary(OpIntDiv, false, l, r) }
func IntMod(l, r *Expr) (*Expr, error) { return intBinary(OpIntMod, false, l, r) }
func IntLt(l, r *Expr) (*Expr, error)  { return intBinary(OpIntLt, true, l, r) }
func IntLe(l, r *Expr) (*Expr, error)  { return intBinary(OpIntLe, true, l, r) }
func IntGt(l, r *Expr) (*Expr, error)  { return intBinary(OpIntGt, true, l, r) }
func IntGe(l, r *Expr) (*Expr, error)  { return intBinary(OpIntGe, true, l, r) }

// --- BitVector family ---

func bvUnary(op Op, e *Expr) (*Expr, error) {
	if !e.Sort().IsBitVector() {
		return nil, perr.Sortf("%s: expected BitVector operand, got %s", op, e.Sort())
	}
	return &Expr{Op: op, Operands: []*Expr{e}, ResultSort: e.Sort()}, nil
}

func bvBinarySameWidth(op Op, resultIsBoolean bool, lhs, rhs *Expr) (*Expr, error) {
	if !lhs.Sort().IsBitVector() {
		return nil, perr.Sortf("%s: expected BitVector operand, got %s", op, lhs.Sort())
	}
	if !rhs.Sort().Equal(lhs.Sort()) {
		return nil, perr.Sortf("%s: operand width mismatch, %s vs %s", op, lhs.Sort(), rhs.Sort())
	}
	result := lhs.Sort()
	if resultIsBoolean {
		result = BooleanSort()
	}
	return &Expr{Op: op, Operands: []*Expr{lhs, rhs}, ResultSort: result}, nil
}

func BVAdd(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVAdd, false, l, r) }
func BVSub(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVSub, false, l, r) }
func BVMul(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVMul, false, l, r) }
func BVUDiv(l, r *Expr) (*Expr, error) { return bvBinarySameWidth(OpBVUDiv, false, l, r) }
func BVSDiv(l, r *Expr) (*Expr, error) { return bvBinarySameWidth(OpBVSDiv, false, l, r) }
func BVURem(l, r *Expr) (*Expr, error) { return bvBinarySameWidth(OpBVURem, false, l, r) }
func BVSRem(l, r *Expr) (*Expr, error) { return bvBinarySameWidth(OpBVSRem, false, l, r) }
func BVAnd(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVAnd, false, l, r) }
func BVOr(l, r *Expr) (*Expr, error)   { return bvBinarySameWidth(OpBVOr, false, l, r) }
func BVXor(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVXor, false, l, r) }
func BVShl(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVShl, false, l, r) }
func BVLShr(l, r *Expr) (*Expr, error) { return bvBinarySameWidth(OpBVLShr, false, l, r) }
func BVAShr(l, r *Expr) (*Expr, error) { return bvBinarySameWidth(OpBVAShr, false, l, r) }
func BVULt(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVULt, true, l, r) }
func BVULe(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVULe, true, l, r) }
func BVUGt(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVUGt, true, l, r) }
func BVUGe(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVUGe, true, l, r) }
func BVSLt(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVSLt, true, l, r) }
func BVSLe(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVSLe, true, l, r) }
func BVSGt(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVSGt, true, l, r) }
func BVSGe(l, r *Expr) (*Expr, error)  { return bvBinarySameWidth(OpBVSGe, true, l, r) }

func BVNot(e *Expr) (*Expr, error) { return bvUnary(OpBVNot, e) }
func BVNeg(e *Expr) (*Expr, error) { return bvUnary(OpBVNeg, e) }

func BVConcat(hi, lo *Expr) (*Expr, error) {
	if !hi.Sort().IsBitVector() || !lo.Sort().IsBitVector() {
		return nil, perr.Sortf("concat: expected BitVector operands, got %s and %s", hi.Sort(), lo.Sort())
	}
	width := hi.Sort().Width() + lo.Sort().Width()
	return &Expr{Op: OpBVConcat, Operands: []*Expr{hi, lo}, ResultSort: BitVectorSort(width)}, nil
}

func BVExtract(hiBit, loBit int, e *Expr) (*Expr, error) {
	if !e.Sort().IsBitVector() {
		return nil, perr.Sortf("extract: expected BitVector operand, got %s", e.Sort())
	}
	if hiBit < loBit || hiBit >= e.Sort().Width() || loBit < 0 {
		return nil, perr.Sortf("extract: bounds [%d:%d] invalid for width %d", hiBit, loBit, e.Sort().Width())
	}
	return &Expr{Op: OpBVExtract, Operands: []*Expr{e}, ResultSort: BitVectorSort(hiBit - loBit + 1), Hi: hiBit, Lo: loBit}, nil
}

func BVZExt(bits int, e *Expr) (*Expr, error) {
	if !e.Sort().IsBitVector() {
		return nil, perr.Sortf("zero_extend: expected BitVector operand, got %s", e.Sort())
	}
	if bits < e.Sort().Width() {
		return nil, perr.Sortf("zero_extend: target width %d smaller than source %d", bits, e.Sort().Width())
	}
	return &Expr{Op: OpBVZExt, Operands: []*Expr{e}, ResultSort: BitVectorSort(bits)}, nil
}

func BVSExt(bits int, e *Expr) (*Expr, error) {
	if !e.Sort().IsBitVector() {
		return nil, perr.Sortf("sign_extend: expected BitVector operand, got %s", e.Sort())
	}
	if bits < e.Sort().Width() {
		return nil, perr.Sortf("sign_extend: target width %d smaller than source %d", bits, e.Sort().Width())
	}
	return &Expr{Op: OpBVSExt, Operands: []*Expr{e}, ResultSort: BitVectorSort(bits)}, nil
}

// --- Array family ---

func ArraySelect(arr, index *Expr) (*Expr, error) {
	if !arr.Sort().IsArray() {
		return nil, perr.Sortf("select: expected Array operand, got %s", arr.Sort())
	}
	key, value := arr.Sort().KeyValue()
	if err := expectSort(index, key, "select"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpArraySelect, Operands: []*Expr{arr, index}, ResultSort: value}, nil
}

func ArrayStore(arr, index, value *Expr) (*Expr, error) {
	if !arr.Sort().IsArray() {
		return nil, perr.Sortf("store: expected Array operand, got %s", arr.Sort())
	}
	key, val := arr.Sort().KeyValue()
	if err := expectSort(index, key, "store"); err != nil {
		return nil, err
	}
	if err := expectSort(value, val, "store"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpArrayStore, Operands: []*Expr{arr, index, value}, ResultSort: arr.Sort()}, nil
}

// --- List family ---

func ListNil(sort Sort) *Expr { return leaf(OpListNil, sort) }

func ListInsert(head, tail *Expr) (*Expr, error) {
	if !tail.Sort().IsList() {
		return nil, perr.Sortf("insert: expected List operand, got %s", tail.Sort())
	}
	if err := expectSort(head, tail.Sort().Elem(), "insert"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpListInsert, Operands: []*Expr{head, tail}, ResultSort: tail.Sort()}, nil
}

func ListHead(list *Expr) (*Expr, error) {
	if !list.Sort().IsList() {
		return nil, perr.Sortf("head: expected List operand, got %s", list.Sort())
	}
	return &Expr{Op: OpListHead, Operands: []*Expr{list}, ResultSort: list.Sort().Elem()}, nil
}

func ListTail(list *Expr) (*Expr, error) {
	if !list.Sort().IsList() {
		return nil, perr.Sortf("tail: expected List operand, got %s", list.Sort())
	}
	return &Expr{Op: OpListTail, Operands: []*Expr{list}, ResultSort: list.Sort()}, nil
}

// --- Tuple family ---

func TupleMake(values []*Expr) *Expr {
	sorts := make([]Sort, len(values))
	for i, v := range values {
		sorts[i] = v.Sort()
	}
	return &Expr{Op: OpTupleMake, Operands: values, ResultSort: TupleSort(sorts...)}
}

func TupleGet(tuple *Expr, index int) (*Expr, error) {
	if !tuple.Sort().IsTuple() {
		return nil, perr.Sortf("get-%d: expected Tuple operand, got %s", index, tuple.Sort())
	}
	fields := tuple.Sort().Fields()
	if index < 0 || index >= len(fields) {
		return nil, perr.Sortf("get-%d: field index out of range for %s", index, tuple.Sort())
	}
	return &Expr{Op: OpTupleGet, Operands: []*Expr{tuple}, ResultSort: fields[index], Hi: index}, nil
}

// --- Memory family: state is an Array(BitVector(64)->BitVector(8)). ---

func MemLoad(width int, mem, addr *Expr) (*Expr, error) {
	if !mem.Sort().IsMemory() {
		return nil, perr.Sortf("mem-load: expected Memory operand, got %s", mem.Sort())
	}
	if err := expectSort(addr, BitVectorSort(WordWidth), "mem-load address"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpMemLoad, Operands: []*Expr{mem, addr}, ResultSort: BitVectorSort(width), Hi: width}, nil
}

func MemStore(width int, mem, addr, value *Expr) (*Expr, error) {
	if !mem.Sort().IsMemory() {
		return nil, perr.Sortf("mem-store: expected Memory operand, got %s", mem.Sort())
	}
	if err := expectSort(addr, BitVectorSort(WordWidth), "mem-store address"); err != nil {
		return nil, err
	}
	if err := expectSort(value, BitVectorSort(width), "mem-store value"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpMemStore, Operands: []*Expr{mem, addr, value}, ResultSort: MemorySort(), Hi: width}, nil
}

// --- Cache family ---

func CacheFetch(width int, cache, addr *Expr) (*Expr, error) {
	if !cache.Sort().IsCache() {
		return nil, perr.Sortf("cache-fetch: expected Cache operand, got %s", cache.Sort())
	}
	if err := expectSort(addr, BitVectorSort(WordWidth), "cache-fetch address"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpCacheFetch, Operands: []*Expr{cache, addr}, ResultSort: CacheSort(), Hi: width}, nil
}

func CacheEvict(width int, cache, addr *Expr) (*Expr, error) {
	if !cache.Sort().IsCache() {
		return nil, perr.Sortf("cache-evict: expected Cache operand, got %s", cache.Sort())
	}
	if err := expectSort(addr, BitVectorSort(WordWidth), "cache-evict address"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpCacheEvict, Operands: []*Expr{cache, addr}, ResultSort: CacheSort(), Hi: width}, nil
}

// --- BranchTargetBuffer family ---

func BTBTrack(btb, loc, target *Expr) (*Expr, error) {
	if !btb.Sort().IsBranchTargetBuffer() {
		return nil, perr.Sortf("btb-track: expected BTB operand, got %s", btb.Sort())
	}
	word := BitVectorSort(WordWidth)
	if err := expectSort(loc, word, "btb-track location"); err != nil {
		return nil, err
	}
	if err := expectSort(target, word, "btb-track target"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpBTBTrack, Operands: []*Expr{btb, loc, target}, ResultSort: BranchTargetBufferSort()}, nil
}

func BTBLookup(btb, loc *Expr) (*Expr, error) {
	if !btb.Sort().IsBranchTargetBuffer() {
		return nil, perr.Sortf("btb-lookup: expected BTB operand, got %s", btb.Sort())
	}
	if err := expectSort(loc, BitVectorSort(WordWidth), "btb-lookup location"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpBTBLookup, Operands: []*Expr{btb, loc}, ResultSort: BitVectorSort(WordWidth)}, nil
}

// --- PatternHistoryTable family ---

func pht(op Op, pht, loc, cond *Expr) (*Expr, error) {
	if !pht.Sort().IsPatternHistoryTable() {
		return nil, perr.Sortf("%s: expected PHT operand, got %s", op, pht.Sort())
	}
	if err := expectSort(loc, BitVectorSort(WordWidth), op.String()+" location"); err != nil {
		return nil, err
	}
	operands := []*Expr{pht, loc}
	if cond != nil {
		if err := expectBoolean(cond, op.String()); err != nil {
			return nil, err
		}
		operands = append(operands, cond)
	}
	return &Expr{Op: op, Operands: operands, ResultSort: PatternHistoryTableSort()}, nil
}

func PHTTaken(p, loc *Expr) (*Expr, error)    { return pht(OpPHTTaken, p, loc, nil) }
func PHTNotTaken(p, loc *Expr) (*Expr, error) { return pht(OpPHTNotTaken, p, loc, nil) }

func PHTLookup(p, loc *Expr) (*Expr, error) {
	if !p.Sort().IsPatternHistoryTable() {
		return nil, perr.Sortf("pht-lookup: expected PHT operand, got %s", p.Sort())
	}
	if err := expectSort(loc, BitVectorSort(WordWidth), "pht-lookup location"); err != nil {
		return nil, err
	}
	return &Expr{Op: OpPHTLookup, Operands: []*Expr{p, loc}, ResultSort: BooleanSort()}, nil
}

// --- Predictor family (uninterpreted oracle) ---

func predictorQuery(op Op, resultSort Sort, predictor, pc *Expr) (*Expr, error) {
	if !predictor.Sort().IsPredictor() {
		return nil, perr.Sortf("%s: expected Predictor operand, got %s", op, predictor.Sort())
	}
	if err := expectSort(pc, BitVectorSort(WordWidth), op.String()); err != nil {
		return nil, err
	}
	return &Expr{Op: op, Operands: []*Expr{predictor, pc}, ResultSort: resultSort}, nil
}

func PredictorSpeculate(predictor, pc *Expr) (*Expr, error) {
	return predictorQuery(OpPredictorSpeculate, BooleanSort(), predictor, pc)
}

func PredictorTaken(predictor, pc *Expr) (*Expr, error) {
	return predictorQuery(OpPredictorTaken, BooleanSort(), predictor, pc)
}

func PredictorWindow(predictor, pc *Expr, windowBits int) (*Expr, error) {
	return predictorQuery(OpPredictorWindow, BitVectorSort(windowBits), predictor, pc)
}

// String renders e as an s-expression, for debug printing and CFG dot
// labels (not used for SMT-LIB2 emission — see internal/solver).
func (e *Expr) String() string {
	switch e.Op {
	case OpVariable:
		return e.Var.String()
	case OpConstant:
		return e.Const.String()
	case OpCast:
		return fmt.Sprintf("(cast %s %s)", e.CastTo, e.Operands[0])
	case OpBVExtract:
		return fmt.Sprintf("(extract[%d:%d] %s)", e.Hi, e.Lo, e.Operands[0])
	case OpTupleGet:
		return fmt.Sprintf("(get-%d %s)", e.Hi, e.Operands[0])
	}
	if len(e.Operands) == 0 {
		return e.Op.String()
	}
	parts := make([]string, len(e.Operands))
	for i, o := range e.Operands {
		parts[i] = o.String()
	}
	return fmt.Sprintf("(%s %s)", e.Op, strings.Join(parts, " "))
}

// Variables returns the distinct Variables (by Identifier, so name, SSA
// version and composition) referenced anywhere in e's subtree, used by SSA liveness and by the solver driver's
// declare-const pass.
func (e *Expr) Variables() []*Variable {
	seen := map[string]bool{}
	var out []*Variable
	var walk func(*Expr)
	walk = func(x *Expr) {
		if x.Op == OpVariable {
			key := x.Var.Identifier()
			if !seen[key] {
				seen[key] = true
				out = append(out, x.Var)
			}
		}
		for _, o := range x.Operands {
			walk(o)
		}
	}
	walk(e)
	return out
}
