// Package expr implements the typed expression IR of §4.A: a closed set of
// sorts and a single tagged-variant expression type whose constructors are
// total functions returning either a well-sorted Expr or a sort error.
//
// Following DESIGN NOTES §9 ("the expression IR's dozens of operators map to
// a single tagged variant with per-arm payload; shared operations factor
// into helpers"), every operator — Boolean, Integer, BitVector, Array, List,
// Tuple, Memory, Cache, Predictor, BranchTargetBuffer, PatternHistoryTable —
// is a value of the single Expr struct in expr.go, not a family of structs.
package expr

import "fmt"

// Kind identifies one of the closed set of sorts from §3.
type Kind int

const (
	Boolean Kind = iota
	Integer
	BitVector
	Array
	List
	Tuple
	Memory
	Cache
	Predictor
	BranchTargetBuffer
	PatternHistoryTable
)

// Sort is a value of the closed sort set. BitVector carries a width; Array
// carries key/value sorts; List carries an element sort; Tuple carries a
// field list. The remaining constructors are nullary.
//
// Memory/Cache/BranchTargetBuffer/PatternHistoryTable are opaque per §3 —
// operationally defined by their operators here, and later modeled as
// concrete array sorts by the solver driver (§4.G).
type Sort struct {
	kind     Kind
	width    int    // BitVector only
	key      *Sort  // Array only
	value    *Sort  // Array only
	elem     *Sort  // List only
	fields   []Sort // Tuple only
}

func BooleanSort() Sort { return Sort{kind: Boolean} }
func IntegerSort() Sort { return Sort{kind: Integer} }

func BitVectorSort(width int) Sort { return Sort{kind: BitVector, width: width} }

func ArraySort(key, value Sort) Sort {
	k, v := key, value
	return Sort{kind: Array, key: &k, value: &v}
}

func ListSort(elem Sort) Sort {
	e := elem
	return Sort{kind: List, elem: &e}
}

func TupleSort(fields ...Sort) Sort {
	cp := make([]Sort, len(fields))
	copy(cp, fields)
	return Sort{kind: Tuple, fields: cp}
}

func MemorySort() Sort              { return Sort{kind: Memory} }
func CacheSort() Sort                { return Sort{kind: Cache} }
func PredictorSort() Sort            { return Sort{kind: Predictor} }
func BranchTargetBufferSort() Sort   { return Sort{kind: BranchTargetBuffer} }
func PatternHistoryTableSort() Sort  { return Sort{kind: PatternHistoryTable} }

func (s Sort) Kind() Kind { return s.kind }

func (s Sort) IsBoolean() bool             { return s.kind == Boolean }
func (s Sort) IsInteger() bool             { return s.kind == Integer }
func (s Sort) IsBitVector() bool           { return s.kind == BitVector }
func (s Sort) IsArray() bool               { return s.kind == Array }
func (s Sort) IsList() bool                { return s.kind == List }
func (s Sort) IsTuple() bool               { return s.kind == Tuple }
func (s Sort) IsMemory() bool              { return s.kind == Memory }
func (s Sort) IsCache() bool               { return s.kind == Cache }
func (s Sort) IsPredictor() bool           { return s.kind == Predictor }
func (s Sort) IsBranchTargetBuffer() bool  { return s.kind == BranchTargetBuffer }
func (s Sort) IsPatternHistoryTable() bool { return s.kind == PatternHistoryTable }

// Width returns the bit width of a BitVector sort; panics otherwise (callers
// must check IsBitVector first, mirroring the constructors' total-function
// contract which already validated the sort).
func (s Sort) Width() int {
	if s.kind != BitVector {
		panic("expr: Width() on non-BitVector sort")
	}
	return s.width
}

// KeyValue returns the key/value sorts of an Array sort.
func (s Sort) KeyValue() (Sort, Sort) {
	if s.kind != Array {
		panic("expr: KeyValue() on non-Array sort")
	}
	return *s.key, *s.value
}

// Elem returns the element sort of a List sort.
func (s Sort) Elem() Sort {
	if s.kind != List {
		panic("expr: Elem() on non-List sort")
	}
	return *s.elem
}

// Fields returns the field sorts of a Tuple sort.
func (s Sort) Fields() []Sort {
	if s.kind != Tuple {
		panic("expr: Fields() on non-Tuple sort")
	}
	return s.fields
}

// Equal reports whether two sorts are structurally identical.
func (s Sort) Equal(o Sort) bool {
	if s.kind != o.kind {
		return false
	}
	switch s.kind {
	case BitVector:
		return s.width == o.width
	case Array:
		return s.key.Equal(*o.key) && s.value.Equal(*o.value)
	case List:
		return s.elem.Equal(*o.elem)
	case Tuple:
		if len(s.fields) != len(o.fields) {
			return false
		}
		for i := range s.fields {
			if !s.fields[i].Equal(o.fields[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (s Sort) String() string {
	switch s.kind {
	case Boolean:
		return "Bool"
	case Integer:
		return "Int"
	case BitVector:
		return fmt.Sprintf("BitVec(%d)", s.width)
	case Array:
		return fmt.Sprintf("Array(%s->%s)", s.key, s.value)
	case List:
		return fmt.Sprintf("List(%s)", s.elem)
	case Tuple:
		return fmt.Sprintf("Tuple%v", s.fields)
	case Memory:
		return "Memory"
	case Cache:
		return "Cache"
	case Predictor:
		return "Predictor"
	case BranchTargetBuffer:
		return "BTB"
	case PatternHistoryTable:
		return "PHT"
	default:
		return "?"
	}
}

// AccessWidths are the memory/cache access widths (in bits) the solver
// driver declares helper functions for (§4.G).
var AccessWidths = []int{8, 16, 32, 64, 128, 256, 512}

// WordWidth is the bit width used for addresses and all opaque
// Memory/Cache/BTB/PHT key sorts.
const WordWidth = 64
