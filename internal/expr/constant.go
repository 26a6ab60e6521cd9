package expr

import "fmt"

// ConstantKind tags the variant of Constant held.
type ConstantKind int

const (
	ConstBoolean ConstantKind = iota
	ConstInteger
	ConstBitVector
	ConstArray
)

// ArrayValue is a finite map of constant keys to constant values plus an
// optional default, used to render a select/store chain back from a model
// (§4.G "parse them back into IR constants ... arrays-as-stores").
type ArrayValue struct {
	KeySort, ValueSort Sort
	Entries            map[string]Constant // keyed by Constant.mapKey()
	Keys               []Constant          // insertion order, for stable printing
	Default            *Constant
}

func NewArrayValue(keySort, valueSort Sort) *ArrayValue {
	return &ArrayValue{KeySort: keySort, ValueSort: valueSort, Entries: map[string]Constant{}}
}

func (a *ArrayValue) Store(key, value Constant) *ArrayValue {
	cp := &ArrayValue{KeySort: a.KeySort, ValueSort: a.ValueSort, Default: a.Default}
	cp.Entries = make(map[string]Constant, len(a.Entries)+1)
	for k, v := range a.Entries {
		cp.Entries[k] = v
	}
	cp.Keys = append(append([]Constant{}, a.Keys...))
	mk := key.mapKey()
	if _, exists := cp.Entries[mk]; !exists {
		cp.Keys = append(cp.Keys, key)
	}
	cp.Entries[mk] = value
	return cp
}

func (a *ArrayValue) Select(key Constant) (Constant, bool) {
	if v, ok := a.Entries[key.mapKey()]; ok {
		return v, true
	}
	if a.Default != nil {
		return *a.Default, true
	}
	return Constant{}, false
}

// Constant is a leaf value of the expression IR (§4.A).
type Constant struct {
	kind ConstantKind
	b    bool
	i    uint64
	bv   BitVectorValue
	arr  *ArrayValue
}

func BoolConstant(v bool) Constant          { return Constant{kind: ConstBoolean, b: v} }
func IntConstant(v uint64) Constant         { return Constant{kind: ConstInteger, i: v} }
func BVConstant(v BitVectorValue) Constant  { return Constant{kind: ConstBitVector, bv: v} }
func ArrayConstant(v *ArrayValue) Constant  { return Constant{kind: ConstArray, arr: v} }

func (c Constant) Kind() ConstantKind { return c.kind }
func (c Constant) Bool() bool         { return c.b }
func (c Constant) Int() uint64        { return c.i }
func (c Constant) BitVector() BitVectorValue { return c.bv }
func (c Constant) Array() *ArrayValue { return c.arr }

func (c Constant) Sort() Sort {
	switch c.kind {
	case ConstBoolean:
		return BooleanSort()
	case ConstInteger:
		return IntegerSort()
	case ConstBitVector:
		return BitVectorSort(c.bv.Bits())
	case ConstArray:
		return ArraySort(c.arr.KeySort, c.arr.ValueSort)
	default:
		panic("expr: unknown constant kind")
	}
}

func (c Constant) Equal(o Constant) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case ConstBoolean:
		return c.b == o.b
	case ConstInteger:
		return c.i == o.i
	case ConstBitVector:
		return c.bv.Equal(o.bv)
	case ConstArray:
		return c.mapKey() == o.mapKey()
	default:
		return false
	}
}

func (c Constant) mapKey() string {
	switch c.kind {
	case ConstBoolean:
		return fmt.Sprintf("b:%v", c.b)
	case ConstInteger:
		return fmt.Sprintf("i:%d", c.i)
	case ConstBitVector:
		return fmt.Sprintf("bv:%s", c.bv.String())
	default:
		return fmt.Sprintf("other:%p", c.arr)
	}
}

func (c Constant) String() string {
	switch c.kind {
	case ConstBoolean:
		return fmt.Sprintf("%v", c.b)
	case ConstInteger:
		return fmt.Sprintf("%d", c.i)
	case ConstBitVector:
		return c.bv.String()
	case ConstArray:
		return "array"
	default:
		return "?"
	}
}
