package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIteRequiresBooleanCondition(t *testing.T) {
	x := NewVariable("x", IntegerSort())
	y := NewVariable("y", IntegerSort())
	_, err := Ite(VariableExpr(x), VariableExpr(x), VariableExpr(y))
	require.Error(t, err)
}

func TestIteRequiresMatchingBranchSorts(t *testing.T) {
	cond := NewVariable("c", BooleanSort())
	a := NewVariable("a", BitVectorSort(8))
	b := NewVariable("b", BitVectorSort(16))
	_, err := Ite(VariableExpr(cond), VariableExpr(a), VariableExpr(b))
	require.Error(t, err)

	b8 := NewVariable("b8", BitVectorSort(8))
	ite, err := Ite(VariableExpr(cond), VariableExpr(a), VariableExpr(b8))
	require.NoError(t, err)
	assert.True(t, ite.Sort().Equal(BitVectorSort(8)))
}

func TestEqualRequiresSameSort(t *testing.T) {
	a := ConstantExpr(IntConstant(1))
	b := ConstantExpr(BoolConstant(true))
	_, err := Equal(a, b)
	require.Error(t, err)
}

func TestArraySelectStoreRoundTrip(t *testing.T) {
	arrVar := NewVariable("mem", ArraySort(BitVectorSort(64), BitVectorSort(8)))
	addr := ConstantExpr(BVConstant(NewBitVectorValue(42, 64)))
	val := ConstantExpr(BVConstant(NewBitVectorValue(7, 8)))

	stored, err := ArrayStore(VariableExpr(arrVar), addr, val)
	require.NoError(t, err)
	assert.True(t, stored.Sort().Equal(arrVar.VarSort))

	loaded, err := ArraySelect(stored, addr)
	require.NoError(t, err)
	assert.True(t, loaded.Sort().Equal(BitVectorSort(8)))
}

func TestPredictorNotStampedByComposition(t *testing.T) {
	predictor := NewVariable("oracle", PredictorSort())
	pc := ConstantExpr(BVConstant(NewBitVectorValue(0x1000, WordWidth)))
	speculate, err := PredictorSpeculate(VariableExpr(predictor), pc)
	require.NoError(t, err)

	composed := SelfCompose(speculate, 1)
	vars := composed.Variables()
	require.Len(t, vars, 1)
	assert.Nil(t, vars[0].Composition, "predictor variables must not be stamped with a composition")
}

func TestSelfComposeStampsOrdinaryVariables(t *testing.T) {
	reg := NewVariable("rax", BitVectorSort(64))
	composed := SelfCompose(VariableExpr(reg), 2)
	require.NotNil(t, composed.Var.Composition)
	assert.Equal(t, 2, *composed.Var.Composition)
}

func TestSelfComposeIdempotent(t *testing.T) {
	reg := NewVariable("rax", BitVectorSort(64))
	once := SelfCompose(VariableExpr(reg), 1)
	twice := SelfCompose(once, 1)
	assert.Equal(t, once.String(), twice.String())
}

func TestFoldConstantArithmetic(t *testing.T) {
	a := ConstantExpr(BVConstant(NewBitVectorValue(3, 8)))
	b := ConstantExpr(BVConstant(NewBitVectorValue(4, 8)))
	sum, err := BVAdd(a, b)
	require.NoError(t, err)

	folded, changed := Fold(sum)
	assert.True(t, changed)
	require.Equal(t, ConstBitVector, folded.Const.Kind())
	v, ok := folded.Const.BitVector().Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(7), v)
}

func TestFoldIsIdempotent(t *testing.T) {
	a := ConstantExpr(BVConstant(NewBitVectorValue(3, 8)))
	b := ConstantExpr(BVConstant(NewBitVectorValue(4, 8)))
	sum, _ := BVAdd(a, b)
	once, _ := Fold(sum)
	twice, changed := Fold(once)
	assert.False(t, changed)
	assert.Equal(t, once.String(), twice.String())
}

func TestSimplifyBooleanIdentities(t *testing.T) {
	x := VariableExpr(NewVariable("x", BooleanSort()))
	notNotX, err := Not(mustNot(t, x))
	require.NoError(t, err)
	simplified, changed := Simplify(notNotX)
	assert.True(t, changed)
	assert.Equal(t, x.String(), simplified.String())

	trueC := ConstantExpr(BoolConstant(true))
	andExpr, err := And(trueC, x)
	require.NoError(t, err)
	simplified, changed = Simplify(andExpr)
	assert.True(t, changed)
	assert.Equal(t, x.String(), simplified.String())
}

func TestSimplifyIsIdempotent(t *testing.T) {
	x := VariableExpr(NewVariable("x", BooleanSort()))
	notNotX, err := Not(mustNot(t, x))
	require.NoError(t, err)
	once, _ := Simplify(notNotX)
	twice, changed := Simplify(once)
	assert.False(t, changed)
	assert.Equal(t, once.String(), twice.String())
}

func TestSimplifyIteCollapsesEqualBranches(t *testing.T) {
	cond := VariableExpr(NewVariable("c", BooleanSort()))
	x := VariableExpr(NewVariable("x", IntegerSort()))
	ite, err := Ite(cond, x, x)
	require.NoError(t, err)
	simplified, changed := Simplify(ite)
	assert.True(t, changed)
	assert.Equal(t, x.String(), simplified.String())
}

func mustNot(t *testing.T, e *Expr) *Expr {
	t.Helper()
	n, err := Not(e)
	require.NoError(t, err)
	return n
}
