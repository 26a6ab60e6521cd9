package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortEqualityIgnoresFieldsIrrelevantToKind(t *testing.T) {
	assert.True(t, BitVectorSort(64).Equal(BitVectorSort(64)))
	assert.False(t, BitVectorSort(64).Equal(BitVectorSort(32)))
	assert.False(t, BitVectorSort(64).Equal(IntegerSort()))
}

func TestArraySortKeyValue(t *testing.T) {
	s := ArraySort(BitVectorSort(64), BitVectorSort(8))
	k, v := s.KeyValue()
	assert.True(t, k.Equal(BitVectorSort(64)))
	assert.True(t, v.Equal(BitVectorSort(8)))
}

func TestTupleSortFields(t *testing.T) {
	s := TupleSort(BooleanSort(), IntegerSort(), BitVectorSort(32))
	fields := s.Fields()
	assert.Len(t, fields, 3)
	assert.True(t, fields[2].Equal(BitVectorSort(32)))
}

func TestOpaqueSortPredicates(t *testing.T) {
	assert.True(t, CacheSort().IsCache())
	assert.True(t, PredictorSort().IsPredictor())
	assert.True(t, BranchTargetBufferSort().IsBranchTargetBuffer())
	assert.True(t, PatternHistoryTableSort().IsPatternHistoryTable())
	assert.True(t, MemorySort().IsMemory())
}

func TestSortString(t *testing.T) {
	assert.Equal(t, "BitVec(64)", BitVectorSort(64).String())
	assert.Equal(t, "Bool", BooleanSort().String())
}
