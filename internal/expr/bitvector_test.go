package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitVectorTruncatesOnConstruction(t *testing.T) {
	v := NewBitVectorValue(0x1FF, 8)
	got, ok := v.Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(0xFF), got)
}

func TestBitVectorWrappingArithmetic(t *testing.T) {
	a := NewBitVectorValue(0xFF, 8)
	one := NewBitVectorValue(1, 8)
	sum := a.Add(one)
	got, ok := sum.Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(0), got, "8-bit 0xFF + 1 wraps to 0")
}

func TestBitVectorSignedComparison(t *testing.T) {
	negOne := NewBitVectorValue(0xFF, 8) // -1 in two's complement
	one := NewBitVectorValue(1, 8)
	assert.True(t, negOne.SLt(one))
	assert.False(t, negOne.ULt(one), "as unsigned, 0xFF is greater than 1")
}

func TestBitVectorDivisionByZeroIsUndefined(t *testing.T) {
	a := NewBitVectorValue(10, 8)
	zero := NewBitVectorValue(0, 8)
	_, ok := a.UDiv(zero)
	assert.False(t, ok)
	_, ok = a.SDiv(zero)
	assert.False(t, ok)
}

func TestBitVectorExtractAndConcat(t *testing.T) {
	v := NewBitVectorValue(0xABCD, 16)
	hi := v.Extract(15, 8)
	lo := v.Extract(7, 0)
	assert.Equal(t, 8, hi.Bits())
	gotHi, _ := hi.Uint64()
	gotLo, _ := lo.Uint64()
	assert.Equal(t, uint64(0xAB), gotHi)
	assert.Equal(t, uint64(0xCD), gotLo)

	rejoined := hi.Concat(lo)
	assert.Equal(t, 16, rejoined.Bits())
	gotAll, _ := rejoined.Uint64()
	assert.Equal(t, uint64(0xABCD), gotAll)
}

func TestBitVectorZExtSExt(t *testing.T) {
	neg := NewBitVectorValue(0xFF, 8)
	z := neg.ZExt(16)
	zv, _ := z.Uint64()
	assert.Equal(t, uint64(0x00FF), zv)

	s := neg.SExt(16)
	sv, _ := s.Uint64()
	assert.Equal(t, uint64(0xFFFF), sv)
}
