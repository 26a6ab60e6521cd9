package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollbackPersistentByOpaqueSort(t *testing.T) {
	cache := NewVariable("c", CacheSort())
	assert.True(t, cache.IsRollbackPersistent())

	reg := NewVariable("rax", BitVectorSort(64))
	assert.False(t, reg.IsRollbackPersistent())

	tagged := reg.WithLabel(RollbackPersistent)
	assert.True(t, tagged.IsRollbackPersistent())
	assert.False(t, reg.IsRollbackPersistent(), "WithLabel must not mutate the receiver")
}

func TestWithVersionAndCompositionStackInIdentifier(t *testing.T) {
	v := NewVariable("x", IntegerSort())
	versioned := v.WithVersion(3)
	composed := versioned.WithComposition(1)
	assert.Equal(t, "x.3@1", composed.Identifier())
	assert.Equal(t, "x", v.Identifier(), "original variable is untouched")
}

func TestWithCompositionNoOpForPredictor(t *testing.T) {
	oracle := NewVariable("oracle", PredictorSort())
	composed := oracle.WithComposition(2)
	assert.Nil(t, composed.Composition)
}
