package hir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"specbmc/internal/expr"
)

func TestPhiNodeIsTrivialWhenAllIncomingMatch(t *testing.T) {
	out := expr.NewVariable("x", expr.IntegerSort())
	p := NewPhiNode(out)
	p.AddIncoming(0, expr.NewVariable("x", expr.IntegerSort()).WithVersion(1))
	p.AddIncoming(1, expr.NewVariable("x", expr.IntegerSort()).WithVersion(1))
	assert.True(t, p.IsTrivial())

	p.AddIncoming(2, expr.NewVariable("y", expr.IntegerSort()).WithVersion(1))
	assert.False(t, p.IsTrivial())
}

func TestPhiNodeIncomingVariableLookup(t *testing.T) {
	p := NewPhiNode(expr.NewVariable("x", expr.IntegerSort()))
	v := expr.NewVariable("x", expr.IntegerSort()).WithVersion(2)
	p.AddIncoming(5, v)

	got, ok := p.IncomingVariable(5)
	assert.True(t, ok)
	assert.Equal(t, v.Identifier(), got.Identifier())

	_, ok = p.IncomingVariable(6)
	assert.False(t, ok)
}
