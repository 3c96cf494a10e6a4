package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOperator(t *testing.T) {
	gate := NewGate([]int64{1, 2})

	assert.True(t, gate.IsOperator(1))
	assert.True(t, gate.IsOperator(2))
	assert.False(t, gate.IsOperator(3))
	assert.False(t, gate.IsOperator(0))
}

func TestOperatorsKeepConfigOrder(t *testing.T) {
	gate := NewGate([]int64{5, 3, 5, 1})
	assert.Equal(t, []int64{5, 3, 1}, gate.Operators())
}

func TestEmptyGate(t *testing.T) {
	gate := NewGate(nil)
	assert.False(t, gate.IsOperator(1))
	assert.Empty(t, gate.Operators())
}
