package kdag

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestValidateOrder(t *testing.T) {
	x := node("x")
	y := node("y")
	m := node("mul", x, y, nil)

	tests := []struct {
		name  string
		order []*testNode
		ok    bool
	}{
		{"valid", []*testNode{x, y, m}, true},
		{"parent first", []*testNode{m, x, y}, false},
		{"repeated node", []*testNode{x, y, x, m}, false},
		{"missing child", []*testNode{x, m}, false},
		{"absent entry", []*testNode{x, nil, y, m}, false},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrder(tt.order, deps)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrOrderViolation))
		})
	}
}

func TestDepth(t *testing.T) {
	x := node("x")
	s := node("sin", x)
	out := node("add", s, x)

	assert.Equal(t, 0, Depth(nil, deps))
	assert.Equal(t, 3, Depth([]*testNode{x, s, out}, deps))
	assert.Equal(t, 1, Depth([]*testNode{x}, deps))
}
