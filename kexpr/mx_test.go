package kexpr

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kfunc/kmatrix"
	"github.com/birdayz/kfunc/ksparsity"
)

func TestPrint(t *testing.T) {
	x := Symbol("x", 2, 1)
	y := Symbol("y", 1, 1)
	A := Symbol("A", 2, 2)
	d := SymbolSparse("d", ksparsity.Diagonal(2))

	tests := []struct {
		expr MX
		want string
	}{
		{Mul(Add(x, y), y), "((x+y)*y)"},
		{Sin(Neg(x)), "sin((-x))"},
		{Sum(x), "sum(x)"},
		{MatMul(A, x), "mtimes(A, x)"},
		{Gemm(A, x, MX{}), "gemm(A, x, [])"},
		{Gemm(A, x, x), "gemm(A, x, x)"},
		{Pow(x, y), "pow(x,y)"},
		{PowConst(x, 3), "pow(x,3)"},
		{Vertcat(x, y), "vertcat(x, y)"},
		{Transpose(x), "transpose(x)"},
		{Col(A, 1), "col(A, 1)"},
		{Reshape(A, 4, 1), "reshape(A, 4x1)"},
		{Add(x, Scalar(2)), "(x+2)"},
		{Mul(x, Ones(2, 1)), "(x*ones(2x1))"},
		{Add(d, Scalar(1)), "(dense(d)+1)"},
		{Eye(2), "eye(2)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.String())
		})
	}
	assert.Equal(t, "[]", MX{}.String())
}

func TestShapeErrors(t *testing.T) {
	a := Symbol("a", 2, 3)
	b := Symbol("b", 3, 2)

	tests := []struct {
		name  string
		op    string
		build func() MX
	}{
		{"add", "add", func() MX { return Add(a, b) }},
		{"mtimes", "mtimes", func() MX { return MatMul(a, a) }},
		{"gemm accumulator", "gemm", func() MX { return Gemm(a, b, a) }},
		{"vertcat", "vertcat", func() MX { return Vertcat(a, b) }},
		{"horzcat", "horzcat", func() MX { return Horzcat(a, b) }},
		{"reshape", "reshape", func() MX { return Reshape(a, 4, 2) }},
		{"reshape negative", "reshape", func() MX { return Reshape(a, -2, -3) }},
		{"col", "col", func() MX { return Col(a, 3) }},
		{"select", "select", func() MX { return Select(a, []int{6}, 1, 1) }},
		{"select negative", "select", func() MX { return Select(a, []int{0}, -1, -1) }},
		{"absent operand", "sin", func() MX { return Sin(MX{}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := Catch(tt.build)
			assert.Error(t, err)
			assert.True(t, x.IsNull())
			var se *ShapeError
			assert.True(t, errors.As(err, &se))
			assert.Equal(t, tt.op, se.Op)
		})
	}

	t.Run("no error", func(t *testing.T) {
		x, err := Catch(func() MX { return Add(a, a) })
		assert.NoError(t, err)
		assert.Equal(t, "2x3", x.Dims())
	})
}

func TestBroadcastShapes(t *testing.T) {
	col := Symbol("c", 3, 1)
	m := Symbol("m", 3, 2)
	s := Symbol("s", 1, 1)
	assert.Equal(t, "3x2", Mul(col, m).Dims())
	assert.Equal(t, "3x2", Sub(m, col).Dims())
	assert.Equal(t, "3x2", Div(s, m).Dims())
	assert.Equal(t, "3x1", Add(col, s).Dims())
}

func TestFlags(t *testing.T) {
	x := Symbol("x", 2, 1)
	k := Scalar(3)
	assert.True(t, x.IsSymbolic())
	assert.True(t, k.IsConstant())
	assert.True(t, Zeros(2, 2).IsZero())
	assert.False(t, Ones(2, 2).IsZero())
	assert.False(t, x.IsZero())

	assert.False(t, Add(x, x).Node().IsNonLinear())
	assert.False(t, Mul(x, k).Node().IsNonLinear())
	assert.True(t, Mul(x, x).Node().IsNonLinear())
	assert.True(t, Sin(x).Node().IsNonLinear())
	assert.False(t, Neg(x).Node().IsNonLinear())
	assert.False(t, PowConst(x, 1).Node().IsNonLinear())
	assert.True(t, MatMul(Transpose(x), x).Node().IsNonLinear())
	assert.False(t, MatMul(Eye(2), x).Node().IsNonLinear())

	rule, ok := Pow(x, Symbol("p", 1, 1)).Node().(ExperimentalRule)
	assert.True(t, ok)
	assert.NotEqual(t, "", rule.ExperimentalDerivative())
	rule, _ = Pow(x, k).Node().(ExperimentalRule)
	assert.Equal(t, "", rule.ExperimentalDerivative())
	rule, _ = Mul(x, k).Node().(ExperimentalRule)
	assert.Equal(t, "", rule.ExperimentalDerivative())
}

func TestConstants(t *testing.T) {
	m := kmatrix.MustDense(2, 1, 1, 2)
	c := Constant(m)
	m.Data()[0] = 9
	v := c.Node().(*constantNode).Value()
	assert.Equal(t, []float64{1, 2}, v.Data())

	_, err := Catch(func() MX { return DenseConstant(2, 2, 1) })
	assert.Error(t, err)

	assert.Equal(t, 2, Eye(2).NNZ())
	assert.Equal(t, 0, Zeros(3, 3).NNZ())
}

func TestForwardValues(t *testing.T) {
	x := Symbol("x", 2, 1)
	y := Symbol("y", 1, 1)
	A := Symbol("A", 2, 2)
	vals := map[string][]float64{
		"x": {2, 3},
		"y": {4},
		"A": {1, 2, 3, 4},
	}

	tests := []struct {
		name string
		expr MX
		want []float64
	}{
		{"sum times y", Mul(Sum(x), y), []float64{20}},
		{"broadcast scalar", Sub(x, y), []float64{-2, -1}},
		{"broadcast column", Mul(x, A), []float64{2, 6, 6, 12}},
		{"mtimes", MatMul(A, x), []float64{11, 16}},
		{"gemm", Gemm(A, x, x), []float64{13, 19}},
		{"gemm absent", Gemm(A, x, MX{}), []float64{11, 16}},
		{"transpose", Transpose(A), []float64{1, 3, 2, 4}},
		{"vertcat", Vertcat(x, y), []float64{2, 3, 4}},
		{"vertcat matrices", Vertcat(A, Transpose(x)), []float64{1, 2, 2, 3, 4, 3}},
		{"horzcat", Horzcat(x, A), []float64{2, 3, 1, 2, 3, 4}},
		{"col", Col(A, 1), []float64{3, 4}},
		{"select", Select(A, []int{3, 0}, 2, 1), []float64{4, 1}},
		{"square", Square(x), []float64{4, 9}},
		{"pow", Pow(x, Scalar(2)), []float64{4, 9}},
		{"identity", MatMul(Eye(2), x), []float64{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := newTreeEval(0, vals, nil).eval(tt.expr)
			assertClose(t, tt.want, got)
		})
	}
}

func TestDensify(t *testing.T) {
	d := SymbolSparse("d", ksparsity.Diagonal(2))
	e := Add(d, Scalar(1))
	ev := newTreeEval(1, map[string][]float64{"d": {5, 7}}, map[string][][]float64{"d": {{1, 2}}})
	val, fwd := ev.eval(e)
	assert.Equal(t, []float64{6, 1, 1, 8}, val)
	assert.Equal(t, []float64{1, 0, 0, 2}, fwd[0])

	dn := e.Node().Dep(0).Node()
	a := &Args{
		AdjSeed: [][]float64{{1, 2, 3, 4}},
		AdjSens: [][][]float64{{{10, 10}}},
	}
	dn.Adjoint(a, 1)
	assert.Equal(t, []float64{11, 14}, a.AdjSens[0][0])
}

func TestAdjointAccumulates(t *testing.T) {
	x := Symbol("x", 1, 1)
	y := Symbol("y", 1, 1)
	n := Mul(x, y).Node()
	adjX, adjY := []float64{1}, []float64{1}
	a := &Args{
		Input:   [][]float64{{3}, {5}},
		Output:  []float64{15},
		AdjSeed: [][]float64{{2}},
		AdjSens: [][][]float64{{adjX}, {adjY}},
	}
	n.Adjoint(a, 1)
	assert.Equal(t, []float64{11}, adjX)
	assert.Equal(t, []float64{7}, adjY)

	// x*x aliases both operand buffers
	sq := Mul(x, x).Node()
	adj := []float64{0}
	a = &Args{
		Input:   [][]float64{{3}, {3}},
		Output:  []float64{9},
		AdjSeed: [][]float64{{1}},
		AdjSens: [][][]float64{{adj}, {adj}},
	}
	sq.Adjoint(a, 1)
	assert.Equal(t, []float64{6}, adj)
}
