package kexpr

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
)

// treeEval evaluates expressions numerically with nfdir forward directions by
// walking the DAG recursively. Symbols take their values and seeds by name.
type treeEval struct {
	nfdir int
	vals  map[string][]float64
	seeds map[string][][]float64

	val map[Node][]float64
	fwd map[Node][][]float64
}

func newTreeEval(nfdir int, vals map[string][]float64, seeds map[string][][]float64) *treeEval {
	return &treeEval{
		nfdir: nfdir,
		vals:  vals,
		seeds: seeds,
		val:   map[Node][]float64{},
		fwd:   map[Node][][]float64{},
	}
}

func (e *treeEval) eval(x MX) ([]float64, [][]float64) {
	n := x.Node()
	if v, ok := e.val[n]; ok {
		return v, e.fwd[n]
	}
	if sym, ok := n.(*symbolNode); ok {
		seeds := e.seeds[sym.name]
		if seeds == nil {
			seeds = make([][]float64, e.nfdir)
			for d := range seeds {
				seeds[d] = make([]float64, x.NNZ())
			}
		}
		e.val[n], e.fwd[n] = e.vals[sym.name], seeds
		return e.val[n], seeds
	}
	nd := n.NumDeps()
	a := &Args{
		Input:   make([][]float64, nd),
		Output:  make([]float64, x.NNZ()),
		FwdSeed: make([][][]float64, nd),
		FwdSens: make([][]float64, e.nfdir),
	}
	for i := 0; i < nd; i++ {
		dep := n.Dep(i)
		if dep.IsNull() {
			continue
		}
		a.Input[i], a.FwdSeed[i] = e.eval(dep)
	}
	for d := range a.FwdSens {
		a.FwdSens[d] = make([]float64, x.NNZ())
	}
	n.Forward(a, e.nfdir)
	e.val[n], e.fwd[n] = a.Output, a.FwdSens
	return a.Output, a.FwdSens
}

// derive builds the symbolic derivative of x given the derivatives of its
// symbols.
func derive(t *testing.T, x MX, seeds map[Node]MX, ncol int) MX {
	t.Helper()
	memo := map[Node]MX{}
	var rec func(x MX) MX
	rec = func(x MX) MX {
		n := x.Node()
		if d, ok := seeds[n]; ok {
			return d
		}
		if d, ok := memo[n]; ok {
			return d
		}
		if x.IsConstant() {
			return Zeros(x.Numel(), ncol)
		}
		fseed := make([]MX, n.NumDeps())
		for i := range fseed {
			if dep := n.Dep(i); !dep.IsNull() {
				fseed[i] = rec(dep)
			}
		}
		d, err := n.ForwardDerivative(fseed)
		assert.NoError(t, err)
		assert.Equal(t, x.Numel(), d.Size1(), "rows of d(%s)", x)
		assert.Equal(t, ncol, d.Size2(), "cols of d(%s)", x)
		memo[n] = d
		return d
	}
	return rec(x)
}

func assertClose(t *testing.T, want, got []float64, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, len(want), len(got), msgAndArgs...)
	for i := range want {
		tol := 1e-9 * math.Max(1, math.Abs(want[i]))
		assert.True(t, math.Abs(want[i]-got[i]) <= tol, "element %d: want %v got %v", i, want[i], got[i])
	}
}
