package khcl

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"go.uber.org/multierr"

	"github.com/birdayz/kfunc/kexpr"
	"github.com/birdayz/kfunc/kmatrix"
)

const scenario = `
input "x" {
  rows  = 2
  value = [2, 3]
}
input "y" { value = 4 }
let "s" { value = sum(x) }
output "z" { value = s * y }
output "w" { value = -s + 1 }
`

func mustParse(t *testing.T, src string) *Definition {
	t.Helper()
	def, err := Parse([]byte(src), "test.hcl")
	assert.NoError(t, err)
	return def
}

func eval(t *testing.T, def *Definition, overrides map[string]*kmatrix.Matrix) []*kmatrix.Matrix {
	t.Helper()
	f, err := def.Function()
	assert.NoError(t, err)
	values, err := def.Values(overrides)
	assert.NoError(t, err)
	outs, err := f.Eval(values...)
	assert.NoError(t, err)
	return outs
}

func TestParseScenario(t *testing.T) {
	def := mustParse(t, scenario)
	assert.Equal(t, 2, len(def.Inputs))
	assert.Equal(t, "x", def.Inputs[0].Name)
	assert.Equal(t, "2x1", def.Inputs[0].MX.Dims())
	assert.Equal(t, []float64{2, 3}, def.Inputs[0].Value.Data())
	assert.Equal(t, "1x1", def.Inputs[1].MX.Dims())
	assert.Equal(t, []string{"z", "w"}, []string{def.Outputs[0].Name, def.Outputs[1].Name})

	outs := eval(t, def, nil)
	assert.Equal(t, []float64{20}, outs[0].Data())
	assert.Equal(t, []float64{-4}, outs[1].Data())

	outs = eval(t, def, map[string]*kmatrix.Matrix{"y": kmatrix.Scalar(2)})
	assert.Equal(t, []float64{10}, outs[0].Data())

	f, err := def.Function()
	assert.NoError(t, err)
	assert.Equal(t, "test.hcl", f.Name())
	assert.NoError(t, f.Build())
	assert.Equal(t, 1, strings.Count(f.String(), "sum("))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.hcl")
	assert.NoError(t, os.WriteFile(path, []byte(scenario), 0o600))

	def, err := LoadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, path, def.Filename)
	assert.Equal(t, []float64{20}, eval(t, def, nil)[0].Data())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.True(t, errors.Is(err, ErrSyntax))
}

func TestParseExpressions(t *testing.T) {
	src := `
input "x" { value = [0.5, 2] }
input "A" { value = [[1, 2], [3, 4]] }
let "b" { value = a * 2 }
let "a" { value = mtimes(A, x) }
output "b" { value = b }
output "t" { value = transpose(x) }
output "p" { value = pow(x, 2) }
output "q" { value = pow(x, x) }
output "r" { value = reshape(A, 4, 1) }
output "v" { value = vertcat(x, sum(x)) }
output "h" { value = horzcat(x, x) }
output "f" { value = sqrt(square(x)) / exp(log(x)) - tanh(sin(x) - cos(x)) }
output "c" { value = x + [1, 1] }
output "g" { value = (x - 1) * (x + 1) }
`
	def := mustParse(t, src)
	outs := eval(t, def, nil)
	byName := map[string]*kmatrix.Matrix{}
	for i, o := range def.Outputs {
		byName[o.Name] = outs[i]
	}

	assert.Equal(t, []float64{9, 19}, byName["b"].DenseValues())
	assert.Equal(t, 1, byName["t"].Rows())
	assert.Equal(t, []float64{0.25, 4}, byName["p"].DenseValues())
	assert.Equal(t, math.Pow(0.5, 0.5), byName["q"].DenseValues()[0])
	assert.Equal(t, []float64{1, 3, 2, 4}, byName["r"].DenseValues())
	assert.Equal(t, []float64{0.5, 2, 2.5}, byName["v"].DenseValues())
	assert.Equal(t, "2x2", def.Outputs[6].MX.Dims())
	want := 1 - math.Tanh(math.Sin(2)-math.Cos(2))
	assert.True(t, math.Abs(want-byName["f"].DenseValues()[1]) < 1e-12)
	assert.Equal(t, []float64{1.5, 3}, byName["c"].DenseValues())
	assert.Equal(t, []float64{-0.75, 3}, byName["g"].DenseValues())
}

func TestParseInputShapes(t *testing.T) {
	def := mustParse(t, `
input "a" {}
input "b" {
  rows = 3
}
input "c" {
  rows = 2
  cols = 2
  value = [1, 2, 3, 4]
}
input "d" {
  cols = 3
  value = 0
}
output "o" { value = sum(a) }
`)
	dims := make([]string, len(def.Inputs))
	for i, in := range def.Inputs {
		dims[i] = in.MX.Dims()
	}
	assert.Equal(t, []string{"1x1", "3x1", "2x2", "1x3"}, dims)
	assert.Zero(t, def.Inputs[0].Value)
	assert.Equal(t, 4.0, def.Inputs[2].Value.At(1, 1))

	_, err := def.Values(nil)
	assert.True(t, errors.Is(err, ErrNoValue))
	assert.Equal(t, 2, len(multierr.Errors(err)))

	_, err = def.Values(map[string]*kmatrix.Matrix{
		"a":    kmatrix.Scalar(1),
		"b":    kmatrix.Column(1, 2),
		"nope": kmatrix.Scalar(1),
	})
	assert.True(t, errors.Is(err, ErrUnknownReference))
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		err   error
		count int
	}{
		{"syntax", `input "x" {`, ErrSyntax, 1},
		{"unknown block", `thing "x" {}`, ErrSyntax, 1},
		{"duplicate input", `
input "x" {}
input "x" {}
output "o" { value = x }`, ErrDuplicateName, 1},
		{"let shadows input", `
input "x" {}
let "x" { value = 1 }
output "o" { value = x }`, ErrDuplicateName, 1},
		{"duplicate output", `
input "x" {}
output "o" { value = x }
output "o" { value = x }`, ErrDuplicateName, 1},
		{"unknown reference", `
input "x" {}
output "o" { value = x + y }`, ErrUnknownReference, 1},
		{"unknown function", `
input "x" {}
output "o" { value = frobnicate(x) }`, ErrUnknownFunction, 1},
		{"arity", `
input "x" {}
output "o" { value = sin(x, x) }`, ErrArity, 1},
		{"unsupported operator", `
input "x" {}
output "o" { value = x % 2 }`, ErrUnsupported, 1},
		{"attribute access", `
input "x" {}
output "o" { value = x.y }`, ErrUnsupported, 1},
		{"symbolic list", `
input "x" {}
output "o" { value = [x, 1] }`, ErrUnsupported, 1},
		{"cycle", `
input "x" {}
let "a" { value = b + x }
let "b" { value = a }
output "o" { value = a }`, ErrCycle, 1},
		{"failed let reported once", `
input "x" {}
let "s" { value = frobnicate(x) }
output "o" { value = s }
output "p" { value = s * 2 }`, ErrUnknownFunction, 1},
		{"errors are aggregated", `
input "x" {}
output "o" { value = y }
output "p" { value = z }`, ErrUnknownReference, 2},
		{"bad input value", `
input "x" { value = "a" }
output "o" { value = 1 }`, ErrInvalidValue, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "test.hcl")
			assert.True(t, errors.Is(err, tt.err), "%v", err)
			assert.Equal(t, tt.count, len(multierr.Errors(err)), "%v", err)
		})
	}
}

func TestParseShapeError(t *testing.T) {
	_, err := Parse([]byte(`
input "x" { rows = 2 }
output "o" { value = mtimes(x, x) }
`), "shape.hcl")
	var se *kexpr.ShapeError
	assert.True(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "shape.hcl:3")

	_, err = Parse([]byte(`
input "x" { value = [1, 2] }
output "o" { value = reshape(x, -1, -2) }
output "p" { value = reshape(x, 3, 1) }
`), "reshape.hcl")
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "reshape", se.Op)
	assert.Equal(t, 2, len(multierr.Errors(err)))
}
