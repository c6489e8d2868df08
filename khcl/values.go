package khcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/birdayz/kfunc/kmatrix"
)

// ParseValue parses a literal such as "4", "[1, 0]" or "[[1, 2], [3, 4]]" into
// a dense matrix. rows and cols, when positive, fix the shape as in ToMatrix.
func ParseValue(src string, rows, cols int) (*kmatrix.Matrix, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "<value>", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, diags)
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, diags)
	}
	return ToMatrix(v, rows, cols)
}

// ToMatrix converts a number, a list of numbers or a list of rows into a
// dense matrix. A list of numbers is a column vector. A positive rows or cols
// fixes that dimension; the other one is inferred. A flat list then fills the
// requested shape in column-major order and a number fills every element.
func ToMatrix(v cty.Value, rows, cols int) (*kmatrix.Matrix, error) {
	natRows, natCols, values, err := flatten(v)
	if err != nil {
		return nil, err
	}
	if rows <= 0 && cols <= 0 {
		return kmatrix.Dense(natRows, natCols, values...)
	}

	n := len(values)
	switch {
	case rows > 0 && cols > 0:
	case n == 1:
		rows, cols = max(rows, 1), max(cols, 1)
	case rows > 0:
		if n%rows != 0 {
			return nil, fmt.Errorf("%w: %d values do not fill %d rows", ErrInvalidValue, n, rows)
		}
		cols = n / rows
	default:
		if n%cols != 0 {
			return nil, fmt.Errorf("%w: %d values do not fill %d columns", ErrInvalidValue, n, cols)
		}
		rows = n / cols
	}
	switch {
	case natRows == rows && natCols == cols:
	case n == 1:
		fill := make([]float64, rows*cols)
		for i := range fill {
			fill[i] = values[0]
		}
		values = fill
	case natCols == 1 && n == rows*cols:
	default:
		return nil, fmt.Errorf("%w: %dx%d value for a %dx%d shape", ErrInvalidValue, natRows, natCols, rows, cols)
	}
	return kmatrix.Dense(rows, cols, values...)
}

// flatten returns the natural shape of v and its elements in column-major
// order.
func flatten(v cty.Value) (rows, cols int, values []float64, err error) {
	if v.IsNull() {
		return 0, 0, nil, ErrNoValue
	}
	if !v.IsWhollyKnown() {
		return 0, 0, nil, fmt.Errorf("%w: value is not known", ErrInvalidValue)
	}
	ty := v.Type()
	switch {
	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return 0, 0, nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return 1, 1, []float64{f}, nil
	case ty.IsTupleType() || ty.IsListType():
	default:
		return 0, 0, nil, fmt.Errorf("%w: %s is not a number or a list", ErrInvalidValue, ty.FriendlyName())
	}

	elems := v.AsValueSlice()
	if len(elems) == 0 {
		return 0, 1, nil, nil
	}
	et := elems[0].Type()
	if !et.IsTupleType() && !et.IsListType() {
		values, err := numbers(elems)
		if err != nil {
			return 0, 0, nil, err
		}
		return len(values), 1, values, nil
	}

	table := make([][]float64, len(elems))
	for i, row := range elems {
		if !row.Type().IsTupleType() && !row.Type().IsListType() {
			return 0, 0, nil, fmt.Errorf("%w: row %d is not a list", ErrInvalidValue, i)
		}
		if table[i], err = numbers(row.AsValueSlice()); err != nil {
			return 0, 0, nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	m, err := kmatrix.FromRows(table)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return m.Rows(), m.Cols(), m.Data(), nil
}

func numbers(elems []cty.Value) ([]float64, error) {
	out := make([]float64, len(elems))
	for i, e := range elems {
		if err := gocty.FromCtyValue(e, &out[i]); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidValue, i, err)
		}
	}
	return out, nil
}
