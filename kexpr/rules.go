package kexpr

// Helpers shared by derivative rules. Derivatives are numel x ncol matrices
// whose columns are column-major vectorized directional derivatives.

type bcast uint8

const (
	bcastNone bcast = iota
	bcastScalar
	bcastColumn
)

func (b bcast) index(k, rows int) int {
	switch b {
	case bcastScalar:
		return 0
	case bcastColumn:
		return k % rows
	default:
		return k
	}
}

// broadcast resolves the result shape of an elementwise operation. Supported
// combinations are equal shapes, a scalar operand, and an r x 1 column against
// an r x c matrix.
func broadcast(op string, a, b MX) (rows, cols int, ma, mb bcast) {
	sa, sb := a.Sparsity(), b.Sparsity()
	switch {
	case sa.SameShape(sb):
		return sa.Rows(), sa.Cols(), bcastNone, bcastNone
	case sa.IsScalar():
		return sb.Rows(), sb.Cols(), bcastScalar, bcastNone
	case sb.IsScalar():
		return sa.Rows(), sa.Cols(), bcastNone, bcastScalar
	case sa.IsColumn() && sa.Rows() == sb.Rows():
		return sb.Rows(), sb.Cols(), bcastColumn, bcastNone
	case sb.IsColumn() && sa.Rows() == sb.Rows():
		return sa.Rows(), sa.Cols(), bcastNone, bcastColumn
	}
	shapePanic(op, "dimensions cannot be broadcast", a, b)
	return 0, 0, bcastNone, bcastNone
}

// expandDerivative lifts the derivative of an operand to the derivative of its
// broadcast value with n elements.
func expandDerivative(d MX, mode bcast, n, reps int) MX {
	switch mode {
	case bcastScalar:
		if n == 1 {
			return d
		}
		if d.IsZero() {
			return Zeros(n, d.Size2())
		}
		return MatMul(Ones(n, 1), d)
	case bcastColumn:
		if reps == 1 {
			return d
		}
		if d.IsZero() {
			return Zeros(n, d.Size2())
		}
		parts := make([]MX, reps)
		for i := range parts {
			parts[i] = d
		}
		return Vertcat(parts...)
	default:
		return d
	}
}

// expandValue materializes a column operand at the broadcast shape. Scalars
// are left alone since scaleRows handles them directly.
func expandValue(v MX, mode bcast, rows, cols int) MX {
	if mode == bcastColumn && cols > 1 {
		return Mul(v, Ones(rows, cols))
	}
	return v
}

// scaleRows multiplies row i of d by element i of v (or every row by v when v
// is a scalar).
func scaleRows(v, d MX) MX {
	if d.IsZero() {
		return d
	}
	if v.IsZero() {
		return Zeros(d.Size1(), d.Size2())
	}
	if v.IsScalar() {
		return Mul(v, d)
	}
	return Mul(Vec(v), d)
}

// divRows divides row i of d by element i of v.
func divRows(d, v MX) MX {
	if d.IsZero() {
		return d
	}
	if v.IsScalar() {
		return Div(d, v)
	}
	return Div(d, Vec(v))
}

// sumTerms adds the non-zero terms, returning an n x ncol zero when none remain.
func sumTerms(n, ncol int, terms ...MX) MX {
	var acc MX
	for _, t := range terms {
		if t.IsNull() || t.IsZero() {
			continue
		}
		if acc.IsNull() {
			acc = t
			continue
		}
		acc = Add(acc, t)
	}
	if acc.IsNull() {
		return Zeros(n, ncol)
	}
	return acc
}

func subTerms(a, b MX) MX {
	switch {
	case b.IsZero():
		return a
	case a.IsZero():
		return Neg(b)
	}
	return Sub(a, b)
}
