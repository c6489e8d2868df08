package khcl

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/zclconf/go-cty/cty"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		src        string
		rows, cols int
		dims       string
		data       []float64
	}{
		{"4", 0, 0, "1x1", []float64{4}},
		{"[1, 0]", 0, 0, "2x1", []float64{1, 0}},
		{"[[1, 2], [3, 4]]", 0, 0, "2x2", []float64{1, 3, 2, 4}},
		{"[1, 2, 3, 4]", 2, 2, "2x2", []float64{1, 2, 3, 4}},
		{"[1, 2, 3, 4]", 2, 0, "2x2", []float64{1, 2, 3, 4}},
		{"[1, 2, 3, 4]", 0, 4, "1x4", []float64{1, 2, 3, 4}},
		{"7", 2, 3, "2x3", []float64{7, 7, 7, 7, 7, 7}},
		{"[]", 0, 0, "0x1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			m, err := ParseValue(tt.src, tt.rows, tt.cols)
			assert.NoError(t, err)
			assert.Equal(t, tt.dims, m.Sparsity().Dims())
			if tt.data == nil {
				assert.Equal(t, 0, len(m.Data()))
				return
			}
			assert.Equal(t, tt.data, m.Data())
		})
	}
}

func TestParseValueErrors(t *testing.T) {
	for _, src := range []string{
		"[1, 2, 3]", // does not fill 2 rows
		"[[1, 2], [3]]",
		`"text"`,
		"[[1, 2], 3]",
		"[1, [2]]",
		"x",
		"[1,",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseValue(src, 2, 0)
			assert.True(t, errors.Is(err, ErrInvalidValue), "%v", err)
		})
	}

	_, err := ParseValue("[[1, 2], [3, 4]]", 4, 1)
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestToMatrixNull(t *testing.T) {
	_, err := ToMatrix(cty.NullVal(cty.Number), 0, 0)
	assert.True(t, errors.Is(err, ErrNoValue))

	_, err = ToMatrix(cty.UnknownVal(cty.Number), 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidValue))
}
