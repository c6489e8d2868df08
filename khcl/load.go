// Package khcl loads function definitions written in HCL.
//
//	input "x" {
//	  rows  = 2
//	  value = [2, 3]
//	}
//	input "y" { value = 4 }
//	let "s" { value = sum(x) }
//	output "z" { value = s * y }
//
// Inputs become symbols, lets become shared sub-expressions and outputs are
// the function's outputs. Expressions support + - * /, unary minus, constant
// list literals and the functions sum, sin, cos, exp, log, sqrt, tanh, square,
// pow, mtimes, transpose, vec, vertcat, horzcat and reshape.
package khcl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"go.uber.org/multierr"
	"golang.org/x/exp/maps"

	"github.com/birdayz/kfunc"
	"github.com/birdayz/kfunc/kdag"
	"github.com/birdayz/kfunc/kexpr"
	"github.com/birdayz/kfunc/kmatrix"
)

type fileSchema struct {
	Inputs  []inputBlock  `hcl:"input,block"`
	Lets    []letBlock    `hcl:"let,block"`
	Outputs []outputBlock `hcl:"output,block"`
}

type inputBlock struct {
	Name  string         `hcl:"name,label"`
	Rows  *int           `hcl:"rows,optional"`
	Cols  *int           `hcl:"cols,optional"`
	Value hcl.Expression `hcl:"value,optional"`
}

type letBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

type outputBlock struct {
	Name  string         `hcl:"name,label"`
	Value hcl.Expression `hcl:"value"`
}

// Input is a declared input. Value is nil when the file gives no default.
type Input struct {
	Name  string
	MX    kexpr.MX
	Value *kmatrix.Matrix
}

type Output struct {
	Name string
	MX   kexpr.MX
}

// Definition is a loaded definition file.
type Definition struct {
	Filename string
	Inputs   []Input
	Outputs  []Output
}

// LoadFile reads and loads the definition file at path.
func LoadFile(path string) (*Definition, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %v", ErrSyntax, path, diags)
	}
	return load(file.Body, path)
}

// Parse loads a definition from src. filename is used in error messages.
func Parse(src []byte, filename string) (*Definition, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %v", ErrSyntax, filename, diags)
	}
	return load(file.Body, filename)
}

func load(body hcl.Body, filename string) (*Definition, error) {
	var schema fileSchema
	if diags := gohcl.DecodeBody(body, nil, &schema); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %v", ErrSyntax, filename, diags)
	}

	def := &Definition{Filename: filename}
	c := &converter{
		scope:  make(map[string]kexpr.MX, len(schema.Inputs)+len(schema.Lets)),
		broken: make(map[string]bool),
	}
	var errs error
	declare := func(kind, name string) bool {
		if _, dup := c.scope[name]; dup || c.broken[name] {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s %q", ErrDuplicateName, kind, name))
			return false
		}
		return true
	}

	for _, in := range schema.Inputs {
		if !declare("input", in.Name) {
			continue
		}
		x, value, err := declareInput(in)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("input %q: %w", in.Name, err))
			c.broken[in.Name] = true
			continue
		}
		c.scope[in.Name] = x
		def.Inputs = append(def.Inputs, Input{Name: in.Name, MX: x, Value: value})
	}

	lets := make(map[string]hcl.Expression, len(schema.Lets))
	var roots []string
	for _, l := range schema.Lets {
		if _, dup := lets[l.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%w: let %q", ErrDuplicateName, l.Name))
			continue
		}
		if !declare("let", l.Name) {
			continue
		}
		lets[l.Name] = l.Value
		roots = append(roots, l.Name)
	}
	order, err := letOrder(lets, roots)
	if err != nil {
		return nil, multierr.Append(errs, err)
	}
	for _, name := range order {
		x, err := c.convert(lets[name])
		if err != nil {
			errs = multierr.Append(errs, reportable(fmt.Sprintf("let %q", name), err))
			c.broken[name] = true
			continue
		}
		c.scope[name] = x
	}

	seen := make(map[string]bool, len(schema.Outputs))
	for _, out := range schema.Outputs {
		if seen[out.Name] {
			errs = multierr.Append(errs, fmt.Errorf("%w: output %q", ErrDuplicateName, out.Name))
			continue
		}
		seen[out.Name] = true
		x, err := c.convert(out.Value)
		if err != nil {
			errs = multierr.Append(errs, reportable(fmt.Sprintf("output %q", out.Name), err))
			continue
		}
		def.Outputs = append(def.Outputs, Output{Name: out.Name, MX: x})
	}

	if errs != nil {
		return nil, errs
	}
	return def, nil
}

func declareInput(in inputBlock) (kexpr.MX, *kmatrix.Matrix, error) {
	rows, cols := 0, 0
	if in.Rows != nil {
		rows = *in.Rows
	}
	if in.Cols != nil {
		cols = *in.Cols
	}
	if rows < 0 || cols < 0 {
		return kexpr.MX{}, nil, fmt.Errorf("%w: negative dimension", ErrInvalidValue)
	}

	v, diags := in.Value.Value(nil)
	if diags.HasErrors() {
		return kexpr.MX{}, nil, diags
	}
	if v.IsNull() {
		if in.Rows == nil {
			rows = 1
		}
		if in.Cols == nil {
			cols = 1
		}
		return kexpr.Symbol(in.Name, rows, cols), nil, nil
	}
	m, err := ToMatrix(v, rows, cols)
	if err != nil {
		return kexpr.MX{}, nil, err
	}
	return kexpr.Symbol(in.Name, m.Rows(), m.Cols()), m, nil
}

// letOrder sorts lets so that every let follows the lets it references.
func letOrder(lets map[string]hcl.Expression, roots []string) ([]string, error) {
	s := kdag.Sorter[string]{
		Deps: func(name string) []string {
			var deps []string
			for _, tr := range lets[name].Variables() {
				if ref := tr.RootName(); lets[ref] != nil {
					deps = append(deps, ref)
				}
			}
			return deps
		},
	}
	order, err := s.Sort(roots)
	if errors.Is(err, kdag.ErrCycleDetected) {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}
	return order, err
}

// reportable drops errors caused by an earlier failed definition and prefixes
// the rest.
func reportable(what string, err error) error {
	var out error
	for _, e := range multierr.Errors(err) {
		if errors.Is(e, errBroken) {
			continue
		}
		out = multierr.Append(out, fmt.Errorf("%s: %w", what, e))
	}
	return out
}

// Function declares a kfunc.Function over the definition's inputs and
// outputs, named after the file.
func (d *Definition) Function(opts ...kfunc.Option) (*kfunc.Function, error) {
	inputs := make([]kexpr.MX, len(d.Inputs))
	for i, in := range d.Inputs {
		inputs[i] = in.MX
	}
	outputs := make([]kexpr.MX, len(d.Outputs))
	for i, out := range d.Outputs {
		outputs[i] = out.MX
	}
	opts = append([]kfunc.Option{kfunc.WithName(d.Filename)}, opts...)
	return kfunc.New(inputs, outputs, opts...)
}

// InputIndex returns the position of the named input.
func (d *Definition) InputIndex(name string) (int, bool) {
	for i, in := range d.Inputs {
		if in.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Values returns the default input values. overrides replace defaults by
// input name.
func (d *Definition) Values(overrides map[string]*kmatrix.Matrix) ([]*kmatrix.Matrix, error) {
	out := make([]*kmatrix.Matrix, len(d.Inputs))
	var errs error
	names := maps.Keys(overrides)
	sort.Strings(names)
	for _, name := range names {
		if _, ok := d.InputIndex(name); !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: input %q", ErrUnknownReference, name))
		}
	}
	for i, in := range d.Inputs {
		v := in.Value
		if o, ok := overrides[in.Name]; ok {
			v = o
		}
		if v == nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: input %q", ErrNoValue, in.Name))
			continue
		}
		if v.Rows() != in.MX.Size1() || v.Cols() != in.MX.Size2() {
			errs = multierr.Append(errs, fmt.Errorf("%w: input %q is %s, value is %dx%d",
				ErrInvalidValue, in.Name, in.MX.Dims(), v.Rows(), v.Cols()))
			continue
		}
		out[i] = v
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}
