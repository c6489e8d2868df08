package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/birdayz/kfunc"
	"github.com/birdayz/kfunc/kexpr"
	"github.com/birdayz/kfunc/khcl"
	"github.com/birdayz/kfunc/kmatrix"
	"github.com/birdayz/kfunc/pkg/log"
)

type app struct {
	out     io.Writer
	log     logr.Logger
	verbose bool

	set      []string
	fwd      []string
	adj      []string
	input    string
	symbolic bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, log: logr.Discard()}

	root := &cobra.Command{
		Use:          "kfunc",
		Short:        "Evaluate and differentiate functions defined in HCL",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log = log.NewLogr(cmd.ErrOrStderr(), a.verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log plan construction and evaluation")
	root.PersistentFlags().StringArrayVar(&a.set, "set", nil, "override an input value, name=value")

	printCmd := &cobra.Command{
		Use:   "print FILE",
		Short: "Print the execution plan of a definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(args[0])
		},
	}

	evalCmd := &cobra.Command{
		Use:   "eval FILE...",
		Short: "Evaluate definitions, optionally with forward and adjoint seeds",
		Long: `Evaluate every file with its default input values.

Each --fwd name=value adds a forward direction seeding the named input; the
other inputs get zero seeds. Each --adj name=value adds an adjoint direction
seeding the named output. Files are evaluated concurrently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.evalFiles(cmd.Context(), args)
		},
	}
	evalCmd.Flags().StringArrayVar(&a.fwd, "fwd", nil, "forward seed for one input, name=value")
	evalCmd.Flags().StringArrayVar(&a.adj, "adj", nil, "adjoint seed for one output, name=value")

	jacCmd := &cobra.Command{
		Use:   "jac FILE",
		Short: "Print the Jacobians of all outputs with respect to one input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.jac(args[0])
		},
	}
	jacCmd.Flags().StringVar(&a.input, "input", "", "input to differentiate with respect to")
	jacCmd.Flags().BoolVar(&a.symbolic, "symbolic", false, "print the Jacobian expressions instead of their values")
	_ = jacCmd.MarkFlagRequired("input")

	root.AddCommand(printCmd, evalCmd, jacCmd)
	return root
}

func (a *app) print(path string) error {
	def, err := khcl.LoadFile(path)
	if err != nil {
		return err
	}
	f, err := def.Function(kfunc.WithLogr(a.log))
	if err != nil {
		return err
	}
	if err := f.Build(); err != nil {
		return err
	}
	if err := f.Print(a.out); err != nil {
		return err
	}
	for _, out := range def.Outputs {
		fmt.Fprintf(a.out, "output %s = %s\n", out.Name, out.MX.Dims())
	}
	return nil
}

func (a *app) evalFiles(ctx context.Context, paths []string) error {
	results := make([]bytes.Buffer, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := a.eval(&results[i], path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i := range results {
		if len(paths) > 1 {
			fmt.Fprintf(a.out, "# %s\n", paths[i])
		}
		if _, err := results[i].WriteTo(a.out); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) eval(w io.Writer, path string) error {
	def, err := khcl.LoadFile(path)
	if err != nil {
		return err
	}
	values, err := a.values(def)
	if err != nil {
		return err
	}
	fwd, err := assignments(a.fwd, inputLookup(def))
	if err != nil {
		return fmt.Errorf("--fwd: %w", err)
	}
	adj, err := assignments(a.adj, outputLookup(def))
	if err != nil {
		return fmt.Errorf("--adj: %w", err)
	}

	f, err := def.Function(
		kfunc.WithLogr(a.log),
		kfunc.WithForwardDirections(len(fwd)),
		kfunc.WithAdjointDirections(len(adj)),
	)
	if err != nil {
		return err
	}
	if err := f.Build(); err != nil {
		return err
	}

	req := f.NewRequest(len(fwd), len(adj))
	res := f.NewResult(len(fwd), len(adj))
	copy(req.Inputs, values)
	for d, s := range fwd {
		req.FwdSeeds[d][s.index] = s.value
	}
	for d, s := range adj {
		req.AdjSeeds[d][s.index] = s.value
	}
	if err := f.Evaluate(req, res); err != nil {
		return err
	}

	for j, out := range def.Outputs {
		fmt.Fprintf(w, "%s = %s\n", out.Name, res.Outputs[j])
	}
	for d, s := range fwd {
		for j, out := range def.Outputs {
			fmt.Fprintf(w, "d%s/d%s = %s\n", out.Name, s.name, res.FwdSens[d][j])
		}
	}
	for d, s := range adj {
		for i, in := range def.Inputs {
			fmt.Fprintf(w, "adj(%s)/d%s = %s\n", s.name, in.Name, res.AdjSens[d][i])
		}
	}
	return nil
}

func (a *app) jac(path string) error {
	def, err := khcl.LoadFile(path)
	if err != nil {
		return err
	}
	i, ok := def.InputIndex(a.input)
	if !ok {
		return fmt.Errorf("%w: input %q", khcl.ErrUnknownReference, a.input)
	}
	f, err := def.Function(
		kfunc.WithLogr(a.log),
		kfunc.WithAdvisoryHandler(func(err error) {
			fmt.Fprintf(a.out, "warning: %v\n", err)
		}),
	)
	if err != nil {
		return err
	}
	if err := f.Build(); err != nil {
		return err
	}
	jacs, err := f.JacAll(i)
	if err != nil {
		return err
	}

	if a.symbolic {
		for j, out := range def.Outputs {
			fmt.Fprintf(a.out, "d%s/d%s = %s\n", out.Name, a.input, jacs[j])
		}
		return nil
	}

	values, err := a.values(def)
	if err != nil {
		return err
	}
	inputs := make([]kexpr.MX, len(def.Inputs))
	for k, in := range def.Inputs {
		inputs[k] = in.MX
	}
	g, err := kfunc.New(inputs, jacs, kfunc.WithName(path+"/jac"), kfunc.WithLogr(a.log))
	if err != nil {
		return err
	}
	outs, err := g.Eval(values...)
	if err != nil {
		return err
	}
	for j, out := range def.Outputs {
		fmt.Fprintf(a.out, "d%s/d%s = %s\n", out.Name, a.input, outs[j])
	}
	return nil
}

// values returns the input values of def with --set overrides applied.
func (a *app) values(def *khcl.Definition) ([]*kmatrix.Matrix, error) {
	set, err := assignments(a.set, inputLookup(def))
	if err != nil {
		return nil, fmt.Errorf("--set: %w", err)
	}
	overrides := make(map[string]*kmatrix.Matrix, len(set))
	for _, s := range set {
		overrides[s.name] = s.value
	}
	return def.Values(overrides)
}

type assignment struct {
	name  string
	index int
	value *kmatrix.Matrix
}

type lookup func(name string) (int, kexpr.MX, bool)

func inputLookup(def *khcl.Definition) lookup {
	return func(name string) (int, kexpr.MX, bool) {
		i, ok := def.InputIndex(name)
		if !ok {
			return 0, kexpr.MX{}, false
		}
		return i, def.Inputs[i].MX, true
	}
}

func outputLookup(def *khcl.Definition) lookup {
	return func(name string) (int, kexpr.MX, bool) {
		for j, out := range def.Outputs {
			if out.Name == name {
				return j, out.MX, true
			}
		}
		return 0, kexpr.MX{}, false
	}
}

// assignments parses name=value flags. Values take the shape of the named
// input or output.
func assignments(flags []string, find lookup) ([]assignment, error) {
	out := make([]assignment, 0, len(flags))
	for _, f := range flags {
		name, src, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not name=value", khcl.ErrInvalidValue, f)
		}
		name = strings.TrimSpace(name)
		i, x, ok := find(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", khcl.ErrUnknownReference, name)
		}
		m, err := khcl.ParseValue(src, x.Size1(), x.Size2())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, assignment{name: name, index: i, value: m})
	}
	return out, nil
}
