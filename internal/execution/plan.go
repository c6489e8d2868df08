package execution

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/birdayz/kfunc/kdag"
	"github.com/birdayz/kfunc/kexpr"
	"github.com/birdayz/kfunc/kmatrix"
)

// Absent marks a child slot without an operand.
const Absent = -1

// Record is one step of a Plan. Its buffers are allocated when the plan is
// built and reused by every evaluation.
type Record struct {
	MX kexpr.MX

	Val *kmatrix.Matrix
	Fwd []*kmatrix.Matrix // one per forward direction
	Adj []*kmatrix.Matrix // one per adjoint direction

	// Ch holds the plan position of each operand, or Absent.
	Ch []int

	// Args aliases Val/Fwd/Adj of this record and of its children.
	Args kexpr.Args
}

// PlanConfig holds configuration for building a Plan.
type PlanConfig struct {
	ForwardDirections int
	AdjointDirections int
	// MaxNodes limits the plan size, see kdag.Sorter.
	MaxNodes int
	Logger   logr.Logger
}

// Plan is the compiled, buffer-wired form of an expression graph with declared
// inputs and outputs. A Plan is not safe for concurrent use.
type Plan struct {
	Records     []*Record
	InputSlots  []int
	OutputSlots []int

	nfdir, nadir int
	free         []kexpr.MX
	depth        int
	log          logr.Logger
}

// BuildPlan validates the declared inputs and outputs, sorts the graph and
// wires one record per node.
func BuildPlan(inputs, outputs []kexpr.MX, cfg PlanConfig) (*Plan, error) {
	if cfg.ForwardDirections < 0 || cfg.AdjointDirections < 0 {
		return nil, fmt.Errorf("%w: negative direction count", ErrTooManyDirections)
	}
	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	if err := ValidateDeclarations(inputs, outputs); err != nil {
		return nil, err
	}

	roots := make([]kexpr.Node, 0, len(inputs)+len(outputs))
	for _, x := range inputs {
		roots = append(roots, x.Node())
	}
	for _, x := range outputs {
		roots = append(roots, x.Node())
	}
	sorter := kdag.Sorter[kexpr.Node]{Deps: children, MaxNodes: cfg.MaxNodes}
	order, err := sorter.Sort(roots)
	if err != nil {
		return nil, fmt.Errorf("sort expression graph: %w", err)
	}

	p := &Plan{
		Records: make([]*Record, len(order)),
		nfdir:   cfg.ForwardDirections,
		nadir:   cfg.AdjointDirections,
		depth:   kdag.Depth(order, children),
		log:     log,
	}

	// node -> slot, scoped to this build
	slots := make(map[kexpr.Node]int, len(order))
	for i, n := range order {
		slots[n] = i
		r := &Record{
			MX:  kexpr.Wrap(n),
			Val: kmatrix.New(n.Sparsity()),
			Fwd: make([]*kmatrix.Matrix, p.nfdir),
			Adj: make([]*kmatrix.Matrix, p.nadir),
			Ch:  make([]int, n.NumDeps()),
		}
		for d := range r.Fwd {
			r.Fwd[d] = kmatrix.New(n.Sparsity())
		}
		for d := range r.Adj {
			r.Adj[d] = kmatrix.New(n.Sparsity())
		}
		for k := range r.Ch {
			dep := n.Dep(k)
			if dep.IsNull() {
				r.Ch[k] = Absent
				continue
			}
			slot, ok := slots[dep.Node()]
			if !ok {
				return nil, fmt.Errorf("%w: operand %d of record %d is not ordered before it", ErrInvariantViolation, k, i)
			}
			r.Ch[k] = slot
		}
		p.Records[i] = r
		p.wire(r)

		if n.IsSymbolic() {
			p.free = append(p.free, r.MX)
		}
	}

	p.InputSlots = make([]int, len(inputs))
	for i, x := range inputs {
		p.InputSlots[i] = slots[x.Node()]
	}
	p.OutputSlots = make([]int, len(outputs))
	for i, x := range outputs {
		p.OutputSlots[i] = slots[x.Node()]
	}
	p.free = freeSymbols(p.free, inputs)

	log.V(1).Info("plan built",
		"records", len(p.Records),
		"depth", p.depth,
		"inputs", len(inputs),
		"outputs", len(outputs),
		"fwdDirections", p.nfdir,
		"adjDirections", p.nadir,
	)
	for _, s := range p.free {
		log.Info("free symbol evaluates as zero", "symbol", s.String())
	}
	return p, nil
}

// ValidateDeclarations checks that every input is a distinct symbolic leaf
// and that no output is absent. Errors are *ConstructionError.
func ValidateDeclarations(inputs, outputs []kexpr.MX) error {
	seen := make(map[kexpr.Node]int, len(inputs))
	for i, x := range inputs {
		switch {
		case x.IsNull():
			return &ConstructionError{Role: RoleInput, Position: i, Err: ErrNullInput}
		case !x.IsSymbolic():
			return &ConstructionError{Role: RoleInput, Position: i, Err: ErrNonSymbolicInput}
		}
		if j, dup := seen[x.Node()]; dup {
			return &ConstructionError{Role: RoleInput, Position: i, Err: fmt.Errorf("%w: same symbol as input #%d", ErrDuplicateInput, j)}
		}
		seen[x.Node()] = i
	}
	for i, x := range outputs {
		if x.IsNull() {
			return &ConstructionError{Role: RoleOutput, Position: i, Err: ErrNullOutput}
		}
	}
	return nil
}

func children(n kexpr.Node) []kexpr.Node {
	deps := make([]kexpr.Node, n.NumDeps())
	for i := range deps {
		deps[i] = n.Dep(i).Node()
	}
	return deps
}

func freeSymbols(symbols, inputs []kexpr.MX) []kexpr.MX {
	declared := make(map[kexpr.Node]bool, len(inputs))
	for _, x := range inputs {
		declared[x.Node()] = true
	}
	var free []kexpr.MX
	for _, s := range symbols {
		if !declared[s.Node()] {
			free = append(free, s)
		}
	}
	return free
}

// wire points the record's Args at its own buffers and those of its children.
// It runs once per build; evaluation never rewires.
func (p *Plan) wire(r *Record) {
	nd := len(r.Ch)
	a := &r.Args
	a.Input = make([][]float64, nd)
	a.FwdSeed = make([][][]float64, nd)
	a.AdjSens = make([][][]float64, nd)
	a.Output = r.Val.Data()
	a.FwdSens = data(r.Fwd)
	a.AdjSeed = data(r.Adj)
	for k, slot := range r.Ch {
		if slot == Absent {
			continue
		}
		child := p.Records[slot]
		a.Input[k] = child.Val.Data()
		a.FwdSeed[k] = data(child.Fwd)
		a.AdjSens[k] = data(child.Adj)
	}
}

func data(ms []*kmatrix.Matrix) [][]float64 {
	out := make([][]float64, len(ms))
	for i, m := range ms {
		out[i] = m.Data()
	}
	return out
}

// ForwardDirections returns the number of tangent buffers per record.
func (p *Plan) ForwardDirections() int { return p.nfdir }

// AdjointDirections returns the number of adjoint buffers per record.
func (p *Plan) AdjointDirections() int { return p.nadir }

// FreeSymbols returns symbolic nodes reachable from the outputs that are not
// declared inputs. They evaluate as zero.
func (p *Plan) FreeSymbols() []kexpr.MX { return append([]kexpr.MX(nil), p.free...) }

// Depth returns the length of the longest operand chain.
func (p *Plan) Depth() int { return p.depth }

// Input returns the record of input i.
func (p *Plan) Input(i int) *Record { return p.Records[p.InputSlots[i]] }

// Output returns the record of output i.
func (p *Plan) Output(i int) *Record { return p.Records[p.OutputSlots[i]] }
