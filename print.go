package kfunc

import (
	"fmt"
	"io"
)

// Print writes the execution plan, one "i_<slot> = <op>" line per node.
func (f *Function) Print(w io.Writer) error {
	if f.plan == nil {
		return ErrNotBuilt
	}
	return f.plan.Print(w)
}

func (f *Function) String() string {
	if f.plan == nil {
		return fmt.Sprintf("%s: %d inputs, %d outputs (not built)", f.name, len(f.inputs), len(f.outputs))
	}
	return f.plan.String()
}
