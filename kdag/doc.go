// Package kdag orders the nodes of an expression DAG for execution.
//
// # Overview
//
// Expression graphs are built bottom-up and never mutated, so kdag does not own
// the graph. A Sorter is handed a root set and a function returning the ordered
// children of a node, and produces a children-first (post-order) sequence that
// an evaluator can walk front to back for forward sweeps and back to front for
// reverse sweeps.
//
// # Basic Usage
//
//	sorter := kdag.Sorter[kexpr.Node]{
//	    Deps: func(n kexpr.Node) []kexpr.Node {
//	        deps := make([]kexpr.Node, n.NumDeps())
//	        for i := range deps {
//	            deps[i] = n.Dep(i).Node()
//	        }
//	        return deps
//	    },
//	}
//
//	order, err := sorter.Sort(roots)
//	if err != nil {
//	    return err
//	}
//
// # Ordering Guarantees
//
//   - Every node reachable from a root is emitted exactly once, however many
//     parents share it.
//   - A node is emitted after all of its children.
//   - Roots are visited in the given order and children in declared order, so
//     identical inputs give identical orders.
//   - Absent children (the zero value of N) are skipped.
//
// # Traversal
//
// The depth-first traversal keeps its own stack of frames instead of recursing,
// so chains of tens of thousands of nodes sort without growing the goroutine
// stack. Visit state lives in a map scoped to one Sort call; nodes carry no
// scratch fields and can be shared by concurrent sorts.
//
// # Error Handling
//
// All errors wrap a sentinel and can be checked with errors.Is:
//
//	order, err := sorter.Sort(roots)
//	if errors.Is(err, kdag.ErrCycleDetected) {
//	    // Deps describes a cyclic graph
//	}
//
// Sentinel errors:
//   - ErrCycleDetected: a node was reached again from one of its descendants
//   - ErrInvalidTopology: the order would exceed MaxNodes
//   - ErrOrderViolation: ValidateOrder found a child after its parent or a
//     repeated node
//
// # Performance
//
// Sorting is O(V + E) time and O(V) memory. See builder_bench_test.go.
package kdag
