package kdag

import (
	"errors"
	"fmt"
)

// DefaultMaxNodes bounds the number of nodes a Sorter emits when MaxNodes is
// not set.
const DefaultMaxNodes = 1 << 20

const (
	unvisited uint8 = iota
	onStack
	emitted
)

// Sorter computes a children-first order of the nodes reachable from a set of
// roots. N is usually a pointer or interface handle; its zero value stands for
// an absent child and is skipped.
//
// A Sorter holds no state between calls and may be reused.
type Sorter[N comparable] struct {
	// Deps returns the ordered children of a node.
	Deps func(N) []N
	// MaxNodes limits the size of the emitted order. Zero means DefaultMaxNodes.
	MaxNodes int
}

type frame[N comparable] struct {
	node N
	deps []N
	next int
}

// Sort returns every node reachable from roots exactly once, each after all of
// its children. Roots are visited in the given order and children in their
// declared order, so the result is deterministic.
//
// The traversal uses an explicit stack, so graph depth is bounded only by
// memory.
func (s *Sorter[N]) Sort(roots []N) ([]N, error) {
	limit := s.MaxNodes
	if limit <= 0 {
		limit = DefaultMaxNodes
	}

	var zero N
	state := make(map[N]uint8)
	defer clear(state)

	var (
		order []N
		stack []frame[N]
	)
	for _, root := range roots {
		if root == zero || state[root] != unvisited {
			continue
		}
		state[root] = onStack
		stack = append(stack, frame[N]{node: root, deps: s.Deps(root)})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.deps) {
				child := top.deps[top.next]
				top.next++
				if child == zero {
					continue
				}
				switch state[child] {
				case onStack:
					return nil, fmt.Errorf("%w: node reached again from one of its descendants", ErrCycleDetected)
				case emitted:
					continue
				}
				state[child] = onStack
				stack = append(stack, frame[N]{node: child, deps: s.Deps(child)})
				continue
			}

			state[top.node] = emitted
			order = append(order, top.node)
			stack = stack[:len(stack)-1]
			if len(order) > limit {
				return nil, fmt.Errorf("%w: node count exceeds maximum %d", ErrInvalidTopology, limit)
			}
		}
	}
	return order, nil
}

// Sentinel errors
var (
	ErrCycleDetected   = errors.New("cycle detected in DAG")
	ErrInvalidTopology = errors.New("invalid topology")
	ErrOrderViolation  = errors.New("order violation")
)
