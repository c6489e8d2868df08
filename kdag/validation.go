package kdag

import "fmt"

// ValidateOrder checks that order lists every node at most once and that each
// non-absent child appears before its parent. Children outside order are
// reported as violations too.
func ValidateOrder[N comparable](order []N, deps func(N) []N) error {
	var zero N
	pos := make(map[N]int, len(order))
	for i, n := range order {
		if n == zero {
			return fmt.Errorf("%w: absent node at position %d", ErrOrderViolation, i)
		}
		if j, dup := pos[n]; dup {
			return fmt.Errorf("%w: node at position %d repeats position %d", ErrOrderViolation, i, j)
		}
		pos[n] = i
	}

	for i, n := range order {
		for k, child := range deps(n) {
			if child == zero {
				continue
			}
			j, ok := pos[child]
			switch {
			case !ok:
				return fmt.Errorf("%w: child %d of node %d is not in the order", ErrOrderViolation, k, i)
			case j >= i:
				return fmt.Errorf("%w: child %d of node %d sits at position %d", ErrOrderViolation, k, i, j)
			}
		}
	}
	return nil
}

// Depth returns the number of nodes on the longest child chain of a valid
// order. An empty order has depth zero.
func Depth[N comparable](order []N, deps func(N) []N) int {
	var zero N
	depth := make(map[N]int, len(order))
	longest := 0
	for _, n := range order {
		d := 1
		for _, child := range deps(n) {
			if child == zero {
				continue
			}
			if cd := depth[child] + 1; cd > d {
				d = cd
			}
		}
		depth[n] = d
		if d > longest {
			longest = d
		}
	}
	return longest
}
