package backend

// branchLabels is the set of node labels whose regs_used rule (spec
// §4.4's "Register budget") differs from the generic 0/1/N-children
// cases, grounded on c8080.py's regcount() match statement.
var branchLabels = map[string]bool{"brz": true, "bnz": true, "label": true}

// RegsUsed computes the Strahler/Sethi-Ullman register count of n: the
// minimum number of the two working registers (H, D) needed to evaluate
// n without spilling to the stack. Results are memoised on the node.
func RegsUsed(n *Node) int {
	if n.regsUsed != nil {
		return *n.regsUsed
	}
	childCounts := make([]int, len(n.Children))
	for i, c := range n.Children {
		childCounts[i] = RegsUsed(c)
	}

	var count int
	switch {
	case branchLabels[n.Label]:
		count = maxOf(childCounts)
	case n.Label == "call":
		if len(n.Children) == 0 {
			count = 1
		} else {
			args := childCounts[:len(childCounts)-1]
			fn := n.Children[len(n.Children)-1]
			count = maxOf(args)
			if fn.Label != "extern" {
				count += childCounts[len(childCounts)-1]
			}
		}
	default:
		switch len(n.Children) {
		case 0:
			count = 1
		case 1:
			count = childCounts[0]
		default:
			if allEqual(childCounts) {
				count = childCounts[0] + 1
			} else {
				count = maxOf(childCounts)
			}
		}
	}
	n.regsUsed = &count
	return count
}

func maxOf(xs []int) int {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func allEqual(xs []int) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
