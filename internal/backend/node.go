// Package backend implements the 8080 code-generation backend of spec
// §4.4: IR-node conversion to 8080 idioms, Sethi-Ullman register-pressure
// tracking, the two-register (H/D) evaluation strategy, and IR command
// dispatch, driven by the JSON template scheme in internal/backend/template.
//
// Grounded on _examples/original_source/c8080.py's Code8080 (convert/
// regcount/asmnode/asmchildren/command) and backend.py's driver loop,
// restructured around internal/ir's node stack and internal/backend/
// template's data-driven matcher instead of c8080.py's inline Python
// match-statements.
package backend

import (
	"fmt"

	"github.com/popeyeotaku/pyc6t/internal/backend/template"
	"github.com/popeyeotaku/pyc6t/internal/ir"
)

// Node is a backend expression node: the converted, 8080-idiom form of an
// ir.Node, augmented with a cached Sethi-Ullman register count.
type Node struct {
	Label     string
	Value     any
	Children  []*Node
	converted bool
	regsUsed  *int
}

// NodeLabel, NodeValue, NodeChild, NodeChildCount implement
// template.MatchNode.
func (n *Node) NodeLabel() string      { return n.Label }
func (n *Node) NodeValue() any         { return n.Value }
func (n *Node) NodeChildCount() int    { return len(n.Children) }
func (n *Node) NodeChild(i int) template.MatchNode { return n.Children[i] }

// fromIR converts a parsed ir.Node (already fully reassembled by
// ir.Assemble) into an unconverted backend Node tree.
func fromIR(n *ir.Node) *Node {
	children := make([]*Node, len(n.Children))
	for i, c := range n.Children {
		children[i] = fromIR(c)
	}
	return &Node{Label: n.Label, Value: n.Value, Children: children}
}

// leaf constructs a childless backend node.
func leaf(label string, value any) *Node { return &Node{Label: label, Value: value} }

// asnBase maps a compound-assignment label to the underlying binary
// operator it applies, per spec §4.4's "asnOP -> store(lhs, OP(load(lhs),
// rhs))" rewrite.
var asnBase = map[string]string{
	"asnadd": "add", "asnsub": "sub", "asnmult": "mult", "asndiv": "div",
	"asnmod": "mod", "asnand": "and", "asnor": "or", "asneor": "eor",
	"asnlshift": "lshift", "asnrshift": "rshift",
}

// equalityOps rewrite to a zero-test over their difference, per spec
// §4.4: "equ/nequ -> log(sub(a,b)) or lognot(sub(a,b))".
var equalityOps = map[string]bool{"equ": true, "nequ": true}

// incDecOps are the operators whose IR form already carries an explicit
// step-size child (spec §4.3 step 6); the backend absorbs that child into
// the node's own inline value, per spec §4.4's "postinc/preinc/...
// absorb their step-size child into the node's inline value".
var incDecOps = map[string]bool{
	"postinc": true, "postdec": true, "preinc": true, "predec": true,
}

// Convert recursively rewrites node into 8080-idiom form. The result is
// memoised via the converted flag so repeated calls (the template
// matcher re-visiting shared subtrees) are cheap, per spec §4.4's
// "Node conversion" phase run once before matching.
func Convert(n *Node) *Node {
	if n.converted {
		return n
	}
	children := make([]*Node, len(n.Children))
	for i, c := range n.Children {
		children[i] = Convert(c)
	}

	var out *Node
	switch {
	case n.Label == "register":
		num, _ := n.Value.(int64)
		out = leaf("extern", fmt.Sprintf("reg%d", num))

	case asnBase[n.Label] != "":
		if len(children) != 2 {
			out = &Node{Label: n.Label, Children: children, Value: n.Value}
			break
		}
		lhs, rhs := children[0], children[1]
		op := &Node{Label: asnBase[n.Label], Children: []*Node{
			{Label: "load", Children: []*Node{lhs}},
			rhs,
		}}
		out = &Node{Label: "store", Children: []*Node{lhs, op}}

	case equalityOps[n.Label] && len(children) == 2:
		// equ(a,b) is (a-b)==0, so it rewrites through lognot (is-zero);
		// nequ(a,b) is (a-b)!=0, so it rewrites through log (is-nonzero).
		diff := &Node{Label: "sub", Children: children}
		lbl := "lognot"
		if n.Label == "nequ" {
			lbl = "log"
		}
		out = &Node{Label: lbl, Children: []*Node{diff}}

	case incDecOps[n.Label] && len(children) == 2:
		step, _ := children[1].Value.(int64)
		if step == 0 {
			if v, ok := asInt(children[1].Value); ok {
				step = v
			}
		}
		out = &Node{Label: n.Label, Children: []*Node{children[0]}, Value: step}

	case n.Label == "call":
		// Reshape (arg0, arg1, ..., func) into (func, arglist) where
		// arglist is a right-associative comma-chain, per spec §4.4.
		if len(children) == 0 {
			out = &Node{Label: "call", Value: n.Value}
			break
		}
		fn := children[len(children)-1]
		args := children[:len(children)-1]
		var chain *Node
		for i := len(args) - 1; i >= 0; i-- {
			if chain == nil {
				chain = args[i]
			} else {
				chain = &Node{Label: "comma", Children: []*Node{args[i], chain}}
			}
		}
		kids := []*Node{fn}
		if chain != nil {
			kids = append(kids, chain)
		}
		out = &Node{Label: "call", Children: kids, Value: n.Value}

	case n.Label == "logand" || n.Label == "logor":
		out = &Node{Label: n.Label, Children: children, Value: n.Value}

	default:
		out = &Node{Label: n.Label, Children: children, Value: n.Value}
	}

	out.converted = true
	return out
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		return int64(x), true
	}
	return 0, false
}
