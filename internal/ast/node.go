// Package ast implements the C6T expression node and the node-builder
// rules of spec §4.3 ("Node builder (build)"): type inference, lvalue
// checking, implicit conversions (array/function decay, integer/float
// promotion, pointer-arithmetic scaling), and eager constant folding.
//
// Grounded on _examples/original_source/expr.py's Node/Leaf/build/confold,
// generalized from a Python MutableSequence dataclass into a Go struct
// with an explicit Children slice, in the style of the teacher's
// gmofishsauce-wut4/lang/yparse/ast.go node representation.
package ast

import (
	"github.com/popeyeotaku/pyc6t/internal/symtab"
	"github.com/popeyeotaku/pyc6t/internal/types"
)

// Node is an expression tree node: {label, line, type string, children,
// optional leaf value}, per spec §3's "Expression node".
type Node struct {
	Label    string
	Line     int
	Type     types.TypeString
	Children []*Node
	Value    any // leaf payload: int64, float64, string, []byte, *symtab.Symbol
}

// needLval is the set of operators spec §4.3 requires an lvalue first
// child for: assignments, address-of, post/pre-inc/dec, '.'/'->'.
var needLval = map[string]bool{
	"assign": true, "asnadd": true, "asnsub": true, "asnmult": true,
	"asndiv": true, "asnmod": true, "asnrshift": true, "asnlshift": true,
	"asnand": true, "asneor": true, "asnor": true,
	"addr": true, "postinc": true, "postdec": true, "preinc": true,
	"predec": true, "dot": true, "arrow": true,
}

// isLval is the set of node labels that themselves denote an lvalue.
var isLval = map[string]bool{
	"deref": true, "name": true, "dot": true, "arrow": true,
}

// IsLval reports whether n denotes an lvalue.
func (n *Node) IsLval() bool {
	return isLval[n.Label]
}

// additiveOps enumerates which operators participate in the
// pointer-arithmetic-scaling and int/float-promotion rules below.
var additiveOps = map[string]bool{"add": true, "sub": true}

var comparisonOps = map[string]bool{
	"less": true, "great": true, "lequ": true, "gequ": true,
	"equ": true, "nequ": true,
}

var assignOps = map[string]bool{
	"assign": true, "asnadd": true, "asnsub": true, "asnmult": true,
	"asndiv": true, "asnmod": true, "asnrshift": true, "asnlshift": true,
	"asnand": true, "asneor": true, "asnor": true,
}

// foldable is the set of operators eagerly constant-folded when every
// child is a 'con' leaf, per spec §4.3 item 8.
var foldable = map[string]func(a, b int64) int64{
	"add":    func(a, b int64) int64 { return a + b },
	"sub":    func(a, b int64) int64 { return a - b },
	"mult":   func(a, b int64) int64 { return a * b },
	"div":    func(a, b int64) int64 { return divTrunc(a, b) },
	"mod":    func(a, b int64) int64 { return modTrunc(a, b) },
	"and":    func(a, b int64) int64 { return a & b },
	"or":     func(a, b int64) int64 { return a | b },
	"eor":    func(a, b int64) int64 { return a ^ b },
	"lshift": func(a, b int64) int64 { return a << uint(b&0xF) },
	"rshift": func(a, b int64) int64 { return a >> uint(b&0xF) },
}

var foldableUnary = map[string]func(a int64) int64{
	"neg":    func(a int64) int64 { return -a },
	"compl":  func(a int64) int64 { return ^a },
	"lognot": func(a int64) int64 { return boolToInt(a == 0) },
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// divTrunc and modTrunc implement truncating-toward-zero integer division,
// per spec §8's testable property, independent of Go's own truncating "/"
// semantics for negative operands (Go already truncates toward zero for
// int64, so these simply document and lock in that behavior at the 16-bit
// wraparound width C6T constants live at).
func divTrunc(a, b int64) int64 { return a / b }
func modTrunc(a, b int64) int64 { return a % b }

func word(v int64) int64 { return v & 0xFFFF }

// Leaf constructs a leaf node carrying value.
func Leaf(label string, line int, typ types.TypeString, value any) *Node {
	return &Node{Label: label, Line: line, Type: typ, Value: value}
}

// errFn is supplied by the parser so ast can report diagnostics without
// importing the parser (which imports ast): a narrow error-reporting seam,
// matching how the teacher keeps its AST package free of parser state.
type errFn func(line int, format string, args ...any)

// Build constructs a new non-leaf node from label and children, applying
// every rule in spec §4.3's "Node builder (build)". report is called for
// any diagnostic (a nil report is legal and silently drops diagnostics,
// useful for tests that only care about the resulting tree shape).
func Build(report errFn, line int, label string, children []*Node) *Node {
	if report == nil {
		report = func(int, string, ...any) {}
	}

	// Step 1: sizeof folds immediately and returns, per spec §4.3 item 1.
	if label == "sizeof" {
		return Leaf("con", children[0].Line, types.TypeString{types.IntElem},
			int64(children[0].Type.Sizeof())&0xFFFF)
	}

	// label == "" is the "flush pending conversions" no-op used by
	// Expression to funnel the final subtree through Build once more;
	// it passes its single child through unchanged (matches expr.py's
	// `if label is None: return children[0]`).
	if label == "" {
		return children[0]
	}

	node := &Node{Label: label, Line: line, Children: children}

	// Step 4a: array/function decay happens before type inference, since
	// decay changes the effective operand types inference reads.
	decayed := make([]*Node, len(children))
	for i, c := range children {
		decayed[i] = decay(c)
	}
	node.Children = decayed

	// Step 2: infer result type.
	node.Type = inferType(node)

	// Step 3: lvalue check.
	if needLval[label] {
		if len(node.Children) == 0 || !node.Children[0].IsLval() {
			report(line, "illegal lvalue for operator %s", label)
		}
	}

	// Step 4b/4c: integer<->float promotion and pointer scaling for
	// additive-like binary operators (not for comparisons/assignments,
	// per spec §4.3 item 4's final clause).
	if len(node.Children) == 2 && !comparisonOps[label] && !assignOps[label] {
		applyPromotion(report, node)
		if additiveOps[label] {
			applyPointerScale(node)
		}
	}

	// Step 5: relabel signed comparisons to unsigned when operands are
	// pointers.
	if comparisonOps[label] && len(node.Children) == 2 {
		if node.Children[0].Type.IsPointer() || node.Children[1].Type.IsPointer() {
			node.Label = unsignedRelabel(label)
		}
	}

	// Step 6: normalise post/pre inc/dec to two children: the lvalue, and
	// a constant step (sizeof(pointee) if pointer, else 1).
	switch label {
	case "postinc", "postdec", "preinc", "predec":
		if len(node.Children) == 1 {
			lv := node.Children[0]
			step := int64(1)
			if lv.Type.IsPointer() {
				step = int64(lv.Type.Pointee().Sizeof())
			}
			node.Children = append(node.Children, Leaf("con", line,
				types.TypeString{types.IntElem}, step))
			node.Type = lv.Type
		}
	}

	// Step 7: special cases.
	switch label {
	case "call":
		if len(node.Children) > 0 {
			fn := node.Children[0]
			if fn.Type.IsFunction() {
				node.Type = fn.Type[1:]
			} else if fn.Type.IsPointer() && fn.Type.Pointee().IsFunction() {
				node.Type = fn.Type.Pointee()[1:]
			}
		}
	case "cond":
		if len(node.Children) == 3 {
			node.Type = commonType(node.Children[1].Type, node.Children[2].Type)
		}
	case "deref":
		if len(node.Children) == 1 && node.Children[0].Label == "addr" {
			return node.Children[0].Children[0]
		}
	case "addr":
		if len(node.Children) == 1 && node.Children[0].Label == "deref" {
			return node.Children[0].Children[0]
		}
	}

	// Floating-operator legality check.
	checkFloatLegality(report, node)

	// Step 8: constant fold.
	return confold(node)
}

func unsignedRelabel(label string) string {
	switch label {
	case "less":
		return "uless"
	case "great":
		return "ugreat"
	case "lequ":
		return "ulequ"
	case "gequ":
		return "ugequ"
	default:
		return label
	}
}

// decay implements array decay and function decay, spec §4.3 item 4.
func decay(n *Node) *Node {
	if n == nil || n.Label == "addr" || len(n.Type) == 0 {
		return n
	}
	if n.Type[0].Kind == types.Array {
		return &Node{
			Label: "addr", Line: n.Line,
			Type:     n.Type[1:].WithPointer(),
			Children: []*Node{n},
		}
	}
	if n.Type.IsFunction() {
		return &Node{
			Label: "addr", Line: n.Line,
			Type:     n.Type.WithPointer(),
			Children: []*Node{n},
		}
	}
	return n
}

// inferType implements spec §4.3 item 2's result-type inference: one
// operand copies its type; no operands infers int; two operands with any
// float infers double; otherwise a pointer operand's type is inherited;
// else int.
func inferType(n *Node) types.TypeString {
	switch len(n.Children) {
	case 0:
		return types.TypeString{types.IntElem}
	case 1:
		return n.Children[0].Type.Clone()
	default:
		anyFloat := false
		for _, c := range n.Children {
			if c.Type.IsFloating() {
				anyFloat = true
			}
		}
		if anyFloat {
			return types.TypeString{types.DoubleElem}
		}
		for _, c := range n.Children {
			if c.Type.IsPointer() {
				return c.Type.Clone()
			}
		}
		return types.TypeString{types.IntElem}
	}
}

// applyPromotion wraps any non-floating operand of a binary arithmetic
// node in toflt when the other operand is floating, per spec §4.3 item
// 4's integer<->float promotion rule.
func applyPromotion(report errFn, n *Node) {
	anyFloat := false
	for _, c := range n.Children {
		if c.Type.IsFloating() {
			anyFloat = true
		}
	}
	if !anyFloat {
		return
	}
	for i, c := range n.Children {
		if !c.Type.IsFloating() {
			if !c.Type.IsIntegral() {
				continue
			}
			n.Children[i] = &Node{
				Label: "toflt", Line: c.Line,
				Type:     types.TypeString{types.DoubleElem},
				Children: []*Node{c},
			}
		}
	}
}

// checkFloatLegality reports spec §4.3's "illegal operation for floating
// type" diagnostic: any integer-only operator (the bitwise operators,
// the shifts, and mod; div is not listed) whose operands are floating.
var floatIllegal = map[string]bool{
	"and": true, "or": true, "eor": true, "lshift": true, "rshift": true,
	"mod": true,
}

func checkFloatLegality(report errFn, n *Node) {
	if !floatIllegal[n.Label] {
		return
	}
	for _, c := range n.Children {
		if c.Type.IsFloating() {
			report(n.Line, "illegal operation for floating type")
			return
		}
	}
}

// applyPointerScale implements spec §4.3 item 4's pointer-arithmetic
// scaling: for additive operators with one pointer operand, the other
// operand is multiplied by sizeof(pointee).
func applyPointerScale(n *Node) {
	if len(n.Children) != 2 {
		return
	}
	l, r := n.Children[0], n.Children[1]
	lp, rp := l.Type.IsPointer(), r.Type.IsPointer()
	if lp == rp {
		return // neither or both pointers: no scaling (ptr-ptr sub is unscaled at this layer)
	}
	var ptr, other *Node
	var otherIdx int
	if lp {
		ptr, other, otherIdx = l, r, 1
	} else {
		ptr, other, otherIdx = r, l, 0
	}
	scale := int64(ptr.Type.Pointee().Sizeof())
	if scale == 1 {
		return
	}
	scaled := &Node{
		Label: "mult", Line: other.Line,
		Type:     types.TypeString{types.IntElem},
		Children: []*Node{other, Leaf("con", other.Line, types.TypeString{types.IntElem}, scale)},
	}
	n.Children[otherIdx] = confold(scaled)
	n.Type = ptr.Type.Clone()
}

// commonType picks the type of a 'cond' (ternary) node's two branches: if
// either is floating the result is double; else the first non-int (e.g. a
// pointer) wins; else int.
func commonType(a, b types.TypeString) types.TypeString {
	if a.IsFloating() || b.IsFloating() {
		return types.TypeString{types.DoubleElem}
	}
	if a.IsPointer() {
		return a.Clone()
	}
	if b.IsPointer() {
		return b.Clone()
	}
	return types.TypeString{types.IntElem}
}

// confold applies eager constant folding: if every child is a 'con' leaf
// and the operator is foldable, returns a single 'con' leaf with the
// 16-bit-wrapped arithmetic result, per spec §4.3 item 8 / §8's testable
// property. Otherwise returns n unchanged.
func confold(n *Node) *Node {
	allCon := len(n.Children) > 0
	for _, c := range n.Children {
		if c.Label != "con" {
			allCon = false
			break
		}
	}
	if !allCon {
		return n
	}
	if len(n.Children) == 2 {
		fn, ok := foldable[n.Label]
		if !ok {
			return n
		}
		a, aok := n.Children[0].Value.(int64)
		b, bok := n.Children[1].Value.(int64)
		if !aok || !bok {
			return n
		}
		if (n.Label == "div" || n.Label == "mod") && b == 0 {
			return n // division by zero: leave unfolded, caught later as a runtime op
		}
		return Leaf("con", n.Line, types.TypeString{types.IntElem}, word(fn(a, b)))
	}
	if len(n.Children) == 1 {
		fn, ok := foldableUnary[n.Label]
		if !ok {
			return n
		}
		a, aok := n.Children[0].Value.(int64)
		if !aok {
			return n
		}
		return Leaf("con", n.Line, types.TypeString{types.IntElem}, word(fn(a)))
	}
	return n
}

// Sizeof is a small convenience re-exported for callers (the specifier
// parser computing array dimensions) that only need a type's byte size
// without building an expression node around it.
func Sizeof(t types.TypeString) int { return t.Sizeof() }

// SymbolNode builds a 'name' leaf for a resolved symbol reference, styled
// after expr.py's exp1 'name' case.
func SymbolNode(line int, sym *symtab.Symbol) *Node {
	return Leaf("name", line, sym.Type.Clone(), sym)
}
