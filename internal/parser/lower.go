package parser

import (
	"github.com/popeyeotaku/pyc6t/internal/ast"
	"github.com/popeyeotaku/pyc6t/internal/symtab"
	"github.com/popeyeotaku/pyc6t/internal/types"
)

// lowerAddr lowers n, which must denote an lvalue, into the IR node that
// computes its address (never its loaded value): a storage-class leaf
// (register/auto/extern) for a bare name, or an add-of-offset chain for
// deref/dot/arrow, per spec §4.4's address/value split that the
// ast package's build() rule (spec §4.3) deliberately leaves to the
// backend-facing emission layer.
func (p *Parser) lowerAddr(n *ast.Node) *ast.Node {
	switch n.Label {
	case "name":
		sym := n.Value.(*symtab.Symbol)
		return p.symAddr(n.Line, sym)
	case "deref":
		return p.lowerValue(n.Children[0])
	case "dot":
		base := p.lowerAddr(n.Children[0])
		return p.addOffset(n.Line, base, n.Children[1])
	case "arrow":
		base := p.lowerValue(n.Children[0])
		return p.addOffset(n.Line, base, n.Children[1])
	default:
		p.errorf(n.Line, "internal: %s is not an lvalue", n.Label)
		return p.lowerValue(n)
	}
}

// addOffset builds the address-form add(base, offset) node, skipping the
// add entirely when offset is the zero constant.
func (p *Parser) addOffset(line int, base *ast.Node, offsetLeaf *ast.Node) *ast.Node {
	off, _ := offsetLeaf.Value.(int64)
	if off == 0 {
		return base
	}
	return &ast.Node{Label: "add", Line: line, Children: []*ast.Node{
		base, &ast.Node{Label: "con", Line: line, Value: off},
	}}
}

// symAddr lowers a symbol reference into its storage-class address node.
func (p *Parser) symAddr(line int, sym *symtab.Symbol) *ast.Node {
	switch sym.Storage {
	case symtab.Auto:
		return &ast.Node{Label: "auto", Line: line, Value: int64(sym.Offset)}
	case symtab.Register:
		return &ast.Node{Label: "register", Line: line, Value: int64(sym.Offset)}
	default: // Extern, Static, Member
		return &ast.Node{Label: "extern", Line: line, Value: sym.Label}
	}
}

// isByte reports whether t is a single-byte (char) scalar, selecting the
// cload/cstore byte-width IR ops instead of the word-width load/store.
func isByte(t types.TypeString) bool {
	return len(t) > 0 && t[0].Kind == types.Char
}

// lowerValue lowers n into the IR node that computes its runtime value
// (loading through an address where n denotes an lvalue).
func (p *Parser) lowerValue(n *ast.Node) *ast.Node {
	switch n.Label {
	case "con", "fcon":
		return &ast.Node{Label: n.Label, Line: n.Line, Value: n.Value}

	case "string":
		label := p.internString(n.Value.([]byte))
		return &ast.Node{Label: "extern", Line: n.Line, Value: label}

	case "name":
		addr := p.lowerAddr(n)
		return p.wrapLoad(n.Line, addr, n.Type)

	case "deref":
		addr := p.lowerValue(n.Children[0])
		return p.wrapLoad(n.Line, addr, n.Type)

	case "dot", "arrow":
		addr := p.lowerAddr(n)
		return p.wrapLoad(n.Line, addr, n.Type)

	case "addr":
		return p.lowerAddr(n.Children[0])

	case "assign":
		addr := p.lowerAddr(n.Children[0])
		val := p.lowerValue(n.Children[1])
		return p.wrapStore(n.Line, addr, val, n.Type)

	case "asnadd", "asnsub", "asnmult", "asndiv", "asnmod", "asnand",
		"asnor", "asneor", "asnlshift", "asnrshift":
		addr := p.lowerAddr(n.Children[0])
		val := p.lowerValue(n.Children[1])
		return &ast.Node{Label: n.Label, Line: n.Line, Children: []*ast.Node{addr, val}}

	case "postinc", "postdec", "preinc", "predec":
		addr := p.lowerAddr(n.Children[0])
		step := n.Children[1]
		return &ast.Node{Label: n.Label, Line: n.Line,
			Children: []*ast.Node{addr, {Label: "con", Line: n.Line, Value: step.Value}}}

	case "call":
		fn := p.lowerValue(n.Children[0])
		args := make([]*ast.Node, 0, len(n.Children)-1)
		for _, a := range n.Children[1:] {
			args = append(args, p.lowerValue(a))
		}
		// Convert expects (arg0,...,argN-1, fn) with fn last, so emit the
		// args first in the IR stream and the callee last.
		children := append(args, fn)
		return &ast.Node{Label: "call", Line: n.Line, Value: int64(len(args)), Children: children}

	case "cond":
		return &ast.Node{Label: "cond", Line: n.Line, Children: []*ast.Node{
			p.lowerValue(n.Children[0]), p.lowerValue(n.Children[1]), p.lowerValue(n.Children[2]),
		}}

	case "logand", "logor", "log", "lognot":
		children := make([]*ast.Node, len(n.Children))
		for i, c := range n.Children {
			children[i] = p.lowerValue(c)
		}
		return &ast.Node{Label: n.Label, Line: n.Line, Children: children, Value: n.Value}

	default:
		children := make([]*ast.Node, len(n.Children))
		for i, c := range n.Children {
			children[i] = p.lowerValue(c)
		}
		return &ast.Node{Label: n.Label, Line: n.Line, Children: children, Value: n.Value}
	}
}

// wrapLoad emits load or cload depending on the loaded type's width.
func (p *Parser) wrapLoad(line int, addr *ast.Node, t types.TypeString) *ast.Node {
	label := "load"
	if isByte(t) {
		label = "cload"
	}
	return &ast.Node{Label: label, Line: line, Children: []*ast.Node{addr}}
}

// wrapStore emits store or cstore depending on the stored type's width.
func (p *Parser) wrapStore(line int, addr, val *ast.Node, t types.TypeString) *ast.Node {
	label := "store"
	if isByte(t) {
		label = "cstore"
	}
	return &ast.Node{Label: label, Line: line, Children: []*ast.Node{addr, val}}
}

// EmitExpression lowers and serialises a full expression statement,
// emitting it as an "eval" command against the node it pushes.
func (p *Parser) EmitExpression(n *ast.Node) {
	p.emitNode(p.lowerValue(n))
	p.emitCommand("eval")
}
