package parser

import (
	"github.com/popeyeotaku/pyc6t/internal/ast"
	"github.com/popeyeotaku/pyc6t/internal/symtab"
	"github.com/popeyeotaku/pyc6t/internal/token"
	"github.com/popeyeotaku/pyc6t/internal/types"
)

// These tables map each precedence level's token spellings to the
// ast.Build label they produce, grounded on expr.py's exp3-exp12 tables.
var (
	mulOps   = map[token.Label]string{"*": "mult", "/": "div", "%": "mod"}
	addOps   = map[token.Label]string{"+": "add", "-": "sub"}
	shiftOps = map[token.Label]string{">>": "rshift", "<<": "lshift"}
	relOps   = map[token.Label]string{"<": "less", ">": "great", "<=": "lequ", ">=": "gequ"}
	eqOps    = map[token.Label]string{"==": "equ", "!=": "nequ"}
	asnOps   = map[token.Label]string{
		"=": "assign", "=+": "asnadd", "=-": "asnsub", "=*": "asnmult",
		"=/": "asndiv", "=%": "asnmod", "=>>": "asnrshift", "=<<": "asnlshift",
		"=&": "asnand", "=^": "asneor", "=|": "asnor",
	}
	unaryOps = map[token.Label]string{
		"&": "addr", "-": "neg", "!": "lognot", "~": "compl",
		"++": "preinc", "--": "predec", "sizeof": "sizeof",
	}
)

func keys(m map[token.Label]string) []token.Label {
	out := make([]token.Label, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func (p *Parser) build(line int, label string, children []*ast.Node) *ast.Node {
	return ast.Build(p.errorf, line, label, children)
}

// Expression parses a full comma-expression, per spec §4.3's 15-level
// precedence table, and flushes it through Build once more (expr.py's
// "expression" wrapper).
func (p *Parser) Expression() *ast.Node {
	n := p.exp15()
	return p.build(n.Line, "", []*ast.Node{n})
}

// ExpressionNoComma parses without seeing the top-level comma operator
// (K&R's exp14 level), for contexts where ',' is a separator.
func (p *Parser) ExpressionNoComma() *ast.Node {
	n := p.exp14()
	return p.build(n.Line, "", []*ast.Node{n})
}

// ConstExpr parses an expression and requires it fold to an integer
// constant, reporting and substituting a default otherwise.
func (p *Parser) ConstExpr(def int64) int64 {
	n := p.Expression()
	if n.Label != "con" {
		p.errorf(n.Line, "expression is not a constant")
		return def
	}
	v, _ := n.Value.(int64)
	return v
}

func (p *Parser) binary(lesser func() *ast.Node, ops map[token.Label]string) *ast.Node {
	node := lesser()
	for {
		tok, ok := p.tok.Match(keys(ops)...)
		if !ok {
			return node
		}
		node = p.build(tok.Line, ops[tok.Label], []*ast.Node{node, lesser()})
	}
}

func (p *Parser) exp15() *ast.Node { return p.binary(p.exp14, map[token.Label]string{",": "comma"}) }

func (p *Parser) exp14() *ast.Node {
	node := p.exp13()
	tok, ok := p.tok.Match(keys(asnOps)...)
	if ok {
		node = p.build(tok.Line, asnOps[tok.Label], []*ast.Node{node, p.exp14()})
	}
	return node
}

func (p *Parser) exp13() *ast.Node {
	node := p.exp12()
	for {
		if _, ok := p.tok.Match("?"); !ok {
			return node
		}
		line := p.tok.Line()
		left := p.exp12()
		p.need(":")
		right := p.exp12()
		node = p.build(line, "cond", []*ast.Node{node, left, right})
	}
}

func (p *Parser) exp12() *ast.Node {
	return p.binary(p.exp11, map[token.Label]string{"||": "logor"})
}
func (p *Parser) exp11() *ast.Node {
	return p.binary(p.exp10, map[token.Label]string{"&&": "logand"})
}
func (p *Parser) exp10() *ast.Node { return p.binary(p.exp9, map[token.Label]string{"|": "or"}) }
func (p *Parser) exp9() *ast.Node  { return p.binary(p.exp8, map[token.Label]string{"^": "eor"}) }
func (p *Parser) exp8() *ast.Node  { return p.binary(p.exp7, map[token.Label]string{"&": "and"}) }
func (p *Parser) exp7() *ast.Node  { return p.binary(p.exp6, eqOps) }
func (p *Parser) exp6() *ast.Node  { return p.binary(p.exp5, relOps) }
func (p *Parser) exp5() *ast.Node  { return p.binary(p.exp4, shiftOps) }
func (p *Parser) exp4() *ast.Node  { return p.binary(p.exp3, addOps) }
func (p *Parser) exp3() *ast.Node  { return p.binary(p.exp2, mulOps) }

func (p *Parser) exp2() *ast.Node {
	tok, ok := p.tok.Match(keys(unaryOps)...)
	if ok {
		return p.build(tok.Line, unaryOps[tok.Label], []*ast.Node{p.exp2()})
	}
	node := p.exp1()
	for {
		tok, ok := p.tok.Match("++", "--")
		if !ok {
			return node
		}
		label := "postinc"
		if tok.Label == "--" {
			label = "postdec"
		}
		node = p.build(tok.Line, label, []*ast.Node{node})
	}
}

// domember resolves a '.'/'->' field access against the flat tag table,
// per expr.py's domember: the member name must be a previously-declared
// struct member, whose tag carries the field's type and byte offset.
func (p *Parser) domember(line int, node *ast.Node, arrow bool, member string) *ast.Node {
	tag, ok := p.tags.Lookup(member)
	if !ok {
		p.errorf(line, "undefined member %s", member)
		return node
	}
	if tag.Storage != symtab.Member {
		p.errorf(line, "%s is not a struct member", member)
		return node
	}
	label := "dot"
	if arrow {
		label = "arrow"
	}
	offsetLeaf := ast.Leaf("name", line, tag.Type.Clone(), int64(tag.Offset))
	return p.build(line, label, []*ast.Node{node, offsetLeaf})
}

// exp1 parses a primary expression and its postfix call/index/member
// chain, per expr.py's exp1.
func (p *Parser) exp1() *ast.Node {
	tok, ok := p.tok.Match(token.Name, token.Con, token.Fcon, token.String, "(")
	if !ok {
		p.errorf(p.tok.Line(), "missing primary expression")
		tok = token.Token{Label: token.Con, Line: p.tok.Line(), Value: int64(1)}
	}

	var node *ast.Node
	switch tok.Label {
	case token.Name:
		name := tok.Value.(string)
		sym, ok := p.syms.Lookup(name)
		if !ok {
			if peek := p.tok.Peek(); peek.Label == "(" {
				sym = &symtab.Symbol{Name: name, Storage: symtab.Extern,
					Type: types.TypeString{types.FuncElem, types.IntElem}, Local: true}
			} else {
				sym = &symtab.Symbol{Name: name, Storage: symtab.Static,
					Type:      types.TypeString{types.ArrayElem(1), types.IntElem},
					Label:     p.nextStaticLabel("_U"),
					Local:     true, Undefined: true}
			}
			p.syms.Define(sym)
		}
		node = ast.SymbolNode(tok.Line, sym)
	case token.Con:
		node = ast.Leaf("con", tok.Line, types.TypeString{types.IntElem}, tok.Value)
	case token.Fcon:
		node = ast.Leaf("fcon", tok.Line, types.TypeString{types.DoubleElem}, tok.Value)
	case token.String:
		b := tok.Value.([]byte)
		node = ast.Leaf("string", tok.Line,
			types.TypeString{types.ArrayElem(len(b)), types.CharElem}, b)
	case "(":
		node = p.exp15()
		p.need(")")
	}

	for {
		tok, ok := p.tok.Match("(", "[", "->", ".")
		if !ok {
			return node
		}
		switch tok.Label {
		case "(":
			var args []*ast.Node
			if _, ok := p.tok.Match(")"); !ok {
				for {
					args = append(args, p.exp14())
					if _, ok := p.tok.Match(","); !ok {
						break
					}
				}
				p.need(")")
			}
			node = p.build(tok.Line, "call", append([]*ast.Node{node}, args...))
		case "[":
			idx := p.exp15()
			sum := p.build(tok.Line, "add", []*ast.Node{node, idx})
			node = p.build(tok.Line, "deref", []*ast.Node{sum})
			p.need("]")
		case "->", ".":
			mtok, ok := p.tok.Match(token.Name)
			if !ok {
				p.errorf(tok.Line, "missing member name")
				return node
			}
			node = p.domember(mtok.Line, node, tok.Label == "->", mtok.Value.(string))
		}
	}
}

// need consumes a required punctuation token, reporting an error if absent.
func (p *Parser) need(label token.Label) bool {
	if _, ok := p.tok.Match(label); ok {
		return true
	}
	p.errorf(p.tok.Line(), "missing %s", label)
	return false
}
