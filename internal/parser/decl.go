package parser

import (
	"github.com/popeyeotaku/pyc6t/internal/symtab"
	"github.com/popeyeotaku/pyc6t/internal/token"
	"github.com/popeyeotaku/pyc6t/internal/types"
)

// typeKeywords is the fixed base-type keyword set, per spec §4.3's
// specifier grammar.
var typeKeywords = map[token.Label]types.Elem{
	"int": types.IntElem, "char": types.CharElem,
	"float": types.FloatElem, "double": types.DoubleElem,
}

// classKeywords maps a storage-class keyword to its symtab.Storage.
var classKeywords = map[token.Label]symtab.Storage{
	"auto": symtab.Auto, "register": symtab.Register,
	"static": symtab.Static, "extern": symtab.Extern,
}

// grabClass consumes a leading storage-class keyword if present.
func (p *Parser) grabClass() (symtab.Storage, bool) {
	tok, ok := p.tok.Match("auto", "register", "static", "extern")
	if !ok {
		return 0, false
	}
	return classKeywords[tok.Label], true
}

// grabType consumes a base-type specifier: one of the scalar keywords, or
// `struct tag`, per spec §4.3. Returns ok=false if no specifier is
// present (the caller context decides whether that implies int-by-default
// or "not a declaration").
func (p *Parser) grabType() (types.TypeString, bool) {
	if tok, ok := p.tok.Match("int", "char", "float", "double"); ok {
		return types.TypeString{typeKeywords[tok.Label]}, true
	}
	if _, ok := p.tok.Match("struct"); ok {
		nameTok, ok := p.tok.Match(token.Name)
		if !ok {
			p.errorf(p.tok.Line(), "missing struct tag name")
			return types.TypeString{types.IntElem}, true
		}
		return p.structType(nameTok.Value.(string)), true
	}
	return nil, false
}

// structType resolves a struct tag reference, defining a zero-size
// forward-reference placeholder if the tag hasn't been seen yet, per spec
// §4.3's "forward-reference support" for pointers to an as-yet-undefined
// struct.
func (p *Parser) structType(tag string) types.TypeString {
	if sym, ok := p.tags.Lookup(tag); ok && sym.Storage == symtab.StructTag {
		return types.TypeString{types.StructElem(tag, sym.Type.Sizeof())}
	}
	if _, ok := p.tok.Match("{"); ok {
		return p.defineStruct(tag)
	}
	p.tags.Define(&symtab.Symbol{Name: tag, Storage: symtab.StructTag,
		Type: types.TypeString{types.StructElem(tag, 0)}})
	return types.TypeString{types.StructElem(tag, 0)}
}

// defineStruct parses `{ member-decls } ` immediately after `struct tag`
// and lays out each member at a sequentially increasing byte offset
// (spec §4.3: byte-addressed target, no alignment padding), registering
// both the tag (with its final size) and every member in the flat tag
// table.
func (p *Parser) defineStruct(tag string) types.TypeString {
	offset := 0
	for {
		if _, ok := p.tok.Match("}"); ok {
			break
		}
		base, ok := p.grabType()
		if !ok {
			p.errorf(p.tok.Line(), "missing type in struct member declaration")
			p.skipToSemi()
			continue
		}
		for {
			name, typ, _, line := p.declarator(base)
			sz := typ.Sizeof()
			p.tags.Define(&symtab.Symbol{Name: name, Storage: symtab.Member,
				Type: typ, Offset: offset})
			offset += sz
			_ = line
			if _, ok := p.tok.Match(","); !ok {
				break
			}
		}
		p.need(";")
	}
	p.need(";")
	p.tags.Define(&symtab.Symbol{Name: tag, Storage: symtab.StructTag,
		Type: types.TypeString{types.StructElem(tag, offset)}, Offset: offset})
	return types.TypeString{types.StructElem(tag, offset)}
}

func (p *Parser) skipToSemi() {
	for {
		tok := p.tok.Next()
		if tok.Label == ";" || tok.Label == token.EOF {
			return
		}
	}
}

// declarator parses one declarator atop base, per the precedence C6T
// inherits from K&R: postfix array dimensions or a single function-call
// parens bind to the identifier before a leading run of '*' wraps the
// result, so `*a[3]` is "array of 3 pointer to base", not "pointer to
// array of 3 base".
func (p *Parser) declarator(base types.TypeString) (name string, typ types.TypeString, isFunc bool, line int) {
	n, t, f, l, _ := p.declaratorParams(base)
	return n, t, f, l
}

// declaratorParams is declarator's full form, additionally returning the
// old-style parameter name list captured from a function declarator's
// parens (spec §4.3's K&R-style function definitions: the parens hold
// bare names, whose types are supplied by separate declarations between
// the parens and the function body).
func (p *Parser) declaratorParams(base types.TypeString) (name string, typ types.TypeString, isFunc bool, line int, params []string) {
	stars := 0
	for {
		if _, ok := p.tok.Match("*"); ok {
			stars++
			continue
		}
		break
	}
	nameTok, ok := p.tok.Match(token.Name)
	if !ok {
		p.errorf(p.tok.Line(), "missing declarator name")
		return "", append(types.TypeString{}, base...), false, p.tok.Line(), nil
	}
	name = nameTok.Value.(string)
	line = nameTok.Line

	var dims []int
	for {
		if _, ok := p.tok.Match("["); ok {
			n := 0
			if _, closed := p.tok.Match("]"); closed {
				dims = append(dims, 0)
				continue
			}
			n = int(p.ConstExpr(0))
			p.need("]")
			dims = append(dims, n)
			continue
		}
		break
	}
	if len(dims) == 0 {
		if _, ok := p.tok.Match("("); ok {
			isFunc = true
			if _, ok := p.tok.Match(")"); !ok {
				for {
					pt, ok := p.tok.Match(token.Name)
					if !ok {
						p.errorf(p.tok.Line(), "missing parameter name")
						break
					}
					params = append(params, pt.Value.(string))
					if _, ok := p.tok.Match(","); !ok {
						break
					}
				}
				p.need(")")
			}
		}
	}

	typ = append(types.TypeString{}, base...)
	for i := 0; i < stars; i++ {
		typ = append(types.TypeString{types.PointElem}, typ...)
	}
	if isFunc {
		typ = append(types.TypeString{types.FuncElem}, typ...)
	} else {
		for i := len(dims) - 1; i >= 0; i-- {
			typ = append(types.TypeString{types.ArrayElem(dims[i])}, typ...)
		}
	}
	return name, typ, isFunc, line, params
}
