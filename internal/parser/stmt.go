package parser

import (
	"github.com/popeyeotaku/pyc6t/internal/ast"
	"github.com/popeyeotaku/pyc6t/internal/symtab"
	"github.com/popeyeotaku/pyc6t/internal/token"
	"github.com/popeyeotaku/pyc6t/internal/types"
)

// externalDecl parses one top-level declaration or function definition,
// per spec §4.3: a specifier (optionally typeless, defaulting to int, the
// classic K&R allowance for function definitions) followed by one or more
// comma-separated declarators, each either a data definition (optional
// initializer, terminated by ';') or -- for a single function declarator
// -- an old-style K&R parameter block and a braced body.
func (p *Parser) externalDecl() {
	class, hasClass := p.grabClass()
	base, hasType := p.grabType()
	if !hasType {
		base = types.TypeString{types.IntElem}
	}
	if !hasClass {
		class = symtab.Extern
	}

	name, typ, isFunc, line, params := p.declaratorParams(base)
	if name == "" {
		p.skipToSemi()
		return
	}

	if isFunc {
		if _, ok := p.tok.Match(";"); ok {
			// Forward declaration only, e.g. `int f();`.
			p.defineGlobal(name, typ, symtab.Extern, line, nil)
			return
		}
		p.funcDef(name, typ, line, params)
		return
	}

	p.dataDef(name, typ, class, line)
	for {
		if _, ok := p.tok.Match(","); !ok {
			break
		}
		name2, typ2, _, line2 := p.declarator(base)
		p.dataDef(name2, typ2, class, line2)
	}
	p.need(";")
}

// dataDef defines one top-level (or static-local) data symbol, emitting
// its storage reservation and optional scalar initializer into the
// current segment, per spec §4.4's data-segment conventions.
func (p *Parser) dataDef(name string, typ types.TypeString, class symtab.Storage, line int) {
	label := p.defineGlobal(name, typ, class, line, nil)
	if label == "" {
		return
	}
	if _, ok := p.tok.Match("="); !ok {
		p.reserveGlobal(label, typ, class)
		return
	}
	p.seg(".data")
	if class == symtab.Extern {
		p.emitCommand(".export", label)
	}
	p.emitLabel(label)
	val := p.Expression()
	p.emitScalarInit(val, typ)
}

// defineGlobal installs a file-scope symbol and returns its assembly
// label (or "" if redefinition makes no sense to re-emit).
func (p *Parser) defineGlobal(name string, typ types.TypeString, class symtab.Storage, line int, _ any) string {
	label := name
	if class == symtab.Static {
		label = p.nextStaticLabel("_S")
	}
	sym := &symtab.Symbol{Name: name, Storage: class, Type: typ, Label: label}
	p.syms.Define(sym)
	return label
}

func (p *Parser) reserveGlobal(label string, typ types.TypeString, class symtab.Storage) {
	sz := typ.Sizeof()
	p.seg(".bss")
	if class == symtab.Extern {
		p.emitCommand(".common", label, itoa(sz))
		return
	}
	p.emitLabel(label)
	p.emitCommand(".ds", itoa(sz))
}

func itoa(n int) string {
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	if n == 0 {
		i--
		buf[i] = '0'
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// emitScalarInit emits a single-value data-segment initializer, per spec
// §4.3's restriction that C6T global initializers are single constants
// (no brace-aggregate syntax): a char-sized type emits one .dc byte, a
// float/double or pointer/int emits the constant's word(s) via .dw, and a
// string initializer for a char array emits its bytes directly.
func (p *Parser) emitScalarInit(val *ast.Node, typ types.TypeString) {
	if val.Label == "string" {
		b := val.Value.([]byte)
		args := make([]string, len(b))
		for i, c := range b {
			args[i] = itoa(int(c))
		}
		p.emitCommand(".dc", args...)
		return
	}
	if val.Label != "con" {
		p.errorf(val.Line, "initializer is not a constant")
		return
	}
	v, _ := val.Value.(int64)
	if isByte(typ) {
		p.emitCommand(".dc", itoa(int(v)))
		return
	}
	p.emitCommand(".dw", itoa(int(v)))
}

// funcDef parses a complete K&R-style function definition: the old-style
// bare parameter name list was already consumed by declaratorParams; here
// we parse the following parameter-type declarations, assign them frame
// offsets/registers, then parse the braced body.
func (p *Parser) funcDef(name string, typ types.TypeString, line int, params []string) {
	sym := &symtab.Symbol{Name: name, Storage: symtab.Extern, Type: typ, Label: name, Exported: true}
	p.syms.Define(sym)

	p.syms.EnterFunction()
	p.autoOffset = 0
	p.paramOff = paramOffset
	p.regUsed = 0
	p.curRet = typ[1:]

	paramTypes := map[string]types.TypeString{}
	for {
		tok := p.tok.Peek()
		if tok.Label == "{" {
			break
		}
		class, hasClass := p.grabClass()
		base, hasType := p.grabType()
		if !hasType {
			if !hasClass {
				break
			}
			base = types.TypeString{types.IntElem}
		}
		for {
			pname, ptyp, _, pline := p.declarator(base)
			paramTypes[pname] = ptyp
			_ = class
			_ = pline
			if _, ok := p.tok.Match(","); !ok {
				break
			}
		}
		p.need(";")
	}

	for _, pn := range params {
		pt, ok := paramTypes[pn]
		if !ok {
			pt = types.TypeString{types.IntElem}
		}
		p.syms.Define(&symtab.Symbol{Name: pn, Storage: symtab.Auto, Type: pt,
			Offset: p.paramOff, Local: true})
		p.paramOff += pt.Sizeof()
	}

	p.seg(".text")
	p.emitLabel(name)
	if sym.Exported {
		p.emitCommand(".export", name)
	}

	// The frame size .func must reserve below the frame pointer isn't known
	// until the whole body has been parsed: spec §4.3 allows local
	// declarations at the top of any block, not just the function's own,
	// and a nested `{ … }` (parsed by block, below) can extend
	// p.autoOffset further. .func's argument is reserved as a fixed-width
	// placeholder and patched in place once the body -- nested blocks
	// included -- is fully parsed.
	p.need("{")
	fsPos := p.reserveFrameSize()
	p.blockDecls()
	p.blockStmts()
	p.patchFrameSize(fsPos, -p.autoOffset)

	p.emitCommand("retnull")
	undefined := p.syms.LeaveFunction()
	for _, u := range undefined {
		p.errorf(line, "undefined symbol %s", u.Name)
	}
}

// blockDecls parses the leading declarations* of a `{` declarations*
// statement* `}` body (the `{` having already been consumed), per spec
// §4.3's block-scoping rule: local declarations may only appear at the
// top of a block. Split from blockStmts so funcDef can learn the body's
// full auto-frame size before emitting the function prologue.
func (p *Parser) blockDecls() {
	for {
		tok := p.tok.Peek()
		if tok.Label == "}" || tok.Label == token.EOF {
			break
		}
		_, isClass := classKeywords[tok.Label]
		_, isType := typeKeywords[tok.Label]
		if isClass || isType || tok.Label == "struct" {
			p.localDecl()
			continue
		}
		break
	}
}

// block parses a nested compound statement, `{` already consumed by the
// caller: declarations* statement* `}`, per spec §4.3's "local
// declarations may only appear at the top of a block" -- a rule scoped
// to each block, not just a function's own. Names declared here join the
// enclosing function's symbol table directly (this dialect never pops a
// nested block's scope; symtab.Table only clears locals at
// LeaveFunction), and any auto locals here keep extending p.autoOffset,
// which is why funcDef doesn't patch its .func frame size until the
// entire body -- nested blocks included -- has gone by.
func (p *Parser) block() {
	p.blockDecls()
	p.blockStmts()
}

// blockStmts parses the statement* `}` remainder of a body, after
// blockDecls has consumed its leading declarations.
func (p *Parser) blockStmts() {
	for {
		if _, ok := p.tok.Match("}"); ok {
			return
		}
		if p.tok.Peek().Label == token.EOF {
			p.errorf(p.tok.Line(), "missing closing brace")
			return
		}
		p.statement()
	}
}

// localDecl parses one local variable declaration line, allocating an
// auto frame slot or a hardware register per spec §4.3's register
// budget: the first maxRegVars `register`-class locals get a register
// slot; any further register request demotes to auto storage.
func (p *Parser) localDecl() {
	class, hasClass := p.grabClass()
	if !hasClass {
		class = symtab.Auto
	}
	base, hasType := p.grabType()
	if !hasType {
		base = types.TypeString{types.IntElem}
	}
	for {
		name, typ, _, line := p.declarator(base)
		p.defineLocal(name, typ, class, line)
		if _, ok := p.tok.Match(","); !ok {
			break
		}
	}
	p.need(";")
}

func (p *Parser) defineLocal(name string, typ types.TypeString, class symtab.Storage, line int) {
	if class == symtab.Static {
		label := p.nextStaticLabel("_S")
		p.syms.Define(&symtab.Symbol{Name: name, Storage: symtab.Static, Type: typ, Label: label, Local: false})
		p.reserveGlobal(label, typ, symtab.Static)
		p.seg(".text")
		return
	}
	if class == symtab.Register && p.regUsed < maxRegVars {
		reg := p.regUsed
		p.regUsed++
		p.syms.Define(&symtab.Symbol{Name: name, Storage: symtab.Register, Type: typ, Offset: reg, Local: true})
		return
	}
	sz := typ.Sizeof()
	p.autoOffset -= sz
	p.syms.Define(&symtab.Symbol{Name: name, Storage: symtab.Auto, Type: typ, Offset: p.autoOffset, Local: true})
}
