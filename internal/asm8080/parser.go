package asm8080

import (
	"fmt"
	"strings"
)

// parser wraps a lexer with one token of lookahead, used by both the
// statement-level parser here and parseExpr in expr.go.
type parser struct {
	lex *lexer
	cur tok
}

func newParser(src string) *parser {
	p := &parser{lex: newLexer(src)}
	p.advance()
	return p
}

func (p *parser) advance() { p.cur = p.lex.next() }

func (p *parser) skipEOLs() {
	for p.cur.kind == tokEOL {
		p.advance()
	}
}

// stmtKind enumerates the statement forms of spec §4.5.
type stmtKind int

const (
	stmtLabel stmtKind = iota
	stmtEqu
	stmtSeg
	stmtByte
	stmtWord
	stmtStorage
	stmtCommon
	stmtExport
	stmtInstr
	stmtEOF
)

// operand is one parsed instruction/directive operand: either a plain
// expression or an ArgMode selector baked in via the expression's own
// leading '<'/'>'.
type operand struct {
	expr exprVal
}

type stmt struct {
	kind    stmtKind
	line    int
	name    string    // label/equ/segment/common name
	expr    exprVal   // equ value, or storage fill
	list    []exprVal // .byte/.word operands, or .storage [count, fill]
	names   []string  // .export name list
	mnemonic string
	operands []operand
}

// parseStatement consumes and returns the next logical statement, or
// kind==stmtEOF at end of input. Blank lines are consumed silently.
func (p *parser) parseStatement() (stmt, error) {
	p.skipEOLs()
	if p.cur.kind == tokEOF {
		return stmt{kind: stmtEOF}, nil
	}
	line := p.cur.line

	if p.cur.kind == tokDot {
		return p.parseDirective(line)
	}

	if p.cur.kind == tokIdent {
		name := p.cur.text
		save := *p
		saveLex := *p.lex
		p.advance()
		if p.cur.kind == tokPunct && p.cur.text == ":" {
			p.advance()
			return stmt{kind: stmtLabel, line: line, name: name}, nil
		}
		if p.cur.kind == tokPunct && p.cur.text == "=" {
			p.advance()
			v, err := p.parseExpr()
			if err != nil {
				return stmt{}, err
			}
			if err := p.expectEOL(); err != nil {
				return stmt{}, err
			}
			return stmt{kind: stmtEqu, line: line, name: name, expr: v}, nil
		}
		if p.cur.kind == tokDot && p.cur.text == ".equ" {
			p.advance()
			v, err := p.parseExpr()
			if err != nil {
				return stmt{}, err
			}
			if err := p.expectEOL(); err != nil {
				return stmt{}, err
			}
			return stmt{kind: stmtEqu, line: line, name: name, expr: v}, nil
		}
		// Not a label or equ: it's an instruction mnemonic. Restore and
		// reparse as such.
		*p = save
		*p.lex = saveLex
		return p.parseInstruction(line)
	}

	return stmt{}, fmt.Errorf("line %d: unexpected token %q", line, p.cur.text)
}

func (p *parser) expectEOL() error {
	if p.cur.kind == tokEOL || p.cur.kind == tokEOF {
		if p.cur.kind == tokEOL {
			p.advance()
		}
		return nil
	}
	return fmt.Errorf("line %d: expected end of statement, got %q", p.cur.line, p.cur.text)
}

func (p *parser) parseDirective(line int) (stmt, error) {
	name := strings.ToLower(p.cur.text)
	p.advance()
	switch name {
	case ".text", ".data", ".bss":
		if err := p.expectEOL(); err != nil {
			return stmt{}, err
		}
		return stmt{kind: stmtSeg, line: line, name: name}, nil
	case ".byte", ".word":
		list, err := p.parseExprList()
		if err != nil {
			return stmt{}, err
		}
		k := stmtByte
		if name == ".word" {
			k = stmtWord
		}
		return stmt{kind: k, line: line, list: list}, nil
	case ".storage":
		list, err := p.parseExprList()
		if err != nil {
			return stmt{}, err
		}
		if len(list) == 0 || len(list) > 2 {
			return stmt{}, fmt.Errorf("line %d: .storage takes count[, fill]", line)
		}
		return stmt{kind: stmtStorage, line: line, list: list}, nil
	case ".common":
		if p.cur.kind != tokIdent {
			return stmt{}, fmt.Errorf("line %d: .common expects a name", line)
		}
		symName := p.cur.text
		p.advance()
		if !(p.cur.kind == tokPunct && p.cur.text == ",") {
			return stmt{}, fmt.Errorf("line %d: .common expects ', size'", line)
		}
		p.advance()
		size, err := p.parseExpr()
		if err != nil {
			return stmt{}, err
		}
		if err := p.expectEOL(); err != nil {
			return stmt{}, err
		}
		return stmt{kind: stmtCommon, line: line, name: symName, expr: size}, nil
	case ".export":
		var names []string
		for {
			if p.cur.kind != tokIdent {
				return stmt{}, fmt.Errorf("line %d: .export expects a name", line)
			}
			names = append(names, p.cur.text)
			p.advance()
			if p.cur.kind == tokPunct && p.cur.text == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectEOL(); err != nil {
			return stmt{}, err
		}
		return stmt{kind: stmtExport, line: line, names: names}, nil
	default:
		return stmt{}, fmt.Errorf("line %d: unknown directive %s", line, name)
	}
}

func (p *parser) parseExprList() ([]exprVal, error) {
	var out []exprVal
	for {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if p.cur.kind == tokPunct && p.cur.text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectEOL(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseInstruction(line int) (stmt, error) {
	if p.cur.kind != tokIdent {
		return stmt{}, fmt.Errorf("line %d: expected instruction mnemonic, got %q", line, p.cur.text)
	}
	mnemonic := strings.ToLower(p.cur.text)
	p.advance()
	var ops []operand
	if p.cur.kind != tokEOL && p.cur.kind != tokEOF {
		for {
			v, err := p.parseExpr()
			if err != nil {
				return stmt{}, err
			}
			ops = append(ops, operand{expr: v})
			if p.cur.kind == tokPunct && p.cur.text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectEOL(); err != nil {
		return stmt{}, err
	}
	return stmt{kind: stmtInstr, line: line, mnemonic: mnemonic, operands: ops}, nil
}
