package parser

import (
	"strings"

	"github.com/popeyeotaku/pyc6t/internal/ast"
	"github.com/popeyeotaku/pyc6t/internal/token"
)

// statement parses and emits one statement, per spec §4.3's statement
// dispatch: label/if/while/do/for/switch/case/default/break/continue/
// return/goto/block/expression-statement.
func (p *Parser) statement() {
	tok := p.tok.Peek()

	if tok.Label == token.Name {
		nameTok, _ := p.tok.Match(token.Name)
		if _, ok := p.tok.Match(":"); ok {
			p.emitLabel(nameTok.Value.(string))
			p.statement()
			return
		}
		p.tok.Unsee(nameTok)
	}

	switch tok.Label {
	case "{":
		p.tok.Match("{")
		p.block()
		return
	case "if":
		p.ifStmt()
		return
	case "while":
		p.whileStmt()
		return
	case "do":
		p.doStmt()
		return
	case "for":
		p.forStmt()
		return
	case "switch":
		p.switchStmt()
		return
	case "case":
		p.caseStmt()
		return
	case "default":
		p.defaultStmt()
		return
	case "break":
		p.tok.Match("break")
		p.need(";")
		if len(p.breakStack) == 0 {
			p.errorf(tok.Line, "break outside loop or switch")
			return
		}
		p.emitCommand("jmp", p.breakStack[len(p.breakStack)-1])
		return
	case "continue":
		p.tok.Match("continue")
		p.need(";")
		if len(p.continueStack) == 0 {
			p.errorf(tok.Line, "continue outside loop")
			return
		}
		p.emitCommand("jmp", p.continueStack[len(p.continueStack)-1])
		return
	case "return":
		p.tok.Match("return")
		if _, ok := p.tok.Match(";"); ok {
			p.emitCommand("retnull")
			return
		}
		val := p.Expression()
		p.need(";")
		p.emitNode(p.lowerValue(val))
		p.emitCommand("ret")
		return
	case "goto":
		p.tok.Match("goto")
		dest, ok := p.tok.Match(token.Name)
		p.need(";")
		if ok {
			p.emitCommand("jmp", dest.Value.(string))
		}
		return
	case ";":
		p.tok.Match(";")
		return
	}

	// Expression statement.
	val := p.Expression()
	p.need(";")
	p.EmitExpression(val)
}

// emitBranchZero lowers cond and emits a "brz" command branching to
// label when it evaluates to zero.
func (p *Parser) emitBranchZero(cond *ast.Node, label string) {
	p.emitNode(p.lowerValue(cond))
	p.emitCommand("brz", label)
}

func (p *Parser) ifStmt() {
	p.tok.Match("if")
	p.need("(")
	cond := p.Expression()
	p.need(")")
	elseLabel := p.nextLabel()
	p.emitBranchZero(cond, elseLabel)
	p.statement()
	if _, ok := p.tok.Match("else"); ok {
		doneLabel := p.nextLabel()
		p.emitCommand("jmp", doneLabel)
		p.emitLabel(elseLabel)
		p.statement()
		p.emitLabel(doneLabel)
		return
	}
	p.emitLabel(elseLabel)
}

func (p *Parser) whileStmt() {
	p.tok.Match("while")
	p.need("(")
	top := p.nextLabel()
	bottom := p.nextLabel()
	p.emitLabel(top)
	cond := p.Expression()
	p.need(")")
	p.emitBranchZero(cond, bottom)
	p.breakStack = append(p.breakStack, bottom)
	p.continueStack = append(p.continueStack, top)
	p.statement()
	p.continueStack = p.continueStack[:len(p.continueStack)-1]
	p.breakStack = p.breakStack[:len(p.breakStack)-1]
	p.emitCommand("jmp", top)
	p.emitLabel(bottom)
}

func (p *Parser) doStmt() {
	p.tok.Match("do")
	top := p.nextLabel()
	contLabel := p.nextLabel()
	bottom := p.nextLabel()
	p.emitLabel(top)
	p.breakStack = append(p.breakStack, bottom)
	p.continueStack = append(p.continueStack, contLabel)
	p.statement()
	p.continueStack = p.continueStack[:len(p.continueStack)-1]
	p.breakStack = p.breakStack[:len(p.breakStack)-1]
	if _, ok := p.tok.Match("while"); !ok {
		p.errorf(p.tok.Line(), "missing while in do statement")
	}
	p.need("(")
	cond := p.Expression()
	p.need(")")
	p.need(";")
	p.emitLabel(contLabel)
	p.emitBranchZero(cond, bottom)
	p.emitCommand("jmp", top)
	p.emitLabel(bottom)
}

func (p *Parser) forStmt() {
	p.tok.Match("for")
	p.need("(")
	if _, ok := p.tok.Match(";"); !ok {
		init := p.Expression()
		p.need(";")
		p.EmitExpression(init)
	}
	top := p.nextLabel()
	contLabel := p.nextLabel()
	bottom := p.nextLabel()
	p.emitLabel(top)
	if tok := p.tok.Peek(); tok.Label != ";" {
		cond := p.Expression()
		p.emitBranchZero(cond, bottom)
	}
	p.need(";")
	var post *ast.Node
	if tok := p.tok.Peek(); tok.Label != ")" {
		post = p.Expression()
	}
	p.need(")")
	p.breakStack = append(p.breakStack, bottom)
	p.continueStack = append(p.continueStack, contLabel)
	p.statement()
	p.continueStack = p.continueStack[:len(p.continueStack)-1]
	p.breakStack = p.breakStack[:len(p.breakStack)-1]
	p.emitLabel(contLabel)
	if post != nil {
		p.EmitExpression(post)
	}
	p.emitCommand("jmp", top)
	p.emitLabel(bottom)
}

// switchStmt parses `switch (expr) statement`, deferring the body's
// emitted text into a side buffer so the dispatch chain (which must
// precede the body in the final assembly) can be written once every case
// label inside the body is known, per spec §4.4's doswitch convention.
func (p *Parser) switchStmt() {
	p.tok.Match("switch")
	p.need("(")
	scrutinee := p.Expression()
	p.need(")")

	bottom := p.nextLabel()
	frame := &switchFrame{seen: map[int64]bool{}}
	p.switchStack = append(p.switchStack, frame)
	p.breakStack = append(p.breakStack, bottom)

	saved := p.ir
	p.ir = &strings.Builder{}
	p.statement()
	bodyText := p.ir.String()
	p.ir = saved

	p.breakStack = p.breakStack[:len(p.breakStack)-1]
	p.switchStack = p.switchStack[:len(p.switchStack)-1]

	p.emitNode(p.lowerValue(scrutinee))
	args := make([]string, 0, len(frame.cases)*2+1)
	for _, c := range frame.cases {
		args = append(args, itoa(int(c.value)), c.label)
	}
	if frame.defaultLabel != "" {
		args = append(args, frame.defaultLabel)
	}
	p.emitCommand("doswitch", args...)
	p.ir.WriteString(bodyText)
	p.emitLabel(bottom)
}

func (p *Parser) caseStmt() {
	tok := p.tok.Peek()
	p.tok.Match("case")
	v := p.ConstExpr(0)
	p.need(":")
	if len(p.switchStack) == 0 {
		p.errorf(tok.Line, "case outside switch")
		return
	}
	frame := p.switchStack[len(p.switchStack)-1]
	if frame.seen[v] {
		p.errorf(tok.Line, "duplicate case value %d", v)
	}
	frame.seen[v] = true
	label := p.nextLabel()
	frame.cases = append(frame.cases, caseEntry{value: v, label: label})
	p.emitLabel(label)
}

func (p *Parser) defaultStmt() {
	tok := p.tok.Peek()
	p.tok.Match("default")
	p.need(":")
	if len(p.switchStack) == 0 {
		p.errorf(tok.Line, "default outside switch")
		return
	}
	frame := p.switchStack[len(p.switchStack)-1]
	label := p.nextLabel()
	frame.defaultLabel = label
	p.emitLabel(label)
}
