// Package parser implements the C6T recursive-descent front-end (spec
// §4.3): three cooperating sub-parsers (expressions, specifiers,
// statements) sharing one Parser state object, emitting the stack-machine
// textual IR consumed by internal/backend.
//
// Grounded on _examples/original_source/expr.py (exp1-exp15, build),
// spec.py (dostruct/grabtype/grabclass/funcdef/datadef/extdef) and
// statement.py (the statement-dispatch switch), whose Python prototypes
// are themselves incomplete stubs for the declaration/definition layer --
// those are synthesized here directly from spec §4.3's prose, in the
// teacher's (gmofishsauce-wut4/lang/yparse) recursive-descent style.
package parser

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/popeyeotaku/pyc6t/internal/ast"
	"github.com/popeyeotaku/pyc6t/internal/diag"
	"github.com/popeyeotaku/pyc6t/internal/symtab"
	"github.com/popeyeotaku/pyc6t/internal/token"
	"github.com/popeyeotaku/pyc6t/internal/types"
)

// paramOffset is the first positive frame offset where incoming
// parameters live, per spec §4.3: past the three register-variable save
// slots, the saved frame pointer and the return address that the
// backend's ".func" prologue and the call leave above BC.
const paramOffset = 10

// maxRegVars bounds how many local variables can claim a hardware
// register before declarations demote to auto storage, per spec §4.3.
const maxRegVars = 3

// switchFrame is one entry of the switch-case stack: the scrutinee's
// dispatch label, the accumulated value->label case table in source
// order (for duplicate detection and final table emission), and the
// default label if any.
type switchFrame struct {
	dispatchLabel string
	cases         []caseEntry
	seen          map[int64]bool
	defaultLabel  string
}

type caseEntry struct {
	value int64
	label string
}

// Parser is the shared state object of spec §4.3: tokenizer, symbol/tag
// tables, diagnostic bag, the emitted-IR buffer, a next-label counter,
// and the break/continue/switch stacks.
type Parser struct {
	tok  *token.Tokenizer
	syms *symtab.Table
	tags *symtab.TagTable
	bag  *diag.Bag

	ir   *strings.Builder
	lseg string // last emitted segment directive, to avoid redundancy

	labelNum int

	breakStack    []string
	continueStack []string
	switchStack   []*switchFrame

	strings   map[string][]byte // label -> NUL-terminated bytes, flushed at end
	stringSeq int

	curRet     types.TypeString // current function's declared return type
	autoOffset int             // next (negative) auto frame offset
	paramOff   int             // next positive incoming-parameter frame offset
	regUsed    int             // register-variable slots claimed in the current function
}

// New returns a Parser over already-preprocessed, tokenizable source.
func New(source string, bag *diag.Bag) *Parser {
	p := &Parser{
		tok:     token.New(source),
		syms:    symtab.New(),
		tags:    symtab.NewTagTable(),
		bag:     bag,
		ir:      &strings.Builder{},
		strings: map[string][]byte{},
	}
	return p
}

func (p *Parser) errorf(line int, format string, args ...any) {
	p.bag.Error(line, format, args...)
}

func (p *Parser) nextLabel() string {
	p.labelNum++
	return fmt.Sprintf("LL%d", p.labelNum)
}

func (p *Parser) nextStaticLabel(prefix string) string {
	p.labelNum++
	return fmt.Sprintf("%s%d", prefix, p.labelNum)
}

// seg emits a segment directive if it differs from the last one emitted,
// per spec §4.3's "current segment cookie".
func (p *Parser) seg(name string) {
	if p.lseg == name {
		return
	}
	p.lseg = name
	p.ir.WriteString(name)
	p.ir.WriteByte('\n')
}

func (p *Parser) emitCommand(cmd string, args ...string) {
	p.ir.WriteString(cmd)
	if len(args) > 0 {
		p.ir.WriteByte(' ')
		p.ir.WriteString(strings.Join(args, ","))
	}
	p.ir.WriteByte('\n')
}

func (p *Parser) emitLabel(name string) {
	p.ir.WriteString(name)
	p.ir.WriteString(":\n")
}

// frameSizeWidth is the fixed digit width of a reserved .func frame-size
// placeholder -- wide enough for any 8080 frame (max 65535).
const frameSizeWidth = 5

// reserveFrameSize emits ".func" followed by a zero-padded placeholder
// and returns the buffer offset of the placeholder digits, for a later
// patchFrameSize once the function's true frame size is known.
func (p *Parser) reserveFrameSize() int {
	p.ir.WriteString(".func ")
	pos := p.ir.Len()
	p.ir.WriteString(strings.Repeat("0", frameSizeWidth))
	p.ir.WriteByte('\n')
	return pos
}

// patchFrameSize overwrites the placeholder reserved at pos by
// reserveFrameSize with size, zero-padded to the same width so no other
// buffer offset shifts.
func (p *Parser) patchFrameSize(pos int, size int) {
	s := p.ir.String()
	digits := fmt.Sprintf("%0*d", frameSizeWidth, size)
	p.ir.Reset()
	p.ir.WriteString(s[:pos])
	p.ir.WriteString(digits)
	p.ir.WriteString(s[pos+frameSizeWidth:])
}

// emitNode serialises an expression tree depth-first: children first,
// then the node's own label and inline value, per spec §4.3's "IR
// emission".
func (p *Parser) emitNode(n *ast.Node) {
	for _, c := range n.Children {
		p.emitNode(c)
	}
	p.ir.WriteString(n.Label)
	if v := formatNodeValue(n.Value); v != "" {
		p.ir.WriteByte(' ')
		p.ir.WriteString(v)
	}
	p.ir.WriteByte('\n')
}

func formatNodeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case *symtab.Symbol:
		return x.Name
	default:
		return fmt.Sprintf("%v", x)
	}
}

// internString registers s (already NUL-terminated by the tokenizer) in
// the deferred string pool and returns a fresh data-segment label for
// it, per spec §4.3: "Strings seen inside expressions are deferred to a
// label -> bytes map; after all external definitions, the parser flushes
// them into the data segment."
func (p *Parser) internString(s []byte) string {
	p.stringSeq++
	label := fmt.Sprintf("LC%d", p.stringSeq)
	p.strings[label] = s
	return label
}

// flushStrings emits every pooled string literal into the data segment,
// in label order for determinism.
func (p *Parser) flushStrings() {
	if len(p.strings) == 0 {
		return
	}
	labels := make([]string, 0, len(p.strings))
	for l := range p.strings {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	p.seg(".data")
	for _, l := range labels {
		p.emitLabel(l)
		args := make([]string, len(p.strings[l]))
		for i, b := range p.strings[l] {
			args[i] = strconv.Itoa(int(b))
		}
		p.emitCommand(".dc", args...)
	}
}

// declareRegVars reserves the fixed-memory slots that simulate register
// storage class on a register-starved target (spec §4.4's ".func"
// prologue pushes reg0..regN-1 so they're preserved across calls, the
// classic technique early 8080 C compilers used in place of real
// register variables).
func (p *Parser) declareRegVars() {
	for i := 0; i < maxRegVars; i++ {
		p.seg(".bss")
		p.emitCommand(".common", fmt.Sprintf("reg%d", i), "2")
	}
}

// Program parses a whole translation unit and returns the emitted IR
// text, per spec §4.3/§4.4.
func Program(source string, bag *diag.Bag) string {
	p := New(source, bag)
	p.declareRegVars()
	for {
		if _, ok := p.tok.Match(token.EOF); ok {
			break
		}
		p.externalDecl()
	}
	p.flushStrings()
	return p.ir.String()
}
