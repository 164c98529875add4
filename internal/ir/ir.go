// Package ir implements the C6T intermediate-representation text format
// (spec §4.4's "Textual IR"): a flat stream of defined labels, bare
// assembly-directive commands, and arity-tagged expression nodes that
// the backend reassembles into trees via a small node stack.
//
// Grounded on _examples/original_source/backend.py's IRParser/Command/
// Label/Node/NODECHILDREN, restructured from Python's Sequence-protocol
// dataclasses into a tagged Go interface in the teacher's
// (gmofishsauce-wut4/lang/ysem) style of small sum-typed IR elements.
package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Elem is implemented by Node, Command, and Label: one element of the IR
// stream.
type Elem interface {
	irElem()
}

// Node is an expression-tree node still missing its Children until the
// node stack (see Assemble) fills them in from arity.
type Node struct {
	Label    string
	Children []*Node
	Value    any // nil, a single atom, or []any for multi-arg nodes (e.g. cond's jump target + label)
}

func (*Node) irElem() {}

// Command is a bare backend instruction: a verb plus its atom arguments,
// consumed against the current node stack (e.g. "eval" pops one node and
// emits code to leave its value in a register).
type Command struct {
	Cmd  string
	Args []any
}

func (*Command) irElem() {}

// Label is a defined assembly label appearing in the IR stream (e.g. a
// branch target or a function entry point).
type Label struct {
	Name string
}

func (*Label) irElem() {}

// NodeChildren is the fixed node-arity table of spec §4.4, grounded on
// backend.py's NODECHILDREN. "call" is special-cased: its value holds the
// argument count N, so its true arity is N+1 (the callee plus N arg
// nodes), handled in Assemble rather than here.
var NodeChildren = map[string]int{
	"register": 0, "auto": 0, "load": 1, "store": 2, "extern": 0,
	"call": 0, "con": 0, "add": 2, "great": 2, "arg": 1, "sub": 2,
	"lognot": 1, "uless": 2, "postinc": 2, "cstore": 2, "logor": 2,
	"logand": 2, "equ": 2, "mult": 2, "cond": 3, "gequ": 2, "lequ": 2,
	"cload": 1, "nequ": 2, "less": 2, "div": 2, "mod": 2, "neg": 1,
	"compl": 1, "and": 2, "or": 2, "eor": 2, "lshift": 2, "rshift": 2,
	"toflt": 1, "tofix": 1, "addr": 1, "deref": 1, "preinc": 2,
	"predec": 2, "postdec": 2, "asnadd": 2, "asnsub": 2, "asnmult": 2,
	"asndiv": 2, "asnmod": 2, "asnand": 2, "asnor": 2, "asneor": 2,
	"asnlshift": 2, "asnrshift": 2, "assign": 2, "ugreat": 2, "ugequ": 2,
	"ulequ": 2, "uless_": 2, "fcon": 0,
}

// Parser scans IR text into a sequence of Elem, grounded on backend.py's
// IRParser.
type Parser struct {
	src string
	i   int
}

// NewParser returns a Parser over ir text.
func NewParser(src string) *Parser { return &Parser{src: src} }

// Line returns the 1-based source line of the parser's current position.
func (p *Parser) Line() int {
	return 1 + strings.Count(p.src[:p.i], "\n")
}

func (p *Parser) text() string { return p.src[p.i:] }

// skipws skips spaces/tabs and ';'-comments, not newlines; reports whether
// anything was skipped.
func (p *Parser) skipws() bool {
	start := p.i
	for p.i < len(p.src) {
		c := p.src[p.i]
		if c == ' ' || c == '\t' {
			p.i++
			continue
		}
		if c == ';' {
			for p.i < len(p.src) && p.src[p.i] != '\n' {
				p.i++
			}
			continue
		}
		break
	}
	return p.i > start
}

func (p *Parser) skipwsNl() {
	for {
		if !p.skipws() {
			if p.i < len(p.src) && p.src[p.i] == '\n' {
				for p.i < len(p.src) && p.src[p.i] == '\n' {
					p.i++
				}
				continue
			}
			break
		}
	}
}

// atom reads the next whitespace/comma/colon/newline-delimited token,
// parsed as int64, float64, or left as a string, in that preference
// order (matching backend.py's atom()).
func (p *Parser) atom() (any, error) {
	p.skipws()
	start := p.i
	for p.i < len(p.src) {
		c := p.src[p.i]
		if c == ' ' || c == '\t' || c == '\n' || c == ',' || c == ':' {
			break
		}
		p.i++
	}
	if p.i == start {
		return nil, fmt.Errorf("ir: no atom at line %d", p.Line())
	}
	text := p.src[start:p.i]
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, nil
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, nil
	}
	return text, nil
}

func (p *Parser) match(s string) bool {
	p.skipws()
	if strings.HasPrefix(p.text(), s) {
		p.i += len(s)
		return true
	}
	return false
}

// Next returns the next Elem, or (nil, false) at end of input.
func (p *Parser) Next() (Elem, bool, error) {
	p.skipwsNl()
	if p.i >= len(p.src) {
		return nil, false, nil
	}
	atom, err := p.atom()
	if err != nil {
		return nil, false, err
	}
	name := fmt.Sprintf("%v", atom)

	if p.match(":") {
		return &Label{Name: name}, true, nil
	}

	var args []any
	if !p.match("\n") {
		a, err := p.atom()
		if err != nil {
			return nil, false, err
		}
		args = append(args, a)
		for p.match(",") {
			a, err := p.atom()
			if err != nil {
				return nil, false, err
			}
			args = append(args, a)
		}
	}

	if _, ok := NodeChildren[name]; ok {
		var val any
		switch len(args) {
		case 0:
			val = nil
		case 1:
			val = args[0]
		default:
			val = args
		}
		return &Node{Label: name, Value: val}, true, nil
	}
	return &Command{Cmd: name, Args: args}, true, nil
}

// All drains the parser into a slice, surfacing the first error (if any).
func (p *Parser) All() ([]Elem, error) {
	var out []Elem
	for {
		e, ok, err := p.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

// arity returns n's true child count, special-casing "call" per spec
// §4.4: a call node's Value holds its argument count N, and its true
// arity is N+1 (the callee expression plus N argument nodes).
func arity(n *Node) int {
	if n.Label == "call" {
		count, ok := n.Value.(int64)
		if !ok {
			return 1
		}
		return int(count) + 1
	}
	return NodeChildren[n.Label]
}

// Driver is implemented by a backend consumer (internal/backend.Backend):
// it receives defined labels and commands, with access to the live node
// stack so a Command can pop and consume completed expression trees.
type Driver interface {
	Command(cmd *Command, stack *[]*Node)
	DefLabel(name string)
}

// Assemble reassembles a flat elem stream into a node stack, invoking
// drv.Command and drv.DefLabel for Command and Label elements in stream
// order -- the generic half of backend.py's backend() driver loop, with
// the codegen-specific half left to Driver implementations.
func Assemble(elems []Elem, drv Driver) error {
	var stack []*Node
	for _, e := range elems {
		switch v := e.(type) {
		case *Node:
			n := arity(v)
			if n > 0 {
				if len(stack) < n {
					return fmt.Errorf("ir: not enough operands for %s", v.Label)
				}
				v.Children = append(v.Children, stack[len(stack)-n:]...)
				stack = stack[:len(stack)-n]
			}
			stack = append(stack, v)
		case *Label:
			drv.DefLabel(v.Name)
		case *Command:
			drv.Command(v, &stack)
		default:
			return fmt.Errorf("ir: unknown elem type %T", e)
		}
	}
	return nil
}
