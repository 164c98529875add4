package asm8080

import (
	"fmt"

	"github.com/popeyeotaku/pyc6t/internal/objfile"
)

// symEntry is the assembler's working symbol-table entry, before it is
// flattened into an objfile.Symbol at the end of Assemble.
type symEntry struct {
	seg      objfile.SegFlag
	value    int64
	exported bool
	common   bool
	defined  bool
}

// Assembler runs the two-pass assembly described in spec §4.5 over one
// unit of 8080 assembly source text, producing an objfile.Module.
type Assembler struct {
	opcodes map[string]*Opcode
	syms    map[string]*symEntry
	errs    []string
}

// New returns an Assembler using the given opcode table (see LoadOpcodes).
func New(opcodes map[string]*Opcode) *Assembler {
	return &Assembler{opcodes: opcodes, syms: map[string]*symEntry{}}
}

func (a *Assembler) errorf(line int, format string, args ...any) {
	a.errs = append(a.errs, fmt.Sprintf("%d: "+format, append([]any{line}, args...)...))
}

// Errors returns every diagnostic raised during Assemble, in the `<line>:
// <message>` format of spec §7.
func (a *Assembler) Errors() []string { return a.errs }

// segCounters tracks the running program counter for each segment as
// statements are walked; .bss never contributes emitted bytes, only
// length.
type segCounters struct {
	text, data, bss int64
}

func (c *segCounters) get(seg string) int64 {
	switch seg {
	case ".data":
		return c.data
	case ".bss":
		return c.bss
	default:
		return c.text
	}
}

func (c *segCounters) add(seg string, n int64) {
	switch seg {
	case ".data":
		c.data += n
	case ".bss":
		c.bss += n
	default:
		c.text += n
	}
}

func segFlag(seg string) objfile.SegFlag {
	switch seg {
	case ".data":
		return objfile.SegData
	case ".bss":
		return objfile.SegBSS
	default:
		return objfile.SegText
	}
}

// instrSize computes the total encoded byte length of op's instruction
// from its arg-mode list: INL0/INL3 pack into
// the opcode byte itself; IMMBYTE/IMMWORD append 1 or 2 bytes.
func instrSize(op *Opcode) int64 {
	size := int64(1)
	for _, m := range op.Args {
		switch m {
		case ModeIMMBYTE:
			size++
		case ModeIMMWORD:
			size += 2
		}
	}
	return size
}

// Assemble parses src and returns the resulting Module. Assembly
// continues past recoverable errors so every diagnostic in a unit is
// reported; per spec §4.5/§7, any error suppresses the returned module
// (the caller should check Errors() first).
func (a *Assembler) Assemble(src string) *objfile.Module {
	stmts, err := parseAll(src)
	if err != nil {
		a.errs = append(a.errs, err.Error())
		return nil
	}

	for name, code := range RegisterCodes {
		a.syms[name] = &symEntry{value: int64(code), defined: true}
	}

	a.pass1(stmts)
	mod := a.pass2(stmts)

	if len(a.errs) > 0 {
		return nil
	}
	return mod
}

func parseAll(src string) ([]stmt, error) {
	p := newParser(src)
	var out []stmt
	for {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if s.kind == stmtEOF {
			return out, nil
		}
		out = append(out, s)
	}
}

// pass1 establishes every label's (segment, offset) and every equ
// symbol's resolved value, so forward references resolve correctly in
// pass2.
func (a *Assembler) pass1(stmts []stmt) {
	var pc segCounters
	seg := ".text"

	for _, s := range stmts {
		switch s.kind {
		case stmtSeg:
			seg = s.name
		case stmtLabel:
			if _, exists := a.syms[s.name]; exists {
				a.errorf(s.line, "symbol %s already defined", s.name)
				continue
			}
			a.syms[s.name] = &symEntry{seg: segFlag(seg), value: pc.get(seg), defined: true}
		case stmtEqu:
			val, err := a.resolveLocal(s.expr)
			if err != nil {
				a.errorf(s.line, "%s", err)
				continue
			}
			a.syms[s.name] = val
		case stmtByte:
			pc.add(seg, int64(len(s.list)))
		case stmtWord:
			pc.add(seg, 2*int64(len(s.list)))
		case stmtStorage:
			count, err := a.resolveLocal(s.list[0])
			if err != nil {
				a.errorf(s.line, "%s", err)
				continue
			}
			pc.add(seg, count.value)
		case stmtCommon, stmtExport:
			// No PC effect.
		case stmtInstr:
			op, ok := a.opcodes[s.mnemonic]
			if !ok {
				a.errorf(s.line, "unknown mnemonic %s", s.mnemonic)
				continue
			}
			pc.add(seg, instrSize(op))
		}
	}
}

// resolveLocal resolves an expression to a concrete assembler-local
// value: if it references a symbol, that symbol must already be defined
// and non-common (spec §4.5: "must resolve to a predefined, non-common
// symbol plus offset"); a bare constant resolves to itself in segment
// text (arbitrary -- unreferenced by layout).
func (a *Assembler) resolveLocal(v exprVal) (*symEntry, error) {
	if !v.hasSym {
		return &symEntry{value: v.con, defined: true}, nil
	}
	base, ok := a.syms[v.sym]
	if !ok || !base.defined {
		return nil, fmt.Errorf("undefined symbol %s", v.sym)
	}
	if base.common {
		return nil, fmt.Errorf("illegal reference to common symbol %s", v.sym)
	}
	return &symEntry{seg: base.seg, value: base.value + v.con, defined: true}, nil
}

// pass2 walks the statement stream again, now with every label and equ
// value known, emitting actual segment bytes/references into a Module.
func (a *Assembler) pass2(stmts []stmt) *objfile.Module {
	mod := objfile.NewModule()
	var pc segCounters
	seg := ".text"

	emit := func(data []byte) {
		if seg != ".bss" {
			seglist := a.segList(mod, seg)
			*seglist = append(*seglist, objfile.SegElem{Bytes: data})
		}
		pc.add(seg, int64(len(data)))
	}
	emitRef := func(flags objfile.RefFlag, sym string, con int64) {
		seglist := a.segList(mod, seg)
		ref := objfile.Reference{Flags: flags, Name: sym, Con: con}
		*seglist = append(*seglist, objfile.SegElem{Ref: &ref})
		if flags&objfile.RefByte != 0 {
			pc.add(seg, 1)
		} else {
			pc.add(seg, 2)
		}
	}

	for _, s := range stmts {
		switch s.kind {
		case stmtSeg:
			seg = s.name
		case stmtLabel, stmtEqu:
			// Already resolved in pass1; nothing to emit.
		case stmtByte:
			for _, v := range s.list {
				a.emitValue(v, true, emit, emitRef, s.line)
			}
		case stmtWord:
			for _, v := range s.list {
				a.emitValue(v, false, emit, emitRef, s.line)
			}
		case stmtStorage:
			count, _ := a.resolveLocal(s.list[0])
			fill := byte(0)
			if len(s.list) == 2 {
				f, _ := a.resolveLocal(s.list[1])
				fill = byte(f.value)
			}
			if count != nil {
				buf := make([]byte, count.value)
				for i := range buf {
					buf[i] = fill
				}
				emit(buf)
			}
		case stmtCommon:
			size, err := a.resolveLocal(s.expr)
			if err != nil {
				a.errorf(s.line, "%s", err)
				continue
			}
			existing, ok := a.syms[s.name]
			if ok && existing.defined && !existing.common {
				continue // non-common definition wins, per spec §4.6
			}
			if ok && existing.common && existing.value >= size.value {
				continue // keep the larger requested size
			}
			a.syms[s.name] = &symEntry{seg: objfile.SegBSS, value: size.value, common: true, defined: true}
		case stmtExport:
			for _, name := range s.names {
				sym, ok := a.syms[name]
				if !ok {
					a.errorf(s.line, "cannot export undefined symbol %s", name)
					continue
				}
				sym.exported = true
			}
		case stmtInstr:
			op, ok := a.opcodes[s.mnemonic]
			if !ok {
				continue // already reported in pass1
			}
			if err := a.emitInstr(op, s, seg, emit, emitRef); err != nil {
				a.errorf(s.line, "%s", err)
			}
		}
	}

	mod.BSSLen = int(pc.bss)
	for name, sym := range a.syms {
		// Skip the predefined register-name pseudo-symbols; they are
		// assembly-time conveniences only, not linkable symbols.
		if _, isReg := RegisterCodes[name]; isReg {
			continue
		}
		flags := objfile.SymFlag(sym.seg)
		if sym.exported {
			flags |= objfile.FlagExport
		}
		if sym.common {
			flags |= objfile.FlagCommon
		}
		mod.Syms[name] = &objfile.Symbol{Name: name, Value: uint16(sym.value), Flags: flags}
	}
	return mod
}

func (a *Assembler) segList(mod *objfile.Module, seg string) *[]objfile.SegElem {
	switch seg {
	case ".data":
		return &mod.Data
	default:
		return &mod.Text
	}
}

// emitValue emits one .byte/.word operand: a literal constant if it
// carries no symbol, else a relocation Reference.
func (a *Assembler) emitValue(v exprVal, isByte bool, emit func([]byte), emitRef func(objfile.RefFlag, string, int64), line int) {
	if !v.hasSym {
		n := uint16(v.con)
		if v.selector == '>' {
			n >>= 8
		} else if v.selector == '<' {
			n &= 0xff
		}
		if isByte {
			emit([]byte{byte(n)})
		} else {
			emit([]byte{byte(n), byte(n >> 8)})
		}
		return
	}
	flags := objfile.RefSymbol
	if isByte {
		flags |= objfile.RefByte
	}
	flags |= selectorFlags(v.selector)
	emitRef(flags, v.sym, v.con)
}

func selectorFlags(sel byte) objfile.RefFlag {
	switch sel {
	case '<':
		return objfile.RefHiLo
	case '>':
		return objfile.RefHiLo | objfile.RefHi
	default:
		return 0
	}
}

// emitInstr encodes one instruction: the opcode byte (with INL0/INL3
// operand bits packed in) followed by any IMMBYTE/IMMWORD operand bytes.
func (a *Assembler) emitInstr(op *Opcode, s stmt, seg string, emit func([]byte), emitRef func(objfile.RefFlag, string, int64)) error {
	code := op.Code
	opIdx := 0

	for _, mode := range op.Args {
		switch mode {
		case ModeINL0, ModeINL3:
			if opIdx >= len(s.operands) {
				return fmt.Errorf("%s: too few operands", op.Name)
			}
			v := s.operands[opIdx].expr
			opIdx++
			if v.hasSym {
				return fmt.Errorf("%s: inline operand must be a constant", op.Name)
			}
			n := uint8(v.con) & 0x7
			if mode == ModeINL0 {
				code |= n
			} else {
				code |= n << 3
			}
		}
	}
	emit([]byte{code})

	// Second walk, emitting immediate bytes in order (kept separate from
	// the inline-bit pass above since INL0/INL3 consume no output bytes
	// but still consume an operand slot).
	opIdx = 0
	for _, mode := range op.Args {
		if opIdx >= len(s.operands) {
			return fmt.Errorf("%s: too few operands", op.Name)
		}
		v := s.operands[opIdx].expr
		switch mode {
		case ModeINL0, ModeINL3:
			opIdx++
		case ModeIMMBYTE:
			a.emitValue(v, true, emit, emitRef, s.line)
			opIdx++
		case ModeIMMWORD:
			a.emitValue(v, false, emit, emitRef, s.line)
			opIdx++
		}
	}
	if opIdx < len(s.operands) {
		return fmt.Errorf("%s: too many operands", op.Name)
	}
	return nil
}
