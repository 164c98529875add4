// Package link implements the C6T linker (spec §4.6): symbol resolution
// across an ordered list of object modules plus optional library
// modules, segment layout, relocation fixup, and flat-binary emission.
//
// Grounded on _examples/original_source/linker.py's Linker (buildsyms/
// resolve/_commons), generalized from its per-module modsym list into a
// Go slice-of-maps in the same shape, with library pulling (absent from
// the incomplete prototype) added directly from spec §4.6's prose.
package link

import (
	"fmt"
	"sort"

	"github.com/popeyeotaku/pyc6t/internal/objfile"
)

// Linker accumulates modules and library candidates, then resolves and
// lays them out into a single flat image.
type Linker struct {
	modules []*objfile.Module
	libs    []*objfile.Module

	symtab  map[string]*objfile.Symbol   // final global export table
	modsyms []map[string]*objfile.Symbol // per-module symbol table, offset-adjusted
	errs    []string
}

// New returns a Linker over the given primary modules, in link order.
func New(modules []*objfile.Module) *Linker {
	return &Linker{modules: modules}
}

// AddLibrary registers a library module as a candidate to be pulled in
// only if it resolves an otherwise-undefined reference.
func (l *Linker) AddLibrary(mod *objfile.Module) {
	l.libs = append(l.libs, mod)
}

func (l *Linker) errorf(format string, args ...any) {
	l.errs = append(l.errs, fmt.Sprintf(format, args...))
}

// Errors returns every diagnostic raised during Link.
func (l *Linker) Errors() []string { return l.errs }

// undefinedRefs returns the set of symbol names referenced by a
// relocation (in any segment of any module) that are not present in
// exports.
func undefinedRefs(modules []*objfile.Module, exports map[string]bool) map[string]bool {
	undef := map[string]bool{}
	for _, mod := range modules {
		for _, seg := range [][]objfile.SegElem{mod.Text, mod.Data} {
			for _, e := range seg {
				if e.Ref != nil && e.Ref.IsSymbol() && !exports[e.Ref.Name] {
					undef[e.Ref.Name] = true
				}
			}
		}
	}
	return undef
}

func exportedNames(mod *objfile.Module) map[string]bool {
	names := map[string]bool{}
	for _, s := range mod.Syms {
		if s.Export() && !s.Common() {
			names[s.Name] = true
		}
	}
	return names
}

// pullLibraries performs the greedy, single-pass, non-fixed-point library
// search of spec §4.6: walk the library list once, in order, appending
// any module that exports a symbol currently undefined to the working
// module list. A module pulled in early can itself introduce new
// undefined references that a later library in the same pass may still
// resolve, but the search never restarts from the top.
func (l *Linker) pullLibraries() {
	if len(l.libs) == 0 {
		return
	}
	exports := map[string]bool{}
	for _, mod := range l.modules {
		for name := range exportedNames(mod) {
			exports[name] = true
		}
	}
	undef := undefinedRefs(l.modules, exports)

	for _, lib := range l.libs {
		if len(undef) == 0 {
			break
		}
		libExports := exportedNames(lib)
		satisfies := false
		for name := range undef {
			if libExports[name] {
				satisfies = true
				break
			}
		}
		if !satisfies {
			continue
		}
		l.modules = append(l.modules, lib)
		for name := range libExports {
			exports[name] = true
			delete(undef, name)
		}
		for name := range undefinedRefs([]*objfile.Module{lib}, exports) {
			undef[name] = true
		}
	}
}

// buildSyms lays segments out as concat(text) + concat(data) + bss, per
// module, and builds the per-module offset-adjusted symbol tables plus
// the final global export table, mirroring linker.py's buildsyms/
// _commons.
func (l *Linker) buildSyms() (textLen, dataLen, bssLen int64) {
	l.symtab = map[string]*objfile.Symbol{}
	l.modsyms = make([]map[string]*objfile.Symbol, len(l.modules))
	for i := range l.modsyms {
		l.modsyms[i] = map[string]*objfile.Symbol{}
	}

	for _, segKind := range []objfile.SegFlag{objfile.SegText, objfile.SegData, objfile.SegBSS} {
		var offset int64
		for i, mod := range l.modules {
			for _, sym := range mod.Syms {
				if sym.Seg() != segKind {
					continue
				}
				cp := *sym
				if !cp.Common() {
					cp.Value = uint16(int64(cp.Value) + offset)
				}
				l.modsyms[i][cp.Name] = &cp
			}
			switch segKind {
			case objfile.SegText:
				offset += int64(segByteLen(mod.Text))
			case objfile.SegData:
				offset += int64(segByteLen(mod.Data))
			case objfile.SegBSS:
				offset += int64(mod.BSSLen)
			}
		}
		switch segKind {
		case objfile.SegText:
			textLen = offset
		case objfile.SegData:
			dataLen = offset
		case objfile.SegBSS:
			bssLen = offset
		}
	}

	for _, modtab := range l.modsyms {
		for _, sym := range modtab {
			if sym.Export() && !sym.Common() {
				if existing, dup := l.symtab[sym.Name]; dup && existing != sym {
					l.errorf("duplicate export of symbol %s", sym.Name)
					continue
				}
				l.symtab[sym.Name] = sym
			}
		}
	}

	commonEnd := l.resolveCommons(bssLen)
	return textLen, dataLen, commonEnd
}

// resolveCommons implements spec §4.6's common-symbol negotiation: the
// maximum requested size per name wins; a non-common export with the same
// name wins outright and the common entries are discarded; surviving
// commons are placed at the tail of bss in encounter order.
func (l *Linker) resolveCommons(bssEnd int64) int64 {
	sizes := map[string]int64{}
	var order []string
	for _, modtab := range l.modsyms {
		for name, sym := range modtab {
			if !sym.Common() {
				continue
			}
			if cur, ok := sizes[name]; !ok {
				sizes[name] = int64(sym.Value)
				order = append(order, name)
			} else if int64(sym.Value) > cur {
				sizes[name] = int64(sym.Value)
			}
		}
	}

	offset := bssEnd
	for _, name := range order {
		if _, exported := l.symtab[name]; exported {
			continue // non-common definition already wins
		}
		sym := &objfile.Symbol{
			Name:  name,
			Value: uint16(offset),
			Flags: objfile.SymFlag(objfile.SegBSS) | objfile.FlagExport,
		}
		offset += sizes[name]
		l.symtab[name] = sym
	}

	for _, modtab := range l.modsyms {
		for name, sym := range modtab {
			if sym.Common() {
				delete(modtab, name)
			}
		}
	}
	return offset
}

func segByteLen(seg []objfile.SegElem) int {
	n := 0
	for _, e := range seg {
		if e.Ref != nil {
			n += e.Ref.Len()
		} else {
			n += len(e.Bytes)
		}
	}
	return n
}

func resolveSeg(offset int64, modsym map[string]*objfile.Symbol, global map[string]*objfile.Symbol, seg []objfile.SegElem) ([]byte, error) {
	out := make([]byte, 0, segByteLen(seg))
	for _, e := range seg {
		if e.Ref == nil {
			out = append(out, e.Bytes...)
			continue
		}
		b, err := e.Ref.Resolve(offset+int64(len(out)), modsym, global)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// Link resolves symbols, performs library pulling, lays out segments,
// and returns the flat binary image plus a value-sorted symbol dump.
func (l *Linker) Link() ([]byte, []objfile.Symbol, error) {
	l.pullLibraries()
	textLen, dataLen, bssLen := l.buildSyms()

	if len(l.errs) > 0 {
		return nil, nil, fmt.Errorf("link: %d error(s)", len(l.errs))
	}

	exports := map[string]bool{}
	for name := range l.symtab {
		exports[name] = true
	}
	// A reference resolves against its own module's symbols first, then
	// the global export table.
	undef := map[string]bool{}
	for i, mod := range l.modules {
		known := map[string]bool{}
		for name := range exports {
			known[name] = true
		}
		for name := range l.modsyms[i] {
			known[name] = true
		}
		for name := range undefinedRefs([]*objfile.Module{mod}, known) {
			undef[name] = true
		}
	}
	if len(undef) > 0 {
		for name := range undef {
			l.errorf("undefined symbol %s", name)
		}
		return nil, nil, fmt.Errorf("link: %d error(s)", len(l.errs))
	}

	var out []byte
	for _, segKind := range []objfile.SegFlag{objfile.SegText, objfile.SegData} {
		for i, mod := range l.modules {
			var seg []objfile.SegElem
			if segKind == objfile.SegText {
				seg = mod.Text
			} else {
				seg = mod.Data
			}
			b, err := resolveSeg(int64(len(out)), l.modsyms[i], l.symtab, seg)
			if err != nil {
				l.errorf("%s", err)
				continue
			}
			out = append(out, b...)
		}
	}
	if len(l.errs) > 0 {
		return nil, nil, fmt.Errorf("link: %d error(s)", len(l.errs))
	}
	out = append(out, make([]byte, bssLen)...)

	_ = textLen
	_ = dataLen

	var dump []objfile.Symbol
	for _, s := range l.symtab {
		dump = append(dump, *s)
	}
	sort.Slice(dump, func(i, j int) bool { return dump[i].Value < dump[j].Value })

	return out, dump, nil
}
