// Package symtab implements the symbol table and the parallel tag table
// described in spec §3: symbols partition by storage class (extern,
// static, auto, register, struct, member) and carry name/flags/type;
// struct tags and member names live in a second, flat namespace.
//
// Grounded on _examples/original_source/symtab.py's Symbol dataclass,
// generalized to the fuller shape spec §3 requires (flags, offsets), and
// on the teacher's scope-stack handling in gmofishsauce-wut4/lang/yparse.
package symtab

import (
	"github.com/popeyeotaku/pyc6t/internal/types"
)

// Storage enumerates the storage classes spec §3 names.
type Storage int

const (
	Extern Storage = iota
	Static
	Auto
	Register
	StructTag
	Member
)

// Symbol is one symbol-table or tag-table entry.
type Symbol struct {
	Name    string
	Storage Storage
	Type    types.TypeString
	Offset  int    // auto: frame offset; member: byte offset; register: reg number
	Label   string // static/extern: emitted assembly label

	Local      bool // true while the symbol is scoped to the current function body
	Undefined  bool // referenced but not yet defined
	Exported   bool
	Common     bool
}

// Clone returns an independent copy (the Type slice is deep-copied so
// callers may mutate it freely, matching Python's Symbol dataclass being
// passed by reference but TypeString being list-valued and easy to alias).
func (s *Symbol) Clone() *Symbol {
	c := *s
	c.Type = s.Type.Clone()
	return &c
}

// Table is a scoped symbol table: a flat map plus a shadow stack recording
// which names were introduced in the current function scope, so they can
// be cleared in bulk at function end (spec §3 "Lifecycle": "Symbols in the
// local table are discarded at function end (with an 'undefined label'
// check)").
type Table struct {
	syms  map[string]*Symbol
	scope []string // names pushed in the current local scope, in order
	inFunc bool
}

// New returns an empty Table.
func New() *Table {
	return &Table{syms: map[string]*Symbol{}}
}

// Lookup returns the symbol named name, if any.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	s, ok := t.syms[name]
	return s, ok
}

// Define installs sym under its own name. If Define is called while a
// function scope is open and sym.Local is set, the name is also recorded
// on the shadow stack for later clearing.
func (t *Table) Define(sym *Symbol) {
	t.syms[sym.Name] = sym
	if t.inFunc && sym.Local {
		t.scope = append(t.scope, sym.Name)
	}
}

// EnterFunction opens a local scope: subsequent local Define calls are
// tracked for clearing by LeaveFunction.
func (t *Table) EnterFunction() {
	t.inFunc = true
	t.scope = t.scope[:0]
}

// LeaveFunction clears every symbol introduced in the current local scope,
// reporting (via the returned slice) any that are still flagged Undefined
// -- spec §3's "undefined label" check performed at function end. Keys not
// in the local scope (extern symbols referenced from within the function)
// are left untouched.
func (t *Table) LeaveFunction() []*Symbol {
	var undefined []*Symbol
	for _, name := range t.scope {
		sym, ok := t.syms[name]
		if !ok {
			continue
		}
		if sym.Undefined {
			undefined = append(undefined, sym)
		}
		delete(t.syms, name)
	}
	t.scope = nil
	t.inFunc = false
	return undefined
}

// Externs returns every extern-storage symbol currently defined, used when
// flushing the global string pool and at end-of-compilation-unit checks.
func (t *Table) Externs() []*Symbol {
	var out []*Symbol
	for _, s := range t.syms {
		if s.Storage == Extern {
			out = append(out, s)
		}
	}
	return out
}

// TagTable is the secondary namespace holding struct tags and flat,
// unqualified struct member names (spec §3: "any '.'/'->' field lookup
// searches the tag table, not per-struct fields").
type TagTable struct {
	tags map[string]*Symbol
}

// NewTagTable returns an empty TagTable.
func NewTagTable() *TagTable {
	return &TagTable{tags: map[string]*Symbol{}}
}

func (tt *TagTable) Lookup(name string) (*Symbol, bool) {
	s, ok := tt.tags[name]
	return s, ok
}

func (tt *TagTable) Define(sym *Symbol) {
	tt.tags[sym.Name] = sym
}

// Has reports whether name is present, without retrieving it.
func (tt *TagTable) Has(name string) bool {
	_, ok := tt.tags[name]
	return ok
}
