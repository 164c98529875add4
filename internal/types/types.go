// Package types implements the C6T type-element / type-string model
// described in spec §3: a type string is an ordered slice of TypeElem,
// outermost modifier first, whose last element must be a base type.
//
// This is grounded on _examples/original_source/type6.py's TypeElem /
// TypeString, generalized from a Python dataclass into a Go struct slice
// the way the teacher (gmofishsauce-wut4/lang/yparse/types.go) represents
// its own nominal type system as a small value struct.
package types

import "fmt"

// Kind enumerates the single-layer type elements spec §3 requires: the
// five base types plus the three composing modifiers (pointer, function,
// array).
type Kind int

const (
	Invalid Kind = iota
	Int
	Char
	Float
	Double
	Struct
	Pointer
	Function
	Array
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Char:
		return "char"
	case Float:
		return "float"
	case Double:
		return "double"
	case Struct:
		return "struct"
	case Pointer:
		return "pointer"
	case Function:
		return "function"
	case Array:
		return "array"
	default:
		return "invalid"
	}
}

// Elem is a single layer of a type string. Size is meaningful only for
// Struct (total byte size of the tag) and Array (element count); every
// other kind has a fixed size computed by baseSize.
type Elem struct {
	Kind Kind
	Size int
	Name string // struct tag name, when Kind == Struct
}

// String constructors mirroring type6.py's Int6/Char6/Float6/Double6/
// Point6/Func6 module-level singletons.
var (
	IntElem    = Elem{Kind: Int}
	CharElem   = Elem{Kind: Char}
	FloatElem  = Elem{Kind: Float}
	DoubleElem = Elem{Kind: Double}
	PointElem  = Elem{Kind: Pointer}
	FuncElem   = Elem{Kind: Function}
)

// StructElem builds a struct-tag element of the given byte size.
func StructElem(tag string, size int) Elem {
	return Elem{Kind: Struct, Size: size, Name: tag}
}

// ArrayElem builds an array-of-N element; N is the element count, not the
// byte size (the byte size is computed by TypeString.Sizeof).
func ArrayElem(n int) Elem {
	return Elem{Kind: Array, Size: n}
}

func baseSize(k Kind) int {
	switch k {
	case Int, Pointer, Function:
		return 2
	case Char:
		return 1
	case Float:
		return 4
	case Double:
		return 8
	default:
		return -1
	}
}

// TypeString is an ordered sequence of Elem, head-first (outermost
// modifier first), as spec §3 requires. A TypeString must be non-empty
// and only its last element may be a base type.
type TypeString []Elem

// Sizeof recursively computes the size in bytes, per spec §3: base types
// have fixed sizes; arrays multiply their count by the size of the suffix;
// structs carry a stored byte size. Panics on an empty type string, which
// is an internal invariant violation rather than a user error.
func (t TypeString) Sizeof() int {
	if len(t) == 0 {
		panic("types: empty type string")
	}
	head := t[0]
	if head.Kind == Array {
		return head.Size * t[1:].Sizeof()
	}
	if head.Kind == Struct {
		return head.Size
	}
	return baseSize(head.Kind)
}

// IsPointer reports whether the type string's outermost element is a
// pointer or array (both decay to a pointer-like address in expressions).
func (t TypeString) IsPointer() bool {
	if len(t) == 0 {
		return false
	}
	return t[0].Kind == Pointer || t[0].Kind == Array
}

// IsFunction reports whether the outermost element is a function.
func (t TypeString) IsFunction() bool {
	return len(t) > 0 && t[0].Kind == Function
}

// IsFloating reports whether the outermost element is float or double.
func (t TypeString) IsFloating() bool {
	if len(t) == 0 {
		return false
	}
	return t[0].Kind == Float || t[0].Kind == Double
}

// IsIntegral reports whether the outermost element is int or char.
func (t TypeString) IsIntegral() bool {
	if len(t) == 0 {
		return false
	}
	return t[0].Kind == Int || t[0].Kind == Char
}

// Pointee returns the type string with its leading pointer/array element
// stripped -- the type of *p or p[i] for p of this type. Panics if the
// outermost element is not a pointer or array.
func (t TypeString) Pointee() TypeString {
	if !t.IsPointer() {
		panic("types: Pointee of non-pointer type " + t.String())
	}
	return t[1:]
}

// WithPointer returns a new type string with an extra pointer element
// prepended -- the type of &x for x of this type.
func (t TypeString) WithPointer() TypeString {
	out := make(TypeString, 0, len(t)+1)
	out = append(out, PointElem)
	out = append(out, t...)
	return out
}

// Equal reports deep equality between two type strings.
func (t TypeString) Equal(o TypeString) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy, since TypeString is a slice and
// callers (symbol table entries, expression leaves) must not alias.
func (t TypeString) Clone() TypeString {
	out := make(TypeString, len(t))
	copy(out, t)
	return out
}

func (t TypeString) String() string {
	s := ""
	for _, e := range t {
		switch e.Kind {
		case Pointer:
			s += "*"
		case Array:
			s += fmt.Sprintf("[%d]", e.Size)
		case Function:
			s += "func()"
		case Struct:
			s += "struct " + e.Name
		default:
			s += e.Kind.String()
		}
	}
	return s
}
