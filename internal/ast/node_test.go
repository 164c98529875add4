package ast

import (
	"testing"

	"github.com/popeyeotaku/pyc6t/internal/types"
)

func con(v int64) *Node {
	return Leaf("con", 1, types.TypeString{types.IntElem}, v)
}

func name(typ types.TypeString) *Node {
	return Leaf("name", 1, typ, nil)
}

func TestBuildConstantFolding(t *testing.T) {
	tests := []struct {
		name  string
		label string
		kids  []*Node
		want  int64
	}{
		{"add", "add", []*Node{con(2), con(3)}, 5},
		{"sub", "sub", []*Node{con(5), con(2)}, 3},
		{"mult", "mult", []*Node{con(4), con(3)}, 12},
		{"16-bit wraparound", "add", []*Node{con(0xFFFF), con(1)}, 0},
		{"neg unary", "neg", []*Node{con(5)}, -5 & 0xFFFF},
		{"compl unary", "compl", []*Node{con(0)}, ^int64(0) & 0xFFFF},
		{"lognot of zero", "lognot", []*Node{con(0)}, 1},
		{"lognot of nonzero", "lognot", []*Node{con(9)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Build(nil, 1, tt.label, tt.kids)
			if n.Label != "con" {
				t.Fatalf("Build(%s) label = %s, want folded con", tt.label, n.Label)
			}
			if n.Value.(int64) != tt.want {
				t.Errorf("Build(%s) value = %d, want %d", tt.label, n.Value, tt.want)
			}
		})
	}
}

func TestBuildDivisionByZeroLeftUnfolded(t *testing.T) {
	n := Build(nil, 1, "div", []*Node{con(4), con(0)})
	if n.Label != "div" {
		t.Errorf("Build(div by 0) label = %s, want unfolded div node", n.Label)
	}
}

func TestBuildSizeofFoldsImmediately(t *testing.T) {
	n := Build(nil, 1, "sizeof", []*Node{name(types.TypeString{types.DoubleElem})})
	if n.Label != "con" || n.Value.(int64) != 8 {
		t.Errorf("Build(sizeof double) = %+v, want con 8", n)
	}
}

func TestBuildArrayDecay(t *testing.T) {
	arr := name(types.TypeString{types.ArrayElem(4), types.IntElem})
	n := Build(nil, 1, "add", []*Node{arr, con(1)})
	if n.Children[0].Label != "addr" {
		t.Fatalf("array operand should decay to addr(name), got %s", n.Children[0].Label)
	}
}

func TestBuildIntFloatPromotion(t *testing.T) {
	f := Leaf("name", 1, types.TypeString{types.DoubleElem}, nil)
	n := Build(nil, 1, "add", []*Node{con(1), f})
	if n.Children[0].Label != "toflt" {
		t.Fatalf("integer operand should be wrapped in toflt, got %s", n.Children[0].Label)
	}
	if !n.Type.Equal(types.TypeString{types.DoubleElem}) {
		t.Errorf("result type = %v, want double", n.Type)
	}
}

func TestBuildPointerArithmeticScaling(t *testing.T) {
	ptr := name(types.TypeString{types.PointElem, types.IntElem}) // sizeof(int) == 2
	n := Build(nil, 1, "add", []*Node{ptr, con(3)})
	other := n.Children[1]
	if other.Label != "con" || other.Value.(int64) != 6 {
		t.Errorf("pointer-scaled operand = %+v, want a folded con 6 (3 * sizeof(int))", other)
	}
	if !n.Type.Equal(ptr.Type) {
		t.Errorf("add(ptr, int) result type = %v, want the pointer's type", n.Type)
	}
}

func TestBuildPointerArithmeticNoScaleForByteSizedPointee(t *testing.T) {
	ptr := name(types.TypeString{types.PointElem, types.CharElem})
	n := Build(nil, 1, "add", []*Node{ptr, con(3)})
	if n.Children[1].Label != "con" || n.Children[1].Value.(int64) != 3 {
		t.Errorf("char pointer arithmetic should not scale, got %+v", n.Children[1])
	}
}

func TestBuildLvalueDiagnostic(t *testing.T) {
	var got string
	report := func(line int, format string, args ...any) {
		got = format
	}
	// assign requires its left child to be an lvalue; a bare constant isn't.
	Build(report, 1, "assign", []*Node{con(1), con(2)})
	if got == "" {
		t.Error("expected a diagnostic for an invalid lvalue")
	}
}

func TestBuildLvalueOKForName(t *testing.T) {
	var reported bool
	report := func(line int, format string, args ...any) { reported = true }
	Build(report, 1, "assign", []*Node{name(types.TypeString{types.IntElem}), con(2)})
	if reported {
		t.Error("assigning to a name should not diagnose an lvalue error")
	}
}

func TestBuildCondCommonType(t *testing.T) {
	cond := Build(nil, 1, "cond", []*Node{
		con(1),
		name(types.TypeString{types.IntElem}),
		name(types.TypeString{types.DoubleElem}),
	})
	if !cond.Type.Equal(types.TypeString{types.DoubleElem}) {
		t.Errorf("cond with a double branch should infer double, got %v", cond.Type)
	}
}

func TestBuildCallInheritsReturnType(t *testing.T) {
	fn := name(types.TypeString{types.FuncElem, types.DoubleElem})
	call := Build(nil, 1, "call", []*Node{fn})
	if !call.Type.Equal(types.TypeString{types.DoubleElem}) {
		t.Errorf("call should inherit the function's return type, got %v", call.Type)
	}
}

func TestBuildDerefAddrCancel(t *testing.T) {
	x := name(types.TypeString{types.IntElem})
	addr := Build(nil, 1, "addr", []*Node{x})
	back := Build(nil, 1, "deref", []*Node{addr})
	if back != x {
		t.Errorf("deref(addr(x)) should collapse back to x, got %+v", back)
	}
}

func TestBuildFloatIllegalOperation(t *testing.T) {
	var got string
	report := func(line int, format string, args ...any) { got = format }
	f := name(types.TypeString{types.DoubleElem})
	Build(report, 1, "and", []*Node{f, f})
	if got == "" {
		t.Error("bitwise and on floating operands should be diagnosed")
	}
}

func TestBuildIncDecNormalisesStep(t *testing.T) {
	ptr := name(types.TypeString{types.PointElem, types.IntElem})
	n := Build(nil, 1, "postinc", []*Node{ptr})
	if len(n.Children) != 2 {
		t.Fatalf("postinc should normalise to two children, got %d", len(n.Children))
	}
	step := n.Children[1]
	if step.Label != "con" || step.Value.(int64) != 2 {
		t.Errorf("postinc step on int pointer = %+v, want con 2", step)
	}
}

func TestIsLval(t *testing.T) {
	if !(&Node{Label: "name"}).IsLval() {
		t.Error("a name node should be an lvalue")
	}
	if (&Node{Label: "con"}).IsLval() {
		t.Error("a con node should not be an lvalue")
	}
}
