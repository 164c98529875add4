package types

import "testing"

func TestSizeof(t *testing.T) {
	tests := []struct {
		name string
		typ  TypeString
		want int
	}{
		{"int", TypeString{IntElem}, 2},
		{"char", TypeString{CharElem}, 1},
		{"float", TypeString{FloatElem}, 4},
		{"double", TypeString{DoubleElem}, 8},
		{"pointer to char", TypeString{PointElem, CharElem}, 2},
		{"array of 3 ints", TypeString{ArrayElem(3), IntElem}, 6},
		{"struct", TypeString{StructElem("point", 4)}, 4},
		{"array of arrays", TypeString{ArrayElem(2), ArrayElem(3), IntElem}, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.Sizeof(); got != tt.want {
				t.Errorf("Sizeof() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSizeofEmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic on an empty type string")
		}
	}()
	TypeString{}.Sizeof()
}

func TestIsPointer(t *testing.T) {
	if !(TypeString{PointElem, IntElem}).IsPointer() {
		t.Error("pointer type should report IsPointer")
	}
	if !(TypeString{ArrayElem(4), IntElem}).IsPointer() {
		t.Error("array type should report IsPointer (array decays to pointer)")
	}
	if (TypeString{IntElem}).IsPointer() {
		t.Error("plain int should not report IsPointer")
	}
}

func TestIsFloatingIsIntegral(t *testing.T) {
	if !(TypeString{FloatElem}).IsFloating() || !(TypeString{DoubleElem}).IsFloating() {
		t.Error("float/double should report IsFloating")
	}
	if (TypeString{IntElem}).IsFloating() {
		t.Error("int should not report IsFloating")
	}
	if !(TypeString{IntElem}).IsIntegral() || !(TypeString{CharElem}).IsIntegral() {
		t.Error("int/char should report IsIntegral")
	}
	if (TypeString{FloatElem}).IsIntegral() {
		t.Error("float should not report IsIntegral")
	}
}

func TestPointeeOfNonPointerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic on Pointee of a non-pointer type")
		}
	}()
	TypeString{IntElem}.Pointee()
}

func TestWithPointerAndPointeeRoundTrip(t *testing.T) {
	base := TypeString{CharElem}
	ptr := base.WithPointer()
	if !ptr.IsPointer() {
		t.Fatal("WithPointer result should be a pointer type")
	}
	if !ptr.Pointee().Equal(base) {
		t.Errorf("Pointee() = %v, want %v", ptr.Pointee(), base)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := TypeString{PointElem, IntElem}
	clone := orig.Clone()
	clone[0] = CharElem
	if orig[0] != PointElem {
		t.Error("mutating a clone should not affect the original")
	}
}

func TestEqual(t *testing.T) {
	a := TypeString{PointElem, IntElem}
	b := TypeString{PointElem, IntElem}
	c := TypeString{PointElem, CharElem}
	if !a.Equal(b) {
		t.Error("structurally identical type strings should be Equal")
	}
	if a.Equal(c) {
		t.Error("differing element types should not be Equal")
	}
}
