package objfile

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := NewModule()
	m.Text = []SegElem{
		{Bytes: []byte{0x01, 0x02, 0x03}},
		{Ref: &Reference{Flags: RefSymbol, Name: "foo", Con: 1}},
	}
	m.Data = []SegElem{
		{Bytes: []byte{0xaa}},
	}
	m.BSSLen = 4
	m.Syms["foo"] = &Symbol{Name: "foo", Value: 10, Flags: SymFlag(SegText) | FlagExport}
	m.Syms["bar"] = &Symbol{Name: "bar", Value: 20, Flags: SymFlag(SegBSS) | FlagCommon}

	data, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(got.Text) != 2 || !reflect.DeepEqual(got.Text[0].Bytes, m.Text[0].Bytes) {
		t.Errorf("text segment mismatch: %+v", got.Text)
	}
	if got.Text[1].Ref == nil || got.Text[1].Ref.Name != "foo" || got.Text[1].Ref.Con != 1 {
		t.Errorf("text reference mismatch: %+v", got.Text[1].Ref)
	}
	if got.BSSLen != 4 {
		t.Errorf("BSSLen = %d, want 4", got.BSSLen)
	}
	if got.Syms["foo"].Value != 10 || !got.Syms["foo"].Export() {
		t.Errorf("foo symbol mismatch: %+v", got.Syms["foo"])
	}
	if got.Syms["bar"].Value != 20 || !got.Syms["bar"].Common() {
		t.Errorf("bar symbol mismatch: %+v", got.Syms["bar"])
	}
}

func TestDecodeTruncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"header only", []byte{0, 0, 0, 0, 0, 0}},
		{"truncated literal run", []byte{1, 0, 0, 0, 0, 0, 3, 1, 2}}, // claims 3 bytes, has 2
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); err == nil {
				t.Error("expected an error, got none")
			}
		})
	}
}

func TestReferenceResolve(t *testing.T) {
	syms := map[string]*Symbol{
		"foo": {Name: "foo", Value: 0x1234},
	}

	tests := []struct {
		name string
		ref  Reference
		base int64
		want []byte
	}{
		{
			name: "plain word, symbol relative",
			ref:  Reference{Flags: RefSymbol, Name: "foo"},
			want: []byte{0x34, 0x12},
		},
		{
			name: "low byte selector",
			ref:  Reference{Flags: RefSymbol | RefHiLo | RefByte, Name: "foo"},
			want: []byte{0x34},
		},
		{
			name: "high byte selector",
			ref:  Reference{Flags: RefSymbol | RefHiLo | RefHi | RefByte, Name: "foo"},
			want: []byte{0x12},
		},
		{
			name: "pc-relative, no symbol",
			ref:  Reference{Con: 2},
			base: 0x10,
			want: []byte{0x12, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ref.Resolve(tt.base, syms)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReferenceResolveErrors(t *testing.T) {
	commonSyms := map[string]*Symbol{
		"foo": {Name: "foo", Flags: FlagCommon},
	}
	if _, err := (Reference{Flags: RefSymbol, Name: "foo"}).Resolve(0, commonSyms); err == nil {
		t.Error("expected an error referencing a common symbol")
	}
	if _, err := (Reference{Flags: RefSymbol, Name: "missing"}).Resolve(0, map[string]*Symbol{}); err == nil {
		t.Error("expected an error referencing an undefined symbol")
	}
}
