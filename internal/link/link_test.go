package link

import (
	"testing"

	"github.com/popeyeotaku/pyc6t/internal/objfile"
)

func TestLinkResolvesCrossModuleReference(t *testing.T) {
	modA := objfile.NewModule()
	modA.Text = []objfile.SegElem{
		{Bytes: []byte{0x03}},
		{Ref: &objfile.Reference{Flags: objfile.RefSymbol, Name: "foo"}},
	}
	modA.Syms["main"] = &objfile.Symbol{Name: "main", Value: 0, Flags: objfile.SymFlag(objfile.SegText) | objfile.FlagExport}

	modB := objfile.NewModule()
	modB.Text = []objfile.SegElem{{Bytes: []byte{0x99}}}
	modB.Syms["foo"] = &objfile.Symbol{Name: "foo", Value: 0, Flags: objfile.SymFlag(objfile.SegText) | objfile.FlagExport}

	l := New([]*objfile.Module{modA, modB})
	bin, syms, err := l.Link()
	if err != nil {
		t.Fatalf("Link: %v (errs=%v)", err, l.Errors())
	}

	want := []byte{0x03, 0x03, 0x00, 0x99}
	if len(bin) != len(want) {
		t.Fatalf("bin = %v, want %v", bin, want)
	}
	for i := range want {
		if bin[i] != want[i] {
			t.Errorf("bin[%d] = %#x, want %#x (full: %v)", i, bin[i], want[i], bin)
		}
	}

	var fooVal uint16
	found := false
	for _, s := range syms {
		if s.Name == "foo" {
			fooVal = s.Value
			found = true
		}
	}
	if !found || fooVal != 3 {
		t.Errorf("foo resolved to %d, want 3 (after modA's 3-byte text)", fooVal)
	}
}

func TestLinkUndefinedSymbol(t *testing.T) {
	mod := objfile.NewModule()
	mod.Text = []objfile.SegElem{
		{Ref: &objfile.Reference{Flags: objfile.RefSymbol, Name: "nowhere"}},
	}
	l := New([]*objfile.Module{mod})
	_, _, err := l.Link()
	if err == nil {
		t.Fatal("expected an undefined-symbol error")
	}
}

func TestLinkPullsLibraryOnDemand(t *testing.T) {
	main := objfile.NewModule()
	main.Text = []objfile.SegElem{
		{Ref: &objfile.Reference{Flags: objfile.RefSymbol, Name: "helper"}},
	}
	main.Syms["main"] = &objfile.Symbol{Name: "main", Flags: objfile.SymFlag(objfile.SegText) | objfile.FlagExport}

	unused := objfile.NewModule()
	unused.Text = []objfile.SegElem{{Bytes: []byte{0xff}}}
	unused.Syms["unused"] = &objfile.Symbol{Name: "unused", Flags: objfile.SymFlag(objfile.SegText) | objfile.FlagExport}

	helperLib := objfile.NewModule()
	helperLib.Text = []objfile.SegElem{{Bytes: []byte{0x01, 0x02}}}
	helperLib.Syms["helper"] = &objfile.Symbol{Name: "helper", Flags: objfile.SymFlag(objfile.SegText) | objfile.FlagExport}

	l := New([]*objfile.Module{main})
	l.AddLibrary(unused)
	l.AddLibrary(helperLib)

	bin, _, err := l.Link()
	if err != nil {
		t.Fatalf("Link: %v (errs=%v)", err, l.Errors())
	}
	// main's 2-byte relocation to helper, then helper's own 2 literal
	// bytes -- unused is never pulled in since nothing references it.
	if len(bin) != 4 {
		t.Fatalf("bin = %v, want 4 bytes (unused library module must not be pulled in)", bin)
	}
}

func TestLinkResolvesCommonByLargestSize(t *testing.T) {
	modA := objfile.NewModule()
	modA.Syms["buf"] = &objfile.Symbol{Name: "buf", Value: 4, Flags: objfile.SymFlag(objfile.SegBSS) | objfile.FlagCommon}
	modA.Syms["main"] = &objfile.Symbol{Name: "main", Flags: objfile.SymFlag(objfile.SegText) | objfile.FlagExport}

	modB := objfile.NewModule()
	modB.Syms["buf"] = &objfile.Symbol{Name: "buf", Value: 2, Flags: objfile.SymFlag(objfile.SegBSS) | objfile.FlagCommon}

	l := New([]*objfile.Module{modA, modB})
	_, syms, err := l.Link()
	if err != nil {
		t.Fatalf("Link: %v (errs=%v)", err, l.Errors())
	}
	for _, s := range syms {
		if s.Name == "buf" {
			if s.Common() || !s.Export() {
				t.Errorf("buf flags = %v, want a plain exported bss placement (common resolved away)", s.Flags)
			}
			return
		}
	}
	t.Error("buf symbol not present in final symbol dump")
}

func TestLinkDuplicateExportIsAnError(t *testing.T) {
	modA := objfile.NewModule()
	modA.Syms["main"] = &objfile.Symbol{Name: "main", Flags: objfile.SymFlag(objfile.SegText) | objfile.FlagExport}
	modB := objfile.NewModule()
	modB.Syms["main"] = &objfile.Symbol{Name: "main", Flags: objfile.SymFlag(objfile.SegText) | objfile.FlagExport}

	l := New([]*objfile.Module{modA, modB})
	if _, _, err := l.Link(); err == nil {
		t.Error("expected a duplicate-export error")
	}
}
