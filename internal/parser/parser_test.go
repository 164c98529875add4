package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/popeyeotaku/pyc6t/internal/diag"
)

func TestProgramSimpleFunction(t *testing.T) {
	src := "f() {\nint x;\nx = 1;\n}\n"
	var buf bytes.Buffer
	bag := diag.New(&buf)
	ir := Program(src, bag)
	if bag.Count != 0 {
		t.Fatalf("unexpected diagnostics: %v", buf.String())
	}
	if !strings.Contains(ir, "f:\n") {
		t.Errorf("ir = %q, missing function label", ir)
	}
	if !strings.Contains(ir, ".func 00002\n") {
		t.Errorf("ir = %q, want a .func frame of 2 bytes for one int local", ir)
	}
}

func TestProgramNestedBlockExtendsFrame(t *testing.T) {
	// The if-body is a nested `{ }` with its own declaration (a char),
	// which must extend the function's auto frame beyond the outer
	// block's own declarations -- the scenario the frame-size patch
	// (reserveFrameSize/patchFrameSize) exists to handle correctly.
	src := "f() {\nint x;\nif (x) {\nchar y;\ny = 2;\n}\nx = 1;\n}\n"
	var buf bytes.Buffer
	bag := diag.New(&buf)
	ir := Program(src, bag)
	if bag.Count != 0 {
		t.Fatalf("unexpected diagnostics: %v", buf.String())
	}
	if !strings.Contains(ir, ".func 00003\n") {
		t.Errorf("ir = %q, want a .func frame of 3 bytes (int x + nested char y)", ir)
	}
}

func TestProgramDeeplyNestedBlocks(t *testing.T) {
	src := "f() {\nint a;\nif (a) {\nint b;\nif (b) {\nint c;\nc = 3;\n}\n}\n}\n"
	var buf bytes.Buffer
	bag := diag.New(&buf)
	ir := Program(src, bag)
	if bag.Count != 0 {
		t.Fatalf("unexpected diagnostics: %v", buf.String())
	}
	// a, b, c are all ints (2 bytes each) at successively deeper nesting.
	if !strings.Contains(ir, ".func 00006\n") {
		t.Errorf("ir = %q, want a .func frame of 6 bytes across three nested int locals", ir)
	}
}

func TestProgramGlobalDataDef(t *testing.T) {
	src := "int g = 5;\n"
	var buf bytes.Buffer
	bag := diag.New(&buf)
	ir := Program(src, bag)
	if bag.Count != 0 {
		t.Fatalf("unexpected diagnostics: %v", buf.String())
	}
	if !strings.Contains(ir, ".export g\n") || !strings.Contains(ir, "g:\n") {
		t.Errorf("ir = %q, missing exported global label", ir)
	}
}

func TestProgramUndefinedSymbolDiagnosed(t *testing.T) {
	src := "f() {\nreturn (nosuch);\n}\n"
	var buf bytes.Buffer
	bag := diag.New(&buf)
	Program(src, bag)
	if bag.Count == 0 {
		t.Error("expected a diagnostic for an undefined symbol")
	}
}

func TestItoa(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{5, "5"},
		{-5, "-5"},
		{123, "123"},
	}
	for _, tt := range tests {
		if got := itoa(tt.n); got != tt.want {
			t.Errorf("itoa(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
