package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunCompilesLinksAndWritesExecutable(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "hello.c")
	if err := os.WriteFile(src, []byte("f() {\nreturn (1);\n}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out := filepath.Join(dir, "a.out")

	code := run([]string{"-o", out, src})
	if code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
	bin, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output executable was not written: %v", err)
	}
	if len(bin) == 0 {
		t.Error("output executable is empty")
	}
}

func TestRunStopAtPreprocessStage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "hello.c")
	if err := os.WriteFile(src, []byte("#define N 1\nint x = N;\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	code := run([]string{"-P", src})
	if code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "hello.i")); err != nil {
		t.Errorf("expected a .i file from -P: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.out")); err == nil {
		t.Error("a.out should not be written when -P stops the pipeline")
	}
}

func TestRunStopAtIRStage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "hello.c")
	if err := os.WriteFile(src, []byte("f() {\nreturn (1);\n}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	code := run([]string{"-R", src})
	if code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "hello.ir")); err != nil {
		t.Errorf("expected a .ir file from -R: %v", err)
	}
}

func TestRunObjectOnlyThenLink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "hello.c")
	if err := os.WriteFile(src, []byte("f() {\nreturn (1);\n}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if code := run([]string{"-c", src}); code != 0 {
		t.Fatalf("run(-c) = %d, want 0", code)
	}
	objPath := filepath.Join(dir, "hello.o")
	if _, err := os.Stat(objPath); err != nil {
		t.Fatalf("expected a .o file from -c: %v", err)
	}

	out := filepath.Join(dir, "a.out")
	if code := run([]string{"-o", out, objPath}); code != 0 {
		t.Fatalf("run() on a prebuilt object file = %d, want 0", code)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("expected a linked executable: %v", err)
	}
}

func TestRunNoInputFiles(t *testing.T) {
	if code := run(nil); code != 2 {
		t.Errorf("run(nil) = %d, want 2", code)
	}
}

func TestRunUndefinedSymbolFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.c")
	if err := os.WriteFile(src, []byte("f() {\nreturn (nosuchsymbol);\n}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if code := run([]string{"-o", filepath.Join(dir, "a.out"), src}); code == 0 {
		t.Error("run() should fail on an undefined symbol")
	}
}

func TestWithSuffix(t *testing.T) {
	tests := []struct {
		name, in, suffix, want string
	}{
		{"c source", "foo.c", ".s", "foo.s"},
		{"nested path", "dir/foo.c", ".o", "dir/foo.o"},
		{"no extension", "foo", ".i", "foo.i"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withSuffix(tt.in, tt.suffix); got != tt.want {
				t.Errorf("withSuffix(%q, %q) = %q, want %q", tt.in, tt.suffix, got, tt.want)
			}
		})
	}
}
