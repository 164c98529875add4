package preprocess

import (
	"bytes"
	"strings"
	"testing"

	"github.com/popeyeotaku/pyc6t/internal/diag"
)

func TestStripComments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no comment", "int x;", "int x;"},
		{"simple comment", "int /* a comment */ x;", "int  x;"},
		{"comment spanning text", "a/*one*/b/*two*/c", "abc"},
		{"unterminated comment consumes rest", "a /* never closes", "a "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripComments(tt.in); got != tt.want {
				t.Errorf("StripComments(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRunNoLeadingHash(t *testing.T) {
	// Per spec §4.1, the preprocessor is a no-op unless the source's very
	// first character is '#'.
	src := "int x;\n#define FOO 1\n"
	var buf bytes.Buffer
	bag := diag.New(&buf)
	got := Run(src, bag, nil)
	if got != src {
		t.Errorf("Run() = %q, want unchanged input %q", got, src)
	}
	if bag.Count != 0 {
		t.Errorf("bag.Count = %d, want 0", bag.Count)
	}
}

func TestRunDefine(t *testing.T) {
	src := "#define FOO 42\nint x = FOO;\n"
	var buf bytes.Buffer
	bag := diag.New(&buf)
	got := Run(src, bag, nil)
	if bag.Count != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Worst)
	}
	if !strings.Contains(got, "int x = 42 ;") && !strings.Contains(got, "int x =  42 ;") {
		t.Errorf("Run() output %q does not contain the expanded macro", got)
	}
}

func TestRunDuplicateDefine(t *testing.T) {
	src := "#define FOO 1\n#define FOO 2\n"
	var buf bytes.Buffer
	bag := diag.New(&buf)
	Run(src, bag, nil)
	if bag.Count == 0 {
		t.Error("expected a diagnostic for redefining FOO")
	}
}

func TestRunInclude(t *testing.T) {
	src := "#include \"foo.h\"\nint y;\n"
	reads := map[string]string{"foo.h": "int x;\n"}
	readFile := func(name string) (string, error) {
		if body, ok := reads[name]; ok {
			return body, nil
		}
		return "", errNotFound{}
	}
	var buf bytes.Buffer
	bag := diag.New(&buf)
	got := Run(src, bag, readFile)
	if bag.Count != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Worst)
	}
	if !strings.Contains(got, "int x;") || !strings.Contains(got, "int y;") {
		t.Errorf("Run() output %q missing included or trailing content", got)
	}
}

func TestRunIncludeMissingFile(t *testing.T) {
	src := "#include \"missing.h\"\n"
	var buf bytes.Buffer
	bag := diag.New(&buf)
	Run(src, bag, func(name string) (string, error) {
		return "", errNotFound{}
	})
	if bag.Count == 0 {
		t.Error("expected a diagnostic for a missing include file")
	}
}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

func TestRunIdempotent(t *testing.T) {
	src := "#define FOO 1\nint x = FOO;\n"
	var buf bytes.Buffer
	bag := diag.New(&buf)
	once := Run(src, bag, nil)
	twice := Run(once, diag.New(&buf), nil)
	if once != twice {
		t.Errorf("Run is not idempotent: once=%q twice=%q", once, twice)
	}
}
