// Command c6t drives the C6T toolchain end to end: preprocessor, parser
// front end, 8080 backend, assembler, and linker, per spec §6's CLI
// surface. Each pipeline stage stays a thin call into its internal
// package, in the style of the teacher's gmofishsauce-wut4/lang/yasm and
// /asm main.go files (flat flag.Bool/flag.String, one positional file
// list, errors printed to stderr with a nonzero exit).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/popeyeotaku/pyc6t/internal/asm8080"
	"github.com/popeyeotaku/pyc6t/internal/assets"
	"github.com/popeyeotaku/pyc6t/internal/backend"
	"github.com/popeyeotaku/pyc6t/internal/backend/template"
	"github.com/popeyeotaku/pyc6t/internal/diag"
	"github.com/popeyeotaku/pyc6t/internal/link"
	"github.com/popeyeotaku/pyc6t/internal/objfile"
	"github.com/popeyeotaku/pyc6t/internal/parser"
	"github.com/popeyeotaku/pyc6t/internal/preprocess"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("c6t", flag.ContinueOnError)
	stopPreprocess := fs.Bool("P", false, "emit preprocessed output (.i) and stop")
	stopAssembly := fs.Bool("S", false, "emit assembly (.s) and stop")
	stopIR := fs.Bool("R", false, "emit IR (.ir) and stop")
	objOnly := fs.Bool("c", false, "emit object files (.o) only, no linkage")
	symList := fs.Bool("Y", false, "emit a symbol listing (.sym) alongside the executable")
	output := fs.String("o", "a.out", "output executable name")
	opcodesPath := fs.String("opcodes", "", "opcode table JSON (default: built in)")
	templatesPath := fs.String("templates", "", "codegen template JSON (default: built in)")
	noCrt := fs.Bool("nostdlib", false, "don't link the builtin runtime library")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: no input files")
		return 2
	}

	opcodeData := assets.Opcodes
	if *opcodesPath != "" {
		data, err := os.ReadFile(*opcodesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		opcodeData = data
	}
	opcodes, err := asm8080.LoadOpcodes(opcodeData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	templateData := assets.Templates
	if *templatesPath != "" {
		data, err := os.ReadFile(*templatesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		templateData = data
	}
	templates, err := template.Load(templateData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	bag := diag.New(os.Stderr)
	var modules []*objfile.Module
	stopped := false

	for _, name := range fs.Args() {
		mod, halt, err := compileOne(name, bag, opcodes, templates, *stopPreprocess, *stopIR, *stopAssembly, *objOnly)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if halt {
			stopped = true
			continue
		}
		if mod != nil {
			modules = append(modules, mod)
		}
	}

	if bag.Count > 0 {
		return 1
	}
	if stopped {
		return 0
	}

	linker := link.New(modules)
	if !*noCrt {
		crtMod := asm8080.New(opcodes).Assemble(assets.Runtime)
		if crtMod == nil {
			fmt.Fprintln(os.Stderr, "Error: builtin runtime library failed to assemble")
			return 1
		}
		linker.AddLibrary(crtMod)
	}

	bin, syms, err := linker.Link()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(linker.Errors()) > 0 {
		for _, e := range linker.Errors() {
			fmt.Fprintln(os.Stderr, e)
		}
		return 1
	}

	if err := os.WriteFile(*output, bin, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *symList {
		if err := writeSymbolListing(withSuffix(*output, ".sym"), syms); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

// compileOne runs one input file through as much of the pipeline as its
// suffix and the stop-early flags call for, per spec §6: `.c` compiles
// from source, `.s` assembles, anything else at link stage is read back
// as a serialised object module. halt reports that this file's own stage
// flag stopped the pipeline (-P/-S/-R/-c), so its result never reaches
// the linker.
func compileOne(name string, bag *diag.Bag, opcodes map[string]*asm8080.Opcode, templates []*template.Template,
	stopPP, stopIR, stopAsm, objOnly bool) (mod *objfile.Module, halt bool, err error) {

	switch filepath.Ext(name) {
	case ".c":
		src, err := os.ReadFile(name)
		if err != nil {
			return nil, false, err
		}
		pre := preprocess.Run(string(src), bag, readIncludeFile)
		if stopPP {
			return nil, true, os.WriteFile(withSuffix(name, ".i"), []byte(pre), 0o644)
		}

		irText := parser.Program(pre, bag)
		if stopIR {
			return nil, true, os.WriteFile(withSuffix(name, ".ir"), []byte(irText), 0o644)
		}
		if bag.Count > 0 {
			return nil, true, nil
		}

		asmText, err := backend.New(templates).Run(irText)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", name, err)
		}
		return finishAssembly(name, asmText, opcodes, stopAsm, objOnly)

	case ".s":
		src, err := os.ReadFile(name)
		if err != nil {
			return nil, false, err
		}
		return finishAssembly(name, string(src), opcodes, stopAsm, objOnly)

	default:
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, false, err
		}
		mod, err := objfile.Decode(data)
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", name, err)
		}
		return mod, false, nil
	}
}

func finishAssembly(name, asmText string, opcodes map[string]*asm8080.Opcode, stopAsm, objOnly bool) (*objfile.Module, bool, error) {
	if stopAsm {
		return nil, true, os.WriteFile(withSuffix(name, ".s"), []byte(asmText), 0o644)
	}
	asm := asm8080.New(opcodes)
	mod := asm.Assemble(asmText)
	if len(asm.Errors()) > 0 {
		for _, e := range asm.Errors() {
			fmt.Fprintln(os.Stderr, e)
		}
		return nil, true, fmt.Errorf("%s: assembly failed", name)
	}
	if objOnly {
		data, err := mod.Encode()
		if err != nil {
			return nil, true, err
		}
		return nil, true, os.WriteFile(withSuffix(name, ".o"), data, 0o644)
	}
	return mod, false, nil
}

// readIncludeFile adapts os.ReadFile to preprocess.Run's #include
// callback signature, which wants source text rather than raw bytes.
func readIncludeFile(name string) (string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func withSuffix(name, suffix string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + suffix
}

func writeSymbolListing(path string, syms []objfile.Symbol) error {
	var b strings.Builder
	for _, s := range syms {
		fmt.Fprintf(&b, "%04x %s\n", s.Value, s.Name)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
