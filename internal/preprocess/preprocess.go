// Package preprocess implements the C6T preprocessor (spec §4.1): comment
// stripping, a textual #define macro facility, and single-level #include.
//
// Grounded on _examples/original_source/preproc.py (strip_comments,
// Includer, replace, preproc), generalized from Python's line-deque idiom
// into a Go slice-based line queue in the teacher's (gmofishsauce-wut4)
// imperative style.
package preprocess

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/popeyeotaku/pyc6t/internal/diag"
)

// StripComments removes /* ... */ comments at the character level. Nesting
// is not supported; an unterminated comment consumes the remainder of the
// text, per spec §4.1.
func StripComments(text string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		if strings.HasPrefix(text[i:], "/*") {
			i += 2
			for i < len(text) && !strings.HasPrefix(text[i:], "*/") {
				i++
			}
			i += 2
		} else {
			out.WriteByte(text[i])
			i++
		}
	}
	return out.String()
}

// includer is a line queue supporting one level of #include splicing,
// marked with '@' sentinels the tokenizer uses to toggle line counting.
// Mirrors preproc.py's Includer.
type includer struct {
	lines     []string
	inInclude bool
	bag       *diag.Bag
	line      int
	readFile  func(string) (string, error)
}

func splitLinesKeepEnds(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func (inc *includer) next() (string, bool) {
	if len(inc.lines) == 0 {
		return "", false
	}
	line := inc.lines[0]
	inc.lines = inc.lines[1:]
	if line == "@" {
		inc.inInclude = !inc.inInclude
	}
	return line, true
}

func (inc *includer) include(line int, filename string) {
	if inc.inInclude {
		inc.bag.Error(line, "includes only support one depth")
		return
	}
	text, err := inc.readFile(filename)
	if err != nil {
		inc.bag.Error(line, "unable to open file %q", filename)
		return
	}
	body := append([]string{"@"}, splitLinesKeepEnds(text)...)
	body = append(body, "@")
	inc.lines = append(body, inc.lines...)
}

// replace substitutes every registered macro name with its expansion,
// longest key first across the whole set, per spec §4.1.
func replace(line string, macros map[string]string) string {
	keys := make([]string, 0, len(macros))
	for k := range macros {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	var out strings.Builder
	i := 0
	for i < len(line) {
		found := false
		for _, key := range keys {
			if strings.HasPrefix(line[i:], key) {
				out.WriteString(macros[key])
				i += len(key)
				found = true
				break
			}
		}
		if !found {
			out.WriteByte(line[i])
			i++
		}
	}
	return out.String()
}

// Run preprocesses source, reading include files via readFile (os.ReadFile
// in production, a stub in tests). Per spec §4.1, the preprocessor only
// runs at all when the very first character of source is '#' -- a dialect
// quirk preserved exactly. Every directive line in the output is replaced
// with a blank line so subsequent line numbers stay aligned.
func Run(source string, bag *diag.Bag, readFile func(string) (string, error)) string {
	if len(source) == 0 || source[0] != '#' {
		return source
	}
	if readFile == nil {
		readFile = func(path string) (string, error) {
			b, err := os.ReadFile(filepath.Clean(path))
			return string(b), err
		}
	}

	macros := map[string]string{}
	inc := &includer{
		lines:    splitLinesKeepEnds(source),
		bag:      bag,
		readFile: readFile,
	}

	var out strings.Builder
	curline := 0
	countLines := true

	for {
		line, ok := inc.next()
		if !ok {
			break
		}
		if line == "@" {
			countLines = !countLines
		}
		if countLines {
			curline += strings.Count(line, "\n")
		}
		switch {
		case line == "@":
			// Sentinel line only toggled above; contributes nothing to
			// output, matching preproc.py (the '@' line itself is consumed
			// by the Includer and never reaches `out`).
		case strings.HasPrefix(line, "#"):
			out.WriteByte('\n')
			body := strings.TrimSpace(line[1:])
			switch {
			case strings.HasPrefix(body, "define"):
				fields := splitDefine(body)
				if len(fields) < 3 {
					bag.Error(curline, "bad define")
					continue
				}
				name := fields[1]
				if _, exists := macros[name]; exists {
					bag.Error(curline, "macro %s already defined", name)
					continue
				}
				macros[name] = " " + StripComments(fields[2]) + " "
			case strings.HasPrefix(body, "include"):
				name, ok := parseInclude(body)
				if !ok {
					bag.Error(curline, "bad include")
					continue
				}
				inc.include(curline, name)
			default:
				bag.Error(curline, "unknown preprocessor directive")
			}
		default:
			out.WriteString(replace(line, macros))
		}
	}
	return out.String()
}

// splitDefine splits "#define NAME replacement text..." (body already has
// the leading '#' and surrounding whitespace stripped) into up to three
// fields: "define", NAME, and the remainder of the line verbatim.
func splitDefine(body string) []string {
	fields := strings.Fields(body)
	if len(fields) < 2 {
		return fields
	}
	// Reconstruct the replacement text from the original string so internal
	// whitespace is preserved, rather than Fields' collapsed version.
	rest := body[len("define"):]
	rest = strings.TrimLeft(rest, " \t")
	rest = strings.TrimPrefix(rest, fields[1])
	return []string{"define", fields[1], strings.TrimLeft(rest, " \t")}
}

func parseInclude(body string) (string, bool) {
	rest := strings.TrimSpace(body[len("include"):])
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

// Idempotence (spec §8: "Preprocess ∘ preprocess = preprocess on any
// input") falls out of the first-character gate above: once run, output
// never begins with '#' again (directive lines become blank lines), so a
// second Run call is always a no-op identity.
