package backend

import (
	"fmt"
	"strings"

	"github.com/popeyeotaku/pyc6t/internal/backend/template"
	"github.com/popeyeotaku/pyc6t/internal/ir"
)

// segNames is the fixed segment emission order, per spec §4.4's "Backend
// output is assembly text, one segment per logical section".
var segNames = []string{".text", ".data", ".bss", ".string"}

const regVars = 3 // number of register-variable save slots a function prologue reserves

// Backend drives IR-to-8080-assembly codegen: it implements ir.Driver so
// internal/ir.Assemble can feed it Command/Label elements against a live
// node stack, and it owns the per-segment output buffers, label counter,
// and template matcher.
//
// Grounded on _examples/original_source/c8080.py's Code8080 class.
type Backend struct {
	matcher *template.Matcher
	segs    map[string]*strings.Builder
	curseg  string
	curlab  int
	errs    []string
}

// New returns a Backend driven by the given template set.
func New(templates []*template.Template) *Backend {
	b := &Backend{
		matcher: template.NewMatcher(templates),
		segs:    map[string]*strings.Builder{},
		curseg:  ".text",
	}
	for _, s := range segNames {
		b.segs[s] = &strings.Builder{}
	}
	return b
}

// Run feeds ir text through the node-stack assembler and returns the
// concatenated assembly output.
func (b *Backend) Run(irText string) (string, error) {
	p := ir.NewParser(irText)
	elems, err := p.All()
	if err != nil {
		return "", err
	}
	if err := ir.Assemble(elems, b); err != nil {
		return "", err
	}
	if len(b.errs) > 0 {
		return "", fmt.Errorf("backend: %s", strings.Join(b.errs, "; "))
	}
	return b.GetAsm(), nil
}

// GetAsm concatenates every segment's buffered text, one segment header
// per section, per spec §4.4. The assembler has no .string segment, so
// the .string buffer is written under a .data header.
func (b *Backend) GetAsm() string {
	var out strings.Builder
	for _, s := range segNames {
		if s == ".string" {
			out.WriteString(".data")
		} else {
			out.WriteString(s)
		}
		out.WriteByte('\n')
		out.WriteString(b.segs[s].String())
	}
	return out.String()
}

func (b *Backend) asm(lines ...string) {
	for _, l := range lines {
		b.segs[b.curseg].WriteByte('\t')
		b.segs[b.curseg].WriteString(l)
		b.segs[b.curseg].WriteByte('\n')
	}
}

// DefLabel implements ir.Driver.
func (b *Backend) DefLabel(name string) {
	b.segs[b.curseg].WriteString(name)
	b.segs[b.curseg].WriteString(":\n")
}

func (b *Backend) nextLabel() string {
	b.curlab++
	return fmt.Sprintf("LL%d", b.curlab)
}

func (b *Backend) errorf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Sprintf(format, args...))
}

// reg is one of the two working 16-bit register pairs.
type reg int

const (
	regHL reg = iota
	regDE
)

func (r reg) names() (hi, lo string) {
	if r == regDE {
		return "d", "e"
	}
	return "h", "l"
}

func (r reg) String() string {
	if r == regDE {
		return "d"
	}
	return "h"
}

func other(r reg) reg {
	if r == regHL {
		return regDE
	}
	return regHL
}

// immed loads a literal or symbolic value into reg directly, bypassing
// template matching (used for con leaves and for the 0/1
// materialisation of a logical result), per c8080.py's immed().
func (b *Backend) immed(r reg, value string) {
	if r == regHL {
		b.asm(fmt.Sprintf("lxi h,%s", value))
		return
	}
	b.asm(fmt.Sprintf("mvi e,<%s", value), fmt.Sprintf("mvi d,>%s", value))
}

// Command implements ir.Driver: executes one backend command against the
// live node stack, per spec §4.4's "Command dispatch".
func (b *Backend) Command(cmd *ir.Command, stack *[]*ir.Node) {
	pop := func() *Node {
		if len(*stack) == 0 {
			b.errorf("command %s: node stack underflow", cmd.Cmd)
			return leaf("con", int64(0))
		}
		n := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
		return Convert(fromIR(n))
	}

	switch cmd.Cmd {
	case ".text", ".data", ".bss", ".string":
		b.curseg = cmd.Cmd
	case ".common":
		if len(cmd.Args) < 2 {
			b.errorf(".common requires name,size")
			return
		}
		old := b.curseg
		b.curseg = ".bss"
		b.asm(fmt.Sprintf(".common %v,%v", cmd.Args[0], cmd.Args[1]))
		b.curseg = old
	case ".export":
		// Passed through; export bookkeeping lives in the assembler/object
		// layer once this text is reassembled.
		names := make([]string, len(cmd.Args))
		for i, a := range cmd.Args {
			names[i] = fmt.Sprintf("%v", a)
		}
		if len(names) > 0 {
			b.asm(".export " + strings.Join(names, ","))
		}
	case "useregs":
		// No code effect.
	case ".dc":
		for _, a := range cmd.Args {
			b.asm(fmt.Sprintf(".byte %v", a))
		}
	case ".dw":
		for _, a := range cmd.Args {
			b.asm(fmt.Sprintf(".word %v", a))
		}
	case "eval":
		b.Eval(pop())
	case "brz":
		if len(cmd.Args) < 1 {
			b.errorf("brz requires a label argument")
			return
		}
		n := &Node{Label: "brz", Children: []*Node{pop()}, Value: cmd.Args[0]}
		b.Eval(n)
	case "jmp":
		if len(cmd.Args) > 0 {
			b.asm(fmt.Sprintf("jmp %v", cmd.Args[0]))
		}
	case "ijmp":
		n := pop()
		b.AsmNode(n, regHL)
		b.asm("pchl")
	case ".func":
		b.asm("push b")
		for i := 0; i < regVars; i++ {
			b.asm(fmt.Sprintf("lhld reg%d", i), "push h")
		}
		b.asm("lxi h,0", "dad sp", "mov c,l", "mov b,h")
		// Reserve the body's auto-local frame below the frame pointer just
		// established in BC, so a later push (call argument, register
		// spill) grows the real stack below the reserved region instead of
		// overwriting it.
		if len(cmd.Args) > 0 {
			if sz, ok := asInt(cmd.Args[0]); ok && sz > 0 {
				b.asm(fmt.Sprintf("lxi h,-%d", sz), "dad sp", "sphl")
			}
		}
	case "retnull":
		b.asm("jmp cret")
	case "ret":
		b.Eval(pop())
		b.asm("jmp cret")
	case "doswitch":
		b.asmSwitch(pop(), cmd.Args)
	case ".ds":
		if len(cmd.Args) > 0 {
			b.asm(fmt.Sprintf(".storage %v", cmd.Args[0]))
		}
	default:
		b.errorf("unsupported command %s", cmd.Cmd)
	}
}

// Eval converts and assembles node, leaving its result in H (HL), per
// spec §4.4's "results flow into one of two 16-bit register pairs...H is
// the conventional result register".
func (b *Backend) Eval(n *Node) {
	b.AsmNode(Convert(n), regHL)
}

// asmSwitch emits a C6T `switch` dispatch: a linear compare-and-branch
// chain against the case constant list, falling through to the default
// label if none match. This is a SPECIAL-cased construct per spec §4.4
// (alongside call/logand/logor/cond/comma/brz/ijmp/function prologues)
// since its evaluation order is not a simple subtree recursion.
func (b *Backend) asmSwitch(scrutinee *Node, caseLabels []any) {
	b.AsmNode(scrutinee, regHL)
	b.asm("shld swtmp")
	for i := 0; i+1 < len(caseLabels); i += 2 {
		// sbb's high-byte result alone isn't a valid 16-bit zero test (a
		// borrow into a zero high byte still reads Z), so the low-byte
		// result is saved in L and ora'd with the high byte before the
		// branch, per asmCompare's relGreat/relLequ handling.
		b.asm(fmt.Sprintf("lhld swtmp"), fmt.Sprintf("lxi d,%v", caseLabels[i]),
			"mov a,l", "sub e", "mov l,a",
			"mov a,h", "sbb d", "mov h,a",
			"ora l",
			fmt.Sprintf("jz %v", caseLabels[i+1]))
	}
	if len(caseLabels)%2 == 1 {
		b.asm(fmt.Sprintf("jmp %v", caseLabels[len(caseLabels)-1]))
	}
}
