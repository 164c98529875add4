package backend

import "fmt"

// asmCall emits a function call: push arguments right-to-left (the
// comma-chain built by Convert nests them right-associatively, and
// pushArgs walks it right child first), then call the callee, per spec
// §4.4's call SPECIAL case.
func (b *Backend) asmCall(n *Node, target reg) {
	if len(n.Children) == 0 {
		b.errorf("call requires a callee child")
		return
	}
	fn := n.Children[0]
	if len(n.Children) > 1 {
		b.pushArgs(n.Children[1])
	}
	if fn.Label == "extern" {
		b.asm(fmt.Sprintf("call %v", fn.Value))
	} else {
		// Indirect call through a computed address: push the return
		// address by hand, then jump.
		ret := b.nextLabel()
		b.AsmNode(fn, regHL)
		b.asm("lxi d,"+ret, "push d", "pchl")
		b.DefLabel(ret)
	}
	if count, ok := asInt(n.Value); ok && count > 0 {
		// Pop the arguments with the result parked in DE.
		b.asm("xchg", fmt.Sprintf("lxi h,%d", count*2), "dad sp", "sphl", "xchg")
	}
	if target != regHL {
		b.asm("xchg")
	}
}

// pushArgs recurses through a right-associative comma-chain of argument
// nodes, evaluating and pushing each into HL in the order the chain
// visits them (rightmost argument first).
func (b *Backend) pushArgs(n *Node) {
	if n.Label == "comma" && len(n.Children) == 2 {
		b.pushArgs(n.Children[1])
		b.pushArgs(n.Children[0])
		return
	}
	b.AsmNode(n, regHL)
	b.asm("push h")
}

// asmShortCircuit emits logand/logor: evaluate the left operand, branch
// past the right on the short-circuiting condition, else evaluate the
// right and use its truth value, per spec §4.4's logand/logor SPECIAL
// case ("short-circuit chains flatten through log nodes").
func (b *Backend) asmShortCircuit(n *Node, target reg) {
	if len(n.Children) != 2 {
		b.errorf("%s requires two children", n.Label)
		return
	}
	skip := b.nextLabel()
	done := b.nextLabel()
	b.AsmNode(n.Children[0], target)
	hi, lo := target.names()
	b.asm(fmt.Sprintf("mov a,%s", lo), fmt.Sprintf("ora %s", hi))
	if n.Label == "logand" {
		b.asm(fmt.Sprintf("jz %s", skip))
	} else {
		b.asm(fmt.Sprintf("jnz %s", skip))
	}
	b.AsmNode(n.Children[1], target)
	b.asm(fmt.Sprintf("mov a,%s", lo), fmt.Sprintf("ora %s", hi))
	b.logical("jnz", target) // tail truth value: 1 iff the right operand is nonzero
	b.asm(fmt.Sprintf("jmp %s", done))
	b.DefLabel(skip)
	if n.Label == "logand" {
		b.immed(target, "0")
	} else {
		b.immed(target, "1")
	}
	b.DefLabel(done)
}

// relKind is the flag test a relational operator reduces to after
// subtracting its right operand from its left, per spec §4.4's
// "relational operators... become cmp(a,b) + label-preserving
// conditional materialisation". Signed and unsigned operators share the
// same borrow/zero test: the 8080 carries no overflow flag, so this
// does not attempt two's-complement overflow detection -- see
// DESIGN.md.
type relKind int

const (
	relLess    relKind = iota // true iff the subtraction borrowed (a < b)
	relGequ                   // true iff no borrow (a >= b)
	relGreat                  // true iff no borrow and a nonzero difference (a > b)
	relLequ                   // true iff a borrow, or a zero difference (a <= b)
)

var relOps = map[string]relKind{
	"uless": relLess, "less": relLess,
	"ugequ": relGequ, "gequ": relGequ,
	"ugreat": relGreat, "great": relGreat,
	"ulequ": relLequ, "lequ": relLequ,
}

// asmCompare emits a 16-bit relational comparison: the right operand is
// subtracted from the left low-byte-first so the high-byte sbb leaves a
// true 16-bit borrow in carry, then the node's result is materialised
// as 0 or 1 from carry (and, for the inclusive/strict variants, a
// combined zero test over both difference bytes).
func (b *Backend) asmCompare(n *Node, target reg) {
	if len(n.Children) != 2 {
		b.errorf("%s requires two children", n.Label)
		return
	}
	kind, ok := relOps[n.Label]
	if !ok {
		b.errorf("unknown relational operator %s", n.Label)
		return
	}
	left, right := n.Children[0], n.Children[1]
	d := other(target)
	b.AsmNode(left, target)
	b.AsmNode(right, d)
	hi, lo := target.names()
	dhi, dlo := d.names()
	b.asm(fmt.Sprintf("mov a,%s", lo), fmt.Sprintf("sub %s", dlo), fmt.Sprintf("mov %s,a", lo),
		fmt.Sprintf("mov a,%s", hi), fmt.Sprintf("sbb %s", dhi), fmt.Sprintf("mov %s,a", hi))

	switch kind {
	case relLess:
		b.logical("jc", target)
	case relGequ:
		b.logical("jnc", target)
	case relGreat:
		falseLab, done := b.nextLabel(), b.nextLabel()
		b.asm(fmt.Sprintf("jc %s", falseLab))
		b.asm(fmt.Sprintf("mov a,%s", hi), fmt.Sprintf("ora %s", lo), fmt.Sprintf("jz %s", falseLab))
		b.immed(target, "1")
		b.asm(fmt.Sprintf("jmp %s", done))
		b.DefLabel(falseLab)
		b.immed(target, "0")
		b.DefLabel(done)
	case relLequ:
		trueLab, done := b.nextLabel(), b.nextLabel()
		b.asm(fmt.Sprintf("jc %s", trueLab))
		b.asm(fmt.Sprintf("mov a,%s", hi), fmt.Sprintf("ora %s", lo), fmt.Sprintf("jz %s", trueLab))
		b.immed(target, "0")
		b.asm(fmt.Sprintf("jmp %s", done))
		b.DefLabel(trueLab)
		b.immed(target, "1")
		b.DefLabel(done)
	}
}

// asmCond emits the ternary conditional a ? b : c.
func (b *Backend) asmCond(n *Node, target reg) {
	if len(n.Children) != 3 {
		b.errorf("cond requires three children")
		return
	}
	elseLab := b.nextLabel()
	doneLab := b.nextLabel()
	b.AsmNode(&Node{Label: "brz", Children: []*Node{n.Children[0]}, Value: elseLab}, target)
	b.AsmNode(n.Children[1], target)
	b.asm(fmt.Sprintf("jmp %s", doneLab))
	b.DefLabel(elseLab)
	b.AsmNode(n.Children[2], target)
	b.DefLabel(doneLab)
}
