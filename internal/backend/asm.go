package backend

import (
	"fmt"
	"strings"

	"github.com/popeyeotaku/pyc6t/internal/backend/template"
)

// AsmNode assembles node so its result ends up in target (H or D),
// dispatching first on the fixed set of SPECIAL constructs (spec §4.4:
// "call, logand/logor, cond, comma, brz, ijmp, doswitch, and function
// prologues"), then falling through to the template-driven generic path.
func (b *Backend) AsmNode(n *Node, target reg) {
	switch n.Label {
	case "brz", "bnz":
		if len(n.Children) == 0 {
			b.errorf("%s requires a child", n.Label)
			return
		}
		b.AsmNode(n.Children[0], target)
		hi, lo := target.names()
		b.asm(fmt.Sprintf("mov a,%s", lo), fmt.Sprintf("ora %s", hi))
		op := "je"
		if n.Label == "bnz" {
			op = "jne"
		}
		b.asm(fmt.Sprintf("%s %v", op, n.Value))
		for _, c := range n.Children[1:] {
			b.AsmNode(c, target)
		}
		return

	case "label":
		b.DefLabel(fmt.Sprintf("%v", n.Value))
		for _, c := range n.Children {
			b.AsmNode(c, target)
		}
		return

	case "drop", "comma":
		for _, c := range n.Children {
			b.AsmNode(c, target)
		}
		return

	case "log", "lognot":
		if len(n.Children) != 1 {
			b.errorf("%s requires one child", n.Label)
			return
		}
		b.AsmNode(n.Children[0], target)
		hi, lo := target.names()
		b.asm(fmt.Sprintf("mov a,%s", lo), fmt.Sprintf("ora %s", hi))
		if n.Label == "log" {
			b.logical("jnz", target) // log: 1 iff the operand is nonzero
		} else {
			b.logical("jz", target) // lognot: 1 iff the operand is zero
		}
		return

	case "call":
		b.asmCall(n, target)
		return

	case "logand", "logor":
		b.asmShortCircuit(n, target)
		return

	case "cond":
		b.asmCond(n, target)
		return

	case "con":
		v, _ := asInt(n.Value)
		b.immed(target, fmt.Sprintf("%d", v))
		return

	case "extern":
		b.immed(target, fmt.Sprintf("%v", n.Value))
		return

	case "auto":
		off, _ := asInt(n.Value)
		hi, lo := target.names()
		b.asm("mov a,c", fmt.Sprintf("adi %d", off), fmt.Sprintf("mov %s,a", lo),
			"mov a,b", "aci 0", fmt.Sprintf("mov %s,a", hi))
		return

	case "load", "cload":
		if len(n.Children) != 1 {
			b.errorf("%s requires one child", n.Label)
			return
		}
		b.AsmNode(n.Children[0], regHL)
		if target != regHL {
			b.asm("xchg")
		}
		hi, lo := target.names()
		if n.Label == "cload" {
			b.asm(fmt.Sprintf("mov %s,m", lo), fmt.Sprintf("mvi %s,0", hi))
		} else {
			b.asm(fmt.Sprintf("mov %s,m", lo), "inx h", fmt.Sprintf("mov %s,m", hi))
		}
		return

	case "store", "cstore":
		if len(n.Children) != 2 {
			b.errorf("%s requires two children", n.Label)
			return
		}
		addr, val := n.Children[0], n.Children[1]
		b.AsmNode(val, other(target))
		b.AsmNode(addr, regHL)
		vhi, vlo := other(target).names()
		if n.Label == "cstore" {
			b.asm(fmt.Sprintf("mov m,%s", vlo))
		} else {
			b.asm(fmt.Sprintf("mov m,%s", vlo), "inx h", fmt.Sprintf("mov m,%s", vhi))
		}
		if target == regHL {
			b.asm("xchg")
		}
		return

	case "addr":
		if len(n.Children) != 1 {
			b.errorf("addr requires one child")
			return
		}
		b.AsmNode(n.Children[0], target)
		return

	case "deref":
		if len(n.Children) != 1 {
			b.errorf("deref requires one child")
			return
		}
		b.AsmNode(&Node{Label: "load", Children: n.Children}, target)
		return

	case "postinc", "postdec", "preinc", "predec":
		b.asmIncDec(n, target)
		return

	case "great", "gequ", "less", "lequ", "uless", "ugreat", "ulequ", "ugequ":
		b.asmCompare(n, target)
		return
	}

	b.asmGeneric(n, target)
}

// logical materialises a branch-test result as 1 or 0 in target, per
// c8080.py's logical(): branchOp is the condition, tested against the
// flags already set by the caller, under which the result should be 1.
func (b *Backend) logical(branchOp string, target reg) {
	lab1, lab2 := b.nextLabel(), b.nextLabel()
	b.asm(fmt.Sprintf("%s %s", branchOp, lab1))
	b.immed(target, "0")
	b.asm(fmt.Sprintf("jmp %s", lab2))
	b.DefLabel(lab1)
	b.immed(target, "1")
	b.DefLabel(lab2)
}

// asmIncDec emits pre/post inc/dec, whose converted form carries its step
// in Value and the lvalue as its single child. The new value is always
// computed and stored back through the other register pair so target's
// original (old) value survives for the post- forms; pre- forms simply
// re-load the new value afterwards.
func (b *Backend) asmIncDec(n *Node, target reg) {
	if len(n.Children) != 1 {
		b.errorf("%s requires one child", n.Label)
		return
	}
	step, _ := asInt(n.Value)
	addr := n.Children[0]
	sign := "+"
	if n.Label == "postdec" || n.Label == "predec" {
		sign = "-"
	}

	b.AsmNode(&Node{Label: "load", Children: []*Node{addr}}, target)
	hi, lo := target.names()

	work := other(target)
	whi, wlo := work.names()
	b.asm(fmt.Sprintf("mov %s,%s", whi, hi), fmt.Sprintf("mov %s,%s", wlo, lo))
	b.asm(fmt.Sprintf("mov a,%s", wlo))
	if sign == "+" {
		b.asm(fmt.Sprintf("adi %d", step))
	} else {
		b.asm(fmt.Sprintf("sui %d", step))
	}
	b.asm(fmt.Sprintf("mov %s,a", wlo), fmt.Sprintf("mov a,%s", whi))
	if sign == "+" {
		b.asm("aci 0")
	} else {
		b.asm("sbi 0")
	}
	b.asm(fmt.Sprintf("mov %s,a", whi))

	b.asm(fmt.Sprintf("push %s", hi))
	b.AsmNode(addr, regHL)
	if target == regHL {
		b.asm("xchg")
	}
	b.asm(fmt.Sprintf("mov m,%s", wlo), "inx h", fmt.Sprintf("mov m,%s", whi))
	b.asm(fmt.Sprintf("pop %s", hi))

	if n.Label == "preinc" || n.Label == "predec" {
		b.asm(fmt.Sprintf("mov %s,%s", hi, whi), fmt.Sprintf("mov %s,%s", lo, wlo))
	}
}

// canFitUnary reports whether n can be assembled using only HL/DE/ANY
// templates into register r, without itself requiring a spill -- spec
// §4.4's "can be computed unarily into reg R" predicate.
func (b *Backend) canFitUnary(n *Node, r reg) bool {
	switch n.Label {
	case "con", "extern", "auto", "load", "cload":
		return true
	}
	t := b.matcher.Match(n, r.String())
	if t == nil {
		return false
	}
	switch t.Regs {
	case "BINARY", "SPECIAL":
		return false
	default:
		return true
	}
}

// asmGeneric handles ordinary unary/binary operator nodes via the
// four-case evaluation strategy of spec §4.4 and the template matcher.
func (b *Backend) asmGeneric(n *Node, target reg) {
	switch len(n.Children) {
	case 0:
		t := b.matcher.Match(n, target.String())
		if t == nil {
			b.errorf("no template for leaf node %s", n.Label)
			return
		}
		b.runAction(t, nil, nil, n, target)
	case 1:
		child := n.Children[0]
		b.AsmNode(child, target)
		t := b.matcher.Match(n, target.String())
		if t == nil {
			b.errorf("no template for unary node %s", n.Label)
			return
		}
		b.runAction(t, child, nil, n, target)
	case 2:
		b.asmBinary(n, target)
	default:
		b.errorf("node %s has unsupported arity %d", n.Label, len(n.Children))
	}
}

// asmBinary implements the four-case strategy of spec §4.4 for binary
// operator nodes, using canFitUnary to decide whether an operand fits
// into the non-target register without spilling.
func (b *Backend) asmBinary(n *Node, target reg) {
	left, right := n.Children[0], n.Children[1]
	d := other(target)

	t := b.matcher.Match(n, target.String())
	if t == nil {
		b.errorf("no template for binary node %s", n.Label)
		return
	}

	switch {
	case b.canFitUnary(right, d):
		// Case 1: left-into-target, right-into-other.
		b.AsmNode(left, target)
		b.AsmNode(right, d)
		b.runAction(t, left, right, n, target)

	case t.Commutative && b.canFitUnary(left, d):
		// Case 2: commutative swap -- right-into-target, left-into-other.
		b.AsmNode(right, target)
		b.AsmNode(left, d)
		b.runAction(t, right, left, n, target)

	case b.canFitUnary(right, target) && b.canFitUnary(left, target):
		// Case 3: right-into-target unarily, swap target<->other, then
		// left-into-target.
		b.AsmNode(right, target)
		b.asm("xchg")
		b.AsmNode(left, target)
		b.runAction(t, left, right, n, target)

	default:
		// Case 4: right-into-target, push, left-into-target, pop into
		// other -- the register-spill fallback.
		b.AsmNode(right, target)
		hi, _ := target.names()
		b.asm(fmt.Sprintf("push %s", hi))
		b.AsmNode(left, target)
		ohi, _ := d.names()
		b.asm(fmt.Sprintf("pop %s", ohi))
		b.runAction(t, left, right, n, target)
	}
}

// valueText renders a leaf-like node's inline value as assembly text, for
// substitution into LV/RV/V placeholders.
func valueText(n *Node) string {
	if n == nil {
		return "0"
	}
	switch v := n.Value.(type) {
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%d", int64(v))
	case string:
		return v
	default:
		return fmt.Sprintf("%v", n.Value)
	}
}

// runAction executes a matched template's action lines, substituting the
// placeholders of spec §4.4: {LV} left child's value, {RV} right child's
// value, {V} the node's own value, {R}/{RLOW} the target register's high/
// low-byte letters, {T1}/{T2} fresh temporary labels, {D1}/{D2} "define
// that temporary label here" sentinels (emitted as a label definition
// rather than substituted into an instruction line) -- plus {OR}/{ORLOW},
// the non-target register pair's high/low-byte letters, needed because a
// binary node can be asked to evaluate into either pair and most 8080
// ALU ops (unlike DAD) work against either one.
func (b *Backend) runAction(t *template.Template, left, right, self *Node, target reg) {
	hi, lo := target.names()
	ohi, olo := other(target).names()
	var t1, t2 string
	getT1 := func() string {
		if t1 == "" {
			t1 = b.nextLabel()
		}
		return t1
	}
	getT2 := func() string {
		if t2 == "" {
			t2 = b.nextLabel()
		}
		return t2
	}

	for _, line := range t.Action {
		switch strings.TrimSpace(line) {
		case "{D1}":
			b.DefLabel(getT1())
			continue
		case "{D2}":
			b.DefLabel(getT2())
			continue
		}
		out := line
		out = strings.ReplaceAll(out, "{LV}", valueText(left))
		out = strings.ReplaceAll(out, "{RV}", valueText(right))
		out = strings.ReplaceAll(out, "{V}", valueText(self))
		out = strings.ReplaceAll(out, "{RLOW}", lo)
		out = strings.ReplaceAll(out, "{R}", hi)
		out = strings.ReplaceAll(out, "{ORLOW}", olo)
		out = strings.ReplaceAll(out, "{OR}", ohi)
		if strings.Contains(out, "{T1}") {
			out = strings.ReplaceAll(out, "{T1}", getT1())
		}
		if strings.Contains(out, "{T2}") {
			out = strings.ReplaceAll(out, "{T2}", getT2())
		}
		b.asm(out)
	}
}
