package ir

import "testing"

func TestParserAtomsAndLabels(t *testing.T) {
	src := "foo:\ncon 5\nname bar\n"
	p := NewParser(src)

	elems, err := p.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(elems) != 3 {
		t.Fatalf("got %d elems, want 3: %+v", len(elems), elems)
	}
	label, ok := elems[0].(*Label)
	if !ok || label.Name != "foo" {
		t.Errorf("elems[0] = %+v, want Label{foo}", elems[0])
	}
	con, ok := elems[1].(*Node)
	if !ok || con.Label != "con" || con.Value.(int64) != 5 {
		t.Errorf("elems[1] = %+v, want Node{con, 5}", elems[1])
	}
	cmd, ok := elems[2].(*Command)
	if !ok || cmd.Cmd != "name" || cmd.Args[0].(string) != "bar" {
		t.Errorf("elems[2] = %+v, want Command{name, [bar]}", elems[2])
	}
}

func TestParserMultiArgNode(t *testing.T) {
	// cond has arity 3: its Value carries the jump-target/label pair seen
	// before its three operand nodes are popped off the stack.
	p := NewParser("cond a,b\n")
	elems, err := p.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	n := elems[0].(*Node)
	val, ok := n.Value.([]any)
	if !ok || len(val) != 2 || val[0] != "a" || val[1] != "b" {
		t.Errorf("cond node value = %+v, want [a b]", n.Value)
	}
}

func TestParserCallArity(t *testing.T) {
	// call's Value holds its argument count, so call 2 needs 3 operands
	// popped off the stack: the callee plus 2 args.
	elems, err := NewParser("con 1\ncon 2\ncon 3\ncall 2\neval\n").All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	var captured *Node
	drv := &captureDriver{onCommand: func(cmd *Command, stack *[]*Node) {
		captured = (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
	}}
	if err := Assemble(elems, drv); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if captured == nil || captured.Label != "call" || len(captured.Children) != 3 {
		t.Fatalf("captured node = %+v, want call/3 children", captured)
	}
}

func TestAssembleBuildsTree(t *testing.T) {
	// add 2 with two con operands already on the stack becomes a 2-child
	// tree; a trailing "eval" command then sees the completed node.
	src := "con 1\ncon 2\nadd\neval\n"
	elems, err := NewParser(src).All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}

	var captured *Node
	drv := &captureDriver{onCommand: func(cmd *Command, stack *[]*Node) {
		if len(*stack) == 0 {
			t.Fatal("eval command saw an empty stack")
		}
		captured = (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
	}}
	if err := Assemble(elems, drv); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if captured == nil || captured.Label != "add" || len(captured.Children) != 2 {
		t.Fatalf("captured node = %+v, want add/2 children", captured)
	}
	if captured.Children[0].Value.(int64) != 1 || captured.Children[1].Value.(int64) != 2 {
		t.Errorf("add children = %+v, want [1 2]", captured.Children)
	}
}

func TestAssembleUnderflow(t *testing.T) {
	// "add" needs 2 operands but only one con precedes it.
	elems, err := NewParser("con 1\nadd\n").All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	drv := &captureDriver{onCommand: func(*Command, *[]*Node) {}}
	if err := Assemble(elems, drv); err == nil {
		t.Error("expected an arity-underflow error")
	}
}

type captureDriver struct {
	onCommand func(*Command, *[]*Node)
}

func (d *captureDriver) DefLabel(name string) {}
func (d *captureDriver) Command(cmd *Command, stack *[]*Node) {
	d.onCommand(cmd, stack)
}
