package template

import "testing"

// fakeNode is a minimal MatchNode for exercising Matcher without pulling
// in internal/backend's real Node type.
type fakeNode struct {
	label    string
	value    any
	children []*fakeNode
}

func (n *fakeNode) NodeLabel() string { return n.label }
func (n *fakeNode) NodeValue() any    { return n.value }
func (n *fakeNode) NodeChildCount() int {
	return len(n.children)
}
func (n *fakeNode) NodeChild(i int) MatchNode { return n.children[i] }

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "minimal valid entry",
			data: `[{"require": ["con"], "action": "lxi h,{V}", "regs": "HL"}]`,
		},
		{
			name: "multi-line action",
			data: `[{"require": ["add"], "action": ["mov a,{RLOW}", "add {ORLOW}"], "regs": "BINARY", "commutative": true}]`,
		},
		{
			name: "require with exact value",
			data: `[{"require": ["con", 0], "action": "xra a", "regs": "HL"}]`,
		},
		{
			name: "leftreq/rightreq present",
			data: `[{"require": ["add"], "leftreq": ["con"], "rightreq": ["name"], "action": "nop", "regs": "BINARY"}]`,
		},
		{
			name:    "missing require",
			data:    `[{"action": "nop", "regs": "HL"}]`,
			wantErr: true,
		},
		{
			name:    "action not string or list",
			data:    `[{"require": ["con"], "action": 5, "regs": "HL"}]`,
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpls, err := Load([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(tmpls) != 1 {
				t.Fatalf("got %d templates, want 1", len(tmpls))
			}
		})
	}
}

func TestMatcherFirstMatchWins(t *testing.T) {
	tmpls, err := Load([]byte(`[
		{"require": ["con", 0], "action": "xra a", "regs": "HL"},
		{"require": ["con"], "action": "lxi h,{V}", "regs": "HL"}
	]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := NewMatcher(tmpls)

	zero := &fakeNode{label: "con", value: int64(0)}
	if got := m.Match(zero, "H"); got == nil || got.Action[0] != "xra a" {
		t.Errorf("con=0 matched %v, want the exact-value template", got)
	}

	five := &fakeNode{label: "con", value: int64(5)}
	if got := m.Match(five, "H"); got == nil || got.Action[0] != "lxi h,{V}" {
		t.Errorf("con=5 matched %v, want the fallback template", got)
	}
}

func TestMatcherNoMatch(t *testing.T) {
	tmpls, err := Load([]byte(`[{"require": ["con"], "action": "lxi h,{V}", "regs": "HL"}]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := NewMatcher(tmpls)
	n := &fakeNode{label: "name", value: "x"}
	if got := m.Match(n, "H"); got != nil {
		t.Errorf("expected no match, got %v", got)
	}
}

func TestMatcherLeftRightReq(t *testing.T) {
	tmpls, err := Load([]byte(`[
		{"require": ["add"], "leftreq": ["con"], "action": "case-left-const", "regs": "BINARY"},
		{"require": ["add"], "action": "case-generic", "regs": "BINARY"}
	]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := NewMatcher(tmpls)

	withConstLeft := &fakeNode{label: "add", children: []*fakeNode{
		{label: "con", value: int64(1)},
		{label: "name", value: "x"},
	}}
	if got := m.Match(withConstLeft, "H"); got == nil || got.Action[0] != "case-left-const" {
		t.Errorf("add(con,name) matched %v, want case-left-const", got)
	}

	noChildren := &fakeNode{label: "add"}
	if got := m.Match(noChildren, "H"); got == nil || got.Action[0] != "case-generic" {
		t.Errorf("add() with no children matched %v, want case-generic (leftreq predicate should skip, not panic)", got)
	}
}

func TestMatcherCachesPerTarget(t *testing.T) {
	tmpls, err := Load([]byte(`[{"require": ["con"], "action": "lxi h,{V}", "regs": "HL"}]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := NewMatcher(tmpls)
	n := &fakeNode{label: "con", value: int64(1)}

	first := m.Match(n, "H")
	second := m.Match(n, "H")
	if first != second {
		t.Error("expected the cached result to be returned on a repeat lookup")
	}
}
