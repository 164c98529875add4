// Package template implements the JSON-declared 8080 code-generation
// template scheme of spec §4.4/§6: per-node-shape instruction-selection
// rules with placeholder substitution, matched in declaration order and
// cached by (node, target register).
//
// Grounded on _examples/original_source/c8080.py's template-driven
// `command()`/`asmnode()` dispatch (the prototype inlines its templates
// as Python match-statements; this reimplements the same matching logic
// data-driven from JSON, per spec §6's external file requirement),
// restructured in the teacher's (gmofishsauce-wut4/lang/ypeep) rule-table
// style.
package template

import (
	"encoding/json"
	"fmt"
)

// RegModel is a template's result-register model tag.
type RegModel string

const (
	RegHL      RegModel = "HL"
	RegDE      RegModel = "DE"
	RegAny     RegModel = "ANY"
	RegBinary  RegModel = "BINARY"
	RegSpecial RegModel = "SPECIAL"
)

// Require is a (label, optional exact inline value) predicate.
type Require struct {
	Label string
	Value *int64 // nil means "any value"
}

func (r Require) matches(label string, value any) bool {
	if r.Label != "" && r.Label != label {
		return false
	}
	if r.Value == nil {
		return true
	}
	v, ok := toInt64(value)
	return ok && v == *r.Value
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Template is one codegen rule, per spec §4.4.
type Template struct {
	Require      Require
	LeftReq      *Require
	RightReq     *Require
	Action       []string
	Regs         RegModel
	Commutative  bool
	Flags        map[string]bool
}

// rawTemplate mirrors the JSON shape of spec §6 for decoding.
type rawTemplate struct {
	Require     []json.RawMessage `json:"require"`
	LeftReq     []json.RawMessage `json:"leftreq"`
	RightReq    []json.RawMessage `json:"rightreq"`
	Action      json.RawMessage   `json:"action"`
	Regs        string            `json:"regs"`
	Commutative bool              `json:"commutative"`
	Flags       []string          `json:"flags"`
}

func decodeRequire(fields []json.RawMessage) (*Require, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	var req Require
	if err := json.Unmarshal(fields[0], &req.Label); err != nil {
		return nil, fmt.Errorf("template: require label must be a string: %w", err)
	}
	if len(fields) > 1 {
		var v int64
		if err := json.Unmarshal(fields[1], &v); err != nil {
			return nil, fmt.Errorf("template: require value must be an integer: %w", err)
		}
		req.Value = &v
	}
	return &req, nil
}

func decodeAction(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("template: action must be a string or list of strings: %w", err)
	}
	return lines, nil
}

// Load parses the codegen template JSON of spec §6 into an ordered rule
// set. Declaration order is preserved since matching tries templates in
// file order and takes the first match.
func Load(data []byte) ([]*Template, error) {
	var raws []rawTemplate
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("template: decoding template file: %w", err)
	}
	out := make([]*Template, 0, len(raws))
	for i, r := range raws {
		req, err := decodeRequire(r.Require)
		if err != nil || req == nil {
			return nil, fmt.Errorf("template: entry %d: missing or bad require: %v", i, err)
		}
		left, err := decodeRequire(r.LeftReq)
		if err != nil {
			return nil, fmt.Errorf("template: entry %d: %w", i, err)
		}
		right, err := decodeRequire(r.RightReq)
		if err != nil {
			return nil, fmt.Errorf("template: entry %d: %w", i, err)
		}
		action, err := decodeAction(r.Action)
		if err != nil {
			return nil, fmt.Errorf("template: entry %d: %w", i, err)
		}
		flags := map[string]bool{}
		for _, f := range r.Flags {
			flags[f] = true
		}
		out = append(out, &Template{
			Require: *req, LeftReq: left, RightReq: right,
			Action: action, Regs: RegModel(r.Regs),
			Commutative: r.Commutative, Flags: flags,
		})
	}
	return out, nil
}

// MatchNode is the minimal view of a backend node a Template predicate
// needs: its label, inline value, and (for left/right predicates) its
// children's labels/values.
type MatchNode interface {
	NodeLabel() string
	NodeValue() any
	NodeChild(i int) MatchNode
	NodeChildCount() int
}

// cacheKey identifies a (node shape, target register) matcher lookup.
// The shape covers everything a template predicate inspects: the node's
// own label/value and its first two children's labels/values.
type cacheKey struct {
	label      string
	value      any
	nchild     int
	leftLabel  string
	leftValue  any
	rightLabel string
	rightValue any
	target     string
}

// Matcher finds the first Template whose predicates match a node, caching
// results per spec §4.4 ("A cached matcher keyed by (node, target
// register) avoids repeated work. The cache assumes the backend nodes
// are hashable and immutable -- both invariants must hold.").
type Matcher struct {
	templates []*Template
	cache     map[cacheKey]*Template
}

// NewMatcher returns a Matcher over an ordered template set.
func NewMatcher(templates []*Template) *Matcher {
	return &Matcher{templates: templates, cache: map[cacheKey]*Template{}}
}

// Match returns the first template whose require/leftreq/rightreq
// predicates all match n, for the given target register letter ("h" or
// "d"). Returns nil if no template matches.
func (m *Matcher) Match(n MatchNode, target string) *Template {
	key := cacheKey{label: n.NodeLabel(), value: n.NodeValue(), nchild: n.NodeChildCount(), target: target}
	if key.nchild > 0 {
		key.leftLabel, key.leftValue = n.NodeChild(0).NodeLabel(), n.NodeChild(0).NodeValue()
	}
	if key.nchild > 1 {
		key.rightLabel, key.rightValue = n.NodeChild(1).NodeLabel(), n.NodeChild(1).NodeValue()
	}
	if t, ok := m.cache[key]; ok {
		return t
	}
	for _, t := range m.templates {
		if !t.Require.matches(n.NodeLabel(), n.NodeValue()) {
			continue
		}
		if t.LeftReq != nil {
			if n.NodeChildCount() < 1 {
				continue
			}
			left := n.NodeChild(0)
			if !t.LeftReq.matches(left.NodeLabel(), left.NodeValue()) {
				continue
			}
		}
		if t.RightReq != nil {
			if n.NodeChildCount() < 2 {
				continue
			}
			right := n.NodeChild(1)
			if !t.RightReq.matches(right.NodeLabel(), right.NodeValue()) {
				continue
			}
		}
		m.cache[key] = t
		return t
	}
	m.cache[key] = nil
	return nil
}
