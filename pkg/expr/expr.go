// Package expr provides the expression graph consumed by the arithmetic
// local-search engine.
//
// Expressions are hash-consed into a Manager and addressed by dense integer
// IDs: building the same expression twice returns the same ID, and every
// cross reference (arguments, parents) is an index rather than a pointer.
// This makes structural recognition cheap (a table lookup) and lets the
// engine key its own tables by ID.
//
// The Manager covers exactly what an arithmetic SLS engine needs:
//
//   - Arithmetic terms: numerals, constants, +, *, unary -, /, div, mod,
//     rem, ^, abs, to_int, to_real
//   - Atoms: <=, <, >=, >, =, distinct
//   - Boolean structure: not, and, or, true, false, Boolean constants
//
// Thread safety: a Manager is not safe for concurrent mutation.
package expr

import (
	"fmt"
	"math/big"
	"strings"
)

// ID addresses an expression inside a Manager.
type ID int32

// Invalid is never returned for a constructed expression.
const Invalid ID = -1

// Sort classifies expressions.
type Sort uint8

const (
	SortBool Sort = iota
	SortInt
	SortReal
)

func (s Sort) String() string {
	switch s {
	case SortBool:
		return "Bool"
	case SortInt:
		return "Int"
	case SortReal:
		return "Real"
	default:
		return fmt.Sprintf("Sort(%d)", uint8(s))
	}
}

// IsArith reports whether s is Int or Real.
func (s Sort) IsArith() bool { return s == SortInt || s == SortReal }

// Kind is the head symbol of an expression.
type Kind uint8

const (
	KindNumeral Kind = iota
	KindConst
	KindAdd
	KindMul
	KindNeg
	KindDiv
	KindIDiv
	KindMod
	KindRem
	KindPower
	KindAbs
	KindToInt
	KindToReal
	KindLe
	KindLt
	KindGe
	KindGt
	KindEq
	KindDistinct
	KindNot
	KindAnd
	KindOr
	KindTrue
	KindFalse
)

var kindNames = [...]string{
	KindNumeral:  "numeral",
	KindConst:    "const",
	KindAdd:      "+",
	KindMul:      "*",
	KindNeg:      "-",
	KindDiv:      "/",
	KindIDiv:     "div",
	KindMod:      "mod",
	KindRem:      "rem",
	KindPower:    "^",
	KindAbs:      "abs",
	KindToInt:    "to_int",
	KindToReal:   "to_real",
	KindLe:       "<=",
	KindLt:       "<",
	KindGe:       ">=",
	KindGt:       ">",
	KindEq:       "=",
	KindDistinct: "distinct",
	KindNot:      "not",
	KindAnd:      "and",
	KindOr:       "or",
	KindTrue:     "true",
	KindFalse:    "false",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

type node struct {
	kind   Kind
	sort   Sort
	args   []ID
	name   string
	num    *big.Rat
	height int
}

// Manager owns and hash-conses expressions.
type Manager struct {
	nodes   []node
	index   map[string]ID
	parents [][]ID
}

// NewManager creates an empty expression manager.
func NewManager() *Manager {
	return &Manager{index: make(map[string]ID)}
}

// Len returns the number of expressions created so far. IDs are 0..Len()-1.
func (m *Manager) Len() int { return len(m.nodes) }

func (m *Manager) key(kind Kind, sort Sort, name string, num *big.Rat, args []ID) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%s|", kind, sort, name)
	if num != nil {
		b.WriteString(num.RatString())
	}
	for _, a := range args {
		fmt.Fprintf(&b, "|%d", a)
	}
	return b.String()
}

func (m *Manager) mk(kind Kind, sort Sort, name string, num *big.Rat, args ...ID) ID {
	k := m.key(kind, sort, name, num, args)
	if id, ok := m.index[k]; ok {
		return id
	}
	height := 0
	for _, a := range args {
		m.check(a)
		if h := m.nodes[a].height + 1; h > height {
			height = h
		}
	}
	id := ID(len(m.nodes))
	n := node{kind: kind, sort: sort, name: name, height: height}
	if len(args) > 0 {
		n.args = append([]ID(nil), args...)
	}
	if num != nil {
		n.num = new(big.Rat).Set(num)
	}
	m.nodes = append(m.nodes, n)
	m.parents = append(m.parents, nil)
	seen := make(map[ID]bool, len(args))
	for _, a := range args {
		if !seen[a] {
			seen[a] = true
			m.parents[a] = append(m.parents[a], id)
		}
	}
	m.index[k] = id
	return id
}

func (m *Manager) check(id ID) {
	if id < 0 || int(id) >= len(m.nodes) {
		panic(fmt.Sprintf("expr: unknown expression id %d", id))
	}
}

// Kind returns the head symbol of id.
func (m *Manager) Kind(id ID) Kind { m.check(id); return m.nodes[id].kind }

// Sort returns the sort of id.
func (m *Manager) Sort(id ID) Sort { m.check(id); return m.nodes[id].sort }

// Args returns the arguments of id. The slice must not be modified.
func (m *Manager) Args(id ID) []ID { m.check(id); return m.nodes[id].args }

// Arg returns the i-th argument of id.
func (m *Manager) Arg(id ID, i int) ID { return m.Args(id)[i] }

// Name returns the name of a constant, or "" for other expressions.
func (m *Manager) Name(id ID) string { m.check(id); return m.nodes[id].name }

// Height is 0 for leaves and 1 + the maximal argument height otherwise.
func (m *Manager) Height(id ID) int { m.check(id); return m.nodes[id].height }

// Parents returns the distinct expressions that have id as an argument, in
// creation order. The slice must not be modified.
func (m *Manager) Parents(id ID) []ID { m.check(id); return m.parents[id] }

// Numeral extracts the value of a numeral expression. The result is a copy.
func (m *Manager) Numeral(id ID) (*big.Rat, bool) {
	m.check(id)
	n := m.nodes[id]
	if n.kind != KindNumeral {
		return nil, false
	}
	return new(big.Rat).Set(n.num), true
}

// IsArith reports whether id is an Int or Real term.
func (m *Manager) IsArith(id ID) bool { return m.Sort(id).IsArith() }

// IsAtom reports whether id is an arithmetic comparison: <=, <, >=, >, or an
// equality/distinct over arithmetic arguments.
func (m *Manager) IsAtom(id ID) bool {
	n := m.nodes[id]
	switch n.kind {
	case KindLe, KindLt, KindGe, KindGt:
		return true
	case KindEq, KindDistinct:
		return len(n.args) > 0 && m.nodes[n.args[0]].sort.IsArith()
	}
	return false
}

// IsBoolConnective reports whether id is not, and, or.
func (m *Manager) IsBoolConnective(id ID) bool {
	switch m.Kind(id) {
	case KindNot, KindAnd, KindOr:
		return true
	}
	return false
}

// Consts returns every constant of the given sort, in creation order.
func (m *Manager) Consts(s Sort) []ID {
	var out []ID
	for i, n := range m.nodes {
		if n.kind == KindConst && n.sort == s {
			out = append(out, ID(i))
		}
	}
	return out
}

// Lookup returns the constant with the given name.
func (m *Manager) Lookup(name string) (ID, bool) {
	for _, s := range []Sort{SortInt, SortReal, SortBool} {
		if id, ok := m.index[m.key(KindConst, s, name, nil, nil)]; ok {
			return id, true
		}
	}
	return Invalid, false
}
