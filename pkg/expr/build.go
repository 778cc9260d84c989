package expr

import (
	"fmt"
	"math/big"
)

// Const returns the constant with the given name and sort. Panics if a
// constant of that name already exists with a different sort.
func (m *Manager) Const(name string, s Sort) ID {
	if id, ok := m.Lookup(name); ok && m.nodes[id].sort != s {
		panic(fmt.Sprintf("expr: constant %q redeclared as %s (was %s)", name, s, m.nodes[id].sort))
	}
	return m.mk(KindConst, s, name, nil)
}

// IntConst is shorthand for Const(name, SortInt).
func (m *Manager) IntConst(name string) ID { return m.Const(name, SortInt) }

// RealConst is shorthand for Const(name, SortReal).
func (m *Manager) RealConst(name string) ID { return m.Const(name, SortReal) }

// BoolConst is shorthand for Const(name, SortBool).
func (m *Manager) BoolConst(name string) ID { return m.Const(name, SortBool) }

// Num returns the numeral r of sort s. Int numerals must be integral.
func (m *Manager) Num(r *big.Rat, s Sort) ID {
	if s == SortInt && !r.IsInt() {
		panic(fmt.Sprintf("expr: non-integral Int numeral %s", r.RatString()))
	}
	if !s.IsArith() {
		panic("expr: numerals must be Int or Real")
	}
	return m.mk(KindNumeral, s, "", r)
}

// Int returns the integer numeral n.
func (m *Manager) Int(n int64) ID { return m.Num(big.NewRat(n, 1), SortInt) }

// Real returns the real numeral num/den.
func (m *Manager) Real(num, den int64) ID { return m.Num(big.NewRat(num, den), SortReal) }

func (m *Manager) arithSort(args []ID) Sort {
	s := SortInt
	for _, a := range args {
		switch m.Sort(a) {
		case SortReal:
			s = SortReal
		case SortBool:
			panic(fmt.Sprintf("expr: Bool argument %s in arithmetic term", m.String(a)))
		}
	}
	return s
}

func (m *Manager) nary(kind Kind, args []ID) ID {
	switch len(args) {
	case 0:
		panic(fmt.Sprintf("expr: %s needs arguments", kind))
	case 1:
		return args[0]
	}
	return m.mk(kind, m.arithSort(args), "", nil, args...)
}

// Add builds (+ args...). A single argument is returned unchanged.
func (m *Manager) Add(args ...ID) ID { return m.nary(KindAdd, args) }

// Mul builds (* args...). A single argument is returned unchanged.
func (m *Manager) Mul(args ...ID) ID { return m.nary(KindMul, args) }

// Sub builds a - b as (+ a (* -1 b)).
func (m *Manager) Sub(a, b ID) ID {
	minusOne := m.Num(big.NewRat(-1, 1), m.Sort(b))
	return m.Add(a, m.Mul(minusOne, b))
}

// Neg builds unary minus.
func (m *Manager) Neg(a ID) ID { return m.mk(KindNeg, m.arithSort([]ID{a}), "", nil, a) }

// Div builds real division a / b.
func (m *Manager) Div(a, b ID) ID {
	m.arithSort([]ID{a, b})
	return m.mk(KindDiv, SortReal, "", nil, a, b)
}

func (m *Manager) intBinary(kind Kind, a, b ID) ID {
	if m.Sort(a) != SortInt || m.Sort(b) != SortInt {
		panic(fmt.Sprintf("expr: %s needs Int arguments", kind))
	}
	return m.mk(kind, SortInt, "", nil, a, b)
}

// IDiv builds integer division (div a b).
func (m *Manager) IDiv(a, b ID) ID { return m.intBinary(KindIDiv, a, b) }

// Mod builds (mod a b).
func (m *Manager) Mod(a, b ID) ID { return m.intBinary(KindMod, a, b) }

// Rem builds (rem a b).
func (m *Manager) Rem(a, b ID) ID { return m.intBinary(KindRem, a, b) }

// Power builds a ^ b.
func (m *Manager) Power(a, b ID) ID {
	return m.mk(KindPower, m.arithSort([]ID{a, b}), "", nil, a, b)
}

// Abs builds (abs a).
func (m *Manager) Abs(a ID) ID { return m.mk(KindAbs, m.arithSort([]ID{a}), "", nil, a) }

// ToInt builds (to_int a), the floor of a.
func (m *Manager) ToInt(a ID) ID {
	m.arithSort([]ID{a})
	return m.mk(KindToInt, SortInt, "", nil, a)
}

// ToReal builds (to_real a).
func (m *Manager) ToReal(a ID) ID {
	m.arithSort([]ID{a})
	return m.mk(KindToReal, SortReal, "", nil, a)
}

func (m *Manager) cmp(kind Kind, a, b ID) ID {
	m.arithSort([]ID{a, b})
	return m.mk(kind, SortBool, "", nil, a, b)
}

// Le builds a <= b.
func (m *Manager) Le(a, b ID) ID { return m.cmp(KindLe, a, b) }

// Lt builds a < b.
func (m *Manager) Lt(a, b ID) ID { return m.cmp(KindLt, a, b) }

// Ge builds a >= b.
func (m *Manager) Ge(a, b ID) ID { return m.cmp(KindGe, a, b) }

// Gt builds a > b.
func (m *Manager) Gt(a, b ID) ID { return m.cmp(KindGt, a, b) }

// Eq builds a = b. Both arguments must have the same sort family: two Bool
// arguments or two arithmetic ones.
func (m *Manager) Eq(a, b ID) ID {
	if m.Sort(a).IsArith() != m.Sort(b).IsArith() {
		panic("expr: equality between Bool and arithmetic terms")
	}
	return m.mk(KindEq, SortBool, "", nil, a, b)
}

// Distinct builds (distinct args...) over arithmetic terms.
func (m *Manager) Distinct(args ...ID) ID {
	if len(args) < 2 {
		return m.True()
	}
	m.arithSort(args)
	return m.mk(KindDistinct, SortBool, "", nil, args...)
}

func (m *Manager) boolArgs(kind Kind, args []ID) {
	for _, a := range args {
		if m.Sort(a) != SortBool {
			panic(fmt.Sprintf("expr: %s needs Bool arguments, got %s", kind, m.String(a)))
		}
	}
}

// Not builds (not a). Double negation is collapsed.
func (m *Manager) Not(a ID) ID {
	m.boolArgs(KindNot, []ID{a})
	switch m.Kind(a) {
	case KindNot:
		return m.Arg(a, 0)
	case KindTrue:
		return m.False()
	case KindFalse:
		return m.True()
	}
	return m.mk(KindNot, SortBool, "", nil, a)
}

// And builds (and args...). No arguments yields true.
func (m *Manager) And(args ...ID) ID {
	m.boolArgs(KindAnd, args)
	switch len(args) {
	case 0:
		return m.True()
	case 1:
		return args[0]
	}
	return m.mk(KindAnd, SortBool, "", nil, args...)
}

// Or builds (or args...). No arguments yields false.
func (m *Manager) Or(args ...ID) ID {
	m.boolArgs(KindOr, args)
	switch len(args) {
	case 0:
		return m.False()
	case 1:
		return args[0]
	}
	return m.mk(KindOr, SortBool, "", nil, args...)
}

// Implies builds (or (not a) b).
func (m *Manager) Implies(a, b ID) ID { return m.Or(m.Not(a), b) }

// True returns the Boolean constant true.
func (m *Manager) True() ID { return m.mk(KindTrue, SortBool, "", nil) }

// False returns the Boolean constant false.
func (m *Manager) False() ID { return m.mk(KindFalse, SortBool, "", nil) }
