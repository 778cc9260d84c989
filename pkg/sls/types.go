package sls

import (
	"github.com/gitrdm/goslsarith/pkg/expr"
	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// Var is a dense arithmetic variable index.
type Var int32

// NullVar is returned for expressions that have no arithmetic variable.
const NullVar Var = -1

// opKind is the defining operator of a variable.
type opKind uint8

const (
	opNone opKind = iota
	opAdd
	opMul
	opDiv
	opIDiv
	opMod
	opRem
	opPower
	opAbs
	opToInt
	opToReal
)

var opNames = [...]string{
	opNone:   "",
	opAdd:    "+",
	opMul:    "*",
	opDiv:    "/",
	opIDiv:   "div",
	opMod:    "mod",
	opRem:    "rem",
	opPower:  "^",
	opAbs:    "abs",
	opToInt:  "to_int",
	opToReal: "to_real",
}

func (k opKind) String() string { return opNames[k] }

// bound is a lower or upper bound on a variable.
type bound[T numeric.Number[T]] struct {
	strict bool
	value  T
}

// linArg is one (coefficient, variable) pair of a linear term.
type linArg[T numeric.Number[T]] struct {
	coeff T
	v     Var
}

// linearTerm is sum(args) + coeff. Variables occur at most once in args.
type linearTerm[T numeric.Number[T]] struct {
	args  []linArg[T]
	coeff T
}

// power is a variable raised to a positive exponent.
type power struct {
	v Var
	p uint
}

// monomial is a product of powers of distinct variables.
type monomial []power

// nonlinearCoeff records that a leaf variable x occurs in v (x itself or a
// monomial containing x) with exponent p, and v has coefficient coeff in
// the atom.
type nonlinearCoeff[T numeric.Number[T]] struct {
	v     Var
	coeff T
	p     uint
}

type nonlinearOcc[T numeric.Number[T]] struct {
	x      Var
	coeffs []nonlinearCoeff[T]
}

type ineqKind uint8

const (
	ineqEQ ineqKind = iota
	ineqLE
	ineqLT
)

func (k ineqKind) String() string {
	switch k {
	case ineqEQ:
		return "="
	case ineqLE:
		return "<="
	default:
		return "<"
	}
}

// ineq encodes an arithmetic atom as args + coeff <op> 0.
//
// Invariants:
//   - argsValue is the sum of coeff*value over args
//   - rhs equals -coeff
//   - isLinear is false iff some arg is a monomial variable
type ineq[T numeric.Number[T]] struct {
	linearTerm[T]
	atom      expr.ID
	op        ineqKind
	argsValue T
	rhs       T // -coeff
	isLinear  bool
	nonlinear []nonlinearOcc[T]
	monomials []monomial
	weight    uint64
}

// lhs is the value of args + coeff.
func (i *ineq[T]) lhs() T { return i.argsValue.Add(i.coeff) }

// holds reports whether the atom is true under the stored values. It
// compares argsValue with rhs, so it never overflows.
func (i *ineq[T]) holds() bool {
	return holdsCmp(i.op, i.argsValue.Cmp(i.rhs))
}

// holdsCmp decides an atom from the sign of its left-hand side.
func holdsCmp(op ineqKind, sign int) bool {
	switch op {
	case ineqEQ:
		return sign == 0
	case ineqLE:
		return sign <= 0
	default:
		return sign < 0
	}
}

// mulDef defines v as a monomial.
type mulDef struct {
	v        Var
	monomial monomial
}

// addDef defines v as a linear term.
type addDef[T numeric.Number[T]] struct {
	linearTerm[T]
	v Var
}

// opDef defines v = op(arg1, arg2); arg2 is NullVar for unary operators.
type opDef struct {
	v    Var
	op   opKind
	arg1 Var
	arg2 Var
}

// occurrence is a linear occurrence of a variable in an atom.
type occurrence[T numeric.Number[T]] struct {
	coeff T
	ineq  int
}

// varInfo is the per-variable record.
//
// Invariants:
//   - op is opNone iff defIdx is -1
//   - Numerals are fixed: lo and hi both hold the numeral
//   - rng only grows within an episode
type varInfo[T numeric.Number[T]] struct {
	expr   expr.ID
	sort   expr.Sort
	op     opKind
	defIdx int

	value T
	best  T

	lo, hi *bound[T]

	// rng is the half-width of the neighbourhood values are kept in; it
	// doubles after outOfRangeLimit rejected values.
	rng        T
	outOfRange int

	tabuPos, tabuNeg uint64
	lastPos, lastNeg uint64

	linearOccurs []occurrence[T]
	// ineqs lists the atoms whose value depends directly on this variable,
	// linearly or through a monomial.
	ineqs []int
	// muls, adds and ops list definitions that take this variable as an
	// argument.
	muls, adds, ops []int
}

const outOfRangeLimit = 1000

func (vi *varInfo[T]) isInt() bool { return vi.sort == expr.SortInt }

func (vi *varInfo[T]) defined() bool { return vi.op != opNone }

func (vi *varInfo[T]) isTabu(step uint64, delta T) bool {
	if delta.Sign() > 0 {
		return vi.tabuPos > step
	}
	return vi.tabuNeg > step
}

// setStep records a move of delta at step and forbids the opposite
// direction until tabuUntil.
func (vi *varInfo[T]) setStep(step, tabuUntil uint64, delta T) {
	if delta.Sign() > 0 {
		vi.lastPos = step
		vi.tabuNeg = tabuUntil
	} else {
		vi.lastNeg = step
		vi.tabuPos = tabuUntil
	}
}

func (vi *varInfo[T]) lastStep(delta T) uint64 {
	if delta.Sign() > 0 {
		return vi.lastPos
	}
	return vi.lastNeg
}

// inRange reports whether n lies within the search neighbourhood.
func (vi *varInfo[T]) inRange(n T) bool {
	if vi.rng.Neg().Cmp(n) < 0 && n.Cmp(vi.rng) < 0 {
		return true
	}
	if vi.lo != nil && n.Cmp(vi.lo.value.Add(vi.rng)) < 0 {
		return true
	}
	return vi.hi != nil && n.Cmp(vi.hi.value.Sub(vi.rng)) > 0
}

// noteOutOfRange counts a rejected value and reports whether the range was
// doubled.
func (vi *varInfo[T]) noteOutOfRange() bool {
	vi.outOfRange++
	if vi.outOfRange < outOfRangeLimit {
		return false
	}
	vi.rng = vi.rng.Add(vi.rng)
	vi.outOfRange = 0
	return true
}

// inBounds reports whether n satisfies the recorded bounds.
func (vi *varInfo[T]) inBounds(n T) bool {
	if vi.lo != nil {
		c := vi.lo.value.Cmp(n)
		if c > 0 || (c == 0 && vi.lo.strict) {
			return false
		}
	}
	if vi.hi != nil {
		c := n.Cmp(vi.hi.value)
		if c > 0 || (c == 0 && vi.hi.strict) {
			return false
		}
	}
	return true
}

// isFixed reports whether the bounds admit a single value.
func (vi *varInfo[T]) isFixed() bool {
	return vi.lo != nil && vi.hi != nil && !vi.lo.strict && !vi.hi.strict &&
		vi.lo.value.Cmp(vi.hi.value) == 0
}

// move is a candidate value change.
type move[T numeric.Number[T]] struct {
	v      Var
	delta  T
	score  float64
	gain   float64
	breaks int
}

// MoveKind is a move family chosen by the bandit.
type MoveKind int

const (
	Hillclimb MoveKind = iota
	HillclimbPlateau
	RandomUpdate
	RandomIncDec
	numMoveKinds
)

func (k MoveKind) String() string {
	switch k {
	case Hillclimb:
		return "hillclimb"
	case HillclimbPlateau:
		return "hillclimb-plateau"
	case RandomUpdate:
		return "random-update"
	case RandomIncDec:
		return "random-inc-dec"
	default:
		return "unknown"
	}
}
