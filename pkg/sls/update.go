// Package sls implements the arithmetic theory of a stochastic local-search
// satisfiability solver.
//
// This file implements value updates and evaluation. update is the single
// path by which a variable changes: it enforces bounds, integrality and the
// search range, records the undo on the host trail, maintains the cached
// argument sums of atoms and re-evaluates every definition fed by the
// variable.
//
// Evaluation conventions:
//
//	x / 0 = 0, x div 0 = 0, x mod 0 = x, x rem 0 = x
//	x ^ n with n floored and capped at maxExponent; x ^ 0 = 1
//	x ^ -n = 1 / x^n, or 1 div x^n for integer-sorted terms
package sls

import (
	"github.com/sirupsen/logrus"

	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// maxExponent caps the exponent of power terms; larger exponents are
// evaluated as maxExponent.
const maxExponent = 4096

// update moves v to nv. Fixed variables, values outside the bounds,
// fractional values for integer variables and values outside the search
// range are rejected. A defined variable is repaired downward; if that
// fails it is recomputed from its arguments. Reports whether v ends up
// at nv.
func (e *Engine[T]) update(v Var, nv T) bool {
	vi := &e.vars[v]
	old := vi.value
	if numeric.Equal(old, nv) {
		return true
	}
	if vi.isFixed() || !vi.inBounds(nv) || (vi.isInt() && !nv.IsInt()) {
		return false
	}
	if !vi.inRange(nv) {
		if vi.noteOutOfRange() {
			e.stats.RangeDoublings++
			e.log.WithFields(logrus.Fields{"var": e.name(v), "range": vi.rng.String()}).Info("search range doubled")
		}
		return false
	}
	e.assign(v, nv)
	if vi.defined() && !e.repairDown(v) {
		e.stats.RepairFailures++
		e.repairUp(v)
	}
	e.checkInvariants()
	return numeric.Equal(e.value(v), nv)
}

// assign commits nv and records the undo on the host trail.
func (e *Engine[T]) assign(v Var, nv T) {
	old := e.vars[v].value
	if numeric.Equal(old, nv) {
		return
	}
	e.trail.Push(func() { e.commit(v, old) })
	e.commit(v, nv)
}

// commit stores nv without any checks, maintains the cached argument sums
// of the atoms v occurs in and re-evaluates every definition that uses v.
func (e *Engine[T]) commit(v Var, nv T) {
	vi := &e.vars[v]
	old := vi.value
	if numeric.Equal(old, nv) {
		return
	}
	e.journal = append(e.journal, change[T]{v: v, old: old})
	vi.value = nv
	delta := nv.Sub(old)
	for _, occ := range vi.linearOccurs {
		in := &e.ineqs[occ.ineq]
		in.argsValue = in.argsValue.Add(occ.coeff.Mul(delta))
	}
	for _, i := range vi.muls {
		w := e.muls[i].v
		e.commit(w, e.eval(w))
	}
	for _, i := range vi.adds {
		w := e.adds[i].v
		e.commit(w, e.eval(w))
	}
	for _, i := range vi.ops {
		w := e.ops[i].v
		e.commit(w, e.eval(w))
	}
}

// repairUp recomputes a defined variable from its arguments.
func (e *Engine[T]) repairUp(v Var) {
	e.assign(v, e.eval(v))
}

// eval computes the value of v from its definition. Undefined variables
// evaluate to their stored value.
func (e *Engine[T]) eval(v Var) T {
	vi := &e.vars[v]
	switch vi.op {
	case opNone:
		return vi.value
	case opAdd:
		t := &e.adds[vi.defIdx].linearTerm
		return e.argsValue(t).Add(t.coeff)
	case opMul:
		return e.evalMonomial(e.muls[vi.defIdx].monomial)
	default:
		return e.evalOp(&e.ops[vi.defIdx])
	}
}

// argsValue is sum(coeff*value) over the arguments of t.
func (e *Engine[T]) argsValue(t *linearTerm[T]) T {
	sum := e.k.Zero()
	for _, a := range t.args {
		sum = sum.Add(a.coeff.Mul(e.value(a.v)))
	}
	return sum
}

func (e *Engine[T]) evalMonomial(mono monomial) T {
	prod := e.one()
	for _, p := range mono {
		prod = prod.Mul(numeric.Pow(e.k, e.value(p.v), p.p))
	}
	return prod
}

func (e *Engine[T]) evalOp(d *opDef) T {
	x := e.value(d.arg1)
	switch d.op {
	case opAbs:
		return x.Abs()
	case opToInt:
		return x.Floor()
	case opToReal:
		return x
	}
	y := e.value(d.arg2)
	switch d.op {
	case opDiv:
		return x.Quo(y)
	case opIDiv:
		return numeric.IDiv(x, y)
	case opMod:
		return numeric.Mod(x, y)
	case opRem:
		return numeric.Rem(x, y)
	default:
		return e.power(x, y, e.vars[d.v].isInt())
	}
}

// power returns x^n. Fractional exponents are floored and exponents above
// maxExponent are capped. A negative exponent gives the reciprocal; for an
// integer-sorted result it is the integer quotient 1 div x^-n, so 2^-1 is
// 0 under both kernels.
func (e *Engine[T]) power(x, n T, intResult bool) T {
	n = n.Floor()
	neg := n.Sign() < 0
	if neg {
		n = n.Neg()
	}
	if limit := e.k.FromInt64(maxExponent); n.Cmp(limit) > 0 {
		n = limit
	}
	p := numeric.Pow(e.k, x, uint(n.Rat().Num().Uint64()))
	switch {
	case neg && intResult:
		return numeric.IDiv(e.one(), p)
	case neg:
		return e.one().Quo(p)
	}
	return p
}
