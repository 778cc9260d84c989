// Package sls implements the arithmetic theory of a stochastic local-search
// satisfiability solver.
//
// This file implements downward repair: given a new value for a defined
// variable, change its arguments so that the definition yields that value.
//
// Per definition:
//   - Sums move one argument whose coefficient divides the difference
//   - Products solve for one factor by exact division and root, otherwise
//     spread the prime factors of an integer target over the factors
//   - Integer division, mod and rem keep the divisor and adjust the dividend
//   - Powers take exact roots when they exist
//
// A repair that cannot reach the target returns false and the caller
// recomputes the variable from its arguments instead.
package sls

import (
	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// assignment is a candidate argument value considered by a downward
// repair.
type assignment[T numeric.Number[T]] struct {
	v  Var
	nv T
}

// repairDown changes arguments of the defined variable v so that its
// definition yields its current value.
func (e *Engine[T]) repairDown(v Var) bool {
	e.stats.Repairs++
	vi := &e.vars[v]
	t := vi.value
	switch vi.op {
	case opAdd:
		e.repairAdd(&e.adds[vi.defIdx], t)
	case opMul:
		e.repairMul(e.muls[vi.defIdx].monomial, t)
	case opNone:
		return true
	default:
		if !e.repairOp(&e.ops[vi.defIdx], t) {
			return false
		}
	}
	return numeric.Equal(e.value(v), t)
}

// feasible reports whether a could be applied by update.
func (e *Engine[T]) feasible(a assignment[T]) bool {
	vi := &e.vars[a.v]
	if vi.isFixed() || !vi.inBounds(a.nv) || (vi.isInt() && !a.nv.IsInt()) {
		return false
	}
	return !numeric.Equal(vi.value, a.nv)
}

// pickArg chooses among feasible candidates, preferring moves that are
// not tabu and then the variable moved least recently in that direction.
// Returns -1 if none is feasible.
func (e *Engine[T]) pickArg(cands []assignment[T]) int {
	best, bestTabu := -1, true
	var bestLast uint64
	for i, c := range cands {
		if !e.feasible(c) {
			continue
		}
		vi := &e.vars[c.v]
		delta := c.nv.Sub(vi.value)
		tabu := vi.isTabu(e.step, delta)
		last := vi.lastStep(delta)
		if best < 0 || (bestTabu && !tabu) || (tabu == bestTabu && last < bestLast) {
			best, bestTabu, bestLast = i, tabu, last
		}
	}
	return best
}

func (e *Engine[T]) applyPick(cands []assignment[T]) bool {
	i := e.pickArg(cands)
	if i < 0 {
		return false
	}
	return e.update(cands[i].v, cands[i].nv)
}

// exactQuo returns a/b when b divides a (for integers) or b != 0.
func (e *Engine[T]) exactQuo(a, b T, integral bool) (T, bool) {
	if b.Sign() == 0 {
		return e.k.Zero(), false
	}
	q := a.Quo(b)
	if integral && !numeric.Equal(q.Mul(b), a) {
		return q, false
	}
	return q, true
}

func (e *Engine[T]) repairAdd(d *addDef[T], t T) {
	rest := t.Sub(e.eval(d.v))
	var cands []assignment[T]
	for _, a := range d.args {
		vi := &e.vars[a.v]
		delta, ok := e.exactQuo(rest, a.coeff, vi.isInt())
		if !ok {
			continue
		}
		cands = append(cands, assignment[T]{v: a.v, nv: vi.value.Add(delta)})
	}
	e.applyPick(cands)
}

func (e *Engine[T]) repairMul(mono monomial, t T) {
	if t.Sign() == 0 {
		cands := make([]assignment[T], 0, len(mono))
		for _, p := range mono {
			cands = append(cands, assignment[T]{v: p.v, nv: e.k.Zero()})
		}
		e.applyPick(cands)
		return
	}
	var cands []assignment[T]
	for i, p := range mono {
		other := e.one()
		for j, q := range mono {
			if j != i {
				other = other.Mul(numeric.Pow(e.k, e.value(q.v), q.p))
			}
		}
		q, ok := e.exactQuo(t, other, e.vars[p.v].isInt())
		if !ok {
			continue
		}
		r, exact := numeric.Root(e.k, p.p, q)
		if !exact {
			continue
		}
		cands = append(cands, assignment[T]{v: p.v, nv: r})
	}
	if e.applyPick(cands) {
		return
	}
	e.repairMulReset(mono, t)
}

// repairMulReset rebuilds every factor of a product. Integer products
// spread the prime factors of t over the linear factors; real products
// put t on one factor and 1 on the others.
func (e *Engine[T]) repairMulReset(mono monomial, t T) {
	vals := make([]T, len(mono))
	for i := range vals {
		vals[i] = e.one()
	}
	var linear []int
	for i, p := range mono {
		if p.p == 1 {
			linear = append(linear, i)
		}
	}
	if len(linear) == 0 {
		return
	}
	if e.vars[mono[0].v].isInt() {
		for _, f := range numeric.Factor(e.k, t) {
			i := linear[e.rng.IntN(len(linear))]
			vals[i] = vals[i].Mul(f)
		}
		if t.Sign() < 0 {
			i := linear[e.rng.IntN(len(linear))]
			vals[i] = vals[i].Neg()
		}
	} else {
		vals[linear[e.rng.IntN(len(linear))]] = t
	}
	for i, p := range mono {
		e.update(p.v, vals[i])
	}
}

func (e *Engine[T]) repairOp(d *opDef, t T) bool {
	x := d.arg1
	xv := e.value(x)
	one := e.one()
	switch d.op {
	case opAbs:
		if t.Sign() < 0 {
			return false
		}
		if xv.Sign() < 0 {
			return e.update(x, t.Neg())
		}
		return e.update(x, t)
	case opToInt:
		return e.update(x, t.Add(xv.Sub(xv.Floor())))
	case opToReal:
		if !t.IsInt() && e.vars[x].isInt() {
			return false
		}
		return e.update(x, t)
	}

	y := d.arg2
	yv := e.value(y)
	switch d.op {
	case opMod, opRem:
		if yv.Sign() == 0 {
			return e.update(x, t)
		}
		mt := t
		if d.op == opRem && yv.Sign() < 0 {
			mt = t.Neg()
		}
		if mt.Sign() < 0 || mt.Cmp(yv.Abs()) >= 0 {
			return false
		}
		return e.update(x, xv.Sub(numeric.Mod(xv, yv)).Add(mt))
	case opIDiv:
		if yv.Sign() == 0 {
			return t.Sign() == 0
		}
		return e.update(x, t.Mul(yv).Add(numeric.Mod(xv, yv)))
	case opDiv:
		if yv.Sign() == 0 {
			if t.Sign() == 0 {
				return true
			}
			if !e.update(y, one) {
				return false
			}
			return e.update(x, t)
		}
		cands := []assignment[T]{{v: x, nv: t.Mul(yv)}}
		if t.Sign() != 0 && xv.Sign() != 0 {
			cands = append(cands, assignment[T]{v: y, nv: xv.Quo(t)})
		}
		return e.applyPick(cands)
	default:
		n := yv.Floor()
		if n.Sign() == 0 {
			return numeric.Equal(t, one)
		}
		if n.Sign() < 0 || n.Cmp(e.k.FromInt64(maxExponent)) > 0 {
			return false
		}
		r, exact := numeric.Root(e.k, uint(n.Rat().Num().Uint64()), t)
		if !exact {
			// Move to the nearest root so later steps start close by.
			if t.Sign() >= 0 || r.Sign() != 0 {
				e.update(x, r)
			}
			return false
		}
		return e.update(x, r)
	}
}
