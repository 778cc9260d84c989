package sls

import (
	"math"

	"github.com/gitrdm/goslsarith/pkg/numeric"
)

// Distance to truth (dtt) measures how far an atom is from the required
// truth value: 0 when the atom already evaluates as required, positive
// otherwise. With L = args + coeff:
//
//	=   want true: |L|            want false: 0 if L != 0, else 1
//	<=  want true: 0 or L         want false: 0 if L > 0, else 1 - L
//	<   want true: 0 or L + 1     want false: 0 if L >= 0, else -L

// dtt is the distance of in under the stored values.
func (e *Engine[T]) dtt(want bool, in *ineq[T]) T {
	return e.dttAt(want, in.op, in.lhs())
}

// dttFloat is dtt as a float64. When the left-hand side does not fit the
// kernel the distance of a violated atom is approximated by |L|.
func (e *Engine[T]) dttFloat(want bool, in *ineq[T]) (d float64) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*numeric.OverflowError); !ok {
				panic(r)
			}
			d = 0
			if in.holds() != want {
				d = math.Abs(in.argsValue.Float64() + in.coeff.Float64())
			}
		}
	}()
	return e.dtt(want, in).Float64()
}

// dttAt is the distance of an atom whose left-hand side evaluates to lhs.
func (e *Engine[T]) dttAt(want bool, op ineqKind, lhs T) T {
	zero, one := e.k.Zero(), e.one()
	switch op {
	case ineqEQ:
		if want {
			return lhs.Abs()
		}
		if lhs.Sign() != 0 {
			return zero
		}
		return one
	case ineqLE:
		if want {
			if lhs.Sign() <= 0 {
				return zero
			}
			return lhs
		}
		if lhs.Sign() > 0 {
			return zero
		}
		return one.Sub(lhs)
	default:
		if want {
			if lhs.Sign() < 0 {
				return zero
			}
			return lhs.Add(one)
		}
		if lhs.Sign() >= 0 {
			return zero
		}
		return lhs.Neg()
	}
}

// dttSubst is the distance of in if the leaf v took value nv, substituting
// through the monomials of the atom.
func (e *Engine[T]) dttSubst(want bool, in *ineq[T], v Var, nv T) T {
	return e.dttAt(want, in.op, e.lhsWith(in, v, nv))
}

// dttDelta is the distance of in if its left-hand side changed by
// coeff*delta.
func (e *Engine[T]) dttDelta(want bool, in *ineq[T], coeff, delta T) T {
	return e.dttAt(want, in.op, in.lhs().Add(coeff.Mul(delta)))
}

// lhsWith evaluates the left-hand side of in with the leaf x set to nv,
// substituting through the monomials of the atom.
func (e *Engine[T]) lhsWith(in *ineq[T], x Var, nv T) T {
	lhs := in.coeff
	for _, a := range in.args {
		lhs = lhs.Add(a.coeff.Mul(e.valueWith(a.v, x, nv)))
	}
	return lhs
}

// valueWith is the value of v when x is set to nv; v is x, a monomial
// over x or independent of x.
func (e *Engine[T]) valueWith(v, x Var, nv T) T {
	if v == x {
		return nv
	}
	vi := &e.vars[v]
	if vi.op != opMul {
		return vi.value
	}
	mono := e.muls[vi.defIdx].monomial
	found := false
	for _, p := range mono {
		if p.v == x {
			found = true
			break
		}
	}
	if !found {
		return vi.value
	}
	prod := e.one()
	for _, p := range mono {
		b := e.value(p.v)
		if p.v == x {
			b = nv
		}
		prod = prod.Mul(numeric.Pow(e.k, b, p.p))
	}
	return prod
}

// mulValueWithout is the product of the powers of v's monomial other than
// x; for v == x it is 1.
func (e *Engine[T]) mulValueWithout(v, x Var) T {
	if v == x {
		return e.one()
	}
	prod := e.one()
	for _, p := range e.muls[e.vars[v].defIdx].monomial {
		if p.v != x {
			prod = prod.Mul(numeric.Pow(e.k, e.value(p.v), p.p))
		}
	}
	return prod
}

// linearIn reports whether the atom is linear in x and returns the
// coefficient of x.
func (e *Engine[T]) linearIn(nl *nonlinearOcc[T]) (T, bool) {
	b := e.k.Zero()
	for _, c := range nl.coeffs {
		if c.p != 1 {
			return b, false
		}
		b = b.Add(c.coeff.Mul(e.mulValueWithout(c.v, nl.x)))
	}
	return b, true
}

// quadraticIn reports whether the atom is a proper quadratic in x and
// returns the coefficients of x^2 and x.
func (e *Engine[T]) quadraticIn(nl *nonlinearOcc[T]) (a, b T, ok bool) {
	a, b = e.k.Zero(), e.k.Zero()
	for _, c := range nl.coeffs {
		switch c.p {
		case 1:
			b = b.Add(c.coeff.Mul(e.mulValueWithout(c.v, nl.x)))
		case 2:
			a = a.Add(c.coeff.Mul(e.mulValueWithout(c.v, nl.x)))
		default:
			return a, b, false
		}
	}
	return a, b, a.Sign() != 0
}
